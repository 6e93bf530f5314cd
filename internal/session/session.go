// Package session holds the bearer token attached to API and upload requests.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/clock"
	"github.com/chinmay4o/superlinks/internal/config"
)

// expirySkew treats tokens that expire within this window as already
// expired, so a request is not sent with a token that dies in flight.
const expirySkew = 30 * time.Second

// Store is the in-memory session token. Tokens that are JWTs are checked for
// expiry locally; opaque tokens are passed through and left to the server.
// The signature is never verified here; that is the server's job.
type Store struct {
	mu    sync.RWMutex
	token string
	path  string
	clock clock.Clock
}

// NewStore returns a store holding token. path is where Save writes it;
// empty selects the default token file.
func NewStore(token, path string, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	if path == "" {
		path = config.GetDefaultTokenPath()
	}
	return &Store{token: strings.TrimSpace(token), path: path, clock: clk}
}

// Token returns the current token, or api.ErrUnauthenticated when there is
// none or it has expired. It satisfies api.TokenSource.
func (s *Store) Token() (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", api.ErrUnauthenticated
	}

	exp, ok, err := ExpiresAt(token)
	if err != nil || !ok {
		// Opaque token
		return token, nil
	}
	if !s.clock.Now().Add(expirySkew).Before(exp) {
		return "", fmt.Errorf("session expired at %s: %w", exp.Format(time.RFC3339), api.ErrUnauthenticated)
	}
	return token, nil
}

// Set replaces the token.
func (s *Store) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Clear forgets the token.
func (s *Store) Clear() {
	s.Set("")
}

// Save writes the token to the store's file with 0600 permissions.
func (s *Store) Save() error {
	s.mu.RLock()
	token, path := s.token, s.path
	s.mu.RUnlock()

	if path == "" {
		return errors.New("no token file location available")
	}
	return config.WriteTokenFile(path, token)
}

// Path returns the file Save writes to.
func (s *Store) Path() string {
	return s.path
}

// Info describes a token without exposing it.
type Info struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no expiry
	IsJWT     bool
}

// Inspect decodes the unverified claims of a JWT token. Opaque tokens yield
// an Info with IsJWT false.
func Inspect(token string) Info {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Info{}
	}
	info := Info{Subject: claims.Subject, IsJWT: true}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

// ExpiresAt returns the exp claim of a JWT. ok is false when the token has
// no exp claim; err is non-nil when the token is not a JWT.
func ExpiresAt(token string) (exp time.Time, ok bool, err error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// Mask returns a token with all but its last four characters hidden.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}
