package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/constants"
	"github.com/chinmay4o/superlinks/internal/http"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/ratelimit"
	"github.com/chinmay4o/superlinks/internal/util/buffers"
)

// TokenSource supplies the bearer token for each request. An implementation
// returns ErrUnauthenticated when no usable token exists.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() (string, error) {
	if s == "" {
		return "", ErrUnauthenticated
	}
	return string(s), nil
}

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Per-request chatter is only interesting when debugging.
	l.logger.Debug().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

// Client talks to the storefront API.
type Client struct {
	httpClient   *nethttp.Client // JSON calls, optional retries on GET
	uploadClient *nethttp.Client // streaming uploads, never retried
	config       *config.Config
	baseURL      string
	tokens       TokenSource
	limiter      *ratelimit.RateLimiter // nil when pacing is off
	logger       *logging.Logger
}

// NewClient creates a new API client. A nil logger discards output.
func NewClient(cfg *config.Config, tokens TokenSource, logger *logging.Logger) (*Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}
	if tokens == nil {
		tokens = StaticToken(cfg.Token)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.NewAPIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	uploadClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure upload client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.APIRetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = retryIdempotent
	// Hand non-2xx responses back so they become ServerErrors with a status.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	var limiter *ratelimit.RateLimiter
	if cfg.APIRate > 0 {
		limiter = ratelimit.NewRateLimiter(cfg.APIRate, float64(cfg.APIBurst), nil, logger)
	}

	return &Client{
		httpClient:   retryClient.StandardClient(),
		uploadClient: uploadClient,
		config:       cfg,
		baseURL:      strings.TrimSuffix(cfg.APIBaseURL, "/"),
		tokens:       tokens,
		limiter:      limiter,
		logger:       logger,
	}, nil
}

// retryIdempotent only lets GET requests be replayed.
func retryIdempotent(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if resp != nil && resp.Request != nil && resp.Request.Method != nethttp.MethodGet {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// GetConfig returns the configuration used by this API client.
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// bearer resolves the Authorization header value before any network attempt.
func (c *Client) bearer() (string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrUnauthenticated
	}
	return "Bearer " + token, nil
}

// pace waits for API capacity.
func (c *Client) pace(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Classify(op, err)
	}
	return nil
}

// doRequest performs an authenticated JSON request and returns the raw response
// body of a 2xx response. Everything else is mapped into the error taxonomy.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body interface{}) ([]byte, error) {
	auth, err := c.bearer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.pace(ctx, op); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("op", op).Str("method", method).Str("path", path).Err(err).Msg("API call failed")
		return nil, Classify(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(op, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newServerError(op, resp.StatusCode, data)
	}
	return data, nil
}

// call performs a request and decodes the (possibly enveloped) payload into out.
func (c *Client) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	data, err := c.doRequest(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeData(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// decodeData unwraps a {"data": ...} envelope when present. Bare payloads are
// decoded as they are.
func decodeData(body []byte, out interface{}) error {
	raw := body
	if gjson.ValidBytes(body) {
		if data := gjson.GetBytes(body, "data"); data.Exists() && (data.IsObject() || data.IsArray()) {
			raw = []byte(data.Raw)
		}
	}
	return json.Unmarshal(raw, out)
}

// newServerError extracts a readable message from common error envelopes.
func newServerError(op string, status int, body []byte) *ServerError {
	msg := string(body)
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
				msg = r.Str
				break
			}
		}
	}
	return &ServerError{Op: op, StatusCode: status, Body: msg}
}

// countingReader reports the running total of bytes read.
type countingReader struct {
	r        io.Reader
	n        int64
	progress func(int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		if c.progress != nil {
			c.progress(c.n)
		}
	}
	return n, err
}

// Upload streams body as a multipart POST to /api/upload. progress receives
// the cumulative number of file bytes handed to the connection.
func (c *Client) Upload(ctx context.Context, body io.Reader, mimeType string, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error) {
	const op = "upload"

	auth, err := c.bearer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.pace(ctx, op); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, body, mimeType, meta, progress))
	}()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+constants.UploadPath, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, Classify(op, err)
	}
	defer resp.Body.Close()
	// Unblock the writer if the server answered before reading everything.
	pr.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newServerError(op, resp.StatusCode, data)
	}

	var fd models.FileDescriptor
	if err := decodeData(data, &fd); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if fd.OriginalName == "" {
		fd.OriginalName = meta.OriginalName
	}
	return &fd, nil
}

func writeUploadForm(mw *multipart.Writer, body io.Reader, mimeType string, meta models.UploadMetadata, progress func(int64)) error {
	fields := []struct{ name, value string }{
		{"originalName", meta.OriginalName},
		{"uploadType", string(meta.UploadType)},
		{"productId", meta.ProductID},
		{"folder", meta.Folder},
		{"description", meta.Description},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, meta.OriginalName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := buffers.Copy(part, &countingReader{r: body, progress: progress}); err != nil {
		return fmt.Errorf("failed to stream file: %w", err)
	}
	return mw.Close()
}
