package cache

import (
	"time"

	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/constants"
)

// Class names a family of cached resources sharing a freshness budget.
type Class string

const (
	ClassDefault   Class = "default"
	ClassProfile   Class = "profile"   // The signed-in creator's profile
	ClassList      Class = "list"      // Blocks, products and other editable lists
	ClassPurchases Class = "purchases" // Purchase history
	ClassPublic    Class = "public"    // Public storefront pages
)

// Policy maps resource classes to TTLs. Services ask the policy instead of
// hard-coding durations.
type Policy struct {
	defaultTTL time.Duration
	classes    map[Class]time.Duration
}

// DefaultPolicy returns the built-in TTL table.
func DefaultPolicy() *Policy {
	return &Policy{
		defaultTTL: constants.DefaultCacheTTL,
		classes: map[Class]time.Duration{
			ClassProfile:   constants.ProfileCacheTTL,
			ClassList:      constants.ListCacheTTL,
			ClassPurchases: constants.PurchasesCacheTTL,
			ClassPublic:    constants.PublicCacheTTL,
		},
	}
}

// NewPolicy applies overrides on top of the built-in table. Unknown class
// names are accepted so that new resource families can be configured without
// a release.
func NewPolicy(overrides *config.TTLOverrides) *Policy {
	p := DefaultPolicy()
	if overrides == nil {
		return p
	}
	if overrides.Default > 0 {
		p.defaultTTL = overrides.Default
	}
	for name, ttl := range overrides.Classes {
		if name == string(ClassDefault) {
			p.defaultTTL = ttl
			continue
		}
		p.classes[Class(name)] = ttl
	}
	return p
}

// TTL returns the TTL for class, or the default TTL for unknown classes.
func (p *Policy) TTL(class Class) time.Duration {
	if ttl, ok := p.classes[class]; ok {
		return ttl
	}
	return p.defaultTTL
}

// Default returns the fallback TTL.
func (p *Policy) Default() time.Duration {
	return p.defaultTTL
}

// Classes returns a copy of the configured class table.
func (p *Policy) Classes() map[Class]time.Duration {
	out := make(map[Class]time.Duration, len(p.classes))
	for k, v := range p.classes {
		out[k] = v
	}
	return out
}
