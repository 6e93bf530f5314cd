package cache

import (
	"testing"
	"time"

	"github.com/chinmay4o/superlinks/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		class Class
		want  time.Duration
	}{
		{ClassProfile, 10 * time.Minute},
		{ClassList, 2 * time.Minute},
		{ClassPurchases, 3 * time.Minute},
		{ClassPublic, 15 * time.Minute},
		{ClassDefault, 5 * time.Minute},
		{Class("unknown"), 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := p.TTL(tt.class); got != tt.want {
			t.Errorf("TTL(%s) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestPolicyOverrides(t *testing.T) {
	p := NewPolicy(&config.TTLOverrides{
		Default: time.Minute,
		Classes: map[string]time.Duration{
			"list":    30 * time.Second,
			"reports": time.Hour,
		},
	})

	if got := p.TTL(ClassList); got != 30*time.Second {
		t.Errorf("Expected overridden list TTL, got %v", got)
	}
	if got := p.TTL(ClassProfile); got != 10*time.Minute {
		t.Errorf("Expected untouched profile TTL, got %v", got)
	}
	if got := p.TTL("reports"); got != time.Hour {
		t.Errorf("Expected new class to be accepted, got %v", got)
	}
	if got := p.Default(); got != time.Minute {
		t.Errorf("Expected overridden default, got %v", got)
	}

	if NewPolicy(nil).TTL(ClassPublic) != 15*time.Minute {
		t.Error("Expected nil overrides to keep the built-in table")
	}
}
