// Package notify renders user-facing notifications raised on the event bus,
// such as a failed optimistic change, as short lines on the terminal.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chinmay4o/superlinks/internal/events"
	"github.com/chinmay4o/superlinks/internal/logging"
)

// Config holds notification settings.
type Config struct {
	Enabled     bool
	ShowInfo    bool
	ShowSuccess bool
	ShowErrors  bool
}

// DefaultConfig shows errors and successes, not info chatter.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		ShowInfo:    false,
		ShowSuccess: true,
		ShowErrors:  true,
	}
}

// ParseConfig reads settings from a key/value map. Expected keys: enabled,
// show_info, show_success, show_errors.
func ParseConfig(settings map[string]string) *Config {
	cfg := DefaultConfig()
	flag := func(key string, dst *bool) {
		if v, ok := settings[key]; ok {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	flag("enabled", &cfg.Enabled)
	flag("show_info", &cfg.ShowInfo)
	flag("show_success", &cfg.ShowSuccess)
	flag("show_errors", &cfg.ShowErrors)
	return cfg
}

// Notifier writes notifications to out.
type Notifier struct {
	cfg    Config
	out    io.Writer
	logger *logging.Logger

	mu      sync.RWMutex
	enabled bool
	shown   int
}

// NewNotifier creates a notifier. A nil cfg uses DefaultConfig.
func NewNotifier(cfg *Config, out io.Writer, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Notifier{cfg: *cfg, out: out, logger: logger, enabled: cfg.Enabled}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are shown.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Shown returns how many notifications were written.
func (n *Notifier) Shown() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.shown
}

// Run shows every notification published on bus until ctx ends or the bus
// closes.
func (n *Notifier) Run(ctx context.Context, bus *events.EventBus) {
	ch := bus.Subscribe(events.EventNotification)
	defer bus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if note, ok := ev.(*events.NotificationEvent); ok {
				n.Show(note)
			}
		}
	}
}

// Show writes one notification if its severity is enabled.
func (n *Notifier) Show(note *events.NotificationEvent) {
	if !n.IsEnabled() || !n.wants(note.Severity) {
		return
	}
	line := format(note)
	if _, err := io.WriteString(n.out, line); err != nil {
		n.logger.Warn().Err(err).Str("title", note.Title).Msg("Failed to show notification")
		return
	}
	n.mu.Lock()
	n.shown++
	n.mu.Unlock()
}

func (n *Notifier) wants(s events.Severity) bool {
	switch s {
	case events.SeverityError:
		return n.cfg.ShowErrors
	case events.SeveritySuccess:
		return n.cfg.ShowSuccess
	default:
		return n.cfg.ShowInfo
	}
}

func format(note *events.NotificationEvent) string {
	mark := "•"
	switch note.Severity {
	case events.SeverityError:
		mark = "✗"
	case events.SeveritySuccess:
		mark = "✓"
	}
	if note.Message == "" {
		return fmt.Sprintf("%s %s\n", mark, truncate(note.Title, 60))
	}
	return fmt.Sprintf("%s %s: %s\n", mark, truncate(note.Title, 60), truncate(note.Message, 160))
}

// truncate shortens s to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
