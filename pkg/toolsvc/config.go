// Package toolsvc manages subprocess-backed tool-service connections: one
// runtime record per configured service, with discovery, invocation, and
// configuration reconciliation.
package toolsvc

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Default bounds for external I/O. TimeoutMS in a service config overrides
// the connect/call timeout per service; the discovery cache interval is
// fixed.
const (
	DefaultTimeout    = 12 * time.Second
	toolCacheInterval = 30 * time.Second
)

// ServiceConfig describes one external tool service as supplied by the
// configuration layer.
type ServiceConfig struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Cwd         string            `yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	TimeoutMS   int               `yaml:"timeoutMs,omitempty" json:"timeoutMs,omitempty"`
}

// Timeout returns the configured connect/call timeout, or the default.
func (c ServiceConfig) Timeout() time.Duration {
	if c.TimeoutMS > 0 {
		return time.Duration(c.TimeoutMS) * time.Millisecond
	}
	return DefaultTimeout
}

// equal reports whether two configs describe the same service setup. A
// changed config forces the runtime back to idle so the next use reconnects.
func (c ServiceConfig) equal(o ServiceConfig) bool {
	return c.ID == o.ID &&
		c.Name == o.Name &&
		c.Description == o.Description &&
		c.Enabled == o.Enabled &&
		c.Command == o.Command &&
		slices.Equal(c.Args, o.Args) &&
		c.Cwd == o.Cwd &&
		maps.Equal(c.Env, o.Env) &&
		c.TimeoutMS == o.TimeoutMS
}

// NormalizeID lowercases a service id and reduces it to [a-z0-9_-]. Runs of
// other characters collapse to a single dash.
func NormalizeID(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lower))
	pendingDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
