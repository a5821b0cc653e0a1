// Package redact masks secret material in everything that leaves the
// runtime: tool results, streamed response chunks, and formatted errors.
// It registers at the lowest hook priority so it always runs last and sees
// the final shape of each event.
package redact

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Mask replaces each masked occurrence.
const Mask = "[REDACTED]"

// assignmentPattern catches `key: value` / `key=value` pairs whose key
// resembles a credential name, masking secrets that were never explicitly
// registered.
var assignmentPattern = regexp.MustCompile(
	`(?i)([a-z0-9_.-]*(?:key|secret|token|password|passwd|pwd|credential|auth)[a-z0-9_.-]*)(\s*[:=]\s*)("[^"]+"|'[^']+'|[^\s,;]+)`)

// bearerPattern catches bearer/basic authorization header values.
var bearerPattern = regexp.MustCompile(`(?i)\b(bearer|basic)\s+[a-z0-9._~+/=-]{4,}`)

// Redactor holds the known secret literals and applies the masking rules.
type Redactor struct {
	mu       sync.RWMutex
	known    map[string]struct{}
	literals []string // deduplicated, longest first
}

// NewRedactor creates a redactor seeded with the given literals.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{known: make(map[string]struct{})}
	r.AddSecrets(secrets...)
	return r
}

// AddSecrets registers literal secret values. Duplicates and blanks are
// ignored; the set is kept sorted longest-first so a short secret never
// corrupts a longer one containing it as a substring.
func (r *Redactor) AddSecrets(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := r.known[s]; dup {
			continue
		}
		r.known[s] = struct{}{}
		r.literals = append(r.literals, s)
		changed = true
	}
	if changed {
		sort.Slice(r.literals, func(i, j int) bool {
			if len(r.literals[i]) != len(r.literals[j]) {
				return len(r.literals[i]) > len(r.literals[j])
			}
			return r.literals[i] < r.literals[j]
		})
	}
}

// MaskText masks all known literals first, then applies the bearer-token
// and credential-assignment pattern rules.
func (r *Redactor) MaskText(text string) string {
	if text == "" {
		return text
	}

	r.mu.RLock()
	literals := r.literals
	r.mu.RUnlock()

	for _, literal := range literals {
		text = strings.ReplaceAll(text, literal, Mask)
	}
	// Bearer values go first: the assignment rule would otherwise consume
	// the scheme word as the value and leave the token itself exposed.
	text = bearerPattern.ReplaceAllString(text, "${1} "+Mask)
	text = assignmentPattern.ReplaceAllString(text, "${1}${2}"+Mask)
	return text
}

// MaskValue recursively masks string values inside maps and slices, leaving
// non-string leaves untouched.
func (r *Redactor) MaskValue(value any) any {
	switch v := value.(type) {
	case string:
		return r.MaskText(v)
	case map[string]any:
		for key, item := range v {
			v[key] = r.MaskValue(item)
		}
		return v
	case map[string]string:
		for key, item := range v {
			v[key] = r.MaskText(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = r.MaskValue(item)
		}
		return v
	case []string:
		for i, item := range v {
			v[i] = r.MaskText(item)
		}
		return v
	default:
		return value
	}
}
