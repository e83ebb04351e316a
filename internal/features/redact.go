package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DefaultRedactPatterns are the built-in patterns masked when none are named.
var DefaultRedactPatterns = []string{"email", "ipv4", "mac_address", "uuid"}

type redactPattern struct {
	label string
	re    *regexp.Regexp
}

// Redactor masks sensitive values in messages while preserving correlation
// between identical values.
//
// The same value is always replaced with the same placeholder, so repeated
// addresses stay recognizable across lines without being exposed:
//
//	"Connection from 192.168.1.1 failed"    -> "Connection from [IPV4:a3f2] failed"
//	"Connection from 192.168.1.1 succeeded" -> "Connection from [IPV4:a3f2] succeeded"
type Redactor struct {
	patterns     []redactPattern
	mu           sync.RWMutex
	placeholders map[string]string // original value -> placeholder
}

// NewRedactor builds a Redactor from built-in pattern names, applied in the
// given order. No names selects DefaultRedactPatterns.
func NewRedactor(names []string) (*Redactor, error) {
	if len(names) == 0 {
		names = DefaultRedactPatterns
	}

	r := &Redactor{placeholders: make(map[string]string)}
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		p, ok := BuiltInPatterns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownPattern, name, strings.Join(BuiltInNames(), ", "))
		}
		r.patterns = append(r.patterns, redactPattern{
			label: strings.ToUpper(name),
			re:    regexp.MustCompile("(?i)" + p.Source),
		})
	}
	return r, nil
}

// Redact replaces every match of the configured patterns with its placeholder.
func (r *Redactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.re.ReplaceAllStringFunc(text, func(match string) string {
			return r.placeholder(match, p.label)
		})
	}
	return text
}

func (r *Redactor) placeholder(value, label string) string {
	key := label + "\x00" + strings.ToLower(value)

	r.mu.RLock()
	ph, ok := r.placeholders[key]
	r.mu.RUnlock()
	if ok {
		return ph
	}

	// First 2 bytes of SHA-256 keep placeholders short.
	h := sha256.Sum256([]byte(key))
	ph = fmt.Sprintf("[%s:%s]", label, hex.EncodeToString(h[:2]))

	r.mu.Lock()
	r.placeholders[key] = ph
	r.mu.Unlock()
	return ph
}

// Len returns the number of distinct values redacted so far.
func (r *Redactor) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.placeholders)
}

// Reset forgets every value-to-placeholder mapping.
func (r *Redactor) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholders = make(map[string]string)
}
