// Package domain turns tab URLs into the canonical domain keys that time is
// attributed to.
package domain

import (
	"net"
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Normalize returns the lowercase hostname of raw with a single leading
// "www." removed. Bare hosts are parsed as https URLs. The second return
// value is false when raw is empty or cannot be parsed.
func Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	// url.Parse puts a scheme-less host into Path, so give it one.
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", false
	}
	return host, true
}

// Registrable returns the registrable domain (eTLD+1) for a domain key,
// e.g. "docs.google.com" -> "google.com". Keys without a registrable form
// (IP addresses, single labels, unknown suffixes) are returned unchanged.
func Registrable(key string) string {
	if key == "" || !strings.Contains(key, ".") || net.ParseIP(key) != nil {
		return key
	}
	root, err := publicsuffix.Domain(key)
	if err != nil || root == "" {
		return key
	}
	return root
}

// Matcher reports whether a domain key falls under any of a set of
// excluded domains. A pattern matches itself and its subdomains.
type Matcher struct {
	patterns []string
}

// NewMatcher normalizes patterns; entries that do not normalize are dropped.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		if key, ok := Normalize(p); ok {
			m.patterns = append(m.patterns, key)
		}
	}
	return m
}

// Match reports whether key is excluded.
func (m *Matcher) Match(key string) bool {
	if m == nil || key == "" {
		return false
	}
	for _, p := range m.patterns {
		if key == p || strings.HasSuffix(key, "."+p) {
			return true
		}
	}
	return false
}
