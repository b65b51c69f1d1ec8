package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve resolves reference against base and returns the absolute,
// comparable form of the result.
//
// Relative paths, protocol-relative references and absolute references all
// go through the same RFC 3986 composition, so every spelling of a URL ends
// up with the same string. Scheme and host are lowercased and any fragment
// is dropped.
//
// The returned error wraps ErrInvalidReference when the reference cannot be
// parsed, when the result has no host or when its scheme is not http(s)
// (mailto:, javascript:, data: and friends).
func Resolve(reference, base string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %v", ErrInvalidReference, base, err)
	}

	ref, err := url.Parse(strings.TrimSpace(reference))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidReference, reference, err)
	}

	u := b.ResolveReference(ref)
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidReference, reference, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q: missing host", ErrInvalidReference, reference)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// Scope decides which discovered links belong to a crawl.
// A URL is in scope iff its hostname equals the seed's hostname.
type Scope struct {
	host string
}

// NewScope builds the scope of a crawl seeded at seed.
// The returned error wraps ErrInvalidSeed when seed is not an absolute
// http(s) URL with a host.
func NewScope(seed string) (Scope, error) {
	u, err := url.Parse(seed)
	if err != nil {
		return Scope{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Scope{}, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Hostname() == "" {
		return Scope{}, fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}
	return Scope{host: strings.ToLower(u.Hostname())}, nil
}

// Host returns the seed hostname.
func (s Scope) Host() string {
	return s.host
}

// InScope reports whether the resolved URL lives on the seed host.
// The comparison is an exact match on the parsed hostname, so a scope for
// a.test accepts neither xa.test nor a.test.evil.
func (s Scope) InScope(resolved string) bool {
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), s.host)
}

// Excluded reports whether a raw link reference is skipped before
// resolution. References carrying a fragment point into a document that is
// already reachable without it.
func (s Scope) Excluded(raw string) bool {
	return strings.Contains(raw, "#")
}
