// Package davurl normalizes and joins the URLs used to address DAV resources.
//
// A URL is immutable; every operation returns a new value.
package davurl

import (
	"fmt"
	"net/url"
	"strings"
)

// URL wraps a parsed net/url.URL.
type URL struct {
	u url.URL
}

// Parse parses an absolute or relative URL.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}
	return &URL{u: *u}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(raw string) *URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// FromURL copies a net/url.URL.
func FromURL(u url.URL) *URL {
	if u.User != nil {
		user := *u.User
		u.User = &user
	}
	return &URL{u: u}
}

// URL returns a copy of the underlying net/url.URL.
func (u *URL) URL() url.URL {
	return FromURL(u.u).u
}

// Join resolves ref against u following RFC 3986 reference resolution.
// An absolute ref replaces u entirely.
func (u *URL) Join(ref string) (*URL, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL reference %q: %w", ref, err)
	}
	return u.JoinURL(&URL{u: *r}), nil
}

// JoinURL is Join for an already parsed reference.
func (u *URL) JoinURL(ref *URL) *URL {
	resolved := u.u.ResolveReference(&ref.u)
	if resolved.User == nil && ref.u.Host == "" {
		resolved.User = u.u.User
	}
	return FromURL(*resolved)
}

// Child returns the member named segment directly below u, treating u as a
// collection. segment is path-escaped.
func (u *URL) Child(segment string) *URL {
	base := u.EnsureTrailingSlash()
	return base.JoinURL(&URL{u: url.URL{Path: segment}})
}

// StripTrailingSlash removes a single trailing slash from the path.
// The root path "/" is kept.
func (u *URL) StripTrailingSlash() *URL {
	c := FromURL(u.u)
	if len(c.u.Path) > 1 && strings.HasSuffix(c.u.Path, "/") {
		c.u.Path = strings.TrimSuffix(c.u.Path, "/")
		if c.u.RawPath != "" {
			c.u.RawPath = strings.TrimSuffix(c.u.RawPath, "/")
		}
	}
	return c
}

// EnsureTrailingSlash appends a slash to the path if it does not end in one.
func (u *URL) EnsureTrailingSlash() *URL {
	c := FromURL(u.u)
	if !strings.HasSuffix(c.u.Path, "/") {
		c.u.Path += "/"
		if c.u.RawPath != "" {
			c.u.RawPath += "/"
		}
	}
	return c
}

// HasTrailingSlash reports whether the path ends in a slash.
func (u *URL) HasTrailingSlash() bool {
	return strings.HasSuffix(u.u.Path, "/")
}

// Unauthenticated returns u without user info. Use it for display and
// comparison only, never for issuing requests.
func (u *URL) Unauthenticated() *URL {
	c := FromURL(u.u)
	c.u.User = nil
	return c
}

// WithHost returns u with the scheme and host of other.
func (u *URL) WithHost(other *URL) *URL {
	c := FromURL(u.u)
	if other.u.Scheme != "" {
		c.u.Scheme = other.u.Scheme
	}
	c.u.Host = other.u.Host
	return c
}

// Equal compares two URLs after dropping user info and trailing slashes.
func (u *URL) Equal(other *URL) bool {
	if u == nil || other == nil {
		return u == other
	}
	a := u.Unauthenticated().StripTrailingSlash()
	b := other.Unauthenticated().StripTrailingSlash()
	return a.String() == b.String()
}

// Path returns the decoded path.
func (u *URL) Path() string { return u.u.Path }

// EscapedPath returns the escaped path as it appears on the wire.
func (u *URL) EscapedPath() string { return u.u.EscapedPath() }

// Host returns host[:port].
func (u *URL) Host() string { return u.u.Host }

// Hostname returns the host without port.
func (u *URL) Hostname() string { return u.u.Hostname() }

// Scheme returns the URL scheme.
func (u *URL) Scheme() string { return u.u.Scheme }

// User returns the user info, or nil.
func (u *URL) User() *url.Userinfo { return u.u.User }

// IsAbs reports whether the URL has a scheme.
func (u *URL) IsAbs() bool { return u.u.IsAbs() }

// LastSegment returns the final non-empty path segment.
func (u *URL) LastSegment() string {
	p := strings.TrimSuffix(u.u.Path, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func (u *URL) String() string {
	if u == nil {
		return ""
	}
	return u.u.String()
}
