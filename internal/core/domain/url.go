package domain

import "unique"

// CanonicalURL is the fully resolved identifier of a stylesheet resource.
// It is the registry key for the stylesheet graph: two registered nodes never
// share a canonical URL. The underlying string is interned via the unique
// package so URLs compare by handle and deduplicate in edge sets.
type CanonicalURL struct {
	h unique.Handle[string]
}

// NewCanonicalURL creates a CanonicalURL from a string.
func NewCanonicalURL(s string) CanonicalURL {
	return CanonicalURL{
		h: unique.Make(s),
	}
}

// String returns the underlying URL string.
func (u CanonicalURL) String() string {
	return u.h.Value()
}

// IsZero reports whether u is the zero CanonicalURL.
func (u CanonicalURL) IsZero() bool {
	return u == CanonicalURL{}
}

// MarshalText implements encoding.TextMarshaler.
func (u CanonicalURL) MarshalText() ([]byte, error) {
	return []byte(u.h.Value()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *CanonicalURL) UnmarshalText(text []byte) error {
	u.h = unique.Make(string(text))
	return nil
}
