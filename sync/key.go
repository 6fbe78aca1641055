// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"golang.org/x/text/cases"
)

// Key is a message identity key.
// Keys compare case-insensitively; the original value is kept for
// logging and for stamping copied messages.
type Key struct {
	raw    string
	folded string
}

// NewKey wraps s as an identity key
func NewKey(s string) Key {
	return Key{
		raw:    s,
		folded: cases.Fold().String(s),
	}
}

// String returns the key as it was found on the message
func (k Key) String() string {
	return k.raw
}

// Folded returns the case-folded form used for comparisons
func (k Key) Folded() string {
	return k.folded
}

// Equal reports whether k and o identify the same message
func (k Key) Equal(o Key) bool {
	return k.folded == o.folded
}

// IsZero returns true for the empty key
func (k Key) IsZero() bool {
	return k.raw == ""
}
