// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"strconv"
	"strings"
)

const (
	// IdentityHeader is the header used to identify a message across stores
	IdentityHeader = "Message-ID"

	// SyntheticDomain is appended to the UID of messages without an IdentityHeader
	SyntheticDomain = "imap-mirror.invalid"
)

// Identity is the resolved identity of a message
type Identity struct {
	Key Key
	// Synthetic is set when the key was built from the UID because the
	// message had no usable IdentityHeader
	Synthetic bool
}

// Resolve returns the identity of msg.
// A non-empty IdentityHeader always wins over the UID fallback.
func Resolve(msg Message) Identity {
	for _, h := range msg.Headers() {
		if !strings.EqualFold(h.Name, IdentityHeader) {
			continue
		}
		// Blank values fall back to the UID, others are used verbatim
		if strings.TrimSpace(h.Value) == "" {
			continue
		}
		return Identity{Key: NewKey(h.Value)}
	}

	return Identity{
		Key:       SyntheticKey(msg.UID()),
		Synthetic: true,
	}
}

// SyntheticKey builds the fallback identity key for a message UID
func SyntheticKey(uid uint32) Key {
	return NewKey(strconv.FormatUint(uint64(uid), 10) + "@" + SyntheticDomain)
}
