// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"context"
	"time"

	"github.com/yzzyx/imap-mirror/config"
)

// Capability describes what a folder may contain.
// The two bits are independent; a folder can hold both messages and folders.
type Capability uint8

const (
	// HoldsMessages is set for folders that can be opened and contain messages
	HoldsMessages Capability = 1 << iota
	// HoldsFolders is set for folders that may have child folders
	HoldsFolders
)

// Has returns true if all bits in o are set
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) String() string {
	switch {
	case c.Has(HoldsMessages | HoldsFolders):
		return "messages,folders"
	case c.Has(HoldsMessages):
		return "messages"
	case c.Has(HoldsFolders):
		return "folders"
	}
	return "none"
}

// Mode is the access mode used when opening a folder
type Mode int

// Folder access modes
const (
	ReadOnly Mode = iota
	ReadWrite
)

// HeaderField is a single message header as returned by the store
type HeaderField struct {
	Name  string
	Value string
}

// Message is a handle to a message in an opened folder
type Message interface {
	// UID is the store-assigned identifier of the message within its folder
	UID() uint32
	// Headers returns the headers that were prefetched for this message
	Headers() []HeaderField
}

// Content is a full copy of a message, as needed to append it elsewhere
type Content struct {
	Flags []string
	Date  time.Time
	Body  []byte
}

// Folder is a handle to a folder in a store. A handle may refer to a folder
// that does not exist yet.
type Folder interface {
	Path() string
	// Separator is the hierarchy delimiter of the store, or 0 for flat stores
	Separator() rune
	Capabilities() Capability

	Children(ctx context.Context) ([]Folder, error)
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, caps Capability) error

	Open(ctx context.Context, mode Mode) error
	// Messages lists every message in the opened folder, fetching the
	// identity headers for all of them in one batched request
	Messages(ctx context.Context) ([]Message, error)
	Content(ctx context.Context, msg Message) (*Content, error)
	Append(ctx context.Context, content *Content) error
	// MarkDeleted sets the deleted flag on msgs. Removal happens on Close
	MarkDeleted(ctx context.Context, msgs []Message) error
	Close(ctx context.Context, expunge bool) error
}

// Store is a connected mail store
type Store interface {
	Root(ctx context.Context) (Folder, error)
	Folder(ctx context.Context, path string) (Folder, error)
	Close() error
}

// Dialer connects to the store described by an endpoint
type Dialer interface {
	Dial(ctx context.Context, endpoint config.Endpoint) (Store, error)
}
