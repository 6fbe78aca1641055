// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package imap

import (
	"context"

	"github.com/emersion/go-imap"
	"github.com/pkg/errors"

	"github.com/yzzyx/imap-mirror/sync"
)

// Folder is an IMAP mailbox
type Folder struct {
	store *Store
	name  string
	caps  sync.Capability

	status   *imap.MailboxStatus
	readOnly bool
}

// Path returns the full mailbox name
func (f *Folder) Path() string {
	return f.name
}

// Separator returns the hierarchy delimiter of the store
func (f *Folder) Separator() rune {
	return f.store.delimiter
}

// Capabilities returns what the mailbox may contain, as announced by LIST
func (f *Folder) Capabilities() sync.Capability {
	return f.caps
}

// capabilitiesFromAttributes translates LIST attributes into capabilities
func capabilitiesFromAttributes(attrs []string) sync.Capability {
	caps := sync.HoldsMessages | sync.HoldsFolders
	for _, attr := range attrs {
		switch attr {
		case imap.NoSelectAttr:
			caps &^= sync.HoldsMessages
		case imap.NoInferiorsAttr:
			caps &^= sync.HoldsFolders
		}
	}
	return caps
}

// childPattern returns the LIST pattern matching the direct children of the folder
func (f *Folder) childPattern() (string, bool) {
	if f.name == "" {
		return "%", true
	}
	if f.store.delimiter == 0 {
		// Flat hierarchy
		return "", false
	}
	return f.name + string(f.store.delimiter) + "%", true
}

// Children lists the direct subfolders
func (f *Folder) Children(ctx context.Context) ([]sync.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pattern, ok := f.childPattern()
	if !ok {
		return nil, nil
	}

	infos, err := f.store.list("", pattern)
	if err != nil {
		return nil, err
	}

	var children []sync.Folder
	for _, info := range infos {
		// Some servers include the parent itself
		if info.Name == f.name || info.Name == "" {
			continue
		}
		children = append(children, &Folder{
			store: f.store,
			name:  info.Name,
			caps:  capabilitiesFromAttributes(info.Attributes),
		})
	}
	return children, nil
}

// Exists checks whether the mailbox exists on the server
func (f *Folder) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.name == "" {
		return true, nil
	}

	infos, err := f.store.list("", f.name)
	if err != nil {
		return false, err
	}
	for _, info := range infos {
		if info.Name == f.name {
			f.caps = capabilitiesFromAttributes(info.Attributes)
			return true, nil
		}
	}
	return false, nil
}

// Create creates the mailbox. Without HoldsMessages, the mailbox is created
// as a container only by appending the hierarchy delimiter.
func (f *Folder) Create(ctx context.Context, caps sync.Capability) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := f.name
	if !caps.Has(sync.HoldsMessages) && f.store.delimiter != 0 {
		name += string(f.store.delimiter)
	}
	err := f.store.client.Create(name)
	if err != nil {
		return err
	}
	f.caps = caps | sync.HoldsFolders
	f.store.log.Debug().Str("folder", f.name).Msg("created folder")
	return nil
}

// Open selects the mailbox. ReadOnly uses EXAMINE so that flags are left untouched.
func (f *Folder) Open(ctx context.Context, mode sync.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.caps.Has(sync.HoldsMessages) {
		return errors.Errorf("folder %s cannot hold messages", f.name)
	}

	readOnly := mode == sync.ReadOnly
	status, err := f.store.client.Select(f.name, readOnly)
	if err != nil {
		return err
	}
	f.status = status
	f.readOnly = readOnly
	f.store.selected = f.name
	return nil
}

func (f *Folder) checkSelected() error {
	if f.status == nil || f.store.selected != f.name {
		return errors.Errorf("folder %s is not open", f.name)
	}
	return nil
}

// Close deselects the mailbox. With expunge set, messages flagged as deleted
// are removed. Otherwise a read-write mailbox is left selected, so that it
// is implicitly closed without expunge by the next SELECT or LOGOUT.
func (f *Folder) Close(ctx context.Context, expunge bool) error {
	if f.status == nil {
		// Never opened
		return nil
	}
	f.status = nil

	if expunge || f.readOnly {
		f.store.selected = ""
		return f.store.client.Close()
	}
	return nil
}
