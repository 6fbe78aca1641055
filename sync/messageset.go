// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"context"

	"github.com/pkg/errors"
)

type entry struct {
	identity Identity
	messages []Message
}

// MessageSet maps identity keys to the messages of one folder.
// It is a snapshot; it is never refreshed after loading.
type MessageSet struct {
	entries map[string]*entry
	order   []string
}

// Duplicate reports an identity key that occurs more than once in a folder
type Duplicate struct {
	Key  Key
	UIDs []uint32
}

// NewMessageSet creates a set from msgs, keeping store order
func NewMessageSet(msgs []Message) *MessageSet {
	s := &MessageSet{
		entries: make(map[string]*entry, len(msgs)),
	}
	for _, msg := range msgs {
		s.add(msg)
	}
	return s
}

func (s *MessageSet) add(msg Message) {
	id := Resolve(msg)
	folded := id.Key.Folded()
	if e, ok := s.entries[folded]; ok {
		e.messages = append(e.messages, msg)
		return
	}
	s.entries[folded] = &entry{identity: id, messages: []Message{msg}}
	s.order = append(s.order, folded)
}

// LoadMessageSet lists all messages in the opened folder f and resolves their identities
func LoadMessageSet(ctx context.Context, f Folder) (*MessageSet, error) {
	msgs, err := f.Messages(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load messages of %s", f.Path())
	}
	return NewMessageSet(msgs), nil
}

// Len returns the number of distinct keys
func (s *MessageSet) Len() int {
	return len(s.order)
}

// Contains returns true if a message with key k is in the set
func (s *MessageSet) Contains(k Key) bool {
	_, ok := s.entries[k.Folded()]
	return ok
}

// Get returns the first message stored under k
func (s *MessageSet) Get(k Key) (Message, bool) {
	e, ok := s.entries[k.Folded()]
	if !ok {
		return nil, false
	}
	return e.messages[0], true
}

// Keys returns all keys in insertion order
func (s *MessageSet) Keys() []Key {
	keys := make([]Key, 0, len(s.order))
	for _, folded := range s.order {
		keys = append(keys, s.entries[folded].identity.Key)
	}
	return keys
}

// Duplicates returns every key that was found on more than one message
func (s *MessageSet) Duplicates() []Duplicate {
	var dups []Duplicate
	for _, folded := range s.order {
		e := s.entries[folded]
		if len(e.messages) < 2 {
			continue
		}
		uids := make([]uint32, 0, len(e.messages))
		for _, m := range e.messages {
			uids = append(uids, m.UID())
		}
		dups = append(dups, Duplicate{Key: e.identity.Key, UIDs: uids})
	}
	return dups
}

func (s *MessageSet) each(fn func(e *entry)) {
	for _, folded := range s.order {
		fn(s.entries[folded])
	}
}
