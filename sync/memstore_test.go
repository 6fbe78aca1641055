package sync

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	gosync "sync"

	"github.com/emersion/go-message/textproto"
	"github.com/pkg/errors"

	"github.com/yzzyx/imap-mirror/config"
)

// memMessage is a message held by memStore
type memMessage struct {
	uid     uint32
	body    []byte
	flags   []string
	deleted bool
}

func (m *memMessage) UID() uint32 {
	return m.uid
}

func (m *memMessage) Headers() []HeaderField {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(m.body)))
	if err != nil {
		return nil
	}
	var fields []HeaderField
	hf := h.Fields()
	for hf.Next() {
		fields = append(fields, HeaderField{Name: hf.Key(), Value: hf.Value()})
	}
	return fields
}

type memMailbox struct {
	caps     Capability
	messages []*memMessage
	nextUID  uint32
}

// memStore is an in-memory Store. It records every mutating call in ops.
type memStore struct {
	sep   rune
	boxes map[string]*memMailbox

	ops     []string
	fetches int
	closed  bool

	failAppend   string
	failChildren string
}

func newMemStore(sep rune) *memStore {
	return &memStore{
		sep: sep,
		boxes: map[string]*memMailbox{
			"": {caps: HoldsFolders},
		},
	}
}

// mailbox returns the mailbox at path, creating it with caps if needed
func (s *memStore) mailbox(path string, caps Capability) *memMailbox {
	box, ok := s.boxes[path]
	if !ok {
		box = &memMailbox{caps: caps, nextUID: 1}
		s.boxes[path] = box
	}
	return box
}

// add stores a message with the given Message-ID ("" for none) and returns its UID
func (s *memStore) add(path, messageID string) uint32 {
	box := s.mailbox(path, HoldsMessages|HoldsFolders)
	uid := box.nextUID
	box.nextUID++
	box.messages = append(box.messages, &memMessage{uid: uid, body: []byte(mailBody(messageID, fmt.Sprintf("message %d", uid)))})
	return uid
}

// addUID stores a message with a fixed UID
func (s *memStore) addUID(path string, uid uint32, messageID string) {
	box := s.mailbox(path, HoldsMessages|HoldsFolders)
	box.messages = append(box.messages, &memMessage{uid: uid, body: []byte(mailBody(messageID, "fixed"))})
	if uid >= box.nextUID {
		box.nextUID = uid + 1
	}
}

// keys returns the sorted identity keys of all messages at path
func (s *memStore) keys(path string) []string {
	box, ok := s.boxes[path]
	if !ok {
		return nil
	}
	keys := []string{}
	for _, m := range box.messages {
		keys = append(keys, Resolve(m).Key.String())
	}
	sort.Strings(keys)
	return keys
}

func (s *memStore) paths() []string {
	var paths []string
	for p := range s.boxes {
		if p != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (s *memStore) record(format string, args ...interface{}) {
	s.ops = append(s.ops, fmt.Sprintf(format, args...))
}

func (s *memStore) Root(ctx context.Context) (Folder, error) {
	return &memFolder{store: s, path: ""}, nil
}

func (s *memStore) Folder(ctx context.Context, path string) (Folder, error) {
	return &memFolder{store: s, path: path}, nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

type memFolder struct {
	store *memStore
	path  string
	open  bool
	mode  Mode
}

func (f *memFolder) box() (*memMailbox, error) {
	box, ok := f.store.boxes[f.path]
	if !ok {
		return nil, errors.Errorf("no such folder %q", f.path)
	}
	return box, nil
}

func (f *memFolder) Path() string {
	return f.path
}

func (f *memFolder) Separator() rune {
	return f.store.sep
}

func (f *memFolder) Capabilities() Capability {
	if box, ok := f.store.boxes[f.path]; ok {
		return box.caps
	}
	return HoldsMessages | HoldsFolders
}

func (f *memFolder) Children(ctx context.Context) ([]Folder, error) {
	if f.store.failChildren == f.path {
		return nil, errors.New("list failed")
	}
	sep := string(f.store.sep)
	var children []Folder
	for _, p := range f.store.paths() {
		rest := p
		if f.path != "" {
			if !strings.HasPrefix(p, f.path+sep) {
				continue
			}
			rest = strings.TrimPrefix(p, f.path+sep)
		}
		if rest == "" || strings.Contains(rest, sep) {
			continue
		}
		children = append(children, &memFolder{store: f.store, path: p})
	}
	return children, nil
}

func (f *memFolder) Exists(ctx context.Context) (bool, error) {
	_, ok := f.store.boxes[f.path]
	return ok, nil
}

func (f *memFolder) Create(ctx context.Context, caps Capability) error {
	if _, ok := f.store.boxes[f.path]; ok {
		return errors.Errorf("folder %q already exists", f.path)
	}
	f.store.boxes[f.path] = &memMailbox{caps: caps | HoldsFolders, nextUID: 1}
	f.store.record("create %s", f.path)
	return nil
}

func (f *memFolder) Open(ctx context.Context, mode Mode) error {
	box, err := f.box()
	if err != nil {
		return err
	}
	if !box.caps.Has(HoldsMessages) {
		return errors.Errorf("folder %q cannot hold messages", f.path)
	}
	f.open = true
	f.mode = mode
	f.store.record("open %s", f.path)
	return nil
}

func (f *memFolder) Messages(ctx context.Context) ([]Message, error) {
	box, err := f.box()
	if err != nil {
		return nil, err
	}
	if !f.open {
		return nil, errors.Errorf("folder %q is not open", f.path)
	}
	f.store.fetches++
	msgs := make([]Message, 0, len(box.messages))
	for _, m := range box.messages {
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (f *memFolder) Content(ctx context.Context, msg Message) (*Content, error) {
	box, err := f.box()
	if err != nil {
		return nil, err
	}
	for _, m := range box.messages {
		if m.uid == msg.UID() {
			body := make([]byte, len(m.body))
			copy(body, m.body)
			return &Content{Flags: m.flags, Body: body}, nil
		}
	}
	return nil, errors.Errorf("no message %d in %q", msg.UID(), f.path)
}

func (f *memFolder) Append(ctx context.Context, content *Content) error {
	if f.store.failAppend == f.path {
		return errors.New("append failed")
	}
	box, err := f.box()
	if err != nil {
		return err
	}
	if f.open && f.mode == ReadOnly {
		return errors.Errorf("folder %q is read-only", f.path)
	}
	box.messages = append(box.messages, &memMessage{uid: box.nextUID, body: content.Body, flags: content.Flags})
	box.nextUID++
	f.store.record("append %s", f.path)
	return nil
}

func (f *memFolder) MarkDeleted(ctx context.Context, msgs []Message) error {
	box, err := f.box()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		for _, m := range box.messages {
			if m.uid == msg.UID() {
				m.deleted = true
				f.store.record("flag %s %d", f.path, m.uid)
			}
		}
	}
	return nil
}

func (f *memFolder) Close(ctx context.Context, expunge bool) error {
	box, err := f.box()
	if err != nil {
		return err
	}
	f.open = false
	if expunge {
		kept := box.messages[:0]
		for _, m := range box.messages {
			if !m.deleted {
				kept = append(kept, m)
			}
		}
		box.messages = kept
		f.store.record("close %s expunge", f.path)
		return nil
	}
	f.store.record("close %s", f.path)
	return nil
}

// memDialer hands out memStores by host name
type memDialer struct {
	mu     gosync.Mutex
	stores map[string]*memStore
	fail   map[string]error
	dialed []string
}

func (d *memDialer) Dial(ctx context.Context, endpoint config.Endpoint) (Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, endpoint.Host)
	if err, ok := d.fail[endpoint.Host]; ok {
		return nil, err
	}
	s, ok := d.stores[endpoint.Host]
	if !ok {
		return nil, errors.Errorf("unknown host %s", endpoint.Host)
	}
	return s, nil
}

func mailBody(messageID, subject string) string {
	var b strings.Builder
	b.WriteString("From: sender@example.org\r\n")
	if messageID != "" {
		b.WriteString("Message-ID: " + messageID + "\r\n")
	}
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("Hello\r\n")
	return b.String()
}

// opIndex returns the position of op in the recorded operations, or -1
func (s *memStore) opIndex(op string) int {
	for i, o := range s.ops {
		if o == op {
			return i
		}
	}
	return -1
}
