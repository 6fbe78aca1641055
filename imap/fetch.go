package imap

import (
	"bufio"
	"context"
	"io"
	"io/ioutil"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/textproto"
	"github.com/pkg/errors"

	"github.com/yzzyx/imap-mirror/sync"
)

// message is a prefetched message handle
type message struct {
	uid     uint32
	headers []sync.HeaderField
}

func (m *message) UID() uint32 {
	return m.uid
}

func (m *message) Headers() []sync.HeaderField {
	return m.headers
}

// identitySection is the header section fetched for every message
func identitySection() *imap.BodySectionName {
	return &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields:    []string{sync.IdentityHeader},
		},
		Peek: true, // Do not update seen-flags
	}
}

// Messages fetches the UID and identity header of every message in the
// opened mailbox with a single FETCH command
func (f *Folder) Messages(ctx context.Context) ([]sync.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.checkSelected(); err != nil {
		return nil, err
	}

	if f.status.Messages == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(1, f.status.Messages)

	items := []imap.FetchItem{imap.FetchUid, identitySection().FetchItem()}

	messages := make(chan *imap.Message, 100)
	errchan := make(chan error, 1)
	go func() {
		errchan <- f.store.client.Fetch(seqSet, items, messages)
	}()

	msgs := make([]sync.Message, 0, f.status.Messages)
	var parseErr error
	for msg := range messages {
		// Keep draining the channel even after an error,
		// otherwise the fetch command never completes
		if parseErr != nil {
			continue
		}

		if msg.Uid == 0 {
			parseErr = errors.New("server did not return UID")
			continue
		}

		headers, err := headerFields(msg)
		if err != nil {
			parseErr = errors.Wrapf(err, "cannot parse headers of message %d", msg.Uid)
			continue
		}
		msgs = append(msgs, &message{uid: msg.Uid, headers: headers})
	}

	if err := <-errchan; err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}

	f.store.log.Debug().Str("folder", f.name).Int("messages", len(msgs)).Msg("fetched message headers")
	return msgs, nil
}

// headerFields parses the header sections returned for msg
func headerFields(msg *imap.Message) ([]sync.HeaderField, error) {
	var fields []sync.HeaderField
	for _, literal := range msg.Body {
		if literal == nil || literal.Len() == 0 {
			continue
		}

		h, err := textproto.ReadHeader(bufio.NewReader(literal))
		if err != nil && err != io.EOF {
			return nil, err
		}

		hf := h.Fields()
		for hf.Next() {
			fields = append(fields, sync.HeaderField{Name: hf.Key(), Value: hf.Value()})
		}
	}
	return fields, nil
}

// Content downloads the full message, including flags and internal date
func (f *Folder) Content(ctx context.Context, m sync.Message) (*sync.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.checkSelected(); err != nil {
		return nil, err
	}

	uid := m.UID()
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	// Download whole body
	section := &imap.BodySectionName{
		Peek: true, // Do not update seen-flags
	}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- f.store.client.UidFetch(seqSet, items, messages)
	}()

	var content *sync.Content
	var readErr error
	for msg := range messages {
		if content != nil || readErr != nil || msg.Uid != uid {
			continue
		}

		r := msg.GetBody(section)
		if r == nil {
			readErr = errors.New("server didn't return message body")
			continue
		}

		body, err := ioutil.ReadAll(r)
		if err != nil {
			readErr = err
			continue
		}

		content = &sync.Content{
			Flags: copyableFlags(msg.Flags),
			Date:  msg.InternalDate,
			Body:  body,
		}
	}

	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if content == nil {
		return nil, errors.Errorf("server didn't return message %d", uid)
	}
	return content, nil
}
