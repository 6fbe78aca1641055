package imap

import (
	"context"
	"io/ioutil"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yzzyx/imap-mirror/sync"
)

func TestCapabilitiesFromAttributes(t *testing.T) {
	cases := []struct {
		attrs []string
		want  sync.Capability
	}{
		{nil, sync.HoldsMessages | sync.HoldsFolders},
		{[]string{`\HasChildren`}, sync.HoldsMessages | sync.HoldsFolders},
		{[]string{imap.NoSelectAttr}, sync.HoldsFolders},
		{[]string{imap.NoInferiorsAttr}, sync.HoldsMessages},
		{[]string{imap.NoSelectAttr, imap.NoInferiorsAttr}, 0},
	}
	for _, tc := range cases {
		got := capabilitiesFromAttributes(tc.attrs)
		if got != tc.want {
			t.Errorf("capabilitiesFromAttributes(%v) = %v, want %v", tc.attrs, got, tc.want)
		}
	}
}

func TestChildPattern(t *testing.T) {
	s := &Store{delimiter: '/', log: zerolog.Nop()}

	root, err := s.Root(context.Background())
	require.NoError(t, err)
	pattern, ok := root.(*Folder).childPattern()
	assert.True(t, ok)
	assert.Equal(t, "%", pattern)

	f, err := s.Folder(context.Background(), "Work/Projects")
	require.NoError(t, err)
	pattern, ok = f.(*Folder).childPattern()
	assert.True(t, ok)
	assert.Equal(t, "Work/Projects/%", pattern)

	s.delimiter = 0
	_, ok = f.(*Folder).childPattern()
	assert.False(t, ok)
}

func TestFolderHandles(t *testing.T) {
	s := &Store{delimiter: '.', log: zerolog.Nop()}
	ctx := context.Background()

	root, err := s.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", root.Path())
	assert.Equal(t, '.', root.Separator())
	assert.Equal(t, sync.HoldsFolders, root.Capabilities())

	f, err := s.Folder(ctx, "INBOX.Sent")
	require.NoError(t, err)
	assert.Equal(t, "INBOX.Sent", f.Path())
	assert.True(t, f.Capabilities().Has(sync.HoldsMessages))

	// The root cannot be opened and an unopened folder cannot be read
	assert.Error(t, root.Open(ctx, sync.ReadOnly))
	_, err = f.Messages(ctx)
	assert.Error(t, err)
	assert.Error(t, f.MarkDeleted(ctx, nil))
	assert.NoError(t, f.Close(ctx, true))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Folder(canceled, "INBOX")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCopyableFlags(t *testing.T) {
	in := []string{imap.SeenFlag, imap.RecentFlag, imap.DeletedFlag, "", imap.FlaggedFlag, "$Label1"}
	assert.Equal(t, []string{imap.SeenFlag, imap.FlaggedFlag, "$Label1"}, copyableFlags(in))
	assert.Empty(t, copyableFlags(nil))
}

func TestHeaderFields(t *testing.T) {
	section := identitySection()
	msg := &imap.Message{
		Uid: 12,
		Body: map[*imap.BodySectionName]imap.Literal{
			section: newLiteral([]byte("Message-Id: <abc@example.org>\r\n\r\n")),
		},
	}

	fields, err := headerFields(msg)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "<abc@example.org>", fields[0].Value)

	id := sync.Resolve(&message{uid: msg.Uid, headers: fields})
	assert.False(t, id.Synthetic)
	assert.Equal(t, "<abc@example.org>", id.Key.String())
}

func TestHeaderFieldsMissing(t *testing.T) {
	msg := &imap.Message{
		Uid: 12,
		Body: map[*imap.BodySectionName]imap.Literal{
			identitySection(): newLiteral([]byte("\r\n")),
		},
	}

	fields, err := headerFields(msg)
	require.NoError(t, err)
	assert.Empty(t, fields)

	id := sync.Resolve(&message{uid: msg.Uid, headers: fields})
	assert.True(t, id.Synthetic)
	assert.Equal(t, "12@imap-mirror.invalid", id.Key.String())
}

func TestIdentitySection(t *testing.T) {
	section := identitySection()
	assert.True(t, section.Peek)
	assert.Equal(t, imap.PartSpecifier(imap.HeaderSpecifier), section.Specifier)
	assert.Equal(t, []string{"Message-ID"}, section.Fields)
}

func TestLiteral(t *testing.T) {
	l := newLiteral([]byte("hello"))
	assert.Equal(t, 5, l.Len())

	data, err := ioutil.ReadAll(l)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// The size does not change while reading
	assert.Equal(t, 5, l.Len())
}
