package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeMessage struct {
	uid     uint32
	headers []HeaderField
}

func (m fakeMessage) UID() uint32 { return m.uid }
func (m fakeMessage) Headers() []HeaderField { return m.headers }

func withID(uid uint32, id string) fakeMessage {
	return fakeMessage{uid: uid, headers: []HeaderField{
		{Name: "Subject", Value: "hello"},
		{Name: IdentityHeader, Value: id},
	}}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name      string
		msg       Message
		key       string
		synthetic bool
	}{
		{"message id", withID(42, "<abc@example.org>"), "<abc@example.org>", false},
		{"no header", fakeMessage{uid: 42}, "42@imap-mirror.invalid", true},
		{"empty header", withID(7, ""), "7@imap-mirror.invalid", true},
		{"blank header", withID(7, "  \t"), "7@imap-mirror.invalid", true},
		{"value kept verbatim", withID(7, " <x@y> "), " <x@y> ", false},
		{"lower case header name", fakeMessage{uid: 1, headers: []HeaderField{{Name: "message-id", Value: "<a@b>"}}}, "<a@b>", false},
		{"upper case header name", fakeMessage{uid: 1, headers: []HeaderField{{Name: "MESSAGE-ID", Value: "<a@b>"}}}, "<a@b>", false},
		{"first non-empty wins", fakeMessage{uid: 1, headers: []HeaderField{
			{Name: "Message-Id", Value: ""},
			{Name: "Message-Id", Value: "<second@b>"},
		}}, "<second@b>", false},
		{"uid zero", fakeMessage{uid: 0}, "0@imap-mirror.invalid", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := Resolve(tc.msg)
			assert.Equal(t, tc.key, id.Key.String())
			assert.Equal(t, tc.synthetic, id.Synthetic)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	msg := withID(3, "<same@example.org>")
	assert.True(t, Resolve(msg).Key.Equal(Resolve(msg).Key))

	noID := fakeMessage{uid: 3}
	assert.True(t, Resolve(noID).Key.Equal(Resolve(noID).Key))
}

func TestSyntheticKeyIsNotAMessageID(t *testing.T) {
	// A synthesized key never collides with the key of another UID
	assert.False(t, SyntheticKey(1).Equal(SyntheticKey(11)))
	assert.Equal(t, "4294967295@imap-mirror.invalid", SyntheticKey(4294967295).String())
}
