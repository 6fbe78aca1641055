package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampHeader(t *testing.T) {
	body := "From: a@example.org\r\nSubject: hi\r\n\r\nbody line\r\n"
	key := SyntheticKey(42)

	stamped, err := StampHeader([]byte(body), key)
	require.NoError(t, err)

	msg := &memMessage{uid: 1, body: stamped}
	id := Resolve(msg)
	assert.False(t, id.Synthetic)
	assert.True(t, id.Key.Equal(key))

	assert.Contains(t, string(stamped), "Subject: hi\r\n")
	assert.Contains(t, string(stamped), "\r\n\r\nbody line\r\n")
}

func TestStampHeaderKeepsExisting(t *testing.T) {
	body := []byte("Message-ID: <orig@x>\r\nSubject: hi\r\n\r\nbody\r\n")

	stamped, err := StampHeader(body, NewKey("<other@x>"))
	require.NoError(t, err)
	assert.Equal(t, string(body), string(stamped))
}

func TestStampHeaderWithoutHeaderBlock(t *testing.T) {
	body := []byte("no header at all")

	stamped, err := StampHeader(body, SyntheticKey(7))
	require.NoError(t, err)
	assert.Equal(t, "Message-ID: 7@imap-mirror.invalid\r\nno header at all", string(stamped))
}
