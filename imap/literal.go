package imap

import "bytes"

// bytesLiteral wraps a message body in order to support the imap.Literal interface
type bytesLiteral struct {
	*bytes.Reader
	size int
}

func newLiteral(body []byte) *bytesLiteral {
	return &bytesLiteral{Reader: bytes.NewReader(body), size: len(body)}
}

// Len returns the size
func (l *bytesLiteral) Len() int {
	return l.size
}
