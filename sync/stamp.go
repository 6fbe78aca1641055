// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/textproto"
	"github.com/pkg/errors"
)

// StampHeader returns body with an IdentityHeader carrying key.
// Messages that already have a non-empty IdentityHeader are returned unchanged.
// All other header fields and the message body are preserved byte for byte.
func StampHeader(body []byte, key Key) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(body))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		// Not a parseable header block (e.g. no blank line before EOF),
		// so prepend the field to the raw message instead
		var buf bytes.Buffer
		buf.WriteString(IdentityHeader + ": " + key.String() + "\r\n")
		buf.Write(body)
		return buf.Bytes(), nil
	}

	if strings.TrimSpace(h.Get(IdentityHeader)) != "" {
		return body, nil
	}
	h.Set(IdentityHeader, key.String())

	var buf bytes.Buffer
	buf.Grow(len(body) + len(IdentityHeader) + len(key.String()) + 4)
	err = textproto.WriteHeader(&buf, h)
	if err != nil {
		return nil, errors.Wrap(err, "cannot write message header")
	}
	_, err = io.Copy(&buf, br)
	if err != nil {
		return nil, errors.Wrap(err, "cannot copy message body")
	}
	return buf.Bytes(), nil
}
