// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package imap

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-imap"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yzzyx/imap-mirror/config"
	"github.com/yzzyx/imap-mirror/sync"
)

// uidPlusAppender is implemented by the UIDPLUS client, which reports
// the UID assigned to appended messages
type uidPlusAppender interface {
	Append(mbox string, flags []string, date time.Time, msg imap.Literal) (validity uint32, uid uint32, err error)
}

// Client bundles the IMAP connection with the optional extension clients
type Client struct {
	*client.Client
	uidPlus uidPlusAppender
}

// Dialer connects to IMAP servers
type Dialer struct {
	Logger zerolog.Logger

	// Debug receives a trace of the IMAP protocol, if set
	Debug io.Writer
}

// Dial connects and authenticates to the server described by endpoint
func (d *Dialer) Dial(ctx context.Context, endpoint config.Endpoint) (sync.Store, error) {
	s, err := Dial(ctx, endpoint, d.Logger, d.Debug)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Store is a connected IMAP account.
// A store owns a single connection and must not be used concurrently.
type Store struct {
	client   *Client
	endpoint config.Endpoint
	log      zerolog.Logger

	delimiter rune
	selected  string
}

// Dial connects to the server described by endpoint and logs in
func Dial(ctx context.Context, endpoint config.Endpoint, log zerolog.Logger, debug io.Writer) (*Store, error) {
	password, err := endpoint.ResolvePassword(ctx)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		ServerName:         endpoint.Host,
		InsecureSkipVerify: endpoint.InsecureSkipVerify,
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return nil, err
	}

	if endpoint.Protocol == config.ProtocolIMAPS {
		tlsConn := tls.Client(conn, tlsConfig)
		err = tlsConn.HandshakeContext(ctx)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "tls handshake failed")
		}
		conn = tlsConn
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if debug != nil {
		c.SetDebug(debug)
	}

	s := &Store{
		client:   &Client{Client: c},
		endpoint: endpoint,
		log:      log.With().Str("store", endpoint.Address()).Logger(),
	}

	err = s.login(password, tlsConfig)
	if err != nil {
		_ = c.Logout()
		return nil, err
	}

	ok, err := c.Support("UIDPLUS")
	if err != nil {
		_ = c.Logout()
		return nil, err
	}
	if ok {
		s.client.uidPlus = uidplus.NewClient(c)
	}

	err = s.discoverDelimiter()
	if err != nil {
		_ = c.Logout()
		return nil, err
	}
	return s, nil
}

func (s *Store) login(password string, tlsConfig *tls.Config) error {
	// Start a TLS session
	if s.endpoint.StartTLS {
		if err := s.client.StartTLS(tlsConfig); err != nil {
			return errors.Wrap(err, "starttls failed")
		}
	}

	switch s.endpoint.Auth {
	case config.AuthPlain:
		ok, err := s.client.SupportAuth(sasl.Plain)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("server does not support AUTH=PLAIN")
		}
		err = s.client.Authenticate(sasl.NewPlainClient("", s.endpoint.User, password))
		if err != nil {
			return errors.Wrapf(err, "authentication failed for %s", s.endpoint.User)
		}
	default:
		err := s.client.Login(s.endpoint.User, password)
		if err != nil {
			return errors.Wrapf(err, "login failed for %s", s.endpoint.User)
		}
	}
	return nil
}

// discoverDelimiter asks the server for its hierarchy delimiter
func (s *Store) discoverDelimiter() error {
	infos, err := s.list("", "")
	if err != nil {
		return errors.Wrap(err, "cannot get hierarchy delimiter")
	}
	for _, info := range infos {
		if info.Delimiter != "" {
			s.delimiter, _ = utf8.DecodeRuneInString(info.Delimiter)
			break
		}
	}
	s.log.Debug().Str("delimiter", string(s.delimiter)).Msg("connected")
	return nil
}

// list runs a LIST command and collects all responses
func (s *Store) list(ref, name string) ([]*imap.MailboxInfo, error) {
	mboxChan := make(chan *imap.MailboxInfo, 10)
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.client.List(ref, name, mboxChan)
	}()

	var infos []*imap.MailboxInfo
	for mb := range mboxChan {
		infos = append(infos, mb)
	}

	// Check if an error occurred while listing
	if err := <-errChan; err != nil {
		return nil, err
	}
	return infos, nil
}

// Root returns the top of the folder hierarchy. It can only hold folders.
func (s *Store) Root(ctx context.Context) (sync.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Folder{store: s, caps: sync.HoldsFolders}, nil
}

// Folder returns a handle for the folder at path. The folder may not exist.
func (s *Store) Folder(ctx context.Context, path string) (sync.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Folder{store: s, name: path, caps: sync.HoldsMessages | sync.HoldsFolders}, nil
}

// Close logs out and closes the connection
func (s *Store) Close() error {
	return s.client.Logout()
}
