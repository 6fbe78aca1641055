// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package config

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// Synchronization modes
const (
	// ModeReplicate only adds missing messages to the target
	ModeReplicate = "replicate"
	// ModeMirror also removes target messages that no longer exist in the source
	ModeMirror = "mirror"
)

// Protocols supported for an endpoint
const (
	ProtocolIMAPS = "imaps"
	ProtocolIMAP  = "imap"
)

// Authentication mechanisms
const (
	AuthLogin = "login"
	AuthPlain = "plain"
)

// Account is a source/target pair that is synchronized as a unit
type Account struct {
	Name    string
	Enabled *bool
	Mode    string

	// RateLimit is the maximum number of messages appended to the target per second
	RateLimit float64 `yaml:"rate_limit"`

	Folders struct {
		Include []string
		Exclude []string
	}

	Source Endpoint
	Target Endpoint
}

// Endpoint defines how to reach one side of an account
type Endpoint struct {
	Protocol           string
	Host               string
	Port               int
	User               string
	Password           string
	PasswordCmd        string `yaml:"password_cmd"`
	Keyring            string
	StartTLS           bool `yaml:"starttls"`
	Auth               string
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// IsEnabled returns false only if the account was explicitly disabled
func (a *Account) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// ReplicateOnly returns true unless the account runs in mirror mode
func (a *Account) ReplicateOnly() bool {
	return a.Mode != ModeMirror
}

// FolderPatterns compiles the include and exclude folder patterns
func (a *Account) FolderPatterns() (include, exclude []*regexp.Regexp, err error) {
	include, err = compilePatterns(a.Folders.Include)
	if err != nil {
		return nil, nil, err
	}
	exclude, err = compilePatterns(a.Folders.Exclude)
	if err != nil {
		return nil, nil, err
	}
	return include, exclude, nil
}

// Validate checks the account and both of its endpoints
func (a *Account) Validate() error {
	if a.Mode != ModeReplicate && a.Mode != ModeMirror {
		return fmt.Errorf("invalid mode %q, valid modes are %s and %s", a.Mode, ModeReplicate, ModeMirror)
	}
	if a.RateLimit < 0 {
		return errors.New("rate_limit must be positive")
	}
	if _, _, err := a.FolderPatterns(); err != nil {
		return err
	}

	if err := a.Source.Validate(); err != nil {
		return errors.Wrap(err, "source")
	}
	if err := a.Target.Validate(); err != nil {
		return errors.Wrap(err, "target")
	}
	return nil
}

func (e *Endpoint) setDefaults() {
	if e.Protocol == "" {
		e.Protocol = ProtocolIMAPS
	}
	if e.Auth == "" {
		e.Auth = AuthLogin
	}

	// Set default port
	if e.Port == 0 {
		e.Port = 993
		if e.Protocol == ProtocolIMAP {
			e.Port = 143
		}
	}
}

// Validate checks that the endpoint has everything needed to connect
func (e *Endpoint) Validate() error {
	if e.Protocol != ProtocolIMAPS && e.Protocol != ProtocolIMAP {
		return fmt.Errorf("unsupported protocol %q", e.Protocol)
	}
	if e.Host == "" {
		return errors.New("imap server address not configured")
	}
	if e.User == "" {
		return errors.New("imap username not configured")
	}
	if e.Password == "" && e.PasswordCmd == "" && e.Keyring == "" {
		return errors.New("imap password not configured")
	}
	if e.Protocol == ProtocolIMAPS && e.StartTLS {
		return errors.New("starttls cannot be combined with protocol imaps")
	}
	if e.Auth != AuthLogin && e.Auth != AuthPlain {
		return fmt.Errorf("unsupported auth mechanism %q", e.Auth)
	}
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d", e.Port)
	}
	return nil
}

// Address returns the host:port pair to dial
func (e *Endpoint) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s@%s", e.Protocol, e.User, e.Address())
}
