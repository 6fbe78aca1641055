// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package config

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
)

// KeyringOpener opens the keyring for the given service name.
// It can be replaced in tests.
var KeyringOpener = openKeyring

func openKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/credentials",
		FilePasswordFunc:         keyring.TerminalPrompt,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening keyring")
	}
	return ring, nil
}

// KeyringKey is the key under which the password of an endpoint is stored
func (e *Endpoint) KeyringKey() string {
	return e.User + "@" + e.Host
}

// ResolvePassword returns the password for the endpoint.
// A literal password takes precedence over password_cmd, which in turn
// takes precedence over the keyring.
func (e *Endpoint) ResolvePassword(ctx context.Context) (string, error) {
	if e.Password != "" {
		return e.Password, nil
	}

	if e.PasswordCmd != "" {
		return runPasswordCmd(ctx, e.PasswordCmd)
	}

	if e.Keyring != "" {
		ring, err := KeyringOpener(e.Keyring)
		if err != nil {
			return "", err
		}
		item, err := ring.Get(e.KeyringKey())
		if err != nil {
			return "", errors.Wrapf(err, "getting credential %q", e.KeyringKey())
		}
		return string(item.Data), nil
	}

	return "", errors.Errorf("no password configured for %s", e.KeyringKey())
}

// runPasswordCmd executes cmd through the shell and returns the first line of its output
func runPasswordCmd(ctx context.Context, cmd string) (string, error) {
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if err != nil {
		return "", errors.Wrapf(err, "password_cmd failed: %s", strings.TrimSpace(stderr.String()))
	}

	scanner := bufio.NewScanner(&stdout)
	if !scanner.Scan() {
		return "", errors.New("password_cmd returned no output")
	}
	password := strings.TrimRight(scanner.Text(), "\r")
	if password == "" {
		return "", errors.New("password_cmd returned an empty password")
	}
	return password, nil
}
