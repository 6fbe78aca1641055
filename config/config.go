// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ErrNotFound is returned by Load when the configuration file does not exist
var ErrNotFound = errors.New("configuration file not found")

// Config describes the available configuration layout
type Config struct {
	// Journal is the path to the sqlite run journal. Empty disables it.
	Journal     string
	LogLevel    string `yaml:"log_level"`
	Concurrency int
	Accounts    []Account
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads and parses the configuration file at path, applies defaults
// and validates the result
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "cannot read config file '%s'", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file '%s'", path)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	err := yaml.UnmarshalStrict(data, cfg)
	if err != nil {
		return nil, err
	}

	cfg.setDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Journal != "" {
		c.Journal = ParsePathSetting(c.Journal)
	}

	for i := range c.Accounts {
		a := &c.Accounts[i]
		if a.Name == "" {
			a.Name = fmt.Sprintf("account%d", i)
		}
		if a.Enabled == nil {
			enabled := true
			a.Enabled = &enabled
		}
		if a.Mode == "" {
			a.Mode = ModeReplicate
		}
		a.Source.setDefaults()
		a.Target.setDefaults()
	}
}

// Validate checks that the configuration can be used for a run
func (c *Config) Validate() error {
	if !stringInSlice(c.LogLevel, validLogLevels) {
		return fmt.Errorf("invalid log level %q, valid levels are %v", c.LogLevel, validLogLevels)
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		a := &c.Accounts[i]
		if seen[a.Name] {
			return fmt.Errorf("duplicate account name %q", a.Name)
		}
		seen[a.Name] = true

		// Disabled accounts are never connected to
		if !a.IsEnabled() {
			continue
		}

		err := a.Validate()
		if err != nil {
			return errors.Wrapf(err, "account %s", a.Name)
		}
	}
	return nil
}

// Account returns the account with the given name
func (c *Config) Account(name string) (*Account, bool) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], true
		}
	}
	return nil, false
}

func stringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid folder pattern %q", p)
		}
		res = append(res, re)
	}
	return res, nil
}
