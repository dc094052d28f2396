// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the lockbox CLI.
//
// Configuration comes from a single YAML file named by:
//   - the LOCKBOX_CONFIG environment variable, or
//   - the --config flag passed to the command.
//
// There is no search path and no automatic discovery; when neither is
// set, built-in defaults apply. This keeps behavior deterministic —
// what a command does never depends on which directory it ran from.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable pointing at the config file.
const EnvVar = "LOCKBOX_CONFIG"

// Config is the lockbox CLI configuration.
type Config struct {
	// Keyring is the keyring key operations target when no --keyring
	// flag is given: "thread", "process", "session", "user", or
	// "user-session".
	Keyring string `yaml:"keyring"`

	// Keystore configures the store/fetch/forget subcommands.
	Keystore KeystoreConfig `yaml:"keystore"`
}

// KeystoreConfig mirrors keystore.Config in file form.
type KeystoreConfig struct {
	// Service namespaces keystore entries.
	Service string `yaml:"service"`

	// LinkPersistent links entries into the user's persistent keyring.
	LinkPersistent bool `yaml:"link_persistent"`

	// Timeout is a kernel expiry applied to stored entries, as a Go
	// duration string ("12h", "30m"). Empty means no expiry.
	Timeout string `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Keyring: "session",
		Keystore: KeystoreConfig{
			Service:        "default",
			LinkPersistent: true,
		},
	}
}

// Load reads configuration from path, or from $LOCKBOX_CONFIG when
// path is empty, or returns Default when neither is set. Fields
// absent from the file keep their default values.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return config, nil
}

// Validate checks field values; it does not touch the kernel.
func (c Config) Validate() error {
	switch c.Keyring {
	case "thread", "process", "session", "user", "user-session":
	default:
		return fmt.Errorf("unknown keyring %q (want thread, process, session, user, or user-session)", c.Keyring)
	}
	if c.Keystore.Service == "" {
		return fmt.Errorf("keystore.service must not be empty")
	}
	if _, err := c.StoreTimeout(); err != nil {
		return err
	}
	return nil
}

// StoreTimeout parses the keystore timeout field. Zero when unset.
func (c Config) StoreTimeout() (time.Duration, error) {
	if c.Keystore.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Keystore.Timeout)
	if err != nil {
		return 0, fmt.Errorf("keystore.timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("keystore.timeout must not be negative")
	}
	return timeout, nil
}
