// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lockbox.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keyring != "session" {
		t.Errorf("Keyring = %q, want %q", cfg.Keyring, "session")
	}
	if cfg.Keystore.Service != "default" {
		t.Errorf("Keystore.Service = %q, want %q", cfg.Keystore.Service, "default")
	}
	if !cfg.Keystore.LinkPersistent {
		t.Error("Keystore.LinkPersistent = false, want true")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
keyring: user
keystore:
  service: ci
  link_persistent: false
  timeout: 12h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keyring != "user" {
		t.Errorf("Keyring = %q", cfg.Keyring)
	}
	if cfg.Keystore.Service != "ci" {
		t.Errorf("Keystore.Service = %q", cfg.Keystore.Service)
	}
	if cfg.Keystore.LinkPersistent {
		t.Error("Keystore.LinkPersistent = true")
	}
	timeout, err := cfg.StoreTimeout()
	if err != nil {
		t.Fatalf("StoreTimeout: %v", err)
	}
	if timeout != 12*time.Hour {
		t.Errorf("StoreTimeout = %v, want 12h", timeout)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "keyring: process\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keyring != "process" {
		t.Errorf("Keyring = %q", cfg.Keyring)
	}
	// Unset fields keep their defaults.
	if cfg.Keystore.Service != "default" {
		t.Errorf("Keystore.Service = %q, want default", cfg.Keystore.Service)
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "keyring: thread\n")
	t.Setenv(EnvVar, path)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keyring != "thread" {
		t.Errorf("Keyring = %q", cfg.Keyring)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	envPath := writeConfig(t, "keyring: thread\n")
	flagPath := writeConfig(t, "keyring: user\n")
	t.Setenv(EnvVar, envPath)
	cfg, err := Load(flagPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Keyring != "user" {
		t.Errorf("Keyring = %q, want the flag path's value", cfg.Keyring)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown keyring", "keyring: surprise\n"},
		{"empty service", "keystore:\n  service: \"\"\n"},
		{"bad timeout", "keystore:\n  timeout: soon\n"},
		{"negative timeout", "keystore:\n  timeout: -5m\n"},
		{"malformed yaml", "keyring: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
