// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore is a credential store backed by kernel keyrings.
//
// Entries are named secrets scoped to a service. Each entry lives in
// the session keyring under the description "lockbox:<name>@<service>"
// and, when persistent linking is enabled, is additionally linked into
// the calling user's persistent keyring. The two links have different
// lifetimes — the session link lasts for the login session, the
// persistent link survives logout until the kernel's persistent-
// keyring expiry — and [Store.Get] refreshes both on every access, so
// an entry stays alive as long as it keeps being used from either
// side. A reboot clears everything: the store is a secure cache, and
// callers must be prepared for Get to report not-found and to re-seed
// the entry (prompting the user, a PAM hook, systemd-ask-password).
//
// Retrieved secrets are returned in locked memory (lib/secmem), never
// on the Go heap.
package keystore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lockbox-foundation/lockbox/lib/keyctl"
	"github.com/lockbox-foundation/lockbox/lib/secmem"
)

// Config controls how a Store maps entries onto kernel keyrings.
type Config struct {
	// Service namespaces entry names. Required.
	Service string

	// LinkPersistent links every entry into the user's persistent
	// keyring so it survives logout. Kernels built without persistent
	// keyring support degrade to session-only storage.
	LinkPersistent bool

	// Timeout, when nonzero, sets a kernel expiry on every entry
	// written through Set.
	Timeout time.Duration
}

// Store is a handle on the keyrings backing one service's entries.
// It holds no entry state and is safe for concurrent use.
type Store struct {
	service    string
	session    keyctl.Keyring
	persistent keyctl.Keyring
	hasPersist bool
	timeout    time.Duration
}

// Open resolves the backing keyrings. With Config.LinkPersistent set,
// the user's persistent keyring is created (or its expiry refreshed)
// and linked into the session keyring. On kernels without persistent
// keyring support the store degrades to session-only; any other
// failure resolving the persistent keyring is reported.
func Open(config Config) (*Store, error) {
	if config.Service == "" {
		return nil, fmt.Errorf("keystore: service name is required")
	}
	if config.Timeout < 0 {
		return nil, fmt.Errorf("keystore: negative timeout %v", config.Timeout)
	}

	session, err := keyctl.SessionKeyring()
	if err != nil {
		return nil, fmt.Errorf("keystore: resolving session keyring: %w", err)
	}

	store := &Store{
		service: config.Service,
		session: session,
		timeout: config.Timeout,
	}
	if config.LinkPersistent {
		persistent, err := keyctl.PersistentKeyring(session)
		switch {
		case err == nil:
			store.persistent = persistent
			store.hasPersist = true
		case persistentUnavailable(err):
			// Kernel has no persistent keyrings; session-only.
		default:
			return nil, fmt.Errorf("keystore: resolving persistent keyring: %w", err)
		}
	}
	return store, nil
}

// persistentUnavailable reports whether err means the kernel lacks
// persistent keyring support (CONFIG_PERSISTENT_KEYRINGS=n reports
// EOPNOTSUPP; kernels predating the opcode report EINVAL, some EOPNOTSUPP).
// Only those degrade Open to session-only storage; transient failures
// like EACCES or EDQUOT propagate instead of silently disabling
// persistence.
func persistentUnavailable(err error) bool {
	var keyError *keyctl.Error
	if !errors.As(err, &keyError) {
		return false
	}
	return keyError.Kind == keyctl.KindNotSupported || keyError.Kind == keyctl.KindInvalidArgument
}

// description is the kernel-visible name of an entry.
func (s *Store) description(name string) string {
	return "lockbox:" + name + "@" + s.service
}

// Set writes an entry, replacing any previous secret and attributes
// under the same name. Empty secrets are rejected up front — the
// kernel forbids zero-length "user" payloads, and failing early gives
// a clearer error than EINVAL from add_key.
func (s *Store) Set(name string, secret []byte, attributes map[string]string) error {
	if name == "" {
		return fmt.Errorf("keystore: entry name is required")
	}
	if len(secret) == 0 {
		return fmt.Errorf("keystore: secret must not be empty")
	}

	payload, err := sealEnvelope(secret, attributes, time.Now())
	if err != nil {
		return err
	}
	defer secmem.Wipe(payload)

	// add_key updates in place when an entry with this description
	// already exists, keeping its links and serial.
	key, err := s.session.AddKey(keyctl.TypeUser, s.description(name), payload)
	if err != nil {
		return fmt.Errorf("keystore: storing %q: %w", name, err)
	}

	if s.hasPersist {
		if err := key.LinkInto(s.persistent); err != nil {
			return fmt.Errorf("keystore: linking %q into persistent keyring: %w", name, err)
		}
	}
	if s.timeout > 0 {
		if err := key.SetTimeout(s.timeout); err != nil {
			return fmt.Errorf("keystore: setting timeout on %q: %w", name, err)
		}
	}
	return nil
}

// getReadAttempts bounds the two-pass read retry loop in Get. The
// race it guards against (the entry growing between the sizing and
// fill calls) requires a concurrent Set of the same entry, so one
// retry nearly always suffices; the bound keeps an adversarial writer
// from starving the reader.
const getReadAttempts = 3

// Get retrieves an entry's secret and attributes. Both backing links
// are refreshed first: finding the entry proves it is reachable, and
// re-linking resets the session and persistent lifetimes exactly as
// if the entry had been newly stored.
//
// The secret is returned in locked memory; the caller must Close it.
// Attributes are nil for entries written by other tools (payloads
// that are not lockbox envelopes).
func (s *Store) Get(name string) (*secmem.Buffer, map[string]string, error) {
	key, err := s.findEntry(name)
	if err != nil {
		return nil, nil, err
	}

	if err := key.LinkInto(s.session); err != nil {
		return nil, nil, fmt.Errorf("keystore: refreshing session link for %q: %w", name, err)
	}
	if s.hasPersist {
		if err := key.LinkInto(s.persistent); err != nil {
			return nil, nil, fmt.Errorf("keystore: refreshing persistent link for %q: %w", name, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < getReadAttempts; attempt++ {
		size, err := key.ReadInto(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("keystore: sizing %q: %w", name, err)
		}
		if size == 0 {
			return nil, nil, fmt.Errorf("keystore: entry %q has an empty payload", name)
		}

		buffer, err := secmem.New(size)
		if err != nil {
			return nil, nil, err
		}
		n, err := key.ReadInto(buffer.Bytes())
		if keyctl.IsRetryable(err) {
			// Entry grew between the passes; size and try again.
			buffer.Close()
			lastErr = err
			continue
		}
		if err != nil {
			buffer.Close()
			return nil, nil, fmt.Errorf("keystore: reading %q: %w", name, err)
		}
		buffer.Truncate(n)
		return openEnvelope(buffer)
	}
	return nil, nil, fmt.Errorf("keystore: reading %q kept racing concurrent updates: %w", name, lastErr)
}

// Delete invalidates an entry, removing it from every keyring it is
// linked into at once. The kernel's key caches can keep an
// invalidated entry findable for a few milliseconds within the same
// process; a Get immediately after Delete may still succeed.
func (s *Store) Delete(name string) error {
	key, err := s.findEntry(name)
	if err != nil {
		return err
	}
	if err := key.Invalidate(); err != nil {
		return fmt.Errorf("keystore: deleting %q: %w", name, err)
	}
	return nil
}

// Has reports whether an entry currently exists and is reachable.
func (s *Store) Has(name string) (bool, error) {
	_, err := s.findEntry(name)
	if keyctl.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Entries lists the names of this service's entries directly linked
// to the session keyring. Entries reachable only through the
// persistent keyring (after a logout) are not listed until a Get
// re-links them.
func (s *Store) Entries() ([]string, error) {
	keys, err := s.session.List()
	if err != nil {
		return nil, fmt.Errorf("keystore: listing session keyring: %w", err)
	}

	suffix := "@" + s.service
	var names []string
	for _, key := range keys {
		meta, err := key.Describe()
		if err != nil {
			// Entries can vanish between List and Describe; skip them.
			continue
		}
		if meta.Type != keyctl.TypeUser {
			continue
		}
		name, found := strings.CutPrefix(meta.Description, "lockbox:")
		if !found {
			continue
		}
		name, found = strings.CutSuffix(name, suffix)
		if !found {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// findEntry locates an entry by name via kernel search from the
// session keyring.
func (s *Store) findEntry(name string) (keyctl.Key, error) {
	if name == "" {
		return keyctl.Key{}, fmt.Errorf("keystore: entry name is required")
	}
	key, err := s.session.Search(keyctl.TypeUser, s.description(name))
	if err != nil {
		return keyctl.Key{}, fmt.Errorf("keystore: finding %q: %w", name, err)
	}
	return key, nil
}
