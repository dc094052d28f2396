// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Keyring is a typed handle on a kernel keyring: a key whose payload
// is the set of serials it links. Keyring embeds Key, so every key
// operation (Describe, SetPerm, LinkInto, Revoke, ...) applies to
// keyrings too. Like Key it is a weak, freely copyable handle.
//
// Keyring membership is many-to-many: a key linked into several rings
// is shared by all of them, not owned by any. Link and unlink edit
// that relation; they never move or copy key material.
type Keyring struct {
	Key
}

// KeyringFromSerial wraps a known keyring identifier without any
// kernel call.
func KeyringFromSerial(serial KeySerial) Keyring {
	return Keyring{Key{serial: serial}}
}

// Special resolves one of the well-known keyring identifiers
// (KeyringSession, KeyringUser, ...) to a handle on its real serial.
// With create set, per-thread and per-process keyrings that do not
// yet exist are created; without it, resolution fails with
// KindNotFound for absent keyrings.
func Special(id KeySerial, create bool) (Keyring, error) {
	real, err := getKeyringID(id, create)
	if err != nil {
		return Keyring{}, err
	}
	return KeyringFromSerial(real), nil
}

// ThreadKeyring returns the calling thread's keyring, creating it if
// absent. Note that the Go scheduler migrates goroutines between
// threads; thread keyrings are only meaningful under
// runtime.LockOSThread.
func ThreadKeyring() (Keyring, error) { return Special(KeyringThread, true) }

// ProcessKeyring returns the process keyring, creating it if absent.
func ProcessKeyring() (Keyring, error) { return Special(KeyringProcess, true) }

// SessionKeyring returns the session keyring the process is
// subscribed to.
func SessionKeyring() (Keyring, error) { return Special(KeyringSession, false) }

// UserKeyring returns the calling user's UID keyring.
func UserKeyring() (Keyring, error) { return Special(KeyringUser, false) }

// UserSessionKeyring returns the calling user's UID-session keyring.
func UserSessionKeyring() (Keyring, error) { return Special(KeyringUserSession, false) }

// PersistentKeyring returns the calling user's persistent keyring,
// creating it if needed, and links it into dest. The kernel resets the
// persistent keyring's expiry (persistent_keyring_expiry) on every
// call, so periodic calls keep it alive across logins. Requires write
// permission on dest.
func PersistentKeyring(dest Keyring) (Keyring, error) {
	id, err := getPersistent(dest.serial)
	if err != nil {
		return Keyring{}, err
	}
	return KeyringFromSerial(id), nil
}

// JoinSessionKeyring subscribes the process to the named session
// keyring, creating it if absent, or to a fresh anonymous session
// keyring when name is empty.
func JoinSessionKeyring(name string) (Keyring, error) {
	id, err := joinSessionKeyring(name)
	if err != nil {
		return Keyring{}, err
	}
	return KeyringFromSerial(id), nil
}

// AddKey creates (or, for types that support it, updates) a key with
// this keyring as destination and returns its handle. The payload is
// passed through uninterpreted; whether an empty payload is legal is
// the key type's decision. If the ring already links a key of the
// same type and description that cannot be updated, the new key
// displaces the old link.
//
// Can produce: KindAccessDenied, KindQuotaExceeded, KindTypeNotFound,
// KindInvalidArgument, KindReadOnly, KindExists.
func (r Keyring) AddKey(typ KeyType, description string, payload []byte) (Key, error) {
	serial, err := addKey(typ, description, payload, r.serial)
	if err != nil {
		return Key{}, err
	}
	return KeyFromSerial(serial), nil
}

// AddKeyring creates a new keyring linked into this one.
func (r Keyring) AddKeyring(description string) (Keyring, error) {
	serial, err := addKey(TypeKeyring, description, nil, r.serial)
	if err != nil {
		return Keyring{}, err
	}
	return KeyringFromSerial(serial), nil
}

// Request finds a key by type and description in the process's
// keyrings, triggering the kernel's upcall construction mechanism on
// a miss, and links the result into this ring. calloutInfo is handed
// to the upcall. A cached prior failure surfaces as KindNegative, not
// as a missing key with empty content.
//
// Can produce: KindNotFound, KindNegative, KindExpired, KindRevoked,
// KindAccessDenied, KindQuotaExceeded.
func (r Keyring) Request(typ KeyType, description, calloutInfo string) (Key, error) {
	serial, err := requestKey(typ, description, calloutInfo, r.serial)
	if err != nil {
		return Key{}, err
	}
	return KeyFromSerial(serial), nil
}

// Search finds a key by exact type and description, traversing this
// ring and the keyrings nested beneath it the kernel's way
// (breadth-first, search permission checked per ring, possessor
// permission taking precedence). The traversal is entirely
// kernel-side; no ordering beyond the kernel's is imposed.
//
// Searching without permission reports KindNotFound rather than
// KindAccessDenied, by kernel design, so existence is not leaked.
func (r Keyring) Search(typ KeyType, description string) (Key, error) {
	serial, err := keySearch(r.serial, typ, description)
	if err != nil {
		return Key{}, err
	}
	return KeyFromSerial(serial), nil
}

// List returns handles for the keys and keyrings directly linked to
// this ring, in link order. The kernel serves a keyring read as an
// array of 32-bit serials in native byte order, fetched with the
// two-pass protocol (KindBufferTooSmall on a lost race, retry-
// eligible). Requires read or search permission.
func (r Keyring) List() ([]Key, error) {
	raw, err := sizedRead("read", unix.KEYCTL_READ, r.serial)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, &ParseError{Raw: string(raw), Reason: "keyring payload not a whole number of serials"}
	}
	keys := make([]Key, 0, len(raw)/4)
	for offset := 0; offset < len(raw); offset += 4 {
		serial := KeySerial(int32(binary.NativeEndian.Uint32(raw[offset:])))
		keys = append(keys, KeyFromSerial(serial))
	}
	return keys, nil
}

// Clear unlinks everything directly linked to this ring. Keys
// reachable only through a nested keyring are untouched — the kernel
// operation is not recursive, and neither is this. Requires write
// permission.
func (r Keyring) Clear() error {
	return keyClear(r.serial)
}

// SetDefaultRequestKeyring sets which keyring request_key(2) upcalls
// instantiate new keys into for the calling thread, returning the
// previous setting. This is thread state, not keyring state; it lives
// here because it only matters to users of Request.
func SetDefaultRequestKeyring(ring DefaultKeyring) (DefaultKeyring, error) {
	return setReqKeyKeyring(ring)
}
