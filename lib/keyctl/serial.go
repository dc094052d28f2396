// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import "fmt"

// KeySerial is the kernel's 32-bit identifier for a key or keyring.
// Positive values name real keys assigned by the kernel; the negative
// constants below are special identifiers the kernel resolves to
// per-thread, per-process, per-session, or per-user keyrings at the
// point of use. Zero is never a valid serial.
//
// A KeySerial is a weak reference: holding one guarantees nothing about
// the referent, which may have been revoked, expired, or garbage
// collected since the serial was obtained.
type KeySerial int32

// Special keyring identifiers, from include/uapi/linux/keyctl.h
// (KEY_SPEC_*). These values are kernel ABI and must not be renumbered.
const (
	// KeyringThread is the calling thread's keyring.
	KeyringThread KeySerial = -1
	// KeyringProcess is the calling process's keyring.
	KeyringProcess KeySerial = -2
	// KeyringSession is the session keyring.
	KeyringSession KeySerial = -3
	// KeyringUser is the UID-specific keyring.
	KeyringUser KeySerial = -4
	// KeyringUserSession is the UID-session keyring.
	KeyringUserSession KeySerial = -5
	// KeyringGroup is the GID-specific keyring. Defined by the ABI but
	// not implemented by any current kernel.
	KeyringGroup KeySerial = -6
	// KeyringReqKeyAuth is the assumed request_key(2) authorization key.
	KeyringReqKeyAuth KeySerial = -7
)

// DefaultKeyring selects which keyring request_key(2) instantiation
// upcalls attach new keys to. Values from KEY_REQKEY_DEFL_*.
type DefaultKeyring int32

const (
	DefaultNoChange           DefaultKeyring = -1
	DefaultDefault            DefaultKeyring = 0
	DefaultThreadKeyring      DefaultKeyring = 1
	DefaultProcessKeyring     DefaultKeyring = 2
	DefaultSessionKeyring     DefaultKeyring = 3
	DefaultUserKeyring        DefaultKeyring = 4
	DefaultUserSessionKeyring DefaultKeyring = 5
	DefaultGroupKeyring       DefaultKeyring = 6
	DefaultRequestorKeyring   DefaultKeyring = 7
)

// Valid reports whether s could name a kernel key: a positive serial
// or one of the special keyring identifiers.
func (s KeySerial) Valid() bool {
	return s > 0 || (s >= KeyringReqKeyAuth && s <= KeyringThread)
}

func (s KeySerial) String() string {
	switch s {
	case KeyringThread:
		return "thread-keyring"
	case KeyringProcess:
		return "process-keyring"
	case KeyringSession:
		return "session-keyring"
	case KeyringUser:
		return "user-keyring"
	case KeyringUserSession:
		return "user-session-keyring"
	case KeyringGroup:
		return "group-keyring"
	case KeyringReqKeyAuth:
		return "reqkey-auth-key"
	default:
		return fmt.Sprintf("key:%d", int32(s))
	}
}
