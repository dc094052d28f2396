// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestSpecialKeyringValues(t *testing.T) {
	// These are kernel ABI constants; pin them against x/sys/unix.
	tests := []struct {
		serial KeySerial
		want   int
	}{
		{KeyringThread, unix.KEY_SPEC_THREAD_KEYRING},
		{KeyringProcess, unix.KEY_SPEC_PROCESS_KEYRING},
		{KeyringSession, unix.KEY_SPEC_SESSION_KEYRING},
		{KeyringUser, unix.KEY_SPEC_USER_KEYRING},
		{KeyringUserSession, unix.KEY_SPEC_USER_SESSION_KEYRING},
		{KeyringGroup, unix.KEY_SPEC_GROUP_KEYRING},
		{KeyringReqKeyAuth, unix.KEY_SPEC_REQKEY_AUTH_KEY},
	}
	for _, tt := range tests {
		if int(tt.serial) != tt.want {
			t.Errorf("%s = %d, want %d", tt.serial, int32(tt.serial), tt.want)
		}
	}
}

func TestDefaultKeyringValues(t *testing.T) {
	tests := []struct {
		def  DefaultKeyring
		want int
	}{
		{DefaultNoChange, unix.KEY_REQKEY_DEFL_NO_CHANGE},
		{DefaultDefault, unix.KEY_REQKEY_DEFL_DEFAULT},
		{DefaultThreadKeyring, unix.KEY_REQKEY_DEFL_THREAD_KEYRING},
		{DefaultProcessKeyring, unix.KEY_REQKEY_DEFL_PROCESS_KEYRING},
		{DefaultSessionKeyring, unix.KEY_REQKEY_DEFL_SESSION_KEYRING},
		{DefaultUserKeyring, unix.KEY_REQKEY_DEFL_USER_KEYRING},
		{DefaultUserSessionKeyring, unix.KEY_REQKEY_DEFL_USER_SESSION_KEYRING},
		{DefaultGroupKeyring, unix.KEY_REQKEY_DEFL_GROUP_KEYRING},
		{DefaultRequestorKeyring, unix.KEY_REQKEY_DEFL_REQUESTOR_KEYRING},
	}
	for _, tt := range tests {
		if int(tt.def) != tt.want {
			t.Errorf("DefaultKeyring %d, want %d", int32(tt.def), tt.want)
		}
	}
}

func TestSerialValid(t *testing.T) {
	valid := []KeySerial{1, 42, 1 << 30, KeyringThread, KeyringReqKeyAuth, KeyringSession}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("(%d).Valid() = false", int32(s))
		}
	}
	invalid := []KeySerial{0, -8, -100}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("(%d).Valid() = true", int32(s))
		}
	}
}

func TestSerialString(t *testing.T) {
	if got := KeyringSession.String(); got != "session-keyring" {
		t.Errorf("KeyringSession.String() = %q", got)
	}
	if got := KeySerial(12345).String(); got != "key:12345" {
		t.Errorf("KeySerial(12345).String() = %q", got)
	}
}
