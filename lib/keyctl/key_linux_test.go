// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"bytes"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

var testKeyCounter atomic.Int64

// uniqueDesc returns a description no other test (or earlier run in
// the same session keyring) will collide with.
func uniqueDesc(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("lockbox-test-%s-%d-%d-%d",
		t.Name(), os.Getpid(), time.Now().UnixNano(), testKeyCounter.Add(1))
}

// testKeyring creates a scratch keyring in the session keyring and
// removes it when the test ends. Tests skip when the kernel key
// facility is unavailable (CONFIG_KEYS=n or a locked-down session
// keyring, common in minimal containers).
func testKeyring(t *testing.T) Keyring {
	t.Helper()
	session, err := SessionKeyring()
	if err != nil {
		t.Skipf("session keyring unavailable: %v", err)
	}
	ring, err := session.AddKeyring(uniqueDesc(t))
	if err != nil {
		t.Skipf("cannot create keyring in session keyring: %v", err)
	}
	t.Cleanup(func() {
		// Best effort; the test may already have invalidated it.
		_ = ring.Key.Invalidate()
	})
	return ring
}

func TestAddReadRoundTrip(t *testing.T) {
	ring := testKeyring(t)
	payload := []byte("correct horse battery staple")

	key, err := ring.AddKey(TypeUser, uniqueDesc(t), payload)
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if key.Serial() <= 0 {
		t.Fatalf("AddKey returned serial %d", key.Serial())
	}

	got, err := key.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Read = %q, want %q", got, payload)
	}
}

func TestAddKeySameDescriptionDisplaces(t *testing.T) {
	ring := testKeyring(t)
	desc := uniqueDesc(t)

	first, err := ring.AddKey(TypeUser, desc, []byte("one"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	second, err := ring.AddKey(TypeUser, desc, []byte("two"))
	if err != nil {
		t.Fatalf("AddKey (second): %v", err)
	}
	// Same type and description in the same keyring updates in place.
	if first.Serial() != second.Serial() {
		t.Logf("kernel created a fresh key (%d -> %d), also valid", first.Serial(), second.Serial())
	}
	got, err := ring.Search(TypeUser, desc)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	payload, err := got.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(payload) != "two" {
		t.Errorf("payload after re-add = %q, want %q", payload, "two")
	}
}

func TestUpdateThenRead(t *testing.T) {
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), []byte("before"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := key.Update([]byte("after")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := key.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "after" {
		t.Errorf("Read = %q, want %q", got, "after")
	}
}

func TestReadInto(t *testing.T) {
	ring := testKeyring(t)
	payload := []byte("0123456789")
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), payload)
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	// Sizing call.
	size, err := key.ReadInto(nil)
	if err != nil {
		t.Fatalf("ReadInto(nil): %v", err)
	}
	if size != len(payload) {
		t.Fatalf("ReadInto(nil) = %d, want %d", size, len(payload))
	}

	buffer := make([]byte, size)
	n, err := key.ReadInto(buffer)
	if err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	if !bytes.Equal(buffer[:n], payload) {
		t.Errorf("ReadInto = %q, want %q", buffer[:n], payload)
	}

	// Undersized buffer reports the required length, never truncates
	// silently.
	short := make([]byte, 3)
	n, err = key.ReadInto(short)
	if !IsRetryable(err) {
		t.Fatalf("ReadInto(short) error = %v, want buffer-too-small", err)
	}
	if n != len(payload) {
		t.Errorf("ReadInto(short) = %d, want required length %d", n, len(payload))
	}
}

func TestDescribe(t *testing.T) {
	ring := testKeyring(t)
	desc := uniqueDesc(t)
	key, err := ring.AddKey(TypeUser, desc, []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	meta, err := key.Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if meta.Type != TypeUser {
		t.Errorf("Type = %q, want %q", meta.Type, TypeUser)
	}
	if meta.Description != desc {
		t.Errorf("Description = %q, want %q", meta.Description, desc)
	}
	if meta.UID != os.Getuid() {
		t.Errorf("UID = %d, want %d", meta.UID, os.Getuid())
	}
	if meta.GID != os.Getgid() {
		t.Errorf("GID = %d, want %d", meta.GID, os.Getgid())
	}
	// New user keys come up possessor-all, user view.
	if !meta.Perm.Can(SubjectPossessor, CapRead) {
		t.Errorf("possessor cannot read fresh key, perm = %s", meta.Perm)
	}
}

func TestRevokeThenRead(t *testing.T) {
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := key.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := key.Read(); !IsRevoked(err) {
		t.Errorf("Read after Revoke = %v, want revoked", err)
	}
	if _, err := key.Describe(); !IsRevoked(err) {
		t.Errorf("Describe after Revoke = %v, want revoked", err)
	}
}

func TestInvalidateThenSearch(t *testing.T) {
	ring := testKeyring(t)
	desc := uniqueDesc(t)
	key, err := ring.AddKey(TypeUser, desc, []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := key.Invalidate(); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	// Invalidation hides the key from search immediately.
	if _, err := ring.Search(TypeUser, desc); !IsNotFound(err) {
		t.Errorf("Search after Invalidate = %v, want not found", err)
	}
}

func TestSetTimeoutExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a kernel expiry")
	}
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := key.SetTimeout(time.Second); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := key.Read()
		if IsExpired(err) {
			return
		}
		if err != nil {
			t.Fatalf("Read while waiting for expiry: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("key did not expire")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestSetTimeoutRejectsNegative(t *testing.T) {
	key := KeyFromSerial(1)
	err := key.SetTimeout(-time.Second)
	if !kindIs(err, KindInvalidArgument) {
		t.Errorf("SetTimeout(-1s) = %v, want invalid argument", err)
	}
}

func TestSetTimeoutRoundsSubSecondUp(t *testing.T) {
	for _, tt := range []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
	} {
		got, err := wholeSeconds("set_timeout", tt.d)
		if err != nil {
			t.Fatalf("wholeSeconds(%v): %v", tt.d, err)
		}
		if got != tt.want {
			t.Errorf("wholeSeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestSetPermDeniesRead(t *testing.T) {
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	// Keep view and setattr so the mask can be inspected and restored.
	locked := NewPerm(CapView|CapSetAttr, CapView|CapSetAttr, 0, 0)
	if err := key.SetPerm(locked); err != nil {
		t.Fatalf("SetPerm: %v", err)
	}
	if _, err := key.Read(); !IsAccessDenied(err) {
		t.Errorf("Read without read permission = %v, want access denied", err)
	}

	meta, err := key.Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if meta.Perm.Raw() != locked.Raw() {
		t.Errorf("mask after SetPerm = %#x, want %#x", meta.Perm.Raw(), locked.Raw())
	}

	if err := key.SetPerm(NewPerm(CapAll, CapAll, 0, 0)); err != nil {
		t.Fatalf("SetPerm (restore): %v", err)
	}
	if _, err := key.Read(); err != nil {
		t.Errorf("Read after restoring permissions: %v", err)
	}
}

func TestChownSelfNoop(t *testing.T) {
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	// -1/-1 leaves both untouched and must succeed for the owner.
	if err := key.Chown(-1, -1); err != nil {
		t.Errorf("Chown(-1, -1): %v", err)
	}
	if err := key.Chown(-1, os.Getgid()); err != nil {
		t.Errorf("Chown(-1, own gid): %v", err)
	}
}

func TestLogonKeyUnreadable(t *testing.T) {
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeLogon, "lockbox:"+uniqueDesc(t), []byte("secret"))
	if err != nil {
		t.Skipf("logon key type unavailable: %v", err)
	}
	if _, err := key.Read(); err == nil {
		t.Error("Read on a logon key succeeded, want failure")
	}
}

// TestServiceTokenLifecycle walks one key through the whole surface:
// add, read back, lock down permissions, revoke.
func TestServiceTokenLifecycle(t *testing.T) {
	ring := testKeyring(t)
	desc := "svc-token-" + uniqueDesc(t)

	key, err := ring.AddKey(TypeUser, desc, []byte("secret123"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	got, err := key.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "secret123" {
		t.Fatalf("Read = %q", got)
	}

	perm := NewPerm(CapView|CapRead|CapWrite|CapSearch|CapLink, CapView|CapRead, 0, 0)
	if got, want := perm.Raw(), uint32(0x1f030000); got != want {
		t.Fatalf("mask = %#x, want %#x", got, want)
	}
	if err := key.SetPerm(perm); err != nil {
		t.Fatalf("SetPerm: %v", err)
	}

	if err := key.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := key.Read(); !IsRevoked(err) {
		t.Errorf("Read after Revoke = %v, want revoked", err)
	}
}

func TestOperationsOnMissingKey(t *testing.T) {
	ring := testKeyring(t)
	key, err := ring.AddKey(TypeUser, uniqueDesc(t), []byte("x"))
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := key.Invalidate(); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	// Invalidated keys disappear; the stale handle must fail cleanly,
	// not panic. The exact kind depends on garbage collection timing.
	if _, err := key.Read(); err == nil {
		t.Error("Read on an invalidated key succeeded")
	}
}
