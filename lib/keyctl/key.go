// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Key is a typed handle on a kernel key. It wraps only the serial:
// copying a Key copies the identifier, not the kernel object, and two
// Keys are equal exactly when their serials are equal. A Key holds no
// kernel state; every method re-queries the kernel and can fail with
// KindNotFound or KindRevoked if the object went away.
//
// Destructive operations (Revoke, Invalidate, UnlinkFrom) happen only
// when called explicitly. Letting a Key go out of scope never affects
// the kernel object.
type Key struct {
	serial KeySerial
}

// KeyFromSerial wraps an identifier obtained elsewhere (a previous
// run, another process, /proc/keys). No kernel call is made; the
// first operation on the handle validates liveness.
func KeyFromSerial(serial KeySerial) Key {
	return Key{serial: serial}
}

// Serial returns the kernel identifier this handle wraps.
func (k Key) Serial() KeySerial { return k.serial }

func (k Key) String() string { return k.serial.String() }

// Describe returns the key's attributes, parsed from the kernel's
// describe text. Requires view permission. Fails with *ParseError if
// the kernel output does not match the expected field layout.
//
// Can produce: KindNotFound, KindRevoked, KindExpired,
// KindAccessDenied.
func (k Key) Describe() (Metadata, error) {
	raw, err := sizedRead("describe", unix.KEYCTL_DESCRIBE, k.serial)
	if err != nil {
		return Metadata{}, err
	}
	// The kernel NUL-terminates the describe string and counts the
	// terminator in the reported length.
	return parseMetadata(strings.TrimSuffix(string(raw), "\x00"))
}

// Read returns the key's payload via the two-pass protocol. Requires
// read permission, or search permission when the key is possessed.
//
// Can produce: KindNotFound, KindRevoked, KindExpired, KindNegative,
// KindAccessDenied, KindNotSupported (types like "logon" forbid
// reading), and KindBufferTooSmall when an update races the two
// passes (retry-eligible, see IsRetryable).
func (k Key) Read() ([]byte, error) {
	return sizedRead("read", unix.KEYCTL_READ, k.serial)
}

// ReadInto fills a caller-managed buffer with the payload and returns
// the payload length, for callers that keep secrets out of the Go
// heap. A nil buffer performs only the sizing call. If the payload is
// longer than the buffer, ReadInto returns the required length and
// KindBufferTooSmall; the buffer contents are unspecified.
func (k Key) ReadInto(buffer []byte) (int, error) {
	return readInto(k.serial, buffer)
}

// Update replaces the payload in place. Requires write permission and
// a key type that supports updating; updating a negatively
// instantiated key positively re-instantiates it.
//
// Can produce: KindAccessDenied, KindNotSupported, KindQuotaExceeded,
// KindInvalidArgument.
func (k Key) Update(payload []byte) error {
	return keyUpdate(k.serial, payload)
}

// Revoke marks the key revoked. The key may remain linked into
// keyrings, but every subsequent operation on it fails with
// KindRevoked until garbage collection removes it. Not reversible.
// Requires write or setattr permission.
func (k Key) Revoke() error {
	return keyRevoke(k.serial)
}

// Invalidate marks the key invalid and schedules immediate garbage
// collection, unlinking it from all keyrings. Subsequent searches
// fail with KindNotFound at once, though the serial may briefly stay
// visible in /proc/keys. Not reversible. Requires search permission.
//
// Invalidate and Revoke are distinct kernel operations with different
// visibility semantics; neither is a synonym for the other.
func (k Key) Invalidate() error {
	return keyInvalidate(k.serial)
}

// Reject negatively instantiates a key that is under construction,
// caching a rejection for retryAfter so repeated failing requests are
// cheaply refused instead of re-attempted. Callers that hit the
// cached entry see KindNegative.
func (k Key) Reject(retryAfter time.Duration) error {
	seconds, err := wholeSeconds("reject", retryAfter)
	if err != nil {
		return err
	}
	return keyReject(k.serial, seconds, unix.EKEYREJECTED)
}

// SetTimeout schedules kernel-side expiry, after which operations
// fail with KindExpired and the key is garbage collected. A zero
// duration clears any existing timeout. Requires setattr permission;
// cannot be applied to revoked or expired keys.
func (k Key) SetTimeout(timeout time.Duration) error {
	seconds, err := wholeSeconds("set_timeout", timeout)
	if err != nil {
		return err
	}
	return keySetTimeout(k.serial, seconds)
}

// Chown changes the key's owner and group. Either can be -1 to leave
// it unchanged. The kernel is authoritative about who may do this
// (CAP_SYS_ADMIN for UID changes, group membership for GID changes);
// nothing is re-validated locally.
func (k Key) Chown(uid, gid int) error {
	return keyChown(k.serial, uid, gid)
}

// SetPerm replaces the key's permission mask. Requires setattr
// permission or ownership per kernel rules.
func (k Key) SetPerm(perm KeyPerm) error {
	return keySetPerm(k.serial, perm)
}

// GetSecurity returns the key's LSM security label (e.g. the SELinux
// context), via the two-pass protocol. Empty when no LSM is active.
func (k Key) GetSecurity() (string, error) {
	raw, err := sizedRead("get_security", unix.KEYCTL_GET_SECURITY, k.serial)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(raw), "\x00"), nil
}

// LinkInto links the key into ring. A key may be linked into any
// number of keyrings at once; each link is an independent reference
// and the key survives as long as any link (or usage) keeps it alive.
// Requires link permission on the key and write permission on the
// ring. Linking displaces an existing link to a key of the same type
// and description in that ring.
func (k Key) LinkInto(ring Keyring) error {
	return keyLink(k.serial, ring.serial)
}

// UnlinkFrom removes the key's link from ring only. Other links are
// untouched; removing the last link schedules destruction. Requires
// write permission on the ring.
func (k Key) UnlinkFrom(ring Keyring) error {
	return keyUnlink(k.serial, ring.serial)
}

// wholeSeconds converts a duration to the whole seconds the keyctl
// timeout opcodes take. Sub-second durations round up so a small
// positive timeout never silently becomes "clear the timeout".
func wholeSeconds(op string, d time.Duration) (int, error) {
	if d < 0 {
		return 0, fmt.Errorf("keyctl: negative duration %v: %w", d, &Error{Op: op, Kind: KindInvalidArgument})
	}
	seconds := int(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	return seconds, nil
}
