// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"golang.org/x/sys/unix"
)

// This file is the sole boundary to the kernel: every raw add_key(2),
// request_key(2), and keyctl(2) invocation in the package happens here,
// through golang.org/x/sys/unix. Each function wraps exactly one
// opcode (or, for variable-length results, the two-call size-then-fill
// sequence) and translates errno into the taxonomy.

func addKey(typ KeyType, description string, payload []byte, dest KeySerial) (KeySerial, error) {
	if err := typ.Validate(); err != nil {
		return 0, err
	}
	if err := ValidateDescription(typ, description); err != nil {
		return 0, err
	}
	id, err := unix.AddKey(string(typ), description, payload, int(dest))
	if err != nil {
		return 0, wrapErrno("add_key", err)
	}
	return KeySerial(id), nil
}

// requestKey searches the calling process's keyrings, possibly
// triggering a kernel upcall to construct the key. calloutInfo is
// passed to the upcall verbatim; an empty string is passed as a
// zero-length callout rather than a null pointer.
func requestKey(typ KeyType, description, calloutInfo string, dest KeySerial) (KeySerial, error) {
	if err := typ.Validate(); err != nil {
		return 0, err
	}
	if err := ValidateDescription(typ, description); err != nil {
		return 0, err
	}
	id, err := unix.RequestKey(string(typ), description, calloutInfo, int(dest))
	if err != nil {
		return 0, wrapErrno("request_key", err)
	}
	return KeySerial(id), nil
}

// getKeyringID resolves a special keyring identifier to its real
// serial (KEYCTL_GET_KEYRING_ID). With create set, keyrings that do
// not yet exist for the caller (thread, process) are created.
func getKeyringID(id KeySerial, create bool) (KeySerial, error) {
	real, err := unix.KeyctlGetKeyringID(int(id), create)
	if err != nil {
		return 0, wrapErrno("get_keyring_id", err)
	}
	return KeySerial(real), nil
}

func joinSessionKeyring(name string) (KeySerial, error) {
	id, err := unix.KeyctlJoinSessionKeyring(name)
	if err != nil {
		return 0, wrapErrno("join_session_keyring", err)
	}
	return KeySerial(id), nil
}

// getPersistent resolves the calling user's persistent keyring,
// creating it if needed, and links it into dest (KEYCTL_GET_PERSISTENT
// with uid -1 = current). Each call resets the persistent keyring's
// kernel-side expiry.
func getPersistent(dest KeySerial) (KeySerial, error) {
	id, err := unix.KeyctlInt(unix.KEYCTL_GET_PERSISTENT, -1, int(dest), 0, 0)
	if err != nil {
		return 0, wrapErrno("get_persistent", err)
	}
	return KeySerial(id), nil
}

// sizedRead implements the two-pass size-then-fill protocol shared by
// KEYCTL_READ, KEYCTL_DESCRIBE, and KEYCTL_GET_SECURITY. The first
// call with a nil buffer reports the current size; the second fills a
// buffer of exactly that size. The kernel object can change between
// the calls: if it grew, the second call reports a length larger than
// the buffer (having filled only what fits) and this returns
// KindBufferTooSmall rather than the truncated bytes. Retrying is the
// caller's decision.
func sizedRead(op string, cmd int, id KeySerial) ([]byte, error) {
	size, err := unix.KeyctlBuffer(cmd, int(id), nil, 0)
	if err != nil {
		return nil, wrapErrno(op, err)
	}
	if size == 0 {
		return nil, nil
	}
	buffer := make([]byte, size)
	n, err := unix.KeyctlBuffer(cmd, int(id), buffer, 0)
	if err != nil {
		return nil, wrapErrno(op, err)
	}
	if n > len(buffer) {
		return nil, &Error{Op: op, Kind: KindBufferTooSmall}
	}
	return buffer[:n], nil
}

// readInto is the single-call variant of KEYCTL_READ for callers that
// manage their own buffers (e.g. locked memory). A nil buffer returns
// the currently required size without copying. A result longer than
// the buffer means the payload did not fit; the buffer contents are
// then unspecified and the call fails with KindBufferTooSmall.
func readInto(id KeySerial, buffer []byte) (int, error) {
	n, err := unix.KeyctlBuffer(unix.KEYCTL_READ, int(id), buffer, 0)
	if err != nil {
		return 0, wrapErrno("read", err)
	}
	if buffer != nil && n > len(buffer) {
		return n, &Error{Op: "read", Kind: KindBufferTooSmall}
	}
	return n, nil
}

func keyUpdate(id KeySerial, payload []byte) error {
	if _, err := unix.KeyctlBuffer(unix.KEYCTL_UPDATE, int(id), payload, 0); err != nil {
		return wrapErrno("update", err)
	}
	return nil
}

func keyRevoke(id KeySerial) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_REVOKE, int(id), 0, 0, 0); err != nil {
		return wrapErrno("revoke", err)
	}
	return nil
}

func keyInvalidate(id KeySerial) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_INVALIDATE, int(id), 0, 0, 0); err != nil {
		return wrapErrno("invalidate", err)
	}
	return nil
}

// keyReject negatively instantiates an under-construction key with the
// given cached errno, expiring after timeoutSeconds.
func keyReject(id KeySerial, timeoutSeconds int, errno unix.Errno) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_REJECT, int(id), timeoutSeconds, int(errno), 0); err != nil {
		return wrapErrno("reject", err)
	}
	return nil
}

func keyChown(id KeySerial, uid, gid int) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_CHOWN, int(id), uid, gid, 0); err != nil {
		return wrapErrno("chown", err)
	}
	return nil
}

func keySetPerm(id KeySerial, perm KeyPerm) error {
	if err := unix.KeyctlSetperm(int(id), perm.Raw()); err != nil {
		return wrapErrno("setperm", err)
	}
	return nil
}

// keySetTimeout schedules kernel-side expiry. Zero clears any
// existing timeout.
func keySetTimeout(id KeySerial, seconds int) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_SET_TIMEOUT, int(id), seconds, 0, 0); err != nil {
		return wrapErrno("set_timeout", err)
	}
	return nil
}

func keyLink(key, ring KeySerial) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_LINK, int(key), int(ring), 0, 0); err != nil {
		return wrapErrno("link", err)
	}
	return nil
}

func keyUnlink(key, ring KeySerial) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_UNLINK, int(key), int(ring), 0, 0); err != nil {
		return wrapErrno("unlink", err)
	}
	return nil
}

func keyClear(ring KeySerial) error {
	if _, err := unix.KeyctlInt(unix.KEYCTL_CLEAR, int(ring), 0, 0, 0); err != nil {
		return wrapErrno("clear", err)
	}
	return nil
}

func keySearch(ring KeySerial, typ KeyType, description string) (KeySerial, error) {
	if err := typ.Validate(); err != nil {
		return 0, err
	}
	if err := ValidateDescription(typ, description); err != nil {
		return 0, err
	}
	// destRingid 0: the found key is not linked anywhere as a side
	// effect of the search.
	id, err := unix.KeyctlSearch(int(ring), string(typ), description, 0)
	if err != nil {
		return 0, wrapErrno("search", err)
	}
	return KeySerial(id), nil
}

func setReqKeyKeyring(ring DefaultKeyring) (DefaultKeyring, error) {
	previous, err := unix.KeyctlInt(unix.KEYCTL_SET_REQKEY_KEYRING, int(ring), 0, 0, 0)
	if err != nil {
		return 0, wrapErrno("set_reqkey_keyring", err)
	}
	return DefaultKeyring(previous), nil
}
