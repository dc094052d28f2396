// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyctl provides a typed interface to the Linux kernel key
// management facility (keyrings), wrapping the add_key(2),
// request_key(2), and keyctl(2) system calls.
//
// Keys and keyrings live entirely in the kernel. A [Key] or [Keyring]
// value wraps a [KeySerial] identifier — a weak handle, not an owned
// resource. Copying a handle never duplicates the kernel object, and
// dropping one never destroys it; keys are destroyed only by explicit
// [Key.Revoke], [Key.Invalidate], unlinking of their last link, or
// kernel-side expiry. Because the kernel object is shared and
// externally mutable, handles cache nothing: every operation re-queries
// the kernel and can fail with "not found" or "revoked" at any time.
//
// Well-known keyrings (session, user, persistent, ...) are resolved via
// [Special] or the convenience constructors [SessionKeyring],
// [UserKeyring], [ThreadKeyring], [ProcessKeyring], [UserSessionKeyring],
// and [PersistentKeyring].
//
// Errors reported by the kernel are mapped to a closed taxonomy
// ([ErrorKind]) so callers can distinguish "not found" from "no
// permission" from "quota exceeded" from "negatively instantiated".
// Locally detected failures parsing kernel describe output are a
// separate [ParseError], since they indicate ABI drift rather than a
// resource condition.
//
// Variable-length results (payload reads, describe text, keyring
// listings) use the kernel's two-pass size-then-fill protocol. The
// kernel object can grow between the two calls; when that happens the
// operation fails with [KindBufferTooSmall] instead of silently
// truncating, and the whole operation may be retried by the caller.
// This package never retries internally.
//
// No operation here holds in-process mutable state, so all types are
// safe for concurrent use from multiple goroutines; the kernel
// serializes the individual syscalls. No atomicity is provided across
// a sequence of calls — a key observed by Describe can be revoked
// before a following Read.
//
// Depends on golang.org/x/sys/unix. Linux only.
package keyctl
