// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrorKind is the closed taxonomy of kernel-reported failure
// conditions. Every errno the key facility can return maps to exactly
// one kind; codes this package does not recognize map to [KindOther]
// with the raw errno preserved on the [Error].
type ErrorKind int

const (
	// KindOther is the forward-compatibility catch-all for errno
	// values outside the known set.
	KindOther ErrorKind = iota

	// KindAccessDenied: the key exists but the caller lacks the
	// required permission (EACCES/EPERM).
	KindAccessDenied

	// KindNotFound: no matching key, or the keyring does not exist
	// (ENOKEY). By kernel design, searching without search permission
	// also reports this rather than KindAccessDenied, to avoid leaking
	// key existence.
	KindNotFound

	// KindRevoked: the key has been revoked and is awaiting garbage
	// collection (EKEYREVOKED).
	KindRevoked

	// KindExpired: the key's timeout has passed (EKEYEXPIRED).
	KindExpired

	// KindNegative: the key is negatively instantiated — a prior
	// construction attempt failed and the failure is being cached
	// (EKEYREJECTED). Distinct from KindNotFound so callers can avoid
	// pointless re-requests.
	KindNegative

	// KindTypeNotFound: the named key type is not registered with the
	// kernel (ENODEV).
	KindTypeNotFound

	// KindQuotaExceeded: creating or linking the key would exceed the
	// owning user's key quota (EDQUOT).
	KindQuotaExceeded

	// KindExists: the object already exists (EEXIST), e.g. restricting
	// an already-restricted keyring.
	KindExists

	// KindInvalidArgument: argument lengths or values rejected by the
	// kernel, or by this package's local validation (EINVAL).
	KindInvalidArgument

	// KindBufferTooSmall: a two-pass read raced with a kernel-side
	// update and the payload grew past the sized buffer. The whole
	// operation is safe to retry; this package never retries
	// internally.
	KindBufferTooSmall

	// KindReadOnly: the keyring is read-only for the caller's
	// credentials (EROFS), e.g. the session keyring of another
	// namespace.
	KindReadOnly

	// KindBadAddress: a buffer fell outside the accessible address
	// space (EFAULT). Indicates a bug in this package, surfaced rather
	// than hidden.
	KindBadAddress

	// KindNotSupported: the key type does not support the operation
	// (EOPNOTSUPP), e.g. updating a "keyring" key.
	KindNotSupported

	// KindOutOfMemory: insufficient kernel memory (ENOMEM).
	KindOutOfMemory
)

func (k ErrorKind) String() string {
	switch k {
	case KindAccessDenied:
		return "access denied"
	case KindNotFound:
		return "key not found"
	case KindRevoked:
		return "key revoked"
	case KindExpired:
		return "key expired"
	case KindNegative:
		return "key negatively instantiated"
	case KindTypeNotFound:
		return "key type not found"
	case KindQuotaExceeded:
		return "key quota exceeded"
	case KindExists:
		return "already exists"
	case KindInvalidArgument:
		return "invalid argument"
	case KindBufferTooSmall:
		return "buffer too small"
	case KindReadOnly:
		return "read-only keyring"
	case KindBadAddress:
		return "bad buffer address"
	case KindNotSupported:
		return "operation not supported by key type"
	case KindOutOfMemory:
		return "out of kernel memory"
	default:
		return "unrecognized kernel error"
	}
}

// Error is a kernel-reported key operation failure. Op names the
// failing operation ("read", "search", "add_key", ...), Kind classifies
// it, and Errno preserves the raw code for diagnostics (zero for
// conditions detected locally, such as KindBufferTooSmall from the
// two-pass protocol or argument validation).
type Error struct {
	Op    string
	Kind  ErrorKind
	Errno unix.Errno
}

func (e *Error) Error() string {
	if e.Errno == 0 {
		return fmt.Sprintf("keyctl %s: %s", e.Op, e.Kind)
	}
	if e.Kind == KindOther {
		return fmt.Sprintf("keyctl %s: errno %d (%v)", e.Op, int(e.Errno), e.Errno)
	}
	return fmt.Sprintf("keyctl %s: %s (%v)", e.Op, e.Kind, e.Errno)
}

// Unwrap exposes the raw errno so errors.Is(err, unix.ENOKEY) and
// friends keep working for callers that match on system errors.
func (e *Error) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return e.Errno
}

// ParseError reports kernel describe output that did not match the
// expected `type;uid;gid;perm;description` format. This is detected
// locally and indicates kernel ABI drift, not a resource condition,
// so it is deliberately not an [Error].
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("keyctl describe: malformed output %q: %s", e.Raw, e.Reason)
}

// kindOf maps an errno to its taxonomy kind. ENOTSUP and EOPNOTSUPP
// are the same value on Linux.
func kindOf(errno unix.Errno) ErrorKind {
	switch errno {
	case unix.EACCES, unix.EPERM:
		return KindAccessDenied
	case unix.ENOKEY:
		return KindNotFound
	case unix.EKEYREVOKED:
		return KindRevoked
	case unix.EKEYEXPIRED:
		return KindExpired
	case unix.EKEYREJECTED:
		return KindNegative
	case unix.ENODEV:
		return KindTypeNotFound
	case unix.EDQUOT:
		return KindQuotaExceeded
	case unix.EEXIST:
		return KindExists
	case unix.EINVAL:
		return KindInvalidArgument
	case unix.EROFS:
		return KindReadOnly
	case unix.EFAULT:
		return KindBadAddress
	case unix.EOPNOTSUPP:
		return KindNotSupported
	case unix.ENOMEM:
		return KindOutOfMemory
	default:
		return KindOther
	}
}

// wrapErrno converts a syscall failure into a taxonomy *Error. err is
// expected to be a unix.Errno (as golang.org/x/sys returns); anything
// else becomes KindOther with errno zero.
func wrapErrno(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &Error{Op: op, Kind: kindOf(errno), Errno: errno}
	}
	return &Error{Op: op, Kind: KindOther}
}

// kindIs reports whether err is a taxonomy error of the given kind.
func kindIs(err error, kind ErrorKind) bool {
	var keyError *Error
	return errors.As(err, &keyError) && keyError.Kind == kind
}

// IsNotFound reports whether err means no matching key exists.
func IsNotFound(err error) bool { return kindIs(err, KindNotFound) }

// IsAccessDenied reports whether err is a permission failure.
func IsAccessDenied(err error) bool { return kindIs(err, KindAccessDenied) }

// IsRevoked reports whether err names a revoked key.
func IsRevoked(err error) bool { return kindIs(err, KindRevoked) }

// IsExpired reports whether err names an expired key.
func IsExpired(err error) bool { return kindIs(err, KindExpired) }

// IsNegative reports whether err names a negatively instantiated key.
func IsNegative(err error) bool { return kindIs(err, KindNegative) }

// IsQuotaExceeded reports whether err is a key quota failure.
func IsQuotaExceeded(err error) bool { return kindIs(err, KindQuotaExceeded) }

// IsRetryable reports whether err came from a two-pass read losing a
// race with a kernel-side update, in which case repeating the whole
// operation is reasonable. Callers own the retry policy and should
// bound their attempts: a fast-mutating key can lose this race
// indefinitely.
func IsRetryable(err error) bool { return kindIs(err, KindBufferTooSmall) }
