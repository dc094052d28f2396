// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"fmt"
	"strings"
)

// KeyType names a kernel key type. The kernel matches types by string;
// the constants below cover the types usable from unprivileged user
// space. Other in-kernel types (e.g. "asymmetric", "trusted") can be
// named directly when the kernel has them registered.
type KeyType string

const (
	// TypeUser is the general-purpose type: an opaque blob of up to
	// 32767 bytes, readable and updatable from user space.
	TypeUser KeyType = "user"

	// TypeKeyring is the container type. Keyring payloads are the
	// serial numbers of the linked keys; add_key with this type and an
	// empty payload creates a new keyring.
	TypeKeyring KeyType = "keyring"

	// TypeLogon is like "user" but the payload can never be read back
	// from user space. The description must be qualified with a
	// "service:" prefix.
	TypeLogon KeyType = "logon"

	// TypeBigKey is like "user" but holds up to 1 MiB, potentially
	// stored swapped-out in tmpfs rather than kernel memory.
	TypeBigKey KeyType = "big_key"
)

// maxTypeLen and maxDescLen are kernel limits from
// security/keys/internal.h (KEY_MAX_TYPE_SIZE includes the NUL,
// KEY_MAX_DESC_SIZE likewise).
const (
	maxTypeLen = 31
	maxDescLen = 4095
)

// Validate checks that t is acceptable as the type argument of
// add_key(2)/request_key(2): non-empty, at most 31 bytes of printable
// ASCII, no NUL, and not starting with '.' (dot-prefixed types are
// reserved for the kernel's internal use).
func (t KeyType) Validate() error {
	if t == "" {
		return &Error{Op: "validate", Kind: KindInvalidArgument}
	}
	if len(t) > maxTypeLen {
		return &Error{Op: "validate", Kind: KindInvalidArgument}
	}
	if strings.HasPrefix(string(t), ".") {
		return &Error{Op: "validate", Kind: KindInvalidArgument}
	}
	for i := 0; i < len(t); i++ {
		if t[i] < 0x20 || t[i] > 0x7e {
			return &Error{Op: "validate", Kind: KindInvalidArgument}
		}
	}
	return nil
}

func (t KeyType) String() string { return string(t) }

// ValidateDescription checks a key description against kernel limits:
// at most 4095 bytes with no embedded NUL, non-empty except for
// keyrings (where an empty description names an anonymous keyring is
// still rejected by the kernel, so empty is rejected here for all
// types), and containing a "service:" prefix for logon keys. The
// description must not itself embed ';', which the kernel uses as the
// field separator in describe output.
func ValidateDescription(t KeyType, description string) error {
	if description == "" {
		return fmt.Errorf("keyctl: empty description: %w", &Error{Op: "validate", Kind: KindInvalidArgument})
	}
	if len(description) > maxDescLen {
		return fmt.Errorf("keyctl: description exceeds %d bytes: %w", maxDescLen, &Error{Op: "validate", Kind: KindInvalidArgument})
	}
	if strings.ContainsAny(description, "\x00;") {
		return fmt.Errorf("keyctl: description contains reserved byte: %w", &Error{Op: "validate", Kind: KindInvalidArgument})
	}
	if t == TypeLogon && !strings.Contains(description, ":") {
		return fmt.Errorf("keyctl: logon descriptions require a service prefix: %w", &Error{Op: "validate", Kind: KindInvalidArgument})
	}
	return nil
}
