// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import (
	"strconv"
	"strings"
)

// Metadata is the parsed form of the kernel's describe output for a
// key or keyring: `type;uid;gid;perm;description`, with perm as a
// hexadecimal mask. The kernel may insert additional semicolon-
// separated fields between gid and description in future ABIs; the
// parser pins the current five-field layout and reports ParseError on
// anything else, since silently guessing field positions would
// misattribute values.
type Metadata struct {
	Type        KeyType
	UID         int
	GID         int
	Perm        KeyPerm
	Description string
}

// parseMetadata parses kernel describe text. The description is the
// final field and may itself contain semicolons, so the split is
// bounded at five parts.
func parseMetadata(raw string) (Metadata, error) {
	fields := strings.SplitN(raw, ";", 5)
	if len(fields) != 5 {
		return Metadata{}, &ParseError{Raw: raw, Reason: "expected 5 semicolon-separated fields"}
	}

	// Kernel-internal types (".request_key_auth") are valid here even
	// though Validate rejects them for add_key arguments.
	typ := KeyType(fields[0])
	if typ == "" {
		return Metadata{}, &ParseError{Raw: raw, Reason: "empty type field"}
	}

	uid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Metadata{}, &ParseError{Raw: raw, Reason: "non-numeric uid field"}
	}

	gid, err := strconv.Atoi(fields[2])
	if err != nil {
		return Metadata{}, &ParseError{Raw: raw, Reason: "non-numeric gid field"}
	}

	mask, err := strconv.ParseUint(fields[3], 16, 32)
	if err != nil {
		return Metadata{}, &ParseError{Raw: raw, Reason: "non-hexadecimal perm field"}
	}

	return Metadata{
		Type:        typ,
		UID:         uid,
		GID:         gid,
		Perm:        PermFromRaw(uint32(mask)),
		Description: fields[4],
	}, nil
}
