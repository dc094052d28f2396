// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keyctl

import "strings"

// Capability is one subject class's 8-bit permission field. The bit
// meanings are kernel ABI, from include/linux/key.h (KEY_OTH_* shifted
// to the low byte).
type Capability uint8

const (
	// CapView permits reading the key's describe attributes.
	CapView Capability = 0x01
	// CapRead permits reading the key's payload (or listing a keyring).
	CapRead Capability = 0x02
	// CapWrite permits updating the payload (or linking/unlinking
	// through a keyring).
	CapWrite Capability = 0x04
	// CapSearch permits finding the key by search (or searching
	// through a keyring).
	CapSearch Capability = 0x08
	// CapLink permits linking the key into a keyring.
	CapLink Capability = 0x10
	// CapSetAttr permits changing ownership, permissions, and timeout.
	CapSetAttr Capability = 0x20
	// CapAll is every defined capability.
	CapAll Capability = 0x3f
)

// Subject is a permission subject class: who a capability field applies
// to. Possessor is the process holding a valid link/search path to the
// key, distinct from the owning UID.
type Subject uint

const (
	SubjectOther Subject = iota
	SubjectGroup
	SubjectUser
	SubjectPossessor
)

// shift returns the bit offset of the subject's byte within the raw mask.
func (s Subject) shift() uint { return uint(s) * 8 }

// KeyPerm is the kernel's 32-bit key permission mask: four independent
// 8-bit capability fields, one per subject class. In MSB-first order
// the fields are possessor, user, group, other.
//
// Values built with [NewPerm] or [Capability] combinators never set
// bits outside the defined capability set. [PermFromRaw] accepts any
// mask verbatim so kernel-reported values round-trip bit-for-bit even
// when they carry bits this package does not model.
type KeyPerm uint32

// NewPerm builds a permission mask from the four subject fields.
func NewPerm(possessor, user, group, other Capability) KeyPerm {
	return KeyPerm(possessor)<<SubjectPossessor.shift() |
		KeyPerm(user)<<SubjectUser.shift() |
		KeyPerm(group)<<SubjectGroup.shift() |
		KeyPerm(other)<<SubjectOther.shift()
}

// PermFromRaw wraps a kernel-reported mask without interpretation.
// PermFromRaw(m).Raw() == m for every m.
func PermFromRaw(mask uint32) KeyPerm { return KeyPerm(mask) }

// Raw returns the mask as the kernel expects it in KEYCTL_SETPERM.
func (p KeyPerm) Raw() uint32 { return uint32(p) }

// Union returns the field-wise bitwise OR of p and q.
func (p KeyPerm) Union(q KeyPerm) KeyPerm { return p | q }

// Grant returns p with the given capabilities added for one subject.
func (p KeyPerm) Grant(s Subject, c Capability) KeyPerm {
	return p | KeyPerm(c)<<s.shift()
}

// Can reports whether every bit of c is granted to subject s.
func (p KeyPerm) Can(s Subject, c Capability) bool {
	return Capability(p>>s.shift())&c == c
}

// Possessor returns the possessor capability field.
func (p KeyPerm) Possessor() Capability { return Capability(p >> SubjectPossessor.shift()) }

// User returns the owning-UID capability field.
func (p KeyPerm) User() Capability { return Capability(p >> SubjectUser.shift()) }

// Group returns the owning-GID capability field.
func (p KeyPerm) Group() Capability { return Capability(p >> SubjectGroup.shift()) }

// Other returns the everyone-else capability field.
func (p KeyPerm) Other() Capability { return Capability(p >> SubjectOther.shift()) }

// String renders the mask the way keyctl(1) describe does: one
// "alswrv"-style group per subject, most significant first
// (possessor, user, group, other). Unmodeled bits are not rendered;
// use Raw for the exact value.
func (p KeyPerm) String() string {
	var b strings.Builder
	for _, s := range []Subject{SubjectPossessor, SubjectUser, SubjectGroup, SubjectOther} {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		field := Capability(p >> s.shift())
		for i, c := range []Capability{CapSetAttr, CapLink, CapSearch, CapWrite, CapRead, CapView} {
			if field&c != 0 {
				b.WriteByte("alswrv"[i])
			} else {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}
