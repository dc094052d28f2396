// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

// Package secmem holds key material in memory the Go runtime cannot
// leak: an anonymous mmap region outside the Go heap, locked against
// swap with mlock, excluded from core dumps with madvise, and zeroed
// before release. The garbage collector never sees the region, so it
// is never copied or relocated, and closing the buffer is the single
// point where the bytes cease to exist in this process.
//
// This is the user-space counterpart to keeping secrets in kernel
// keys: payloads read out of the kernel, and payloads on their way in,
// spend their user-space lifetime in a [Buffer].
package secmem

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a fixed-capacity region of locked memory. It must not be
// copied after creation; pass the pointer. All methods are safe for
// concurrent use. Accessing a closed buffer panics — a secret read
// after release is a caller bug, not a recoverable condition.
type Buffer struct {
	mu     sync.Mutex
	region []byte // full mmap allocation
	used   int    // bytes of region holding the secret
	closed bool
}

// New allocates a locked, zero-filled buffer with room for size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secmem: buffer size must be positive, got %d", size)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secmem: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secmem: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secmem: madvise(MADV_DONTDUMP): %w", err)
	}

	return &Buffer{region: region, used: size}, nil
}

// FromBytes moves a secret out of ordinary memory: the source is
// copied into a new locked buffer and zeroed in place, so the caller's
// slice no longer holds the secret afterwards.
func FromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secmem: empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	Wipe(source)
	return buffer, nil
}

// Bytes returns the secret. The slice aliases the locked region
// directly; it is valid only until Close and must not be retained.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureOpen()
	return b.region[:b.used]
}

// String returns the secret as a string. Go strings are immutable
// heap copies, so this defeats the locking guarantees; use it only at
// API boundaries that demand a string.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureOpen()
	return string(b.region[:b.used])
}

// Len returns the secret's length in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureOpen()
	return b.used
}

// Truncate shrinks the visible secret to length bytes and zeroes the
// tail. Used after filling the buffer from a source whose exact size
// was not known up front (e.g. a kernel two-pass read that returned
// fewer bytes on the second pass).
func (b *Buffer) Truncate(length int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureOpen()
	if length < 0 || length > b.used {
		panic(fmt.Sprintf("secmem: truncate to %d outside [0,%d]", length, b.used))
	}
	Wipe(b.region[length:b.used])
	b.used = length
}

// Equal compares the secret to other in constant time.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureOpen()
	return subtle.ConstantTimeCompare(b.region[:b.used], other) == 1
}

// Close zeroes, unlocks, and unmaps the region. Idempotent. Any later
// access panics.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	Wipe(b.region)

	// Failures past this point leak nothing readable (the region is
	// zeroed); report the first one for diagnostics.
	var firstError error
	if err := unix.Munlock(b.region); err != nil {
		firstError = fmt.Errorf("secmem: munlock: %w", err)
	}
	if err := unix.Munmap(b.region); err != nil && firstError == nil {
		firstError = fmt.Errorf("secmem: munmap: %w", err)
	}
	b.region = nil
	b.used = 0
	return firstError
}

func (b *Buffer) ensureOpen() {
	if b.closed {
		panic("secmem: use of closed buffer")
	}
}

// Wipe zeroes a byte slice in place. The loop is kept trivial so the
// compiler lowers it to memclr; the slice is reachable afterwards,
// which prevents the store from being optimized away.
func Wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
