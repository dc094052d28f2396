// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package secmem

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// maxSecretSize bounds secrets read from external sources. The kernel
// caps "user" key payloads at 32767 bytes; anything larger is a
// mistake, not a secret.
const maxSecretSize = 32767

// ReadSecret obtains a secret from path into a locked buffer. Three
// sources are recognized:
//
//   - "-" with stdin on a terminal: prompt (written to stderr) and
//     read a line with echo disabled.
//   - "-" with stdin redirected: read stdin to EOF.
//   - anything else: read the named file.
//
// Surrounding whitespace is trimmed and the intermediate plaintext is
// zeroed before return. An empty secret after trimming is an error.
func ReadSecret(path, prompt string) (*Buffer, error) {
	var data []byte
	var err error

	switch {
	case path == "-" && term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Fprintf(os.Stderr, "%s: ", prompt)
		data, err = term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("secmem: reading password: %w", err)
		}
	case path == "-":
		data, err = io.ReadAll(io.LimitReader(os.Stdin, maxSecretSize+1))
		if err != nil {
			return nil, fmt.Errorf("secmem: reading stdin: %w", err)
		}
	default:
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("secmem: %w", err)
		}
	}

	if len(data) > maxSecretSize {
		Wipe(data)
		return nil, fmt.Errorf("secmem: secret exceeds %d bytes", maxSecretSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Wipe(data)
		return nil, fmt.Errorf("secmem: secret is empty")
	}

	// FromBytes zeroes trimmed; wipe the whitespace it excluded too.
	buffer, err := FromBytes(trimmed)
	Wipe(data)
	return buffer, err
}
