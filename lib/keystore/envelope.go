// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"bytes"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/lockbox-foundation/lockbox/lib/secmem"
)

// Store entries are written to the kernel as a small versioned
// envelope so that attributes and creation time travel with the
// secret. The envelope is CBOR with Core Deterministic Encoding
// (RFC 8949 §4.2) prefixed by the self-described CBOR magic
// (RFC 8949 §3.4.6), which makes envelope detection exact: payloads
// written by other tools lack the magic and are surfaced as bare
// secrets with no attributes.

// envelopeMagic is the self-described CBOR tag 55799 in encoded form.
var envelopeMagic = []byte{0xd9, 0xd9, 0xf7}

const envelopeVersion = 1

type envelope struct {
	Version    int               `cbor:"v"`
	Secret     []byte            `cbor:"secret"`
	Attributes map[string]string `cbor:"attrs,omitempty"`
	Created    time.Time         `cbor:"created"`
}

// encMode uses deterministic encoding: identical entries produce
// identical kernel payloads, so re-running Set with unchanged inputs
// is an observable no-op apart from the timestamp.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields, so older
// binaries can read envelopes written by newer ones.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("keystore: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("keystore: CBOR decoder initialization failed: " + err.Error())
	}
}

// sealEnvelope encodes a secret and its attributes into a kernel
// payload. The caller owns zeroing the returned slice after handing
// it to the kernel.
func sealEnvelope(secret []byte, attributes map[string]string, now time.Time) ([]byte, error) {
	encoded, err := encMode.Marshal(envelope{
		Version:    envelopeVersion,
		Secret:     secret,
		Attributes: attributes,
		Created:    now.UTC().Truncate(time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: encoding envelope: %w", err)
	}
	payload := make([]byte, 0, len(envelopeMagic)+len(encoded))
	payload = append(payload, envelopeMagic...)
	payload = append(payload, encoded...)
	secmem.Wipe(encoded)
	return payload, nil
}

// openEnvelope interprets a payload read from the kernel. Envelope
// payloads are unpacked: the secret moves to a fresh locked buffer
// and the raw payload buffer is closed. Payloads without the magic
// are returned as-is with nil attributes; envelopes of a version this
// binary does not know fail rather than being misread.
func openEnvelope(payload *secmem.Buffer) (*secmem.Buffer, map[string]string, error) {
	raw := payload.Bytes()
	if !bytes.HasPrefix(raw, envelopeMagic) {
		return payload, nil, nil
	}

	var env envelope
	if err := decMode.Unmarshal(raw[len(envelopeMagic):], &env); err != nil {
		payload.Close()
		return nil, nil, fmt.Errorf("keystore: decoding envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		payload.Close()
		secmem.Wipe(env.Secret)
		return nil, nil, fmt.Errorf("keystore: unsupported envelope version %d", env.Version)
	}

	secret, err := secmem.FromBytes(env.Secret)
	payload.Close()
	if err != nil {
		return nil, nil, err
	}
	return secret, env.Attributes, nil
}
