// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/lockbox-foundation/lockbox/lib/keyctl"
	"github.com/lockbox-foundation/lockbox/lib/secmem"
)

// runAdd adds a key of the given type and description to the target
// keyring, reading the payload from --from ("-" prompts on a
// terminal).
func runAdd(args []string) error {
	var common commonFlags
	var from string
	flags := newFlagSet("add", &common)
	flags.StringVar(&from, "from", "-", "payload source: a file path, or - for stdin/prompt")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: lockbox add [flags] <type> <description>")
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	ring, err := targetKeyring(&common, cfg)
	if err != nil {
		return err
	}

	typ := keyctl.KeyType(flags.Arg(0))
	payload, err := secmem.ReadSecret(from, "secret")
	if err != nil {
		return err
	}
	defer payload.Close()

	slog.Debug("adding key", "type", typ, "description", flags.Arg(1), "keyring", ring.Serial())
	key, err := ring.AddKey(typ, flags.Arg(1), payload.Bytes())
	if err != nil {
		return err
	}
	fmt.Println(int32(key.Serial()))
	return nil
}

func runRead(args []string) error {
	var common commonFlags
	flags := newFlagSet("read", &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	if _, err := setup(&common); err != nil {
		return err
	}

	slog.Debug("reading key", "key", key.Serial())
	payload, err := key.Read()
	if err != nil {
		return err
	}
	defer secmem.Wipe(payload)
	_, err = os.Stdout.Write(payload)
	return err
}

func runDescribe(args []string) error {
	var common commonFlags
	var asJSON bool
	flags := newFlagSet("describe", &common)
	flags.BoolVar(&asJSON, "json", false, "emit JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	if _, err := setup(&common); err != nil {
		return err
	}

	meta, err := key.Describe()
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(describeJSON{
			Serial:      int32(key.Serial()),
			Type:        string(meta.Type),
			UID:         meta.UID,
			GID:         meta.GID,
			Perm:        fmt.Sprintf("%08x", meta.Perm.Raw()),
			Description: meta.Description,
		})
	}
	fmt.Printf("%d: %s  %s  uid=%d gid=%d  %s\n",
		int32(key.Serial()), meta.Type, meta.Perm, meta.UID, meta.GID, meta.Description)
	return nil
}

type describeJSON struct {
	Serial      int32  `json:"serial"`
	Type        string `json:"type"`
	UID         int    `json:"uid"`
	GID         int    `json:"gid"`
	Perm        string `json:"perm"`
	Description string `json:"description"`
}

func runUpdate(args []string) error {
	var common commonFlags
	var from string
	flags := newFlagSet("update", &common)
	flags.StringVar(&from, "from", "-", "payload source: a file path, or - for stdin/prompt")
	if err := flags.Parse(args); err != nil {
		return err
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	if _, err := setup(&common); err != nil {
		return err
	}

	payload, err := secmem.ReadSecret(from, "new secret")
	if err != nil {
		return err
	}
	defer payload.Close()

	slog.Debug("updating key", "key", key.Serial())
	return key.Update(payload.Bytes())
}

func runRevoke(args []string) error {
	return runKeyOp("revoke", args, keyctl.Key.Revoke)
}

func runInvalidate(args []string) error {
	return runKeyOp("invalidate", args, keyctl.Key.Invalidate)
}

// runKeyOp handles the argument-less destructive operations.
func runKeyOp(name string, args []string, op func(keyctl.Key) error) error {
	var common commonFlags
	flags := newFlagSet(name, &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	if _, err := setup(&common); err != nil {
		return err
	}
	slog.Debug(name, "key", key.Serial())
	return op(key)
}

func runTimeout(args []string) error {
	var common commonFlags
	flags := newFlagSet("timeout", &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: lockbox timeout [flags] <key> <duration>")
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	timeout, err := time.ParseDuration(flags.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", flags.Arg(1), err)
	}
	if _, err := setup(&common); err != nil {
		return err
	}
	slog.Debug("setting timeout", "key", key.Serial(), "timeout", timeout)
	return key.SetTimeout(timeout)
}

func runChown(args []string) error {
	var common commonFlags
	flags := newFlagSet("chown", &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return fmt.Errorf("usage: lockbox chown [flags] <key> <uid> <gid>")
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(flags.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid uid %q", flags.Arg(1))
	}
	gid, err := strconv.Atoi(flags.Arg(2))
	if err != nil {
		return fmt.Errorf("invalid gid %q", flags.Arg(2))
	}
	if _, err := setup(&common); err != nil {
		return err
	}
	return key.Chown(uid, gid)
}

func runChmod(args []string) error {
	var common commonFlags
	flags := newFlagSet("chmod", &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: lockbox chmod [flags] <key> <hex-mask>")
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	mask, err := strconv.ParseUint(flags.Arg(1), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid permission mask %q (want hex, e.g. 3f3f0000)", flags.Arg(1))
	}
	if _, err := setup(&common); err != nil {
		return err
	}
	perm := keyctl.PermFromRaw(uint32(mask))
	slog.Debug("setting permissions", "key", key.Serial(), "perm", perm.String())
	return key.SetPerm(perm)
}

func runRequest(args []string) error {
	var common commonFlags
	var callout string
	flags := newFlagSet("request", &common)
	flags.StringVar(&callout, "callout", "", "callout info passed to the kernel upcall")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: lockbox request [flags] <type> <description>")
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	ring, err := targetKeyring(&common, cfg)
	if err != nil {
		return err
	}

	slog.Debug("requesting key", "type", flags.Arg(0), "description", flags.Arg(1))
	key, err := ring.Request(keyctl.KeyType(flags.Arg(0)), flags.Arg(1), callout)
	if err != nil {
		return err
	}
	fmt.Println(int32(key.Serial()))
	return nil
}
