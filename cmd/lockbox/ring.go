// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/lockbox-foundation/lockbox/lib/keyctl"
)

func runSearch(args []string) error {
	var common commonFlags
	flags := newFlagSet("search", &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("usage: lockbox search [flags] <type> <description>")
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	ring, err := targetKeyring(&common, cfg)
	if err != nil {
		return err
	}

	slog.Debug("searching", "type", flags.Arg(0), "description", flags.Arg(1), "keyring", ring.Serial())
	key, err := ring.Search(keyctl.KeyType(flags.Arg(0)), flags.Arg(1))
	if err != nil {
		return err
	}
	fmt.Println(int32(key.Serial()))
	return nil
}

func runList(args []string) error {
	var common commonFlags
	var asJSON bool
	flags := newFlagSet("list", &common)
	flags.BoolVar(&asJSON, "json", false, "emit JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	ring, err := targetKeyring(&common, cfg)
	if err != nil {
		return err
	}

	keys, err := ring.List()
	if err != nil {
		return err
	}

	// Describe each child. A key can be revoked or unlinked between
	// the list and describe calls; report what the kernel says
	// instead of failing the whole listing.
	rows := make([]describeJSON, 0, len(keys))
	for _, key := range keys {
		row := describeJSON{Serial: int32(key.Serial())}
		meta, err := key.Describe()
		if err != nil {
			row.Description = fmt.Sprintf("(describe failed: %v)", err)
		} else {
			row.Type = string(meta.Type)
			row.UID = meta.UID
			row.GID = meta.GID
			row.Perm = fmt.Sprintf("%08x", meta.Perm.Raw())
			row.Description = meta.Description
		}
		rows = append(rows, row)
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIAL\tTYPE\tUID\tGID\tPERM\tDESCRIPTION")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			row.Serial, row.Type, row.UID, row.GID, row.Perm, row.Description)
	}
	return tw.Flush()
}

func runLink(args []string) error {
	return runLinkOp("link", args, keyctl.Key.LinkInto)
}

func runUnlink(args []string) error {
	return runLinkOp("unlink", args, keyctl.Key.UnlinkFrom)
}

func runLinkOp(name string, args []string, op func(keyctl.Key, keyctl.Keyring) error) error {
	var common commonFlags
	flags := newFlagSet(name, &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	key, err := keyArg(flags)
	if err != nil {
		return err
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	ring, err := targetKeyring(&common, cfg)
	if err != nil {
		return err
	}
	slog.Debug(name, "key", key.Serial(), "keyring", ring.Serial())
	return op(key, ring)
}

func runClear(args []string) error {
	var common commonFlags
	flags := newFlagSet("clear", &common)
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	ring, err := targetKeyring(&common, cfg)
	if err != nil {
		return err
	}
	slog.Debug("clearing keyring", "keyring", ring.Serial())
	return ring.Clear()
}
