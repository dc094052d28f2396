// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/lockbox-foundation/lockbox/lib/config"
	"github.com/lockbox-foundation/lockbox/lib/keystore"
	"github.com/lockbox-foundation/lockbox/lib/secmem"
)

// openStore builds a keystore handle from configuration, with
// --service overriding the configured namespace.
func openStore(cfg config.Config, service string) (*keystore.Store, error) {
	if service == "" {
		service = cfg.Keystore.Service
	}
	timeout, err := cfg.StoreTimeout()
	if err != nil {
		return nil, err
	}
	return keystore.Open(keystore.Config{
		Service:        service,
		LinkPersistent: cfg.Keystore.LinkPersistent,
		Timeout:        timeout,
	})
}

func storeFlags(name string, common *commonFlags, service *string) *pflag.FlagSet {
	flags := newFlagSet(name, common)
	flags.StringVar(service, "service", "", "entry namespace (overrides config)")
	return flags
}

func runStore(args []string) error {
	var common commonFlags
	var service, from string
	flags := storeFlags("store", &common, &service)
	flags.StringVar(&from, "from", "-", "secret source: a file path, or - for stdin/prompt")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: lockbox store [flags] <name>")
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, service)
	if err != nil {
		return err
	}

	name := flags.Arg(0)
	secret, err := secmem.ReadSecret(from, "secret for "+name)
	if err != nil {
		return err
	}
	defer secret.Close()

	slog.Debug("storing entry", "name", name)
	return store.Set(name, secret.Bytes(), nil)
}

func runFetch(args []string) error {
	var common commonFlags
	var service string
	flags := storeFlags("fetch", &common, &service)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: lockbox fetch [flags] <name>")
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, service)
	if err != nil {
		return err
	}

	secret, _, err := store.Get(flags.Arg(0))
	if err != nil {
		return err
	}
	defer secret.Close()
	_, err = os.Stdout.Write(secret.Bytes())
	return err
}

func runForget(args []string) error {
	var common commonFlags
	var service string
	flags := storeFlags("forget", &common, &service)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: lockbox forget [flags] <name>")
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, service)
	if err != nil {
		return err
	}
	slog.Debug("forgetting entry", "name", flags.Arg(0))
	return store.Delete(flags.Arg(0))
}

func runEntries(args []string) error {
	var common commonFlags
	var service string
	flags := storeFlags("entries", &common, &service)
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := setup(&common)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, service)
	if err != nil {
		return err
	}

	names, err := store.Entries()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
