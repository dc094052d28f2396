// Copyright 2026 The Lockbox Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/lockbox-foundation/lockbox/lib/config"
	"github.com/lockbox-foundation/lockbox/lib/keyctl"
)

const version = "0.3.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcommand := os.Args[1]
	args := os.Args[2:]
	switch subcommand {
	case "add":
		return runAdd(args)
	case "read":
		return runRead(args)
	case "describe":
		return runDescribe(args)
	case "update":
		return runUpdate(args)
	case "revoke":
		return runRevoke(args)
	case "invalidate":
		return runInvalidate(args)
	case "timeout":
		return runTimeout(args)
	case "chown":
		return runChown(args)
	case "chmod":
		return runChmod(args)
	case "request":
		return runRequest(args)
	case "search":
		return runSearch(args)
	case "list":
		return runList(args)
	case "link":
		return runLink(args)
	case "unlink":
		return runUnlink(args)
	case "clear":
		return runClear(args)
	case "store":
		return runStore(args)
	case "fetch":
		return runFetch(args)
	case "forget":
		return runForget(args)
	case "entries":
		return runEntries(args)
	case "version":
		fmt.Printf("lockbox %s\n", version)
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: lockbox <subcommand> [flags] [args]

Key operations:
  add <type> <description>       Add a key (secret from --from, default stdin)
  read <key>                     Print a key's payload
  describe <key>                 Show a key's attributes
  update <key>                   Replace a key's payload
  revoke <key>                   Revoke a key (stays linked, errors on access)
  invalidate <key>               Invalidate a key (immediately unlinked everywhere)
  timeout <key> <duration>       Set kernel expiry ("0" clears)
  chown <key> <uid> <gid>        Change owner/group (-1 keeps current)
  chmod <key> <mask>             Set the permission mask (hex)
  request <type> <description>   request_key(2) with upcall construction

Keyring operations:
  search <type> <description>    Find a key in the target keyring tree
  list                           List keys linked to the target keyring
  link <key>                     Link a key into the target keyring
  unlink <key>                   Unlink a key from the target keyring
  clear                          Unlink everything from the target keyring

Keystore:
  store <name>                   Store a named secret
  fetch <name>                   Retrieve a named secret
  forget <name>                  Delete a named secret
  entries                        List stored entry names

  version                        Print version information

Keys are numeric serials. The target keyring comes from --keyring, the
config file ($LOCKBOX_CONFIG or --config), or defaults to the session
keyring.
`)
}

// commonFlags are shared by every subcommand's flag set.
type commonFlags struct {
	configPath string
	keyring    string
	verbose    bool
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringVar(&common.configPath, "config", "", "config file (overrides $LOCKBOX_CONFIG)")
	flags.StringVar(&common.keyring, "keyring", "", "target keyring: thread, process, session, user, user-session, or a serial")
	flags.BoolVarP(&common.verbose, "verbose", "v", false, "log each kernel operation to stderr")
	return flags
}

// setup loads configuration and applies logging, returning the config.
func setup(common *commonFlags) (config.Config, error) {
	level := slog.LevelWarn
	if common.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return config.Load(common.configPath)
}

// targetKeyring resolves the keyring named by --keyring (falling back
// to the config default): a well-known name or a numeric serial.
func targetKeyring(common *commonFlags, cfg config.Config) (keyctl.Keyring, error) {
	name := common.keyring
	if name == "" {
		name = cfg.Keyring
	}
	switch name {
	case "thread":
		return keyctl.ThreadKeyring()
	case "process":
		return keyctl.ProcessKeyring()
	case "session":
		return keyctl.SessionKeyring()
	case "user":
		return keyctl.UserKeyring()
	case "user-session":
		return keyctl.UserSessionKeyring()
	}
	serial, err := parseSerial(name)
	if err != nil {
		return keyctl.Keyring{}, fmt.Errorf("unknown keyring %q", name)
	}
	return keyctl.KeyringFromSerial(serial), nil
}

// parseSerial parses a numeric key serial argument.
func parseSerial(arg string) (keyctl.KeySerial, error) {
	value, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key serial %q", arg)
	}
	serial := keyctl.KeySerial(value)
	if !serial.Valid() {
		return 0, fmt.Errorf("invalid key serial %q", arg)
	}
	return serial, nil
}

// keyArg resolves the first positional argument as a key handle.
func keyArg(flags *pflag.FlagSet) (keyctl.Key, error) {
	if flags.NArg() < 1 {
		return keyctl.Key{}, fmt.Errorf("key serial required")
	}
	serial, err := parseSerial(flags.Arg(0))
	if err != nil {
		return keyctl.Key{}, err
	}
	return keyctl.KeyFromSerial(serial), nil
}
