// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for apkpatch.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The command tree is assembled in cmd/apkpatch/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and help output with examples.
//
// An unknown subcommand or flag gets a suggestion when a known name is
// within Levenshtein distance 3 (suggest.go).
//
// Output helpers: [JSONOutput] adds a --json flag and [WriteJSON]
// writes indented JSON; [NewCommandLogger] builds the slog logger
// commands log through; [ExitError] ends a command with a non-zero
// exit code after it has printed its own result.
package cli
