// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the apkpatch command tree.
package commands

import (
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/bureau-foundation/apkpatch/cmd/apkpatch/cli"
)

// Root builds and returns the complete apkpatch command tree, writing
// results to stdout.
func Root() *cli.Command {
	return newRoot(color.Output, &settings{})
}

// newRoot builds the tree around out and shared settings.
func newRoot(out io.Writer, shared *settings) *cli.Command {
	return &cli.Command{
		Name: "apkpatch",
		Description: `apkpatch: inspect and patch Android packages.

Decodes the binary AndroidManifest.xml inside an APK, reports what it
declares, and sets android:debuggable="true" on the application element.
The container is rewritten in place; every other entry keeps its
compressed bytes. A patched package must be re-signed before install.`,
		HelpOutput: os.Stderr,
		Subcommands: []*cli.Command{
			patchCommand(out, shared),
			statusCommand(out, shared),
			inspectCommand(out, shared),
			listCommand(out, shared),
			extractCommand(out, shared),
			restoreCommand(out, shared),
		},
		Examples: []cli.Example{
			{
				Description: "Make a package debuggable, keeping a backup of the manifest",
				Command:     "apkpatch patch --backup app.apk",
			},
			{
				Description: "Fail a script step unless the package is debuggable",
				Command:     "apkpatch status app.apk",
			},
		},
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)
