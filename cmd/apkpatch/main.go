// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// apkpatch inspects Android packages and makes them debuggable by
// rewriting the binary AndroidManifest.xml in place.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/apkpatch/cmd/apkpatch/commands"
)

func main() {
	if err := commands.Root().Execute(os.Args[1:]); err != nil {
		// Commands that print their own result (like status) return an
		// ExitError with the desired exit code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
