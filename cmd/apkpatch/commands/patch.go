// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/apkpatch/cmd/apkpatch/cli"
	"github.com/bureau-foundation/apkpatch/lib/apk"
	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/backup"
	"github.com/bureau-foundation/apkpatch/lib/config"
)

// patchOutcome is one package's entry in patch --json output.
type patchOutcome struct {
	Path   string           `json:"path"`
	Result *apk.PatchResult `json:"result"`
}

func patchCommand(out io.Writer, shared *settings) *cli.Command {
	var output cli.JSONOutput
	var withBackup bool
	var backupDirectory string

	return &cli.Command{
		Name:    "patch",
		Summary: "Make packages debuggable",
		Description: `Set android:debuggable="true" on the application element of each
package. Packages that are already debuggable are left untouched.

The manifest is decoded, edited, and decoded again in memory before the
container is rewritten, so a failure never leaves a half-written package.
With --backup (or backup.enabled in the configuration) the original
manifest is saved first and can be put back with "apkpatch restore".`,
		Usage: "apkpatch patch [flags] <apk>...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("patch", pflag.ContinueOnError)
			shared.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.BoolVar(&withBackup, "backup", false, "save the original manifest before rewriting")
			flagSet.StringVar(&backupDirectory, "backup-dir", "", "backup directory (overrides the config file)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one package path is required")
			}
			cfg, logger, err := shared.load()
			if err != nil {
				return err
			}
			if withBackup {
				cfg.Backup.Enabled = true
			}
			if backupDirectory != "" {
				cfg.Backup.Directory = backupDirectory
			}
			logger = logger.With("command", "patch")

			// Packages are patched in order and the first failure
			// stops the run; outcomes of packages already rewritten
			// are still reported.
			outcomes := make([]patchOutcome, 0, len(args))
			var patchErr error
			for _, path := range args {
				result, err := patchOne(path, cfg, logger)
				if err != nil {
					patchErr = fmt.Errorf("patching %s: %w", path, err)
					break
				}
				outcomes = append(outcomes, patchOutcome{Path: path, Result: result})
			}

			if done, err := output.EmitJSON(out, outcomes); done {
				return errors.Join(patchErr, err)
			}
			for _, outcome := range outcomes {
				printPatchOutcome(out, outcome)
			}
			return patchErr
		},
	}
}

func patchOne(path string, cfg *config.Config, logger *slog.Logger) (*apk.PatchResult, error) {
	pkg, err := openPackage(path, cfg, logger)
	if err != nil {
		return nil, err
	}
	return pkg.PatchToDebuggable()
}

func printPatchOutcome(out io.Writer, outcome patchOutcome) {
	result := outcome.Result
	if result.AlreadyDebuggable {
		yellow.Fprintf(out, "already debuggable")
		fmt.Fprintf(out, "  %s\n", outcome.Path)
		return
	}

	green.Fprintf(out, "patched")
	fmt.Fprintf(out, "  %s\n", outcome.Path)
	action := "overwrote"
	if result.Inserted {
		action = "inserted"
	}
	faint.Fprintf(out, "  %s android:debuggable, manifest %d -> %d bytes, %s\n",
		action, result.OriginalSize, result.PatchedSize, archive.FormatHash(result.PatchedDigest)[:16])
	if result.Backup != "" {
		faint.Fprintf(out, "  backup: %s\n", result.Backup)
	}
	faint.Fprintf(out, "  re-sign the package before installing it\n")
}

func statusCommand(out io.Writer, shared *settings) *cli.Command {
	var output cli.JSONOutput

	return &cli.Command{
		Name:    "status",
		Summary: "Report whether a package is debuggable",
		Description: `Report whether the application element carries android:debuggable
with a true value. Exits 1 when the package is not debuggable, so the
command can gate a script step.`,
		Usage: "apkpatch status [flags] <apk>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			shared.addFlags(flagSet)
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one package path is required")
			}
			cfg, logger, err := shared.load()
			if err != nil {
				return err
			}
			pkg, err := openPackage(args[0], cfg, logger.With("command", "status"))
			if err != nil {
				return err
			}
			debuggable, err := pkg.IsDebuggable()
			if err != nil {
				return err
			}

			done, err := output.EmitJSON(out, map[string]any{
				"path":       args[0],
				"debuggable": debuggable,
			})
			if !done {
				if debuggable {
					green.Fprintf(out, "debuggable")
				} else {
					yellow.Fprintf(out, "not debuggable")
				}
				fmt.Fprintf(out, "  %s\n", args[0])
			}
			if err != nil {
				return err
			}
			if !debuggable {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func restoreCommand(out io.Writer, shared *settings) *cli.Command {
	var output cli.JSONOutput
	var dump bool
	var backupDirectory string

	return &cli.Command{
		Name:    "restore",
		Summary: "Put a backed-up manifest back into a package",
		Description: `Write the entry saved in a backup snapshot back into the package. The
snapshot's content hash is verified before anything is written. Without
a snapshot path the newest snapshot of the package in the backup
directory is used.

With --dump the snapshot is printed in CBOR diagnostic notation instead
and no package is needed.`,
		Usage: "apkpatch restore [flags] <apk> [snapshot]\n  apkpatch restore --dump <snapshot>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("restore", pflag.ContinueOnError)
			shared.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.BoolVar(&dump, "dump", false, "print the snapshot record instead of restoring it")
			flagSet.StringVar(&backupDirectory, "backup-dir", "", "backup directory (overrides the config file)")
			return flagSet
		},
		Run: func(args []string) error {
			if dump {
				if len(args) != 1 {
					return fmt.Errorf("--dump takes exactly one snapshot path")
				}
				notation, err := backup.Diagnose(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, notation)
				return err
			}

			if len(args) == 0 || len(args) > 2 {
				return fmt.Errorf("a package path and an optional snapshot path are required")
			}
			cfg, logger, err := shared.load()
			if err != nil {
				return err
			}
			if backupDirectory != "" {
				cfg.Backup.Directory = backupDirectory
			}
			logger = logger.With("command", "restore")
			pkg, err := openPackage(args[0], cfg, logger)
			if err != nil {
				return err
			}
			store, err := backupStore(cfg, logger)
			if err != nil {
				return err
			}

			// Load once for the report; Restore verifies again before
			// writing.
			var snapshot *backup.Snapshot
			if len(args) == 2 {
				snapshot, err = store.Load(args[1])
			} else {
				snapshot, err = store.Latest(args[0])
			}
			if err != nil {
				return err
			}
			if err := pkg.Restore(snapshot.Path); err != nil {
				return err
			}

			if done, err := output.EmitJSON(out, snapshot); done {
				return err
			}
			green.Fprintf(out, "restored")
			fmt.Fprintf(out, "  %s from %s\n", snapshot.Entry, snapshot.Path)
			faint.Fprintf(out, "  snapshot taken %s from %s\n", snapshot.Created.Format("2006-01-02 15:04:05 MST"), snapshot.Archive)
			return nil
		},
	}
}
