// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/apkpatch/cmd/apkpatch/cli"
	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/axml"
)

func inspectCommand(out io.Writer, shared *settings) *cli.Command {
	var output cli.JSONOutput
	var events bool

	return &cli.Command{
		Name:    "inspect",
		Summary: "Summarize a package manifest",
		Description: `Decode AndroidManifest.xml and print the package name, version, minimum
SDK, element count, and debuggable state. With --events the decoded
element stream is printed instead, one start or end tag per line,
highlighted as XML when stdout is a terminal.`,
		Usage: "apkpatch inspect [flags] <apk>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			shared.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.BoolVar(&events, "events", false, "print the decoded element stream")
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
			pkg, err := openPackage(args[0], cfg, logger.With("command", "inspect"))
			if err != nil {
				return err
			}

			if events {
				if output.OutputJSON {
					return fmt.Errorf("--events and --json cannot be combined")
				}
				data, err := pkg.LocateManifest()
				if err != nil {
					return err
				}
				return printEvents(out, data, !color.NoColor)
			}

			manifest, err := pkg.Inspect()
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(out, manifest); done {
				return err
			}

			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "package\t%s\n", cyan.Sprint(manifest.Package))
			fmt.Fprintf(tw, "version\t%s (%s)\n", manifest.VersionName, manifest.VersionCode)
			fmt.Fprintf(tw, "min sdk\t%s\n", manifest.MinSDKVersion)
			fmt.Fprintf(tw, "elements\t%d\n", manifest.Elements)
			fmt.Fprintf(tw, "manifest\t%d bytes, %s\n", manifest.Size, archive.FormatHash(manifest.Digest))
			debuggable := "no"
			if manifest.Debuggable {
				debuggable = "yes"
			}
			if manifest.DebuggableValue != "" {
				debuggable += " (" + manifest.DebuggableValue + ")"
			}
			fmt.Fprintf(tw, "debuggable\t%s\n", debuggable)
			return tw.Flush()
		},
	}
}

// printEvents writes the element stream as indented tags. When
// highlight is set the text is colored as XML for a terminal.
func printEvents(out io.Writer, data []byte, highlight bool) error {
	events, walkErr := axml.Events(data)
	text := eventText(events)
	if highlight {
		if err := quick.Highlight(out, text, "xml", "terminal256", "monokai"); err == nil {
			return walkErr
		}
	}
	if _, err := io.WriteString(out, text); err != nil {
		return err
	}
	return walkErr
}

// eventText renders events one tag per line. A decode failure is
// rendered as a trailing comment.
func eventText(events []axml.Event) string {
	var text strings.Builder
	for _, event := range events {
		switch event.Kind {
		case axml.EventStartTag:
			tag := event.Start
			text.WriteString(strings.Repeat("  ", tag.Depth))
			text.WriteString("<" + tag.Name.Local)
			for _, attribute := range tag.Attributes {
				fmt.Fprintf(&text, " %s=%q", attribute.Name.Local, attribute.Text())
			}
			text.WriteString(">\n")
		case axml.EventEndTag:
			fmt.Fprintf(&text, "%s</%s>\n", strings.Repeat("  ", event.End.Depth), event.End.Name.Local)
		case axml.EventCharData:
			fmt.Fprintf(&text, "%q\n", event.CharData.Text)
		case axml.EventInvalid:
			fmt.Fprintf(&text, "<!-- invalid chunk at offset %d: %s -->\n", event.Invalid.Offset, event.Invalid.Reason())
		}
	}
	return text.String()
}

// listedEntry is one entry in list --json output.
type listedEntry struct {
	archive.Entry
	Digest archive.Hash `json:"digest"`
}

func listCommand(out io.Writer, shared *settings) *cli.Command {
	var output cli.JSONOutput

	return &cli.Command{
		Name:    "list",
		Summary: "List the entries of a package",
		Description: `List every entry in directory order with its sizes, compression
method, and CRC-32. With --json each file entry also carries the
BLAKE3 digest of its uncompressed content.`,
		Usage: "apkpatch list [flags] <apk>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
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
			// Opening the package rejects a missing container, which
			// the store alone would list as empty.
			pkg, err := openPackage(args[0], cfg, logger.With("command", "list"))
			if err != nil {
				return err
			}
			store := pkg.Store()
			entries, err := store.List()
			if err != nil {
				return err
			}

			if output.OutputJSON {
				listed := make([]listedEntry, 0, len(entries))
				for _, entry := range entries {
					item := listedEntry{Entry: entry}
					if !entry.IsDir() {
						if item.Digest, err = store.Digest(entry.Path); err != nil {
							return err
						}
					}
					listed = append(listed, item)
				}
				_, err = output.EmitJSON(out, listed)
				return err
			}
			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "SIZE\tCOMPRESSED\tMETHOD\tCRC32\t\tNAME\n")
			for _, entry := range entries {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%08x\t\t%s\n",
					entry.UncompressedSize, entry.CompressedSize, entry.MethodName(), entry.CRC32, entry.Path)
			}
			return tw.Flush()
		},
	}
}

func extractCommand(out io.Writer, shared *settings) *cli.Command {
	var destination string

	return &cli.Command{
		Name:    "extract",
		Summary: "Extract entries from a package",
		Description: `Extract the named entries, or every entry when none are named, into
the destination directory. Entries whose paths would escape the
destination are refused. Extraction stops at the first failing entry
and files already written are left in place.`,
		Usage: "apkpatch extract [flags] <apk> [entry...]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("extract", pflag.ContinueOnError)
			shared.addFlags(flagSet)
			flagSet.StringVarP(&destination, "output", "o", ".", "destination directory")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("a package path is required")
			}
			cfg, logger, err := shared.load()
			if err != nil {
				return err
			}
			store := archive.New(args[0], archiveOptions(cfg, logger.With("command", "extract"))...)

			if len(args) == 1 {
				if err := store.ExtractAll(destination); err != nil {
					return err
				}
				fmt.Fprintf(out, "extracted %s into %s\n", args[0], destination)
				return nil
			}
			for _, name := range args[1:] {
				if err := store.Extract(name, destination); err != nil {
					return err
				}
				fmt.Fprintf(out, "extracted %s\n", name)
			}
			return nil
		},
	}
}
