// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"io"
	"log/slog"

	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/axml"
	"github.com/bureau-foundation/apkpatch/lib/backup"
)

const (
	// ManifestPath is the entry name of the binary manifest.
	ManifestPath = "AndroidManifest.xml"

	// AndroidNamespace is the namespace URI of android: attributes.
	AndroidNamespace = "http://schemas.android.com/apk/res/android"

	// ApplicationElement is the element that carries the debuggable
	// flag.
	ApplicationElement = "application"

	// DebuggableResourceID is the framework resource ID of
	// android:debuggable.
	DebuggableResourceID = 0x0101000f
)

// Debuggable is the attribute PatchToDebuggable sets.
var Debuggable = axml.AttributeSpec{
	Namespace:  AndroidNamespace,
	Name:       "debuggable",
	ResourceID: DebuggableResourceID,
	Value:      axml.Bool(true),
}

// EntryWriter replaces one entry of a container. [archive.Store]
// implements it.
type EntryWriter interface {
	Write(name string, source io.Reader) error
}

// Option configures a [Package].
type Option func(*Package)

// WithLogger sets the logger for package operations. The archive
// store and backup store log through it too unless they were given
// their own.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Package) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithArchiveOptions passes options to the container store.
func WithArchiveOptions(options ...archive.Option) Option {
	return func(p *Package) {
		p.archiveOptions = append(p.archiveOptions, options...)
	}
}

// WithBackups snapshots the original manifest into store before every
// rewrite. Without it no snapshot is taken.
func WithBackups(store *backup.Store) Option {
	return func(p *Package) {
		p.backups = store
	}
}

// WithManifestPath overrides the manifest entry name.
func WithManifestPath(path string) Option {
	return func(p *Package) {
		p.manifestPath = path
	}
}

// WithTarget overrides the element and attribute that
// PatchToDebuggable sets and IsDebuggable checks. The attribute's
// Value is ignored; the flag is always set to boolean true.
func WithTarget(element string, attribute axml.AttributeSpec) Option {
	return func(p *Package) {
		p.element = element
		attribute.Value = axml.Bool(true)
		attribute.Raw = ""
		p.flag = attribute
	}
}

// WithWriter replaces the writer used to store the patched manifest.
// Reads still go to the container store.
func WithWriter(writer EntryWriter) Option {
	return func(p *Package) {
		p.writer = writer
	}
}
