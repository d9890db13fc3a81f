// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/axml"
	"github.com/bureau-foundation/apkpatch/lib/backup"
)

// Package is an Android package on disk. Every method reads the
// container afresh; nothing is cached between calls.
type Package struct {
	path           string
	store          *archive.Store
	writer         EntryWriter
	archiveOptions []archive.Option
	backups        *backup.Store

	manifestPath string
	element      string
	flag         axml.AttributeSpec

	logger *slog.Logger
}

// PatchResult describes the outcome of [Package.PatchToDebuggable].
type PatchResult struct {
	// AlreadyDebuggable is set when the flag was already enabled and
	// nothing was written.
	AlreadyDebuggable bool `json:"already_debuggable"`

	// Inserted is set when the attribute was added rather than an
	// existing value overwritten.
	Inserted bool `json:"inserted"`

	// Backup is the snapshot of the original manifest, when backups
	// are enabled.
	Backup string `json:"backup,omitempty"`

	OriginalSize   int          `json:"original_size"`
	OriginalDigest archive.Hash `json:"original_digest"`
	PatchedSize    int          `json:"patched_size,omitempty"`
	PatchedDigest  archive.Hash `json:"patched_digest"`
}

// Open returns the package at path. The container must exist and be a
// readable zip file; the manifest is not checked until it is needed.
func Open(path string, options ...Option) (*Package, error) {
	p := &Package{
		path:         path,
		manifestPath: ManifestPath,
		element:      ApplicationElement,
		flag:         Debuggable,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(p)
	}

	storeOptions := append([]archive.Option{archive.WithLogger(p.logger)}, p.archiveOptions...)
	p.store = archive.New(path, storeOptions...)
	if p.writer == nil {
		p.writer = p.store
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", archive.ErrArchiveUnreadable, err)
	}
	if _, err := p.store.List(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the container path.
func (p *Package) Path() string {
	return p.path
}

// Store returns the container store for entry-level access.
func (p *Package) Store() *archive.Store {
	return p.store
}

// LocateManifest returns the manifest entry content. A missing or empty
// entry is [ErrDocumentMissing].
func (p *Package) LocateManifest() ([]byte, error) {
	data, err := p.store.Read(p.manifestPath)
	if errors.Is(err, archive.ErrEntryNotFound) {
		return nil, fmt.Errorf("%w: %s has no %s entry", ErrDocumentMissing, p.path, p.manifestPath)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s in %s is empty", ErrDocumentMissing, p.manifestPath, p.path)
	}
	return data, nil
}

// IsDebuggable reports whether the flag is enabled on the target
// element.
func (p *Package) IsDebuggable() (bool, error) {
	data, err := p.LocateManifest()
	if err != nil {
		return false, err
	}
	visitor, err := p.analyze(data)
	if err != nil {
		return false, err
	}
	return visitor.manifest.Debuggable, nil
}

// Inspect decodes the manifest and summarizes it.
func (p *Package) Inspect() (*Manifest, error) {
	data, err := p.LocateManifest()
	if err != nil {
		return nil, err
	}
	visitor, err := p.analyze(data)
	if err != nil {
		return nil, err
	}
	manifest := visitor.manifest
	return &manifest, nil
}

// PatchToDebuggable enables the debuggable flag on the application
// element. It is idempotent: a package whose flag is already enabled
// is reported with AlreadyDebuggable and not rewritten.
//
// The patched document is walked again before anything is written,
// and the container is rewritten with a single entry write. On any
// error the container is left as it was.
func (p *Package) PatchToDebuggable() (*PatchResult, error) {
	original, err := p.LocateManifest()
	if err != nil {
		return nil, err
	}
	visitor, err := p.analyze(original)
	if err != nil {
		return nil, err
	}

	result := &PatchResult{
		OriginalSize:   len(original),
		OriginalDigest: visitor.manifest.Digest,
	}
	if visitor.manifest.Debuggable {
		result.AlreadyDebuggable = true
		p.logger.Info("package already debuggable",
			"package", p.path,
			"value", visitor.manifest.DebuggableValue,
		)
		return result, nil
	}

	mutation, err := axml.SetAttribute(original, p.element, p.flag)
	if err != nil {
		return nil, fmt.Errorf("setting %s:%s on <%s>: %w", p.flag.Namespace, p.flag.Name, p.element, err)
	}
	if !mutation.Changed {
		result.AlreadyDebuggable = true
		return result, nil
	}

	patched, err := p.analyze(mutation.Data)
	if err != nil {
		return nil, fmt.Errorf("verifying patched manifest: %w", err)
	}
	if !patched.manifest.Debuggable {
		return nil, fmt.Errorf("verifying patched manifest: %s is not enabled after the edit", p.flag.Name)
	}

	if p.backups != nil {
		result.Backup, err = p.backups.Save(p.path, p.manifestPath, original)
		if err != nil {
			return nil, fmt.Errorf("backing up %s: %w", p.manifestPath, err)
		}
	}

	if err := p.writer.Write(p.manifestPath, bytes.NewReader(mutation.Data)); err != nil {
		return nil, fmt.Errorf("writing patched %s: %w", p.manifestPath, err)
	}

	result.Inserted = mutation.Inserted
	result.PatchedSize = len(mutation.Data)
	result.PatchedDigest = patched.manifest.Digest
	p.logger.Info("patched package to debuggable",
		"package", p.path,
		"inserted", mutation.Inserted,
		"original_size", len(original),
		"patched_size", len(mutation.Data),
		"backup", result.Backup,
	)
	return result, nil
}

// Restore writes the entry saved in a backup snapshot back into the
// container. The snapshot is verified before anything is written.
func (p *Package) Restore(backupPath string) error {
	store := p.backups
	if store == nil {
		store = backup.New(filepath.Dir(backupPath), backup.WithLogger(p.logger))
	}
	snapshot, err := store.Load(backupPath)
	if err != nil {
		return err
	}

	if absolute, err := filepath.Abs(p.path); err == nil && absolute != snapshot.Archive {
		p.logger.Warn("restoring snapshot taken from a different container",
			"package", absolute,
			"snapshot_archive", snapshot.Archive,
		)
	}

	if err := p.writer.Write(snapshot.Entry, bytes.NewReader(snapshot.Content)); err != nil {
		return fmt.Errorf("restoring %s: %w", snapshot.Entry, err)
	}
	p.logger.Info("restored entry from snapshot",
		"package", p.path,
		"entry", snapshot.Entry,
		"snapshot", backupPath,
		"created", snapshot.Created,
	)
	return nil
}
