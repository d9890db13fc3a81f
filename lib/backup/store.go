// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/codec"
)

// ErrCorruptBackup is returned when a snapshot file cannot be decoded,
// uses an unknown record version, or its content does not match the
// recorded hash.
var ErrCorruptBackup = errors.New("backup: corrupt snapshot")

// ErrNoSnapshot is returned by [Store.Latest] when the directory holds
// no usable snapshot of the container.
var ErrNoSnapshot = errors.New("backup: no snapshot")

// recordVersion is the snapshot record layout written by this package.
const recordVersion = 1

// Snapshot content size limits. A loaded record's declared size is
// checked against the store limit before any buffer is allocated.
const (
	DefaultMaxSize = 64 << 20
	MaxSize        = 1 << 30
)

// snapshotExtension is the file extension of snapshot files.
const snapshotExtension = ".apkbak"

// record is the on-disk form of a snapshot.
type record struct {
	Version     int          `cbor:"version"`
	Archive     string       `cbor:"archive"`
	Entry       string       `cbor:"entry"`
	Created     time.Time    `cbor:"created"`
	Size        int          `cbor:"size"`
	Compression Compression  `cbor:"compression"`
	Digest      archive.Hash `cbor:"digest"`
	Content     []byte       `cbor:"content"`
}

// Snapshot is a verified snapshot loaded from disk.
type Snapshot struct {
	// Path is the snapshot file.
	Path string `json:"path"`

	// Archive is the container the entry was taken from.
	Archive string `json:"archive"`

	// Entry is the entry name inside the container.
	Entry string `json:"entry"`

	// Created is when the snapshot was taken.
	Created time.Time `json:"created"`

	// Compression is the algorithm the content was stored with.
	Compression string `json:"compression"`

	// Digest is the entry hash of Content.
	Digest archive.Hash `json:"digest"`

	// Content is the uncompressed entry content.
	Content []byte `json:"-"`
}

// Option configures a [Store].
type Option func(*Store)

// WithCompression sets the algorithm new snapshots are compressed
// with. The default is [CompressionZstd].
func WithCompression(compression Compression) Option {
	return func(s *Store) {
		s.compression = compression
	}
}

// WithLogger sets the logger for snapshot activity.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSize sets the largest entry content a snapshot may declare.
// Values outside (0, [MaxSize]] leave the default, [DefaultMaxSize].
func WithMaxSize(size int64) Option {
	return func(s *Store) {
		if size > 0 && size <= MaxSize {
			s.maxSize = size
		}
	}
}

// WithClock replaces the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store writes and loads snapshots in one directory.
type Store struct {
	directory   string
	compression Compression
	maxSize     int64
	now         func() time.Time
	logger      *slog.Logger
}

// New returns a Store rooted at directory. The directory is created on
// the first [Store.Save].
func New(directory string, options ...Option) *Store {
	store := &Store{
		directory:   directory,
		compression: CompressionZstd,
		maxSize:     DefaultMaxSize,
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(store)
	}
	return store
}

// Directory returns the backup directory.
func (s *Store) Directory() string {
	return s.directory
}

// Save snapshots content of entry in the container at archivePath and
// returns the snapshot file path.
func (s *Store) Save(archivePath, entry string, content []byte) (string, error) {
	absolute, err := filepath.Abs(archivePath)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", archivePath, err)
	}

	stored, used, err := compress(content, s.compression)
	if err != nil {
		return "", fmt.Errorf("compressing snapshot of %s: %w", entry, err)
	}
	created := s.now().UTC()
	digest := archive.HashEntry(content)

	data, err := codec.Marshal(record{
		Version:     recordVersion,
		Archive:     absolute,
		Entry:       entry,
		Created:     created,
		Size:        len(content),
		Compression: used,
		Digest:      digest,
		Content:     stored,
	})
	if err != nil {
		return "", fmt.Errorf("encoding snapshot of %s: %w", entry, err)
	}

	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s-%s%s",
		filepath.Base(archivePath),
		created.Format("20060102T150405.000000000Z"),
		archive.FormatHash(digest)[:12],
		snapshotExtension,
	)
	path := filepath.Join(s.directory, name)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	s.logger.Info("saved backup snapshot",
		"path", path,
		"archive", absolute,
		"entry", entry,
		"size", len(content),
		"stored_size", len(stored),
		"compression", used.String(),
	)
	return path, nil
}

// Load reads a snapshot file, decompresses its content, and verifies
// it against the recorded hash.
func (s *Store) Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var stored record
	if err := codec.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptBackup, path, err)
	}
	if stored.Version != recordVersion {
		return nil, fmt.Errorf("%w: %s has record version %d, want %d",
			ErrCorruptBackup, path, stored.Version, recordVersion)
	}
	if stored.Entry == "" || stored.Size < 0 {
		return nil, fmt.Errorf("%w: %s has no entry name or a negative size", ErrCorruptBackup, path)
	}
	if int64(stored.Size) > s.maxSize {
		return nil, fmt.Errorf("%w: %s declares %d bytes, limit is %d",
			ErrCorruptBackup, path, stored.Size, s.maxSize)
	}

	content, err := decompress(stored.Content, stored.Compression, stored.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptBackup, path, err)
	}
	if digest := archive.HashEntry(content); digest != stored.Digest {
		return nil, fmt.Errorf("%w: %s content hashes to %s, recorded %s",
			ErrCorruptBackup, path, archive.FormatHash(digest), archive.FormatHash(stored.Digest))
	}

	return &Snapshot{
		Path:        path,
		Archive:     stored.Archive,
		Entry:       stored.Entry,
		Created:     stored.Created,
		Compression: stored.Compression.String(),
		Digest:      stored.Digest,
		Content:     content,
	}, nil
}

// List returns the snapshot files in the backup directory, oldest
// first. A missing directory holds no snapshots.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.directory)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	// Snapshot names sort by container name, then timestamp.
	var paths []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && filepath.Ext(entry.Name()) == snapshotExtension {
			paths = append(paths, filepath.Join(s.directory, entry.Name()))
		}
	}
	return paths, nil
}

// Latest returns the newest snapshot taken from the container at
// archivePath. Snapshots that fail to load are skipped with a warning.
func (s *Store) Latest(archivePath string) (*Snapshot, error) {
	absolute, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", archivePath, err)
	}
	paths, err := s.List()
	if err != nil {
		return nil, err
	}

	prefix := filepath.Base(archivePath) + "-"
	var latest *Snapshot
	for _, path := range paths {
		if !strings.HasPrefix(filepath.Base(path), prefix) {
			continue
		}
		snapshot, err := s.Load(path)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "path", path, "error", err)
			continue
		}
		if snapshot.Archive != absolute {
			continue
		}
		if latest == nil || snapshot.Created.After(latest.Created) {
			latest = snapshot
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w of %s in %s", ErrNoSnapshot, absolute, s.directory)
	}
	return latest, nil
}

// Diagnose returns the CBOR diagnostic notation of a snapshot file
// without verifying it.
func Diagnose(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}
	notation, err := codec.Diagnose(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCorruptBackup, path, err)
	}
	return notation, nil
}

// writeAtomic writes data to a temporary file next to path and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot to %s: %w", path, err)
	}
	success = true
	return nil
}
