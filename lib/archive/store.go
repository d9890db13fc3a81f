// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// Entry describes one container entry.
type Entry struct {
	Path             string    `json:"path"`
	Method           uint16    `json:"method"`
	CompressedSize   uint64    `json:"compressed_size"`
	UncompressedSize uint64    `json:"uncompressed_size"`
	CRC32            uint32    `json:"crc32"`
	Modified         time.Time `json:"modified"`
}

// IsDir reports whether the entry is a directory marker.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Path, "/")
}

// MethodName returns "store", "deflate", or the numeric method.
func (e Entry) MethodName() string {
	switch e.Method {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("method(%d)", e.Method)
	}
}

func entryOf(file *zip.File) Entry {
	return Entry{
		Path:             file.Name,
		Method:           file.Method,
		CompressedSize:   file.CompressedSize64,
		UncompressedSize: file.UncompressedSize64,
		CRC32:            file.CRC32,
		Modified:         file.Modified,
	}
}

// Store provides entry-level access to one zip container.
type Store struct {
	path             string
	bufferSize       int
	compressionLevel int
	alignment        int
	maxEntrySize     int64
	logger           *slog.Logger
}

// New returns a Store for the container at path. The container need
// not exist yet; [Store.Write] creates it.
func New(path string, options ...Option) *Store {
	store := &Store{
		path:             path,
		bufferSize:       DefaultBufferSize,
		compressionLevel: DefaultCompressionLevel,
		alignment:        DefaultAlignment,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(store)
	}
	return store
}

// Path returns the container path.
func (s *Store) Path() string {
	return s.path
}

// open opens the container. A missing container yields a nil reader
// and nil error; callers decide what absence means.
func (s *Store) open() (*zip.ReadCloser, error) {
	reader, err := zip.OpenReader(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrArchiveUnreadable, s.path, err)
	}
	return reader, nil
}

// openExisting is open for operations that need the container.
func (s *Store) openExisting() (*zip.ReadCloser, error) {
	reader, err := s.open()
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, fmt.Errorf("%w: %s does not exist", ErrArchiveUnreadable, s.path)
	}
	return reader, nil
}

// find scans the central directory for name.
func find(reader *zip.ReadCloser, name string) *zip.File {
	for _, file := range reader.File {
		if file.Name == name {
			return file
		}
	}
	return nil
}

// List returns every entry in directory order. A missing container has
// no entries.
func (s *Store) List() ([]Entry, error) {
	reader, err := s.open()
	if err != nil || reader == nil {
		return nil, err
	}
	defer reader.Close()

	entries := make([]Entry, 0, len(reader.File))
	for _, file := range reader.File {
		entries = append(entries, entryOf(file))
	}
	return entries, nil
}

// Contains reports whether an entry with exactly this path exists. It
// never fails: an absent or unreadable container contains nothing.
func (s *Store) Contains(name string) bool {
	reader, err := s.open()
	if err != nil || reader == nil {
		return false
	}
	defer reader.Close()
	return find(reader, name) != nil
}

// Stat returns the metadata of one entry.
func (s *Store) Stat(name string) (Entry, error) {
	reader, err := s.openExisting()
	if err != nil {
		return Entry{}, err
	}
	defer reader.Close()

	file := find(reader, name)
	if file == nil {
		return Entry{}, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, s.path)
	}
	return entryOf(file), nil
}

// Read returns the full uncompressed content of an entry.
func (s *Store) Read(name string) ([]byte, error) {
	reader, err := s.openExisting()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	file := find(reader, name)
	if file == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, s.path)
	}
	return s.readFile(file)
}

func (s *Store) readFile(file *zip.File) ([]byte, error) {
	size := file.UncompressedSize64
	if s.maxEntrySize > 0 && size > uint64(s.maxEntrySize) {
		return nil, fmt.Errorf("%w: %s declares %d bytes, limit is %d",
			ErrEntryRead, file.Name, size, s.maxEntrySize)
	}

	content, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrEntryRead, file.Name, err)
	}
	defer content.Close()

	// Reading one byte past the declared size both detects oversized
	// content and drives the decompressor to EOF, where the CRC-32 is
	// verified.
	data, err := io.ReadAll(io.LimitReader(content, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrEntryRead, file.Name, err)
	}
	if uint64(len(data)) != size {
		return nil, fmt.Errorf("%w: %s declares %d bytes, decompressed %d",
			ErrEntryRead, file.Name, size, len(data))
	}
	return data, nil
}

// Digest returns the BLAKE3 entry hash of an entry's uncompressed
// content, streaming it rather than reading it into memory.
func (s *Store) Digest(name string) (Hash, error) {
	reader, err := s.openExisting()
	if err != nil {
		return Hash{}, err
	}
	defer reader.Close()

	file := find(reader, name)
	if file == nil {
		return Hash{}, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, s.path)
	}

	hasher := newEntryHasher()
	if err := s.copyContent(hasher, file); err != nil {
		return Hash{}, err
	}
	return sumHash(hasher), nil
}

// copyContent streams an entry's uncompressed content to w and checks
// the byte count against the declared size.
func (s *Store) copyContent(w io.Writer, file *zip.File) error {
	content, err := file.Open()
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrEntryRead, file.Name, err)
	}
	defer content.Close()

	written, err := io.CopyBuffer(w, content, make([]byte, s.bufferSize))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrEntryRead, file.Name, err)
	}
	if uint64(written) != file.UncompressedSize64 {
		return fmt.Errorf("%w: %s declares %d bytes, decompressed %d",
			ErrEntryRead, file.Name, file.UncompressedSize64, written)
	}
	return nil
}

// Extract writes one entry to destination/name, creating intermediate
// directories.
func (s *Store) Extract(name, destination string) error {
	if err := checkDestination(destination); err != nil {
		return err
	}
	reader, err := s.openExisting()
	if err != nil {
		return err
	}
	defer reader.Close()

	file := find(reader, name)
	if file == nil {
		return fmt.Errorf("%w: %s in %s", ErrEntryNotFound, name, s.path)
	}
	return s.extractFile(file, destination)
}

// ExtractAll extracts every entry into destination. It stops at the
// first failing entry; files already written stay on disk.
func (s *Store) ExtractAll(destination string) error {
	if err := checkDestination(destination); err != nil {
		return err
	}
	reader, err := s.openExisting()
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := s.extractFile(file, destination); err != nil {
			return err
		}
	}
	s.logger.Info("extracted archive",
		"archive", s.path,
		"destination", destination,
		"entries", len(reader.File),
	)
	return nil
}

// checkDestination accepts a directory or a path that does not exist
// yet.
func checkDestination(destination string) error {
	info, err := os.Stat(destination)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDestination, destination, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDestination, destination)
	}
	return nil
}

func (s *Store) extractFile(file *zip.File, destination string) error {
	relative := filepath.FromSlash(strings.TrimSuffix(file.Name, "/"))
	if !filepath.IsLocal(relative) {
		return fmt.Errorf("%w: entry %q escapes %s", ErrInvalidDestination, file.Name, destination)
	}
	target := filepath.Join(destination, relative)

	if strings.HasSuffix(file.Name, "/") {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", file.Name, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", file.Name, err)
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if err := s.copyContent(out, file); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}
	s.logger.Debug("extracted entry", "entry", file.Name, "path", target)
	return nil
}
