// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"log/slog"

	"github.com/klauspost/compress/flate"
)

// Defaults applied by [New].
const (
	// DefaultBufferSize is the copy buffer used when streaming entry
	// content.
	DefaultBufferSize = 32 * 1024

	// DefaultAlignment is the byte alignment of stored entry data, the
	// value zipalign uses for everything except native libraries.
	DefaultAlignment = 4

	// MaxAlignment is page alignment, the largest zipalign uses. The
	// padding must fit the 16-bit extra field length.
	MaxAlignment = 4096

	// DefaultCompressionLevel is the deflate level for new entries.
	DefaultCompressionLevel = flate.DefaultCompression
)

// Option configures a Store.
type Option func(*Store)

// WithBufferSize sets the size of the buffer used to stream entry
// content. Non-positive sizes keep the default.
func WithBufferSize(size int) Option {
	return func(store *Store) {
		if size > 0 {
			store.bufferSize = size
		}
	}
}

// WithCompressionLevel sets the deflate level used for entries written
// with the deflate method, from flate.HuffmanOnly (-2) to
// flate.BestCompression (9).
func WithCompressionLevel(level int) Option {
	return func(store *Store) {
		store.compressionLevel = level
	}
}

// WithAlignment sets the alignment of stored entry data on rewrite. 0
// or 1 disables alignment. Values outside [0, MaxAlignment] are
// ignored.
func WithAlignment(alignment int) Option {
	return func(store *Store) {
		if alignment >= 0 && alignment <= MaxAlignment {
			store.alignment = alignment
		}
	}
}

// WithMaxEntrySize rejects entries whose declared uncompressed size
// exceeds size when reading them into memory. 0 means no limit.
func WithMaxEntrySize(size int64) Option {
	return func(store *Store) {
		store.maxEntrySize = size
	}
}

// WithLogger sets the logger for rewrite and extraction events. The
// default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}
