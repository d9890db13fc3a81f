// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import "errors"

var (
	// ErrArchiveUnreadable is returned when the container exists but
	// cannot be opened as a zip file.
	ErrArchiveUnreadable = errors.New("archive: container unreadable")

	// ErrEntryNotFound is returned when no entry has the requested
	// path.
	ErrEntryNotFound = errors.New("archive: entry not found")

	// ErrEntryRead is returned when an entry's content does not match
	// its declared size or checksum, or exceeds the configured maximum
	// entry size.
	ErrEntryRead = errors.New("archive: entry read failed")

	// ErrInvalidDestination is returned by extraction when the
	// destination exists and is not a directory, or when an entry path
	// would land outside the destination.
	ErrInvalidDestination = errors.New("archive: invalid extraction destination")
)
