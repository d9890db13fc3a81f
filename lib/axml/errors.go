// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import "errors"

var (
	// ErrMalformedPool is returned when a string pool header, offset
	// table, or string payload would read outside its chunk.
	ErrMalformedPool = errors.New("axml: malformed string pool")

	// ErrMalformedDocument is returned for any framing error in the
	// document itself: truncated chunks, lengths overrunning the buffer,
	// dangling string references, or unbalanced element tags.
	ErrMalformedDocument = errors.New("axml: malformed document")

	// ErrElementNotFound is returned by the mutators when no start tag
	// carries the requested element name.
	ErrElementNotFound = errors.New("axml: element not found")
)
