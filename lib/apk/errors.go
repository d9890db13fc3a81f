// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import "errors"

var (
	// ErrDocumentMissing is returned when the package has no manifest
	// entry or the entry is empty.
	ErrDocumentMissing = errors.New("apk: manifest document missing")

	// ErrDocumentMalformed is returned when the manifest cannot be
	// decoded. The underlying axml error is wrapped alongside it.
	ErrDocumentMalformed = errors.New("apk: manifest document malformed")

	// ErrRequiredElementMissing is returned when the manifest decodes
	// cleanly but has no element to patch.
	ErrRequiredElementMissing = errors.New("apk: required element missing")
)
