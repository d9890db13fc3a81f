// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for apkpatch packages.
//
// [WriteZip] builds a zip container from [ZipEntry] values, with
// control over each entry's compression method and extra data so that
// tests can produce unaligned stored entries or pre-padded ones.
// [RawEntries] and [DataOffsets] read a container back at the level
// the archive layer promises to preserve: the compressed bytes of each
// entry and where its data starts in the file.
//
// [WriteAPK] combines the two with a binary manifest to produce a
// minimal package.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
