// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backup keeps snapshots of archive entries taken before they
// are rewritten.
//
// A snapshot is one file in a backup directory holding a CBOR record
// (see lib/codec): the container path and entry name it came from, the
// time it was taken, the entry content compressed with zstd or LZ4,
// and the BLAKE3 entry hash of the uncompressed content (see
// [archive.HashEntry]). [Store.Load] decompresses the content and
// refuses to return it unless the hash matches, so a damaged snapshot
// is never written back into a package.
//
// Snapshot files are written to a temporary name and renamed into
// place; a crash never leaves a partial snapshot behind.
package backup
