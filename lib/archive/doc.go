// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive reads and rewrites entries of a zip container such
// as an APK.
//
// A [Store] is bound to a container path and opens the file afresh for
// every operation; nothing is cached between calls and every handle is
// closed before the call returns. Entries are located by a linear scan
// of the central directory, which is fast enough for the tens to
// hundreds of entries a package holds.
//
// Absence is data, not failure, at the listing level: [Store.List] on a
// missing container returns no entries and [Store.Contains] returns
// false. [Store.Read] enforces integrity: the decompressed byte count
// must equal the declared size and the CRC-32 must match, otherwise the
// error wraps [ErrEntryRead].
//
// [Store.Write] never edits the container in place. It builds a new
// container in a temporary file next to the original, copying every
// untouched entry's compressed bytes verbatim, streaming the new
// content through a bounded buffer, and renaming the result over the
// original only after everything succeeded. Stored entries are padded
// with the 0xD935 alignment extra field so that rewritten APKs keep the
// alignment zipalign established.
//
// The Store does no locking. Concurrent writers to the same container
// are the caller's responsibility.
package archive
