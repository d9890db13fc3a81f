// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package axml decodes and edits Android binary XML documents, the
// compiled form of AndroidManifest.xml stored inside an APK.
//
// A binary XML document is a sequence of self-length-delimited chunks.
// Every chunk starts with the same 8-byte little-endian header (type,
// header size, total size). The document chunk wraps everything else:
//
//   - a string pool holding every name and string value, referenced by
//     zero-based index ([StringRef]) from the rest of the document;
//   - an optional resource map assigning framework resource IDs to the
//     leading pool strings used as attribute names;
//   - the node chunks: namespace start/end, element start/end, and
//     character data, in document order.
//
// The package is organized in three layers:
//
//   - [DecodeStringPool] decodes the pool with every offset and length
//     bounds-checked against the supplied buffer. All index dereference
//     goes through [StringPool.Lookup].
//
//   - [Walk] streams node chunks to a [Visitor] without building a
//     tree. Namespace and unknown chunks are skipped by their declared
//     length. The first framing or reference error is reported once via
//     [Visitor.Invalid] and ends the walk.
//
//   - [SetAttribute] and [RemoveAttribute] rewrite the attribute list of
//     one element and re-serialize the document. Existing pool indices
//     are never renumbered: new strings are appended to the pool, and
//     every byte outside the edited chunks is copied verbatim.
//
// Decoding never reads past the supplied buffer; truncated or corrupt
// input yields an error wrapping [ErrMalformedDocument] or
// [ErrMalformedPool].
package axml
