// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides apkpatch's CBOR encoding configuration.
//
// apkpatch uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: CLI --json output.
//   - CBOR for on-disk records: manifest backups written before a
//     package is patched.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type is only ever serialized as CBOR (backup
//     records).
//   - `json` tag: the type may be serialized as both JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as a fallback when `cbor`
//     tags are absent, so one tag controls naming for both formats.
//
// Never use both tags on the same field.
package codec
