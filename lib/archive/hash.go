// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of an entry's uncompressed content.
type Hash [32]byte

// entryDomainKey keys the entry hash so that an entry digest is never
// confused with a plain BLAKE3 hash of the same bytes. The key is the
// ASCII domain name zero-padded to 32 bytes.
var entryDomainKey = [32]byte{
	'a', 'p', 'k', 'p', 'a', 't', 'c', 'h', '.', 'a', 'r', 'c', 'h', 'i', 'v', 'e',
	'.', 'e', 'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashEntry returns the digest of entry content held in memory. It
// equals [Store.Digest] of an entry with the same content.
func HashEntry(data []byte) Hash {
	hasher := newEntryHasher()
	hasher.Write(data)
	return sumHash(hasher)
}

// FormatHash returns the hex encoding of a hash, the form used in logs
// and CLI output.
func FormatHash(h Hash) string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var h Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return h, fmt.Errorf("parsing entry hash: %w", err)
	}
	if len(decoded) != len(h) {
		return h, fmt.Errorf("entry hash is %d bytes, want %d", len(decoded), len(h))
	}
	copy(h[:], decoded)
	return h, nil
}

// MarshalText encodes the hash as lowercase hex, so it appears the same
// way in JSON output and CBOR records.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(FormatHash(h)), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func newEntryHasher() hash.Hash {
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(entryDomainKey[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

func sumHash(hasher hash.Hash) Hash {
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
