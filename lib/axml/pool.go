// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"fmt"
	"unicode/utf16"
)

// StringRef is an index into a [StringPool]. References are only
// meaningful for the pool they were decoded against.
type StringRef uint32

// NoString is the reference value meaning "no string" (for example an
// attribute without a namespace or without a raw value).
const NoString StringRef = 0xFFFFFFFF

// String pool header layout and flags.
const (
	// stringPoolHeaderSize is the chunk header plus string count,
	// style count, flags, strings start, and styles start (4 each).
	stringPoolHeaderSize = 28

	poolFlagSorted = 1 << 0
	poolFlagUTF8   = 1 << 8

	// Largest string lengths representable by the two-unit length
	// prefixes.
	maxUTF8Length  = 0x7fff
	maxUTF16Length = 0x7fffffff
)

// StringPool is a decoded string pool chunk. Strings are decoded
// eagerly so that every bounds error surfaces at decode time.
//
// The pool keeps its original encoded regions so that re-encoding an
// unmodified pool is byte-identical, and re-encoding after appending
// strings leaves every existing index and style span untouched.
type StringPool struct {
	strings []string

	// raw is the complete original chunk.
	raw []byte

	// header is the original chunk header (HeaderSize bytes),
	// including any extension bytes beyond the fields decoded here.
	header []byte

	flags        uint32
	offsets      []uint32
	styleOffsets []uint32
	stringData   []byte
	styleData    []byte

	// added holds strings appended since decoding, in index order
	// after the original strings.
	added []string
}

// DecodeStringPool decodes the string pool chunk starting at offset in
// data. It returns the pool and the number of bytes the chunk
// occupies. Any offset or length that would read outside the chunk
// yields an error wrapping [ErrMalformedPool].
func DecodeStringPool(data []byte, offset int) (*StringPool, int, error) {
	header, err := readChunkHeader(data, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformedPool, err)
	}
	if header.Type != ChunkStringPool {
		return nil, 0, fmt.Errorf("%w: expected string pool chunk at offset %d, found %s",
			ErrMalformedPool, offset, header.Type)
	}
	if header.HeaderSize < stringPoolHeaderSize {
		return nil, 0, fmt.Errorf("%w: header size %d below minimum %d",
			ErrMalformedPool, header.HeaderSize, stringPoolHeaderSize)
	}

	chunk := header.body(data)
	size := uint64(len(chunk))
	stringCount := le.Uint32(chunk[8:])
	styleCount := le.Uint32(chunk[12:])
	flags := le.Uint32(chunk[16:])
	stringsStart := uint64(le.Uint32(chunk[20:]))
	stylesStart := uint64(le.Uint32(chunk[24:]))

	tableEnd := uint64(header.HeaderSize) + 4*uint64(stringCount) + 4*uint64(styleCount)
	if tableEnd > size {
		return nil, 0, fmt.Errorf("%w: %d string and %d style offsets need %d bytes, chunk has %d",
			ErrMalformedPool, stringCount, styleCount, tableEnd, size)
	}

	stringsEnd := size
	if styleCount > 0 {
		if stylesStart < tableEnd || stylesStart > size {
			return nil, 0, fmt.Errorf("%w: styles start %d outside [%d, %d]",
				ErrMalformedPool, stylesStart, tableEnd, size)
		}
		stringsEnd = stylesStart
	}

	pool := &StringPool{
		raw:          chunk,
		header:       chunk[:header.HeaderSize],
		flags:        flags,
		offsets:      make([]uint32, stringCount),
		styleOffsets: make([]uint32, styleCount),
		strings:      make([]string, stringCount),
	}

	cursor := int(header.HeaderSize)
	for i := range pool.offsets {
		pool.offsets[i] = le.Uint32(chunk[cursor:])
		cursor += 4
	}
	for i := range pool.styleOffsets {
		pool.styleOffsets[i] = le.Uint32(chunk[cursor:])
		cursor += 4
	}

	if stringCount > 0 {
		if stringsStart < tableEnd || stringsStart > stringsEnd {
			return nil, 0, fmt.Errorf("%w: strings start %d outside [%d, %d]",
				ErrMalformedPool, stringsStart, tableEnd, stringsEnd)
		}
		pool.stringData = chunk[stringsStart:stringsEnd]
	}
	if styleCount > 0 {
		pool.styleData = chunk[stylesStart:]
	}

	for i, stringOffset := range pool.offsets {
		if uint64(stringOffset) >= uint64(len(pool.stringData)) {
			return nil, 0, fmt.Errorf("%w: string %d offset %d outside string data of %d bytes",
				ErrMalformedPool, i, stringOffset, len(pool.stringData))
		}
		var decoded string
		if pool.IsUTF8() {
			decoded, err = decodeUTF8String(pool.stringData[stringOffset:])
		} else {
			decoded, err = decodeUTF16String(pool.stringData[stringOffset:])
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: string %d at offset %d: %w", ErrMalformedPool, i, stringOffset, err)
		}
		pool.strings[i] = decoded
	}

	return pool, int(header.Size), nil
}

// Len returns the number of strings in the pool, including appended
// strings.
func (p *StringPool) Len() int {
	return len(p.strings)
}

// IsUTF8 reports whether strings are stored as UTF-8 (otherwise
// UTF-16LE).
func (p *StringPool) IsUTF8() bool {
	return p.flags&poolFlagUTF8 != 0
}

// Lookup returns the string for ref. It is the only place pool indices
// are dereferenced.
func (p *StringPool) Lookup(ref StringRef) (string, error) {
	if ref == NoString {
		return "", fmt.Errorf("no-string reference used where a string is required")
	}
	if uint64(ref) >= uint64(len(p.strings)) {
		return "", fmt.Errorf("string reference %d out of range (pool has %d strings)", ref, len(p.strings))
	}
	return p.strings[ref], nil
}

// lookupOptional is Lookup for fields where [NoString] is legal; it
// returns the empty string for NoString.
func (p *StringPool) lookupOptional(ref StringRef) (string, error) {
	if ref == NoString {
		return "", nil
	}
	return p.Lookup(ref)
}

// Index returns the reference of the first string equal to s, or
// [NoString] if s is not in the pool.
func (p *StringPool) Index(s string) StringRef {
	for i, candidate := range p.strings {
		if candidate == s {
			return StringRef(i)
		}
	}
	return NoString
}

// add appends s to the pool and returns its reference. Existing
// references are unaffected.
func (p *StringPool) add(s string) (StringRef, error) {
	limit := maxUTF16Length
	if p.IsUTF8() {
		limit = maxUTF8Length
	}
	if len(s) > limit {
		return NoString, fmt.Errorf("string of %d bytes exceeds pool encoding limit %d", len(s), limit)
	}
	p.strings = append(p.strings, s)
	p.added = append(p.added, s)
	return StringRef(len(p.strings) - 1), nil
}

// encode serializes the pool. An unmodified pool returns its original
// bytes. Otherwise the original string data and style regions are
// kept verbatim, appended strings follow the original string data, and
// the offset tables and header fields are recomputed.
func (p *StringPool) encode() []byte {
	if len(p.added) == 0 {
		return p.raw
	}

	stringData := append([]byte(nil), p.stringData...)
	offsets := append([]uint32(nil), p.offsets...)
	for _, s := range p.added {
		offsets = append(offsets, uint32(len(stringData)))
		if p.IsUTF8() {
			stringData = appendUTF8String(stringData, s)
		} else {
			stringData = appendUTF16String(stringData, s)
		}
	}
	for len(stringData)%4 != 0 {
		stringData = append(stringData, 0)
	}

	headerSize := len(p.header)
	stringsStart := headerSize + 4*(len(offsets)+len(p.styleOffsets))
	stylesStart := 0
	if len(p.styleOffsets) > 0 {
		stylesStart = stringsStart + len(stringData)
	}
	size := stringsStart + len(stringData) + len(p.styleData)

	out := make([]byte, 0, size)
	out = append(out, p.header...)
	putChunkSize(out, size)
	le.PutUint32(out[8:], uint32(len(offsets)))
	// Appended strings break any sort order the original declared.
	le.PutUint32(out[16:], p.flags&^poolFlagSorted)
	le.PutUint32(out[20:], uint32(stringsStart))
	le.PutUint32(out[24:], uint32(stylesStart))

	for _, offset := range offsets {
		out = le.AppendUint32(out, offset)
	}
	for _, offset := range p.styleOffsets {
		out = le.AppendUint32(out, offset)
	}
	out = append(out, stringData...)
	out = append(out, p.styleData...)
	return out
}

// decodeUTF8String decodes a UTF-8 pool entry: the UTF-16 length, the
// byte length, then the bytes. The trailing NUL is not required.
func decodeUTF8String(data []byte) (string, error) {
	_, consumed, err := decodeUTF8Length(data)
	if err != nil {
		return "", fmt.Errorf("utf-16 length: %w", err)
	}
	byteLength, lengthSize, err := decodeUTF8Length(data[consumed:])
	if err != nil {
		return "", fmt.Errorf("byte length: %w", err)
	}
	start := consumed + lengthSize
	if byteLength > len(data)-start {
		return "", fmt.Errorf("declared %d bytes but only %d remain", byteLength, len(data)-start)
	}
	return string(data[start : start+byteLength]), nil
}

// decodeUTF8Length decodes a one- or two-byte length. The high bit of
// the first byte selects the two-byte form.
func decodeUTF8Length(data []byte) (int, int, error) {
	if len(data) < 1 {
		return 0, 0, fmt.Errorf("truncated length")
	}
	if data[0]&0x80 == 0 {
		return int(data[0]), 1, nil
	}
	if len(data) < 2 {
		return 0, 0, fmt.Errorf("truncated two-byte length")
	}
	return int(data[0]&0x7f)<<8 | int(data[1]), 2, nil
}

// decodeUTF16String decodes a UTF-16LE pool entry: a one- or two-unit
// length in code units, then the units.
func decodeUTF16String(data []byte) (string, error) {
	if len(data) < 2 {
		return "", fmt.Errorf("truncated length")
	}
	length := int(le.Uint16(data))
	start := 2
	if length&0x8000 != 0 {
		if len(data) < 4 {
			return "", fmt.Errorf("truncated two-unit length")
		}
		length = (length&0x7fff)<<16 | int(le.Uint16(data[2:]))
		start = 4
	}
	if length > (len(data)-start)/2 {
		return "", fmt.Errorf("declared %d code units but only %d bytes remain", length, len(data)-start)
	}
	units := make([]uint16, length)
	for i := range units {
		units[i] = le.Uint16(data[start+2*i:])
	}
	return string(utf16.Decode(units)), nil
}

func appendUTF8String(dst []byte, s string) []byte {
	dst = appendUTF8Length(dst, len(utf16.Encode([]rune(s))))
	dst = appendUTF8Length(dst, len(s))
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendUTF8Length(dst []byte, n int) []byte {
	if n > 0x7f {
		return append(dst, byte(n>>8)|0x80, byte(n))
	}
	return append(dst, byte(n))
}

func appendUTF16String(dst []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	if len(units) > 0x7fff {
		dst = le.AppendUint16(dst, uint16(len(units)>>16)|0x8000)
	}
	dst = le.AppendUint16(dst, uint16(len(units)))
	for _, unit := range units {
		dst = le.AppendUint16(dst, unit)
	}
	return le.AppendUint16(dst, 0)
}
