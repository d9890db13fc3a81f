// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"encoding/binary"
	"fmt"
)

// ChunkType identifies the kind of a chunk. The values are the
// framework's ResChunk_header type constants and are part of the file
// format.
type ChunkType uint16

const (
	ChunkStringPool     ChunkType = 0x0001
	ChunkXML            ChunkType = 0x0003
	ChunkStartNamespace ChunkType = 0x0100
	ChunkEndNamespace   ChunkType = 0x0101
	ChunkStartElement   ChunkType = 0x0102
	ChunkEndElement     ChunkType = 0x0103
	ChunkCData          ChunkType = 0x0104
	ChunkResourceMap    ChunkType = 0x0180
)

// String returns the human-readable name of a chunk type.
func (t ChunkType) String() string {
	switch t {
	case ChunkStringPool:
		return "string_pool"
	case ChunkXML:
		return "xml"
	case ChunkStartNamespace:
		return "start_namespace"
	case ChunkEndNamespace:
		return "end_namespace"
	case ChunkStartElement:
		return "start_element"
	case ChunkEndElement:
		return "end_element"
	case ChunkCData:
		return "cdata"
	case ChunkResourceMap:
		return "resource_map"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(t))
	}
}

// Fixed layout sizes.
const (
	// chunkHeaderSize is type (2) + header size (2) + total size (4).
	chunkHeaderSize = 8

	// nodeHeaderSize extends the chunk header with the line number (4)
	// and comment string reference (4) carried by every node chunk.
	nodeHeaderSize = 16

	// startElementSize is the fixed element extension: namespace (4),
	// name (4), attribute start (2), attribute size (2), attribute
	// count (2), id index (2), class index (2), style index (2).
	startElementSize = 20

	// endElementSize is namespace (4) + name (4).
	endElementSize = 8

	// cdataSize is the text reference (4) + a typed value (8).
	cdataSize = 12

	// attributeSize is namespace (4) + name (4) + raw value (4) + typed
	// value (8).
	attributeSize = 20
)

var le = binary.LittleEndian

// chunkHeader is a decoded chunk header together with its absolute
// position in the buffer it was read from.
type chunkHeader struct {
	Type       ChunkType
	HeaderSize uint16
	Size       uint32
	Offset     int
}

// end returns the absolute offset one past the last byte of the chunk.
func (h chunkHeader) end() int {
	return h.Offset + int(h.Size)
}

// body returns the chunk's bytes, header included.
func (h chunkHeader) body(data []byte) []byte {
	return data[h.Offset:h.end()]
}

// readChunkHeader decodes the chunk header at offset and verifies that
// the declared sizes are self-consistent and fit within data. A chunk
// that passes this check can be skipped safely by its declared size.
func readChunkHeader(data []byte, offset int) (chunkHeader, error) {
	if offset < 0 || offset > len(data) {
		return chunkHeader{}, fmt.Errorf("chunk offset %d outside buffer of %d bytes", offset, len(data))
	}
	remaining := len(data) - offset
	if remaining < chunkHeaderSize {
		return chunkHeader{}, fmt.Errorf("chunk header at offset %d truncated: %d bytes remain", offset, remaining)
	}
	header := chunkHeader{
		Type:       ChunkType(le.Uint16(data[offset:])),
		HeaderSize: le.Uint16(data[offset+2:]),
		Size:       le.Uint32(data[offset+4:]),
		Offset:     offset,
	}
	if header.HeaderSize < chunkHeaderSize {
		return chunkHeader{}, fmt.Errorf("%s chunk at offset %d has header size %d, below minimum %d",
			header.Type, offset, header.HeaderSize, chunkHeaderSize)
	}
	if uint32(header.HeaderSize) > header.Size {
		return chunkHeader{}, fmt.Errorf("%s chunk at offset %d has header size %d larger than chunk size %d",
			header.Type, offset, header.HeaderSize, header.Size)
	}
	if uint64(header.Size) > uint64(remaining) {
		return chunkHeader{}, fmt.Errorf("%s chunk at offset %d declares %d bytes but only %d remain",
			header.Type, offset, header.Size, remaining)
	}
	return header, nil
}

// putChunkSize rewrites the total-size field of the chunk starting at
// chunk[0].
func putChunkSize(chunk []byte, size int) {
	le.PutUint32(chunk[4:], uint32(size))
}
