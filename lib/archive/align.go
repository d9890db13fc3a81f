// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Zip layout constants used to predict where entry data starts.
const (
	// localHeaderSize is the fixed part of a local file header.
	localHeaderSize = 30

	// dataDescriptorSize is signature, CRC-32, and two 32-bit sizes;
	// zip64 descriptors carry 64-bit sizes.
	dataDescriptorSize   = 16
	dataDescriptor64Size = 24

	// alignmentExtraID is the extra field zipalign and apksigner use
	// to pad stored entries: a 2-byte alignment followed by zero
	// padding.
	alignmentExtraID = 0xD935

	// alignmentExtraMinSize is the field header (ID and size) plus the
	// alignment value.
	alignmentExtraMinSize = 6

	// dataDescriptorFlag is general purpose bit 3.
	dataDescriptorFlag = 0x8
)

// countingWriter counts the bytes the zip writer has flushed.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// aligner tracks the output offset of a zip writer so that stored
// entries can be padded to start their data on an aligned offset.
type aligner struct {
	writer    *zip.Writer
	output    *countingWriter
	alignment int

	// last is the entry created most recently. Its data descriptor is
	// only written when the next entry is created.
	last *zip.FileHeader
}

// offset returns the position the next local header will be written
// at.
func (a *aligner) offset() (int64, error) {
	if err := a.writer.Flush(); err != nil {
		return 0, fmt.Errorf("flushing container: %w", err)
	}
	return a.output.count + pendingDescriptor(a.last), nil
}

// align replaces any alignment padding in header's extra data with
// padding that aligns the entry's data for the current offset. Only
// stored file entries are aligned; everything else just loses stale
// padding.
func (a *aligner) align(header *zip.FileHeader) error {
	header.Extra = stripExtra(header.Extra, alignmentExtraID)
	if a.alignment <= 1 || header.Method != zip.Store || strings.HasSuffix(header.Name, "/") {
		return nil
	}

	offset, err := a.offset()
	if err != nil {
		return err
	}
	dataStart := offset + localHeaderSize + int64(len(header.Name)) + int64(len(header.Extra)) + alignmentExtraMinSize
	padding := (int64(a.alignment) - dataStart%int64(a.alignment)) % int64(a.alignment)

	field := make([]byte, alignmentExtraMinSize+padding)
	binary.LittleEndian.PutUint16(field[0:], alignmentExtraID)
	binary.LittleEndian.PutUint16(field[2:], uint16(2+padding))
	binary.LittleEndian.PutUint16(field[4:], uint16(a.alignment))
	header.Extra = append(header.Extra, field...)
	return nil
}

// started records the entry just created so the next offset accounts
// for its data descriptor.
func (a *aligner) started(header *zip.FileHeader) {
	a.last = header
}

// pendingDescriptor returns the size of the data descriptor the zip
// writer appends to header's entry when it closes it.
func pendingDescriptor(header *zip.FileHeader) int64 {
	if header == nil || header.Flags&dataDescriptorFlag == 0 || strings.HasSuffix(header.Name, "/") {
		return 0
	}
	if header.CompressedSize64 >= 0xffffffff || header.UncompressedSize64 >= 0xffffffff {
		return dataDescriptor64Size
	}
	return dataDescriptorSize
}

// stripExtra returns extra without fields of the given ID. Malformed
// trailing bytes are dropped.
func stripExtra(extra []byte, id uint16) []byte {
	var kept []byte
	for len(extra) >= 4 {
		fieldID := binary.LittleEndian.Uint16(extra[0:])
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		if 4+size > len(extra) {
			break
		}
		if fieldID != id {
			kept = append(kept, extra[:4+size]...)
		}
		extra = extra[4+size:]
	}
	return kept
}
