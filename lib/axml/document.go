// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"fmt"
)

// document is the decoded prefix of a binary XML document: the
// document chunk header, the string pool, and the optional resource
// map. Node chunks are decoded on demand from bodyStart.
type document struct {
	// data is the document chunk (data[:header.Size] of the input).
	data []byte

	// trailer holds any bytes after the document chunk. They are not
	// interpreted but are preserved on re-encoding.
	trailer []byte

	header chunkHeader
	pool   *StringPool

	// resourceMap is the resource map chunk header, or nil if the
	// document has none. resources[i] is the resource ID of pool
	// string i.
	resourceMap *chunkHeader
	resources   []uint32

	// bodyStart is the offset of the first node chunk.
	bodyStart int
}

// parseDocument decodes the document header, string pool, and resource
// map. Errors wrap [ErrMalformedDocument] or [ErrMalformedPool].
func parseDocument(data []byte) (*document, error) {
	header, err := readChunkHeader(data, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: document header: %w", ErrMalformedDocument, err)
	}
	if header.Type != ChunkXML {
		return nil, fmt.Errorf("%w: document chunk type is %s, want %s",
			ErrMalformedDocument, header.Type, ChunkXML)
	}

	doc := &document{
		data:    data[:header.Size],
		trailer: data[header.Size:],
		header:  header,
	}

	poolOffset := int(header.HeaderSize)
	pool, poolSize, err := DecodeStringPool(doc.data, poolOffset)
	if err != nil {
		return nil, err
	}
	doc.pool = pool
	doc.bodyStart = poolOffset + poolSize

	if doc.bodyStart < len(doc.data) {
		next, err := readChunkHeader(doc.data, doc.bodyStart)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
		if next.Type == ChunkResourceMap {
			payload := int(next.Size) - int(next.HeaderSize)
			if payload%4 != 0 {
				return nil, fmt.Errorf("%w: resource map payload of %d bytes is not a multiple of 4",
					ErrMalformedDocument, payload)
			}
			doc.resources = make([]uint32, payload/4)
			base := next.Offset + int(next.HeaderSize)
			for i := range doc.resources {
				doc.resources[i] = le.Uint32(doc.data[base+4*i:])
			}
			doc.resourceMap = &next
			doc.bodyStart = next.end()
		}
	}

	return doc, nil
}

// resourceID returns the resource ID recorded for an attribute name
// string, or 0 if the string has none.
func (d *document) resourceID(ref StringRef) uint32 {
	if uint64(ref) < uint64(len(d.resources)) {
		return d.resources[ref]
	}
	return 0
}

// rawAttribute is one attribute record as encoded.
type rawAttribute struct {
	namespace StringRef
	name      StringRef
	raw       StringRef
	value     Value
}

// elementChunk is a decoded start element chunk with the absolute
// offsets needed to patch it.
type elementChunk struct {
	header chunkHeader
	line   uint32

	// extension is the absolute offset of the element extension.
	extension int

	namespace StringRef
	name      StringRef

	// firstAttribute is the absolute offset of attribute 0;
	// attributeStride is the per-attribute record size.
	firstAttribute  int
	attributeStride int
	attributes      []rawAttribute

	idIndex    uint16
	classIndex uint16
	styleIndex uint16
}

// nodeLine validates the node header of a chunk and returns its line
// number.
func (d *document) nodeLine(header chunkHeader) (uint32, error) {
	if header.HeaderSize < nodeHeaderSize {
		return 0, fmt.Errorf("%s chunk at offset %d has header size %d, below node minimum %d",
			header.Type, header.Offset, header.HeaderSize, nodeHeaderSize)
	}
	return le.Uint32(d.data[header.Offset+8:]), nil
}

// extension returns the absolute offset of a node chunk's extension
// after verifying it holds at least size bytes.
func (d *document) extension(header chunkHeader, size int) (int, error) {
	start := header.Offset + int(header.HeaderSize)
	if header.end()-start < size {
		return 0, fmt.Errorf("%s chunk at offset %d has %d extension bytes, need %d",
			header.Type, header.Offset, header.end()-start, size)
	}
	return start, nil
}

func (d *document) parseStartElement(header chunkHeader) (*elementChunk, error) {
	line, err := d.nodeLine(header)
	if err != nil {
		return nil, err
	}
	extension, err := d.extension(header, startElementSize)
	if err != nil {
		return nil, err
	}

	element := &elementChunk{
		header:          header,
		line:            line,
		extension:       extension,
		namespace:       StringRef(le.Uint32(d.data[extension:])),
		name:            StringRef(le.Uint32(d.data[extension+4:])),
		firstAttribute:  extension + int(le.Uint16(d.data[extension+8:])),
		attributeStride: int(le.Uint16(d.data[extension+10:])),
		idIndex:         le.Uint16(d.data[extension+14:]),
		classIndex:      le.Uint16(d.data[extension+16:]),
		styleIndex:      le.Uint16(d.data[extension+18:]),
	}
	count := int(le.Uint16(d.data[extension+12:]))

	if element.firstAttribute < extension+startElementSize || element.firstAttribute > header.end() {
		return nil, fmt.Errorf("start element at offset %d places attributes at offset %d, outside [%d, %d]",
			header.Offset, element.firstAttribute, extension+startElementSize, header.end())
	}
	if count > 0 {
		if element.attributeStride < attributeSize {
			return nil, fmt.Errorf("start element at offset %d has attribute size %d, below minimum %d",
				header.Offset, element.attributeStride, attributeSize)
		}
		if element.firstAttribute+count*element.attributeStride > header.end() {
			return nil, fmt.Errorf("start element at offset %d declares %d attributes of %d bytes past its end",
				header.Offset, count, element.attributeStride)
		}
	}

	element.attributes = make([]rawAttribute, count)
	for i := range element.attributes {
		record := d.data[element.firstAttribute+i*element.attributeStride:]
		element.attributes[i] = rawAttribute{
			namespace: StringRef(le.Uint32(record[0:])),
			name:      StringRef(le.Uint32(record[4:])),
			raw:       StringRef(le.Uint32(record[8:])),
			value:     decodeValue(record[12:]),
		}
	}
	return element, nil
}

// resolveName resolves an element or attribute name. The local name is
// mandatory; the namespace may be [NoString].
func (d *document) resolveName(namespace, local StringRef) (Name, error) {
	uri, err := d.pool.lookupOptional(namespace)
	if err != nil {
		return Name{}, fmt.Errorf("namespace: %w", err)
	}
	name, err := d.pool.Lookup(local)
	if err != nil {
		return Name{}, fmt.Errorf("name: %w", err)
	}
	return Name{Namespace: uri, Local: name}, nil
}

// resolveAttribute resolves every string reference of an attribute.
// String-typed values without a raw value take their text from the
// typed value's pool index.
func (d *document) resolveAttribute(raw rawAttribute) (Attribute, error) {
	name, err := d.resolveName(raw.namespace, raw.name)
	if err != nil {
		return Attribute{}, err
	}
	text, err := d.pool.lookupOptional(raw.raw)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %s raw value: %w", name, err)
	}
	if raw.value.Type == TypeString {
		typed, err := d.pool.Lookup(StringRef(raw.value.Data))
		if err != nil {
			return Attribute{}, fmt.Errorf("attribute %s string value: %w", name, err)
		}
		if raw.raw == NoString {
			text = typed
		}
	}
	return Attribute{
		Name:       name,
		ResourceID: d.resourceID(raw.name),
		Raw:        text,
		Value:      raw.value,
	}, nil
}

func (d *document) resolveStartElement(element *elementChunk) (*StartTag, error) {
	name, err := d.resolveName(element.namespace, element.name)
	if err != nil {
		return nil, fmt.Errorf("start element at offset %d: %w", element.header.Offset, err)
	}
	tag := &StartTag{
		Name:       name,
		Line:       element.line,
		Offset:     element.header.Offset,
		Attributes: make([]Attribute, len(element.attributes)),
	}
	for i, raw := range element.attributes {
		tag.Attributes[i], err = d.resolveAttribute(raw)
		if err != nil {
			return nil, fmt.Errorf("start element %s at offset %d: %w", name, element.header.Offset, err)
		}
	}
	return tag, nil
}

func (d *document) parseEndElement(header chunkHeader) (*EndTag, error) {
	line, err := d.nodeLine(header)
	if err != nil {
		return nil, err
	}
	extension, err := d.extension(header, endElementSize)
	if err != nil {
		return nil, err
	}
	name, err := d.resolveName(
		StringRef(le.Uint32(d.data[extension:])),
		StringRef(le.Uint32(d.data[extension+4:])),
	)
	if err != nil {
		return nil, fmt.Errorf("end element at offset %d: %w", header.Offset, err)
	}
	return &EndTag{Name: name, Line: line, Offset: header.Offset}, nil
}

func (d *document) parseCharData(header chunkHeader) (*CharData, error) {
	line, err := d.nodeLine(header)
	if err != nil {
		return nil, err
	}
	extension, err := d.extension(header, cdataSize)
	if err != nil {
		return nil, err
	}
	text, err := d.pool.Lookup(StringRef(le.Uint32(d.data[extension:])))
	if err != nil {
		return nil, fmt.Errorf("character data at offset %d: %w", header.Offset, err)
	}
	return &CharData{Text: text, Line: line, Offset: header.Offset}, nil
}
