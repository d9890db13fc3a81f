// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"fmt"
)

// AttributeSpec describes an attribute to set or remove.
type AttributeSpec struct {
	// Namespace is the attribute namespace URI, empty for none.
	Namespace string

	// Name is the attribute local name.
	Name string

	// ResourceID is the framework resource ID of the attribute (for
	// example 0x0101000f for android:debuggable), or 0. When set, an
	// existing attribute carrying the same ID matches even if its name
	// string differs, and new attributes are inserted in ascending ID
	// order as the framework's attribute lookup expects.
	ResourceID uint32

	// Value is the typed value. For TypeString the data is taken from
	// Raw.
	Value Value

	// Raw is the raw string value. When empty, the existing raw value
	// is ignored when deciding whether the attribute already matches,
	// and cleared when the attribute is written.
	Raw string
}

// Mutation is the result of an edit. Data is the complete document;
// when Changed is false it is the input slice itself.
type Mutation struct {
	Data     []byte
	Changed  bool
	Inserted bool
	Removed  bool
}

// SetAttribute sets the attribute described by spec on the first start
// tag whose local name is element, inserting it if absent. The
// returned document keeps every existing string pool index; strings
// the edit needs are appended to the pool. Setting a value the
// attribute already holds returns the input unchanged.
func SetAttribute(data []byte, element string, spec AttributeSpec) (*Mutation, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("axml: attribute name is required")
	}
	if spec.Value.Type == TypeString && spec.Raw == "" {
		return nil, fmt.Errorf("axml: string-typed attribute %s requires a raw value", spec.Name)
	}

	doc, target, err := locateElement(data, element)
	if err != nil {
		return nil, err
	}
	edit := newEditor(doc)

	index, err := edit.findAttribute(target, spec)
	if err != nil {
		return nil, err
	}
	if index >= 0 {
		return edit.replace(target, index, spec)
	}
	return edit.insert(target, spec)
}

// RemoveAttribute removes the first attribute matching spec's
// namespace, name, or resource ID from the first start tag whose local
// name is element. Removing an absent attribute returns the input
// unchanged. Strings the attribute referenced stay in the pool.
func RemoveAttribute(data []byte, element string, spec AttributeSpec) (*Mutation, error) {
	doc, target, err := locateElement(data, element)
	if err != nil {
		return nil, err
	}
	edit := newEditor(doc)

	index, err := edit.findAttribute(target, spec)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		return &Mutation{Data: data}, nil
	}

	chunk := target.header.body(doc.data)
	recordStart := target.firstAttribute - target.header.Offset + index*target.attributeStride
	patched := make([]byte, 0, len(chunk)-target.attributeStride)
	patched = append(patched, chunk[:recordStart]...)
	patched = append(patched, chunk[recordStart+target.attributeStride:]...)
	putChunkSize(patched, len(patched))

	extension := target.extension - target.header.Offset
	le.PutUint16(patched[extension+12:], uint16(len(target.attributes)-1))
	for _, field := range []int{14, 16, 18} {
		position := le.Uint16(patched[extension+field:])
		switch {
		case position == 0:
		case int(position)-1 == index:
			le.PutUint16(patched[extension+field:], 0)
		case int(position)-1 > index:
			le.PutUint16(patched[extension+field:], position-1)
		}
	}

	return &Mutation{Data: edit.assemble(target, patched), Changed: true, Removed: true}, nil
}

// locateElement decodes data, verifies the framing of every chunk, and
// returns the first start element whose local name is element.
func locateElement(data []byte, element string) (*document, *elementChunk, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, nil, err
	}

	var target *elementChunk
	for offset := doc.bodyStart; offset < len(doc.data); {
		header, err := readChunkHeader(doc.data, offset)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
		if header.Type == ChunkStartElement && target == nil {
			candidate, err := doc.parseStartElement(header)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
			}
			name, err := doc.pool.Lookup(candidate.name)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: start element at offset %d: %w", ErrMalformedDocument, offset, err)
			}
			if name == element {
				target = candidate
			}
		}
		offset = header.end()
	}

	if target == nil {
		return nil, nil, fmt.Errorf("%w: no <%s> start tag", ErrElementNotFound, element)
	}
	return doc, target, nil
}

// editor accumulates pool and resource map changes for one edit.
type editor struct {
	doc              *document
	resources        []uint32
	resourcesChanged bool
}

func newEditor(doc *document) *editor {
	return &editor{
		doc:       doc,
		resources: append([]uint32(nil), doc.resources...),
	}
}

func (e *editor) resourceOf(ref StringRef) uint32 {
	if uint64(ref) < uint64(len(e.resources)) {
		return e.resources[ref]
	}
	return 0
}

// intern returns the first pool reference for s, appending s if the
// pool lacks it.
func (e *editor) intern(s string) (StringRef, error) {
	if ref := e.doc.pool.Index(s); ref != NoString {
		return ref, nil
	}
	return e.doc.pool.add(s)
}

// attributeName returns a pool reference usable as the name of an
// attribute with the given resource ID. Attribute names are identified
// by the resource map, so a string only qualifies if its map entry
// matches.
func (e *editor) attributeName(name string, resourceID uint32) (StringRef, error) {
	pool := e.doc.pool
	for i := 0; i < pool.Len(); i++ {
		ref := StringRef(i)
		if e.resourceOf(ref) != resourceID {
			continue
		}
		if candidate, err := pool.Lookup(ref); err == nil && candidate == name {
			return ref, nil
		}
	}

	ref, err := pool.add(name)
	if err != nil {
		return NoString, err
	}
	if resourceID == 0 {
		return ref, nil
	}
	if int(ref) < len(e.resources) {
		e.resources[ref] = resourceID
	} else {
		for len(e.resources) < int(ref) {
			e.resources = append(e.resources, 0)
		}
		e.resources = append(e.resources, resourceID)
	}
	e.resourcesChanged = true
	return ref, nil
}

// findAttribute returns the index of the first attribute of target
// matching spec, or -1.
func (e *editor) findAttribute(target *elementChunk, spec AttributeSpec) (int, error) {
	for i, attribute := range target.attributes {
		if spec.ResourceID != 0 && e.resourceOf(attribute.name) == spec.ResourceID {
			return i, nil
		}
		name, err := e.doc.resolveName(attribute.namespace, attribute.name)
		if err != nil {
			return -1, fmt.Errorf("%w: attribute %d of element at offset %d: %w",
				ErrMalformedDocument, i, target.header.Offset, err)
		}
		if name.Namespace == spec.Namespace && name.Local == spec.Name {
			return i, nil
		}
	}
	return -1, nil
}

// matches reports whether an encoded attribute already holds spec's
// value.
func (e *editor) matches(attribute rawAttribute, spec AttributeSpec) bool {
	if attribute.value.Type != spec.Value.Type {
		return false
	}
	pool := e.doc.pool
	if spec.Raw != "" {
		raw, err := pool.lookupOptional(attribute.raw)
		if err != nil || raw != spec.Raw {
			return false
		}
	}
	if spec.Value.Type == TypeString {
		text, err := pool.Lookup(StringRef(attribute.value.Data))
		return err == nil && text == spec.Raw
	}
	return attribute.value.Data == spec.Value.Data
}

// encodeValue interns the strings spec's value needs and returns the
// raw reference and typed value to write.
func (e *editor) encodeValue(spec AttributeSpec) (StringRef, Value, error) {
	raw := NoString
	if spec.Raw != "" {
		var err error
		if raw, err = e.intern(spec.Raw); err != nil {
			return NoString, Value{}, err
		}
	}
	value := spec.Value
	if value.Type == TypeString {
		value.Data = uint32(raw)
	}
	return raw, value, nil
}

func (e *editor) replace(target *elementChunk, index int, spec AttributeSpec) (*Mutation, error) {
	if e.matches(target.attributes[index], spec) {
		return &Mutation{Data: e.doc.source()}, nil
	}
	raw, value, err := e.encodeValue(spec)
	if err != nil {
		return nil, err
	}

	patched := append([]byte(nil), target.header.body(e.doc.data)...)
	record := patched[target.firstAttribute-target.header.Offset+index*target.attributeStride:]
	le.PutUint32(record[8:], uint32(raw))
	putValue(record[12:], value)

	return &Mutation{Data: e.assemble(target, patched), Changed: true}, nil
}

func (e *editor) insert(target *elementChunk, spec AttributeSpec) (*Mutation, error) {
	count := len(target.attributes)
	if count >= 0xffff {
		return nil, fmt.Errorf("axml: element at offset %d already has %d attributes", target.header.Offset, count)
	}

	name, err := e.attributeName(spec.Name, spec.ResourceID)
	if err != nil {
		return nil, err
	}
	namespace := NoString
	if spec.Namespace != "" {
		if namespace, err = e.intern(spec.Namespace); err != nil {
			return nil, err
		}
	}
	raw, value, err := e.encodeValue(spec)
	if err != nil {
		return nil, err
	}

	position := count
	if spec.ResourceID != 0 {
		for i, attribute := range target.attributes {
			id := e.resourceOf(attribute.name)
			if id == 0 || id > spec.ResourceID {
				position = i
				break
			}
		}
	}

	stride := target.attributeStride
	if stride < attributeSize {
		stride = attributeSize
	}
	record := make([]byte, stride)
	le.PutUint32(record[0:], uint32(namespace))
	le.PutUint32(record[4:], uint32(name))
	le.PutUint32(record[8:], uint32(raw))
	putValue(record[12:], value)

	chunk := target.header.body(e.doc.data)
	insertAt := target.firstAttribute - target.header.Offset + position*stride
	patched := make([]byte, 0, len(chunk)+stride)
	patched = append(patched, chunk[:insertAt]...)
	patched = append(patched, record...)
	patched = append(patched, chunk[insertAt:]...)
	putChunkSize(patched, len(patched))

	extension := target.extension - target.header.Offset
	le.PutUint16(patched[extension+10:], uint16(stride))
	le.PutUint16(patched[extension+12:], uint16(count+1))
	for _, field := range []int{14, 16, 18} {
		index := le.Uint16(patched[extension+field:])
		if index != 0 && int(index)-1 >= position {
			le.PutUint16(patched[extension+field:], index+1)
		}
	}

	return &Mutation{Data: e.assemble(target, patched), Changed: true, Inserted: true}, nil
}

// assemble re-serializes the document with target's chunk replaced by
// patched. Every byte outside the pool, the resource map, and the
// target chunk is copied verbatim.
func (e *editor) assemble(target *elementChunk, patched []byte) []byte {
	doc := e.doc
	out := make([]byte, 0, len(doc.data)+len(patched)+256)
	out = append(out, doc.data[:doc.header.HeaderSize]...)
	out = append(out, doc.pool.encode()...)

	switch {
	case doc.resourceMap != nil && e.resourcesChanged:
		out = append(out, e.encodeResourceMap(doc.data[doc.resourceMap.Offset:doc.resourceMap.Offset+int(doc.resourceMap.HeaderSize)])...)
	case doc.resourceMap != nil:
		out = append(out, doc.resourceMap.body(doc.data)...)
	case e.resourcesChanged:
		out = append(out, e.encodeResourceMap(nil)...)
	}

	out = append(out, doc.data[doc.bodyStart:target.header.Offset]...)
	out = append(out, patched...)
	out = append(out, doc.data[target.header.end():]...)
	putChunkSize(out, len(out))
	return append(out, doc.trailer...)
}

// encodeResourceMap serializes the edited resource map, reusing the
// original chunk header when there is one.
func (e *editor) encodeResourceMap(header []byte) []byte {
	if header == nil {
		header = make([]byte, chunkHeaderSize)
		le.PutUint16(header[0:], uint16(ChunkResourceMap))
		le.PutUint16(header[2:], chunkHeaderSize)
	}
	out := make([]byte, 0, len(header)+4*len(e.resources))
	out = append(out, header...)
	for _, id := range e.resources {
		out = le.AppendUint32(out, id)
	}
	putChunkSize(out, len(out))
	return out
}

// source returns the original input, document chunk and trailer.
func (d *document) source() []byte {
	return d.data[:len(d.data)+len(d.trailer)]
}
