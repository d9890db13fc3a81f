// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package axmltest builds binary XML documents for tests. It is an
// encoder written independently of package axml so that decoder tests
// do not validate the codec against itself.
package axmltest

import (
	"encoding/binary"
	"unicode/utf16"
)

// AndroidNamespace is the URI bound to the android: prefix.
const AndroidNamespace = "http://schemas.android.com/apk/res/android"

// Framework attribute resource IDs used by the fixtures.
const (
	ResourceLabel         uint32 = 0x01010001
	ResourceIcon          uint32 = 0x01010002
	ResourceName          uint32 = 0x01010003
	ResourceDebuggable    uint32 = 0x0101000f
	ResourceMinSDKVersion uint32 = 0x0101020c
	ResourceVersionCode   uint32 = 0x0101021b
	ResourceVersionName   uint32 = 0x0101021c
	ResourceAllowBackup   uint32 = 0x01010280
)

// Value type tags written by the fixtures.
const (
	TypeReference uint8 = 0x01
	TypeString    uint8 = 0x03
	TypeIntDec    uint8 = 0x10
	TypeBoolean   uint8 = 0x12
)

const noString = 0xFFFFFFFF

var le = binary.LittleEndian

// Attr is an attribute to encode.
type Attr struct {
	Namespace  string
	Name       string
	ResourceID uint32
	Raw        string
	Type       uint8
	Data       uint32
}

// StringAttr returns a string-typed attribute.
func StringAttr(namespace, name string, resourceID uint32, value string) Attr {
	return Attr{Namespace: namespace, Name: name, ResourceID: resourceID, Raw: value, Type: TypeString}
}

// BoolAttr returns a compiled boolean attribute (no raw value).
func BoolAttr(namespace, name string, resourceID uint32, value bool) Attr {
	var data uint32
	if value {
		data = 0xFFFFFFFF
	}
	return Attr{Namespace: namespace, Name: name, ResourceID: resourceID, Type: TypeBoolean, Data: data}
}

// IntAttr returns a decimal integer attribute.
func IntAttr(namespace, name string, resourceID uint32, value int32) Attr {
	return Attr{Namespace: namespace, Name: name, ResourceID: resourceID, Type: TypeIntDec, Data: uint32(value)}
}

// ReferenceAttr returns a resource reference attribute.
func ReferenceAttr(namespace, name string, resourceID uint32, reference uint32) Attr {
	return Attr{Namespace: namespace, Name: name, ResourceID: resourceID, Type: TypeReference, Data: reference}
}

type nodeKind int

const (
	nodeStartNamespace nodeKind = iota
	nodeEndNamespace
	nodeStart
	nodeEnd
	nodeText
	nodeUnknown
)

type node struct {
	kind      nodeKind
	namespace string
	name      string
	text      string
	attrs     []Attr
	chunkType uint16
	payload   []byte
}

// Builder accumulates nodes and encodes them with [Builder.Bytes].
// Attribute names carrying a resource ID are placed first in the
// string pool, matching the layout the resource compiler produces.
type Builder struct {
	// UTF8 selects UTF-8 pool encoding instead of UTF-16.
	UTF8 bool

	nodes []node
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// StartNamespace adds a namespace start chunk.
func (b *Builder) StartNamespace(prefix, uri string) *Builder {
	b.nodes = append(b.nodes, node{kind: nodeStartNamespace, name: prefix, namespace: uri})
	return b
}

// EndNamespace adds a namespace end chunk.
func (b *Builder) EndNamespace(prefix, uri string) *Builder {
	b.nodes = append(b.nodes, node{kind: nodeEndNamespace, name: prefix, namespace: uri})
	return b
}

// Start adds a start element chunk.
func (b *Builder) Start(namespace, name string, attrs ...Attr) *Builder {
	b.nodes = append(b.nodes, node{kind: nodeStart, namespace: namespace, name: name, attrs: attrs})
	return b
}

// End adds an end element chunk.
func (b *Builder) End(namespace, name string) *Builder {
	b.nodes = append(b.nodes, node{kind: nodeEnd, namespace: namespace, name: name})
	return b
}

// Text adds a character data chunk.
func (b *Builder) Text(text string) *Builder {
	b.nodes = append(b.nodes, node{kind: nodeText, text: text})
	return b
}

// Unknown adds a chunk of an arbitrary type with an 8-byte header and
// the given payload.
func (b *Builder) Unknown(chunkType uint16, payload []byte) *Builder {
	b.nodes = append(b.nodes, node{kind: nodeUnknown, chunkType: chunkType, payload: payload})
	return b
}

// stringTable assigns pool indices.
type stringTable struct {
	strings   []string
	index     map[string]uint32
	resources []uint32
}

func (t *stringTable) intern(s string) uint32 {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := uint32(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = i
	return i
}

func (t *stringTable) optional(s string) uint32 {
	if s == "" {
		return noString
	}
	return t.intern(s)
}

// Bytes encodes the document.
func (b *Builder) Bytes() []byte {
	table := &stringTable{index: make(map[string]uint32)}

	// Resource-identified attribute names first, in first-use order.
	for _, n := range b.nodes {
		for _, attr := range n.attrs {
			if attr.ResourceID == 0 {
				continue
			}
			if _, ok := table.index[attr.Name]; !ok {
				table.intern(attr.Name)
				table.resources = append(table.resources, attr.ResourceID)
			}
		}
	}

	var body []byte
	line := uint32(1)
	for _, n := range b.nodes {
		switch n.kind {
		case nodeStartNamespace, nodeEndNamespace:
			chunkType := uint16(0x0100)
			if n.kind == nodeEndNamespace {
				chunkType = 0x0101
			}
			chunk := nodeHeader(chunkType, 24, line)
			chunk = le.AppendUint32(chunk, table.intern(n.name))
			chunk = le.AppendUint32(chunk, table.intern(n.namespace))
			body = append(body, chunk...)

		case nodeStart:
			chunk := nodeHeader(0x0102, uint32(16+20+20*len(n.attrs)), line)
			chunk = le.AppendUint32(chunk, table.optional(n.namespace))
			chunk = le.AppendUint32(chunk, table.intern(n.name))
			chunk = le.AppendUint16(chunk, 20)
			chunk = le.AppendUint16(chunk, 20)
			chunk = le.AppendUint16(chunk, uint16(len(n.attrs)))
			chunk = le.AppendUint16(chunk, 0)
			chunk = le.AppendUint16(chunk, 0)
			chunk = le.AppendUint16(chunk, 0)
			for _, attr := range n.attrs {
				raw := table.optional(attr.Raw)
				data := attr.Data
				if attr.Type == TypeString {
					data = raw
				}
				chunk = le.AppendUint32(chunk, table.optional(attr.Namespace))
				chunk = le.AppendUint32(chunk, table.intern(attr.Name))
				chunk = le.AppendUint32(chunk, raw)
				chunk = appendValue(chunk, attr.Type, data)
			}
			body = append(body, chunk...)

		case nodeEnd:
			chunk := nodeHeader(0x0103, 24, line)
			chunk = le.AppendUint32(chunk, table.optional(n.namespace))
			chunk = le.AppendUint32(chunk, table.intern(n.name))
			body = append(body, chunk...)

		case nodeText:
			chunk := nodeHeader(0x0104, 28, line)
			chunk = le.AppendUint32(chunk, table.intern(n.text))
			chunk = appendValue(chunk, 0, 0)
			body = append(body, chunk...)

		case nodeUnknown:
			chunk := le.AppendUint16(nil, n.chunkType)
			chunk = le.AppendUint16(chunk, 8)
			chunk = le.AppendUint32(chunk, uint32(8+len(n.payload)))
			chunk = append(chunk, n.payload...)
			body = append(body, chunk...)
		}
		line++
	}

	pool := encodePool(table.strings, b.UTF8)
	var resourceMap []byte
	if len(table.resources) > 0 {
		resourceMap = le.AppendUint16(nil, 0x0180)
		resourceMap = le.AppendUint16(resourceMap, 8)
		resourceMap = le.AppendUint32(resourceMap, uint32(8+4*len(table.resources)))
		for _, id := range table.resources {
			resourceMap = le.AppendUint32(resourceMap, id)
		}
	}

	size := 8 + len(pool) + len(resourceMap) + len(body)
	out := le.AppendUint16(nil, 0x0003)
	out = le.AppendUint16(out, 8)
	out = le.AppendUint32(out, uint32(size))
	out = append(out, pool...)
	out = append(out, resourceMap...)
	return append(out, body...)
}

func nodeHeader(chunkType uint16, size uint32, line uint32) []byte {
	chunk := le.AppendUint16(nil, chunkType)
	chunk = le.AppendUint16(chunk, 16)
	chunk = le.AppendUint32(chunk, size)
	chunk = le.AppendUint32(chunk, line)
	return le.AppendUint32(chunk, noString)
}

func appendValue(dst []byte, valueType uint8, data uint32) []byte {
	dst = le.AppendUint16(dst, 8)
	dst = append(dst, 0, valueType)
	return le.AppendUint32(dst, data)
}

func encodePool(strings []string, utf8 bool) []byte {
	var data []byte
	offsets := make([]uint32, len(strings))
	for i, s := range strings {
		offsets[i] = uint32(len(data))
		if utf8 {
			units := len(utf16.Encode([]rune(s)))
			data = appendLength8(data, units)
			data = appendLength8(data, len(s))
			data = append(data, s...)
			data = append(data, 0)
		} else {
			units := utf16.Encode([]rune(s))
			data = le.AppendUint16(data, uint16(len(units)))
			for _, unit := range units {
				data = le.AppendUint16(data, unit)
			}
			data = le.AppendUint16(data, 0)
		}
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}

	var flags uint32
	if utf8 {
		flags = 1 << 8
	}
	stringsStart := 28 + 4*len(strings)
	size := stringsStart + len(data)

	out := le.AppendUint16(nil, 0x0001)
	out = le.AppendUint16(out, 28)
	out = le.AppendUint32(out, uint32(size))
	out = le.AppendUint32(out, uint32(len(strings)))
	out = le.AppendUint32(out, 0)
	out = le.AppendUint32(out, flags)
	out = le.AppendUint32(out, uint32(stringsStart))
	out = le.AppendUint32(out, 0)
	for _, offset := range offsets {
		out = le.AppendUint32(out, offset)
	}
	return append(out, data...)
}

func appendLength8(dst []byte, n int) []byte {
	if n > 0x7f {
		return append(dst, byte(n>>8)|0x80, byte(n))
	}
	return append(dst, byte(n))
}
