// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"errors"
	"fmt"
)

// Name is a namespace-qualified element or attribute name. Namespace
// is the namespace URI, empty when the name is unqualified.
type Name struct {
	Namespace string
	Local     string
}

// String returns the name in {uri}local form, or just the local name
// when unqualified.
func (n Name) String() string {
	if n.Namespace == "" {
		return n.Local
	}
	return "{" + n.Namespace + "}" + n.Local
}

// Attribute is a resolved attribute of a start tag.
type Attribute struct {
	Name Name

	// ResourceID is the framework resource ID assigned to the
	// attribute name by the resource map, or 0.
	ResourceID uint32

	// Raw is the original string value, or the resolved pool string
	// for string-typed values. Empty when the attribute has neither.
	Raw string

	Value Value
}

// Text returns the attribute value as text: the raw string when
// present, otherwise the formatted typed value.
func (a Attribute) Text() string {
	if a.Raw != "" || a.Value.Type == TypeString {
		return a.Raw
	}
	return a.Value.String()
}

// StartTag is emitted for each start element chunk.
type StartTag struct {
	Name       Name
	Attributes []Attribute
	Line       uint32
	Offset     int

	// Depth is the nesting depth, 0 for the root element.
	Depth int
}

// Attribute returns the first attribute matching namespace and local
// name.
func (t *StartTag) Attribute(namespace, local string) (Attribute, bool) {
	for _, attribute := range t.Attributes {
		if attribute.Name.Namespace == namespace && attribute.Name.Local == local {
			return attribute, true
		}
	}
	return Attribute{}, false
}

// EndTag is emitted for each end element chunk.
type EndTag struct {
	Name   Name
	Line   uint32
	Offset int
	Depth  int
}

// CharData is emitted for each character data chunk.
type CharData struct {
	Text   string
	Line   uint32
	Offset int
}

// Invalid is emitted once when the document cannot be decoded further.
// Offset is the position of the chunk (or header) that failed.
type Invalid struct {
	Offset int
	Err    error
}

// Reason returns the diagnostic description.
func (i *Invalid) Reason() string {
	return i.Err.Error()
}

// Visitor receives the events of a [Walk] in document order. Every
// visitor handles all four kinds; returning an error from any method
// stops the walk immediately and the error is returned from Walk.
type Visitor interface {
	StartTag(*StartTag) error
	EndTag(*EndTag) error
	CharData(*CharData) error
	Invalid(*Invalid) error
}

// visitorError marks an error returned by the visitor so that Walk
// passes it through instead of reporting it as a decode failure.
type visitorError struct {
	err error
}

func (e *visitorError) Error() string { return e.err.Error() }

// decodeError carries the offset of the chunk that failed to decode.
type decodeError struct {
	offset int
	err    error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Walk decodes data and streams its elements to visitor in document
// order. Namespace chunks, resource maps, and unknown chunk kinds are
// skipped by their declared size.
//
// On a decode failure the visitor's Invalid method is called exactly
// once and no further callbacks happen. Walk then returns the error
// Invalid returned, or, if Invalid returned nil, the decode error
// (wrapping [ErrMalformedDocument] or [ErrMalformedPool]).
func Walk(data []byte, visitor Visitor) error {
	err := walk(data, visitor)
	if err == nil {
		return nil
	}

	var fromVisitor *visitorError
	if errors.As(err, &fromVisitor) {
		return fromVisitor.err
	}

	invalid := &Invalid{Err: err}
	var decodeFailure *decodeError
	if errors.As(err, &decodeFailure) {
		invalid.Offset = decodeFailure.offset
	}
	if visitErr := visitor.Invalid(invalid); visitErr != nil {
		return visitErr
	}
	return err
}

func walk(data []byte, visitor Visitor) error {
	doc, err := parseDocument(data)
	if err != nil {
		return &decodeError{offset: 0, err: err}
	}

	var open []Name
	offset := doc.bodyStart
	for offset < len(doc.data) {
		header, err := readChunkHeader(doc.data, offset)
		if err != nil {
			return &decodeError{offset: offset, err: fmt.Errorf("%w: %w", ErrMalformedDocument, err)}
		}

		switch header.Type {
		case ChunkStartElement:
			element, err := doc.parseStartElement(header)
			if err != nil {
				return &decodeError{offset: offset, err: fmt.Errorf("%w: %w", ErrMalformedDocument, err)}
			}
			tag, err := doc.resolveStartElement(element)
			if err != nil {
				return &decodeError{offset: offset, err: fmt.Errorf("%w: %w", ErrMalformedDocument, err)}
			}
			tag.Depth = len(open)
			open = append(open, tag.Name)
			if err := visitor.StartTag(tag); err != nil {
				return &visitorError{err: err}
			}

		case ChunkEndElement:
			tag, err := doc.parseEndElement(header)
			if err != nil {
				return &decodeError{offset: offset, err: fmt.Errorf("%w: %w", ErrMalformedDocument, err)}
			}
			if len(open) == 0 {
				return &decodeError{offset: offset, err: fmt.Errorf("%w: end tag %s at offset %d has no open start tag",
					ErrMalformedDocument, tag.Name, offset)}
			}
			if expected := open[len(open)-1]; expected != tag.Name {
				return &decodeError{offset: offset, err: fmt.Errorf("%w: end tag %s at offset %d does not match open start tag %s",
					ErrMalformedDocument, tag.Name, offset, expected)}
			}
			open = open[:len(open)-1]
			tag.Depth = len(open)
			if err := visitor.EndTag(tag); err != nil {
				return &visitorError{err: err}
			}

		case ChunkCData:
			text, err := doc.parseCharData(header)
			if err != nil {
				return &decodeError{offset: offset, err: fmt.Errorf("%w: %w", ErrMalformedDocument, err)}
			}
			if err := visitor.CharData(text); err != nil {
				return &visitorError{err: err}
			}
		}

		offset = header.end()
	}

	if len(open) > 0 {
		return &decodeError{offset: offset, err: fmt.Errorf("%w: document ends with %d unclosed elements (innermost %s)",
			ErrMalformedDocument, len(open), open[len(open)-1])}
	}
	return nil
}

// HasElement reports whether the document contains a start tag whose
// local name is name. Decoding stops at the first match.
func HasElement(data []byte, name string) (bool, error) {
	finder := &elementFinder{name: name}
	err := Walk(data, finder)
	if errors.Is(err, errElementFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// errElementFound stops a walk early once the element is seen.
var errElementFound = errors.New("element found")

type elementFinder struct {
	name string
}

func (f *elementFinder) StartTag(tag *StartTag) error {
	if tag.Name.Local == f.name {
		return errElementFound
	}
	return nil
}

func (f *elementFinder) EndTag(*EndTag) error     { return nil }
func (f *elementFinder) CharData(*CharData) error { return nil }
func (f *elementFinder) Invalid(*Invalid) error   { return nil }
