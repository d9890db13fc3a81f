// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

// EventKind identifies the kind of a recorded walk event.
type EventKind int

const (
	EventStartTag EventKind = iota
	EventEndTag
	EventCharData
	EventInvalid
)

// String returns the human-readable name of an event kind.
func (k EventKind) String() string {
	switch k {
	case EventStartTag:
		return "start_tag"
	case EventEndTag:
		return "end_tag"
	case EventCharData:
		return "char_data"
	case EventInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Event is one recorded walk event. Exactly one of the pointer fields
// is set, selected by Kind.
type Event struct {
	Kind     EventKind
	Start    *StartTag
	End      *EndTag
	CharData *CharData
	Invalid  *Invalid
}

// Recorder is a [Visitor] that records every event. The zero value is
// ready to use.
type Recorder struct {
	Events []Event
}

func (r *Recorder) StartTag(tag *StartTag) error {
	r.Events = append(r.Events, Event{Kind: EventStartTag, Start: tag})
	return nil
}

func (r *Recorder) EndTag(tag *EndTag) error {
	r.Events = append(r.Events, Event{Kind: EventEndTag, End: tag})
	return nil
}

func (r *Recorder) CharData(text *CharData) error {
	r.Events = append(r.Events, Event{Kind: EventCharData, CharData: text})
	return nil
}

func (r *Recorder) Invalid(invalid *Invalid) error {
	r.Events = append(r.Events, Event{Kind: EventInvalid, Invalid: invalid})
	return nil
}

// Events decodes data and returns every event in document order. On a
// decode failure the returned events end with the [EventInvalid] event
// and the error is non-nil.
func Events(data []byte) ([]Event, error) {
	var recorder Recorder
	err := Walk(data, &recorder)
	return recorder.Events, err
}
