// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// sampleRecord uses cbor struct tags, the convention for on-disk
// records.
type sampleRecord struct {
	Entry   string    `cbor:"entry"`
	Size    int       `cbor:"size"`
	Note    string    `cbor:"note,omitempty"`
	Created time.Time `cbor:"created"`
}

// hexName implements encoding.TextMarshaler.
type hexName [2]byte

func (h hexName) MarshalText() ([]byte, error) {
	const digits = "0123456789abcdef"
	return []byte{digits[h[0]>>4], digits[h[0]&15], digits[h[1]>>4], digits[h[1]&15]}, nil
}

func (h *hexName) UnmarshalText(text []byte) error {
	value := func(c byte) byte { return byte(strings.IndexByte("0123456789abcdef", c)) }
	h[0] = value(text[0])<<4 | value(text[1])
	h[1] = value(text[2])<<4 | value(text[3])
	return nil
}

func TestMarshalKeepsTimePrecision(t *testing.T) {
	original := sampleRecord{
		Entry:   "AndroidManifest.xml",
		Size:    1844,
		Created: time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Created.Equal(original.Created) {
		t.Errorf("Created = %v, want %v", decoded.Created, original.Created)
	}
	if decoded.Entry != original.Entry || decoded.Size != original.Size {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]int{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for range 10 {
		again, err := Marshal(map[string]int{"mid": 3, "alpha": 2, "zeta": 1})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal of equal maps produced different bytes")
		}
	}
}

func TestTextMarshalerEncodesAsString(t *testing.T) {
	data, err := Marshal(struct {
		Name hexName `cbor:"name"`
	}{Name: hexName{0xd9, 0x35}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if !strings.Contains(notation, `"d935"`) {
		t.Errorf("notation %q does not contain the text form \"d935\"", notation)
	}

	var decoded struct {
		Name hexName `cbor:"name"`
	}
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Name != (hexName{0xd9, 0x35}) {
		t.Errorf("decoded name = %x, want d935", decoded.Name)
	}
}

func TestOmitemptyRespected(t *testing.T) {
	data, err := Marshal(sampleRecord{Entry: "x"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if strings.Contains(notation, "note") {
		t.Errorf("empty omitempty field encoded: %s", notation)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"entry": "classes.dex"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if asMap["entry"] != "classes.dex" {
		t.Errorf("entry = %v", asMap["entry"])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded sampleRecord
	if err := Unmarshal([]byte{0xff, 0xfe, 0xfd}, &decoded); err == nil {
		t.Error("Unmarshal of invalid CBOR should fail")
	}
}
