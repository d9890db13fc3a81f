// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/apkpatch/lib/axml/axmltest"
)

// poolOf returns the string pool of an encoded document and its size.
func poolOf(t *testing.T, data []byte) (*StringPool, int) {
	t.Helper()
	pool, size, err := DecodeStringPool(data, chunkHeaderSize)
	if err != nil {
		t.Fatalf("DecodeStringPool failed: %v", err)
	}
	return pool, size
}

func TestDecodeStringPool(t *testing.T) {
	for _, utf8 := range []bool{false, true} {
		name := "utf16"
		if utf8 {
			name = "utf8"
		}
		t.Run(name, func(t *testing.T) {
			data := axmltest.Manifest(axmltest.ManifestOptions{UTF8: utf8})
			pool, size := poolOf(t, data)

			if pool.IsUTF8() != utf8 {
				t.Errorf("IsUTF8() = %v, want %v", pool.IsUTF8(), utf8)
			}
			if size <= stringPoolHeaderSize || size%4 != 0 {
				t.Errorf("pool size = %d, want a multiple of 4 above the header", size)
			}

			// Resource-identified names come first, in first-use order.
			first, err := pool.Lookup(0)
			if err != nil {
				t.Fatalf("Lookup(0) failed: %v", err)
			}
			if first != "versionCode" {
				t.Errorf("Lookup(0) = %q, want %q", first, "versionCode")
			}

			for _, want := range []string{"manifest", "application", axmltest.AndroidNamespace, "com.example.app", ".MainActivity"} {
				ref := pool.Index(want)
				if ref == NoString {
					t.Errorf("Index(%q) = NoString", want)
					continue
				}
				got, err := pool.Lookup(ref)
				if err != nil {
					t.Fatalf("Lookup(%d) failed: %v", ref, err)
				}
				if got != want {
					t.Errorf("Lookup(Index(%q)) = %q", want, got)
				}
			}

			if ref := pool.Index("debuggable"); ref != NoString {
				t.Errorf("Index(%q) = %d, want NoString", "debuggable", ref)
			}
		})
	}
}

func TestStringPoolLookupBounds(t *testing.T) {
	pool, _ := poolOf(t, axmltest.Manifest(axmltest.ManifestOptions{}))

	if _, err := pool.Lookup(NoString); err == nil {
		t.Error("Lookup(NoString) should fail")
	}
	if _, err := pool.Lookup(StringRef(pool.Len())); err == nil {
		t.Errorf("Lookup(%d) should fail for a pool of %d strings", pool.Len(), pool.Len())
	}

	text, err := pool.lookupOptional(NoString)
	if err != nil || text != "" {
		t.Errorf("lookupOptional(NoString) = %q, %v; want empty string and no error", text, err)
	}
}

func TestDecodeStringPoolLongStrings(t *testing.T) {
	// Lengths above 0x7f (UTF-8) use the two-byte length form.
	long := strings.Repeat("débogage-", 40)

	for _, utf8 := range []bool{false, true} {
		b := axmltest.New()
		b.UTF8 = utf8
		b.Start("", "manifest", axmltest.StringAttr("", "package", 0, long))
		b.End("", "manifest")
		pool, _ := poolOf(t, b.Bytes())

		ref := pool.Index(long)
		if ref == NoString {
			t.Fatalf("utf8=%v: long string not found in pool", utf8)
		}
	}
}

func TestDecodeStringPoolTruncated(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{UTF8: true})
	_, size := poolOf(t, data)
	poolEnd := chunkHeaderSize + size

	for n := 0; n < poolEnd; n++ {
		_, _, err := DecodeStringPool(data[:n], chunkHeaderSize)
		if !errors.Is(err, ErrMalformedPool) {
			t.Fatalf("DecodeStringPool(data[:%d]) error = %v, want ErrMalformedPool", n, err)
		}
	}
}

func TestDecodeStringPoolCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(pool []byte)
	}{
		{"string count overruns chunk", func(pool []byte) {
			le.PutUint32(pool[8:], 0x00ffffff)
		}},
		{"string offset past data", func(pool []byte) {
			le.PutUint32(pool[stringPoolHeaderSize:], 0x7fffffff)
		}},
		{"strings start past chunk", func(pool []byte) {
			le.PutUint32(pool[20:], uint32(len(pool)+4))
		}},
		{"styles start past chunk", func(pool []byte) {
			le.PutUint32(pool[12:], 1)
			le.PutUint32(pool[24:], uint32(len(pool)+4))
		}},
		{"header size below minimum", func(pool []byte) {
			le.PutUint16(pool[2:], 20)
		}},
		{"wrong chunk type", func(pool []byte) {
			le.PutUint16(pool[0:], uint16(ChunkResourceMap))
		}},
		{"string length past data", func(pool []byte) {
			stringsStart := le.Uint32(pool[20:])
			first := le.Uint32(pool[stringPoolHeaderSize:])
			le.PutUint16(pool[stringsStart+first:], 0x7ff0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := axmltest.Manifest(axmltest.ManifestOptions{})
			_, size := poolOf(t, data)
			tt.corrupt(data[chunkHeaderSize : chunkHeaderSize+size])

			_, _, err := DecodeStringPool(data, chunkHeaderSize)
			if !errors.Is(err, ErrMalformedPool) {
				t.Errorf("DecodeStringPool error = %v, want ErrMalformedPool", err)
			}
		})
	}
}

func TestStringPoolEncodeUnmodified(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{})
	pool, size := poolOf(t, data)

	if !bytes.Equal(pool.encode(), data[chunkHeaderSize:chunkHeaderSize+size]) {
		t.Error("encode() of an unmodified pool differs from the original bytes")
	}
}

func TestStringPoolEncodeAppended(t *testing.T) {
	for _, utf8 := range []bool{false, true} {
		data := axmltest.Manifest(axmltest.ManifestOptions{UTF8: utf8})
		pool, _ := poolOf(t, data)
		before := pool.Len()

		added := []string{"debuggable", "ünïcode", strings.Repeat("x", 300)}
		for i, s := range added {
			ref, err := pool.add(s)
			if err != nil {
				t.Fatalf("add(%q) failed: %v", s, err)
			}
			if int(ref) != before+i {
				t.Errorf("add(%q) = %d, want %d", s, ref, before+i)
			}
		}

		encoded := pool.encode()
		if len(encoded)%4 != 0 {
			t.Errorf("utf8=%v: encoded pool is %d bytes, want 4-byte alignment", utf8, len(encoded))
		}
		if flags := le.Uint32(encoded[16:]); flags&poolFlagSorted != 0 {
			t.Errorf("utf8=%v: sorted flag survived appending", utf8)
		}

		decoded, size, err := DecodeStringPool(encoded, 0)
		if err != nil {
			t.Fatalf("utf8=%v: decoding re-encoded pool failed: %v", utf8, err)
		}
		if size != len(encoded) {
			t.Errorf("utf8=%v: decoded size %d, encoded %d bytes", utf8, size, len(encoded))
		}
		if decoded.Len() != pool.Len() {
			t.Fatalf("utf8=%v: decoded %d strings, want %d", utf8, decoded.Len(), pool.Len())
		}
		for i := 0; i < pool.Len(); i++ {
			want, _ := pool.Lookup(StringRef(i))
			got, err := decoded.Lookup(StringRef(i))
			if err != nil || got != want {
				t.Errorf("utf8=%v: string %d = %q, %v; want %q", utf8, i, got, err, want)
			}
		}
	}
}
