// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/apkpatch/lib/axml/axmltest"
)

var debuggable = AttributeSpec{
	Namespace:  axmltest.AndroidNamespace,
	Name:       "debuggable",
	ResourceID: axmltest.ResourceDebuggable,
	Value:      Bool(true),
}

func boolPointer(b bool) *bool { return &b }

func TestSetAttributeInserts(t *testing.T) {
	for _, utf8 := range []bool{false, true} {
		data := axmltest.Manifest(axmltest.ManifestOptions{UTF8: utf8})
		original := append([]byte(nil), data...)

		mutation, err := SetAttribute(data, "application", debuggable)
		if err != nil {
			t.Fatalf("utf8=%v: SetAttribute failed: %v", utf8, err)
		}
		if !mutation.Changed || !mutation.Inserted {
			t.Errorf("utf8=%v: mutation = %+v, want changed and inserted", utf8, mutation)
		}
		if !bytes.Equal(data, original) {
			t.Errorf("utf8=%v: SetAttribute modified its input", utf8)
		}

		events, err := Events(mutation.Data)
		if err != nil {
			t.Fatalf("utf8=%v: walking the mutated document failed: %v", utf8, err)
		}
		want := []string{
			"0<manifest versionCode=7 versionName=1.2.0 package=com.example.app>",
			"1<uses-sdk minSdkVersion=21>",
			"1</uses-sdk>",
			"1<application label=Example icon=@0x7f010000 debuggable=true allowBackup=true>",
			"2<activity name=.MainActivity>",
			"2</activity>",
			"1</application>",
			"0</manifest>",
		}
		if diff := cmp.Diff(want, summarize(events)); diff != "" {
			t.Errorf("utf8=%v: events mismatch (-want +got):\n%s", utf8, diff)
		}

		application := startTag(t, events, "application")
		attribute, ok := application.Attribute(axmltest.AndroidNamespace, "debuggable")
		if !ok {
			t.Fatalf("utf8=%v: inserted attribute not found", utf8)
		}
		if attribute.ResourceID != axmltest.ResourceDebuggable {
			t.Errorf("utf8=%v: inserted resource ID = 0x%08x, want 0x%08x", utf8, attribute.ResourceID, axmltest.ResourceDebuggable)
		}
		if attribute.Value != Bool(true) {
			t.Errorf("utf8=%v: inserted value = %v, want %v", utf8, attribute.Value, Bool(true))
		}
	}
}

func TestSetAttributeKeepsPoolIndices(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{})
	before, err := parseDocument(data)
	if err != nil {
		t.Fatalf("parseDocument failed: %v", err)
	}

	mutation, err := SetAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	after, err := parseDocument(mutation.Data)
	if err != nil {
		t.Fatalf("parseDocument(mutated) failed: %v", err)
	}

	for i := 0; i < before.pool.Len(); i++ {
		want, _ := before.pool.Lookup(StringRef(i))
		got, err := after.pool.Lookup(StringRef(i))
		if err != nil || got != want {
			t.Errorf("string %d = %q, %v; want %q", i, got, err, want)
		}
	}
	for i, id := range before.resources {
		if after.resources[i] != id {
			t.Errorf("resource map entry %d = 0x%08x, want 0x%08x", i, after.resources[i], id)
		}
	}

	// The new name is appended and the map padded up to it with zeros.
	ref := after.pool.Index("debuggable")
	if int(ref) < before.pool.Len() {
		t.Fatalf("debuggable at index %d, want an appended string (pool had %d)", ref, before.pool.Len())
	}
	if after.resourceID(ref) != axmltest.ResourceDebuggable {
		t.Errorf("resource ID of debuggable = 0x%08x, want 0x%08x", after.resourceID(ref), axmltest.ResourceDebuggable)
	}
	for i := len(before.resources); i < int(ref); i++ {
		if after.resources[i] != 0 {
			t.Errorf("padding resource map entry %d = 0x%08x, want 0", i, after.resources[i])
		}
	}
}

func TestSetAttributeAlreadySet(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{Debuggable: boolPointer(true)})

	mutation, err := SetAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	if mutation.Changed {
		t.Error("SetAttribute reported a change for an attribute that already holds the value")
	}
	if !bytes.Equal(mutation.Data, data) {
		t.Error("unchanged mutation returned different bytes")
	}
}

func TestSetAttributeReplacesValueInPlace(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{Debuggable: boolPointer(false)})

	mutation, err := SetAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	if !mutation.Changed || mutation.Inserted {
		t.Errorf("mutation = %+v, want changed in place", mutation)
	}
	if len(mutation.Data) != len(data) {
		t.Fatalf("replacement changed the document length from %d to %d", len(data), len(mutation.Data))
	}

	// Only the four data bytes of the touched attribute's value differ.
	first, last := -1, -1
	for i := range data {
		if data[i] != mutation.Data[i] {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || last-first != 3 {
		t.Fatalf("differing bytes span [%d, %d], want exactly one 4-byte value", first, last)
	}
	if got := le.Uint32(mutation.Data[first:]); got != 0xFFFFFFFF {
		t.Errorf("replaced data = 0x%08x, want 0xffffffff", got)
	}
}

func TestSetAttributeIdempotent(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{})

	once, err := SetAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("first SetAttribute failed: %v", err)
	}
	twice, err := SetAttribute(once.Data, "application", debuggable)
	if err != nil {
		t.Fatalf("second SetAttribute failed: %v", err)
	}
	if twice.Changed {
		t.Error("second SetAttribute reported a change")
	}
	if !bytes.Equal(once.Data, twice.Data) {
		t.Error("second SetAttribute changed the document")
	}
}

func TestSetAttributeString(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{})

	mutation, err := SetAttribute(data, "manifest", AttributeSpec{
		Name:  "package",
		Value: Value{Type: TypeString},
		Raw:   "com.example.app.debug",
	})
	if err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	events, err := Events(mutation.Data)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	pkg, ok := startTag(t, events, "manifest").Attribute("", "package")
	if !ok {
		t.Fatal("package attribute missing after replacement")
	}
	if pkg.Raw != "com.example.app.debug" || pkg.Value.Type != TypeString {
		t.Errorf("package = %q (%s), want string com.example.app.debug", pkg.Raw, pkg.Value.Type)
	}
}

func TestSetAttributeWithoutResourceMap(t *testing.T) {
	data := axmltest.New().
		Start("", "manifest").
		Start("", "application").
		End("", "application").
		End("", "manifest").
		Bytes()

	mutation, err := SetAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	events, err := Events(mutation.Data)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	attribute, ok := startTag(t, events, "application").Attribute(axmltest.AndroidNamespace, "debuggable")
	if !ok {
		t.Fatal("debuggable missing after insertion")
	}
	if attribute.ResourceID != axmltest.ResourceDebuggable {
		t.Errorf("resource ID = 0x%08x, want 0x%08x", attribute.ResourceID, axmltest.ResourceDebuggable)
	}
}

func TestSetAttributePreservesTrailer(t *testing.T) {
	trailer := []byte{0xde, 0xad, 0xbe, 0xef}
	data := append(axmltest.Manifest(axmltest.ManifestOptions{}), trailer...)

	mutation, err := SetAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	if !bytes.HasSuffix(mutation.Data, trailer) {
		t.Error("bytes after the document chunk were not preserved")
	}
	if _, err := Events(mutation.Data); err != nil {
		t.Errorf("Events on mutated document failed: %v", err)
	}
}

func TestSetAttributeErrors(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{OmitApplication: true})

	if _, err := SetAttribute(data, "application", debuggable); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("SetAttribute on missing element error = %v, want ErrElementNotFound", err)
	}
	if _, err := SetAttribute(data[:len(data)-1], "manifest", debuggable); !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("SetAttribute on truncated document error = %v, want ErrMalformedDocument", err)
	}
	if _, err := SetAttribute(data, "manifest", AttributeSpec{Value: Bool(true)}); err == nil {
		t.Error("SetAttribute without a name should fail")
	}
	if _, err := SetAttribute(data, "manifest", AttributeSpec{Name: "package", Value: Value{Type: TypeString}}); err == nil {
		t.Error("SetAttribute with a string type and no raw value should fail")
	}
}

func TestRemoveAttribute(t *testing.T) {
	data := axmltest.Manifest(axmltest.ManifestOptions{Debuggable: boolPointer(true)})

	mutation, err := RemoveAttribute(data, "application", debuggable)
	if err != nil {
		t.Fatalf("RemoveAttribute failed: %v", err)
	}
	if !mutation.Changed || !mutation.Removed {
		t.Errorf("mutation = %+v, want changed and removed", mutation)
	}
	if len(mutation.Data) != len(data)-attributeSize {
		t.Errorf("document shrank from %d to %d bytes, want one attribute record less", len(data), len(mutation.Data))
	}

	removed, err := Events(mutation.Data)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	plain, err := Events(axmltest.Manifest(axmltest.ManifestOptions{}))
	if err != nil {
		t.Fatalf("Events(plain) failed: %v", err)
	}
	if diff := cmp.Diff(summarize(plain), summarize(removed)); diff != "" {
		t.Errorf("events after removal mismatch (-want +got):\n%s", diff)
	}

	again, err := RemoveAttribute(mutation.Data, "application", debuggable)
	if err != nil {
		t.Fatalf("second RemoveAttribute failed: %v", err)
	}
	if again.Changed {
		t.Error("removing an absent attribute reported a change")
	}
}
