// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"

	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/axml"
	"github.com/bureau-foundation/apkpatch/lib/axml/axmltest"
	"github.com/bureau-foundation/apkpatch/lib/backup"
	"github.com/bureau-foundation/apkpatch/lib/testutil"
)

// recordingWriter counts entry writes and passes them on to a store.
type recordingWriter struct {
	next   EntryWriter
	writes []string
	data   [][]byte
}

func (w *recordingWriter) Write(name string, source io.Reader) error {
	content, err := io.ReadAll(source)
	if err != nil {
		return err
	}
	w.writes = append(w.writes, name)
	w.data = append(w.data, content)
	return w.next.Write(name, bytes.NewReader(content))
}

func boolPointer(b bool) *bool { return &b }

func openPackage(t *testing.T, manifest []byte, options ...Option) (*Package, string) {
	t.Helper()
	path := testutil.WriteAPK(t, t.TempDir(), "app.apk", manifest)
	pkg, err := Open(path, options...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return pkg, path
}

func TestOpen(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.apk")); !errors.Is(err, archive.ErrArchiveUnreadable) {
		t.Errorf("Open of a missing package error = %v, want ErrArchiveUnreadable", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.apk")
	if err := os.WriteFile(garbage, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Open(garbage); !errors.Is(err, archive.ErrArchiveUnreadable) {
		t.Errorf("Open of a non-zip error = %v, want ErrArchiveUnreadable", err)
	}
}

func TestDocumentMissing(t *testing.T) {
	// A package without a manifest entry.
	path := filepath.Join(t.TempDir(), "bare.apk")
	testutil.WriteZip(t, path, testutil.ZipEntry{Name: "classes.dex", Data: []byte("dex"), Method: zip.Deflate})
	bare, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	// A package whose manifest entry is empty.
	empty, _ := openPackage(t, nil)

	for name, pkg := range map[string]*Package{"absent": bare, "empty": empty} {
		t.Run(name, func(t *testing.T) {
			if _, err := pkg.LocateManifest(); !errors.Is(err, ErrDocumentMissing) {
				t.Errorf("LocateManifest error = %v, want ErrDocumentMissing", err)
			}
			if _, err := pkg.IsDebuggable(); !errors.Is(err, ErrDocumentMissing) {
				t.Errorf("IsDebuggable error = %v, want ErrDocumentMissing", err)
			}
			if _, err := pkg.PatchToDebuggable(); !errors.Is(err, ErrDocumentMissing) {
				t.Errorf("PatchToDebuggable error = %v, want ErrDocumentMissing", err)
			}
		})
	}
}

func TestRequiredElementMissing(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{OmitApplication: true})
	writer := &recordingWriter{}
	pkg, path := openPackage(t, manifest, WithWriter(writer))
	writer.next = archive.New(path)

	if _, err := pkg.IsDebuggable(); !errors.Is(err, ErrRequiredElementMissing) {
		t.Errorf("IsDebuggable error = %v, want ErrRequiredElementMissing", err)
	}
	if _, err := pkg.PatchToDebuggable(); !errors.Is(err, ErrRequiredElementMissing) {
		t.Errorf("PatchToDebuggable error = %v, want ErrRequiredElementMissing", err)
	}
	if len(writer.writes) != 0 {
		t.Errorf("container written %d times", len(writer.writes))
	}
}

func TestDocumentMalformed(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{})
	truncated := manifest[:len(manifest)-10]

	pkg, path := openPackage(t, truncated)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	_, err = pkg.PatchToDebuggable()
	if !errors.Is(err, ErrDocumentMalformed) {
		t.Fatalf("PatchToDebuggable error = %v, want ErrDocumentMalformed", err)
	}
	if !errors.Is(err, axml.ErrMalformedDocument) {
		t.Errorf("error %v does not wrap the decode failure", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("a failed patch modified the container")
	}
}

func TestPatchToDebuggableInserts(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{})
	writer := &recordingWriter{}
	pkg, path := openPackage(t, manifest, WithWriter(writer))
	writer.next = archive.New(path)

	debuggable, err := pkg.IsDebuggable()
	if err != nil {
		t.Fatalf("IsDebuggable failed: %v", err)
	}
	if debuggable {
		t.Fatal("fresh package reports debuggable")
	}

	result, err := pkg.PatchToDebuggable()
	if err != nil {
		t.Fatalf("PatchToDebuggable failed: %v", err)
	}
	if result.AlreadyDebuggable || !result.Inserted {
		t.Errorf("result = %+v, want an inserted attribute", result)
	}
	if result.OriginalDigest != archive.HashEntry(manifest) {
		t.Error("OriginalDigest does not match the original manifest")
	}

	if diff := cmp.Diff([]string{ManifestPath}, writer.writes); diff != "" {
		t.Fatalf("entry writes mismatch (-want +got):\n%s", diff)
	}
	if result.PatchedDigest != archive.HashEntry(writer.data[0]) || result.PatchedSize != len(writer.data[0]) {
		t.Error("result does not describe the written manifest")
	}

	// The written document has android:debuggable=true on application.
	events, err := axml.Events(writer.data[0])
	if err != nil {
		t.Fatalf("walking the patched manifest failed: %v", err)
	}
	var found bool
	for _, event := range events {
		if event.Kind != axml.EventStartTag || event.Start.Name.Local != ApplicationElement {
			continue
		}
		attribute, ok := event.Start.Attribute(AndroidNamespace, "debuggable")
		if !ok {
			t.Fatal("patched application has no android:debuggable")
		}
		if attribute.ResourceID != DebuggableResourceID || attribute.Value != axml.Bool(true) {
			t.Errorf("android:debuggable = %+v, want boolean true with ID 0x0101000f", attribute)
		}
		found = true
	}
	if !found {
		t.Fatal("patched manifest has no application element")
	}

	debuggable, err = pkg.IsDebuggable()
	if err != nil {
		t.Fatalf("IsDebuggable after patch failed: %v", err)
	}
	if !debuggable {
		t.Error("package not debuggable after patch")
	}
}

func TestPatchToDebuggableOverwritesFalse(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{Debuggable: boolPointer(false)})
	pkg, _ := openPackage(t, manifest)

	result, err := pkg.PatchToDebuggable()
	if err != nil {
		t.Fatalf("PatchToDebuggable failed: %v", err)
	}
	if result.AlreadyDebuggable || result.Inserted {
		t.Errorf("result = %+v, want an overwritten attribute", result)
	}
	// Overwriting a value keeps the document size.
	if result.PatchedSize != len(manifest) {
		t.Errorf("patched size = %d, want %d", result.PatchedSize, len(manifest))
	}
	if debuggable, err := pkg.IsDebuggable(); err != nil || !debuggable {
		t.Errorf("IsDebuggable = %v, %v; want true", debuggable, err)
	}
}

func TestPatchToDebuggableIdempotent(t *testing.T) {
	writer := &recordingWriter{}
	pkg, path := openPackage(t, axmltest.Manifest(axmltest.ManifestOptions{}), WithWriter(writer))
	writer.next = archive.New(path)

	if _, err := pkg.PatchToDebuggable(); err != nil {
		t.Fatalf("first PatchToDebuggable failed: %v", err)
	}
	afterFirst, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	result, err := pkg.PatchToDebuggable()
	if err != nil {
		t.Fatalf("second PatchToDebuggable failed: %v", err)
	}
	if !result.AlreadyDebuggable {
		t.Error("second patch did not report AlreadyDebuggable")
	}
	if len(writer.writes) != 1 {
		t.Errorf("container written %d times, want 1", len(writer.writes))
	}
	afterSecond, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(afterFirst, afterSecond) {
		t.Error("second patch modified the container")
	}
}

func TestAlreadyDebuggable(t *testing.T) {
	pkg, path := openPackage(t, axmltest.Manifest(axmltest.ManifestOptions{Debuggable: boolPointer(true)}))
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	result, err := pkg.PatchToDebuggable()
	if err != nil {
		t.Fatalf("PatchToDebuggable failed: %v", err)
	}
	if !result.AlreadyDebuggable {
		t.Error("AlreadyDebuggable = false for a debuggable package")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("patching a debuggable package modified the container")
	}
}

func TestIsDebuggableValues(t *testing.T) {
	android := axmltest.AndroidNamespace
	tests := []struct {
		name string
		attr axmltest.Attr
		want bool
	}{
		{"boolean true", axmltest.BoolAttr(android, "debuggable", axmltest.ResourceDebuggable, true), true},
		{"boolean false", axmltest.BoolAttr(android, "debuggable", axmltest.ResourceDebuggable, false), false},
		{"integer one", axmltest.IntAttr(android, "debuggable", axmltest.ResourceDebuggable, 1), true},
		{"integer zero", axmltest.IntAttr(android, "debuggable", axmltest.ResourceDebuggable, 0), false},
		{"string true", axmltest.StringAttr(android, "debuggable", axmltest.ResourceDebuggable, "true"), true},
		{"string yes", axmltest.StringAttr(android, "debuggable", axmltest.ResourceDebuggable, "yes"), false},
		{"reference", axmltest.ReferenceAttr(android, "debuggable", axmltest.ResourceDebuggable, 0x7f050001), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := axmltest.New().
				StartNamespace("android", android).
				Start("", "manifest", axmltest.StringAttr("", "package", 0, "com.example.values")).
				Start("", "application", tt.attr).
				End("", "application").
				End("", "manifest").
				EndNamespace("android", android).
				Bytes()
			pkg, _ := openPackage(t, manifest)

			got, err := pkg.IsDebuggable()
			if err != nil {
				t.Fatalf("IsDebuggable failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsDebuggable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{Package: "org.example.inspect"})
	pkg, _ := openPackage(t, manifest)

	got, err := pkg.Inspect()
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	want := &Manifest{
		Package:       "org.example.inspect",
		VersionCode:   "7",
		VersionName:   "1.2.0",
		MinSDKVersion: "21",
		Elements:      4,
		Size:          len(manifest),
		Digest:        archive.HashEntry(manifest),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Inspect mismatch (-want +got):\n%s", diff)
	}
}

func TestWithTarget(t *testing.T) {
	android := axmltest.AndroidNamespace
	pkg, _ := openPackage(t, axmltest.Manifest(axmltest.ManifestOptions{}),
		WithTarget("activity", axml.AttributeSpec{Namespace: android, Name: "exported", ResourceID: 0x01010010}))

	result, err := pkg.PatchToDebuggable()
	if err != nil {
		t.Fatalf("PatchToDebuggable failed: %v", err)
	}
	if !result.Inserted {
		t.Errorf("result = %+v, want an inserted attribute", result)
	}

	data, err := pkg.LocateManifest()
	if err != nil {
		t.Fatalf("LocateManifest failed: %v", err)
	}
	events, err := axml.Events(data)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	for _, event := range events {
		if event.Kind != axml.EventStartTag {
			continue
		}
		_, ok := event.Start.Attribute(android, "exported")
		if ok != (event.Start.Name.Local == "activity") {
			t.Errorf("<%s> has android:exported = %v", event.Start.Name.Local, ok)
		}
	}
}

func TestPatchWithBackupAndRestore(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{})
	backups := backup.New(filepath.Join(t.TempDir(), "backups"))
	pkg, path := openPackage(t, manifest, WithBackups(backups))
	originalRaw := testutil.RawEntries(t, path)

	result, err := pkg.PatchToDebuggable()
	if err != nil {
		t.Fatalf("PatchToDebuggable failed: %v", err)
	}
	if result.Backup == "" {
		t.Fatal("no backup recorded")
	}

	// Untouched entries keep their compressed bytes across the rewrite.
	patchedRaw := testutil.RawEntries(t, path)
	for name, raw := range originalRaw {
		if name != ManifestPath && !bytes.Equal(patchedRaw[name], raw) {
			t.Errorf("entry %s changed during the patch", name)
		}
	}

	if err := pkg.Restore(result.Backup); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	restored, err := pkg.LocateManifest()
	if err != nil {
		t.Fatalf("LocateManifest failed: %v", err)
	}
	if !bytes.Equal(restored, manifest) {
		t.Error("restored manifest differs from the original")
	}
	if debuggable, err := pkg.IsDebuggable(); err != nil || debuggable {
		t.Errorf("IsDebuggable after restore = %v, %v; want false", debuggable, err)
	}
}

func TestRestoreWithoutConfiguredBackups(t *testing.T) {
	manifest := axmltest.Manifest(axmltest.ManifestOptions{})
	directory := t.TempDir()
	pkg, path := openPackage(t, manifest)

	snapshot, err := backup.New(directory).Save(path, ManifestPath, manifest)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := pkg.PatchToDebuggable(); err != nil {
		t.Fatalf("PatchToDebuggable failed: %v", err)
	}

	if err := pkg.Restore(snapshot); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if debuggable, err := pkg.IsDebuggable(); err != nil || debuggable {
		t.Errorf("IsDebuggable after restore = %v, %v; want false", debuggable, err)
	}

	if err := pkg.Restore(filepath.Join(directory, "missing.apkbak")); err == nil {
		t.Error("Restore of a missing snapshot succeeded")
	}
}
