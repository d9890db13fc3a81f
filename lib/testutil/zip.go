// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry is one entry for [WriteZip].
type ZipEntry struct {
	Name string
	Data []byte

	// Method is zip.Store or zip.Deflate. The zero value is zip.Store.
	Method uint16

	// Extra is written verbatim as the entry's extra data.
	Extra []byte
}

// WriteZip creates a zip container at path holding entries in order.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()

	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:   entry.Name,
			Method: entry.Method,
			Extra:  entry.Extra,
		}
		content, err := writer.CreateHeader(header)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", entry.Name, err)
		}
		if _, err := content.Write(entry.Data); err != nil {
			t.Fatalf("writing zip entry %s: %v", entry.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// RawEntries returns each entry's compressed bytes keyed by name, in
// the form they are stored in the container.
func RawEntries(t testing.TB, path string) map[string][]byte {
	t.Helper()

	reader := openZip(t, path)
	defer reader.Close()

	raw := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		content, err := file.OpenRaw()
		if err != nil {
			t.Fatalf("opening raw entry %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(content)
		if err != nil {
			t.Fatalf("reading raw entry %s: %v", file.Name, err)
		}
		raw[file.Name] = data
	}
	return raw
}

// DataOffsets returns the file offset of each entry's data keyed by
// name.
func DataOffsets(t testing.TB, path string) map[string]int64 {
	t.Helper()

	reader := openZip(t, path)
	defer reader.Close()

	offsets := make(map[string]int64, len(reader.File))
	for _, file := range reader.File {
		offset, err := file.DataOffset()
		if err != nil {
			t.Fatalf("locating data of %s: %v", file.Name, err)
		}
		offsets[file.Name] = offset
	}
	return offsets
}

// EntryNames returns the entry names of a container in directory
// order.
func EntryNames(t testing.TB, path string) []string {
	t.Helper()

	reader := openZip(t, path)
	defer reader.Close()

	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	return names
}

func openZip(t testing.TB, path string) *zip.ReadCloser {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening zip %s: %v", path, err)
	}
	return reader
}
