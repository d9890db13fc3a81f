// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ManifestPath is the entry name of the binary manifest in a package.
const ManifestPath = "AndroidManifest.xml"

// WriteAPK writes a minimal package to dir/name and returns its path.
// The manifest is deflated; resources.arsc is stored unaligned, the way
// an unaligned build leaves it; the remaining entries stand in for
// code, assets, and a signature.
func WriteAPK(t testing.TB, dir, name string, manifest []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteZip(t, path,
		ZipEntry{Name: ManifestPath, Data: manifest, Method: zip.Deflate},
		ZipEntry{Name: "classes.dex", Data: bytes.Repeat([]byte("dex\n035\x00"), 512), Method: zip.Deflate},
		ZipEntry{Name: "resources.arsc", Data: bytes.Repeat([]byte{0x02, 0x00, 0x0c, 0x00}, 300), Method: zip.Store},
		ZipEntry{Name: "res/raw/notes.txt", Data: []byte("stored text entry\n"), Method: zip.Store},
		ZipEntry{Name: "META-INF/CERT.SF", Data: []byte("Signature-Version: 1.0\r\n"), Method: zip.Deflate},
	)
	return path
}
