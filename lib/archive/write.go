// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Write stores the content read from source as the entry name. If the
// container does not exist it is created. If the entry exists it is
// replaced at the same position with the same compression method, and
// any later entries with the same name are removed; otherwise a
// deflated entry is appended.
//
// The container is rebuilt in a temporary file in the same directory
// and renamed over the original, so a failure at any point leaves the
// original container untouched.
func (s *Store) Write(name string, source io.Reader) error {
	if !fs.ValidPath(name) || name == "." {
		return fmt.Errorf("archive: invalid entry path %q", name)
	}

	existing, err := s.open()
	if err != nil {
		return err
	}
	if existing != nil {
		defer existing.Close()
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp container: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up the temp file on any error path.
	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	output := &countingWriter{w: tmpFile}
	writer := zip.NewWriter(output)
	aligned := &aligner{writer: writer, output: output, alignment: s.alignment}

	replaced := false
	copied, dropped := 0, 0
	if existing != nil {
		if err := writer.SetComment(existing.Comment); err != nil {
			return fmt.Errorf("copying container comment: %w", err)
		}
		for _, file := range existing.File {
			if file.Name == name {
				// Later duplicates of the name are dropped.
				if replaced {
					dropped++
					continue
				}
				header := file.FileHeader
				if err := s.writeContent(aligned, &header, source); err != nil {
					return err
				}
				replaced = true
				continue
			}
			if err := s.copyRaw(aligned, file); err != nil {
				return err
			}
			copied++
		}
	}
	if !replaced {
		header := &zip.FileHeader{
			Name:           name,
			Method:         zip.Deflate,
			CreatorVersion: zipVersion20,
			ReaderVersion:  zipVersion20,
		}
		header.ModifiedDate, header.ModifiedTime = msDosTime(time.Now())
		if err := s.writeContent(aligned, header, source); err != nil {
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finishing container: %w", err)
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return fmt.Errorf("setting container mode: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp container: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming container to %s: %w", s.path, err)
	}
	success = true

	s.logger.Info("wrote archive entry",
		"archive", s.path,
		"entry", name,
		"replaced", replaced,
		"copied_entries", copied,
		"dropped_duplicates", dropped,
		"size", output.count,
	)
	return nil
}

// writeContent compresses source into a new entry described by header.
// The entry is written raw with a data descriptor so that all of its
// bytes, descriptor included, are accounted for before the next entry
// is aligned.
func (s *Store) writeContent(aligned *aligner, header *zip.FileHeader, source io.Reader) error {
	if header.Method != zip.Store && header.Method != zip.Deflate {
		return fmt.Errorf("archive: cannot write entry %s with compression method %d", header.Name, header.Method)
	}
	header.Flags |= dataDescriptorFlag
	if err := aligned.align(header); err != nil {
		return err
	}

	entry, err := aligned.writer.CreateRaw(header)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", header.Name, err)
	}
	aligned.started(header)

	compressed := &countingWriter{w: entry}
	var sink io.Writer = compressed
	var compressor *flate.Writer
	if header.Method == zip.Deflate {
		if compressor, err = flate.NewWriter(compressed, s.compressionLevel); err != nil {
			return fmt.Errorf("creating compressor for %s: %w", header.Name, err)
		}
		sink = compressor
	}

	checksum := crc32.NewIEEE()
	size, err := io.CopyBuffer(io.MultiWriter(sink, checksum), source, make([]byte, s.bufferSize))
	if err != nil {
		return fmt.Errorf("writing entry %s: %w", header.Name, err)
	}
	if compressor != nil {
		if err := compressor.Close(); err != nil {
			return fmt.Errorf("compressing entry %s: %w", header.Name, err)
		}
	}

	// The data descriptor and central directory record are written
	// from these fields after the entry is closed.
	header.CRC32 = checksum.Sum32()
	header.UncompressedSize64 = uint64(size)
	header.CompressedSize64 = uint64(compressed.count)
	header.UncompressedSize = clampUint32(header.UncompressedSize64)
	header.CompressedSize = clampUint32(header.CompressedSize64)
	return nil
}

// copyRaw copies an entry's compressed bytes unchanged. Stored entries
// get their alignment padding recomputed for the new offset.
func (s *Store) copyRaw(aligned *aligner, file *zip.File) error {
	header := file.FileHeader
	if err := aligned.align(&header); err != nil {
		return err
	}

	raw, err := file.OpenRaw()
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrEntryRead, file.Name, err)
	}
	entry, err := aligned.writer.CreateRaw(&header)
	if err != nil {
		return fmt.Errorf("copying entry %s: %w", file.Name, err)
	}
	aligned.started(&header)

	if _, err := io.CopyBuffer(entry, raw, make([]byte, s.bufferSize)); err != nil {
		return fmt.Errorf("copying entry %s: %w", file.Name, err)
	}
	return nil
}

// zipVersion20 is the "version needed" for deflate entries.
const zipVersion20 = 20

func clampUint32(n uint64) uint32 {
	if n > 0xffffffff {
		return 0xffffffff
	}
	return uint32(n)
}

// msDosTime converts t to the MS-DOS date and time fields of a zip
// header, at two-second resolution.
func msDosTime(t time.Time) (date, clock uint16) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, t.Location())
	}
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	clock = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return date, clock
}
