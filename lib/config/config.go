// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// AndroidNamespace is the namespace URI of android: attributes.
const AndroidNamespace = "http://schemas.android.com/apk/res/android"

// Config is the master configuration for apkpatch.
type Config struct {
	// Manifest names the document and attribute the patch targets.
	Manifest ManifestConfig `yaml:"manifest"`

	// Archive configures container reads and rewrites.
	Archive ArchiveConfig `yaml:"archive"`

	// Backup configures snapshots of the manifest taken before a
	// rewrite.
	Backup BackupConfig `yaml:"backup"`

	// Log configures command logging.
	Log LogConfig `yaml:"log"`
}

// ManifestConfig names the document, element, and attribute that the
// debuggable patch reads and writes.
type ManifestConfig struct {
	// Path is the entry name of the binary manifest.
	// Default: AndroidManifest.xml
	Path string `yaml:"path"`

	// Element is the local name of the element carrying the flag.
	// Default: application
	Element string `yaml:"element"`

	// Namespace is the attribute's namespace URI.
	// Default: the android namespace
	Namespace string `yaml:"namespace"`

	// Attribute is the attribute's local name.
	// Default: debuggable
	Attribute string `yaml:"attribute"`

	// ResourceID is the framework resource ID of the attribute.
	// Default: 0x0101000f
	ResourceID uint32 `yaml:"resource_id"`
}

// ArchiveConfig configures the container store.
type ArchiveConfig struct {
	// BufferSize is the copy buffer size in bytes.
	// Default: 32768
	BufferSize int `yaml:"buffer_size"`

	// CompressionLevel is the deflate level for rewritten entries,
	// -2 (Huffman only) through 9, with -1 the library default.
	// Default: -1
	CompressionLevel int `yaml:"compression_level"`

	// Alignment is the data alignment of stored entries; 0 or 1
	// disables alignment.
	// Default: 4
	Alignment int `yaml:"alignment"`

	// MaxEntrySize caps the size of entries read into memory; 0 means
	// no limit.
	// Default: 67108864
	MaxEntrySize int64 `yaml:"max_entry_size"`
}

// BackupConfig configures manifest snapshots.
type BackupConfig struct {
	// Enabled turns on a snapshot before every rewrite.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Directory is where snapshots are written. ${HOME} and
	// ${VAR:-default} are expanded.
	// Default: ${HOME}/.cache/apkpatch/backups
	Directory string `yaml:"directory"`

	// Compression is the snapshot compression: "none", "lz4", or
	// "zstd".
	// Default: zstd
	Compression string `yaml:"compression"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	// Default: warn
	Level string `yaml:"level"`
}

// maxAlignment is the largest stored-entry alignment zipalign uses
// (page alignment for native libraries).
const maxAlignment = 4096

// Default returns the default configuration with variables expanded.
// [Load] reads files over these values, so a file only names what it
// changes.
func Default() *Config {
	cfg := &Config{
		Manifest: ManifestConfig{
			Path:       "AndroidManifest.xml",
			Element:    "application",
			Namespace:  AndroidNamespace,
			Attribute:  "debuggable",
			ResourceID: 0x0101000f,
		},
		Archive: ArchiveConfig{
			BufferSize:       32 * 1024,
			CompressionLevel: -1,
			Alignment:        4,
			MaxEntrySize:     64 << 20,
		},
		Backup: BackupConfig{
			Enabled:     false,
			Directory:   "${HOME}/.cache/apkpatch/backups",
			Compression: "zstd",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
	cfg.expandVariables()
	return cfg
}

// Load reads the configuration file at path over [Default] and expands
// variables. Unknown keys are errors, so a misspelled setting is not
// silently ignored. Load does not validate; call [Config.Validate].
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	// An empty file decodes to io.EOF and leaves the defaults.
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	if c.Backup.Directory != "" {
		c.Backup.Directory = filepath.Clean(expandVars(c.Backup.Directory, vars))
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.Manifest.Path == "" {
		errs = append(errs, errors.New("manifest.path is required"))
	}
	if c.Manifest.Element == "" {
		errs = append(errs, errors.New("manifest.element is required"))
	}
	if c.Manifest.Attribute == "" {
		errs = append(errs, errors.New("manifest.attribute is required"))
	}

	if c.Archive.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("archive.buffer_size must be positive, got %d", c.Archive.BufferSize))
	}
	if c.Archive.CompressionLevel < -2 || c.Archive.CompressionLevel > 9 {
		errs = append(errs, fmt.Errorf("archive.compression_level must be between -2 and 9, got %d", c.Archive.CompressionLevel))
	}
	if c.Archive.Alignment < 0 || c.Archive.Alignment > maxAlignment {
		errs = append(errs, fmt.Errorf("archive.alignment must be between 0 and %d, got %d", maxAlignment, c.Archive.Alignment))
	}
	if c.Archive.MaxEntrySize < 0 {
		errs = append(errs, fmt.Errorf("archive.max_entry_size must not be negative, got %d", c.Archive.MaxEntrySize))
	}

	compressions := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressions, c.Backup.Compression) {
		errs = append(errs, fmt.Errorf("backup.compression must be one of: %v", compressions))
	}
	if c.Backup.Enabled && c.Backup.Directory == "" {
		errs = append(errs, errors.New("backup.directory is required when backups are enabled"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses Log.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
