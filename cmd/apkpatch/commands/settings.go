// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/apkpatch/cmd/apkpatch/cli"
	"github.com/bureau-foundation/apkpatch/lib/apk"
	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/axml"
	"github.com/bureau-foundation/apkpatch/lib/backup"
	"github.com/bureau-foundation/apkpatch/lib/config"
)

// settings holds the flags every command accepts.
type settings struct {
	configPath string
	logLevel   string

	// newLogger builds the command logger; tests replace it.
	newLogger func(slog.Level) *slog.Logger
}

func (s *settings) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.configPath, "config", "", "YAML configuration file (defaults apply without one)")
	flagSet.StringVar(&s.logLevel, "log-level", "", "log level: debug, info, warn, or error (overrides the config file)")
}

// load reads and validates the configuration and builds the logger.
func (s *settings) load() (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if s.configPath != "" {
		loaded, err := config.Load(s.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if s.logLevel != "" {
		cfg.Log.Level = s.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	newLogger := s.newLogger
	if newLogger == nil {
		newLogger = cli.NewCommandLogger
	}
	return cfg, newLogger(level), nil
}

// archiveOptions maps the archive section onto store options.
func archiveOptions(cfg *config.Config, logger *slog.Logger) []archive.Option {
	return []archive.Option{
		archive.WithBufferSize(cfg.Archive.BufferSize),
		archive.WithCompressionLevel(cfg.Archive.CompressionLevel),
		archive.WithAlignment(cfg.Archive.Alignment),
		archive.WithMaxEntrySize(cfg.Archive.MaxEntrySize),
		archive.WithLogger(logger),
	}
}

// backupStore returns the snapshot store the configuration describes.
func backupStore(cfg *config.Config, logger *slog.Logger) (*backup.Store, error) {
	compression, err := backup.ParseCompression(cfg.Backup.Compression)
	if err != nil {
		return nil, err
	}
	return backup.New(cfg.Backup.Directory,
		backup.WithCompression(compression),
		backup.WithMaxSize(cfg.Archive.MaxEntrySize),
		backup.WithLogger(logger),
	), nil
}

// openPackage opens path with the manifest target, archive settings,
// and (when enabled) backups from the configuration.
func openPackage(path string, cfg *config.Config, logger *slog.Logger) (*apk.Package, error) {
	options := []apk.Option{
		apk.WithLogger(logger),
		apk.WithArchiveOptions(archiveOptions(cfg, logger)...),
		apk.WithManifestPath(cfg.Manifest.Path),
		apk.WithTarget(cfg.Manifest.Element, axml.AttributeSpec{
			Namespace:  cfg.Manifest.Namespace,
			Name:       cfg.Manifest.Attribute,
			ResourceID: cfg.Manifest.ResourceID,
		}),
	}
	if cfg.Backup.Enabled {
		store, err := backupStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		options = append(options, apk.WithBackups(store))
	}
	return apk.Open(path, options...)
}
