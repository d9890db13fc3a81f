// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for apkpatch.
//
// Configuration is loaded from a single file named by the --config
// flag (via [Load]). There is no environment variable lookup and no
// automatic file search; without --config the command runs on
// [Default]. This keeps a run reproducible from its command line.
//
// Variable expansion is performed on the backup directory after
// loading: ${HOME} and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Manifest, Archive, Backup, Log
//   - [Default] -- returns a Config with working defaults
//   - [Load] -- reads a file over the defaults
//   - [Config.Validate] -- reports every invalid field at once
//
// This package depends on no other apkpatch packages.
package config
