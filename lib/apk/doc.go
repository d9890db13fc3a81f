// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package apk patches the binary manifest of an Android package.
//
// A [Package] composes the container store (lib/archive) with the
// binary XML walker and mutator (lib/axml). Every operation starts by
// locating AndroidManifest.xml in the container and walking it with a
// visitor that fails on the first malformed chunk and records whether
// the application element is present:
//
//	pkg, err := apk.Open("app.apk")
//	result, err := pkg.PatchToDebuggable()
//
// [Package.PatchToDebuggable] sets android:debuggable="true" on the
// application element. The container is rewritten only after the
// document has been decoded, mutated, and re-verified in memory, and
// the entry is written exactly once. A package that is already
// debuggable is reported as such and left untouched.
//
// The rewrite leaves META-INF/ untouched, so a patched package carries
// a signature that no longer matches and must be re-signed before it
// can be installed. Signing is outside this package.
//
// Package does no locking. Concurrent writers to one container are the
// caller's problem.
package apk
