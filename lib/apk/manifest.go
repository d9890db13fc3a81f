// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"fmt"

	"github.com/bureau-foundation/apkpatch/lib/archive"
	"github.com/bureau-foundation/apkpatch/lib/axml"
)

// Manifest summarizes a package manifest.
type Manifest struct {
	// Package is the package attribute of the root element.
	Package string `json:"package"`

	VersionCode   string `json:"version_code,omitempty"`
	VersionName   string `json:"version_name,omitempty"`
	MinSDKVersion string `json:"min_sdk_version,omitempty"`

	// Elements is the number of start tags in the document.
	Elements int `json:"elements"`

	// Debuggable reports whether the debuggable flag is set.
	Debuggable bool `json:"debuggable"`

	// DebuggableValue is the flag attribute's text, empty when the
	// attribute is absent.
	DebuggableValue string `json:"debuggable_value,omitempty"`

	// Size and Digest describe the manifest entry content.
	Size   int          `json:"size"`
	Digest archive.Hash `json:"digest"`
}

// manifestVisitor checks a manifest walk. It fails the walk on the
// first malformed chunk and records what Inspect and IsDebuggable
// report.
type manifestVisitor struct {
	element string
	flag    axml.AttributeSpec

	manifest Manifest

	// found is set at the first start tag named element.
	found bool
	// flagAttribute is the flag on that tag, if present.
	flagAttribute *axml.Attribute
}

func newManifestVisitor(element string, flag axml.AttributeSpec) *manifestVisitor {
	return &manifestVisitor{element: element, flag: flag}
}

func (v *manifestVisitor) StartTag(tag *axml.StartTag) error {
	v.manifest.Elements++

	switch {
	case tag.Depth == 0 && tag.Name.Local == "manifest":
		if attribute, ok := tag.Attribute("", "package"); ok {
			v.manifest.Package = attribute.Text()
		}
		if attribute, ok := tag.Attribute(AndroidNamespace, "versionCode"); ok {
			v.manifest.VersionCode = attribute.Text()
		}
		if attribute, ok := tag.Attribute(AndroidNamespace, "versionName"); ok {
			v.manifest.VersionName = attribute.Text()
		}
	case tag.Name.Local == "uses-sdk" && v.manifest.MinSDKVersion == "":
		if attribute, ok := tag.Attribute(AndroidNamespace, "minSdkVersion"); ok {
			v.manifest.MinSDKVersion = attribute.Text()
		}
	}

	if tag.Name.Local == v.element && !v.found {
		v.found = true
		if attribute, ok := v.findFlag(tag); ok {
			v.flagAttribute = &attribute
			v.manifest.DebuggableValue = attribute.Text()
			v.manifest.Debuggable = isTrue(attribute)
		}
	}
	return nil
}

func (v *manifestVisitor) EndTag(*axml.EndTag) error     { return nil }
func (v *manifestVisitor) CharData(*axml.CharData) error { return nil }

func (v *manifestVisitor) Invalid(invalid *axml.Invalid) error {
	return fmt.Errorf("%w at offset %d: %w", ErrDocumentMalformed, invalid.Offset, invalid.Err)
}

// findFlag matches the flag attribute the way the mutator does: by
// resource ID when one is configured, otherwise by name.
func (v *manifestVisitor) findFlag(tag *axml.StartTag) (axml.Attribute, bool) {
	for _, attribute := range tag.Attributes {
		if v.flag.ResourceID != 0 && attribute.ResourceID == v.flag.ResourceID {
			return attribute, true
		}
		if attribute.Name.Namespace == v.flag.Namespace && attribute.Name.Local == v.flag.Name {
			return attribute, true
		}
	}
	return axml.Attribute{}, false
}

// isTrue reports whether an attribute value enables the flag: a
// non-zero boolean or integer, or the string "true".
func isTrue(attribute axml.Attribute) bool {
	if attribute.Value.Type == axml.TypeString {
		return attribute.Raw == "true"
	}
	return attribute.Value.Truthy()
}

// analyze walks a located manifest and requires the target element.
func (p *Package) analyze(data []byte) (*manifestVisitor, error) {
	visitor := newManifestVisitor(p.element, p.flag)
	if err := axml.Walk(data, visitor); err != nil {
		return nil, fmt.Errorf("walking %s in %s: %w", p.manifestPath, p.path, err)
	}
	if !visitor.found {
		return nil, fmt.Errorf("%w: %s in %s has no <%s> element",
			ErrRequiredElementMissing, p.manifestPath, p.path, p.element)
	}
	visitor.manifest.Size = len(data)
	visitor.manifest.Digest = archive.HashEntry(data)
	return visitor, nil
}
