// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axmltest

// ManifestOptions shapes the document returned by [Manifest].
type ManifestOptions struct {
	// Package is the manifest package name. Defaults to
	// "com.example.app".
	Package string

	// Debuggable, when non-nil, adds android:debuggable to the
	// application element with this boolean value.
	Debuggable *bool

	// OmitApplication leaves out the application element.
	OmitApplication bool

	// UTF8 selects a UTF-8 string pool.
	UTF8 bool
}

// Manifest returns a binary AndroidManifest.xml equivalent to:
//
//	<manifest xmlns:android="..." package="com.example.app"
//	    android:versionCode="7" android:versionName="1.2.0">
//	  <uses-sdk android:minSdkVersion="21"/>
//	  <application android:label="Example" android:icon="@0x7f010000"
//	      android:allowBackup="true">
//	    <activity android:name=".MainActivity"/>
//	  </application>
//	</manifest>
//
// The application attributes are in ascending resource ID order, so an
// inserted android:debuggable (0x0101000f) belongs between icon and
// allowBackup.
func Manifest(options ManifestOptions) []byte {
	pkg := options.Package
	if pkg == "" {
		pkg = "com.example.app"
	}
	android := AndroidNamespace

	b := New()
	b.UTF8 = options.UTF8
	b.StartNamespace("android", android)
	b.Start("", "manifest",
		IntAttr(android, "versionCode", ResourceVersionCode, 7),
		StringAttr(android, "versionName", ResourceVersionName, "1.2.0"),
		StringAttr("", "package", 0, pkg),
	)
	b.Start("", "uses-sdk", IntAttr(android, "minSdkVersion", ResourceMinSDKVersion, 21))
	b.End("", "uses-sdk")

	if !options.OmitApplication {
		attrs := []Attr{
			StringAttr(android, "label", ResourceLabel, "Example"),
			ReferenceAttr(android, "icon", ResourceIcon, 0x7f010000),
		}
		if options.Debuggable != nil {
			attrs = append(attrs, BoolAttr(android, "debuggable", ResourceDebuggable, *options.Debuggable))
		}
		attrs = append(attrs, BoolAttr(android, "allowBackup", ResourceAllowBackup, true))

		b.Start("", "application", attrs...)
		b.Start("", "activity", StringAttr(android, "name", ResourceName, ".MainActivity"))
		b.End("", "activity")
		b.End("", "application")
	}

	b.End("", "manifest")
	b.EndNamespace("android", android)
	return b.Bytes()
}
