// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle builds the versioned release archive uploaded to the
// host.
//
// A bundle is a gzip-compressed tar file named {app}-{version}.bundle.
// Its entries, in order:
//
//	manifest.cbor        CBOR [Manifest]: app, version, mode, unit digests
//	dist/<distfile>      the built artifact
//	requirements.txt     python mode, when a requirements file is set
//	.env                 resolved environment, mode 0600
//	units/...            compiled unit files and drop-ins
//	Caddyfile            when the webserver is enabled
//	install.sh           see [RenderInstallScript]
//	uninstall.sh         see [RenderUninstallScript]
//
// Archives are deterministic: entry order is fixed, every entry carries
// the manifest build time as its mtime, and ownership is zeroed, so
// building the same inputs at the same build time yields the same
// SHA-256 checksum. [Build] computes that checksum while writing the
// archive; the pipeline compares it against sha256sum on the host.
package bundle
