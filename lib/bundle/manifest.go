// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/drydock-dev/drydock/lib/codec"
	"github.com/drydock-dev/drydock/lib/unit"
)

// ManifestName is the archive entry holding the manifest. It is always
// the first entry.
const ManifestName = "manifest.cbor"

// Manifest describes a bundle. It is stored in the archive and, after
// extraction, in the release directory, where later deploys read it to
// decide which units changed.
type Manifest struct {
	App      string    `cbor:"app"`
	Version  string    `cbor:"version"`
	Mode     unit.Mode `cbor:"mode"`
	BuiltAt  time.Time `cbor:"built_at"`
	DistFile string    `cbor:"dist_file"`

	// Units maps unit file paths (relative to the systemd directory)
	// to BLAKE3 content digests.
	Units map[string]string `cbor:"units"`

	// Installed lists the top-level unit files, without drop-ins.
	Installed []string `cbor:"installed"`

	// ActiveCheck lists the concrete units that must be active after
	// the release is started.
	ActiveCheck []string `cbor:"active_check"`

	// Restartable lists every concrete unit restarted when any of the
	// release's units change, including socket-activated services.
	Restartable []string `cbor:"restartable,omitempty"`

	Webserver bool `cbor:"webserver,omitempty"`
}

// Validate checks the fields every manifest must carry.
func (m *Manifest) Validate() error {
	var errs []error
	if m.App == "" {
		errs = append(errs, errors.New("app is empty"))
	}
	if m.Version == "" {
		errs = append(errs, errors.New("version is empty"))
	}
	if !m.Mode.Valid() {
		errs = append(errs, fmt.Errorf("unknown mode %q", m.Mode))
	}
	if m.DistFile == "" {
		errs = append(errs, errors.New("dist_file is empty"))
	}
	return errors.Join(errs...)
}

// DecodeManifest parses manifest bytes, such as those read from a
// release directory on the host.
func DecodeManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &manifest, nil
}

// ReadManifest reads the manifest from a bundle archive.
func ReadManifest(archivePath string) (*Manifest, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer file.Close()

	decompressor, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("reading bundle %s: %w", archivePath, err)
	}
	defer decompressor.Close()

	reader := tar.NewReader(decompressor)
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("bundle %s has no %s", archivePath, ManifestName)
		}
		if err != nil {
			return nil, fmt.Errorf("reading bundle %s: %w", archivePath, err)
		}
		if header.Name != ManifestName {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(reader, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", ManifestName, err)
		}
		return DecodeManifest(data)
	}
}
