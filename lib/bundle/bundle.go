// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"archive/tar"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/drydock-dev/drydock/lib/codec"
	"github.com/drydock-dev/drydock/lib/digest"
	"github.com/drydock-dev/drydock/lib/unit"
)

// versionPattern keeps versions safe as file name components.
var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// Input is everything Build packs into a bundle.
type Input struct {
	App     string
	Version string
	Mode    unit.Mode

	// DistFile is the local build output. It must be a non-empty
	// regular file.
	DistFile string

	// Requirements is an optional requirements file for python mode.
	Requirements string

	PythonVersion string

	// EnvContent is the resolved environment file. Build does not
	// retain it.
	EnvContent []byte

	Units []unit.UnitFile

	// ActiveCheck and Restartable are recorded in the manifest; see
	// Manifest.
	ActiveCheck []string
	Restartable []string

	// Caddyfile is the rendered site file. Ignored unless Webserver
	// is set.
	Caddyfile       string
	Webserver       bool
	CaddyConfigPath string

	// InstallDir is the application directory on the host,
	// {apps_root}/{app}.
	InstallDir string
	User       string

	// OutputDir receives the archive. Empty means a new temporary
	// directory.
	OutputDir string

	// BuiltAt is the manifest build time and the mtime of every
	// entry. Zero means now.
	BuiltAt time.Time
}

// Entry is one file in the archive.
type Entry struct {
	Name string
	Mode int64
	Size int64
}

// Bundle is a built archive. It is immutable once Build returns.
type Bundle struct {
	App      string
	Version  string
	Path     string
	Entries  []Entry
	Manifest *Manifest

	// Checksum is the lowercase hex SHA-256 of the archive bytes.
	Checksum string
	Size     int64
}

// FileName is the archive name for app at version.
func FileName(app, version string) string {
	return app + "-" + version + ".bundle"
}

// Build validates input and writes the archive.
func Build(input Input) (*Bundle, error) {
	distInfo, err := os.Stat(input.DistFile)
	switch {
	case err != nil:
		return nil, buildError("checking build output", err)
	case !distInfo.Mode().IsRegular():
		return nil, buildError("checking build output", fmt.Errorf("%s is not a regular file", input.DistFile))
	case distInfo.Size() == 0:
		return nil, buildError("checking build output", fmt.Errorf("%s is empty", input.DistFile))
	}

	if err := validateInput(input); err != nil {
		return nil, bundleError("validating input", err)
	}
	includeRequirements := input.Mode == unit.ModePython && input.Requirements != ""
	if includeRequirements {
		if _, err := os.Stat(input.Requirements); err != nil {
			return nil, bundleError("checking requirements", err)
		}
	}

	builtAt := input.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now()
	}
	builtAt = builtAt.UTC().Truncate(time.Second)

	manifest := &Manifest{
		App:         input.App,
		Version:     input.Version,
		Mode:        input.Mode,
		BuiltAt:     builtAt,
		DistFile:    filepath.Base(input.DistFile),
		Units:       unit.Digests(input.Units),
		Installed:   unit.Installed(input.Units),
		ActiveCheck: input.ActiveCheck,
		Restartable: input.Restartable,
		Webserver:   input.Webserver,
	}
	manifestBytes, err := codec.Marshal(manifest)
	if err != nil {
		return nil, bundleError("encoding manifest", err)
	}

	params := Params{
		App:             input.App,
		Version:         input.Version,
		AppDir:          input.InstallDir,
		User:            input.User,
		Mode:            input.Mode,
		PythonVersion:   input.PythonVersion,
		DistFile:        manifest.DistFile,
		Requirements:    includeRequirements,
		Units:           manifest.Installed,
		CaddyConfigPath: input.CaddyConfigPath,
	}
	if !input.Webserver {
		params.CaddyConfigPath = ""
	}

	outputDir := input.OutputDir
	if outputDir == "" {
		outputDir, err = os.MkdirTemp("", "drydock-bundle-")
		if err != nil {
			return nil, bundleError("creating output directory", err)
		}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, bundleError("creating output directory", err)
	}

	finalPath := filepath.Join(outputDir, FileName(input.App, input.Version))
	temporary, err := os.CreateTemp(outputDir, ".bundle-*")
	if err != nil {
		return nil, bundleError("creating archive", err)
	}
	defer os.Remove(temporary.Name())

	writer := newArchiveWriter(temporary, builtAt)
	writer.bytes(ManifestName, 0644, manifestBytes)
	writer.file(path.Join("dist", manifest.DistFile), 0644, input.DistFile)
	if includeRequirements {
		writer.file("requirements.txt", 0644, input.Requirements)
	}
	if len(input.EnvContent) > 0 {
		writer.bytes(".env", 0600, input.EnvContent)
	}
	for _, unitFile := range input.Units {
		writer.bytes(path.Join("units", unitFile.Name), 0644, []byte(unitFile.Body))
	}
	if input.Webserver && input.Caddyfile != "" {
		writer.bytes("Caddyfile", 0644, []byte(input.Caddyfile))
	}
	writer.bytes("install.sh", 0755, []byte(RenderInstallScript(params)))
	writer.bytes("uninstall.sh", 0755, []byte(RenderUninstallScript(params)))

	checksum, size, err := writer.close()
	if closeErr := temporary.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, bundleError("writing archive", err)
	}
	if err := os.Rename(temporary.Name(), finalPath); err != nil {
		return nil, bundleError("writing archive", err)
	}

	return &Bundle{
		App:      input.App,
		Version:  input.Version,
		Path:     finalPath,
		Entries:  writer.entries,
		Manifest: manifest,
		Checksum: checksum,
		Size:     size,
	}, nil
}

func validateInput(input Input) error {
	var errs []error
	if input.App == "" {
		errs = append(errs, errors.New("app is required"))
	}
	if !versionPattern.MatchString(input.Version) {
		errs = append(errs, fmt.Errorf("version %q must match %s", input.Version, versionPattern))
	}
	if !input.Mode.Valid() {
		errs = append(errs, fmt.Errorf("unknown installation mode %q", input.Mode))
	}
	if !path.IsAbs(input.InstallDir) {
		errs = append(errs, fmt.Errorf("install dir must be absolute, got %q", input.InstallDir))
	}
	if input.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if input.Webserver && input.Caddyfile != "" && input.CaddyConfigPath == "" {
		errs = append(errs, errors.New("caddy config path is required with a Caddyfile"))
	}
	return errors.Join(errs...)
}

// Verify re-hashes the archive on disk and compares it with Checksum.
func (b *Bundle) Verify() error {
	sum, err := digest.HashFile(b.Path)
	if err != nil {
		return err
	}
	if got := digest.FormatSHA256(sum); got != b.Checksum {
		return fmt.Errorf("bundle %s checksum %s does not match %s", b.Path, got, b.Checksum)
	}
	return nil
}

// archiveWriter streams tar entries through gzip into the output while
// hashing the compressed bytes. The first error sticks; later calls
// are no-ops.
type archiveWriter struct {
	hasher  hash.Hash
	counter *countingWriter
	gzip    *gzip.Writer
	tar     *tar.Writer
	modTime time.Time
	entries []Entry
	err     error
}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	written, err := c.writer.Write(p)
	c.count += int64(written)
	return written, err
}

func newArchiveWriter(output io.Writer, modTime time.Time) *archiveWriter {
	hasher := sha256.New()
	counter := &countingWriter{writer: io.MultiWriter(output, hasher)}
	compressor, _ := gzip.NewWriterLevel(counter, gzip.BestCompression)
	compressor.ModTime = modTime
	return &archiveWriter{
		hasher:  hasher,
		counter: counter,
		gzip:    compressor,
		tar:     tar.NewWriter(compressor),
		modTime: modTime,
	}
}

func (w *archiveWriter) header(name string, mode, size int64) {
	w.err = w.tar.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     mode,
		Size:     size,
		ModTime:  w.modTime,
		Format:   tar.FormatPAX,
	})
	if w.err == nil {
		w.entries = append(w.entries, Entry{Name: name, Mode: mode, Size: size})
	}
}

func (w *archiveWriter) bytes(name string, mode int64, data []byte) {
	if w.err != nil {
		return
	}
	w.header(name, mode, int64(len(data)))
	if w.err == nil {
		_, w.err = w.tar.Write(data)
	}
}

func (w *archiveWriter) file(name string, mode int64, source string) {
	if w.err != nil {
		return
	}
	file, err := os.Open(source)
	if err != nil {
		w.err = err
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		w.err = err
		return
	}
	w.header(name, mode, info.Size())
	if w.err == nil {
		_, w.err = io.Copy(w.tar, file)
	}
}

func (w *archiveWriter) close() (checksum string, size int64, err error) {
	if w.err != nil {
		return "", 0, w.err
	}
	if err := w.tar.Close(); err != nil {
		return "", 0, err
	}
	if err := w.gzip.Close(); err != nil {
		return "", 0, err
	}
	var sum [32]byte
	copy(sum[:], w.hasher.Sum(nil))
	return digest.FormatSHA256(sum), w.counter.count, nil
}
