// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DropIn is one operator-supplied drop-in file.
type DropIn struct {
	Name    string
	Path    string
	Content []byte
}

// DropIns is the result of discovery: files for every service and
// files keyed by process name.
type DropIns struct {
	Common  []DropIn
	Process map[string][]DropIn
}

const commonDropInDir = "common.d"

// DiscoverDropIns reads the drop-in convention under dir:
//
//	dir/common.d/*.conf          applied to every service
//	dir/<proc>.service.d/*.conf  applied to process <proc>
//	dir/<proc>@.service.d/*.conf same, for template processes
//
// Every file is validated with [ValidateINI]. A missing dir is not an
// error and yields no drop-ins.
func DiscoverDropIns(dir string) (*DropIns, error) {
	result := &DropIns{Process: map[string][]DropIn{}}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading drop-in directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case name == commonDropInDir:
			result.Common, err = readDropInDir(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
		case strings.HasSuffix(name, ".service.d"):
			process := strings.TrimSuffix(strings.TrimSuffix(name, ".service.d"), "@")
			if !processNamePattern.MatchString(process) {
				return nil, fmt.Errorf("drop-in directory %s: %q is not a valid process name", name, process)
			}
			files, err := readDropInDir(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			result.Process[process] = append(result.Process[process], files...)
		}
	}
	return result, nil
}

func readDropInDir(dir string) ([]DropIn, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading drop-in directory: %w", err)
	}
	var dropIns []DropIn
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != ".conf" {
			continue
		}
		if entry.Name() == BaseDropInName {
			return nil, fmt.Errorf("%s: %s is reserved for the generated drop-in", filepath.Join(dir, entry.Name()), BaseDropInName)
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading drop-in: %w", err)
		}
		if err := ValidateINI(path, content); err != nil {
			return nil, err
		}
		dropIns = append(dropIns, DropIn{Name: entry.Name(), Path: path, Content: content})
	}
	sort.Slice(dropIns, func(i, j int) bool { return dropIns[i].Name < dropIns[j].Name })
	return dropIns, nil
}

// knownSections are the unit file sections systemd accepts. Sections
// prefixed with "X-" are always accepted, as systemd ignores them.
var knownSections = map[string]bool{
	"Unit":      true,
	"Install":   true,
	"Service":   true,
	"Socket":    true,
	"Timer":     true,
	"Path":      true,
	"Mount":     true,
	"Automount": true,
	"Swap":      true,
	"Slice":     true,
	"Scope":     true,
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SyntaxError locates a malformed line in a unit or drop-in file.
type SyntaxError struct {
	File   string
	Line   int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// ValidateINI checks content against systemd's unit file syntax. It
// rejects assignments outside a section, unterminated or unknown
// section headers, lines without "=", and empty or malformed keys.
// Comments (# and ;), blank lines and backslash continuations are
// accepted. The returned error is a *SyntaxError naming file and line.
func ValidateINI(file string, content []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNumber := 0
	inSection := false
	continuation := false

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		fail := func(format string, args ...any) error {
			return &SyntaxError{File: file, Line: lineNumber, Reason: fmt.Sprintf(format, args...)}
		}

		if continuation {
			continuation = strings.HasSuffix(line, `\`)
			continue
		}
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			if !strings.HasSuffix(line, "]") {
				return fail("unterminated section header %q", line)
			}
			section := strings.TrimSpace(line[1 : len(line)-1])
			if section == "" {
				return fail("empty section name")
			}
			if !knownSections[section] && !strings.HasPrefix(section, "X-") {
				return fail("unknown section [%s]", section)
			}
			inSection = true
			continue
		}

		if !inSection {
			return fail("assignment outside of any section")
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return fail("missing '=' in %q", line)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fail("empty key")
		}
		if !keyPattern.MatchString(key) {
			return fail("invalid key %q", key)
		}
		continuation = strings.HasSuffix(strings.TrimSpace(value), `\`)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}
