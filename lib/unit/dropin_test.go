// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateINI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		line    int
		reason  string
	}{
		{"valid", "# comment\n; other\n\n[Service]\nMemoryMax=1G\nExecStartPre=/bin/true \\\n  --flag\n[X-Custom]\nAnything=goes\n", 0, ""},
		{"outside section", "MemoryMax=1G\n[Service]\n", 1, "outside of any section"},
		{"unterminated header", "[Service\nA=b\n", 1, "unterminated section header"},
		{"unknown section", "[Service]\nA=b\n[Servce]\n", 3, "unknown section"},
		{"missing equals", "[Service]\nRestart always\n", 2, "missing '='"},
		{"empty key", "[Service]\n=value\n", 2, "empty key"},
		{"invalid key", "[Service]\nMemory Max=1G\n", 2, "invalid key"},
		{"empty section", "[ ]\n", 1, "empty section name"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateINI("test.conf", []byte(test.content))
			if test.reason == "" {
				if err != nil {
					t.Fatalf("ValidateINI = %v, want nil", err)
				}
				return
			}
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("ValidateINI = %v, want *SyntaxError", err)
			}
			if syntaxErr.Line != test.line || !strings.Contains(syntaxErr.Reason, test.reason) {
				t.Errorf("got line %d %q, want line %d %q", syntaxErr.Line, syntaxErr.Reason, test.line, test.reason)
			}
			if !strings.HasPrefix(err.Error(), "test.conf:") {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}

func TestDiscoverDropInsMissingDir(t *testing.T) {
	t.Parallel()
	dropIns, err := DiscoverDropIns(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("DiscoverDropIns: %v", err)
	}
	if len(dropIns.Common) != 0 || len(dropIns.Process) != 0 {
		t.Errorf("DiscoverDropIns = %+v, want empty", dropIns)
	}
}

func TestDiscoverDropInsValidatesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDropIn(t, dir, "web.service.d/ok.conf", "[Service]\nNice=5\n")
	writeDropIn(t, dir, "web.service.d/broken.conf", "[Service]\nNice 5\n")

	_, err := DiscoverDropIns(dir)
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("DiscoverDropIns = %v, want *SyntaxError", err)
	}
	if filepath.Base(syntaxErr.File) != "broken.conf" || syntaxErr.Line != 2 {
		t.Errorf("error located at %s:%d, want broken.conf:2", syntaxErr.File, syntaxErr.Line)
	}
}

func TestDiscoverDropInsRejectsReservedName(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDropIn(t, dir, "common.d/"+BaseDropInName, "[Service]\nUser=root\n")

	_, err := DiscoverDropIns(dir)
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Errorf("DiscoverDropIns = %v, want reserved name error", err)
	}
}

func TestDiscoverDropInsKeysTemplateDirectories(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDropIn(t, dir, "web@.service.d/b.conf", "[Service]\nNice=1\n")
	writeDropIn(t, dir, "web@.service.d/a.conf", "[Service]\nNice=2\n")

	dropIns, err := DiscoverDropIns(dir)
	if err != nil {
		t.Fatalf("DiscoverDropIns: %v", err)
	}
	files := dropIns.Process["web"]
	if len(files) != 2 || files[0].Name != "a.conf" || files[1].Name != "b.conf" {
		t.Errorf("web drop-ins = %+v, want a.conf then b.conf", files)
	}
}
