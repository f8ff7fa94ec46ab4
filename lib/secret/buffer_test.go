// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIsZeroFilled(t *testing.T) {
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New(64): %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 64 {
		t.Errorf("Len = %d, want 64", buffer.Len())
	}
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("byte %d = %d, want 0", index, value)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("hunter2")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "hunter2" {
		t.Errorf("String = %q, want %q", got, "hunter2")
	}
	if !buffer.Equal([]byte("hunter2")) {
		t.Error("Equal returned false for identical content")
	}
	if buffer.Equal([]byte("hunter3")) {
		t.Error("Equal returned true for different content")
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d = %d, want 0", index, value)
		}
	}
}

func TestCloseIdempotentAndPanicsAfter(t *testing.T) {
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Bytes after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DRYDOCK_TEST_PASSWORD", "s3cret")
	buffer, err := FromEnv("DRYDOCK_TEST_PASSWORD")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	defer buffer.Close()
	if got := buffer.String(); got != "s3cret" {
		t.Errorf("FromEnv = %q, want %q", got, "s3cret")
	}

	if _, err := FromEnv("DRYDOCK_TEST_UNSET_VARIABLE"); err == nil {
		t.Error("FromEnv succeeded for an unset variable")
	}
}

func TestReadFile(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "identity")
	if err := os.WriteFile(path, []byte("\n  AGE-SECRET-KEY-1ABC \n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	buffer, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	defer buffer.Close()
	if got := buffer.String(); got != "AGE-SECRET-KEY-1ABC" {
		t.Errorf("ReadFile = %q, want trimmed key", got)
	}

	blank := filepath.Join(directory, "blank")
	if err := os.WriteFile(blank, []byte(" \n\t"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(blank); err == nil {
		t.Error("ReadFile accepted a whitespace-only file")
	}
}

func TestReadFileVerbatimKeepsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.env")
	content := "# production\nDATABASE_PASSWORD=hunter2\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	buffer, err := ReadFileVerbatim(path)
	if err != nil {
		t.Fatalf("ReadFileVerbatim: %v", err)
	}
	defer buffer.Close()
	if got := buffer.String(); got != content {
		t.Errorf("ReadFileVerbatim = %q, want %q", got, content)
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFileVerbatim(empty); err == nil {
		t.Error("ReadFileVerbatim accepted an empty file")
	}
}
