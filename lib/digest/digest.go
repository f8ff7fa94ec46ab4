// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// HashFile computes the SHA-256 digest of the file at path, streaming
// its contents through the hash.
func HashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// FormatSHA256 returns the lowercase hex form of sum, matching
// sha256sum output.
func FormatSHA256(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}

// ParseSHA256 parses a 64-character hex digest.
func ParseSHA256(hexString string) ([32]byte, error) {
	var sum [32]byte
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return sum, fmt.Errorf("parsing sha256 digest: %w", err)
	}
	if len(decoded) != 32 {
		return sum, fmt.Errorf("sha256 digest is %d bytes, want 32", len(decoded))
	}
	copy(sum[:], decoded)
	return sum, nil
}

// ParseSumOutput extracts and validates the digest from one line of
// sha256sum output ("<hex>  <path>").
func ParseSumOutput(output string) ([32]byte, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return [32]byte{}, fmt.Errorf("empty sha256sum output")
	}
	return ParseSHA256(strings.ToLower(fields[0]))
}

// Content returns the BLAKE3 digest of data as "blake3:<hex>".
func Content(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}
