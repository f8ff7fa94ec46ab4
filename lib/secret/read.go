// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"os"
)

// FromEnv moves the value of the environment variable name into a
// Buffer. An unset or empty variable is an error.
func FromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret: environment variable %s is not set", name)
	}
	return NewFromBytes([]byte(value))
}

// ReadFile reads a secret from path with surrounding whitespace
// trimmed. Every intermediate copy is zeroed.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}
	return NewFromBytes(trimmed)
}

// ReadFileVerbatim reads path byte for byte, for secrets whose exact
// content matters, such as a dotenv file about to be encrypted.
func ReadFileVerbatim(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}
	return NewFromBytes(data)
}
