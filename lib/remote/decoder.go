// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"unicode/utf8"
)

// Decoder turns a byte stream into UTF-8 text incrementally. A
// multi-byte sequence split across Write calls is held back until the
// rest arrives. Bytes that can never form a valid sequence are
// replaced with U+FFFD.
type Decoder struct {
	pending []byte
}

// Write decodes chunk and returns all text that is complete.
func (d *Decoder) Write(chunk []byte) string {
	data := chunk
	if len(d.pending) > 0 {
		data = append(d.pending, chunk...)
		d.pending = nil
	}

	cut := incompleteSuffix(data)
	if cut < len(data) {
		d.pending = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}
	return toValidString(data)
}

// Flush returns whatever is held back, with invalid bytes replaced.
// Call it once the stream reaches EOF.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	text := toValidString(d.pending)
	d.pending = nil
	return text
}

// incompleteSuffix returns the index where a trailing, possibly
// incomplete multi-byte sequence starts, or len(data) if the data ends
// on a boundary.
func incompleteSuffix(data []byte) int {
	// A UTF-8 sequence is at most 4 bytes, so only the last 3 can
	// belong to an unfinished one.
	for back := 1; back <= 3 && back <= len(data); back++ {
		index := len(data) - back
		b := data[index]
		if b < 0x80 {
			return len(data)
		}
		if !utf8.RuneStart(b) {
			continue
		}
		need := sequenceLength(b)
		if need > back {
			return index
		}
		return len(data)
	}
	return len(data)
}

func sequenceLength(lead byte) int {
	switch {
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

func toValidString(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		runes = append(runes, r)
		data = data[size:]
	}
	return string(runes)
}
