// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"bytes"
	"regexp"
	"strings"
)

var markerPattern = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_.\-/]*)$`)

// line is one parsed line of an environment file. Lines that are not
// assignments keep only raw.
type line struct {
	raw    []byte
	key    string
	value  string
	marker string
}

func parse(content []byte) []line {
	var lines []line
	for _, raw := range bytes.SplitAfter(content, []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		parsed := line{raw: raw}
		text := strings.TrimSpace(string(raw))
		if text != "" && text[0] != '#' {
			text = strings.TrimPrefix(text, "export ")
			if key, value, found := strings.Cut(text, "="); found {
				parsed.key = strings.TrimSpace(key)
				parsed.value = strings.TrimSpace(value)
				if match := markerPattern.FindStringSubmatch(parsed.value); match != nil {
					parsed.marker = match[1]
				}
			}
		}
		lines = append(lines, parsed)
	}
	return lines
}

// References lists the distinct secret names referenced in content,
// in order of first appearance.
func References(content []byte) []string {
	var names []string
	seen := make(map[string]bool)
	for _, parsed := range parse(content) {
		if parsed.marker != "" && !seen[parsed.marker] {
			seen[parsed.marker] = true
			names = append(names, parsed.marker)
		}
	}
	return names
}

// Parse reads KEY=VALUE assignments, ignoring comments and markers.
// AgeSource uses it for decrypted files.
func Parse(content []byte) map[string]string {
	values := make(map[string]string)
	for _, parsed := range parse(content) {
		if parsed.key != "" {
			values[parsed.key] = unquote(parsed.value)
		}
	}
	return values
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// quote renders value for a systemd EnvironmentFile that is also
// sourced by bash. Safe values stay bare; others are single quoted, or
// double quoted with escapes when they contain a single quote. The
// result never aliases value.
func quote(value []byte) []byte {
	safe := len(value) > 0
	for _, b := range value {
		if !(b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || bytes.IndexByte([]byte("-_./:@+,=%"), b) >= 0) {
			safe = false
			break
		}
	}
	if safe {
		return append([]byte(nil), value...)
	}
	if bytes.IndexByte(value, '\'') < 0 {
		quoted := make([]byte, 0, len(value)+2)
		quoted = append(quoted, '\'')
		quoted = append(quoted, value...)
		return append(quoted, '\'')
	}
	quoted := make([]byte, 0, len(value)*2+2)
	quoted = append(quoted, '"')
	for _, b := range value {
		switch b {
		case '"', '\\', '$', '`':
			quoted = append(quoted, '\\')
		}
		quoted = append(quoted, b)
	}
	return append(quoted, '"')
}
