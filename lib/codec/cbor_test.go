// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sample struct {
	App     string            `cbor:"app"`
	Version string            `cbor:"version"`
	Built   time.Time         `cbor:"built"`
	Units   map[string]string `cbor:"units"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	value := sample{
		App:     "web",
		Version: "1.0.0",
		Built:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Units: map[string]string{
			"web-app.service":    "blake3:aa",
			"web-worker.service": "blake3:bb",
			"web-app.socket":     "blake3:cc",
		},
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for attempt := 0; attempt < 10; attempt++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs on attempt %d", attempt)
		}
	}

	var decoded sample
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Built.Equal(value.Built) || decoded.Units["web-app.socket"] != "blake3:cc" {
		t.Errorf("decoded = %+v, want %+v", decoded, value)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"mode": "python"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if asMap["mode"] != "python" {
		t.Errorf("mode = %v, want python", asMap["mode"])
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]string{"app": "web"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"app"`) {
		t.Errorf("Diagnose = %q, want it to mention the app key", diagnostic)
	}
}
