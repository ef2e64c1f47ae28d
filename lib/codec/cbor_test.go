// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package codec

import (
	"bytes"
	"testing"
	"time"
)

// sampleRecord mirrors the session types' convention: json struct tags
// only, relying on fxamacker's json-tag fallback for CBOR.
type sampleRecord struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Role:       "assistant",
		Content:    "Here is the snippet you asked for.",
		TokenCount: 7,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	record := sampleRecord{
		Role:    "user",
		Content: "list the files",
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}

	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestTimeRoundtripPreservesSubsecond(t *testing.T) {
	type stamped struct {
		At time.Time `json:"at"`
	}
	original := stamped{At: time.Date(2026, 2, 3, 10, 30, 15, 123456000, time.UTC)}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded stamped
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !decoded.At.Equal(original.At) {
		t.Errorf("timestamp lost precision: got %v, want %v", decoded.At, original.At)
	}
}

func TestAnyTargetsDecodeAsStringKeyedMaps(t *testing.T) {
	type carrier struct {
		Metadata map[string]any `json:"metadata"`
	}
	original := carrier{Metadata: map[string]any{"query_id": "query-1"}}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded carrier
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	value, ok := decoded.Metadata["query_id"]
	if !ok {
		t.Fatalf("metadata key missing after roundtrip: %+v", decoded.Metadata)
	}
	if value != "query-1" {
		t.Errorf("metadata value = %v, want %q", value, "query-1")
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withCount := sampleRecord{Role: "assistant", Content: "x", TokenCount: 1}
	withoutCount := sampleRecord{Role: "assistant", Content: "x"}

	dataWith, err := Marshal(withCount)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutCount)
	if err != nil {
		t.Fatal(err)
	}

	// The encoding without the count field should be shorter because
	// the omitted field is not present.
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not respected: %d bytes without vs %d with", len(dataWithout), len(dataWith))
	}
}
