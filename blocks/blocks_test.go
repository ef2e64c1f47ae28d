// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package blocks

import (
	"strings"
	"testing"
)

func TestSegmentPlainText(t *testing.T) {
	result := Segment("Hello! How can I help you today?")
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeText {
		t.Errorf("type = %q, want %q", result[0].Type, TypeText)
	}
	if result[0].Content != "Hello! How can I help you today?" {
		t.Errorf("content = %q", result[0].Content)
	}
	if result[0].Language != "" {
		t.Errorf("text block carries language %q", result[0].Language)
	}
}

func TestSegmentEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\n  "} {
		if result := Segment(input); len(result) != 0 {
			t.Errorf("Segment(%q) = %+v, want no blocks", input, result)
		}
	}
}

func TestSegmentCodeFence(t *testing.T) {
	input := "Here's an example:\n\n```rust\nfn main() {\n    println!(\"hi\");\n}\n```\n\nAnd some more text."
	result := Segment(input)
	if len(result) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeText || result[0].Content != "Here's an example:" {
		t.Errorf("leading block = %+v", result[0])
	}
	code := result[1]
	if code.Type != TypeCode {
		t.Errorf("middle block type = %q, want %q", code.Type, TypeCode)
	}
	if code.Language != "rust" {
		t.Errorf("language = %q, want %q", code.Language, "rust")
	}
	if want := "fn main() {\n    println!(\"hi\");\n}"; code.Content != want {
		t.Errorf("code content = %q, want %q", code.Content, want)
	}
	if result[2].Type != TypeText || result[2].Content != "And some more text." {
		t.Errorf("trailing block = %+v", result[2])
	}
}

func TestSegmentLanguageNormalization(t *testing.T) {
	tests := []struct {
		fence string
		want  string
	}{
		{"rs", "rust"},
		{"py", "python"},
		{"js", "javascript"},
		{"go", "go"},
		{"", "text"},
		{"nosuchlanguage", "text"},
	}
	for _, test := range tests {
		input := "```" + test.fence + "\nbody\n```"
		result := Segment(input)
		if len(result) != 1 {
			t.Fatalf("fence %q: expected 1 block, got %d: %+v", test.fence, len(result), result)
		}
		if result[0].Language != test.want {
			t.Errorf("fence %q: language = %q, want %q", test.fence, result[0].Language, test.want)
		}
	}
}

func TestSegmentDiffReclassification(t *testing.T) {
	input := "```\n+added line\n+another added\n-removed line\ncontext\n```"
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeDiff {
		t.Errorf("type = %q, want %q", result[0].Type, TypeDiff)
	}
	if !strings.Contains(result[0].Content, "+added line") {
		t.Errorf("diff content = %q", result[0].Content)
	}
}

func TestSegmentDiffKeepsLanguage(t *testing.T) {
	input := "```python\n+import os\n+import sys\n-import json\n```"
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeDiff {
		t.Errorf("type = %q, want %q", result[0].Type, TypeDiff)
	}
	if result[0].Language != "python" {
		t.Errorf("language = %q, want %q", result[0].Language, "python")
	}
}

func TestSegmentFewMarkerLinesStaysCode(t *testing.T) {
	input := "```go\n+positive\n-negative\nreturn x\n```"
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeCode {
		t.Errorf("type = %q, want %q for two marker lines", result[0].Type, TypeCode)
	}
	if result[0].Language != "go" {
		t.Errorf("language = %q, want %q", result[0].Language, "go")
	}
}

func TestSegmentBulletList(t *testing.T) {
	input := "You'll need:\n\n- milk\n- eggs\n- bread\n\nThat's everything."
	result := Segment(input)
	if len(result) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeText || result[0].Content != "You'll need:" {
		t.Errorf("leading block = %+v", result[0])
	}
	list := result[1]
	if list.Type != TypeList {
		t.Errorf("middle block type = %q, want %q", list.Type, TypeList)
	}
	if want := "- milk\n- eggs\n- bread"; list.Content != want {
		t.Errorf("list content = %q, want %q", list.Content, want)
	}
	if result[2].Type != TypeText || result[2].Content != "That's everything." {
		t.Errorf("trailing block = %+v", result[2])
	}
}

func TestSegmentOrderedList(t *testing.T) {
	input := "1. clone the repo\n2. run the installer\n3. restart your shell"
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeList {
		t.Errorf("type = %q, want %q", result[0].Type, TypeList)
	}
	if result[0].Content != input {
		t.Errorf("content = %q, want %q", result[0].Content, input)
	}
}

func TestSegmentMergesProseRuns(t *testing.T) {
	input := "# Setup\n\nFirst paragraph of the answer.\n\nSecond paragraph, still prose."
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 merged text block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeText {
		t.Errorf("type = %q, want %q", result[0].Type, TypeText)
	}
	if result[0].Content != input {
		t.Errorf("content = %q, want %q", result[0].Content, input)
	}
}

func TestSegmentQuoteKeptAsText(t *testing.T) {
	input := "> Measure twice, cut once.\n\nGood advice."
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeText {
		t.Errorf("type = %q, want %q", result[0].Type, TypeText)
	}
	if result[0].Content != input {
		t.Errorf("content = %q, want %q", result[0].Content, input)
	}
}

func TestSegmentIndentedCodeStaysText(t *testing.T) {
	input := "Run this:\n\n    make install\n"
	result := Segment(input)
	if len(result) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(result), result)
	}
	if result[0].Type != TypeText {
		t.Errorf("type = %q, want %q", result[0].Type, TypeText)
	}
	if !strings.Contains(result[0].Content, "make install") {
		t.Errorf("content = %q", result[0].Content)
	}
}

func TestSegmentAdjacentFences(t *testing.T) {
	input := "```py\na = 1\n```\n\n```rs\nlet b = 2;\n```"
	result := Segment(input)
	if len(result) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(result), result)
	}
	if result[0].Language != "python" || result[0].Content != "a = 1" {
		t.Errorf("first fence = %+v", result[0])
	}
	if result[1].Language != "rust" || result[1].Content != "let b = 2;" {
		t.Errorf("second fence = %+v", result[1])
	}
}

func TestCountDiffLines(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"plain\nlines", 0},
		{"+a\n-b\n+c", 3},
		{"+a\ncontext\n-b", 2},
		{"++nested\n--dashes", 2},
	}
	for _, test := range tests {
		if got := countDiffLines(test.content); got != test.want {
			t.Errorf("countDiffLines(%q) = %d, want %d", test.content, got, test.want)
		}
	}
}
