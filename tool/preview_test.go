// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import (
	"strings"
	"testing"
)

func TestPreviewFileWrite(t *testing.T) {
	preview := Preview(FileWrite, map[string]any{
		"path":    "/tmp/notes.txt",
		"content": "hello world",
	})
	for _, want := range []string{"Write to file: /tmp/notes.txt", "Content preview:", "hello world..."} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview %q missing %q", preview, want)
		}
	}
}

func TestPreviewFileWriteTruncatesContent(t *testing.T) {
	content := strings.Repeat("a", previewContentLimit) + "TAIL"
	preview := Preview(FileWrite, map[string]any{"path": "/tmp/big.txt", "content": content})

	if !strings.Contains(preview, strings.Repeat("a", previewContentLimit)+"...") {
		t.Errorf("preview does not end the excerpt with an ellipsis: %q", preview)
	}
	if strings.Contains(preview, "TAIL") {
		t.Errorf("preview leaked content past the limit: %q", preview)
	}
}

func TestPreviewFileDelete(t *testing.T) {
	preview := Preview(FileDelete, map[string]any{"path": "/tmp/old.txt"})
	if !strings.Contains(preview, "Delete file: /tmp/old.txt") {
		t.Errorf("preview missing path: %q", preview)
	}
	if !strings.Contains(preview, "cannot be undone") {
		t.Errorf("preview missing irreversibility warning: %q", preview)
	}
}

func TestPreviewShellCommand(t *testing.T) {
	preview := Preview(ShellCommand, map[string]any{"command": "rm -rf /tmp/scratch"})
	if !strings.Contains(preview, "$ rm -rf /tmp/scratch") {
		t.Errorf("preview missing command line: %q", preview)
	}
	if !strings.Contains(preview, "can modify your system") {
		t.Errorf("preview missing risk caveat: %q", preview)
	}
}

func TestPreviewGenericDumpsParams(t *testing.T) {
	preview := Preview(FileRead, map[string]any{"path": "/tmp/notes.txt"})
	if !strings.Contains(preview, "Execute file_read with params:") {
		t.Errorf("preview missing generic header: %q", preview)
	}
	if !strings.Contains(preview, "/tmp/notes.txt") {
		t.Errorf("preview missing parameter value: %q", preview)
	}
}

func TestPreviewMissingParamsFallBack(t *testing.T) {
	if preview := Preview(FileDelete, nil); !strings.Contains(preview, "Delete file: unknown") {
		t.Errorf("preview = %q, want unknown path fallback", preview)
	}
	if preview := Preview(ShellCommand, map[string]any{}); !strings.Contains(preview, "$ unknown") {
		t.Errorf("preview = %q, want unknown command fallback", preview)
	}
}
