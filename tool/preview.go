// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import "fmt"

// previewContentLimit caps how much of a file_write's content appears
// in the approval prompt.
const previewContentLimit = 100

// Preview renders a human-readable description of what a tool is about
// to do, shown to the user alongside the approval prompt. Destructive
// tools carry an explicit warning line.
func Preview(toolName string, params map[string]any) string {
	switch toolName {
	case FileWrite:
		path := stringParam(params, "path", "unknown")
		content := stringParam(params, "content", "")
		if runes := []rune(content); len(runes) > previewContentLimit {
			content = string(runes[:previewContentLimit])
		}
		return fmt.Sprintf("Write to file: %s\nContent preview:\n%s...", path, content)

	case FileDelete:
		path := stringParam(params, "path", "unknown")
		return fmt.Sprintf("Delete file: %s\n⚠️  This action cannot be undone!", path)

	case ShellCommand:
		command := stringParam(params, "command", "unknown")
		return fmt.Sprintf("Execute command:\n$ %s\n\n⚠️  Shell commands can modify your system", command)

	default:
		return fmt.Sprintf("Execute %s with params:\n%v", toolName, params)
	}
}

// stringParam extracts a string parameter, falling back when the key
// is absent or holds a non-string value.
func stringParam(params map[string]any, key, fallback string) string {
	if value, ok := params[key].(string); ok {
		return value
	}
	return fallback
}
