// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"
)

const (
	// simulatedReadLimit caps file_read output in simulated mode so a
	// demo never dumps an arbitrarily large file.
	simulatedReadLimit = 500

	// simulatedListLimit caps directory_list entries in simulated mode.
	simulatedListLimit = 20

	simulatedShellTimeout = 5 * time.Second
)

// simulatedShellAllowlist names the side-effect-free commands that
// Simulated actually runs. Anything else is described, not executed.
var simulatedShellAllowlist = []string{"ls", "pwd", "date", "whoami"}

// Simulated executes tools without side effects. Reads and directory
// listings are genuine but capped; writes and deletes return a
// description of what real mode would have done; shell commands run
// only when the command name appears on the allowlist.
type Simulated struct{}

// Execute implements Executor.
func (Simulated) Execute(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	switch name {
	case FileRead:
		return simulatedRead(params), nil

	case FileWrite:
		path := stringParam(params, "path", "")
		content := stringParam(params, "content", "")
		return map[string]any{
			"success": true,
			"message": fmt.Sprintf("Would write %d bytes to %s", len(content), path),
			"note":    "Demo mode - file not actually written",
		}, nil

	case FileDelete:
		path := stringParam(params, "path", "")
		return map[string]any{
			"success": true,
			"message": "Would delete " + path,
			"note":    "Demo mode - file not actually deleted",
		}, nil

	case ShellCommand:
		return simulatedShell(ctx, params), nil

	case DirectoryList:
		return simulatedList(params), nil

	default:
		return failure(fmt.Sprintf("Tool %s not implemented", name)), nil
	}
}

func simulatedRead(params map[string]any) map[string]any {
	path := stringParam(params, "path", "")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure("File not found: " + path)
		}
		return failure(err.Error())
	}

	content := string(data)
	if runes := []rune(content); len(runes) > simulatedReadLimit {
		content = string(runes[:simulatedReadLimit])
	}
	return map[string]any{
		"success": true,
		"content": content,
		"message": fmt.Sprintf("Read %d characters from %s", len([]rune(content)), path),
	}
}

func simulatedShell(ctx context.Context, params map[string]any) map[string]any {
	command := stringParam(params, "command", "")
	name := ""
	if fields := strings.Fields(command); len(fields) > 0 {
		name = fields[0]
	}
	if slices.Contains(simulatedShellAllowlist, name) {
		return runShell(ctx, command, simulatedShellTimeout)
	}
	return map[string]any{
		"success": true,
		"message": "Would execute: " + command,
		"note":    "Demo mode - only safe commands actually executed",
	}
}

func simulatedList(params map[string]any) map[string]any {
	path := stringParam(params, "path", ".")
	entries, err := os.ReadDir(path)
	if err != nil {
		return failure(err.Error())
	}
	if len(entries) > simulatedListLimit {
		entries = entries[:simulatedListLimit]
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return map[string]any{
		"success": true,
		"files":   names,
		"count":   len(names),
		"message": fmt.Sprintf("Listed %d files in %s", len(names), path),
	}
}
