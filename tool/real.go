// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const realShellTimeout = 10 * time.Second

// forbiddenDirectories are denied in real mode even when nested under
// an otherwise-permitted root.
var forbiddenDirectories = []string{"/etc", "/sys", "/proc", "/dev", "/boot"}

// Real executes tools with actual filesystem and process side effects.
// Every path-taking tool passes the safety check first: the resolved
// absolute path must fall under the process working directory or the
// user's home directory, and never under a system directory.
type Real struct{}

// Execute implements Executor.
func (Real) Execute(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	switch name {
	case FileRead:
		return realRead(params), nil

	case FileWrite:
		return realWrite(params), nil

	case FileDelete:
		return realDelete(params), nil

	case ShellCommand:
		command := stringParam(params, "command", "")
		result := runShell(ctx, command, realShellTimeout)
		if _, ran := result["returncode"]; ran {
			result["command"] = command
		}
		return result, nil

	case DirectoryList:
		return realList(params), nil

	default:
		return failure(fmt.Sprintf("Tool %s not implemented", name)), nil
	}
}

func realRead(params map[string]any) map[string]any {
	path := stringParam(params, "path", "")
	if !safePath(path) {
		return accessDenied(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure("File not found: " + path)
		}
		return failure(err.Error())
	}
	return map[string]any{
		"success": true,
		"content": string(data),
		"message": fmt.Sprintf("Read %d bytes from %s", len(data), path),
	}
}

func realWrite(params map[string]any) map[string]any {
	path := stringParam(params, "path", "")
	content := stringParam(params, "content", "")
	if !safePath(path) {
		return accessDenied(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return failure(err.Error())
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return failure(err.Error())
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		absolute = path
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path),
		"path":    absolute,
	}
}

func realDelete(params map[string]any) map[string]any {
	path := stringParam(params, "path", "")
	if !safePath(path) {
		return accessDenied(path)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return failure("File not found: " + path)
		}
		return failure(err.Error())
	}
	if err := os.Remove(path); err != nil {
		return failure(err.Error())
	}
	return map[string]any{
		"success": true,
		"message": "Successfully deleted " + path,
	}
}

func realList(params map[string]any) map[string]any {
	path := stringParam(params, "path", ".")
	if !safePath(path) {
		return accessDenied(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return failure(err.Error())
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

func accessDenied(path string) map[string]any {
	return failure(fmt.Sprintf("Access denied: %s is not in a safe directory", path))
}

// safePath reports whether real mode may touch the given path. The
// resolved absolute path must sit under the process working directory
// or the user's home directory, and the forbidden system directories
// win over both.
func safePath(path string) bool {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	workingDirectory, err := os.Getwd()
	if err != nil {
		return false
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}

	if !underDirectory(absolute, workingDirectory) && !underDirectory(absolute, home) {
		return false
	}
	for _, forbidden := range forbiddenDirectories {
		if underDirectory(absolute, forbidden) {
			return false
		}
	}
	return true
}

// underDirectory reports whether path sits at or below root. Both must
// be clean absolute paths.
func underDirectory(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
