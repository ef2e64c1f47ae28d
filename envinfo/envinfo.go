// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package envinfo gathers a snapshot of the user's environment for
// agent queries: working directory, git state, a directory listing,
// and system identity. Collection never fails — anything unavailable
// (no git, unreadable directory, no repo) is simply absent from the
// snapshot, and Render produces the markdown handed to the agent as
// query context.
package envinfo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Listing and render caps. The full caps bound what Collect gathers;
// the render caps bound what the agent sees inline, with a count of
// the remainder.
const (
	maxFiles       = 20
	maxDirectories = 10

	renderFiles       = 10
	renderDirectories = 5
)

// gitTimeout bounds each git subprocess. Context gathering runs on
// the query path, so a hung git (network filesystem, huge repo) must
// not stall the agent.
const gitTimeout = 2 * time.Second

// envMarkers are the environment variables surfaced to the agent, in
// render order. They mark active language environments.
var envMarkers = []string{"VIRTUAL_ENV", "CONDA_DEFAULT_ENV", "NODE_ENV"}

// Context is one gathered environment snapshot.
type Context struct {
	WorkingDir string

	// Git state. Branch is empty outside a repository (or in one with
	// no commits yet); Status is "clean" or the porcelain short form.
	GitBranch string
	GitStatus string
	GitDirty  bool

	// Visible (non-hidden) directory entries, sorted, capped.
	Files       []string
	Directories []string

	Platform string
	Shell    string
	Hostname string

	// Active language-environment markers, keyed by variable name.
	EnvMarkers map[string]string
}

// Collect gathers an environment snapshot for workingDir. An empty
// workingDir means the process working directory. The context bounds
// the git subprocesses; everything else is local filesystem and
// environment reads.
func Collect(ctx context.Context, workingDir string) Context {
	if workingDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workingDir = cwd
		}
	}

	info := Context{
		WorkingDir: workingDir,
		Platform:   platformString(),
		Shell:      shellName(),
		EnvMarkers: collectEnvMarkers(),
	}
	info.Hostname, _ = os.Hostname()
	info.Files, info.Directories = collectListing(workingDir)
	collectGit(ctx, workingDir, &info)
	return info
}

// Render formats the snapshot as the markdown context string for the
// agent. Sections with nothing to say (no git repo, empty directory)
// are omitted.
func (c Context) Render() string {
	lines := []string{
		"# Current Environment Context",
		"",
		fmt.Sprintf("**Working Directory:** `%s`", c.WorkingDir),
	}

	if c.GitBranch != "" {
		statusLine := "- **Status:** ✅ Clean"
		if c.GitDirty {
			statusLine = "- **Status:** ⚠️ Uncommitted changes"
		}
		lines = append(lines,
			"",
			"## Git Repository",
			fmt.Sprintf("- **Branch:** `%s`", c.GitBranch),
			statusLine,
		)
		if c.GitStatus != "" && c.GitStatus != "clean" {
			lines = append(lines, fmt.Sprintf("```\n%s\n```", c.GitStatus))
		}
	}

	if len(c.Files) > 0 || len(c.Directories) > 0 {
		lines = append(lines, "", "## Files in Directory")
		if len(c.Directories) > 0 {
			lines = append(lines, "**Directories:** "+strings.Join(capped(c.Directories, renderDirectories), ", "))
			if extra := len(c.Directories) - renderDirectories; extra > 0 {
				lines = append(lines, fmt.Sprintf("  _(and %d more)_", extra))
			}
		}
		if len(c.Files) > 0 {
			lines = append(lines, "**Files:** "+strings.Join(capped(c.Files, renderFiles), ", "))
			if extra := len(c.Files) - renderFiles; extra > 0 {
				lines = append(lines, fmt.Sprintf("  _(and %d more)_", extra))
			}
		}
	}

	lines = append(lines,
		"",
		"## System Information",
		"- **Platform:** "+c.Platform,
		"- **Shell:** "+c.Shell,
		"- **Hostname:** "+c.Hostname,
	)

	for _, name := range envMarkers {
		if value, present := c.EnvMarkers[name]; present {
			lines = append(lines, fmt.Sprintf("- **%s:** `%s`", name, value))
		}
	}

	return strings.Join(lines, "\n")
}

func capped(values []string, limit int) []string {
	if len(values) > limit {
		return values[:limit]
	}
	return values
}

// collectListing returns the visible files and subdirectories of dir,
// capped. os.ReadDir sorts by name, so the caps keep the
// alphabetically first entries. Unreadable directories yield empty
// listings.
func collectListing(dir string) (files, directories []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			if len(directories) < maxDirectories {
				directories = append(directories, entry.Name())
			}
		} else if len(files) < maxFiles {
			files = append(files, entry.Name())
		}
		if len(files) >= maxFiles && len(directories) >= maxDirectories {
			break
		}
	}
	return files, directories
}

// collectGit fills the git fields of info. A directory outside any
// repository, a missing git binary, or a timed-out subprocess all
// leave the fields empty.
func collectGit(ctx context.Context, dir string, info *Context) {
	if _, err := gitOutput(ctx, dir, "rev-parse", "--git-dir"); err != nil {
		return
	}
	if branch, err := gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		info.GitBranch = branch
	}
	if status, err := gitOutput(ctx, dir, "status", "--short"); err == nil {
		info.GitDirty = status != ""
		if status == "" {
			status = "clean"
		}
		info.GitStatus = status
	}
}

// gitOutput runs one git command against dir and returns trimmed
// stdout. Stderr is discarded: callers degrade on any failure rather
// than report it.
func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	fullArgs := append([]string{"-C", dir}, args...)
	var stdout bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout

	if err := command.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func platformString() string {
	platform := runtime.GOOS
	if release := kernelRelease(); release != "" {
		platform += " " + release
	}
	return platform
}

// kernelRelease returns the release string from uname(2), or empty
// when the syscall fails.
func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}

func shellName() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "unknown"
}

func collectEnvMarkers() map[string]string {
	markers := make(map[string]string)
	for _, name := range envMarkers {
		if value := os.Getenv(name); value != "" {
			markers[name] = value
		}
	}
	return markers
}
