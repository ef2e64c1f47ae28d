// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// failure builds the in-band error result shape clients render.
func failure(message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   message,
	}
}

// runShell executes a command line through the shell with a bounded
// timeout, capturing stdout and stderr separately. Timeouts and
// non-zero exits are reported in-band.
func runShell(ctx context.Context, command string, timeout time.Duration) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	shell := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	shell.Stdout = &stdout
	shell.Stderr = &stderr

	err := shell.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return failure(fmt.Sprintf("Command timed out after %d seconds: %s",
			int(timeout.Seconds()), command))
	}
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			// The shell never started (not found, fork failure).
			return failure(err.Error())
		}
	}
	return map[string]any{
		"success":    err == nil,
		"stdout":     stdout.String(),
		"stderr":     stderr.String(),
		"returncode": shell.ProcessState.ExitCode(),
	}
}
