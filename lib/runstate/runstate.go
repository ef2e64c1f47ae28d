// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package runstate provides atomic state file operations for tracking a
// running backend instance. The backend writes a state file on startup;
// clients read it to discover the socket path without guessing, and a
// second backend reads it to refuse double-starts.
//
// Typical usage:
//
//  1. Backend startup: Check the state file. A live entry means another
//     backend owns the socket; refuse to start. A dead entry is left
//     over from a crash; overwrite it.
//  2. Write the state file with this process's PID and socket path.
//  3. Client startup with no --socket flag: Check the state file and
//     connect to State.Socket when the recorded PID is alive.
//  4. Backend shutdown: Clear the state file.
//
// The state file is written atomically (write to temporary file, fsync,
// rename) so readers never see a partial or corrupt state. Liveness
// checking via Check prevents acting on state files left behind by a
// crashed backend.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// State records a running backend instance. Written on startup and read
// by clients for socket discovery.
type State struct {
	// PID is the backend's process ID. Check uses it to distinguish a
	// live backend from a stale file left behind by a crash.
	PID int `json:"pid"`

	// Socket is the absolute path of the Unix socket the backend is
	// serving on.
	Socket string `json:"socket"`

	// SessionsDir is the absolute path of the session store directory.
	SessionsDir string `json:"sessions_dir"`

	// Version is the backend version string, for diagnostics.
	Version string `json:"version"`

	// StartedAt is when the backend began serving.
	StartedAt time.Time `json:"started_at"`
}

// DefaultPath returns the conventional state file location:
// $XDG_RUNTIME_DIR/openagent-terminal/state.json, falling back to a
// per-user directory under the system temp directory.
func DefaultPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "openagent-terminal", "state.json")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("openagent-terminal-%d", os.Getuid()), "state.json")
}

// Write atomically writes a state file. The file is written to a
// temporary location in the same directory, fsynced for durability, and
// renamed into place. Readers never see a partial write.
//
// The file is created with mode 0600 (owner read/write only). The parent
// directory must already exist.
func Write(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	// Trailing newline for clean file content.
	data = append(data, '\n')

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}

	// Write, sync, close — in that order. If any step fails, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	// Sync the parent directory to ensure the rename is durable. This
	// matters when the machine loses power between rename and the OS
	// flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Read reads and parses a state file. Returns the state or an error.
// When the file does not exist, the returned error wraps os.ErrNotExist
// (testable with errors.Is).
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return state, nil
}

// Check reads a state file and verifies the recorded process is still
// alive. Returns the state and true when the file exists and its PID
// refers to a running process. Returns a zero State and false when the
// file does not exist or the process is gone.
//
// Any other error (permission denied, corrupt JSON) is returned as-is so
// the caller can distinguish "no backend" from "state file exists but
// unreadable."
func Check(path string) (State, bool, error) {
	state, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, err
	}

	if !Alive(state.PID) {
		return State{}, false, nil
	}

	return state, true, nil
}

// Clear removes a state file. Idempotent: returns nil when the file
// does not exist.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// Alive reports whether a process with the given PID exists. It sends
// signal 0, which performs the existence check without delivering
// anything. EPERM means the process exists but belongs to another user.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
