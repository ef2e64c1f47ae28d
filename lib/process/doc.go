// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package process provides binary entrypoint helpers for
// OpenAgent-Terminal binaries. These functions centralize the raw I/O
// patterns that exist before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//
// All other raw server-side output should go through the slog logger;
// CLI output in cmd/openagent-client is the deliberate exception.
package process
