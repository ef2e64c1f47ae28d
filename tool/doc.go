// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package tool gates potentially destructive operations behind explicit
// user consent, scaled by declared risk.
//
// The Engine owns a fixed registry of tools and a table of executions
// awaiting approval. Low-risk tools (file_read, directory_list) execute
// immediately; everything else produces an awaiting_approval outcome
// that the streaming pipeline forwards to the client as a
// tool.request_approval notification and then blocks on via Wait. The
// client's tool.approve request resolves the pending entry through
// Approve or Reject, which wakes the waiting pipeline with the final
// outcome.
//
// Execution is delegated to an Executor chosen at construction:
// Simulated performs no writes, deletes, or unvetted process spawns and
// instead describes what real mode would have done, while Real performs
// the operation subject to a path-safety check. Tool-level failures
// (missing file, denied path, non-zero exit) are reported inside the
// result map under "success": false, mirroring what clients render; an
// Executor error return is reserved for infrastructure failures and
// maps to a status "error" outcome.
package tool
