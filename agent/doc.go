// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package agent defines the event stream an agent produces while
// answering a query, and ships the simulated agent the backend runs
// by default.
//
// An Agent writes Token, Block, and ToolRequest events to a channel
// owned by the caller; the caller closes the channel only after Stream
// returns. Simulated answers from a table of keyword-matched canned
// responses, segments each response with the blocks package so code
// and diffs arrive as atomic units, and paces token emission through
// an injected clock so clients render a believable stream. The canned
// table can be replaced wholesale by a JSONC scenario script, which
// lets integration tests and demos drive exact responses without
// touching code.
package agent
