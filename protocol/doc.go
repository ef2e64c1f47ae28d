// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package protocol defines the wire protocol between the terminal
// client and the backend: newline-delimited JSON-RPC 2.0 over a Unix
// domain socket, one object per line, UTF-8.
//
// A frame carrying an id is a request and receives exactly one
// response echoing that id; a frame without an id is a notification
// and receives nothing. Ids are opaque to the backend: they may be
// JSON numbers or strings and are echoed verbatim via
// [encoding/json.RawMessage].
//
// The package holds every method name, error code, and payload struct,
// plus the conversation schema types ([Message], [ToolCall],
// [SessionSummary]) that appear both on the wire and in session files.
// Both the bridge and the client import it; it depends on no other
// OpenAgent-Terminal packages.
package protocol
