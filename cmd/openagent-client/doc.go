// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// openagent-client is a line-oriented client for the OpenAgent-Terminal
// backend: an interactive driver for development, demos, and scripting
// against the JSON-RPC socket.
//
// It discovers the backend socket (--socket flag, then the
// OPENAGENT_SOCKET environment variable, then the run state file a
// running backend leaves behind), performs the initialize handshake,
// and drops into a prompt. Plain input lines become agent queries whose
// responses stream live; code and diff blocks render with syntax
// highlighting when stdout is a terminal. When the agent requests a
// tool that needs consent, the client shows the risk level and preview
// and asks y/N.
//
// Slash commands drive session management:
//
//	/sessions [query]   list stored sessions, fuzzy-filtered by query
//	/load <id>          switch to a stored session
//	/export [id]        export a session as Markdown to a file
//	/delete <id>        delete a stored session
//	/cancel             note on cancelling (Ctrl+C cancels a live query)
//	/quit               exit
//
// With --json the client prints every received frame as raw JSON on
// stdout, one per line, for piping into scripts; prompts move to
// stderr so stdout stays machine-readable.
package main
