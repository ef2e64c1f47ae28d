// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package protocol

// Client → server request methods.
const (
	MethodInitialize    = "initialize"
	MethodAgentQuery    = "agent.query"
	MethodAgentCancel   = "agent.cancel"
	MethodToolApprove   = "tool.approve"
	MethodSessionList   = "session.list"
	MethodSessionLoad   = "session.load"
	MethodSessionExport = "session.export"
	MethodSessionDelete = "session.delete"
)

// MethodContextUpdate is the client → server notification updating
// the connection's working directory and terminal size. It has no id
// and no response.
const MethodContextUpdate = "context.update"

// Server → client notification methods.
const (
	MethodStreamToken         = "stream.token"
	MethodStreamBlock         = "stream.block"
	MethodStreamComplete      = "stream.complete"
	MethodToolRequestApproval = "tool.request_approval"
	MethodToolResult          = "tool.result"
)
