// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package protocol

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Stream completion statuses (stream.complete).
const (
	StreamSuccess   = "success"
	StreamCancelled = "cancelled"
	StreamError     = "error"
)

// Tool execution statuses. These appear in engine outcomes, in
// tool.approve results, and in tool.result notifications.
const (
	ToolExecuted         = "executed"
	ToolAwaitingApproval = "awaiting_approval"
	ToolRejected         = "rejected"
	ToolError            = "error"
)

// Tool risk levels (tool.request_approval risk_level).
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Result statuses for session operations. Session failures are carried
// inside a success envelope because the request itself completed; see
// the error taxonomy in the bridge package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Lifecycle statuses for initialize, agent.query, and agent.cancel
// results.
const (
	StatusReady      = "ready"
	StatusStreaming  = "streaming"
	StatusCancelling = "cancelling"
	StatusNotFound   = "not_found"
)

// Message is one conversation turn. The same shape appears in
// session.load results and in session files on disk.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// TokenCount is the approximate size of the message as counted by
	// the producing agent. Zero when unknown.
	TokenCount int `json:"token_count,omitempty"`

	// Metadata carries free-form annotations such as the query_id a
	// message was produced under.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ToolCalls records tool activity that occurred while producing
	// this (assistant) message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall records a single tool exchange within a message.
type ToolCall struct {
	ExecutionID string         `json:"execution_id"`
	Name        string         `json:"name"`
	Args        map[string]any `json:"args,omitempty"`
	Status      string         `json:"status"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SessionSummary is one session.list entry, sorted by UpdatedAt
// descending on the wire.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	TotalTokens  int       `json:"total_tokens"`
}

// ClientInfo identifies the connecting front-end.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the backend in initialize results.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TerminalSize is the client's terminal geometry in character cells.
type TerminalSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// InitializeParams is the initialize request payload.
type InitializeParams struct {
	ProtocolVersion string        `json:"protocol_version"`
	ClientInfo      ClientInfo    `json:"client_info"`
	TerminalSize    *TerminalSize `json:"terminal_size,omitempty"`
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	Status       string     `json:"status"`
	ServerInfo   ServerInfo `json:"server_info"`
	Capabilities []string   `json:"capabilities"`
}

// QueryContext is optional context accompanying an agent query.
type QueryContext struct {
	CWD string `json:"cwd,omitempty"`
}

// QueryParams is the agent.query request payload.
type QueryParams struct {
	Message string        `json:"message"`
	Context *QueryContext `json:"context,omitempty"`
}

// QueryResult is the agent.query response payload, returned before
// any streaming begins.
type QueryResult struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
}

// CancelParams is the agent.cancel request payload.
type CancelParams struct {
	QueryID string `json:"query_id"`
}

// CancelResult is the agent.cancel response payload. Status is
// "cancelling" when the query was found, "not_found" otherwise.
type CancelResult struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
}

// ApproveParams is the tool.approve request payload.
type ApproveParams struct {
	ExecutionID string `json:"execution_id"`
	Approved    bool   `json:"approved"`
}

// ApproveResult is the tool.approve response payload: the engine
// outcome for the approved or rejected execution. Result is the
// tool's structured output; Message carries human-readable rejection
// text.
type ApproveResult struct {
	ExecutionID string         `json:"execution_id"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SessionListParams is the session.list request payload.
type SessionListParams struct {
	// Limit caps the number of entries returned; zero applies the
	// default of 10.
	Limit int `json:"limit,omitempty"`
}

// SessionListResult is the session.list response payload.
type SessionListResult struct {
	Status   string           `json:"status"`
	Sessions []SessionSummary `json:"sessions"`
}

// SessionLoadParams is the session.load request payload.
type SessionLoadParams struct {
	SessionID string `json:"session_id"`
}

// SessionLoadResult is the session.load response payload. On success
// the full transcript is returned and the connection's current session
// switches to the loaded one.
type SessionLoadResult struct {
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// SessionExportParams is the session.export request payload. An empty
// SessionID exports the connection's current session; Format defaults
// to "markdown".
type SessionExportParams struct {
	SessionID string `json:"session_id,omitempty"`
	Format    string `json:"format,omitempty"`
}

// SessionExportResult is the session.export response payload. Content
// is the full export; the client decides where to write it.
type SessionExportResult struct {
	Status  string `json:"status"`
	Format  string `json:"format,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionDeleteParams is the session.delete request payload.
type SessionDeleteParams struct {
	SessionID string `json:"session_id"`
}

// SessionDeleteResult is the session.delete response payload.
type SessionDeleteResult struct {
	Status  string `json:"status"`
	Deleted string `json:"deleted,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ContextUpdateParams is the context.update notification payload.
// Either field may be absent; absent fields leave the connection's
// value unchanged.
type ContextUpdateParams struct {
	CWD          string        `json:"cwd,omitempty"`
	TerminalSize *TerminalSize `json:"terminal_size,omitempty"`
}

// StreamToken is the stream.token notification payload: one content
// fragment of a streaming response.
type StreamToken struct {
	QueryID string `json:"query_id"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// TokenText is the Type value for plain text tokens.
const TokenText = "text"

// StreamBlock is the stream.block notification payload: one complete
// structured block (code, diff, list) delivered atomically.
type StreamBlock struct {
	QueryID  string `json:"query_id"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// StreamComplete is the stream.complete notification payload, the
// terminal frame of every query.
type StreamComplete struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// ToolRequestApproval is the tool.request_approval notification
// payload. The stream suspends until the client answers with
// tool.approve carrying the same execution_id.
type ToolRequestApproval struct {
	QueryID     string `json:"query_id"`
	ExecutionID string `json:"execution_id"`
	ToolName    string `json:"tool_name"`
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
	Preview     string `json:"preview"`
}

// ToolResult is the tool.result notification payload, emitted when a
// tool execution resolves (auto-executed, approved, or rejected).
type ToolResult struct {
	QueryID     string         `json:"query_id"`
	ExecutionID string         `json:"execution_id"`
	ToolName    string         `json:"tool_name"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
}
