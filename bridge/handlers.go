// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/envinfo"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/version"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
	"github.com/GeneticxCln/OpenAgent-Terminal/session"
	"github.com/GeneticxCln/OpenAgent-Terminal/stream"
	"github.com/GeneticxCln/OpenAgent-Terminal/tool"
)

// defaultListLimit caps session.list results when the client sends no
// limit.
const defaultListLimit = 10

// capabilities advertised in initialize results.
var capabilities = []string{"streaming", "blocks", "tool_execution"}

func (s *Server) handleInitialize(_ context.Context, c *conn, params []byte) (any, error) {
	var p protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding initialize params: %w", err)
		}
	}

	attrs := []any{
		"protocol_version", p.ProtocolVersion,
		"client", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
	}
	if p.TerminalSize != nil {
		attrs = append(attrs, "cols", p.TerminalSize.Cols, "rows", p.TerminalSize.Rows)
	}
	c.logger.Info("client initialized", attrs...)

	return protocol.InitializeResult{
		Status: protocol.StatusReady,
		ServerInfo: protocol.ServerInfo{
			Name:    serverName,
			Version: version.Short(),
		},
		Capabilities: capabilities,
	}, nil
}

// handleAgentQuery persists the user message, registers the query's
// cancellation handle, and schedules the streaming pipeline to start
// once the ack response is on the outbound queue. The response never
// waits on the agent.
func (s *Server) handleAgentQuery(ctx context.Context, c *conn, params []byte) (any, error) {
	var p protocol.QueryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decoding agent.query params: %w", err)
	}

	if p.Context != nil && p.Context.CWD != "" {
		c.setWorkingDirectory(p.Context.CWD)
	}
	workingDir := c.workingDirectory()

	sessionID := c.currentSession()
	if sessionID == "" {
		sess, err := s.store.Create("")
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		c.setSession(sess.ID)
		sessionID = sess.ID
	}

	queryID := s.nextQueryID()
	c.logger.Info("query started",
		"query_id", queryID,
		"session_id", sessionID,
		"message_length", len(p.Message))

	// The user message is durable before any streaming begins. A
	// persistence failure is logged and the query proceeds.
	userMessage := protocol.Message{
		Role:      protocol.RoleUser,
		Content:   p.Message,
		Timestamp: s.clock.Now(),
		Metadata:  map[string]any{"query_id": queryID},
	}
	if _, err := s.store.AppendMessage(sessionID, userMessage); err != nil {
		c.logger.Error("user message persistence failed",
			"query_id", queryID,
			"session_id", sessionID,
			"error", err)
	}

	// The pipeline is parented to the server context so it outlives a
	// client disconnect; agent.cancel and shutdown cancel it.
	streamCtx, cancel := context.WithCancel(ctx)
	handle := &streamHandle{cancel: cancel, done: make(chan struct{})}
	c.addStream(queryID, handle)

	s.streams.Add(1)
	c.deferUntilResponded(func() {
		go func() {
			defer s.streams.Done()
			defer close(handle.done)
			defer cancel()
			defer c.removeStream(queryID)

			pipeline := stream.New(stream.Config{
				QueryID:   queryID,
				SessionID: sessionID,
				Query: agent.Query{
					Message:     p.Message,
					WorkingDir:  workingDir,
					Environment: envinfo.Collect(streamCtx, workingDir).Render(),
				},
				Agent:           s.agent,
				Engine:          s.engine,
				Store:           s.store,
				Sink:            c,
				NextExecutionID: s.nextExecutionID,
				Clock:           s.clock,
				Logger:          c.logger,
			})
			pipeline.Run(streamCtx)
		}()
	})

	return protocol.QueryResult{
		QueryID: queryID,
		Status:  protocol.StatusStreaming,
	}, nil
}

func (s *Server) handleAgentCancel(_ context.Context, c *conn, params []byte) (any, error) {
	var p protocol.CancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decoding agent.cancel params: %w", err)
	}

	handle := c.lookupStream(p.QueryID)
	if handle == nil {
		return protocol.CancelResult{
			QueryID: p.QueryID,
			Status:  protocol.StatusNotFound,
		}, nil
	}

	handle.cancel()
	c.logger.Info("query cancelling", "query_id", p.QueryID)
	return protocol.CancelResult{
		QueryID: p.QueryID,
		Status:  protocol.StatusCancelling,
	}, nil
}

// handleToolApprove resolves a pending execution. The outcome returns
// to the caller here; the suspended pipeline receives the same outcome
// through the engine and emits tool.result on its own stream.
func (s *Server) handleToolApprove(ctx context.Context, c *conn, params []byte) (any, error) {
	var p protocol.ApproveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decoding tool.approve params: %w", err)
	}
	if p.ExecutionID == "" {
		return protocol.ApproveResult{
			Status: protocol.ToolError,
			Error:  "execution_id required",
		}, nil
	}

	var outcome tool.Outcome
	if p.Approved {
		outcome = s.engine.Approve(ctx, p.ExecutionID)
	} else {
		outcome = s.engine.Reject(p.ExecutionID)
	}

	return protocol.ApproveResult{
		ExecutionID: outcome.ExecutionID,
		Status:      outcome.Status,
		Result:      outcome.Result,
		Message:     outcome.Message,
		Error:       outcome.Error,
	}, nil
}

func (s *Server) handleSessionList(_ context.Context, c *conn, params []byte) (any, error) {
	var p protocol.SessionListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding session.list params: %w", err)
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	return protocol.SessionListResult{
		Status:   protocol.StatusSuccess,
		Sessions: s.store.List(limit),
	}, nil
}

func (s *Server) handleSessionLoad(_ context.Context, c *conn, params []byte) (any, error) {
	var p protocol.SessionLoadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decoding session.load params: %w", err)
	}
	if p.SessionID == "" {
		return sessionLoadError("session_id required"), nil
	}

	sess, err := s.store.Load(p.SessionID)
	if err != nil {
		return sessionLoadError(err.Error()), nil
	}
	if sess == nil {
		return sessionLoadError(fmt.Sprintf("Session %s not found", p.SessionID)), nil
	}

	c.setSession(sess.ID)
	c.logger.Info("session loaded",
		"session_id", sess.ID,
		"messages", len(sess.Messages))

	return protocol.SessionLoadResult{
		Status:    protocol.StatusSuccess,
		SessionID: sess.ID,
		Title:     sess.Title,
		Messages:  sess.Messages,
	}, nil
}

func sessionLoadError(message string) protocol.SessionLoadResult {
	return protocol.SessionLoadResult{
		Status: protocol.StatusError,
		Error:  message,
	}
}

func (s *Server) handleSessionExport(_ context.Context, c *conn, params []byte) (any, error) {
	var p protocol.SessionExportParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding session.export params: %w", err)
		}
	}
	format := p.Format
	if format == "" {
		format = "markdown"
	}
	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = c.currentSession()
	}
	if sessionID == "" {
		return sessionExportError("No session to export"), nil
	}

	sess, err := s.store.Load(sessionID)
	if err != nil {
		return sessionExportError(err.Error()), nil
	}
	if sess == nil {
		return sessionExportError(fmt.Sprintf("Session %s not found", sessionID)), nil
	}

	var content string
	switch format {
	case "markdown":
		content = session.ExportMarkdown(sess)
	case "json":
		content, err = session.ExportJSON(sess)
		if err != nil {
			return sessionExportError(err.Error()), nil
		}
	default:
		return sessionExportError("Unsupported format: " + format), nil
	}

	return protocol.SessionExportResult{
		Status:  protocol.StatusSuccess,
		Format:  format,
		Content: content,
	}, nil
}

func sessionExportError(message string) protocol.SessionExportResult {
	return protocol.SessionExportResult{
		Status: protocol.StatusError,
		Error:  message,
	}
}

func (s *Server) handleSessionDelete(_ context.Context, c *conn, params []byte) (any, error) {
	var p protocol.SessionDeleteParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decoding session.delete params: %w", err)
	}
	if p.SessionID == "" {
		return protocol.SessionDeleteResult{
			Status: protocol.StatusError,
			Error:  "session_id required",
		}, nil
	}

	deleted, err := s.store.Delete(p.SessionID)
	if err != nil {
		return protocol.SessionDeleteResult{
			Status: protocol.StatusError,
			Error:  err.Error(),
		}, nil
	}
	if !deleted {
		return protocol.SessionDeleteResult{
			Status: protocol.StatusError,
			Error:  fmt.Sprintf("Failed to delete session %s", p.SessionID),
		}, nil
	}

	c.clearSessionIf(p.SessionID)
	c.logger.Info("session deleted", "session_id", p.SessionID)
	return protocol.SessionDeleteResult{
		Status:  protocol.StatusSuccess,
		Deleted: p.SessionID,
	}, nil
}
