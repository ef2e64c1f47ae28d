// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package stream runs the per-query pipeline: it drains an agent's
// event channel, forwards stream and tool notifications to the
// connection, suspends on tool approvals, and persists the assistant
// transcript once the query completes.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/blocks"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
	"github.com/GeneticxCln/OpenAgent-Terminal/session"
	"github.com/GeneticxCln/OpenAgent-Terminal/tool"
)

// Sink delivers server-initiated frames to one client connection.
// Notify blocks while the connection applies back-pressure, which
// stalls this pipeline and nothing else. Implementations drop frames
// once the connection is gone, so a running stream can still finish
// and persist its transcript after its client disconnects.
type Sink interface {
	Notify(method string, params any)
}

// Config assembles one pipeline. Clock and Logger default; every
// other field is required.
type Config struct {
	QueryID   string
	SessionID string
	Query     agent.Query

	Agent  agent.Agent
	Engine *tool.Engine
	Store  *session.Store
	Sink   Sink

	// NextExecutionID allocates ids for tool executions spawned by
	// this query.
	NextExecutionID func() string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Pipeline streams one query. Runs once; a new query gets a new
// Pipeline.
type Pipeline struct {
	queryID         string
	sessionID       string
	query           agent.Query
	agent           agent.Agent
	engine          *tool.Engine
	store           *session.Store
	sink            Sink
	nextExecutionID func() string
	clock           clock.Clock
	logger          *slog.Logger
}

// New assembles a pipeline for one query.
func New(config Config) *Pipeline {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Pipeline{
		queryID:         config.QueryID,
		sessionID:       config.SessionID,
		query:           config.Query,
		agent:           config.Agent,
		engine:          config.Engine,
		store:           config.Store,
		sink:            config.Sink,
		nextExecutionID: config.NextExecutionID,
		clock:           config.Clock,
		logger:          config.Logger,
	}
}

// Run drains the agent's event stream to completion and blocks until
// the terminal stream.complete has been queued and any transcript
// persisted. Callers run it on its own goroutine; cancelling ctx
// resolves the stream as cancelled and discards partial output.
func (p *Pipeline) Run(ctx context.Context) {
	logger := p.logger.With("query_id", p.queryID, "session_id", p.sessionID)
	logger.Info("stream started")

	events := make(chan agent.Event)
	errs := make(chan error, 1)
	go func() {
		errs <- p.agent.Stream(ctx, p.query, events)
		close(events)
	}()

	var content transcript
	var calls []protocol.ToolCall
	var failure error

	for event := range events {
		if failure != nil {
			continue // drain so the producer can finish
		}
		switch {
		case event.Token != nil:
			p.sink.Notify(protocol.MethodStreamToken, protocol.StreamToken{
				QueryID: p.queryID,
				Content: event.Token.Content,
				Type:    protocol.TokenText,
			})
			content.appendToken(event.Token.Content)

		case event.Block != nil:
			p.sink.Notify(protocol.MethodStreamBlock, protocol.StreamBlock{
				QueryID:  p.queryID,
				Type:     event.Block.Type,
				Content:  event.Block.Content,
				Language: event.Block.Language,
			})
			content.appendBlock(*event.Block)

		case event.ToolRequest != nil:
			call, err := p.runTool(ctx, event.ToolRequest)
			if err != nil {
				failure = err
				continue
			}
			calls = append(calls, call)
		}
	}

	err := <-errs
	if err == nil {
		err = failure
	}

	switch {
	case err == nil:
		p.sink.Notify(protocol.MethodStreamComplete, protocol.StreamComplete{
			QueryID: p.queryID,
			Status:  protocol.StreamSuccess,
		})
		p.persist(logger, &content, calls)
		logger.Info("stream complete")

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Partial output is discarded: the next query continues from
		// the transcript as persisted before this one started.
		p.sink.Notify(protocol.MethodStreamComplete, protocol.StreamComplete{
			QueryID: p.queryID,
			Status:  protocol.StreamCancelled,
		})
		logger.Info("stream cancelled")

	default:
		p.sink.Notify(protocol.MethodStreamComplete, protocol.StreamComplete{
			QueryID: p.queryID,
			Status:  protocol.StreamError,
			Error:   err.Error(),
		})
		logger.Error("stream failed", "error", err)
	}
}

// runTool routes one tool request through the approval engine.
// Auto-approved tools execute immediately; everything else emits
// tool.request_approval and suspends until a tool.approve handled
// elsewhere on the connection (or the engine's approval timeout)
// resolves the pending entry. The final outcome is emitted as
// tool.result and recorded on the assistant message. The only error
// return is ctx cancellation while suspended.
func (p *Pipeline) runTool(ctx context.Context, request *agent.ToolRequest) (protocol.ToolCall, error) {
	executionID := p.nextExecutionID()
	outcome := p.engine.RequestExecution(ctx, executionID, request.Tool, request.Params)

	if outcome.Status == protocol.ToolAwaitingApproval {
		p.sink.Notify(protocol.MethodToolRequestApproval, protocol.ToolRequestApproval{
			QueryID:     p.queryID,
			ExecutionID: outcome.ExecutionID,
			ToolName:    outcome.ToolName,
			Description: outcome.Description,
			RiskLevel:   outcome.RiskLevel,
			Preview:     outcome.Preview,
		})
		resolved, err := p.engine.Wait(ctx, outcome)
		if err != nil {
			return protocol.ToolCall{}, err
		}
		outcome = resolved
	}

	p.sink.Notify(protocol.MethodToolResult, protocol.ToolResult{
		QueryID:     p.queryID,
		ExecutionID: outcome.ExecutionID,
		ToolName:    outcome.ToolName,
		Status:      outcome.Status,
		Result:      outcome.Result,
		Message:     outcome.Message,
		Error:       outcome.Error,
	})
	return toolCall(request, outcome), nil
}

// persist appends the accumulated assistant message. Failures are
// logged and absorbed: the stream already completed from the client's
// point of view.
func (p *Pipeline) persist(logger *slog.Logger, content *transcript, calls []protocol.ToolCall) {
	if content.empty() && len(calls) == 0 {
		return
	}
	text := content.String()
	message := protocol.Message{
		Role:       protocol.RoleAssistant,
		Content:    text,
		Timestamp:  p.clock.Now(),
		TokenCount: len(strings.Fields(text)),
		Metadata:   map[string]any{"query_id": p.queryID},
		ToolCalls:  calls,
	}
	if _, err := p.store.AppendMessage(p.sessionID, message); err != nil {
		logger.Error("assistant message persistence failed", "error", err)
	}
}

// toolCall shapes an engine outcome into the transcript record.
func toolCall(request *agent.ToolRequest, outcome tool.Outcome) protocol.ToolCall {
	call := protocol.ToolCall{
		ExecutionID: outcome.ExecutionID,
		Name:        outcome.ToolName,
		Args:        request.Params,
		Status:      outcome.Status,
		Error:       outcome.Error,
	}
	if len(outcome.Result) > 0 {
		if data, err := json.Marshal(outcome.Result); err == nil {
			call.Result = string(data)
		}
	}
	return call
}

// transcript accumulates the assistant's visible output: token runs
// and atomic blocks, joined by blank lines so the persisted message
// reads back as markdown.
type transcript struct {
	segments []string
	run      strings.Builder
}

func (t *transcript) appendToken(content string) {
	t.run.WriteString(content)
}

func (t *transcript) appendBlock(block blocks.Block) {
	t.flush()
	switch block.Type {
	case blocks.TypeCode, blocks.TypeDiff:
		t.segments = append(t.segments, "```"+block.Language+"\n"+block.Content+"\n```")
	default:
		t.segments = append(t.segments, block.Content)
	}
}

func (t *transcript) flush() {
	if t.run.Len() > 0 {
		t.segments = append(t.segments, t.run.String())
		t.run.Reset()
	}
}

func (t *transcript) empty() bool {
	return len(t.segments) == 0 && t.run.Len() == 0
}

func (t *transcript) String() string {
	t.flush()
	return strings.Join(t.segments, "\n\n")
}
