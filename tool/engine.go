// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// Outcome is the engine's resolution of an execution request. Status
// selects which of the remaining fields are meaningful: an
// awaiting_approval outcome carries the approval prompt fields
// (Description, RiskLevel, Preview), an executed outcome carries
// Result, a rejected outcome carries Message, and an error outcome
// carries Error.
type Outcome struct {
	Status      string
	ExecutionID string
	ToolName    string
	Description string
	RiskLevel   string
	Preview     string
	Result      map[string]any
	Message     string
	Error       string

	// resolved carries the decision channel of an awaiting_approval
	// outcome to Wait. The channel travels with the outcome rather
	// than living in the pending table so that an approval arriving
	// before the caller reaches Wait is never lost. Nil on every
	// other status.
	resolved <-chan Outcome
	deadline time.Time
}

// Executor performs tool operations. Exactly one implementation is
// selected at engine construction: Simulated (no side effects) or Real
// (actual filesystem and process operations).
//
// The returned map is the tool's structured result. Tool-level
// failures (missing file, denied path, non-zero exit status) are
// reported inside the map under "success": false with an "error"
// message, because the tool ran and produced a renderable answer. A
// non-nil error return means the executor itself could not run and
// maps to a status "error" outcome.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]any) (map[string]any, error)
}

// EngineConfig configures a tool approval engine.
type EngineConfig struct {
	// Executor performs the actual tool operations. Required.
	Executor Executor

	// ApprovalTimeout bounds how long an execution may sit in the
	// pending table before Wait resolves it as rejected. Zero means
	// pending approvals never expire.
	ApprovalTimeout time.Duration

	// Clock supplies deadlines for approval timeouts. Defaults to the
	// real clock.
	Clock clock.Clock

	// Logger receives engine activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine is the tool approval engine: a fixed tool registry plus a
// mutex-guarded table of executions awaiting user consent. Safe for
// concurrent use by multiple goroutines.
type Engine struct {
	executor        Executor
	approvalTimeout time.Duration
	clock           clock.Clock
	logger          *slog.Logger

	mu      sync.Mutex
	tools   map[string]Tool
	pending map[string]*execution
}

// execution is one entry awaiting a decision. The done channel
// (capacity 1) receives the final outcome when Approve or Reject
// resolves the entry.
type execution struct {
	id       string
	tool     Tool
	params   map[string]any
	deadline time.Time
	done     chan Outcome
}

// NewEngine creates a tool approval engine with the fixed registry.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Executor == nil {
		return nil, errors.New("tool engine requires an executor")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Engine{
		executor:        config.Executor,
		approvalTimeout: config.ApprovalTimeout,
		clock:           config.Clock,
		logger:          config.Logger,
		tools:           registerTools(),
		pending:         make(map[string]*execution),
	}, nil
}

// Tools returns the registry sorted by name.
func (e *Engine) Tools() []Tool {
	e.mu.Lock()
	defer e.mu.Unlock()

	tools := make([]Tool, 0, len(e.tools))
	for _, tool := range e.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// PendingCount returns the number of executions awaiting approval.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// RequestExecution handles a tool invocation from the agent. Unknown
// tools resolve as an error outcome. Tools that require approval are
// recorded in the pending table and produce an awaiting_approval
// outcome carrying the prompt fields; the caller forwards those to the
// client and then blocks in Wait. Auto-approved tools execute
// immediately.
func (e *Engine) RequestExecution(ctx context.Context, executionID, toolName string, params map[string]any) Outcome {
	e.mu.Lock()
	tool, ok := e.tools[toolName]
	if !ok {
		e.mu.Unlock()
		e.logger.Warn("unknown tool requested",
			"tool", toolName,
			"execution_id", executionID)
		return Outcome{
			Status:      protocol.ToolError,
			ExecutionID: executionID,
			ToolName:    toolName,
			Error:       "Unknown tool: " + toolName,
		}
	}

	if tool.RequiresApproval {
		entry := &execution{
			id:     executionID,
			tool:   tool,
			params: params,
			done:   make(chan Outcome, 1),
		}
		if e.approvalTimeout > 0 {
			entry.deadline = e.clock.Now().Add(e.approvalTimeout)
		}
		e.pending[executionID] = entry
		e.mu.Unlock()

		e.logger.Info("tool awaiting approval",
			"tool", toolName,
			"execution_id", executionID,
			"risk_level", tool.RiskLevel)
		return Outcome{
			Status:      protocol.ToolAwaitingApproval,
			ExecutionID: executionID,
			ToolName:    toolName,
			Description: tool.Description,
			RiskLevel:   tool.RiskLevel,
			Preview:     Preview(toolName, params),
			resolved:    entry.done,
			deadline:    entry.deadline,
		}
	}
	e.mu.Unlock()

	e.logger.Info("tool auto-approved",
		"tool", toolName,
		"execution_id", executionID)
	return e.execute(ctx, executionID, tool, params)
}

// Approve resolves a pending execution as approved: the entry is
// removed from the table exactly once, the tool executes with its
// stored parameters, and both the caller and any goroutine blocked in
// Wait receive the execution outcome. An unknown or already-resolved
// execution id produces an "Execution not found" error outcome.
func (e *Engine) Approve(ctx context.Context, executionID string) Outcome {
	entry, ok := e.take(executionID)
	if !ok {
		return notFound(executionID)
	}

	e.logger.Info("tool approved",
		"tool", entry.tool.Name,
		"execution_id", executionID)
	outcome := e.execute(ctx, executionID, entry.tool, entry.params)
	entry.done <- outcome
	return outcome
}

// Reject resolves a pending execution as rejected without executing.
func (e *Engine) Reject(executionID string) Outcome {
	entry, ok := e.take(executionID)
	if !ok {
		return notFound(executionID)
	}

	e.logger.Info("tool rejected",
		"tool", entry.tool.Name,
		"execution_id", executionID)
	outcome := Outcome{
		Status:      protocol.ToolRejected,
		ExecutionID: executionID,
		ToolName:    entry.tool.Name,
		Message:     "Tool execution rejected by user",
	}
	entry.done <- outcome
	return outcome
}

// Wait blocks until an awaiting_approval outcome resolves and returns
// the final outcome: the execution result after Approve, the rejection
// after Reject, or a timeout rejection when the engine's approval
// timeout elapses first. When the context is cancelled before
// resolution the pending entry is discarded and ctx.Err() returned; a
// tool.approve arriving later gets "Execution not found". Outcomes of
// any other status pass through unchanged.
func (e *Engine) Wait(ctx context.Context, pending Outcome) (Outcome, error) {
	if pending.resolved == nil {
		return pending, nil
	}

	// A nil channel never receives, so no expiry case fires when the
	// engine has no approval timeout.
	var expired <-chan time.Time
	if !pending.deadline.IsZero() {
		expired = e.clock.After(pending.deadline.Sub(e.clock.Now()))
	}

	select {
	case outcome := <-pending.resolved:
		return outcome, nil

	case <-expired:
		if _, present := e.take(pending.ExecutionID); !present {
			// Approve or Reject won the race; its outcome send
			// follows the table removal, so one is guaranteed.
			return <-pending.resolved, nil
		}
		e.logger.Warn("tool approval timed out",
			"tool", pending.ToolName,
			"execution_id", pending.ExecutionID)
		return Outcome{
			Status:      protocol.ToolRejected,
			ExecutionID: pending.ExecutionID,
			ToolName:    pending.ToolName,
			Message:     "Tool approval timed out",
		}, nil

	case <-ctx.Done():
		if _, present := e.take(pending.ExecutionID); !present {
			// A resolution is in flight. Collect it if already
			// buffered; otherwise abandon it rather than stall the
			// cancelled query on a running execution.
			select {
			case outcome := <-pending.resolved:
				return outcome, nil
			default:
			}
		}
		return Outcome{}, ctx.Err()
	}
}

// take removes and returns a pending entry. The removal happens
// exactly once across Approve, Reject, and Wait's expiry and
// cancellation paths; the loser of any race observes ok == false.
func (e *Engine) take(executionID string) (*execution, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.pending[executionID]
	if ok {
		delete(e.pending, executionID)
	}
	return entry, ok
}

func notFound(executionID string) Outcome {
	return Outcome{
		Status:      protocol.ToolError,
		ExecutionID: executionID,
		Error:       "Execution not found",
	}
}

// execute runs the tool through the configured executor and wraps the
// result in an outcome.
func (e *Engine) execute(ctx context.Context, executionID string, tool Tool, params map[string]any) Outcome {
	result, err := e.executor.Execute(ctx, tool.Name, params)
	if err != nil {
		e.logger.Error("tool execution failed",
			"tool", tool.Name,
			"execution_id", executionID,
			"error", err)
		return Outcome{
			Status:      protocol.ToolError,
			ExecutionID: executionID,
			ToolName:    tool.Name,
			Error:       err.Error(),
		}
	}
	return Outcome{
		Status:      protocol.ToolExecuted,
		ExecutionID: executionID,
		ToolName:    tool.Name,
		Result:      result,
	}
}
