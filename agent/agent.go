// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package agent

import (
	"context"

	"github.com/GeneticxCln/OpenAgent-Terminal/blocks"
)

// Query is one user request handed to an agent.
type Query struct {
	// Message is the user's prompt.
	Message string

	// WorkingDir is the directory the front-end last reported, or
	// empty when unknown.
	WorkingDir string

	// Environment is a rendered snapshot of the user's environment
	// (working directory, git state, platform). Simulated ignores
	// it; real integrations prepend it to the prompt.
	Environment string
}

// Event is one item of an agent's response stream. Exactly one field
// is non-nil.
type Event struct {
	// Token is a plain content fragment. Fragments concatenate into
	// the response text without separators.
	Token *Token

	// Block is a complete structural unit (code, diff, list)
	// delivered atomically instead of token by token.
	Block *blocks.Block

	// ToolRequest asks the host to execute a tool on the agent's
	// behalf. The stream ends after a tool request.
	ToolRequest *ToolRequest
}

// Token is one streamed content fragment.
type Token struct {
	Content string
}

// ToolRequest names a tool and the parameters to call it with.
type ToolRequest struct {
	Tool   string
	Params map[string]any
}

// Agent produces the response to a query as an ordered stream of
// events.
//
// Stream sends on events until the response is complete or ctx is
// cancelled, then returns. The events channel is owned by the caller,
// which must not close it before Stream has returned.
type Agent interface {
	Stream(ctx context.Context, query Query, events chan<- Event) error
}

// emit sends one event, giving up when ctx is cancelled.
func emit(ctx context.Context, events chan<- Event, event Event) error {
	select {
	case events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
