// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package integration_test

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// TestConversationJourney walks one connection through the full
// front-end flow: handshake, a streamed query, a tool call with
// interactive approval, and a transcript export.
func TestConversationJourney(t *testing.T) {
	b := startBackend(t, agent.SimulatedConfig{})
	f := connect(t, b)

	ready := f.initialize()
	if ready.Status != protocol.StatusReady {
		t.Fatalf("initialize status = %q", ready.Status)
	}
	if ready.ServerInfo.Name != "openagent-terminal-backend" {
		t.Errorf("server name = %q", ready.ServerInfo.Name)
	}
	if !slices.Contains(ready.Capabilities, "tool_execution") {
		t.Errorf("capabilities = %v, want tool_execution", ready.Capabilities)
	}

	f.notify(protocol.MethodContextUpdate, protocol.ContextUpdateParams{CWD: t.TempDir()})

	// A streamed conversation turn.
	var ack protocol.QueryResult
	f.call(protocol.MethodAgentQuery, protocol.QueryParams{Message: "hello"}, &ack)
	if ack.Status != protocol.StatusStreaming || ack.QueryID == "" {
		t.Fatalf("query ack = %+v", ack)
	}
	complete, text := f.streamEnd()
	if complete.Status != protocol.StreamSuccess {
		t.Fatalf("stream ended %q (%s)", complete.Status, complete.Error)
	}
	if complete.QueryID != ack.QueryID {
		t.Errorf("completion query id = %q, want %q", complete.QueryID, ack.QueryID)
	}
	if !strings.Contains(text, "I'm the OpenAgent-Terminal AI assistant") {
		t.Errorf("streamed text = %q, want the greeting", text)
	}

	// The turn is already persisted.
	var listing protocol.SessionListResult
	f.call(protocol.MethodSessionList, protocol.SessionListParams{}, &listing)
	if len(listing.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(listing.Sessions))
	}
	if listing.Sessions[0].Title != "hello" {
		t.Errorf("session title = %q", listing.Sessions[0].Title)
	}
	if listing.Sessions[0].MessageCount != 2 {
		t.Errorf("message count = %d, want 2", listing.Sessions[0].MessageCount)
	}

	// A query that turns into a tool call, approved interactively.
	var toolAck protocol.QueryResult
	f.call(protocol.MethodAgentQuery, protocol.QueryParams{Message: "write hello world to test.txt"}, &toolAck)

	approvalFrame := f.read()
	if approvalFrame.Method != protocol.MethodToolRequestApproval {
		t.Fatalf("frame after ack = %+v, want approval request", approvalFrame)
	}
	approval := params[protocol.ToolRequestApproval](f, approvalFrame)
	if approval.ToolName != "file_write" {
		t.Errorf("tool = %q", approval.ToolName)
	}
	if approval.RiskLevel != protocol.RiskMedium {
		t.Errorf("risk = %q", approval.RiskLevel)
	}
	if approval.Preview == "" {
		t.Error("approval request carries no preview")
	}

	approveID := f.send(protocol.MethodToolApprove, protocol.ApproveParams{
		ExecutionID: approval.ExecutionID,
		Approved:    true,
	})

	// The approve response and the resumed stream interleave; only
	// tool.result before stream.complete is ordered.
	var approveResult *protocol.ApproveResult
	var toolResult *protocol.ToolResult
	var completion *protocol.StreamComplete
	for completion == nil {
		fr := f.read()
		switch {
		case fr.isResponseTo(approveID):
			if fr.Error != nil {
				t.Fatalf("tool.approve failed: %v", fr.Error)
			}
			var result protocol.ApproveResult
			if err := json.Unmarshal(fr.Result, &result); err != nil {
				t.Fatalf("decoding tool.approve result: %v", err)
			}
			approveResult = &result
		case fr.Method == protocol.MethodToolResult:
			result := params[protocol.ToolResult](f, fr)
			if toolResult != nil {
				t.Fatal("second tool.result frame")
			}
			toolResult = &result
		case fr.Method == protocol.MethodStreamComplete:
			c := params[protocol.StreamComplete](f, fr)
			completion = &c
		default:
			t.Fatalf("unexpected frame: %+v", fr)
		}
	}
	if toolResult == nil {
		t.Fatal("stream completed without a tool.result frame")
	}
	if toolResult.Status != protocol.ToolExecuted {
		t.Fatalf("tool result status = %q (%s)", toolResult.Status, toolResult.Error)
	}
	if success, _ := toolResult.Result["success"].(bool); !success {
		t.Errorf("tool result = %v, want success", toolResult.Result)
	}
	if completion.Status != protocol.StreamSuccess {
		t.Errorf("completion = %+v", completion)
	}
	if approveResult == nil {
		fr := f.read()
		if !fr.isResponseTo(approveID) {
			t.Fatalf("frame after completion = %+v, want approve response", fr)
		}
	} else if approveResult.Status != protocol.ToolExecuted {
		t.Errorf("approve result status = %q", approveResult.Status)
	}

	// Both turns accumulated in the one session.
	f.call(protocol.MethodSessionList, protocol.SessionListParams{}, &listing)
	if len(listing.Sessions) != 1 || listing.Sessions[0].MessageCount != 4 {
		t.Fatalf("listing after tool turn = %+v", listing.Sessions)
	}

	// Export the current session without naming it.
	var export protocol.SessionExportResult
	f.call(protocol.MethodSessionExport, protocol.SessionExportParams{}, &export)
	if export.Status != protocol.StatusSuccess {
		t.Fatalf("export = %+v", export)
	}
	if export.Format != "markdown" {
		t.Errorf("export format = %q", export.Format)
	}
	if !strings.Contains(export.Content, "write hello world to test.txt") {
		t.Errorf("export missing the user turn:\n%s", export.Content)
	}
}

// TestRejectedToolKeepsStreamAlive drives the approval flow to a
// rejection and verifies the stream still completes normally.
func TestRejectedToolKeepsStreamAlive(t *testing.T) {
	b := startBackend(t, agent.SimulatedConfig{})
	f := connect(t, b)
	f.initialize()

	var ack protocol.QueryResult
	f.call(protocol.MethodAgentQuery, protocol.QueryParams{Message: "write hello world to test.txt"}, &ack)

	approval := params[protocol.ToolRequestApproval](f, f.read())
	approveID := f.send(protocol.MethodToolApprove, protocol.ApproveParams{
		ExecutionID: approval.ExecutionID,
		Approved:    false,
	})

	var toolResult *protocol.ToolResult
	var completion *protocol.StreamComplete
	responded := false
	for completion == nil {
		fr := f.read()
		switch {
		case fr.isResponseTo(approveID):
			responded = true
		case fr.Method == protocol.MethodToolResult:
			result := params[protocol.ToolResult](f, fr)
			toolResult = &result
		case fr.Method == protocol.MethodStreamComplete:
			c := params[protocol.StreamComplete](f, fr)
			completion = &c
		default:
			t.Fatalf("unexpected frame: %+v", fr)
		}
	}
	if toolResult == nil || toolResult.Status != protocol.ToolRejected {
		t.Fatalf("tool result = %+v, want rejected", toolResult)
	}
	if toolResult.Message != "Tool execution rejected by user" {
		t.Errorf("rejection message = %q", toolResult.Message)
	}
	if completion.Status != protocol.StreamSuccess {
		t.Errorf("completion = %+v, want success despite rejection", completion)
	}
	if !responded {
		f.read()
	}

	// The connection stays usable.
	var listing protocol.SessionListResult
	f.call(protocol.MethodSessionList, protocol.SessionListParams{}, &listing)
	if len(listing.Sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(listing.Sessions))
	}
}
