// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package integration_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// TestRestartPreservesSessions stops the backend after a conversation
// and verifies a fresh server over the same state directory serves the
// stored transcript, ready to continue it.
func TestRestartPreservesSessions(t *testing.T) {
	b := startBackend(t, agent.SimulatedConfig{})
	f := connect(t, b)
	f.initialize()

	var ack protocol.QueryResult
	f.call(protocol.MethodAgentQuery, protocol.QueryParams{Message: "hello"}, &ack)
	if complete, _ := f.streamEnd(); complete.Status != protocol.StreamSuccess {
		t.Fatalf("stream ended %q", complete.Status)
	}

	b.restart(t, agent.SimulatedConfig{})

	f = connect(t, b)
	f.initialize()

	var listing protocol.SessionListResult
	f.call(protocol.MethodSessionList, protocol.SessionListParams{}, &listing)
	if len(listing.Sessions) != 1 {
		t.Fatalf("sessions after restart = %d, want 1", len(listing.Sessions))
	}

	var loaded protocol.SessionLoadResult
	f.call(protocol.MethodSessionLoad, protocol.SessionLoadParams{SessionID: listing.Sessions[0].ID}, &loaded)
	if loaded.Status != protocol.StatusSuccess {
		t.Fatalf("load = %+v", loaded)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(loaded.Messages))
	}
	if loaded.Messages[0].Role != protocol.RoleUser || loaded.Messages[0].Content != "hello" {
		t.Errorf("first message = %+v", loaded.Messages[0])
	}
	if loaded.Messages[1].Role != protocol.RoleAssistant ||
		!strings.Contains(loaded.Messages[1].Content, "I'm the OpenAgent-Terminal AI assistant") {
		t.Errorf("second message = %+v", loaded.Messages[1])
	}

	// Loading switched the connection to the stored session, so the
	// next turn appends to it.
	f.call(protocol.MethodAgentQuery, protocol.QueryParams{Message: "help"}, &ack)
	if complete, _ := f.streamEnd(); complete.Status != protocol.StreamSuccess {
		t.Fatalf("stream ended %q", complete.Status)
	}
	f.call(protocol.MethodSessionList, protocol.SessionListParams{}, &listing)
	if len(listing.Sessions) != 1 || listing.Sessions[0].MessageCount != 4 {
		t.Fatalf("listing after continuation = %+v", listing.Sessions)
	}
}

// TestCancelDiscardsPartialOutput cancels a paced stream mid-flight
// and verifies the partial assistant output is not persisted.
func TestCancelDiscardsPartialOutput(t *testing.T) {
	b := startBackend(t, agent.SimulatedConfig{TokenDelay: 50 * time.Millisecond})
	f := connect(t, b)
	f.initialize()

	var ack protocol.QueryResult
	f.call(protocol.MethodAgentQuery, protocol.QueryParams{Message: "help"}, &ack)

	if first := f.read(); first.Method != protocol.MethodStreamToken {
		t.Fatalf("first stream frame = %+v, want a token", first)
	}

	cancelID := f.send(protocol.MethodAgentCancel, protocol.CancelParams{QueryID: ack.QueryID})

	var completion *protocol.StreamComplete
	acked := false
	for completion == nil {
		fr := f.read()
		switch {
		case fr.isResponseTo(cancelID):
			var result protocol.CancelResult
			if err := json.Unmarshal(fr.Result, &result); err != nil {
				t.Fatalf("decoding agent.cancel result: %v", err)
			}
			if result.Status != protocol.StatusCancelling {
				t.Errorf("cancel status = %q", result.Status)
			}
			acked = true
		case fr.Method == protocol.MethodStreamToken || fr.Method == protocol.MethodStreamBlock:
			// In-flight frames drain past the cancel.
		case fr.Method == protocol.MethodStreamComplete:
			c := params[protocol.StreamComplete](f, fr)
			completion = &c
		default:
			t.Fatalf("unexpected frame: %+v", fr)
		}
	}
	if completion.Status != protocol.StreamCancelled {
		t.Fatalf("completion = %+v, want cancelled", completion)
	}
	if !acked {
		if fr := f.read(); !fr.isResponseTo(cancelID) {
			t.Fatalf("frame after completion = %+v, want cancel response", fr)
		}
	}

	// Only the user turn was persisted.
	var listing protocol.SessionListResult
	f.call(protocol.MethodSessionList, protocol.SessionListParams{}, &listing)
	if len(listing.Sessions) != 1 || listing.Sessions[0].MessageCount != 1 {
		t.Fatalf("listing after cancel = %+v", listing.Sessions)
	}
}
