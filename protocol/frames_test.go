// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRequestDecodeNumberID(t *testing.T) {
	frame := `{"jsonrpc":"2.0","id":42,"method":"initialize","params":{}}`

	var request Request
	if err := json.Unmarshal([]byte(frame), &request); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if request.Method != "initialize" {
		t.Errorf("Method = %q, want initialize", request.Method)
	}
	if string(request.ID) != "42" {
		t.Errorf("ID = %s, want 42", request.ID)
	}
	if request.IsNotification() {
		t.Error("request with id should not be a notification")
	}
}

func TestRequestDecodeStringID(t *testing.T) {
	frame := `{"jsonrpc":"2.0","id":"req-7","method":"agent.query"}`

	var request Request
	if err := json.Unmarshal([]byte(frame), &request); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if string(request.ID) != `"req-7"` {
		t.Errorf("ID = %s, want \"req-7\" (verbatim, quotes included)", request.ID)
	}
}

func TestRequestNotification(t *testing.T) {
	frame := `{"jsonrpc":"2.0","method":"context.update","params":{"cwd":"/tmp"}}`

	var request Request
	if err := json.Unmarshal([]byte(frame), &request); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !request.IsNotification() {
		t.Error("request without id should be a notification")
	}
}

func TestRequestNullIDIsNotification(t *testing.T) {
	frame := `{"jsonrpc":"2.0","id":null,"method":"agent.query"}`

	var request Request
	if err := json.Unmarshal([]byte(frame), &request); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !request.IsNotification() {
		t.Error("explicit null id should count as absent")
	}
}

func TestNewResponseEchoesIDVerbatim(t *testing.T) {
	for _, id := range []string{"42", `"req-7"`} {
		response, err := NewResponse(json.RawMessage(id), map[string]string{"status": "ready"})
		if err != nil {
			t.Fatalf("NewResponse: %v", err)
		}

		encoded, err := json.Marshal(response)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(encoded), `"id":`+id) {
			t.Errorf("encoded response %s should echo id %s", encoded, id)
		}
		if strings.Contains(string(encoded), `"error"`) {
			t.Errorf("success response should not carry an error: %s", encoded)
		}
	}
}

func TestNewErrorResponseShape(t *testing.T) {
	response := NewErrorResponse(json.RawMessage("3"), CodeMethodNotFound, "Method not found: bogus")

	encoded, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded["jsonrpc"] != "2.0" {
		t.Errorf("jsonrpc = %v, want 2.0", decoded["jsonrpc"])
	}
	if decoded["id"] != float64(3) {
		t.Errorf("id = %v, want 3", decoded["id"])
	}
	errorObject, ok := decoded["error"].(map[string]any)
	if !ok {
		t.Fatalf("error field missing or wrong type: %s", encoded)
	}
	if errorObject["code"] != float64(CodeMethodNotFound) {
		t.Errorf("code = %v, want %d", errorObject["code"], CodeMethodNotFound)
	}
	if _, hasResult := decoded["result"]; hasResult {
		t.Error("error response should not carry a result")
	}
}

func TestNewErrorResponseNilIDBecomesNull(t *testing.T) {
	response := NewErrorResponse(nil, CodeParseError, "parse error")

	encoded, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(encoded), `"id":null`) {
		t.Errorf("unparseable-frame response should carry id null, got %s", encoded)
	}
}

func TestNewNotificationHasNoID(t *testing.T) {
	notification, err := NewNotification(MethodStreamToken, StreamToken{
		QueryID: "query-1",
		Content: "hello ",
		Type:    TokenText,
	})
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}

	encoded, err := json.Marshal(notification)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if strings.Contains(string(encoded), `"id"`) {
		t.Errorf("notification must not carry an id: %s", encoded)
	}
	if !strings.Contains(string(encoded), `"method":"stream.token"`) {
		t.Errorf("missing method: %s", encoded)
	}
	if !strings.Contains(string(encoded), `"query_id":"query-1"`) {
		t.Errorf("missing params: %s", encoded)
	}
}

func TestErrorImplementsError(t *testing.T) {
	var err error = &Error{Code: CodeInternalError, Message: "handler failed"}
	if !strings.Contains(err.Error(), "-32603") {
		t.Errorf("Error() = %q, want code included", err.Error())
	}
	if !strings.Contains(err.Error(), "handler failed") {
		t.Errorf("Error() = %q, want message included", err.Error())
	}
}

func TestPayloadWireNames(t *testing.T) {
	// Spot-check the field names that front-ends depend on.
	encoded, err := json.Marshal(ToolRequestApproval{
		QueryID:     "query-2",
		ExecutionID: "exec-1",
		ToolName:    "file_write",
		Description: "Write to /tmp/out.txt",
		RiskLevel:   RiskMedium,
		Preview:     "path: /tmp/out.txt",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"query_id"`, `"execution_id"`, `"tool_name"`, `"risk_level"`, `"preview"`} {
		if !strings.Contains(string(encoded), key) {
			t.Errorf("approval payload missing %s: %s", key, encoded)
		}
	}

	summary, err := json.Marshal(SessionSummary{ID: "2026-02-10_153000", Title: "untitled"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"created_at"`, `"updated_at"`, `"message_count"`, `"total_tokens"`} {
		if !strings.Contains(string(summary), key) {
			t.Errorf("summary payload missing %s: %s", key, summary)
		}
	}
}
