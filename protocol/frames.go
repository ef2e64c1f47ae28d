// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version carried in every frame.
const Version = "2.0"

// MaxFrameBytes caps a single newline-delimited frame. Frames are
// whole conversation messages, not bulk transfers; anything larger
// indicates a broken or malicious client.
const MaxFrameBytes = 1024 * 1024

// JSON-RPC 2.0 error codes. The backend uses the three standard codes
// below; the remaining two are defined for completeness and used by
// clients that validate frames strictly.
const (
	// CodeParseError reports a frame that is not valid JSON.
	CodeParseError = -32700

	// CodeInvalidRequest reports a structurally invalid frame (wrong
	// jsonrpc version, non-string method).
	CodeInvalidRequest = -32600

	// CodeMethodNotFound reports an unknown method name.
	CodeMethodNotFound = -32601

	// CodeInvalidParams reports parameters that do not decode into the
	// method's expected shape.
	CodeInvalidParams = -32602

	// CodeInternalError reports a handler failure. The message carries
	// the cause; full detail is logged server-side only.
	CodeInternalError = -32603
)

// Request is an incoming frame. ID is kept raw so number and string
// ids are echoed back byte-for-byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the frame carries no id and therefore
// expects no response. An explicit JSON null id counts as absent.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is an outgoing reply to a request. Exactly one of Result
// and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a server-initiated frame with no id.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewResponse builds a success response echoing the request id.
func NewResponse(id json.RawMessage, result any) (Response, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling result: %w", err)
	}
	return Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Result:  encoded,
	}, nil
}

// NewErrorResponse builds an error response echoing the request id. A
// nil id (unparseable frame) becomes an explicit JSON null, as the
// JSON-RPC spec requires.
func NewErrorResponse(id json.RawMessage, code int, message string) Response {
	return Response{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message},
	}
}

// NewNotification builds a server notification frame.
func NewNotification(method string, params any) (Notification, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return Notification{}, fmt.Errorf("marshaling %s params: %w", method, err)
	}
	return Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  encoded,
	}, nil
}

// normalizeID maps an absent id to explicit null so the "id" key is
// always present in responses.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
