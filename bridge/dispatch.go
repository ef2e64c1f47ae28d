// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/netutil"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// readLoop decodes newline-delimited frames until EOF or shutdown.
// Handlers run inline on this goroutine, one frame at a time, so a
// connection's requests are processed in arrival order. Only
// agent.query escapes to its own goroutine.
func (s *Server) readLoop(ctx context.Context, c *conn) {
	scanner := bufio.NewScanner(c.netConn)
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxFrameBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.dispatch(ctx, c, line)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !netutil.IsExpectedCloseError(err) {
		c.logger.Warn("read failed", "error", err)
	}
}

// dispatch routes one frame: requests get exactly one response,
// notifications none. Malformed frames and unknown methods produce
// error responses without closing the connection.
func (s *Server) dispatch(ctx context.Context, c *conn, line []byte) {
	var request protocol.Request
	if err := json.Unmarshal(line, &request); err != nil {
		c.logger.Warn("malformed frame", "error", err)
		c.respond(protocol.NewErrorResponse(recoverID(line),
			protocol.CodeParseError, "Parse error: "+err.Error()))
		return
	}

	if request.IsNotification() {
		s.handleNotification(c, request)
		return
	}

	handler, ok := s.handlers[request.Method]
	if !ok {
		c.respond(protocol.NewErrorResponse(request.ID,
			protocol.CodeMethodNotFound, "Method not found: "+request.Method))
		return
	}

	result, err := s.invoke(ctx, c, handler, request)
	if err != nil {
		c.logger.Error("handler failed", "method", request.Method, "error", err)
		c.respond(protocol.NewErrorResponse(request.ID,
			protocol.CodeInternalError, "Internal error: "+err.Error()))
		c.runAfterResponse()
		return
	}

	response, err := protocol.NewResponse(request.ID, result)
	if err != nil {
		c.logger.Error("encoding result", "method", request.Method, "error", err)
		response = protocol.NewErrorResponse(request.ID,
			protocol.CodeInternalError, "Internal error: "+err.Error())
	}
	c.respond(response)
	c.runAfterResponse()
}

// invoke runs a handler, converting a panic into an opaque error. The
// stack goes to the log; the client sees only the method name.
func (s *Server) invoke(ctx context.Context, c *conn, handler handlerFunc, request protocol.Request) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error("handler panicked",
				"method", request.Method,
				"panic", recovered,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("internal error handling %s", request.Method)
		}
	}()
	return handler(ctx, c, request.Params)
}

// handleNotification processes a frame with no id. context.update
// adjusts connection state; anything else is logged and ignored, since
// notifications never get responses, not even errors.
func (s *Server) handleNotification(c *conn, request protocol.Request) {
	switch request.Method {
	case protocol.MethodContextUpdate:
		var params protocol.ContextUpdateParams
		if err := json.Unmarshal(request.Params, &params); err != nil {
			c.logger.Warn("malformed context.update", "error", err)
			return
		}
		if params.CWD != "" {
			c.setWorkingDirectory(params.CWD)
		}
		attrs := []any{"cwd", params.CWD}
		if params.TerminalSize != nil {
			attrs = append(attrs, "cols", params.TerminalSize.Cols, "rows", params.TerminalSize.Rows)
		}
		c.logger.Debug("context updated", attrs...)

	default:
		c.logger.Debug("ignoring notification", "method", request.Method)
	}
}

// recoverID extracts the id from a frame that failed to decode as a
// request, so type-level errors (say, a numeric method) still echo the
// caller's id. A frame too broken to yield an id gets JSON null.
func recoverID(line []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	return probe.ID
}
