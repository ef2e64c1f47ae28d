// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/version"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// requestKind routes a response to the code that sent its request.
type requestKind int

const (
	kindQuery requestKind = iota + 1
	kindApprove
	kindCancel
)

// repl drives the conversation: it reads input lines, sends requests,
// and processes the backend's frames. All frame handling runs on this
// goroutine; the only concurrency is the client's socket reader.
type repl struct {
	client *Client
	input  lineReader
	render *renderer
	logger *slog.Logger

	// pending maps sent request ids to their kind so responses that
	// interleave with stream frames find their handler.
	pending map[int64]requestKind

	// streaming is true from agent.query until its stream.complete;
	// currentQueryID is the id assigned by the ack.
	streaming      bool
	currentQueryID string

	terminalSize *protocol.TerminalSize
}

func (r *repl) run() error {
	if err := r.initialize(); err != nil {
		return err
	}
	r.sendContext()

	for {
		line, err := r.input.ReadLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.query(line); err != nil {
			return err
		}
	}
}

func (r *repl) initialize() error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.Version,
		ClientInfo: protocol.ClientInfo{
			Name:    "openagent-client",
			Version: version.Short(),
		},
	}
	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		r.terminalSize = &protocol.TerminalSize{Cols: cols, Rows: rows}
		params.TerminalSize = r.terminalSize
	}

	var result protocol.InitializeResult
	if err := r.request(protocol.MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	r.render.connected(result)
	return nil
}

// sendContext tells the backend our working directory so relative tool
// paths resolve against it.
func (r *repl) sendContext() {
	params := protocol.ContextUpdateParams{TerminalSize: r.terminalSize}
	if cwd, err := os.Getwd(); err == nil {
		params.CWD = cwd
	}
	if params.CWD == "" && params.TerminalSize == nil {
		return
	}
	if err := r.client.notify(protocol.MethodContextUpdate, params); err != nil {
		r.logger.Warn("context.update failed", "error", err)
	}
}

// request sends one call and blocks for its response, dispatching any
// frames that arrive in between. A JSON-RPC error response comes back
// as a *protocol.Error.
func (r *repl) request(method string, params any, result any) error {
	id, err := r.client.send(method, params)
	if err != nil {
		return err
	}

	for {
		f, err := r.client.next()
		if err != nil {
			return err
		}
		r.render.raw(f)

		if f.isResponse() && f.answers(id) {
			if f.rpcErr != nil {
				return f.rpcErr
			}
			if result == nil {
				return nil
			}
			if err := json.Unmarshal(f.result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
			return nil
		}
		if err := r.dispatch(f); err != nil {
			return err
		}
	}
}

// query sends an agent.query and renders the stream until its
// stream.complete frame. Ctrl+C cancels the in-flight query rather
// than the client.
func (r *repl) query(message string) error {
	params := protocol.QueryParams{Message: message}
	if cwd, err := os.Getwd(); err == nil {
		params.Context = &protocol.QueryContext{CWD: cwd}
	}

	id, err := r.client.send(protocol.MethodAgentQuery, params)
	if err != nil {
		return err
	}
	r.pending[id] = kindQuery
	r.streaming = true
	r.currentQueryID = ""

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	for r.streaming {
		select {
		case f, ok := <-r.client.frames:
			if !ok {
				return r.client.err()
			}
			r.render.raw(f)
			if err := r.dispatch(f); err != nil {
				return err
			}
		case <-interrupts:
			if err := r.cancel(); err != nil {
				return err
			}
		}
	}
	return nil
}

// dispatch handles one asynchronous frame: stream notifications,
// approval requests, and responses to requests sent from inside the
// stream loop (tool.approve, agent.cancel).
func (r *repl) dispatch(f frame) error {
	if f.isResponse() {
		r.consumeResponse(f)
		return nil
	}

	switch f.method {
	case protocol.MethodStreamToken:
		var token protocol.StreamToken
		if r.decode(f, &token) {
			r.render.token(token)
		}

	case protocol.MethodStreamBlock:
		var block protocol.StreamBlock
		if r.decode(f, &block) {
			r.render.block(block)
		}

	case protocol.MethodStreamComplete:
		var complete protocol.StreamComplete
		if r.decode(f, &complete) {
			r.render.complete(complete)
			if r.currentQueryID == "" || complete.QueryID == r.currentQueryID {
				r.streaming = false
				r.currentQueryID = ""
			}
		}

	case protocol.MethodToolRequestApproval:
		var approval protocol.ToolRequestApproval
		if r.decode(f, &approval) {
			return r.approve(approval)
		}

	case protocol.MethodToolResult:
		var result protocol.ToolResult
		if r.decode(f, &result) {
			r.render.toolResult(result)
		}

	default:
		r.logger.Warn("unknown notification", "method", f.method)
	}
	return nil
}

// decode unmarshals notification params, logging and skipping
// malformed frames.
func (r *repl) decode(f frame, into any) bool {
	if err := json.Unmarshal(f.params, into); err != nil {
		r.logger.Warn("malformed notification params", "method", f.method, "error", err)
		return false
	}
	return true
}

// consumeResponse resolves a response frame against the pending
// request table.
func (r *repl) consumeResponse(f frame) {
	id, err := strconv.ParseInt(string(f.id), 10, 64)
	if err != nil {
		r.logger.Warn("response with unexpected id", "id", string(f.id))
		return
	}
	kind, ok := r.pending[id]
	if !ok {
		r.logger.Warn("response to unknown request", "id", id)
		return
	}
	delete(r.pending, id)

	switch kind {
	case kindQuery:
		if f.rpcErr != nil {
			r.render.errorLine("query failed: " + f.rpcErr.Message)
			r.streaming = false
			return
		}
		var ack protocol.QueryResult
		if err := json.Unmarshal(f.result, &ack); err != nil {
			r.logger.Warn("malformed agent.query result", "error", err)
			r.streaming = false
			return
		}
		r.currentQueryID = ack.QueryID

	case kindApprove:
		if f.rpcErr != nil {
			r.render.errorLine("tool.approve failed: " + f.rpcErr.Message)
		}
		// The outcome itself arrives as a tool.result notification.

	case kindCancel:
		if f.rpcErr != nil {
			r.render.errorLine("agent.cancel failed: " + f.rpcErr.Message)
			return
		}
		var result protocol.CancelResult
		if err := json.Unmarshal(f.result, &result); err != nil {
			return
		}
		if result.Status == protocol.StatusNotFound {
			r.render.info("query already finished")
		}
	}
}

// approve prompts for a y/N decision and answers the backend. The
// default is rejection: bare Enter, EOF, or anything but y/yes says
// no.
func (r *repl) approve(approval protocol.ToolRequestApproval) error {
	r.render.approvalRequest(approval)

	answer, err := r.input.ReadAnswer("approve? [y/N] ")
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	approved := false
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		approved = true
	}

	id, err := r.client.send(protocol.MethodToolApprove, protocol.ApproveParams{
		ExecutionID: approval.ExecutionID,
		Approved:    approved,
	})
	if err != nil {
		return err
	}
	r.pending[id] = kindApprove
	return nil
}

// cancel asks the backend to stop the current query. The stream still
// runs to its cancelled stream.complete frame, which ends the wait.
func (r *repl) cancel() error {
	if r.currentQueryID == "" {
		return nil
	}
	r.render.info("cancelling...")
	id, err := r.client.send(protocol.MethodAgentCancel, protocol.CancelParams{
		QueryID: r.currentQueryID,
	})
	if err != nil {
		return err
	}
	r.pending[id] = kindCancel
	return nil
}

func (r *repl) command(line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help":
		r.render.help()

	case "/sessions":
		return false, r.sessions(strings.Join(args, " "))

	case "/load":
		if len(args) != 1 {
			r.render.errorLine("usage: /load <session-id>")
			return false, nil
		}
		return false, r.load(args[0])

	case "/export":
		sessionID := ""
		if len(args) > 0 {
			sessionID = args[0]
		}
		return false, r.export(sessionID)

	case "/delete":
		if len(args) != 1 {
			r.render.errorLine("usage: /delete <session-id>")
			return false, nil
		}
		return false, r.deleteSession(args[0])

	case "/cancel":
		r.render.info("no query in flight (Ctrl+C cancels a streaming response)")

	default:
		r.render.errorLine(fmt.Sprintf("unknown command %s (try /help)", name))
	}
	return false, nil
}

func (r *repl) sessions(query string) error {
	params := protocol.SessionListParams{}
	if query != "" {
		// Fetch a deep listing when filtering client-side.
		params.Limit = 100
	}
	var result protocol.SessionListResult
	if err := r.request(protocol.MethodSessionList, params, &result); err != nil {
		return r.renderRequestError("session.list", err)
	}
	r.render.sessions(result.Sessions, query)
	return nil
}

func (r *repl) load(sessionID string) error {
	var result protocol.SessionLoadResult
	if err := r.request(protocol.MethodSessionLoad, protocol.SessionLoadParams{SessionID: sessionID}, &result); err != nil {
		return r.renderRequestError("session.load", err)
	}
	if result.Status != protocol.StatusSuccess {
		r.render.errorLine("session.load: " + result.Error)
		return nil
	}
	r.render.transcript(result)
	return nil
}

func (r *repl) export(sessionID string) error {
	var result protocol.SessionExportResult
	if err := r.request(protocol.MethodSessionExport, protocol.SessionExportParams{SessionID: sessionID}, &result); err != nil {
		return r.renderRequestError("session.export", err)
	}
	if result.Status != protocol.StatusSuccess {
		r.render.errorLine("session.export: " + result.Error)
		return nil
	}
	if r.render.jsonMode {
		return nil
	}

	name := fmt.Sprintf("openagent-export-%s.md", time.Now().Format("20060102-150405"))
	if err := os.WriteFile(name, []byte(result.Content), 0600); err != nil {
		r.render.errorLine("writing export: " + err.Error())
		return nil
	}
	r.render.info(fmt.Sprintf("exported %d bytes to %s", len(result.Content), name))
	return nil
}

func (r *repl) deleteSession(sessionID string) error {
	var result protocol.SessionDeleteResult
	if err := r.request(protocol.MethodSessionDelete, protocol.SessionDeleteParams{SessionID: sessionID}, &result); err != nil {
		return r.renderRequestError("session.delete", err)
	}
	if result.Status != protocol.StatusSuccess {
		r.render.errorLine("session.delete: " + result.Error)
		return nil
	}
	r.render.info("deleted " + result.Deleted)
	return nil
}

// renderRequestError renders a JSON-RPC error and keeps the REPL
// alive; anything else (a connection failure) is fatal.
func (r *repl) renderRequestError(method string, err error) error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		r.render.errorLine(method + ": " + rpcErr.Message)
		return nil
	}
	return err
}
