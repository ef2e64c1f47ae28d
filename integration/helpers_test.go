// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package integration_test exercises the full backend stack end to
// end: a real server on a real Unix socket, driven over the wire the
// way the terminal front-end drives it. Nothing is mocked — queries
// run through the simulated agent, tool calls through the approval
// engine, and transcripts through the on-disk session store.
package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/bridge"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/testutil"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
	"github.com/GeneticxCln/OpenAgent-Terminal/session"
	"github.com/GeneticxCln/OpenAgent-Terminal/tool"
)

const frameTimeout = 10 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backend is one running server plus the paths backing it, so tests
// can restart the server over the same session state.
type backend struct {
	server     *bridge.Server
	socketPath string
	stateDir   string
}

// startBackend brings up a complete backend on a fresh socket and
// state directory. The server is stopped at test cleanup.
func startBackend(t *testing.T, config agent.SimulatedConfig) *backend {
	t.Helper()
	b := &backend{
		socketPath: filepath.Join(testutil.SocketDir(t), "backend.sock"),
		stateDir:   t.TempDir(),
	}
	b.server = launchServer(t, b.socketPath, b.stateDir, config)
	return b
}

// restart stops the running server and brings a fresh one up on the
// same socket path and session directory.
func (b *backend) restart(t *testing.T, config agent.SimulatedConfig) {
	t.Helper()
	b.server.Stop()
	b.server = launchServer(t, b.socketPath, b.stateDir, config)
}

func launchServer(t *testing.T, socketPath, stateDir string, config agent.SimulatedConfig) *bridge.Server {
	t.Helper()

	store, err := session.NewStore(session.StoreConfig{Directory: stateDir})
	if err != nil {
		t.Fatalf("creating session store: %v", err)
	}
	engine, err := tool.NewEngine(tool.EngineConfig{
		Executor: tool.Simulated{},
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("creating tool engine: %v", err)
	}
	server, err := bridge.New(bridge.Config{
		SocketPath: socketPath,
		Agent:      agent.NewSimulated(config),
		Engine:     engine,
		Store:      store,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

// frontend is a wire-level client: it speaks the same newline-delimited
// JSON-RPC the terminal front-end speaks, with no shared code with the
// server beyond the protocol package.
type frontend struct {
	t       *testing.T
	conn    net.Conn
	scanner *bufio.Scanner
	nextID  int64
}

func connect(t *testing.T, b *backend) *frontend {
	t.Helper()
	conn, err := net.Dial("unix", b.socketPath)
	if err != nil {
		t.Fatalf("dialing backend: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxFrameBytes)
	return &frontend{t: t, conn: conn, scanner: scanner}
}

// frame is one decoded line from the backend.
type frame struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *protocol.Error `json:"error"`
}

func (f frame) isResponseTo(id int64) bool {
	return string(f.ID) == strconv.FormatInt(id, 10)
}

func (f *frontend) send(method string, params any) int64 {
	f.t.Helper()
	f.nextID++
	request := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{protocol.Version, f.nextID, method, params}
	f.write(request)
	return f.nextID
}

func (f *frontend) notify(method string, params any) {
	f.t.Helper()
	notification := struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{protocol.Version, method, params}
	f.write(notification)
}

func (f *frontend) write(message any) {
	f.t.Helper()
	encoded, err := json.Marshal(message)
	if err != nil {
		f.t.Fatalf("encoding frame: %v", err)
	}
	if _, err := f.conn.Write(append(encoded, '\n')); err != nil {
		f.t.Fatalf("writing frame: %v", err)
	}
}

// read returns the next frame from the backend, failing the test if
// none arrives before frameTimeout.
func (f *frontend) read() frame {
	f.t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(frameTimeout))
	if !f.scanner.Scan() {
		f.t.Fatalf("no frame from backend: %v", f.scanner.Err())
	}
	var decoded frame
	if err := json.Unmarshal(f.scanner.Bytes(), &decoded); err != nil {
		f.t.Fatalf("malformed frame %q: %v", f.scanner.Text(), err)
	}
	return decoded
}

// call sends a request, asserts a successful response, and decodes the
// result. Any notification arriving before the response fails the
// test; use read directly when stream frames are in flight.
func (f *frontend) call(method string, params any, result any) {
	f.t.Helper()
	id := f.send(method, params)
	response := f.read()
	if !response.isResponseTo(id) {
		f.t.Fatalf("frame %+v is not the response to %s", response, method)
	}
	if response.Error != nil {
		f.t.Fatalf("%s failed: %v", method, response.Error)
	}
	if result != nil {
		if err := json.Unmarshal(response.Result, result); err != nil {
			f.t.Fatalf("decoding %s result: %v", method, err)
		}
	}
}

// initialize performs the handshake every connection starts with.
func (f *frontend) initialize() protocol.InitializeResult {
	f.t.Helper()
	var result protocol.InitializeResult
	f.call(protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.Version,
		ClientInfo:      protocol.ClientInfo{Name: "integration-test", Version: "0.0.0"},
	}, &result)
	return result
}

// params decodes a notification payload.
func params[T any](f *frontend, fr frame) T {
	f.t.Helper()
	var decoded T
	if err := json.Unmarshal(fr.Params, &decoded); err != nil {
		f.t.Fatalf("decoding %s params: %v", fr.Method, err)
	}
	return decoded
}

// streamEnd drains stream frames until stream.complete, returning the
// completion and the concatenated token text. Non-stream frames fail
// the test.
func (f *frontend) streamEnd() (protocol.StreamComplete, string) {
	f.t.Helper()
	var text string
	for {
		fr := f.read()
		switch fr.Method {
		case protocol.MethodStreamToken:
			text += params[protocol.StreamToken](f, fr).Content
		case protocol.MethodStreamBlock:
		case protocol.MethodStreamComplete:
			return params[protocol.StreamComplete](f, fr), text
		default:
			f.t.Fatalf("unexpected frame during stream: %+v", fr)
		}
	}
}
