// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/version"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
	"github.com/GeneticxCln/OpenAgent-Terminal/session"
	"github.com/GeneticxCln/OpenAgent-Terminal/tool"
)

// serverName identifies the backend in initialize results.
const serverName = "openagent-terminal-backend"

// SocketEnv is the environment variable naming the socket path when no
// explicit path is configured. Both the backend and the client honor it.
const SocketEnv = "OPENAGENT_SOCKET"

// ResolveSocketPath picks the socket path: an explicit flag/config
// value wins, then SocketEnv, then an auto-generated path under
// XDG_RUNTIME_DIR (or the system temp directory when that is unset).
func ResolveSocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(SocketEnv); env != "" {
		return env
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("openagent-terminal-%d.sock", os.Getpid()))
}

// Config configures a backend server.
type Config struct {
	// SocketPath is the Unix socket to serve on. Required; resolve
	// defaults with [ResolveSocketPath] before construction.
	SocketPath string

	// Agent produces response events for queries. Required.
	Agent agent.Agent

	// Engine is the tool approval engine shared by all connections.
	// Required.
	Engine *tool.Engine

	// Store holds persisted sessions. Required.
	Store *session.Store

	// Clock supplies message timestamps. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives server activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server accepts connections on the Unix socket and dispatches frames.
// Construct with New, then Start. Safe for concurrent use; all mutable
// state lives per connection or behind the session store and engine
// locks.
type Server struct {
	socketPath string
	agent      agent.Agent
	engine     *tool.Engine
	store      *session.Store
	clock      clock.Clock
	logger     *slog.Logger

	handlers map[string]handlerFunc

	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}

	connections sync.WaitGroup
	streams     sync.WaitGroup

	// Monotonic id sources, shared across connections so a query or
	// execution id never repeats for the lifetime of the process.
	queries     atomic.Int64
	executions  atomic.Int64
	connectionN atomic.Int64
}

// handlerFunc processes one request. The returned value is marshaled
// into the response's result field; a non-nil error becomes a -32603
// error response carrying err.Error().
type handlerFunc func(ctx context.Context, c *conn, params []byte) (any, error)

// New validates the configuration and builds the dispatch table.
func New(config Config) (*Server, error) {
	if config.SocketPath == "" {
		return nil, errors.New("bridge requires a socket path")
	}
	if config.Agent == nil {
		return nil, errors.New("bridge requires an agent")
	}
	if config.Engine == nil {
		return nil, errors.New("bridge requires a tool engine")
	}
	if config.Store == nil {
		return nil, errors.New("bridge requires a session store")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Server{
		socketPath: config.SocketPath,
		agent:      config.Agent,
		engine:     config.Engine,
		store:      config.Store,
		clock:      config.Clock,
		logger:     config.Logger,
	}
	s.handlers = map[string]handlerFunc{
		protocol.MethodInitialize:    s.handleInitialize,
		protocol.MethodAgentQuery:    s.handleAgentQuery,
		protocol.MethodAgentCancel:   s.handleAgentCancel,
		protocol.MethodToolApprove:   s.handleToolApprove,
		protocol.MethodSessionList:   s.handleSessionList,
		protocol.MethodSessionLoad:   s.handleSessionLoad,
		protocol.MethodSessionExport: s.handleSessionExport,
		protocol.MethodSessionDelete: s.handleSessionDelete,
	}
	return s, nil
}

// Start removes any stale socket file, binds the listener with mode
// 0600, and begins accepting in the background. It returns once the
// socket is accepting; the server runs until Stop or ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	// Restrict the socket to the owning user.
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		os.Remove(s.socketPath)
		return fmt.Errorf("restricting socket permissions: %w", err)
	}

	s.listener = listener
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer os.Remove(s.socketPath)
		s.acceptLoop(ctx)
	}()

	s.logger.Info("backend listening",
		"socket", s.socketPath,
		"version", version.Short())
	return nil
}

// Addr returns the listener's address. Nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down: stops accepting, cancels every
// connection and in-flight stream, and waits for them to drain.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.done != nil {
		<-s.done
	}
}

// Wait blocks until the server has fully stopped.
func (s *Server) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// acceptLoop accepts connections until the listener closes. It waits
// for all connection goroutines and then all stream pipelines to
// finish before returning, so closing the done channel signals full
// quiescence: every transcript that will be persisted has been.
func (s *Server) acceptLoop(ctx context.Context) {
	defer s.streams.Wait()
	defer s.connections.Wait()

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		connectionID := s.connectionN.Add(1)
		s.connections.Add(1)
		go func() {
			defer s.connections.Done()
			s.handleConnection(ctx, netConn, connectionID)
		}()
	}
}

// handleConnection runs one connection to completion: a writer
// goroutine draining the outbound channel, a watcher that closes the
// socket on server shutdown, and the read loop on this goroutine.
// Stream pipelines started by agent.query are parented to the server
// context, not the connection, so they survive a client disconnect and
// still persist their transcripts.
func (s *Server) handleConnection(ctx context.Context, netConn net.Conn, connectionID int64) {
	defer netConn.Close()

	c := newConn(s, netConn, connectionID)
	c.logger.Info("connection accepted")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	// Unblock the scanner's blocking read when the server shuts down.
	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			netConn.Close()
		case <-readDone:
		}
	}()

	s.readLoop(ctx, c)
	close(readDone)

	c.markGone()
	<-writerDone
	c.logger.Info("connection closed")
}

// nextQueryID allocates a process-unique query id.
func (s *Server) nextQueryID() string {
	return fmt.Sprintf("query-%d", s.queries.Add(1))
}

// nextExecutionID allocates a process-unique tool execution id.
func (s *Server) nextExecutionID() string {
	return fmt.Sprintf("exec-%d", s.executions.Add(1))
}
