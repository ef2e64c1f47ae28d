// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/netutil"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// outboundBuffer is the per-connection frame queue capacity. A full
// queue blocks the sender (handler or stream pipeline), which is the
// back-pressure path for a slow client.
const outboundBuffer = 64

// conn is the per-connection state: the current session, the working
// directory for environment context, the table of in-flight streams,
// and the outbound frame channel the writer goroutine drains.
type conn struct {
	server  *Server
	netConn net.Conn
	logger  *slog.Logger

	outbound chan []byte

	// gone closes when the connection is no longer writable. Senders
	// blocked on the outbound channel fall through and drop their
	// frames; stream pipelines keep running to completion regardless.
	gone     chan struct{}
	goneOnce sync.Once

	mu         sync.Mutex
	sessionID  string
	workingDir string
	streams    map[string]*streamHandle

	// afterResponse runs once the current request's response frame has
	// been queued. agent.query uses it to start the stream pipeline
	// strictly after its own ack, so no token frame can precede the
	// query response on the wire.
	afterResponse func()
}

// streamHandle is the cancellation handle for one in-flight query.
type streamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newConn(s *Server, netConn net.Conn, connectionID int64) *conn {
	return &conn{
		server:   s,
		netConn:  netConn,
		logger:   s.logger.With("connection_id", connectionID),
		outbound: make(chan []byte, outboundBuffer),
		gone:     make(chan struct{}),
		streams:  make(map[string]*streamHandle),
	}
}

// writeLoop serializes frames onto the socket, one per line. It is the
// only goroutine that writes to the connection. A write failure marks
// the connection gone and exits; later frames are dropped by send.
func (c *conn) writeLoop() {
	for {
		select {
		case frame := <-c.outbound:
			if _, err := c.netConn.Write(append(frame, '\n')); err != nil {
				if !netutil.IsExpectedCloseError(err) {
					c.logger.Warn("write failed", "error", err)
				}
				c.markGone()
				return
			}
		case <-c.gone:
			return
		}
	}
}

// send queues a frame for the writer. Blocks when the queue is full;
// returns without sending once the connection is gone.
func (c *conn) send(frame []byte) {
	select {
	case c.outbound <- frame:
	case <-c.gone:
	}
}

// markGone releases every sender blocked on this connection.
func (c *conn) markGone() {
	c.goneOnce.Do(func() { close(c.gone) })
}

// respond queues a response frame.
func (c *conn) respond(response protocol.Response) {
	frame, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("encoding response frame", "error", err)
		return
	}
	c.send(frame)
}

// Notify implements stream.Sink: it queues a notification frame.
// Notifications to a disconnected client are dropped silently so the
// emitting pipeline can finish and persist its transcript.
func (c *conn) Notify(method string, params any) {
	notification, err := protocol.NewNotification(method, params)
	if err != nil {
		c.logger.Error("encoding notification", "method", method, "error", err)
		return
	}
	frame, err := json.Marshal(notification)
	if err != nil {
		c.logger.Error("encoding notification frame", "method", method, "error", err)
		return
	}
	c.send(frame)
}

// currentSession returns the connection's session id, empty when no
// query or load has established one yet.
func (c *conn) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *conn) setSession(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

// clearSessionIf drops the current session when it matches id. Used
// after session.delete so the next query starts a fresh session
// instead of appending to a deleted file.
func (c *conn) clearSessionIf(id string) {
	c.mu.Lock()
	if c.sessionID == id {
		c.sessionID = ""
	}
	c.mu.Unlock()
}

func (c *conn) workingDirectory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workingDir
}

func (c *conn) setWorkingDirectory(dir string) {
	c.mu.Lock()
	c.workingDir = dir
	c.mu.Unlock()
}

// addStream registers a query's cancellation handle.
func (c *conn) addStream(queryID string, handle *streamHandle) {
	c.mu.Lock()
	c.streams[queryID] = handle
	c.mu.Unlock()
}

// removeStream drops a completed query's handle. Idempotent.
func (c *conn) removeStream(queryID string) {
	c.mu.Lock()
	delete(c.streams, queryID)
	c.mu.Unlock()
}

// lookupStream returns the handle for an in-flight query, nil when the
// query is unknown or already finished.
func (c *conn) lookupStream(queryID string) *streamHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[queryID]
}

// deferUntilResponded registers a hook the dispatcher runs after the
// current request's response is queued. At most one hook per request.
func (c *conn) deferUntilResponded(run func()) {
	c.mu.Lock()
	c.afterResponse = run
	c.mu.Unlock()
}

// runAfterResponse runs and clears the registered hook, if any.
func (c *conn) runAfterResponse() {
	c.mu.Lock()
	run := c.afterResponse
	c.afterResponse = nil
	c.mu.Unlock()
	if run != nil {
		run()
	}
}
