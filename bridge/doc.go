// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package bridge owns the Unix socket and the connection/dispatch layer
// of the backend.
//
// [Server] binds the socket (removing a stale file first, forcing mode
// 0600), accepts connections, and runs one read loop per connection.
// Frames are newline-delimited JSON-RPC 2.0: a frame with an id is a
// request and gets exactly one response; a frame without an id is a
// notification. Handlers run sequentially on the connection goroutine;
// agent.query is the exception, spawning a [stream.Pipeline] goroutine
// per query so the response returns before any tokens flow.
//
// Every connection has exactly one writer goroutine draining an
// outbound frame channel. Handlers and stream pipelines never write to
// the socket directly; they queue frames, so responses and concurrent
// stream notifications interleave without interleaving bytes, and
// per-query order is preserved by channel FIFO. A slow client exerts
// back-pressure through the bounded channel; a disconnected client
// causes queued senders to drop their frames so streams can finish and
// persist without a reader.
//
// Protocol errors (malformed JSON, unknown method) produce error
// responses and leave the connection open. Handler failures map to
// -32603 with the cause as the message; full detail stays in the
// server log. Only failing to bind the socket is fatal to the caller.
package bridge
