// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// frame is one parsed line from the backend. A response carries an id
// and either a result or an error; a notification carries a method and
// params. raw preserves the exact received bytes for --json output.
type frame struct {
	raw    []byte
	id     json.RawMessage
	method string
	params json.RawMessage
	result json.RawMessage
	rpcErr *protocol.Error
}

// isResponse reports whether the frame is a reply rather than a
// notification.
func (f frame) isResponse() bool {
	return len(f.id) > 0
}

// answers reports whether the frame is the response to the request
// sent with the given id. Request ids are JSON numbers, echoed back
// byte-for-byte.
func (f frame) answers(id int64) bool {
	return string(f.id) == strconv.FormatInt(id, 10)
}

// Client is one connection to the backend: the socket, a background
// goroutine delivering parsed frames, and a monotonic request id
// source. The frames channel closes when the backend hangs up; readErr
// then holds the cause (nil for a clean EOF).
type Client struct {
	conn    net.Conn
	frames  chan frame
	readErr error
	nextID  atomic.Int64
}

// dial connects to the backend socket and starts the frame reader.
func dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to backend at %s: %w", socketPath, err)
	}
	c := &Client{
		conn:   conn,
		frames: make(chan frame, 16),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// readLoop parses newline-delimited frames until the connection
// closes, delivering each on the frames channel.
func (c *Client) readLoop() {
	defer close(c.frames)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxFrameBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var parsed struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			Result json.RawMessage `json:"result"`
			Error  *protocol.Error `json:"error"`
		}
		if err := json.Unmarshal(line, &parsed); err != nil {
			c.readErr = fmt.Errorf("malformed frame from backend: %w", err)
			return
		}

		raw := make([]byte, len(line))
		copy(raw, line)
		c.frames <- frame{
			raw:    raw,
			id:     parsed.ID,
			method: parsed.Method,
			params: parsed.Params,
			result: parsed.Result,
			rpcErr: parsed.Error,
		}
	}
	c.readErr = scanner.Err()
}

// next blocks for the next frame. Returns io.EOF when the backend
// closed the connection cleanly.
func (c *Client) next() (frame, error) {
	f, ok := <-c.frames
	if !ok {
		return frame{}, c.err()
	}
	return f, nil
}

// err reports why the frames channel closed. Only meaningful after
// next has returned an error or a channel receive has failed.
func (c *Client) err() error {
	if c.readErr != nil {
		return c.readErr
	}
	return io.EOF
}

// send transmits one request and returns its id for response matching.
func (c *Client) send(method string, params any) (int64, error) {
	id := c.nextID.Add(1)

	request := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{protocol.Version, id, method, params}

	if err := c.write(request); err != nil {
		return 0, fmt.Errorf("sending %s: %w", method, err)
	}
	return id, nil
}

// notify transmits a notification: no id, no response.
func (c *Client) notify(method string, params any) error {
	notification := struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{protocol.Version, method, params}

	if err := c.write(notification); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}
	return nil
}

func (c *Client) write(message any) error {
	encoded, err := json.Marshal(message)
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	_, err = c.conn.Write(encoded)
	return err
}
