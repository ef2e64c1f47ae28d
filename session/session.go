// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package session

import (
	"strings"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// maxTitleLength is the display length a session title is truncated
// to when auto-derived from the first user message. The ellipsis
// counts toward the limit.
const maxTitleLength = 50

// Session is one conversation: metadata plus an ordered message log.
// The store owns the durable copy; a connection holds at most one
// current session id at a time and mutates it through
// [Store.AppendMessage], which serializes writers per session.
type Session struct {
	ID        string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Tags are free-form labels. Unused by the backend itself but
	// preserved across save/load so external tooling can annotate
	// sessions.
	Tags []string `json:"tags,omitempty"`

	Messages []protocol.Message `json:"messages"`
}

// New returns an empty session with the given id and title. An empty
// title is filled in automatically from the first user message.
func New(id, title string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message and updates the session metadata.
// UpdatedAt never moves backwards, even when the caller-supplied time
// is older than the current value. When the session has no title yet
// and the message is from the user, the title is derived from its
// content.
func (s *Session) AddMessage(message protocol.Message, now time.Time) {
	s.Messages = append(s.Messages, message)
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
	if s.Title == "" && message.Role == protocol.RoleUser {
		s.Title = deriveTitle(message.Content)
	}
}

// Summary returns the index entry view of the session: counts and
// token totals computed from the message log.
func (s *Session) Summary() protocol.SessionSummary {
	return protocol.SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
		TotalTokens:  s.TotalTokens(),
	}
}

// TotalTokens sums the token counts over all messages. Messages
// without a token count contribute zero.
func (s *Session) TotalTokens() int {
	total := 0
	for _, message := range s.Messages {
		total += message.TokenCount
	}
	return total
}

// deriveTitle builds a session title from the first user message:
// the first non-empty line, whitespace-collapsed, truncated to
// maxTitleLength runes with a trailing ellipsis.
func deriveTitle(content string) string {
	line := strings.TrimSpace(content)
	if index := strings.IndexByte(line, '\n'); index >= 0 {
		line = line[:index]
	}
	line = strings.Join(strings.Fields(line), " ")
	if line == "" {
		return "Untitled"
	}

	runes := []rune(line)
	if len(runes) <= maxTitleLength {
		return line
	}
	return string(runes[:maxTitleLength-3]) + "..."
}
