// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/GeneticxCln/OpenAgent-Terminal/blocks"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/tui"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// renderer turns protocol frames into terminal output. Response
// content (tokens, blocks, session listings) goes to stdout; chrome
// (connection status, tool activity, errors) goes to stderr, so piped
// stdout carries only the conversation.
//
// In --json mode every received frame is printed raw on stdout and all
// rendered output is suppressed.
type renderer struct {
	out      io.Writer
	status   io.Writer
	jsonMode bool
	pretty   bool
	theme    tui.Theme
	width    int

	// midLine tracks an unterminated token run so interjections
	// (blocks, tool prompts) start on a fresh line.
	midLine bool
}

func newRenderer(jsonMode, stdoutIsTerminal bool) *renderer {
	width := 80
	if stdoutIsTerminal {
		if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	return &renderer{
		out:      os.Stdout,
		status:   os.Stderr,
		jsonMode: jsonMode,
		pretty:   stdoutIsTerminal && !jsonMode,
		theme:    tui.DefaultTheme,
		width:    width,
	}
}

// raw prints a received frame verbatim in --json mode.
func (r *renderer) raw(f frame) {
	if !r.jsonMode {
		return
	}
	fmt.Fprintf(r.out, "%s\n", f.raw)
}

func (r *renderer) connected(result protocol.InitializeResult) {
	if r.jsonMode {
		return
	}
	fmt.Fprintln(r.status, r.faint(fmt.Sprintf("connected to %s %s (%s)",
		result.ServerInfo.Name,
		result.ServerInfo.Version,
		strings.Join(result.Capabilities, ", "))))
}

func (r *renderer) info(text string) {
	if r.jsonMode {
		return
	}
	r.breakLine()
	fmt.Fprintln(r.status, r.faint(text))
}

func (r *renderer) errorLine(text string) {
	if r.jsonMode {
		return
	}
	r.breakLine()
	fmt.Fprintln(r.status, r.colored(r.theme.StatusFailure, text))
}

func (r *renderer) token(token protocol.StreamToken) {
	if r.jsonMode {
		return
	}
	fmt.Fprint(r.out, token.Content)
	r.midLine = !strings.HasSuffix(token.Content, "\n")
}

func (r *renderer) block(block protocol.StreamBlock) {
	if r.jsonMode {
		return
	}
	r.breakLine()
	if !r.pretty {
		fmt.Fprintf(r.out, "\n%s\n", strings.TrimRight(block.Content, "\n"))
		return
	}
	rendered := tui.RenderMarkdown(blockMarkdown(block), r.theme, r.width)
	fmt.Fprintf(r.out, "\n%s\n", rendered)
}

// blockMarkdown reassembles a structured block into markdown for the
// ANSI renderer. Code and diff blocks arrive unfenced on the wire;
// list blocks are already markdown.
func blockMarkdown(block protocol.StreamBlock) string {
	switch block.Type {
	case blocks.TypeCode, blocks.TypeDiff:
		language := block.Language
		if language == "" && block.Type == blocks.TypeDiff {
			language = "diff"
		}
		return "```" + language + "\n" + strings.TrimRight(block.Content, "\n") + "\n```"
	default:
		return block.Content
	}
}

func (r *renderer) complete(complete protocol.StreamComplete) {
	if r.jsonMode {
		return
	}
	r.breakLine()
	switch complete.Status {
	case protocol.StreamSuccess:
		fmt.Fprintln(r.out)
	case protocol.StreamCancelled:
		fmt.Fprintln(r.status, r.faint("(cancelled)"))
	case protocol.StreamError:
		r.errorLine("stream error: " + complete.Error)
	}
}

func (r *renderer) approvalRequest(approval protocol.ToolRequestApproval) {
	if r.jsonMode {
		return
	}
	r.breakLine()

	header := fmt.Sprintf("tool approval required: %s [%s risk]",
		approval.ToolName, approval.RiskLevel)
	if r.pretty {
		header = lipgloss.NewStyle().
			Foreground(r.theme.RiskColor(approval.RiskLevel)).
			Bold(true).
			Render(header)
	}
	fmt.Fprintf(r.status, "\n%s\n", header)
	if approval.Description != "" {
		fmt.Fprintf(r.status, "  %s\n", approval.Description)
	}
	for _, line := range strings.Split(strings.TrimRight(approval.Preview, "\n"), "\n") {
		if line != "" {
			fmt.Fprintf(r.status, "  %s\n", r.faint(line))
		}
	}
}

func (r *renderer) toolResult(result protocol.ToolResult) {
	if r.jsonMode {
		return
	}
	r.breakLine()

	switch result.Status {
	case protocol.ToolExecuted:
		fmt.Fprintf(r.status, "%s %s\n",
			r.colored(r.theme.StatusSuccess, "✓ "+result.ToolName),
			r.faint(toolSummary(result.Result)))
	case protocol.ToolRejected:
		text := result.Message
		if text == "" {
			text = "rejected"
		}
		fmt.Fprintf(r.status, "%s %s\n",
			r.colored(r.theme.StatusFailure, "✗ "+result.ToolName),
			r.faint(text))
	case protocol.ToolError:
		fmt.Fprintf(r.status, "%s %s\n",
			r.colored(r.theme.StatusFailure, "✗ "+result.ToolName),
			r.faint(result.Error))
	}
}

// toolSummary picks a one-line description out of a tool's structured
// result.
func toolSummary(result map[string]any) string {
	if result == nil {
		return "done"
	}
	if message, ok := result["message"].(string); ok && message != "" {
		return firstLine(message)
	}
	if errText, ok := result["error"].(string); ok && errText != "" {
		return firstLine(errText)
	}
	if path, ok := result["path"].(string); ok && path != "" {
		return path
	}
	return "done"
}

func firstLine(text string) string {
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		return text[:index]
	}
	return text
}

// scoredSession pairs a listing entry with its fuzzy match, for
// ordering and highlight rendering.
type scoredSession struct {
	summary   protocol.SessionSummary
	score     int
	positions []int
}

func (r *renderer) sessions(sessions []protocol.SessionSummary, query string) {
	if r.jsonMode {
		return
	}
	r.breakLine()

	scored := make([]scoredSession, 0, len(sessions))
	for _, summary := range sessions {
		scored = append(scored, scoredSession{summary: summary})
	}
	if query != "" {
		scored = fuzzyFilter(scored, query)
	}
	if len(scored) == 0 {
		if query != "" {
			r.info(fmt.Sprintf("no sessions match %q", query))
		} else {
			r.info("no stored sessions")
		}
		return
	}

	for _, entry := range scored {
		label := sessionLabel(entry.summary)
		if r.pretty && len(entry.positions) > 0 {
			label = tui.HighlightPositions(label, entry.positions, r.theme)
		}
		meta := fmt.Sprintf("%d messages, updated %s",
			entry.summary.MessageCount,
			entry.summary.UpdatedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(r.out, "  %s  %s\n", label, r.faint(meta))
	}
}

// sessionLabel is the text a /sessions query matches against and the
// text displayed for each entry.
func sessionLabel(summary protocol.SessionSummary) string {
	return summary.ID + "  " + summary.Title
}

// fuzzyFilter keeps the entries whose label matches the query, ordered
// best score first.
func fuzzyFilter(entries []scoredSession, query string) []scoredSession {
	pattern := []rune(query)

	var matched []scoredSession
	for _, entry := range entries {
		result := tui.FuzzyMatch(sessionLabel(entry.summary), pattern, nil)
		if result.Score == 0 {
			continue
		}
		entry.score = result.Score
		entry.positions = result.Positions
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	return matched
}

func (r *renderer) transcript(result protocol.SessionLoadResult) {
	if r.jsonMode {
		return
	}
	r.breakLine()
	r.info(fmt.Sprintf("loaded session %s — %s (%d messages)",
		result.SessionID, result.Title, len(result.Messages)))

	for _, message := range result.Messages {
		prefix := message.Role
		switch message.Role {
		case protocol.RoleUser:
			prefix = r.colored(r.theme.UserPrefix, "you")
		case protocol.RoleAssistant:
			prefix = r.colored(r.theme.AssistantPrefix, "agent")
		}
		content := message.Content
		if r.pretty && message.Role == protocol.RoleAssistant {
			content = tui.RenderMarkdown(content, r.theme, r.width)
		}
		fmt.Fprintf(r.out, "%s: %s\n", prefix, content)
	}
}

func (r *renderer) help() {
	if r.jsonMode {
		return
	}
	fmt.Fprint(r.status, `commands:
  /sessions [query]   list stored sessions (fuzzy-filtered by query)
  /load <id>          switch to a stored session
  /export [id]        export a session as Markdown to a file
  /delete <id>        delete a stored session
  /quit               exit (also Ctrl+D)

Anything else is sent to the agent. Ctrl+C during a response cancels it.
`)
}

// breakLine terminates an unfinished token run before other output.
func (r *renderer) breakLine() {
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}
}

func (r *renderer) faint(text string) string {
	if !r.pretty {
		return text
	}
	return lipgloss.NewStyle().Foreground(r.theme.FaintText).Render(text)
}

func (r *renderer) colored(color lipgloss.Color, text string) string {
	if !r.pretty {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
