// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

// roleHeading maps message roles to their export section heading.
var roleHeading = map[string]string{
	protocol.RoleUser:      "👤 User",
	protocol.RoleAssistant: "🤖 Assistant",
	protocol.RoleSystem:    "⚙️ System",
	protocol.RoleTool:      "🔧 Tool",
}

// ExportMarkdown renders a session as a markdown document: a metadata
// header, then one section per message. Message content is escaped so
// a line starting with '#' cannot be mistaken for a document heading;
// content inside fenced code blocks passes through verbatim.
func ExportMarkdown(sess *Session) string {
	var out strings.Builder

	title := sess.Title
	if title == "" {
		title = "Untitled Session"
	}

	fmt.Fprintf(&out, "# %s\n\n", title)
	fmt.Fprintf(&out, "**Session ID:** %s\n", sess.ID)
	fmt.Fprintf(&out, "**Created:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&out, "**Updated:** %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&out, "**Messages:** %d\n", len(sess.Messages))
	fmt.Fprintf(&out, "**Total Tokens:** %d\n", sess.TotalTokens())
	out.WriteString("\n---\n\n")

	for _, message := range sess.Messages {
		heading, known := roleHeading[message.Role]
		if !known {
			heading = message.Role
		}

		fmt.Fprintf(&out, "## %s [%s]\n\n", heading, message.Timestamp.Format("15:04:05"))
		out.WriteString(escapeHeadings(message.Content))
		out.WriteString("\n\n")

		if len(message.ToolCalls) > 0 {
			out.WriteString("**Tool Calls:**\n```json\n")
			out.WriteString(marshalToolCalls(message.ToolCalls))
			out.WriteString("\n```\n\n")
		}
	}

	return out.String()
}

// ExportJSON renders a session as pretty-printed JSON, the same shape
// as its on-disk file.
func ExportJSON(sess *Session) (string, error) {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling session %s: %w", sess.ID, err)
	}
	return string(data) + "\n", nil
}

// escapeHeadings prefixes '#'-leading lines with a backslash so
// message content cannot inject headings into the export. Fence
// delimiters (``` or ~~~) toggle a verbatim region: inside it nothing
// is escaped, so code samples survive untouched.
func escapeHeadings(content string) string {
	lines := strings.Split(content, "\n")
	inFence := false

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(line, "#") {
			lines[i] = "\\" + line
		}
	}

	return strings.Join(lines, "\n")
}

// marshalToolCalls renders tool calls for the export's fenced block.
// Marshal failure cannot happen for the ToolCall struct itself, but
// Args is caller-supplied; a failure degrades to a placeholder rather
// than aborting the export.
func marshalToolCalls(calls []protocol.ToolCall) string {
	data, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return fmt.Sprintf(`[{"error": %q}]`, err.Error())
	}
	return string(data)
}
