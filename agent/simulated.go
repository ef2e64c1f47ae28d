// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/blocks"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
)

// toolRequestMarker prefixes a canned response that should become a
// tool request instead of streamed text.
const toolRequestMarker = "__TOOL_REQUEST__"

// blockDelayFactor scales the pause after a block event. A block
// carries many lines in one send, so it pauses longer than a single
// token.
const blockDelayFactor = 20

// Simulated is an Agent that answers from a fixed response table
// without calling a model. It still drives the full streaming and
// tool approval machinery, so everything downstream behaves exactly
// as it would with a real backend.
type Simulated struct {
	responses  []cannedResponse
	tokenDelay time.Duration
	clock      clock.Clock
}

// SimulatedConfig configures a Simulated agent. The zero value
// streams the built-in responses with no pacing.
type SimulatedConfig struct {
	// TokenDelay is the pause after each emitted token; block events
	// pause blockDelayFactor times longer. Zero disables pacing.
	TokenDelay time.Duration

	// Scenarios replaces the built-in response table. Use
	// LoadScenarios to read a script file.
	Scenarios []Scenario

	// Clock drives pacing. Defaults to clock.Real().
	Clock clock.Clock
}

// NewSimulated returns an agent that answers from canned responses.
func NewSimulated(config SimulatedConfig) *Simulated {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	responses := defaultResponses()
	if len(config.Scenarios) > 0 {
		responses = scenarioResponses(config.Scenarios)
	}
	return &Simulated{
		responses:  responses,
		tokenDelay: config.TokenDelay,
		clock:      config.Clock,
	}
}

// Stream implements Agent. The response is segmented into blocks:
// code, diff, and list blocks arrive as single Block events, prose
// streams word by word.
func (s *Simulated) Stream(ctx context.Context, query Query, events chan<- Event) error {
	response := s.respond(query.Message)

	if request, ok := parseToolMarker(response); ok {
		return emit(ctx, events, Event{ToolRequest: request})
	}

	for _, block := range blocks.Segment(response) {
		switch block.Type {
		case blocks.TypeText:
			if err := s.streamWords(ctx, events, block.Content); err != nil {
				return err
			}
		default:
			if err := emit(ctx, events, Event{Block: &block}); err != nil {
				return err
			}
			if err := s.pause(ctx, s.tokenDelay*blockDelayFactor); err != nil {
				return err
			}
		}
	}
	return nil
}

// respond picks the first canned response whose matcher accepts the
// message. Both the built-in table and validated scenario scripts end
// with a catch-all, so every message gets an answer.
func (s *Simulated) respond(message string) string {
	lowered := strings.ToLower(message)
	for _, canned := range s.responses {
		if canned.matches(lowered) {
			return canned.respond(message)
		}
	}
	return ""
}

// streamWords emits content one word at a time, a space joined onto
// every word but the first, pausing tokenDelay between words.
func (s *Simulated) streamWords(ctx context.Context, events chan<- Event, content string) error {
	for index, word := range strings.Fields(content) {
		token := word
		if index > 0 {
			token = " " + word
		}
		if err := emit(ctx, events, Event{Token: &Token{Content: token}}); err != nil {
			return err
		}
		if err := s.pause(ctx, s.tokenDelay); err != nil {
			return err
		}
	}
	return nil
}

// pause waits for delay or ctx, whichever comes first.
func (s *Simulated) pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-s.clock.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseToolMarker recognizes the scripted tool-request form
// "__TOOL_REQUEST__<tool>__<path>__<content>". Responses that do not
// parse fall through to normal streaming.
func parseToolMarker(response string) (*ToolRequest, bool) {
	rest, ok := strings.CutPrefix(response, toolRequestMarker)
	if !ok {
		return nil, false
	}
	parts := strings.SplitN(rest, "__", 3)
	if len(parts) < 3 {
		return nil, false
	}
	return &ToolRequest{
		Tool: parts[0],
		Params: map[string]any{
			"path":    parts[1],
			"content": parts[2],
		},
	}, true
}

// cannedResponse pairs a matcher over the lowercased message with a
// response builder given the original message.
type cannedResponse struct {
	matches func(lowered string) bool
	respond func(message string) string
}

// matchAny reports whether the lowercased message contains any of the
// given words.
func matchAny(words ...string) func(string) bool {
	return func(lowered string) bool {
		for _, word := range words {
			if strings.Contains(lowered, word) {
				return true
			}
		}
		return false
	}
}

// fixed returns the same response for every message.
func fixed(response string) func(string) string {
	return func(string) string { return response }
}

// defaultResponses is the built-in table, checked in order. The first
// entry routes the write-to-test.txt demo into a tool request so the
// approval flow can be exercised end to end.
func defaultResponses() []cannedResponse {
	return []cannedResponse{
		{
			matches: func(lowered string) bool {
				return strings.Contains(lowered, "test.txt") ||
					(strings.Contains(lowered, "write") && strings.Contains(lowered, "hello"))
			},
			respond: fixed(toolDemoResponse),
		},
		{matches: matchAny("hello", "hi"), respond: fixed(greetingResponse)},
		{matches: matchAny("help"), respond: fixed(helpResponse)},
		{matches: matchAny("error", "bug"), respond: fixed(debugResponse)},
		{matches: matchAny("code", "function"), respond: fixed(codeResponse)},
		{matches: matchAny("rust", "cargo", "tokio"), respond: fixed(rustResponse)},
		{matches: matchAny("file", "save"), respond: fixed(fileResponse)},
		{matches: matchAny("python", "django", "flask"), respond: fixed(pythonResponse)},
		{matches: matchAny(""), respond: genericResponse},
	}
}

const toolDemoResponse = "__TOOL_REQUEST__file_write__test.txt__Hello, World!\n\n" +
	"This is a test file created by OpenAgent-Terminal."

const greetingResponse = "Hello! I'm the OpenAgent-Terminal AI assistant. " +
	"I can help you with:\n" +
	"• Running shell commands\n" +
	"• Analyzing code\n" +
	"• Debugging errors\n" +
	"• Explaining concepts\n\n" +
	"What would you like help with?"

const helpResponse = "I can assist you with:\n\n" +
	"1. **Code Analysis**: Show me code and I'll explain it\n" +
	"2. **Command Help**: Ask about shell commands\n" +
	"3. **Debugging**: Share error messages for solutions\n" +
	"4. **File Operations**: Help with reading/writing files\n\n" +
	"Try asking me something specific!"

const debugResponse = "I'd be happy to help debug that! To provide the best assistance:\n\n" +
	"1. Share the exact error message\n" +
	"2. Show me the relevant code\n" +
	"3. Tell me what you were trying to do\n\n" +
	"Then I can suggest solutions and fixes."

const codeResponse = "I can help with code! I can:\n" +
	"• Explain how code works\n" +
	"• Suggest improvements\n" +
	"• Find potential bugs\n" +
	"• Write new code for you\n\n" +
	"Paste the code you'd like me to look at, or describe what you want to build."

const rustResponse = "Rust development! Great choice. I can help with:\n\n" +
	"```rust\n" +
	"// Example: Async function\n" +
	"async fn fetch_data() -> Result<String> {\n" +
	"    let response = reqwest::get(\"https://api.example.com\")\n" +
	"        .await?\n" +
	"        .text()\n" +
	"        .await?;\n" +
	"    Ok(response)\n" +
	"}\n" +
	"```\n\n" +
	"What specific Rust topic would you like help with?"

const fileResponse = "I can help you work with files!\n\n" +
	"For example, I could write code to a file. " +
	"Would you like me to demonstrate the tool approval system?\n\n" +
	"Try asking: 'write hello world to test.txt'"

const pythonResponse = "Python development! I can help with:\n\n" +
	"```python\n" +
	"# Example: Async function\n" +
	"async def fetch_data(url: str) -> str:\n" +
	"    async with aiohttp.ClientSession() as session:\n" +
	"        async with session.get(url) as response:\n" +
	"            return await response.text()\n" +
	"```\n\n" +
	"What Python topic would you like help with?"

// genericResponse echoes the query back with hints at the keywords
// the table understands.
func genericResponse(message string) string {
	return fmt.Sprintf("I received your query: '%s'\n\n"+
		"This simulated agent demonstrates streaming delivery without a model behind it. "+
		"A connected model could:\n"+
		"• Understand complex queries\n"+
		"• Execute tools and commands\n"+
		"• Analyze code and files\n"+
		"• Provide detailed explanations\n\n"+
		"For now, try asking about:\n"+
		"• 'hello' - Get a greeting\n"+
		"• 'help' - See what I can do\n"+
		"• 'rust' or 'python' - Get coding examples\n"+
		"• 'error' - Get debugging help", message)
}
