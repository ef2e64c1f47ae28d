// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package blocks segments agent responses into structured presentation
// blocks. The client renders each kind differently: code and diff
// blocks keep exact formatting and carry a language tag, list blocks
// keep their markers, and plain text reflows to the terminal width.
package blocks

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Block types produced by Segment.
const (
	TypeText = "text"
	TypeCode = "code"
	TypeDiff = "diff"
	TypeList = "list"
)

// diffLineThreshold is the number of +/- prefixed lines above which a
// fenced code block is reclassified as a diff. A presentation
// heuristic, not part of the wire contract.
const diffLineThreshold = 2

// Block is one segment of an agent response. Code and diff blocks
// carry a language tag; text and list blocks leave it empty.
type Block struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// segmentParser is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to
// share across calls.
var (
	segmentParserInstance goldmark.Markdown
	segmentParserOnce     sync.Once
)

func segmentParser() goldmark.Markdown {
	segmentParserOnce.Do(func() {
		segmentParserInstance = goldmark.New()
	})
	return segmentParserInstance
}

// Segment parses an agent response as markdown and splits it into
// ordered blocks. Fenced code becomes a code block (or a diff block
// when the body is mostly +/- prefixed lines), lists become list
// blocks with their markers preserved, and everything else merges
// into text blocks in document order. Empty input yields no blocks.
func Segment(input string) []Block {
	source := []byte(input)
	document := segmentParser().Parser().Parse(text.NewReader(source))

	var result []Block

	// Top-level nodes that are neither fences nor lists accumulate
	// into one raw source span per run, so consecutive paragraphs,
	// headings, and quotes come out as a single text block.
	textStart, textStop := -1, -1
	flushText := func() {
		if textStart < 0 {
			return
		}
		content := strings.TrimSpace(string(source[textStart:textStop]))
		textStart, textStop = -1, -1
		if content != "" {
			result = append(result, Block{Type: TypeText, Content: content})
		}
	}

	for child := document.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.FencedCodeBlock:
			flushText()
			result = append(result, fencedBlock(node, source))

		case *ast.List:
			flushText()
			start, stop := nodeSpan(node)
			if start < 0 {
				continue
			}
			content := strings.TrimSpace(string(source[lineStart(source, start):stop]))
			if content != "" {
				result = append(result, Block{Type: TypeList, Content: content})
			}

		default:
			start, stop := nodeSpan(node)
			if start < 0 {
				continue
			}
			start = lineStart(source, start)
			if textStart < 0 {
				textStart = start
			}
			if stop > textStop {
				textStop = stop
			}
		}
	}
	flushText()

	return result
}

// fencedBlock converts a fenced code block node. The language comes
// from the fence info string; a body dominated by +/- prefixed lines
// is a diff regardless of its tag.
func fencedBlock(node *ast.FencedCodeBlock, source []byte) Block {
	var body strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		body.Write(segment.Value(source))
	}
	content := strings.TrimSpace(body.String())
	language := normalizeLanguage(string(node.Language(source)))

	if countDiffLines(content) > diffLineThreshold {
		return Block{Type: TypeDiff, Content: content, Language: language}
	}
	return Block{Type: TypeCode, Content: content, Language: language}
}

func countDiffLines(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			count++
		}
	}
	return count
}

// normalizeLanguage resolves a fence info string through chroma's
// lexer registry so aliases come out canonical: "rs" is "rust", "py"
// is "python", "sh" is "bash". Unknown or missing languages are
// "text".
func normalizeLanguage(language string) string {
	if language == "" {
		return "text"
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		return "text"
	}
	name := strings.ToLower(lexer.Config().Name)
	if name == "plaintext" {
		return "text"
	}
	return name
}

// nodeSpan reports the smallest source range covering a block node's
// lines, descendants included. Container nodes such as lists and
// quotes have no lines of their own. Returns (-1, -1) for nodes with
// no source lines at all, such as thematic breaks.
func nodeSpan(node ast.Node) (start, stop int) {
	start, stop = -1, -1
	var visit func(ast.Node)
	visit = func(current ast.Node) {
		if current.Type() != ast.TypeBlock {
			return
		}
		lines := current.Lines()
		for index := 0; index < lines.Len(); index++ {
			segment := lines.At(index)
			if start < 0 || segment.Start < start {
				start = segment.Start
			}
			if segment.Stop > stop {
				stop = segment.Stop
			}
		}
		for child := current.FirstChild(); child != nil; child = child.NextSibling() {
			visit(child)
		}
	}
	visit(node)
	return start, stop
}

// lineStart walks back to the beginning of the physical line holding
// offset. Block nodes report their lines past any markers (list
// bullets, quote prefixes, heading hashes); snapping to the line
// start recovers the markers from the raw source.
func lineStart(source []byte, offset int) int {
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}
