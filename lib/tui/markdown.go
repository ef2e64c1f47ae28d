// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// wrapBreakpoints are the characters ansi.Wrap may break a line at, in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|"

// markdownInstance is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to
// share — actual parsing creates per-call state via Parse(reader).
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// styleRenderer returns the shared lipgloss renderer with the ANSI256
// color profile forced. Auto-detection would produce uncolored output
// in test environments with no TTY; SetColorProfile is required
// because lipgloss.Renderer re-detects from the environment unless the
// profile is set explicitly.
var (
	styleRendererInstance *lipgloss.Renderer
	styleRendererOnce     sync.Once
)

func styleRenderer() *lipgloss.Renderer {
	styleRendererOnce.Do(func() {
		styleRendererInstance = lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
		styleRendererInstance.SetColorProfile(termenv.ANSI256)
	})
	return styleRendererInstance
}

// RenderMarkdown parses markdown text and renders it as styled
// terminal output. Soft line breaks (single newlines within
// paragraphs) become spaces so hard-wrapped source text reflows
// correctly at any terminal width. Code blocks keep their exact
// formatting and are syntax-highlighted with Chroma.
func RenderMarkdown(input string, theme Theme, width int) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := markdownParser().Parser().Parse(text.NewReader(source))

	renderer := &ansiRenderer{
		source: source,
		theme:  theme,
		width:  width,
		styles: styleRenderer(),
	}
	ast.Walk(document, renderer.walk)

	return strings.TrimRight(renderer.out.String(), "\n")
}

// ansiRenderer walks a goldmark AST and produces styled terminal text.
// It uses a direct ast.Walk rather than goldmark's renderer interface
// because terminal rendering needs accumulate-then-wrap semantics:
// paragraph inline content collects in a buffer and gets word-wrapped
// as a unit when the paragraph closes.
type ansiRenderer struct {
	source []byte
	theme  Theme
	width  int

	out    strings.Builder
	inline strings.Builder

	// Prefix stack for nested block containers (blockquotes, lists).
	prefixes    []prefixEntry
	linePrefix  string
	prefixWidth int

	// bullet replaces linePrefix for the very next emitted line, then
	// clears. Used for list item bullets and numbers.
	bullet string

	// Inline style counters. Counters (not booleans) handle nested
	// emphasis correctly.
	bold   int
	italic int
	strike int

	lists []listLevel

	// lipgloss renderer with forced color profile.
	styles *lipgloss.Renderer

	// Trailing newline count at the end of out, for blank line
	// management.
	blank int
}

type prefixEntry struct {
	text  string
	width int
}

type listLevel struct {
	ordered bool
	counter int
	tight   bool
}

func (r *ansiRenderer) style() lipgloss.Style {
	return r.styles.NewStyle()
}

// contentWidth is the wrap width after subtracting nesting prefixes,
// clamped to a minimum of 10 to prevent degenerate wrapping.
func (r *ansiRenderer) contentWidth() int {
	width := r.width - r.prefixWidth
	if width < 10 {
		width = 10
	}
	return width
}

func (r *ansiRenderer) pushPrefix(text string, width int) {
	r.prefixes = append(r.prefixes, prefixEntry{text: text, width: width})
	r.linePrefix += text
	r.prefixWidth += width
}

func (r *ansiRenderer) popPrefix() {
	if len(r.prefixes) == 0 {
		return
	}
	top := r.prefixes[len(r.prefixes)-1]
	r.prefixes = r.prefixes[:len(r.prefixes)-1]
	r.linePrefix = r.linePrefix[:len(r.linePrefix)-len(top.text)]
	r.prefixWidth -= top.width
}

func (r *ansiRenderer) inTightList() bool {
	if len(r.lists) == 0 {
		return false
	}
	return r.lists[len(r.lists)-1].tight
}

// write appends text to the output, tracking trailing newlines.
func (r *ansiRenderer) write(s string) {
	if s == "" {
		return
	}
	r.out.WriteString(s)

	trailing := 0
	allNewlines := true
	for index := len(s) - 1; index >= 0; index-- {
		if s[index] == '\n' {
			trailing++
		} else {
			allNewlines = false
			break
		}
	}
	if allNewlines {
		r.blank += trailing
	} else {
		r.blank = trailing
	}
}

func (r *ansiRenderer) newline() {
	if r.blank < 1 {
		r.write("\n")
	}
}

func (r *ansiRenderer) blankLine() {
	for r.blank < 2 {
		r.write("\n")
	}
}

// takePrefix returns the prefix for the current line. A pending bullet
// (first line of a list item) is consumed; otherwise the regular line
// prefix applies.
func (r *ansiRenderer) takePrefix() string {
	if r.bullet != "" {
		bullet := r.bullet
		r.bullet = ""
		return bullet
	}
	return r.linePrefix
}

// withPrefixes prepends the line prefix to each line of content. The
// first line consumes the pending bullet if one is set.
func (r *ansiRenderer) withPrefixes(content string) string {
	lines := strings.Split(content, "\n")
	var result strings.Builder
	for index, line := range lines {
		if index == 0 {
			result.WriteString(r.takePrefix())
		} else {
			result.WriteString(r.linePrefix)
		}
		result.WriteString(line)
		if index < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// flushParagraph word-wraps the accumulated inline content, applies
// line prefixes, and resets the inline buffer.
func (r *ansiRenderer) flushParagraph() string {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return ""
	}
	wrapped := ansi.Wrap(content, r.contentWidth(), wrapBreakpoints)
	return r.withPrefixes(wrapped)
}

// styled applies the current inline style state to a text fragment.
func (r *ansiRenderer) styled(content string) string {
	style := r.style().Foreground(r.theme.NormalText)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

// inlineOf collects a node's inline children into a string, saving and
// restoring the inline buffer and style counters so the caller's
// context is unaffected.
func (r *ansiRenderer) inlineOf(node ast.Node) string {
	savedInline := r.inline.String()
	savedBold, savedItalic, savedStrike := r.bold, r.italic, r.strike

	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, r.walk)
	}
	result := r.inline.String()

	r.inline.Reset()
	r.inline.WriteString(savedInline)
	r.bold, r.italic, r.strike = savedBold, savedItalic, savedStrike

	return result
}

// highlight syntax-highlights code with Chroma. Unknown languages and
// Chroma errors fall back to FaintText-styled plain text.
func (r *ansiRenderer) highlight(code, language string) string {
	if language == "" {
		return r.style().Foreground(r.theme.FaintText).Render(code)
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err != nil {
		return r.style().Foreground(r.theme.FaintText).Render(code)
	}
	return buffer.String()
}

func (r *ansiRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {

	// Block nodes.
	case ast.KindDocument:

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else if flushed := r.flushParagraph(); flushed != "" {
			r.write(flushed)
			r.newline()
			if !r.inTightList() {
				r.blankLine()
			}
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
		} else {
			r.leaveHeading(node.(*ast.Heading))
		}

	case ast.KindFencedCodeBlock:
		if entering {
			fence := node.(*ast.FencedCodeBlock)
			r.renderCode(blockText(fence, r.source), string(fence.Language(r.source)))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindCodeBlock:
		if entering {
			r.renderCode(blockText(node, r.source), "")
			return ast.WalkSkipChildren, nil
		}

	case ast.KindBlockquote:
		if entering {
			r.pushPrefix("│ ", 2)
		} else {
			r.popPrefix()
			r.blankLine()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			start := 0
			if list.IsOrdered() {
				start = list.Start
			}
			r.lists = append(r.lists, listLevel{
				ordered: list.IsOrdered(),
				counter: start,
				tight:   list.IsTight,
			})
		} else {
			if len(r.lists) > 0 {
				r.lists = r.lists[:len(r.lists)-1]
			}
			if !r.inTightList() {
				r.blankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			r.enterListItem()
		} else {
			r.popPrefix()
			if r.inTightList() {
				r.newline()
			} else {
				r.blankLine()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			rule := strings.Repeat("─", r.contentWidth())
			r.blankLine()
			r.write(r.withPrefixes(r.style().Foreground(r.theme.BorderColor).Render(rule)))
			r.newline()
			r.blankLine()
		}

	case ast.KindHTMLBlock:
		if entering {
			stripped := strings.TrimSpace(stripHTMLTags(blockText(node, r.source)))
			if stripped != "" {
				faint := r.style().Foreground(r.theme.FaintText)
				r.write(r.withPrefixes(faint.Render(stripped)))
				r.newline()
				r.blankLine()
			}
			return ast.WalkSkipChildren, nil
		}

	// Inline nodes.
	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styled(string(textNode.Segment.Value(r.source))))
			if textNode.SoftLineBreak() {
				// Soft breaks become spaces so hard-wrapped source
				// reflows at any terminal width.
				r.inline.WriteString(" ")
			}
			if textNode.HardLineBreak() {
				r.inline.WriteString("\n")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		if node.(*ast.Emphasis).Level >= 2 {
			if entering {
				r.bold++
			} else {
				r.bold--
			}
		} else {
			if entering {
				r.italic++
			} else {
				r.italic--
			}
		}

	case ast.KindCodeSpan:
		if entering {
			var code strings.Builder
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				switch inner := child.(type) {
				case *ast.Text:
					code.Write(inner.Segment.Value(r.source))
				case *ast.String:
					code.Write(inner.Value)
				}
			}
			r.inline.WriteString(r.style().Foreground(r.theme.FaintText).Render(code.String()))
			return ast.WalkSkipChildren, nil
		}

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			r.inline.WriteString(r.inlineOf(link))
			if url := string(link.Destination); url != "" {
				urlStyle := r.style().Foreground(r.theme.FaintText)
				r.inline.WriteString(" " + urlStyle.Render("("+url+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.style().Foreground(r.theme.LinkForeground).Render(url))
		}

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			faint := r.style().Foreground(r.theme.FaintText)
			r.inline.WriteString(faint.Render("[" + r.inlineOf(image) + "]"))
			if url := string(image.Destination); url != "" {
				r.inline.WriteString(" " + faint.Render("("+url+")"))
			}
			return ast.WalkSkipChildren, nil
		}

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for index := 0; index < raw.Segments.Len(); index++ {
				segment := raw.Segments.At(index)
				html.Write(segment.Value(r.source))
			}
			if stripped := stripHTMLTags(html.String()); stripped != "" {
				r.inline.WriteString(r.style().Foreground(r.theme.FaintText).Render(stripped))
			}
		}

	// GFM extension nodes.
	case extast.KindStrikethrough:
		if entering {
			r.strike++
		} else {
			r.strike--
		}

	case extast.KindTable:
		if entering {
			r.renderTable(node)
			return ast.WalkSkipChildren, nil
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				done := r.style().Foreground(r.theme.StatusSuccess)
				r.inline.WriteString(done.Render("[x]") + " ")
			} else {
				r.inline.WriteString(r.styled("[ ] "))
			}
		}
	}

	return ast.WalkContinue, nil
}

func (r *ansiRenderer) leaveHeading(heading *ast.Heading) {
	// Strip inline styling accumulated by styled(): the heading style
	// replaces it entirely.
	content := ansi.Strip(r.inline.String())
	r.inline.Reset()
	if content == "" {
		return
	}

	style := r.style().Bold(true)
	if heading.Level <= 2 {
		style = style.Foreground(r.theme.HeaderForeground)
	} else {
		style = style.Foreground(r.theme.NormalText)
	}

	wrapped := ansi.Wrap(style.Render(content), r.contentWidth(), wrapBreakpoints)
	r.blankLine()
	r.write(r.withPrefixes(wrapped))
	r.newline()
	r.blankLine()
}

// renderCode emits a code block without reflow, one source line per
// output line, syntax-highlighted when a language is given.
func (r *ansiRenderer) renderCode(code, language string) {
	highlighted := r.highlight(code, language)
	r.blankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		r.write(r.takePrefix() + line)
		r.newline()
	}
	r.blankLine()
}

func (r *ansiRenderer) enterListItem() {
	if len(r.lists) == 0 {
		return
	}
	top := &r.lists[len(r.lists)-1]

	var bullet string
	if top.ordered {
		bullet = fmt.Sprintf("%d. ", top.counter)
		top.counter++
	} else {
		bullet = "- "
	}

	bulletWidth := len(bullet) // ASCII-only, so byte length == visual width.

	// The pending bullet includes the current linePrefix so it replaces
	// the entire prefix for the first line of this item.
	r.bullet = r.linePrefix + bullet
	r.pushPrefix(strings.Repeat(" ", bulletWidth), bulletWidth)
}

// renderTable renders a GFM table with left-aligned columns sized to
// their widest cell. Cells wider than the terminal are truncated; the
// alignment hints from the source are ignored.
func (r *ansiRenderer) renderTable(node ast.Node) {
	var header []string
	var rows [][]string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader:
			header = r.tableCells(child)
		case extast.KindTableRow:
			rows = append(rows, r.tableCells(child))
		}
	}

	columns := len(header)
	if columns == 0 && len(rows) > 0 {
		columns = len(rows[0])
	}
	if columns == 0 {
		return
	}

	widths := make([]int, columns)
	measure := func(cells []string) {
		for index, cell := range cells {
			if index < columns {
				if width := lipgloss.Width(cell); width > widths[index] {
					widths[index] = width
				}
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	r.blankLine()

	if len(header) > 0 {
		bold := r.style().Bold(true).Foreground(r.theme.NormalText)
		r.write(r.takePrefix() + r.tableLine(header, widths, bold))
		r.newline()

		rule := make([]string, columns)
		for index, width := range widths {
			rule[index] = strings.Repeat("─", width)
		}
		border := r.style().Foreground(r.theme.BorderColor)
		r.write(r.linePrefix + border.Render(strings.Join(rule, "  ")))
		r.newline()
	}

	for _, row := range rows {
		r.write(r.linePrefix + r.tableLine(row, widths, r.style()))
		r.newline()
	}

	r.blankLine()
}

func (r *ansiRenderer) tableCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() == extast.KindTableCell {
			cells = append(cells, r.inlineOf(cell))
		}
	}
	return cells
}

func (r *ansiRenderer) tableLine(cells []string, widths []int, base lipgloss.Style) string {
	parts := make([]string, len(widths))
	for index, width := range widths {
		var cell string
		if index < len(cells) {
			cell = cells[index]
		}
		if lipgloss.Width(cell) > width {
			cell = ansi.Truncate(cell, width, "…")
		}
		if padding := width - lipgloss.Width(cell); padding > 0 {
			cell += strings.Repeat(" ", padding)
		}
		parts[index] = cell
	}
	return base.Render(strings.Join(parts, "  "))
}

// blockText joins the source lines of a block node.
func blockText(node ast.Node, source []byte) string {
	var content strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		content.Write(segment.Value(source))
	}
	return content.String()
}

// stripHTMLTags removes HTML tags, returning only the text content.
func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			result.WriteRune(character)
		}
	}
	return result.String()
}
