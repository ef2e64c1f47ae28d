// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/GeneticxCln/OpenAgent-Terminal/history"
)

// lineReader reads one line of user input at a time. Implementations
// return io.EOF at end of input (Ctrl+D on a terminal). ReadLine is
// for prompt input recorded in history; ReadAnswer is for y/N
// confirmations, which stay out of history.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	ReadAnswer(prompt string) (string, error)
}

// stdio joins stdin and stdout into the io.ReadWriter a term.Terminal
// drives.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

// terminalReader reads lines with full line editing and arrow-key
// history recall. The terminal is switched to raw mode only for the
// duration of each read, so streamed output between prompts renders
// with normal cooked-mode line discipline (and Ctrl+C delivers SIGINT
// for query cancellation).
type terminalReader struct {
	fd       int
	terminal *term.Terminal

	// confirm is a second terminal with history disabled, so y/N
	// answers never land in arrow-key recall or the history file.
	confirm *term.Terminal
}

// noHistory disables recording on the confirmation terminal.
type noHistory struct{}

func (noHistory) Add(string)    {}
func (noHistory) Len() int      { return 0 }
func (noHistory) At(int) string { return "" }

func newTerminalReader(hist *history.History) *terminalReader {
	terminal := term.NewTerminal(stdio{}, "> ")
	if hist != nil {
		terminal.History = hist
	}
	confirm := term.NewTerminal(stdio{}, "")
	confirm.History = noHistory{}
	return &terminalReader{
		fd:       int(os.Stdin.Fd()),
		terminal: terminal,
		confirm:  confirm,
	}
}

func (t *terminalReader) ReadLine(prompt string) (string, error) {
	return t.read(t.terminal, prompt)
}

func (t *terminalReader) ReadAnswer(prompt string) (string, error) {
	return t.read(t.confirm, prompt)
}

func (t *terminalReader) read(terminal *term.Terminal, prompt string) (string, error) {
	terminal.SetPrompt(prompt)

	oldState, err := term.MakeRaw(t.fd)
	if err != nil {
		return "", fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(t.fd, oldState)

	return terminal.ReadLine()
}

// pipeReader reads lines from piped or scripted stdin. Prompts go to
// stderr so stdout carries only rendered (or raw --json) output.
type pipeReader struct {
	reader  *bufio.Reader
	prompts io.Writer
}

func newPipeReader() *pipeReader {
	return &pipeReader{
		reader:  bufio.NewReader(os.Stdin),
		prompts: os.Stderr,
	}
}

func (p *pipeReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.prompts, prompt)

	line, err := p.reader.ReadString('\n')
	if err != nil {
		// A final line without a trailing newline still counts.
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *pipeReader) ReadAnswer(prompt string) (string, error) {
	return p.ReadLine(prompt)
}
