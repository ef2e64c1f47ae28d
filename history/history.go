// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package history keeps the interactive prompt's command history: an
// append-only file in the shell-history tradition, an in-memory ring
// for recall, and substring reverse-search. The Add/Len/At methods
// satisfy the x/term History interface, so a terminal prompt can use
// a History directly for arrow-key recall.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
)

// memoryLimit bounds the in-memory ring; defaultFileLimit bounds the
// history file when the caller does not choose a limit. The file is
// pruned to its newest entries when it grows past the limit.
const (
	memoryLimit      = 1000
	defaultFileLimit = 10000
)

// Entry is one recorded command.
type Entry struct {
	Command   string
	Timestamp time.Time
}

// Config configures Open.
type Config struct {
	// Path to the history file. Required; parent directories are
	// created on Open.
	Path string

	// MaxEntries bounds the history file; it is pruned to its newest
	// entries when it grows past the limit. Zero means the default
	// (10000).
	MaxEntries int

	// Clock supplies entry timestamps. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives warnings when file writes fail; history then
	// degrades to memory-only. Defaults to slog.Default().
	Logger *slog.Logger
}

// History holds prompt command history. It is not safe for concurrent
// use: it belongs to the goroutine driving the interactive prompt.
type History struct {
	path      string
	fileLimit int
	clock     clock.Clock
	logger    *slog.Logger

	entries []Entry

	// Recall state for Previous/Next. navIndex is -1 when no recall
	// is in progress; navBuffer holds the input to restore when
	// stepping past the newest entry.
	navIndex  int
	navBuffer string

	// Reverse-search state, matches newest first.
	searchResults []string
	searchIndex   int
}

// Open loads history from config.Path. A missing file is an empty
// history; unparseable lines are skipped; only the newest entries
// stay in memory.
func Open(config Config) (*History, error) {
	if config.Path == "" {
		return nil, errors.New("history requires a file path")
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = defaultFileLimit
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	h := &History{
		path:      config.Path,
		fileLimit: config.MaxEntries,
		clock:     config.Clock,
		logger:    config.Logger,
		navIndex:  -1,
	}
	if err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *History) load() error {
	file, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening history file: %w", err)
	}
	defer file.Close()

	now := h.clock.Now()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if entry, ok := parseLine(scanner.Text(), now); ok {
			h.append(entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading history file: %w", err)
	}
	return nil
}

// Add records a command. Commands starting with a space are never
// recorded (the shell privacy convention); empty commands and
// consecutive duplicates are dropped. File append failures are logged
// and the entry stays memory-only.
func (h *History) Add(command string) {
	if strings.HasPrefix(command, " ") {
		return
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1].Command == command {
		return
	}

	entry := Entry{Command: command, Timestamp: h.clock.Now()}
	h.append(entry)
	h.ResetNavigation()

	if err := h.appendToFile(entry); err != nil {
		h.logger.Warn("history file append failed", "path", h.path, "error", err)
	}
}

// Len returns the number of entries held in memory.
func (h *History) Len() int {
	return len(h.entries)
}

// At returns the command at index, where 0 is the most recent entry
// and Len()-1 the oldest. It panics outside that range, matching the
// x/term History contract.
func (h *History) At(index int) string {
	return h.entries[len(h.entries)-1-index].Command
}

// Previous recalls the next older command, saving currentInput on the
// first step so Next can restore it. Returns false at the oldest
// entry.
func (h *History) Previous(currentInput string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.navIndex < 0 {
		h.navIndex = len(h.entries)
		h.navBuffer = currentInput
	}
	if h.navIndex > 0 {
		h.navIndex--
		return h.entries[h.navIndex].Command, true
	}
	return "", false
}

// Next recalls the next newer command. Stepping past the newest entry
// ends the recall and restores the input saved by Previous. Returns
// false when no recall is in progress.
func (h *History) Next() (string, bool) {
	if h.navIndex < 0 {
		return "", false
	}
	h.navIndex++
	if h.navIndex >= len(h.entries) {
		buffer := h.navBuffer
		h.ResetNavigation()
		return buffer, true
	}
	return h.entries[h.navIndex].Command, true
}

// ResetNavigation abandons any recall in progress.
func (h *History) ResetNavigation() {
	h.navIndex = -1
	h.navBuffer = ""
}

// Search starts (or restarts) a reverse search and returns the newest
// match. An empty query matches nothing.
func (h *History) Search(query string) (string, bool) {
	h.searchIndex = 0
	if query == "" {
		h.searchResults = nil
		return "", false
	}
	h.searchResults = h.matching(query, len(h.entries))
	if len(h.searchResults) == 0 {
		return "", false
	}
	return h.searchResults[0], true
}

// SearchOlder steps to the next older match, staying on the oldest
// when already there.
func (h *History) SearchOlder() (string, bool) {
	if len(h.searchResults) == 0 {
		return "", false
	}
	if h.searchIndex < len(h.searchResults)-1 {
		h.searchIndex++
	}
	return h.searchResults[h.searchIndex], true
}

// SearchNewer steps back toward the newest match.
func (h *History) SearchNewer() (string, bool) {
	if len(h.searchResults) == 0 {
		return "", false
	}
	if h.searchIndex > 0 {
		h.searchIndex--
	}
	return h.searchResults[h.searchIndex], true
}

// EndSearch accepts the current match and clears search state.
func (h *History) EndSearch() (string, bool) {
	selected, ok := "", false
	if len(h.searchResults) > 0 {
		selected, ok = h.searchResults[h.searchIndex], true
	}
	h.CancelSearch()
	return selected, ok
}

// CancelSearch clears search state without selecting.
func (h *History) CancelSearch() {
	h.searchResults = nil
	h.searchIndex = 0
}

// Recent returns up to limit commands, newest first.
func (h *History) Recent(limit int) []string {
	return h.matching("", limit)
}

// Matching returns up to limit commands containing query, newest
// first. The match is a case-insensitive substring.
func (h *History) Matching(query string, limit int) []string {
	return h.matching(query, limit)
}

// Clear drops all history, memory and file.
func (h *History) Clear() error {
	h.entries = nil
	h.ResetNavigation()
	h.CancelSearch()
	if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (h *History) matching(query string, limit int) []string {
	query = strings.ToLower(query)
	var matches []string
	for index := len(h.entries) - 1; index >= 0 && len(matches) < limit; index-- {
		if strings.Contains(strings.ToLower(h.entries[index].Command), query) {
			matches = append(matches, h.entries[index].Command)
		}
	}
	return matches
}

// append adds to the in-memory ring, dropping the oldest entry past
// the cap.
func (h *History) append(entry Entry) {
	h.entries = append(h.entries, entry)
	if len(h.entries) > memoryLimit {
		h.entries = h.entries[1:]
	}
}

func (h *History) appendToFile(entry Entry) error {
	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_, writeErr := file.WriteString(formatLine(entry))
	closeErr := file.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return closeErr
	}
	return h.pruneFile()
}

// pruneFile rewrites the file with only its newest entries once it has
// grown past the configured limit.
func (h *History) pruneFile() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) <= h.fileLimit {
		return nil
	}
	keep := lines[len(lines)-h.fileLimit:]
	return os.WriteFile(h.path, []byte(strings.Join(keep, "\n")+"\n"), 0o600)
}

// formatLine renders the file format, one entry per line:
// "<unix seconds>:<command>".
func formatLine(entry Entry) string {
	return fmt.Sprintf("%d:%s\n", entry.Timestamp.Unix(), entry.Command)
}

// parseLine parses one history file line. Blank lines and # comments
// report ok false. Lines without a numeric timestamp prefix are kept
// as bare commands stamped with now, so imported shell history files
// still load.
func parseLine(line string, now time.Time) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}
	if prefix, command, found := strings.Cut(line, ":"); found && isDigits(prefix) {
		if seconds, err := strconv.ParseInt(prefix, 10, 64); err == nil {
			return Entry{Command: command, Timestamp: time.Unix(seconds, 0)}, true
		}
	}
	return Entry{Command: line, Timestamp: now}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
