// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package session

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
	"github.com/GeneticxCln/OpenAgent-Terminal/protocol"
)

const (
	indexFilename    = "index.json"
	indexVersion     = "1.0"
	sessionExtension = ".json"

	// idTimeFormat shapes session ids: YYYY-MM-DD_HHMMSS. Two sessions
	// created in the same second get numeric suffixes (_1, _2, ...).
	idTimeFormat = "2006-01-02_150405"
)

// checksumDomainKey is the BLAKE3 key for session file checksums. The
// bytes are the ASCII domain name zero-padded to 32 bytes, so the key
// is inspectable in hex dumps. Keyed hashing keeps these checksums
// distinct from any other BLAKE3 use of the same content.
var checksumDomainKey = [32]byte{
	'o', 'p', 'e', 'n', 'a', 'g', 'e', 'n', 't', '.',
	's', 'e', 's', 's', 'i', 'o', 'n',
}

// IndexEntry is one record in the index file: the session summary
// plus the checksum of the session file it describes. The checksum is
// advisory — a mismatch on load is logged, not fatal, since the
// session file content is self-reporting.
type IndexEntry struct {
	protocol.SessionSummary
	Checksum string `json:"checksum,omitempty"`
}

// indexFile is the on-disk shape of index.json.
type indexFile struct {
	Version  string       `json:"version"`
	Sessions []IndexEntry `json:"sessions"`
}

// StoreConfig configures a Store. Directory is required; everything
// else has a usable zero value.
type StoreConfig struct {
	// Directory holds the session and index files. Created with mode
	// 0700 if absent.
	Directory string

	// MaxSessions is the soft cap enforced by Create: when a new
	// session pushes the count above it, the oldest sessions are
	// pruned down to CleanupTarget. Zero disables the cap.
	MaxSessions int

	// CleanupTarget is the session count pruning reduces to. Values
	// outside (0, MaxSessions] default to MaxSessions.
	CleanupTarget int

	// Archiver, when non-nil, packs sessions into archive files
	// before cleanup deletes them. A session that cannot be archived
	// is never deleted.
	Archiver *Archiver

	// Clock supplies time for session ids and timestamps. Defaults
	// to the real clock.
	Clock clock.Clock

	// Logger receives warnings about index self-healing and checksum
	// mismatches. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store persists sessions as one JSON file each, with a single index
// file for listing. Safe for concurrent use: writes to the same
// session are serialized through a per-session mutex, writes to
// distinct sessions proceed in parallel, and the index has its own
// lock.
type Store struct {
	directory     string
	maxSessions   int
	cleanupTarget int
	archiver      *Archiver
	clock         clock.Clock
	logger        *slog.Logger

	// mu guards index, writers, and the index file on disk. Never
	// held while acquiring a session writer lock.
	mu      sync.Mutex
	index   map[string]IndexEntry
	writers map[string]*sync.Mutex
}

// NewStore opens (or creates) a session store. A missing or corrupt
// index is rebuilt by scanning the session files, never reported as
// an error: the index is a cache, the session files are the truth.
func NewStore(config StoreConfig) (*Store, error) {
	if config.Directory == "" {
		return nil, fmt.Errorf("session store directory is required")
	}
	if err := os.MkdirAll(config.Directory, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory %s: %w", config.Directory, err)
	}

	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.CleanupTarget <= 0 || config.CleanupTarget > config.MaxSessions {
		config.CleanupTarget = config.MaxSessions
	}

	store := &Store{
		directory:     config.Directory,
		maxSessions:   config.MaxSessions,
		cleanupTarget: config.CleanupTarget,
		archiver:      config.Archiver,
		clock:         config.Clock,
		logger:        config.Logger,
		index:         make(map[string]IndexEntry),
		writers:       make(map[string]*sync.Mutex),
	}

	store.mu.Lock()
	err := store.loadIndexLocked()
	store.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return store, nil
}

// Len returns the number of sessions in the index.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Create starts a new session. The id is derived from the current
// time, with a numeric suffix when a session with that id already
// exists (in the index or as a leftover file on disk). The session
// file and index are persisted before Create returns.
//
// When the store grows past its soft cap, the oldest sessions are
// pruned down to the cleanup target. Pruning failures are logged, not
// returned: the new session was created successfully either way.
func (s *Store) Create(title string) (*Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	id, err := s.generateIDLocked(now)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sess := New(id, title, now)
	// Reserve the id before releasing the lock so a concurrent
	// Create in the same second cannot pick it too. Save below
	// overwrites the reservation with the real entry.
	s.index[id] = IndexEntry{SessionSummary: sess.Summary()}
	s.mu.Unlock()

	if err := s.Save(sess); err != nil {
		s.mu.Lock()
		delete(s.index, id)
		s.mu.Unlock()
		return nil, err
	}

	s.enforceCap()
	return sess, nil
}

// Save writes the full session to its file and updates the index.
// Both writes are atomic (temp file + rename). Sessions unknown to
// the index are added, so Save doubles as an upsert.
func (s *Store) Save(sess *Session) error {
	if err := validateSessionID(sess.ID); err != nil {
		return err
	}

	writer := s.writerFor(sess.ID)
	writer.Lock()
	defer writer.Unlock()

	return s.saveLocked(sess)
}

// AppendMessage appends one message to a stored session: load, apply,
// save, all under the session's writer lock so concurrent appends to
// the same session never interleave or lose updates. Returns the
// session as saved.
func (s *Store) AppendMessage(sessionID string, message protocol.Message) (*Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	writer := s.writerFor(sessionID)
	writer.Lock()
	defer writer.Unlock()

	sess, err := s.readSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	sess.AddMessage(message, s.clock.Now())
	if err := s.saveLocked(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load reads a session from disk. Returns (nil, nil) when the file
// does not exist or does not decode — a missing session is an
// ordinary answer, not an error. The id is validated before any path
// is constructed.
func (s *Store) Load(sessionID string) (*Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	return s.readSession(sessionID)
}

// List returns session summaries sorted by UpdatedAt descending,
// ties broken by id. A positive limit truncates the result; zero or
// negative means no limit.
func (s *Store) List(limit int) []protocol.SessionSummary {
	s.mu.Lock()
	summaries := make([]protocol.SessionSummary, 0, len(s.index))
	for _, entry := range s.index {
		summaries = append(summaries, entry.SessionSummary)
	}
	s.mu.Unlock()

	sortSummaries(summaries)

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// Delete removes a session file and its index entry. Idempotent:
// deleting an absent session returns (false, nil). The bool reports
// whether anything was actually removed.
func (s *Store) Delete(sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}

	writer := s.writerFor(sessionID)
	writer.Lock()
	defer writer.Unlock()

	return s.deleteLocked(sessionID)
}

// CleanupOldSessions deletes the oldest sessions (by UpdatedAt) until
// at most max remain, returning the number removed. With an archiver
// configured, each session is packed into an archive file first; a
// session that cannot be archived is kept and reported in the error.
func (s *Store) CleanupOldSessions(max int) (int, error) {
	if max < 0 {
		max = 0
	}

	summaries := s.List(0)
	if len(summaries) <= max {
		return 0, nil
	}

	removed := 0
	var errs []error
	// The list is newest-first, so everything past max is a victim.
	// Walk the victims oldest-first.
	victims := summaries[max:]
	for i := len(victims) - 1; i >= 0; i-- {
		ok, err := s.archiveAndDelete(victims[i].ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// Restore brings an archived session back into the live store.
func (s *Store) Restore(sessionID string) (*Session, error) {
	if s.archiver == nil {
		return nil, fmt.Errorf("no archive directory configured")
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	sess, err := s.archiver.Unarchive(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// saveLocked marshals and writes the session file, then updates and
// persists the index entry. The caller holds the session's writer
// lock.
func (s *Store) saveLocked(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", sess.ID, err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.sessionPath(sess.ID), data); err != nil {
		return fmt.Errorf("writing session %s: %w", sess.ID, err)
	}

	entry := IndexEntry{
		SessionSummary: sess.Summary(),
		Checksum:       checksum(data),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[sess.ID] = entry
	return s.persistIndexLocked()
}

// deleteLocked removes the session file and index entry. The caller
// holds the session's writer lock.
func (s *Store) deleteLocked(sessionID string) (bool, error) {
	removed := false

	err := os.Remove(s.sessionPath(sessionID))
	if err == nil {
		removed = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("removing session %s: %w", sessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.index[sessionID]; known {
		delete(s.index, sessionID)
		removed = true
		if err := s.persistIndexLocked(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// archiveAndDelete archives (when configured) and deletes one
// session under its writer lock. Archive failure aborts the delete.
func (s *Store) archiveAndDelete(sessionID string) (bool, error) {
	writer := s.writerFor(sessionID)
	writer.Lock()
	defer writer.Unlock()

	if s.archiver != nil {
		sess, err := s.readSession(sessionID)
		if err != nil {
			return false, err
		}
		// A nil session here means the file is missing or malformed:
		// nothing worth archiving, but the index entry still needs
		// removing below.
		if sess != nil {
			if _, err := s.archiver.Archive(sess); err != nil {
				return false, fmt.Errorf("archiving session %s: %w", sessionID, err)
			}
		}
	}

	return s.deleteLocked(sessionID)
}

// readSession loads and decodes one session file. Missing or
// malformed files yield (nil, nil). A checksum mismatch against the
// index is logged but not fatal: the file decoded, so its content is
// self-reporting; the mismatch usually means it was edited outside
// the store.
func (s *Store) readSession(sessionID string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("session file is malformed",
			"session_id", sessionID, "error", err)
		return nil, nil
	}

	s.mu.Lock()
	entry, known := s.index[sessionID]
	s.mu.Unlock()
	if known && entry.Checksum != "" && entry.Checksum != checksum(data) {
		s.logger.Warn("session file checksum mismatch",
			"session_id", sessionID)
	}

	return &sess, nil
}

// enforceCap prunes down to the cleanup target when the soft cap is
// exceeded. Called from Create after the new session is durable.
func (s *Store) enforceCap() {
	if s.maxSessions <= 0 {
		return
	}
	if s.Len() <= s.maxSessions {
		return
	}

	removed, err := s.CleanupOldSessions(s.cleanupTarget)
	if err != nil {
		s.logger.Warn("session cleanup after soft cap failed", "error", err)
	}
	if removed > 0 {
		s.logger.Info("pruned old sessions",
			"removed", removed, "cap", s.maxSessions, "target", s.cleanupTarget)
	}
}

// generateIDLocked picks a free session id for the given creation
// time. The caller holds mu, which makes the check-then-reserve in
// Create atomic against concurrent creates; the file existence check
// additionally covers leftover files the index does not know about.
func (s *Store) generateIDLocked(now time.Time) (string, error) {
	base := now.Format(idTimeFormat)

	for counter := 0; ; counter++ {
		id := base
		if counter > 0 {
			id = base + "_" + strconv.Itoa(counter)
		}

		if _, taken := s.index[id]; taken {
			continue
		}
		_, err := os.Stat(s.sessionPath(id))
		if errors.Is(err, fs.ErrNotExist) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking session id %s: %w", id, err)
		}
		// The file exists: keep counting.
	}
}

// writerFor returns the mutex serializing writes to one session id.
func (s *Store) writerFor(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	writer, ok := s.writers[sessionID]
	if !ok {
		writer = &sync.Mutex{}
		s.writers[sessionID] = writer
	}
	return writer
}

// loadIndexLocked populates the in-memory index from index.json,
// falling back to a directory scan when the file is missing, corrupt,
// or from an unknown version. The caller holds mu.
func (s *Store) loadIndexLocked() error {
	data, err := os.ReadFile(s.indexPath())
	if errors.Is(err, fs.ErrNotExist) {
		return s.rebuildIndexLocked(false)
	}
	if err != nil {
		return fmt.Errorf("reading session index: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.Warn("session index is corrupt, rebuilding from session files",
			"error", err)
		return s.rebuildIndexLocked(true)
	}
	if file.Version != indexVersion {
		s.logger.Warn("session index has unknown version, rebuilding from session files",
			"version", file.Version)
		return s.rebuildIndexLocked(true)
	}

	for _, entry := range file.Sessions {
		s.index[entry.ID] = entry
	}
	return nil
}

// rebuildIndexLocked reconstructs the index by reading every session
// file in the directory. Unreadable or malformed files are skipped
// with a warning. The rebuilt index is persisted when it replaces a
// corrupt one or when the scan found sessions; a brand-new empty
// store writes nothing.
func (s *Store) rebuildIndexLocked(replacingCorrupt bool) error {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("scanning session directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == indexFilename || !strings.HasSuffix(name, sessionExtension) {
			continue
		}
		id := strings.TrimSuffix(name, sessionExtension)

		data, err := os.ReadFile(filepath.Join(s.directory, name))
		if err != nil {
			s.logger.Warn("skipping unreadable session file", "file", name, "error", err)
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.logger.Warn("skipping malformed session file", "file", name, "error", err)
			continue
		}

		// The filename is authoritative for the id: it is the lookup
		// key for Load and Delete.
		summary := sess.Summary()
		summary.ID = id
		s.index[id] = IndexEntry{SessionSummary: summary, Checksum: checksum(data)}
	}

	if replacingCorrupt || len(s.index) > 0 {
		return s.persistIndexLocked()
	}
	return nil
}

// persistIndexLocked writes index.json atomically. The caller holds
// mu. Entries are sorted newest-first so the file is diffable and the
// common "recent sessions" read needs no client-side sort.
func (s *Store) persistIndexLocked() error {
	entries := make([]IndexEntry, 0, len(s.index))
	for _, entry := range s.index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return summaryAfter(entries[i].SessionSummary, entries[j].SessionSummary)
	})

	data, err := json.MarshalIndent(indexFile{Version: indexVersion, Sessions: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session index: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.indexPath(), data); err != nil {
		return fmt.Errorf("writing session index: %w", err)
	}
	return nil
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.directory, sessionID+sessionExtension)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.directory, indexFilename)
}

// sortSummaries orders summaries newest-first.
func sortSummaries(summaries []protocol.SessionSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaryAfter(summaries[i], summaries[j])
	})
}

// summaryAfter reports whether a sorts before b in newest-first
// order: UpdatedAt descending, ties broken by id descending (suffixed
// ids from same-second creation sort before their base, so the later
// creation lists first).
func summaryAfter(a, b protocol.SessionSummary) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}

// validateSessionID rejects ids that could escape the store
// directory. Checked before any path construction.
func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.Contains(sessionID, "..") || strings.ContainsAny(sessionID, `/\`) {
		return fmt.Errorf("session id %q contains path separators or parent references", sessionID)
	}
	return nil
}

// checksum computes the hex BLAKE3 keyed digest of a session file.
func checksum(data []byte) string {
	hasher, err := blake3.NewKeyed(checksumDomainKey[:])
	if err != nil {
		panic("session: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// writeFileAtomic writes data to path via a temporary file in the
// same directory: write, fsync, close, rename, then fsync the parent
// directory so the rename survives power loss. The file is created
// with mode 0600.
func writeFileAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}
