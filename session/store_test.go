// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GeneticxCln/OpenAgent-Terminal/lib/clock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(testStart)
	store, err := NewStore(StoreConfig{
		Directory: t.TempDir(),
		Clock:     fake,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, fake
}

func TestCreateGeneratesTimestampID(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID != "2026-03-14_093000" {
		t.Errorf("session id = %q, want %q", sess.ID, "2026-03-14_093000")
	}
	if !sess.CreatedAt.Equal(testStart) {
		t.Errorf("CreatedAt = %v, want %v", sess.CreatedAt, testStart)
	}
}

func TestCreateSameSecondGetsSuffix(t *testing.T) {
	store, _ := newTestStore(t)

	want := []string{"2026-03-14_093000", "2026-03-14_093000_1", "2026-03-14_093000_2"}
	for i, wantID := range want {
		sess, err := store.Create("")
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if sess.ID != wantID {
			t.Errorf("session %d id = %q, want %q", i, sess.ID, wantID)
		}
	}
}

func TestCreateAvoidsLeftoverFileCollision(t *testing.T) {
	store, _ := newTestStore(t)

	// A session file the index does not know about (crash leftover,
	// manual copy) must not be overwritten by a new session.
	leftover := filepath.Join(store.directory, "2026-03-14_093000.json")
	if err := os.WriteFile(leftover, []byte(`{"session_id":"2026-03-14_093000","messages":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID != "2026-03-14_093000_1" {
		t.Errorf("session id = %q, want %q", sess.ID, "2026-03-14_093000_1")
	}
}

func TestCreateWritesSessionFileAndIndex(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Create("My Session")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, path := range []string{
		filepath.Join(store.directory, sess.ID+".json"),
		filepath.Join(store.directory, "index.json"),
	} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("expected file %s: %v", path, err)
		}
		if mode := info.Mode().Perm(); mode != 0o600 {
			t.Errorf("%s permissions = %o, want 0600", path, mode)
		}
	}

	summaries := store.List(0)
	if len(summaries) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(summaries))
	}
	if summaries[0].Title != "My Session" {
		t.Errorf("listed title = %q, want %q", summaries[0].Title, "My Session")
	}
}

func TestAppendMessageUpdatesMetadataAndPersists(t *testing.T) {
	store, fake := newTestStore(t)

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fake.Advance(time.Minute)
	updated, err := store.AppendMessage(sess.ID, userMessage("How do I profile a Go program?", 12))
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if updated.Title != "How do I profile a Go program?" {
		t.Errorf("title = %q", updated.Title)
	}
	if !updated.UpdatedAt.Equal(testStart.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, testStart.Add(time.Minute))
	}

	// The update must be durable, not just in the returned value.
	reloaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded == nil {
		t.Fatal("Load returned nil for existing session")
	}
	if len(reloaded.Messages) != 1 {
		t.Fatalf("reloaded message count = %d, want 1", len(reloaded.Messages))
	}
	if reloaded.Messages[0].Content != "How do I profile a Go program?" {
		t.Errorf("reloaded content = %q", reloaded.Messages[0].Content)
	}

	summaries := store.List(0)
	if summaries[0].MessageCount != 1 || summaries[0].TotalTokens != 12 {
		t.Errorf("index entry = {count %d, tokens %d}, want {1, 12}",
			summaries[0].MessageCount, summaries[0].TotalTokens)
	}
}

func TestAppendMessageMissingSession(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AppendMessage("2099-01-01_000000", userMessage("hello", 0))
	if err == nil {
		t.Fatal("AppendMessage to missing session should fail")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want mention of not found", err)
	}
}

func TestAppendMessageConcurrentSameSession(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const writers = 8
	var group sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			_, err := store.AppendMessage(sess.ID, userMessage("concurrent append", 3))
			errs <- err
		}()
	}
	group.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	reloaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(reloaded.Messages) != writers {
		t.Errorf("message count = %d, want %d (lost updates)", len(reloaded.Messages), writers)
	}
	if got := reloaded.TotalTokens(); got != writers*3 {
		t.Errorf("total tokens = %d, want %d", got, writers*3)
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Load("2099-01-01_000000")
	if err != nil {
		t.Fatalf("Load of missing session errored: %v", err)
	}
	if sess != nil {
		t.Errorf("Load of missing session = %+v, want nil", sess)
	}
}

func TestLoadMalformedReturnsNil(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	path := filepath.Join(store.directory, created.ID+".json")
	if err := os.WriteFile(path, []byte("{this is not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	sess, err := store.Load(created.ID)
	if err != nil {
		t.Fatalf("Load of malformed session errored: %v", err)
	}
	if sess != nil {
		t.Errorf("Load of malformed session = %+v, want nil", sess)
	}
}

func TestSessionIDValidation(t *testing.T) {
	store, _ := newTestStore(t)

	bad := []string{
		"",
		"../escape",
		"nested/id",
		`back\slash`,
		"..",
		"prefix/../../etc/passwd",
	}

	for _, id := range bad {
		t.Run(id, func(t *testing.T) {
			if _, err := store.Load(id); err == nil {
				t.Errorf("Load(%q) accepted invalid id", id)
			}
			if _, err := store.Delete(id); err == nil {
				t.Errorf("Delete(%q) accepted invalid id", id)
			}
			if _, err := store.AppendMessage(id, userMessage("x", 0)); err == nil {
				t.Errorf("AppendMessage(%q) accepted invalid id", id)
			}
		})
	}
}

func TestListSortedByUpdatedAtDescending(t *testing.T) {
	store, fake := newTestStore(t)

	first, _ := store.Create("first")
	fake.Advance(time.Minute)
	second, _ := store.Create("second")
	fake.Advance(time.Minute)
	third, _ := store.Create("third")

	// Touch the oldest so it becomes the most recently updated.
	fake.Advance(time.Minute)
	if _, err := store.AppendMessage(first.ID, userMessage("bump", 0)); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	summaries := store.List(0)
	if len(summaries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(summaries))
	}
	wantOrder := []string{first.ID, third.ID, second.ID}
	for i, want := range wantOrder {
		if summaries[i].ID != want {
			t.Errorf("List[%d] = %s, want %s", i, summaries[i].ID, want)
		}
	}

	limited := store.List(2)
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d entries", len(limited))
	}
	if limited[0].ID != first.ID || limited[1].ID != third.ID {
		t.Errorf("List(2) = [%s, %s]", limited[0].ID, limited[1].ID)
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	removed, err := store.Delete(sess.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("Delete returned false for existing session")
	}

	if _, err := os.Stat(filepath.Join(store.directory, sess.ID+".json")); !os.IsNotExist(err) {
		t.Errorf("session file still present after delete: %v", err)
	}
	if len(store.List(0)) != 0 {
		t.Error("index still lists deleted session")
	}

	// Idempotent: a second delete is not an error.
	removed, err = store.Delete(sess.ID)
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if removed {
		t.Error("second Delete reported removal")
	}
}

func TestCleanupOldSessionsRemovesOldest(t *testing.T) {
	store, fake := newTestStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		sess, err := store.Create("")
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		ids = append(ids, sess.ID)
		fake.Advance(time.Minute)
	}

	removed, err := store.CleanupOldSessions(2)
	if err != nil {
		t.Fatalf("CleanupOldSessions failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	summaries := store.List(0)
	if len(summaries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(summaries))
	}
	if summaries[0].ID != ids[4] || summaries[1].ID != ids[3] {
		t.Errorf("survivors = [%s, %s], want the two newest [%s, %s]",
			summaries[0].ID, summaries[1].ID, ids[4], ids[3])
	}

	// Already under the cap: nothing to do.
	removed, err = store.CleanupOldSessions(2)
	if err != nil {
		t.Fatalf("second CleanupOldSessions failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("second cleanup removed %d, want 0", removed)
	}
}

func TestCreateEnforcesSoftCap(t *testing.T) {
	fake := clock.Fake(testStart)
	store, err := NewStore(StoreConfig{
		Directory:     t.TempDir(),
		MaxSessions:   3,
		CleanupTarget: 2,
		Clock:         fake,
		Logger:        discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	var ids []string
	for i := 0; i < 4; i++ {
		sess, err := store.Create("")
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		ids = append(ids, sess.ID)
		fake.Advance(time.Minute)
	}

	// The fourth create pushed the count past the cap of 3, pruning
	// down to the target of 2.
	if got := store.Len(); got != 2 {
		t.Fatalf("store has %d sessions after cap, want 2", got)
	}
	summaries := store.List(0)
	if summaries[0].ID != ids[3] || summaries[1].ID != ids[2] {
		t.Errorf("survivors = [%s, %s], want [%s, %s]",
			summaries[0].ID, summaries[1].ID, ids[3], ids[2])
	}
}

func TestIndexRebuiltWhenCorrupt(t *testing.T) {
	fake := clock.Fake(testStart)
	directory := t.TempDir()

	store, err := NewStore(StoreConfig{Directory: directory, Clock: fake, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	first, _ := store.Create("first")
	fake.Advance(time.Minute)
	if _, err := store.AppendMessage(first.ID, userMessage("hello there", 4)); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	fake.Advance(time.Minute)
	second, _ := store.Create("second")

	indexPath := filepath.Join(directory, "index.json")
	if err := os.WriteFile(indexPath, []byte("{{{ corrupt"), 0o600); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(StoreConfig{Directory: directory, Clock: fake, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewStore with corrupt index failed: %v", err)
	}

	summaries := reopened.List(0)
	if len(summaries) != 2 {
		t.Fatalf("rebuilt index has %d entries, want 2", len(summaries))
	}
	if summaries[0].ID != second.ID || summaries[1].ID != first.ID {
		t.Errorf("rebuilt order = [%s, %s]", summaries[0].ID, summaries[1].ID)
	}
	if summaries[1].MessageCount != 1 || summaries[1].TotalTokens != 4 {
		t.Errorf("rebuilt entry = {count %d, tokens %d}, want {1, 4}",
			summaries[1].MessageCount, summaries[1].TotalTokens)
	}

	// The healed index must be durable.
	data, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("reading healed index: %v", err)
	}
	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("healed index is not valid JSON: %v", err)
	}
	if file.Version != indexVersion {
		t.Errorf("healed index version = %q, want %q", file.Version, indexVersion)
	}
	if len(file.Sessions) != 2 {
		t.Errorf("healed index has %d sessions, want 2", len(file.Sessions))
	}
}

func TestIndexRebuiltWhenMissing(t *testing.T) {
	fake := clock.Fake(testStart)
	directory := t.TempDir()

	store, err := NewStore(StoreConfig{Directory: directory, Clock: fake, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sess, _ := store.Create("only")
	if err := os.Remove(filepath.Join(directory, "index.json")); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(StoreConfig{Directory: directory, Clock: fake, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewStore without index failed: %v", err)
	}
	summaries := reopened.List(0)
	if len(summaries) != 1 || summaries[0].ID != sess.ID {
		t.Errorf("rebuilt index = %+v, want one entry for %s", summaries, sess.ID)
	}
}

func TestIndexRebuildSkipsMalformedSessionFiles(t *testing.T) {
	fake := clock.Fake(testStart)
	directory := t.TempDir()

	store, err := NewStore(StoreConfig{Directory: directory, Clock: fake, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	good, _ := store.Create("good")

	if err := os.WriteFile(filepath.Join(directory, "2026-01-01_000000.json"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(directory, "index.json")); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(StoreConfig{Directory: directory, Clock: fake, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	summaries := reopened.List(0)
	if len(summaries) != 1 || summaries[0].ID != good.ID {
		t.Errorf("rebuilt index = %+v, want only %s", summaries, good.ID)
	}
}

func TestSaveUpsertsUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	sess := New("2026-03-14_120000", "Manual", testStart)
	sess.AddMessage(userMessage("imported message", 2), testStart)

	if err := store.Save(sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil || loaded.Title != "Manual" {
		t.Fatalf("Load = %+v, want the saved session", loaded)
	}
	summaries := store.List(0)
	if len(summaries) != 1 || summaries[0].ID != sess.ID {
		t.Errorf("index = %+v, want entry for %s", summaries, sess.ID)
	}
}

func TestIndexRecordsChecksum(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.directory, "index.json"))
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("decoding index: %v", err)
	}
	if len(file.Sessions) != 1 {
		t.Fatalf("index has %d sessions", len(file.Sessions))
	}

	sessionBytes, err := os.ReadFile(filepath.Join(store.directory, sess.ID+".json"))
	if err != nil {
		t.Fatal(err)
	}
	want := checksum(sessionBytes)
	if file.Sessions[0].Checksum != want {
		t.Errorf("index checksum = %q, want %q", file.Sessions[0].Checksum, want)
	}
	if len(want) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(want))
	}
}

func TestNoTemporaryFilesLeftBehind(t *testing.T) {
	store, fake := newTestStore(t)

	sess, err := store.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	fake.Advance(time.Second)
	if _, err := store.AppendMessage(sess.ID, userMessage("hi", 1)); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if _, err := store.Delete(sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	leftovers, err := filepath.Glob(filepath.Join(store.directory, "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}
