// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package session provides durable, crash-safe persistence of
// conversations: one JSON file per session plus a single index file
// that supports listing and sorting without reading every session.
//
// Layout under the store directory (mode 0700, files 0600):
//
//	<dir>/<session_id>.json   full session: metadata + messages
//	<dir>/index.json          summaries of every known session
//
// All writes go through write-to-temp-then-atomic-rename, so a crash
// mid-write never corrupts the previous durable copy. The index is a
// cache: when it is missing or corrupt the store rebuilds it by
// scanning the session files instead of failing startup.
//
// Session ids are derived from the creation timestamp
// (YYYY-MM-DD_HHMMSS, with a numeric suffix on collision) and double
// as filenames, so every id is validated against path traversal
// before it touches the filesystem.
//
// Old sessions beyond a configured cap can be packed into compressed
// archive files (see Archiver) before deletion, and restored later.
package session
