// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need unique identifiers for query ids, session titles, or
// message bodies that must be distinguishable across subtests.
//
//	queryID := testutil.UniqueID("query")   // "query-1", "query-2", ...
//	title := testutil.UniqueID("session")   // "session-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
