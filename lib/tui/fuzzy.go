// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tui

import (
	"sort"
	"strings"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching a pattern against a text.
// A zero Score means no match; Positions are rune indices into the
// text, sorted ascending, for highlight rendering.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// FuzzyMatch runs fzf's FuzzyMatchV2 algorithm against a single text.
// Matching is case-insensitive: the pattern is lowercased here and the
// algorithm folds the text. The slab may be nil; passing a reused
// *util.Slab avoids per-call allocations when matching many texts in a
// loop.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}

	// FuzzyMatchV2 expects a lowercase pattern for case-insensitive
	// matching; it folds the text side itself.
	lowered := make([]rune, len(pattern))
	for index, r := range pattern {
		lowered[index] = unicode.ToLower(r)
	}

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}

	match := FuzzyResult{Score: result.Score}
	if positions != nil {
		match.Positions = *positions
		// The algorithm reports positions walking backwards.
		sort.Ints(match.Positions)
	}
	return match
}

// HighlightPositions re-renders text with the matched rune positions
// drawn on the highlight background. Positions must be sorted
// ascending, as returned by FuzzyMatch.
func HighlightPositions(text string, positions []int, theme Theme) string {
	if len(positions) == 0 {
		return text
	}

	matched := make(map[int]bool, len(positions))
	for _, position := range positions {
		matched[position] = true
	}

	highlight := styleRenderer().NewStyle().Background(theme.SearchHighlightBackground)

	var output strings.Builder
	for index, r := range []rune(text) {
		if matched[index] {
			output.WriteString(highlight.Render(string(r)))
		} else {
			output.WriteRune(r)
		}
	}
	return output.String()
}
