// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package tui provides terminal presentation helpers for the
// OpenAgent-Terminal client: a color theme, an ANSI markdown renderer
// with syntax-highlighted code blocks, and a fuzzy matcher for the
// session picker.
//
// The client is line-oriented rather than full-screen; these helpers
// style individual lines and blocks as they are printed. Rendering is
// forced to the ANSI 256-color profile so output is deterministic in
// tests and consistent across terminals.
package tui
