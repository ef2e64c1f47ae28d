// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the client's terminal output.
// All colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
//
// The fields cover both universal chrome (text, borders, help) and
// semantic categories that recur in a conversation: speaker roles,
// tool risk levels, and execution outcomes.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Speaker prefixes in the conversation transcript.
	UserPrefix      lipgloss.Color
	AssistantPrefix lipgloss.Color

	// Risk colors for tool approval prompts (low, medium, high).
	RiskLow    lipgloss.Color
	RiskMedium lipgloss.Color
	RiskHigh   lipgloss.Color

	// Tool execution outcomes.
	StatusSuccess lipgloss.Color
	StatusFailure lipgloss.Color
	StatusPending lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Search and filter match highlighting in the session picker.
	SearchHighlightBackground lipgloss.Color

	// Autolinked references.
	LinkForeground lipgloss.Color
}

// RiskColor returns the color for a tool risk level string. Critical
// shares the high-risk color; unknown values render faint.
func (theme Theme) RiskColor(risk string) lipgloss.Color {
	switch risk {
	case "low":
		return theme.RiskLow
	case "medium":
		return theme.RiskMedium
	case "high", "critical":
		return theme.RiskHigh
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed for
// 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	UserPrefix:      lipgloss.Color("75"),  // blue
	AssistantPrefix: lipgloss.Color("114"), // green

	RiskLow:    lipgloss.Color("114"), // green
	RiskMedium: lipgloss.Color("220"), // yellow/amber
	RiskHigh:   lipgloss.Color("196"), // red

	StatusSuccess: lipgloss.Color("114"), // green
	StatusFailure: lipgloss.Color("196"), // red
	StatusPending: lipgloss.Color("220"), // yellow/amber

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	SearchHighlightBackground: lipgloss.Color("58"), // dark amber

	LinkForeground: lipgloss.Color("75"), // blue (matches UserPrefix)
}
