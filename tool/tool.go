// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package tool

import "github.com/GeneticxCln/OpenAgent-Terminal/protocol"

// Registered tool names. Executors switch on these; anything else
// reaching an Executor reports "not implemented" in-band.
const (
	FileRead      = "file_read"
	FileWrite     = "file_write"
	FileDelete    = "file_delete"
	ShellCommand  = "shell_command"
	DirectoryList = "directory_list"
)

// Tool describes one registered tool: what it does, how dangerous it
// is, and whether the user must approve each invocation.
type Tool struct {
	Name        string
	Description string

	// RiskLevel is one of the protocol risk constants (low, medium,
	// high, critical). Clients use it to color the approval prompt.
	RiskLevel string

	// RequiresApproval is false only for read-only tools, which
	// execute without a round-trip to the user.
	RequiresApproval bool
}

// registerTools builds the fixed registry. Read-only tools are
// auto-approved; anything that writes, deletes, or spawns a process
// requires consent.
func registerTools() map[string]Tool {
	return map[string]Tool{
		FileRead: {
			Name:             FileRead,
			Description:      "Read contents of a file",
			RiskLevel:        protocol.RiskLow,
			RequiresApproval: false,
		},
		FileWrite: {
			Name:             FileWrite,
			Description:      "Write content to a file",
			RiskLevel:        protocol.RiskMedium,
			RequiresApproval: true,
		},
		FileDelete: {
			Name:             FileDelete,
			Description:      "Delete a file",
			RiskLevel:        protocol.RiskHigh,
			RequiresApproval: true,
		},
		ShellCommand: {
			Name:             ShellCommand,
			Description:      "Execute a shell command",
			RiskLevel:        protocol.RiskHigh,
			RequiresApproval: true,
		},
		DirectoryList: {
			Name:             DirectoryList,
			Description:      "List files in a directory",
			RiskLevel:        protocol.RiskLow,
			RequiresApproval: false,
		},
	}
}
