// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the backend.
type Config struct {
	// Socket is the Unix socket path to serve on. Empty selects the
	// runtime default: $XDG_RUNTIME_DIR/openagent-terminal-<pid>.sock,
	// falling back to the system temp directory.
	Socket string `yaml:"socket"`

	// Sessions configures conversation persistence.
	Sessions SessionsConfig `yaml:"sessions"`

	// Tools configures the tool approval engine.
	Tools ToolsConfig `yaml:"tools"`

	// Agent configures the simulated agent.
	Agent AgentConfig `yaml:"agent"`

	// History configures the client's command history file.
	History HistoryConfig `yaml:"history"`
}

// SessionsConfig configures the session store.
type SessionsConfig struct {
	// Dir is the sessions directory. Each session is one JSON file
	// here, next to index.json. Default:
	// ~/.config/openagent-terminal/sessions
	Dir string `yaml:"dir"`

	// MaxSessions is the soft cap on stored sessions. When a create
	// pushes the count past this, the oldest sessions are pruned down
	// to CleanupTarget. Default: 1000.
	MaxSessions int `yaml:"max_sessions"`

	// CleanupTarget is the session count pruning reduces to when the
	// soft cap trips. Default: 800.
	CleanupTarget int `yaml:"cleanup_target"`

	// ArchiveDir, when non-empty, receives a compressed snapshot of
	// every pruned session before its live file is deleted. Empty
	// disables archiving (pruned sessions are simply removed).
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveCompression selects the archive codec: "zstd" (default),
	// "lz4", or "none".
	ArchiveCompression string `yaml:"archive_compression"`
}

// ToolsConfig configures the tool approval engine.
type ToolsConfig struct {
	// Execute enables real tool execution. Default false: tools run
	// in simulated mode with no filesystem or process side effects.
	Execute bool `yaml:"execute"`

	// ApprovalTimeout bounds how long a pending approval may wait
	// before it resolves as rejected. Zero (the default) means pending
	// approvals never expire.
	ApprovalTimeout Duration `yaml:"approval_timeout"`
}

// AgentConfig configures the simulated agent.
type AgentConfig struct {
	// Script is the path to a JSONC scenario file replacing the
	// built-in canned responses. Empty uses the built-ins.
	Script string `yaml:"script"`

	// TokenDelay is the pause between streamed tokens, giving
	// front-ends a visible typing cadence. Default: 50ms.
	TokenDelay Duration `yaml:"token_delay"`
}

// Duration is a time.Duration that unmarshals from YAML duration
// strings such as "30s" or "50ms". Callers convert with
// time.Duration(d).
type Duration time.Duration

// UnmarshalYAML implements custom unmarshaling because yaml.v3 has no
// native duration support.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// HistoryConfig configures the client's prompt history.
type HistoryConfig struct {
	// File is the history file path. Default:
	// ~/.config/openagent-terminal/history
	File string `yaml:"file"`

	// MaxEntries bounds the on-disk history; older entries are pruned
	// on save. Default: 10000.
	MaxEntries int `yaml:"max_entries"`
}

// Default returns the default configuration. These are complete,
// usable values — the config file is optional and overrides them.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "openagent-terminal")

	return &Config{
		Socket: "",
		Sessions: SessionsConfig{
			Dir:                filepath.Join(configDir, "sessions"),
			MaxSessions:        1000,
			CleanupTarget:      800,
			ArchiveDir:         "",
			ArchiveCompression: "zstd",
		},
		Tools: ToolsConfig{
			Execute:         false,
			ApprovalTimeout: 0,
		},
		Agent: AgentConfig{
			Script:     "",
			TokenDelay: Duration(50 * time.Millisecond),
		},
		History: HistoryConfig{
			File:       filepath.Join(configDir, "history"),
			MaxEntries: 10000,
		},
	}
}

// Load loads configuration from the OPENAGENT_CONFIG environment
// variable, falling back to Default() when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("OPENAGENT_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging over
// Default(). Environment variables do not override config values; the
// only expansion performed is ${VAR} / ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Socket = expandVars(c.Socket, vars)
	c.Sessions.Dir = expandVars(c.Sessions.Dir, vars)
	c.Sessions.ArchiveDir = expandVars(c.Sessions.ArchiveDir, vars)
	c.Agent.Script = expandVars(c.Agent.Script, vars)
	c.History.File = expandVars(c.History.File, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Sessions.Dir == "" {
		errs = append(errs, fmt.Errorf("sessions.dir is required"))
	}
	if c.Sessions.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions must be positive"))
	}
	if c.Sessions.CleanupTarget <= 0 {
		errs = append(errs, fmt.Errorf("sessions.cleanup_target must be positive"))
	}
	if c.Sessions.CleanupTarget > c.Sessions.MaxSessions {
		errs = append(errs, fmt.Errorf("sessions.cleanup_target (%d) must not exceed sessions.max_sessions (%d)",
			c.Sessions.CleanupTarget, c.Sessions.MaxSessions))
	}

	switch c.Sessions.ArchiveCompression {
	case "zstd", "lz4", "none":
	default:
		errs = append(errs, fmt.Errorf("sessions.archive_compression must be one of: zstd, lz4, none"))
	}

	if c.Tools.ApprovalTimeout < 0 {
		errs = append(errs, fmt.Errorf("tools.approval_timeout must not be negative"))
	}
	if c.Agent.TokenDelay < 0 {
		errs = append(errs, fmt.Errorf("agent.token_delay must not be negative"))
	}
	if c.History.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("history.max_entries must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured directories if they don't exist.
// Session and archive directories are owner-only: they hold
// conversation content.
func (c *Config) EnsurePaths() error {
	ownerOnly := []string{
		c.Sessions.Dir,
		c.Sessions.ArchiveDir,
	}
	if c.History.File != "" {
		ownerOnly = append(ownerOnly, filepath.Dir(c.History.File))
	}

	for _, path := range ownerOnly {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
