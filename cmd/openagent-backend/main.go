// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// openagent-backend is the AI backend daemon for OpenAgent-Terminal.
// It serves newline-delimited JSON-RPC 2.0 on a Unix domain socket:
// the terminal front-end connects, sends agent.query, and receives
// streamed token and block notifications, tool approval requests, and
// a completion frame. Sessions persist as JSON files under the
// configured sessions directory and survive a crash of either side.
//
// The agent is simulated: responses come from a built-in table or a
// JSONC scenario script (--agent-script). Tool calls run through the
// approval engine without side effects unless --execute enables real
// filesystem and shell execution.
//
// On startup the backend records its PID and socket path in a state
// file ($XDG_RUNTIME_DIR/openagent-terminal/state.json) so clients
// can discover the socket without flags. A second backend refuses to
// start while the file names a live process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/GeneticxCln/OpenAgent-Terminal/agent"
	"github.com/GeneticxCln/OpenAgent-Terminal/bridge"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/config"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/process"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/runstate"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/version"
	"github.com/GeneticxCln/OpenAgent-Terminal/session"
	"github.com/GeneticxCln/OpenAgent-Terminal/tool"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		socketPath  string
		configPath  string
		sessionsDir string
		agentScript string
		debug       bool
		execute     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("openagent-backend", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket path to serve on (default: $XDG_RUNTIME_DIR/openagent-terminal-<pid>.sock)")
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $OPENAGENT_CONFIG, then built-in defaults)")
	flagSet.StringVar(&sessionsDir, "sessions-dir", "", "directory for persisted sessions (overrides config)")
	flagSet.StringVar(&agentScript, "agent-script", "", "JSONC scenario file replacing the built-in agent responses")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	flagSet.BoolVar(&execute, "execute", false, "execute approved tools for real instead of simulating them")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if showVersion {
		version.Print("openagent-backend")
		return nil
	}

	args := flagSet.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	// Load configuration: --config wins over $OPENAGENT_CONFIG, and
	// individual flags win over the file.
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Socket = socketPath
	}
	if sessionsDir != "" {
		cfg.Sessions.Dir = sessionsDir
	}
	if agentScript != "" {
		cfg.Agent.Script = agentScript
	}
	if execute {
		cfg.Tools.Execute = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Refuse to double-start. A live state file means another backend
	// owns a socket; a stale one is left over from a crash and is
	// overwritten below.
	statePath := runstate.DefaultPath()
	if existing, alive, err := runstate.Check(statePath); err != nil {
		return fmt.Errorf("checking run state: %w", err)
	} else if alive {
		return fmt.Errorf("backend already running (pid %d, socket %s); stop it or remove %s",
			existing.PID, existing.Socket, statePath)
	}

	socket := bridge.ResolveSocketPath(cfg.Socket)

	var archiver *session.Archiver
	if cfg.Sessions.ArchiveDir != "" {
		compression, err := session.ParseCompressionTag(cfg.Sessions.ArchiveCompression)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		archiver, err = session.NewArchiver(cfg.Sessions.ArchiveDir, compression)
		if err != nil {
			return fmt.Errorf("opening archive directory: %w", err)
		}
		logger.Info("session archiving enabled",
			"dir", cfg.Sessions.ArchiveDir,
			"compression", cfg.Sessions.ArchiveCompression)
	}

	store, err := session.NewStore(session.StoreConfig{
		Directory:     cfg.Sessions.Dir,
		MaxSessions:   cfg.Sessions.MaxSessions,
		CleanupTarget: cfg.Sessions.CleanupTarget,
		Archiver:      archiver,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	logger.Info("session store ready", "dir", cfg.Sessions.Dir)

	var executor tool.Executor = tool.Simulated{}
	if cfg.Tools.Execute {
		executor = tool.Real{}
		logger.Warn("real tool execution enabled: approved tools will modify the filesystem and run shell commands")
	}
	engine, err := tool.NewEngine(tool.EngineConfig{
		Executor:        executor,
		ApprovalTimeout: time.Duration(cfg.Tools.ApprovalTimeout),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	var scenarios []agent.Scenario
	if cfg.Agent.Script != "" {
		scenarios, err = agent.LoadScenarios(cfg.Agent.Script)
		if err != nil {
			return fmt.Errorf("loading agent script: %w", err)
		}
		logger.Info("agent script loaded",
			"path", cfg.Agent.Script,
			"scenarios", len(scenarios))
	}
	simulated := agent.NewSimulated(agent.SimulatedConfig{
		TokenDelay: time.Duration(cfg.Agent.TokenDelay),
		Scenarios:  scenarios,
	})

	server, err := bridge.New(bridge.Config{
		SocketPath: socket,
		Agent:      simulated,
		Engine:     engine,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}

	// Record this instance for client discovery. Failure is not fatal:
	// clients can still connect with --socket.
	if err := os.MkdirAll(filepath.Dir(statePath), 0700); err != nil {
		logger.Warn("creating run state directory failed", "error", err)
	} else if err := runstate.Write(statePath, runstate.State{
		PID:         os.Getpid(),
		Socket:      socket,
		SessionsDir: cfg.Sessions.Dir,
		Version:     version.Short(),
		StartedAt:   time.Now().UTC(),
	}); err != nil {
		logger.Warn("writing run state failed", "path", statePath, "error", err)
	}

	// Serve until SIGINT or SIGTERM. Stop drains every connection and
	// in-flight stream before returning, so transcripts started before
	// the signal still reach the session store.
	<-ctx.Done()
	logger.Info("shutting down")
	server.Stop()

	if err := runstate.Clear(statePath); err != nil {
		logger.Warn("clearing run state failed", "path", statePath, "error", err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `OpenAgent-Terminal backend — AI agent daemon serving JSON-RPC over a Unix socket.

The backend waits for a front-end to connect, streams agent responses
as token and block notifications, and mediates tool execution through
user approval. Conversations persist under the sessions directory and
can be listed, reloaded, exported, and deleted by any client.

By default tools run in simulated mode: file writes and deletes are
described, not performed, and only allowlisted shell commands execute.
Pass --execute to perform approved operations for real.

Usage:
  openagent-backend [flags]

Examples:
  # Serve on the default socket with built-in responses
  openagent-backend

  # Explicit socket and a scenario script, verbose logs
  openagent-backend --socket /tmp/openagent-test.sock --agent-script demo.jsonc --debug

  # Real tool execution (file writes, deletes, shell commands)
  openagent-backend --execute

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
