// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/GeneticxCln/OpenAgent-Terminal/bridge"
	"github.com/GeneticxCln/OpenAgent-Terminal/history"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/config"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/process"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/runstate"
	"github.com/GeneticxCln/OpenAgent-Terminal/lib/version"
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
		jsonMode    bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("openagent-client", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "backend Unix socket (default: $OPENAGENT_SOCKET, then the backend's run state file)")
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (for the history file location)")
	flagSet.BoolVar(&jsonMode, "json", false, "print received JSON-RPC frames raw on stdout instead of rendering them")
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
		version.Print("openagent-client")
		return nil
	}

	args := flagSet.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logger := newLogger()

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

	socket, err := discoverSocket(socketPath)
	if err != nil {
		return err
	}

	client, err := dial(socket)
	if err != nil {
		return err
	}
	defer client.Close()

	stdinIsTerminal := term.IsTerminal(int(os.Stdin.Fd()))
	stdoutIsTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	interactive := stdinIsTerminal && stdoutIsTerminal && !jsonMode

	// Prompt history only records lines a person typed; piped and
	// scripted input stays out of the history file.
	var input lineReader
	if interactive {
		hist, err := history.Open(history.Config{
			Path:       cfg.History.File,
			MaxEntries: cfg.History.MaxEntries,
			Logger:     logger,
		})
		if err != nil {
			logger.Warn("history unavailable", "error", err)
			hist = nil
		}
		input = newTerminalReader(hist)
	} else {
		input = newPipeReader()
	}

	r := &repl{
		client:  client,
		input:   input,
		render:  newRenderer(jsonMode, stdoutIsTerminal),
		logger:  logger,
		pending: make(map[int64]requestKind),
	}
	return r.run()
}

// discoverSocket resolves the backend socket path: the flag wins, then
// the environment, then the state file of a running backend.
func discoverSocket(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(bridge.SocketEnv); env != "" {
		return env, nil
	}

	state, alive, err := runstate.Check(runstate.DefaultPath())
	if err != nil {
		return "", fmt.Errorf("reading backend run state: %w", err)
	}
	if alive {
		return state.Socket, nil
	}
	return "", fmt.Errorf("no running backend found: start openagent-backend, or pass --socket / set %s", bridge.SocketEnv)
}

// newLogger builds the client's stderr logger: human-readable text on
// a terminal, JSON when stderr is piped.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `OpenAgent-Terminal client — interactive driver for the backend socket.

Type a message and press Enter to query the agent; the response streams
back token by token, with code blocks syntax-highlighted. Tool requests
that need consent show a preview and prompt y/N. Ctrl+C during a
response cancels it; Ctrl+D or /quit exits.

Commands:
  /sessions [query]   list stored sessions (fuzzy-filtered by query)
  /load <id>          switch to a stored session
  /export [id]        export a session as Markdown to a file
  /delete <id>        delete a stored session
  /quit               exit

Usage:
  openagent-client [flags]

Examples:
  # Connect to the running backend (discovered via its state file)
  openagent-client

  # Explicit socket, raw frames for scripting
  openagent-client --socket /tmp/openagent-test.sock --json

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
