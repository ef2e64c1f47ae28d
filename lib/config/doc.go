// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package config provides YAML configuration loading for the
// OpenAgent-Terminal backend.
//
// Configuration is loaded from a single file specified by either the
// OPENAGENT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). The file is optional: when neither is given,
// [Default] applies unchanged. Flags parsed by the binary override
// file values, so precedence is flags, then file, then defaults.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Socket, Sessions, Tools, Agent, History
//   - [Default] -- returns a complete, usable Config
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other OpenAgent-Terminal packages.
package config
