// Copyright 2026 The OpenAgent-Terminal Authors
// SPDX-License-Identifier: MIT

// Package codec provides the project's standard CBOR encoding
// configuration.
//
// Two serialization formats are used, with a clear boundary:
//
//   - JSON for external interfaces: the newline-delimited socket
//     protocol, live session files, and index.json. Everything a user
//     or front-end might read stays human-inspectable.
//   - CBOR for internal binary payloads: archived session snapshots
//     written by the session store's prune path, where compactness
//     matters and nothing reads the bytes except Unarchive.
//
// This package provides the shared encoding and decoding modes so the
// archive reader and writer encode identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Session types carry `json` struct tags only; fxamacker/cbor v2 reads
// json tags as fallback when cbor tags are absent, so a single tag set
// controls field naming and omitempty for both formats.
package codec
