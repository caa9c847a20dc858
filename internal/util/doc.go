// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by colossus packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - WriteJSON: indent-encode a value and write it atomically
//
// Text:
//   - Snippet: rune-safe prefix with a trailing "..." when cut
//   - TruncateRunes: rune-safe prefix without a marker
//   - TruncateWidth: display-width aware truncation for terminal columns
//   - OneLine: collapse whitespace for list views
//
// # Usage
//
//	title := util.Snippet(question, 25)
//	err := util.WriteJSON(path, session, 0600)
package util
