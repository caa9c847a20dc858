// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat sessions.
//
// Two backends implement Store:
//
//   - JSONStore keeps one indented JSON file per session.
//   - SQLiteStore keeps sessions and messages in a single SQLite database
//     (pure Go driver, no cgo).
//
// Messages are append-only, so SQLiteStore writes only the messages it has
// not seen yet. Both backends prune the least recently modified sessions
// beyond MaxSessions.
package storage
