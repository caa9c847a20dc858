// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream runs one request, stream and finalize cycle against a
// chat-completion backend.
//
// Each delta is appended to a running buffer, folded through a
// think.Splitter and handed to the turn's render callback in arrival order.
// At the end of the stream the turn resolves to exactly one Result:
//
//   - Completed: usage is recorded and the raw text is appended to the log.
//   - Cancelled: partial text is kept and marked [STOPPED]; an empty turn
//     leaves no trace.
//   - Failed: partial text is kept and marked [CONNECTION LOST]; an empty turn
//     resolves to the OFFLINE sentinel.
//
// Run never returns an error, so a failing model cannot abort a council.
package stream
