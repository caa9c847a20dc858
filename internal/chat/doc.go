// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the explicit state of one chat client: the current
// session, the mode toggles, the persona list and the collaborators that
// answer a question.
//
// A Context routes each question to a single streamed turn or to the
// council, optionally after a research phase, and persists the session after
// every change. Front ends (REPL, TUI, HTTP server) own a Context each and
// drive it from one goroutine at a time; a second Ask while one is running
// fails with ErrBusy.
package chat
