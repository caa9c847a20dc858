// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the full-screen Bubble Tea chat.
//
// A turn runs chat.Context.Ask on a goroutine. Its render callback forwards
// events over a channel that the Update loop drains one message at a time,
// so the model is only ever touched from the Bubble Tea loop. The
// transcript is re-rendered on a frame tick rather than per event.
//
// Keys:
//
//	Enter      send the question or slash command
//	Esc, C-c   stop the running answer (C-c quits when idle)
//	C-t        expand or collapse the latest reasoning panel
//	C-r        switch the session between single and council mode
//	PgUp/PgDn  scroll the transcript
//	Tab        complete a slash command
package ui
