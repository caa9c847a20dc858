// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the line REPL and
// the TUI.
//
// Handlers act on a chat.Context through an Env and return a Result the
// front end displays; they never write to the terminal themselves.
//
//	reg := commands.NewRegistry()
//	res, err := reg.Execute(ctx, &commands.Env{Chat: c}, "/council")
package commands
