// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the colossus command tree.
//
// # Commands
//
//   - colossus, colossus tui      Full-screen chat
//   - colossus chat               Line-based chat with slash commands
//   - colossus ask "question"     One question, streamed to stdout
//   - colossus sessions ...       List, show, rename, delete, export
//   - colossus personas ...       List, add, remove council personas
//   - colossus models             Models of every configured backend
//   - colossus stats [reset]      Usage aggregate
//   - colossus serve              HTTP API
//   - colossus config ...         Show, get and set configuration
//
// Global flags override the config file: --config, --verbose, --backend,
// --model and --local-only.
package cli
