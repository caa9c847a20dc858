// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain types shared across colossus.
//
// # Key Types
//
//   - Message: one persisted turn; raw content, including any <think> segment
//   - Session: an ordered, append-only message log plus its mode and name
//   - Persona: a named system prompt, optionally bound to a model
//   - UsageRecord: token counts and elapsed time of one completed stream
//
// # Usage
//
//	s := model.NewSession(model.ModeCouncil, "qwen2.5-7b-instruct")
//	s.Append(model.NewUserMessage("Should we rewrite it in Go?"))
//	for _, m := range s.History() {
//	    fmt.Println(m.Role.DisplayName(), m.Content)
//	}
package model
