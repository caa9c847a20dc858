// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/think"
)

// Thinking-mode instructions appended to every system prompt.
const (
	ThinkingOnSuffix  = " IMPORTANT: You MUST start your response with a <think>...</think> block where you reason about the user query step-by-step before providing the final answer."
	ThinkingOffSuffix = " IMPORTANT: You must NOT use <think> tags or output any internal thought process. Answer directly and immediately."
)

// SystemPrompt appends the thinking-mode instruction to base.
func SystemPrompt(base string, thinking bool) string {
	if thinking {
		return base + ThinkingOnSuffix
	}
	return base + ThinkingOffSuffix
}

// Prompt describes the message list of one turn.
type Prompt struct {
	// System is the complete system prompt, suffix included.
	System string
	// History is the session log; its last entry is normally the new user
	// message.
	History []model.Message
	// Retrieval is injected as a system message right before the final
	// history entry.
	Retrieval string
	// Thinking off strips reasoning spans from assistant history so the
	// model does not pick the pattern up again.
	Thinking bool
	// HistoryLimit keeps only the last N history entries. Zero keeps all.
	HistoryLimit int
}

// Messages renders p as a request message list.
func (p Prompt) Messages() []completion.Message {
	history := p.History
	if p.HistoryLimit > 0 && len(history) > p.HistoryLimit {
		history = history[len(history)-p.HistoryLimit:]
	}

	out := make([]completion.Message, 0, len(history)+2)
	if p.System != "" {
		out = append(out, completion.NewSystemMessage(p.System))
	}
	head := len(out)
	for _, m := range history {
		if m.Role == model.RoleSystem {
			continue
		}
		content := m.Content
		if !p.Thinking && m.Role == model.RoleAssistant {
			content = think.Strip(content)
		}
		out = append(out, completion.Message{Role: m.Role.String(), Content: content})
	}

	if p.Retrieval != "" {
		ctxMsg := completion.NewSystemMessage(p.Retrieval)
		if len(out) == head {
			out = append(out, ctxMsg)
		} else {
			last := out[len(out)-1]
			out = append(out[:len(out)-1], ctxMsg, last)
		}
	}
	return out
}
