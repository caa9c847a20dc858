// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/jeranaias/colossus/internal/completion"
)

// TokenCounter estimates the prompt size of a request.
type TokenCounter func(messages []completion.Message) int

// perMessageOverhead approximates the role and separator tokens chat
// templates add around each message.
const perMessageOverhead = 4

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// EstimatePromptTokens counts cl100k tokens of all message contents. Local
// models use other vocabularies, so this is an estimate.
func EstimatePromptTokens(messages []completion.Message) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})

	total := 0
	for _, m := range messages {
		total += perMessageOverhead + countText(m.Content)
	}
	return total
}

func countText(text string) int {
	if text == "" {
		return 0
	}
	if codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return heuristicTokens(text)
}

// heuristicTokens blends word and character counts (~4 chars per token).
func heuristicTokens(text string) int {
	words := len(strings.Fields(text))
	return (words + len(text)/4 + 1) / 2
}
