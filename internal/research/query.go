// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/completion"
)

// Completer runs a non-streaming completion.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// QuerySystemPrompt instructs the model to emit a bare keyword query.
const QuerySystemPrompt = "You are a helpful assistant that generates web search queries. " +
	"Your task is to extract the most relevant keywords from the user's request to form a single, effective search query.\n\n" +
	"RULES:\n" +
	"1. Output ONLY the search query.\n" +
	"2. Do NOT include \"Here is the query\" or any conversational text.\n" +
	"3. Do NOT use quotes.\n" +
	"4. Keep it concise (3-6 keywords)."

const (
	queryMaxTokens   = 50
	queryTemperature = 0.1
	maxQueryRunes    = 100
)

// chatter is applied in order; later rules see the output of earlier ones.
var chatter = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^Here is the search query:?`),
	regexp.MustCompile(`(?i)^Search query:?`),
	regexp.MustCompile(`(?i)^Query:?`),
	regexp.MustCompile(`(?i)^(Sure|Okay|Here|Certainly|The query is|I suggest).*?[:\n]`),
	regexp.MustCompile(`(?i)<think>[\s\S]*?</think>`),
	regexp.MustCompile(`(?i)<think>[\s\S]*`),
	regexp.MustCompile(`^["']|["']$`),
}

// CleanQuery strips conversational filler and reasoning from a generated
// query.
func CleanQuery(raw string) string {
	q := strings.TrimSpace(raw)
	for _, re := range chatter {
		q = re.ReplaceAllString(q, "")
	}
	return strings.TrimSpace(q)
}

// GenerateQuery asks modelID for a search query for question. It falls back
// to the question itself when the request fails or the result is empty or
// longer than 100 characters.
func GenerateQuery(ctx context.Context, c Completer, modelID, question string, log zerolog.Logger) string {
	req := completion.Request{
		Model: modelID,
		Messages: []completion.Message{
			completion.NewSystemMessage(QuerySystemPrompt),
			completion.NewUserMessage(fmt.Sprintf("Generate a search query for: %q", question)),
		},
		Temperature: queryTemperature,
		MaxTokens:   queryMaxTokens,
	}

	raw, err := c.Complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("Search query generation failed, using question")
		return question
	}

	q := CleanQuery(raw)
	if q == "" || utf8.RuneCountInString(q) > maxQueryRunes {
		log.Warn().Int("length", utf8.RuneCountInString(q)).Msg("Generated search query rejected, using question")
		return question
	}
	log.Debug().Str("query", q).Msg("Search query generated")
	return q
}
