// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package council

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/think"
	"github.com/jeranaias/colossus/internal/util"
)

// Completer runs a non-streaming completion.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

const (
	// TitleSystemPrompt asks for a bare short title.
	TitleSystemPrompt = "Generate a very short title (max 4 words) for this chat based on the user's message. Output ONLY the title text. Do NOT use <think> tags or quotes."

	// DefaultSettleDelay lets the server finish the previous stream first.
	DefaultSettleDelay = time.Second

	// titleMaxTokens leaves room for models that reason despite being told
	// not to.
	titleMaxTokens = 1000

	titleInputLimit   = 500
	titleFallbackRune = 25
)

var edgeQuotes = regexp.MustCompile(`^["']|["']$`)

// TitleGenerator names sessions. Failures never surface; they fall back to
// a snippet of the question.
type TitleGenerator struct {
	c     Completer
	delay time.Duration
	log   zerolog.Logger
}

// TitleOption configures a TitleGenerator.
type TitleOption func(*TitleGenerator)

// WithSettleDelay overrides DefaultSettleDelay. Zero disables the wait.
func WithSettleDelay(d time.Duration) TitleOption {
	return func(g *TitleGenerator) { g.delay = d }
}

// WithTitleLogger sets the logger.
func WithTitleLogger(l zerolog.Logger) TitleOption {
	return func(g *TitleGenerator) { g.log = l }
}

// NewTitleGenerator creates a TitleGenerator.
func NewTitleGenerator(c Completer, opts ...TitleOption) *TitleGenerator {
	g := &TitleGenerator{c: c, delay: DefaultSettleDelay, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a title for question. It always returns a non-empty
// string.
func (g *TitleGenerator) Generate(ctx context.Context, modelID, question string) string {
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return FallbackTitle(question)
		case <-t.C:
		}
	}

	input := util.TruncateRunes(question, titleInputLimit)

	raw, err := g.c.Complete(ctx, completion.Request{
		Model: modelID,
		Messages: []completion.Message{
			completion.NewSystemMessage(TitleSystemPrompt),
			completion.NewUserMessage(input),
		},
		Temperature: completion.DefaultTemperature,
		MaxTokens:   titleMaxTokens,
	})
	if err != nil {
		g.log.Debug().Err(err).Msg("title generation failed, using fallback")
		return FallbackTitle(question)
	}

	title := CleanTitle(raw)
	if title == "" {
		g.log.Debug().Msg("title empty after cleanup, using fallback")
		return FallbackTitle(question)
	}
	return title
}

// MaybeTitle names s when it holds a user+assistant pair and is still
// untitled. It reports whether it renamed the session.
func (g *TitleGenerator) MaybeTitle(ctx context.Context, s *model.Session, modelID string) (string, bool) {
	if !s.HasExchange() || !s.IsUntitled() {
		return "", false
	}
	title := g.Generate(ctx, modelID, s.FirstUserMessage())
	s.Rename(title)
	return title, true
}

// CleanTitle strips reasoning, quotes and line breaks from a model reply.
func CleanTitle(raw string) string {
	title := think.StripAll(strings.TrimSpace(raw))
	title = norm.NFC.String(util.OneLine(title))
	return strings.TrimSpace(edgeQuotes.ReplaceAllString(title, ""))
}

// FallbackTitle is the first 25 runes of the question, or "New Chat".
func FallbackTitle(question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return model.DefaultSessionName
	}
	return util.Snippet(q, titleFallbackRune)
}
