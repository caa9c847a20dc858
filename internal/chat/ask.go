// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/research"
	"github.com/jeranaias/colossus/internal/stream"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind tells a renderer which field of Event is set.
type EventKind int

const (
	// EventStatus carries a transient status line.
	EventStatus EventKind = iota
	// EventSources carries the research results, possibly none.
	EventSources
	// EventStream carries a single-mode update.
	EventStream
	// EventCouncil carries council progress.
	EventCouncil
)

// Event is reported to the render callback of Ask.
type Event struct {
	Kind     EventKind
	Status   string
	Query    string
	Sources  []research.Result
	Update   stream.Update
	Progress council.Progress
}

// Reply is the result of one question.
type Reply struct {
	Mode model.Mode
	// Single is set in single mode.
	Single *stream.Result
	// Council is set in council mode.
	Council *council.Outcome
	// Query and Sources are set when the research phase ran.
	Query   string
	Sources []research.Result
	// SaveErr is set when the session could not be persisted. The answer
	// still stands and stays in the in-memory session.
	SaveErr error
}

// Cancelled reports whether the user stopped the turn.
func (r Reply) Cancelled() bool {
	if r.Single != nil {
		return r.Single.Outcome == stream.Cancelled
	}
	return r.Council != nil && r.Council.Cancelled
}

// Answer returns the displayable final answer.
func (r Reply) Answer() string {
	switch {
	case r.Single != nil:
		return r.Single.Display()
	case r.Council != nil && r.Council.Consensus != nil:
		return r.Council.Consensus.Display()
	case r.Council != nil:
		return r.Council.Message
	}
	return ""
}

// =============================================================================
// ASK
// =============================================================================

// Ask appends question to the current session and answers it in the
// session's mode. render may be nil; it is called on the caller's goroutine.
//
// Errors are returned only for invalid input, a concurrent turn or a
// council without personas. Stream failures and cancellation are reported
// in the Reply, and the session is saved in every case.
func (c *Context) Ask(ctx context.Context, question string, render func(Event)) (Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Reply{}, ErrEmptyQuestion
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Reply{}, ErrBusy
	}
	defer c.busy.Store(false)

	emit := func(ev Event) {
		if render != nil {
			render(ev)
		}
	}

	c.mu.RLock()
	opts := c.opts
	personas := make([]model.Persona, len(c.personas))
	copy(personas, c.personas)
	s := c.session
	singleModel := c.singleModel(s)
	system := c.singleSystemPrompt(s, opts.Thinking)
	c.mu.RUnlock()

	mode := s.CurrentMode()
	if mode == model.ModeCouncil && len(personas) == 0 {
		return Reply{}, council.ErrNoPersonas
	}

	s.Append(model.NewUserMessage(question))
	reply := Reply{Mode: mode, SaveErr: c.save()}

	var retrieval string
	if opts.Research {
		searchModel := singleModel
		if mode == model.ModeCouncil {
			searchModel = opts.Model
		}
		reply.Query, reply.Sources = c.research(ctx, searchModel, question, emit)
		retrieval = research.FormatContext(reply.Sources)
	}

	if mode == model.ModeCouncil {
		out, err := c.council.Run(ctx, council.Request{
			Question:      question,
			History:       s.History(),
			Personas:      personas,
			ChairModel:    opts.ChairModel,
			DefaultModel:  opts.Model,
			Retrieval:     retrieval,
			Thinking:      opts.Thinking,
			Temperature:   opts.Temperature,
			HistoryLimit:  opts.HistoryLimit,
			PersonaSuffix: opts.PersonaSuffix,
			Log:           s,
			Render: func(p council.Progress) {
				emit(Event{Kind: EventCouncil, Progress: p})
			},
		})
		if err != nil {
			return reply, err
		}
		reply.Council = &out
	} else {
		prompt := stream.Prompt{
			System:       system,
			History:      s.History(),
			Retrieval:    retrieval,
			Thinking:     opts.Thinking,
			HistoryLimit: opts.HistoryLimit,
		}
		res := c.runner.Run(ctx, stream.Turn{
			Model:       singleModel,
			Messages:    prompt.Messages(),
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Log:         s,
			Render: func(u stream.Update) {
				emit(Event{Kind: EventStream, Update: u})
			},
		})
		reply.Single = &res
	}

	if err := c.save(); err != nil && reply.SaveErr == nil {
		reply.SaveErr = err
	}
	return reply, nil
}

// research generates a query and searches. Any failure yields no sources.
func (c *Context) research(ctx context.Context, modelID, question string, emit func(Event)) (string, []research.Result) {
	if err := c.policy.CheckWebFetch(); err != nil {
		c.log.Warn().Err(err).Msg("Research skipped")
		emit(Event{Kind: EventStatus, Status: "Research skipped: " + err.Error()})
		return "", nil
	}
	if c.searcher == nil {
		return "", nil
	}

	emit(Event{Kind: EventStatus, Status: "Generating search query..."})
	query := research.GenerateQuery(ctx, c.backend, modelID, question, c.log)

	emit(Event{Kind: EventStatus, Status: `Searching for: "` + query + `"...`, Query: query})
	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("Search failed")
		results = nil
	}
	emit(Event{Kind: EventSources, Query: query, Sources: results})
	return query, results
}

// =============================================================================
// TITLE AND SUMMARY
// =============================================================================

// AutoTitle names the current session after its first exchange. It waits
// for the title settle delay, so front ends run it after rendering the
// answer. It reports whether the session was renamed.
func (c *Context) AutoTitle(ctx context.Context) (string, bool) {
	c.mu.RLock()
	titles := c.titles
	s := c.session
	modelID := s.ModelOverride()
	if modelID == "" {
		modelID = c.opts.Model
	}
	c.mu.RUnlock()

	if titles == nil {
		return "", false
	}
	title, ok := titles.MaybeTitle(ctx, s, modelID)
	if ok {
		// Logged by save; the title still applies to the live session.
		_ = c.save()
	}
	return title, ok
}

// Summarize asks for a three-point recap of the current session. The
// summary is returned, not stored.
func (c *Context) Summarize(ctx context.Context) (string, error) {
	c.mu.RLock()
	s := c.session
	opts := c.opts
	c.mu.RUnlock()

	history := s.History()
	if len(history) == 0 {
		return "", ErrEmptySession
	}
	msgs := append(cleanHistory(history), completion.NewUserMessage(SummaryPrompt))
	return c.backend.Complete(ctx, completion.Request{
		Model:       opts.Model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   summaryMaxTokens,
	})
}

// ListModels returns the model IDs the backend serves.
func (c *Context) ListModels(ctx context.Context) ([]string, error) {
	return c.backend.ListModels(ctx)
}
