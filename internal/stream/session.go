// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/think"
)

// Sentinel answers. Neither counts as a usable council answer.
const (
	// Offline is the answer of a turn that failed before any text arrived.
	Offline = "OFFLINE"
	// Pending is the placeholder shown while a persona has not answered.
	Pending = "…"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend opens a completion stream. The channel follows the
// completion.Client.Stream contract.
type Backend interface {
	Stream(ctx context.Context, req completion.Request) <-chan completion.Event
}

// UsageSink receives one record per completed or cancelled-with-text turn.
type UsageSink interface {
	Record(rec model.UsageRecord)
}

// Appender receives the finalized assistant message.
type Appender interface {
	Append(m model.Message)
}

// =============================================================================
// TURN AND RESULT
// =============================================================================

// Turn is the input of one Run.
type Turn struct {
	Model       string
	Messages    []completion.Message
	Temperature float64
	MaxTokens   int

	// Kind and Persona are copied onto the persisted message.
	Kind    model.Kind
	Persona string

	// Render is called after every delta, on the caller's goroutine.
	Render func(Update)
	// Log receives the assistant message. Nil skips persistence.
	Log Appender
}

// Update is the render-time view after one delta.
type Update struct {
	Projection think.Projection
	Text       string
	Deltas     int
	Elapsed    time.Duration
}

// Outcome classifies how a turn ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the resolved turn.
type Result struct {
	Outcome Outcome
	// Text is the raw accumulated text, or Offline for a failed empty turn.
	Text       string
	Projection think.Projection
	// Annotation is the inline marker to show after the text, if any.
	Annotation string
	Err        error
	Usage      model.UsageRecord
	// UsageRecorded is false when nothing was sent to the sink.
	UsageRecorded bool
	// Message is the appended message, nil when nothing was appended.
	Message *model.Message
	Deltas  int
}

// Display returns the visible answer with its annotation.
func (r Result) Display() string {
	answer := r.Projection.Answer
	if r.Outcome == Failed && r.Text == Offline {
		answer = Offline
	}
	if r.Annotation == "" {
		return answer
	}
	if answer == "" {
		return r.Annotation
	}
	return strings.TrimRight(answer, "\n") + " " + r.Annotation
}

// =============================================================================
// SESSION
// =============================================================================

// Session runs turns against one backend. A Session holds no per-turn state
// and may run turns from several goroutines.
type Session struct {
	backend Backend
	sink    UsageSink
	log     zerolog.Logger
	now     func() time.Time
	count   TokenCounter
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithUsageSink sets where usage records go.
func WithUsageSink(sink UsageSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTokenCounter replaces the prompt token estimator.
func WithTokenCounter(c TokenCounter) Option {
	return func(s *Session) { s.count = c }
}

// New creates a Session.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		log:     zerolog.Nop(),
		now:     time.Now,
		count:   EstimatePromptTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// turnState accumulates one run.
type turnState struct {
	turn     Turn
	req      completion.Request
	start    time.Time
	buf      strings.Builder
	splitter *think.Splitter
	proj     think.Projection
	deltas   int
	usage    *completion.Usage
}

// Run executes turn and resolves it. It never returns an error; failures
// are reported in the Result.
func (s *Session) Run(ctx context.Context, turn Turn) Result {
	st := &turnState{
		turn: turn,
		req: completion.Request{
			Model:       turn.Model,
			Messages:    turn.Messages,
			Temperature: turn.Temperature,
			MaxTokens:   turn.MaxTokens,
		},
		start:    s.now(),
		splitter: think.New(),
	}
	if st.req.MaxTokens == 0 {
		st.req.MaxTokens = completion.Unbounded
	}

	s.log.Debug().
		Str("model", turn.Model).
		Int("messages", len(turn.Messages)).
		Str("persona", turn.Persona).
		Msg("stream start")

	events := s.backend.Stream(ctx, st.req)
	for {
		select {
		case <-ctx.Done():
			return s.cancel(st)
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return s.cancel(st)
				}
				return s.complete(st)
			}
			switch ev.Kind {
			case completion.EventDelta:
				s.delta(st, ev.Delta)
			case completion.EventUsage:
				st.usage = ev.Usage
			case completion.EventDone:
				return s.complete(st)
			case completion.EventError:
				if ctx.Err() != nil {
					return s.cancel(st)
				}
				return s.fail(st, ev.Err)
			}
		}
	}
}

func (s *Session) delta(st *turnState, text string) {
	if text == "" {
		return
	}
	st.buf.WriteString(text)
	st.deltas++
	full := st.buf.String()
	st.proj = st.splitter.Update(full)
	if st.turn.Render != nil {
		st.turn.Render(Update{
			Projection: st.proj,
			Text:       full,
			Deltas:     st.deltas,
			Elapsed:    s.now().Sub(st.start),
		})
	}
}

// =============================================================================
// FINALIZE
// =============================================================================

func (s *Session) complete(st *turnState) Result {
	text := st.buf.String()
	rec := s.usage(st, true)
	s.record(rec)

	res := Result{
		Outcome:       Completed,
		Text:          text,
		Projection:    st.proj,
		Usage:         rec,
		UsageRecorded: true,
		Deltas:        st.deltas,
	}
	res.Message = s.appendMessage(st, text, model.StatusComplete, rec)

	s.log.Debug().
		Str("model", st.turn.Model).
		Int("prompt_tokens", rec.PromptTokens).
		Int("completion_tokens", rec.CompletionTokens).
		Bool("estimated", rec.Estimated).
		Dur("elapsed", rec.Elapsed).
		Msg("stream complete")
	return res
}

func (s *Session) cancel(st *turnState) Result {
	text := st.buf.String()
	res := Result{
		Outcome:    Cancelled,
		Text:       text,
		Projection: st.proj,
		Annotation: model.StatusStopped.Annotation(),
		Err:        context.Canceled,
		Deltas:     st.deltas,
	}
	if text == "" {
		s.log.Debug().Str("model", st.turn.Model).Msg("stream cancelled before any text")
		return res
	}

	// Provider usage never arrives mid-stream; always the local estimate.
	rec := s.usage(st, false)
	s.record(rec)
	res.Usage = rec
	res.UsageRecorded = true
	res.Message = s.appendMessage(st, text, model.StatusStopped, rec)

	s.log.Debug().Str("model", st.turn.Model).Int("deltas", st.deltas).Msg("stream cancelled")
	return res
}

func (s *Session) fail(st *turnState, err error) Result {
	text := st.buf.String()
	res := Result{
		Outcome:    Failed,
		Text:       text,
		Projection: st.proj,
		Err:        err,
		Deltas:     st.deltas,
	}

	if text == "" {
		res.Text = Offline
		res.Annotation = fmt.Sprintf("[Error: %v]", err)
		s.log.Warn().Err(err).Str("model", st.turn.Model).Msg("stream failed before any text")
		return res
	}

	res.Annotation = model.StatusInterrupted.Annotation()
	res.Message = s.appendMessage(st, text, model.StatusInterrupted, s.usage(st, false))
	s.log.Warn().Err(err).Str("model", st.turn.Model).Int("deltas", st.deltas).Msg("stream interrupted")
	return res
}

// usage builds the record for st. Provider usage wins when it carries
// completion tokens and trustProvider is set.
func (s *Session) usage(st *turnState, trustProvider bool) model.UsageRecord {
	rec := model.UsageRecord{Elapsed: s.now().Sub(st.start)}
	if trustProvider && st.usage != nil && st.usage.CompletionTokens > 0 {
		rec.PromptTokens = st.usage.PromptTokens
		rec.CompletionTokens = st.usage.CompletionTokens
		return rec
	}

	rec.Estimated = true
	rec.CompletionTokens = st.deltas
	if st.usage != nil && st.usage.PromptTokens > 0 {
		rec.PromptTokens = st.usage.PromptTokens
	} else {
		rec.PromptTokens = s.count(st.req.Messages)
	}
	return rec
}

func (s *Session) record(rec model.UsageRecord) {
	if s.sink != nil {
		s.sink.Record(rec)
	}
}

func (s *Session) appendMessage(st *turnState, text string, status model.Status, rec model.UsageRecord) *model.Message {
	if st.turn.Log == nil {
		return nil
	}
	m := model.NewAssistantMessage(text)
	m.Kind = st.turn.Kind
	m.Status = status
	m.Persona = st.turn.Persona
	m.Model = st.turn.Model
	m.TokenCount = rec.CompletionTokens
	m.Duration = rec.Elapsed
	st.turn.Log.Append(m)
	return &m
}
