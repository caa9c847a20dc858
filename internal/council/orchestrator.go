// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package council

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/stream"
)

// ErrNoPersonas is returned for an empty persona list. No request is made.
var ErrNoPersonas = errors.New("council: no personas configured")

// Runner runs one stream turn. *stream.Session implements it.
type Runner interface {
	Run(ctx context.Context, turn stream.Turn) stream.Result
}

// =============================================================================
// OUTCOMES
// =============================================================================

// Status is how one persona's turn ended.
type Status int

const (
	// Answered: the stream completed.
	Answered Status = iota
	// Failed: the stream broke after some text; the partial answer is kept.
	Failed
	// Offline: the stream failed before any text.
	Offline
	// Stopped: cancelled during or before this persona's turn.
	Stopped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Answered:
		return "answered"
	case Failed:
		return "failed"
	case Offline:
		return "offline"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PersonaOutcome is one persona's contribution.
type PersonaOutcome struct {
	Persona model.Persona
	Answer  string
	Status  Status
	// Result is the zero value for personas skipped by cancellation.
	Result stream.Result
	// Ran is false for skipped personas.
	Ran bool
}

// Outcome is the result of a council run.
type Outcome struct {
	Personas []PersonaOutcome
	// Consensus is nil when no chair run happened.
	Consensus   *stream.Result
	NoConsensus bool
	Cancelled   bool
	// Message explains a missing consensus.
	Message string
}

// ValidAnswers returns the answers usable for a consensus.
func (o Outcome) ValidAnswers() []string {
	var out []string
	for _, p := range o.Personas {
		if isValidAnswer(p.Answer) {
			out = append(out, p.Answer)
		}
	}
	return out
}

func isValidAnswer(a string) bool {
	return a != "" && a != stream.Offline && a != stream.Pending
}

// =============================================================================
// PROGRESS
// =============================================================================

// Stage identifies which run a Progress belongs to.
type Stage int

const (
	StagePersona Stage = iota
	StageConsensus
)

// Progress is reported to Request.Render while the council runs.
type Progress struct {
	Stage Stage
	// Index is the persona index, -1 for the consensus.
	Index   int
	Persona model.Persona
	// Started is set once before the first update of a run.
	Started bool
	Update  stream.Update
	// Done carries the final state of the run.
	Done    bool
	Outcome *PersonaOutcome
	Result  *stream.Result
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Request is one council question.
type Request struct {
	Question string
	// History is the shared session log, ending with the user question.
	History  []model.Message
	Personas []model.Persona
	// ChairModel runs the consensus; DefaultModel when empty.
	ChairModel string
	// DefaultModel serves personas without a bound model.
	DefaultModel string
	Retrieval    string
	Thinking     bool
	Temperature  float64
	HistoryLimit int
	// PersonaSuffix overrides DefaultPersonaSuffix when non-empty.
	PersonaSuffix string
	// Log receives the consensus message.
	Log    stream.Appender
	Render func(Progress)
}

// Orchestrator sequences persona runs and the chair run.
type Orchestrator struct {
	runner Runner
	log    zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an Orchestrator.
func New(runner Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{runner: runner, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run asks every persona in order and then the chair. The only error is
// ErrNoPersonas; everything else is reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	if len(req.Personas) == 0 {
		return Outcome{}, ErrNoPersonas
	}
	if req.Temperature == 0 {
		req.Temperature = completion.DefaultTemperature
	}
	suffix := req.PersonaSuffix
	if suffix == "" {
		suffix = DefaultPersonaSuffix
	}

	out := Outcome{Personas: make([]PersonaOutcome, len(req.Personas))}
	for i, p := range req.Personas {
		out.Personas[i] = PersonaOutcome{Persona: p, Status: Stopped}
	}

	for i, p := range req.Personas {
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}
		po := o.runPersona(ctx, req, i, p, suffix)
		out.Personas[i] = po
		if po.Status == Stopped {
			out.Cancelled = true
			break
		}
	}

	if out.Cancelled {
		o.log.Debug().Int("personas", len(req.Personas)).Msg("council cancelled, consensus skipped")
		out.Message = "stopped"
		return out, nil
	}

	if len(out.ValidAnswers()) == 0 {
		out.NoConsensus = true
		out.Message = NoConsensusMessage
		o.log.Warn().Int("personas", len(req.Personas)).Msg("no valid persona answers")
		if req.Render != nil {
			req.Render(Progress{Stage: StageConsensus, Index: -1, Done: true})
		}
		return out, nil
	}

	res := o.runConsensus(ctx, req, out.Personas)
	out.Consensus = &res
	if res.Outcome == stream.Cancelled {
		out.Cancelled = true
	}
	return out, nil
}

func (o *Orchestrator) runPersona(ctx context.Context, req Request, i int, p model.Persona, suffix string) PersonaOutcome {
	if req.Render != nil {
		req.Render(Progress{Stage: StagePersona, Index: i, Persona: p, Started: true})
	}

	prompt := stream.Prompt{
		System:       stream.SystemPrompt(p.Prompt+suffix, req.Thinking),
		History:      req.History,
		Retrieval:    req.Retrieval,
		Thinking:     req.Thinking,
		HistoryLimit: req.HistoryLimit,
	}
	res := o.runner.Run(ctx, stream.Turn{
		Model:       p.ModelOr(req.DefaultModel),
		Messages:    prompt.Messages(),
		Temperature: req.Temperature,
		MaxTokens:   completion.Unbounded,
		Persona:     p.Name,
		Render: func(u stream.Update) {
			if req.Render != nil {
				req.Render(Progress{Stage: StagePersona, Index: i, Persona: p, Update: u})
			}
		},
	})

	po := PersonaOutcome{Persona: p, Result: res, Ran: true, Answer: res.Text}
	switch res.Outcome {
	case stream.Completed:
		po.Status = Answered
	case stream.Cancelled:
		po.Status = Stopped
	case stream.Failed:
		if res.Text == stream.Offline {
			po.Status = Offline
			po.Answer = ""
		} else {
			po.Status = Failed
		}
	}

	o.log.Debug().Str("persona", p.Name).Str("status", po.Status.String()).Msg("persona finished")
	if req.Render != nil {
		req.Render(Progress{Stage: StagePersona, Index: i, Persona: p, Done: true, Outcome: &po, Result: &res})
	}
	return po
}

func (o *Orchestrator) runConsensus(ctx context.Context, req Request, personas []PersonaOutcome) stream.Result {
	chair := req.ChairModel
	if chair == "" {
		chair = req.DefaultModel
	}
	if req.Render != nil {
		req.Render(Progress{Stage: StageConsensus, Index: -1, Started: true})
	}

	res := o.runner.Run(ctx, stream.Turn{
		Model: chair,
		Messages: []completion.Message{
			completion.NewSystemMessage(stream.SystemPrompt(ChairSystemPrompt, req.Thinking)),
			completion.NewUserMessage(SynthesisPrompt(req.Question, personas)),
		},
		Temperature: req.Temperature,
		MaxTokens:   completion.Unbounded,
		Kind:        model.KindConsensus,
		Log:         req.Log,
		Render: func(u stream.Update) {
			if req.Render != nil {
				req.Render(Progress{Stage: StageConsensus, Index: -1, Update: u})
			}
		},
	})

	o.log.Debug().Str("model", chair).Str("outcome", res.Outcome.String()).Msg("consensus finished")
	if req.Render != nil {
		req.Render(Progress{Stage: StageConsensus, Index: -1, Done: true, Result: &res})
	}
	return res
}
