// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"time"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/research"
	"github.com/jeranaias/colossus/internal/stream"
	"github.com/jeranaias/colossus/internal/think"
)

// =============================================================================
// BLOCKS
// =============================================================================

// block is one streamed answer: the single-mode reply, a persona, or the
// chair.
type block struct {
	label     string
	color     string
	consensus bool

	proj    think.Projection
	text    string
	deltas  int
	elapsed time.Duration
	panel   *render.Panel

	done   bool
	result *stream.Result
}

func (b *block) update(u stream.Update) {
	b.proj = u.Projection
	b.text = u.Text
	b.deltas = u.Deltas
	b.elapsed = u.Elapsed
}

func (b *block) finish(res stream.Result) {
	b.proj = res.Projection
	b.text = res.Text
	b.done = true
	b.result = &res
}

// =============================================================================
// TURN
// =============================================================================

// turn is the live state of one question.
type turn struct {
	id       int
	question string
	// base is the session length before the question was appended.
	base    int
	started time.Time

	status  string
	sources []research.Result
	blocks  []*block
	// noConsensus is set when the chair did not run.
	noConsensus bool
	cancelling  bool
}

func newTurn(id int, question string, base int) *turn {
	return &turn{id: id, question: question, base: base, started: time.Now()}
}

// apply folds one chat event into the turn.
func (t *turn) apply(ev chat.Event, newPanel func() *render.Panel) {
	switch ev.Kind {
	case chat.EventStatus:
		t.status = ev.Status
	case chat.EventSources:
		t.sources = ev.Sources
		t.status = ""
	case chat.EventStream:
		if len(t.blocks) == 0 {
			t.blocks = append(t.blocks, &block{label: "Assistant", panel: newPanel()})
		}
		t.status = ""
		t.last().update(ev.Update)
	case chat.EventCouncil:
		t.applyProgress(ev.Progress, newPanel)
	}
}

func (t *turn) applyProgress(pr council.Progress, newPanel func() *render.Panel) {
	consensus := pr.Stage == council.StageConsensus
	switch {
	case pr.Started:
		b := &block{label: pr.Persona.Name, color: pr.Persona.Color, consensus: consensus, panel: newPanel()}
		if consensus {
			b.label = "Consensus"
		}
		t.blocks = append(t.blocks, b)
		t.status = ""
	case pr.Done && pr.Result != nil:
		if b := t.last(); b != nil {
			b.finish(*pr.Result)
		}
	case pr.Done && pr.Outcome != nil:
		if b := t.last(); b != nil {
			b.finish(pr.Outcome.Result)
		}
	case pr.Done:
		if consensus {
			t.noConsensus = true
		}
	default:
		if b := t.last(); b != nil {
			b.update(pr.Update)
		}
	}
}

func (t *turn) last() *block {
	if len(t.blocks) == 0 {
		return nil
	}
	return t.blocks[len(t.blocks)-1]
}

// personaBlocks returns the finished persona answers, which are not stored
// in the session.
func (t *turn) personaBlocks() []*block {
	var out []*block
	for _, b := range t.blocks {
		if !b.consensus {
			out = append(out, b)
		}
	}
	return out
}
