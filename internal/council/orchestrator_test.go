// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package council

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/stream"
)

// fakeRunner answers each turn from a function of the call index and
// records every turn it was given.
type fakeRunner struct {
	mu     sync.Mutex
	turns  []stream.Turn
	answer func(ctx context.Context, call int, turn stream.Turn) stream.Result
}

func (r *fakeRunner) Run(ctx context.Context, turn stream.Turn) stream.Result {
	r.mu.Lock()
	call := len(r.turns)
	r.turns = append(r.turns, turn)
	r.mu.Unlock()

	res := r.answer(ctx, call, turn)
	if res.Outcome == stream.Completed && turn.Log != nil {
		m := model.NewAssistantMessage(res.Text)
		m.Kind = turn.Kind
		turn.Log.Append(m)
	}
	return res
}

func completed(text string) stream.Result {
	return stream.Result{Outcome: stream.Completed, Text: text}
}

func personas(names ...string) []model.Persona {
	out := make([]model.Persona, len(names))
	for i, n := range names {
		out[i] = model.Persona{Name: n, Prompt: n + " prompt."}
	}
	return out
}

func baseRequest(s *model.Session, ps []model.Persona) Request {
	s.Append(model.NewUserMessage("Is Go a good fit?"))
	return Request{
		Question:     "Is Go a good fit?",
		History:      s.History(),
		Personas:     ps,
		DefaultModel: "default",
		ChairModel:   "chair",
		Log:          s,
	}
}

func TestRun_EmptyPersonasMakesNoCalls(t *testing.T) {
	r := &fakeRunner{answer: func(context.Context, int, stream.Turn) stream.Result { return completed("x") }}
	_, err := New(r).Run(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, ErrNoPersonas)
	assert.Empty(t, r.turns)
}

func TestRun_SequentialThenConsensus(t *testing.T) {
	r := &fakeRunner{answer: func(_ context.Context, call int, turn stream.Turn) stream.Result {
		switch call {
		case 0:
			return completed("<think>weighing</think>Yes, for services.")
		case 1:
			return completed("Maybe not for GUIs.")
		default:
			return completed("Consensus: yes for services.")
		}
	}}
	s := model.NewSession(model.ModeCouncil, "default")
	ps := personas("Analyst", "Skeptic")
	ps[1].ModelID = "skeptic-model"

	out, err := New(r).Run(context.Background(), baseRequest(s, ps))
	require.NoError(t, err)

	require.Len(t, r.turns, 3)
	assert.Equal(t, "default", r.turns[0].Model)
	assert.Equal(t, "skeptic-model", r.turns[1].Model)
	assert.Equal(t, "chair", r.turns[2].Model)

	// Personas do not see each other and are not persisted.
	assert.Nil(t, r.turns[0].Log)
	assert.Nil(t, r.turns[1].Log)
	for _, m := range r.turns[1].Messages {
		assert.NotContains(t, m.Content, "Yes, for services.")
	}
	assert.Equal(t, "Analyst", r.turns[0].Persona)
	assert.Contains(t, r.turns[0].Messages[0].Content, "Analyst prompt."+DefaultPersonaSuffix)

	// Chair gets a system prompt and the synthesis prompt only.
	chair := r.turns[2]
	require.Len(t, chair.Messages, 2)
	assert.Equal(t, "system", chair.Messages[0].Role)
	assert.Contains(t, chair.Messages[1].Content, "### Analyst:\nYes, for services.")
	assert.Contains(t, chair.Messages[1].Content, "### Skeptic:\nMaybe not for GUIs.")
	assert.NotContains(t, chair.Messages[1].Content, "weighing")
	assert.Equal(t, model.KindConsensus, chair.Kind)

	require.NotNil(t, out.Consensus)
	assert.False(t, out.NoConsensus)
	assert.Equal(t, Answered, out.Personas[0].Status)
	assert.Len(t, out.ValidAnswers(), 2)

	hist := s.History()
	require.Len(t, hist, 2, "only the question and the consensus are in the log")
	assert.True(t, hist[1].IsConsensus())
}

func TestRun_NoValidAnswersSkipsConsensus(t *testing.T) {
	r := &fakeRunner{answer: func(_ context.Context, call int, _ stream.Turn) stream.Result {
		if call == 0 {
			return stream.Result{Outcome: stream.Failed, Text: stream.Offline, Err: errors.New("down")}
		}
		return completed("")
	}}
	s := model.NewSession(model.ModeCouncil, "default")

	out, err := New(r).Run(context.Background(), baseRequest(s, personas("A", "B")))
	require.NoError(t, err)
	assert.Len(t, r.turns, 2, "no chair call")
	assert.True(t, out.NoConsensus)
	assert.Equal(t, NoConsensusMessage, out.Message)
	assert.Nil(t, out.Consensus)
	assert.Equal(t, Offline, out.Personas[0].Status)
	assert.Empty(t, out.Personas[0].Answer)
	assert.Equal(t, 1, s.Len())
}

func TestRun_PartialFailureStillCounts(t *testing.T) {
	r := &fakeRunner{answer: func(_ context.Context, call int, _ stream.Turn) stream.Result {
		switch call {
		case 0:
			return stream.Result{Outcome: stream.Failed, Text: "half an answer", Err: errors.New("reset")}
		case 1:
			return stream.Result{Outcome: stream.Failed, Text: stream.Offline, Err: errors.New("down")}
		default:
			return completed("chair")
		}
	}}
	s := model.NewSession(model.ModeCouncil, "default")

	out, err := New(r).Run(context.Background(), baseRequest(s, personas("A", "B")))
	require.NoError(t, err)
	assert.Equal(t, Failed, out.Personas[0].Status)
	assert.Equal(t, Offline, out.Personas[1].Status)
	assert.Equal(t, []string{"half an answer"}, out.ValidAnswers())
	require.NotNil(t, out.Consensus)
}

func TestRun_CancelBetweenPersonasStopsRest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeRunner{answer: func(_ context.Context, call int, _ stream.Turn) stream.Result {
		cancel()
		return completed("first")
	}}
	s := model.NewSession(model.ModeCouncil, "default")

	out, err := New(r).Run(ctx, baseRequest(s, personas("A", "B", "C")))
	require.NoError(t, err)
	assert.Len(t, r.turns, 1)
	assert.True(t, out.Cancelled)
	assert.Nil(t, out.Consensus)
	assert.Equal(t, Answered, out.Personas[0].Status)
	assert.Equal(t, Stopped, out.Personas[1].Status)
	assert.Equal(t, Stopped, out.Personas[2].Status)
	assert.False(t, out.Personas[2].Ran)
	assert.Equal(t, 1, s.Len())
}

func TestRun_CancelDuringPersona(t *testing.T) {
	r := &fakeRunner{answer: func(context.Context, int, stream.Turn) stream.Result {
		return stream.Result{Outcome: stream.Cancelled, Text: "partial", Annotation: "[STOPPED]"}
	}}
	s := model.NewSession(model.ModeCouncil, "default")

	out, err := New(r).Run(context.Background(), baseRequest(s, personas("A", "B")))
	require.NoError(t, err)
	assert.Len(t, r.turns, 1)
	assert.True(t, out.Cancelled)
	assert.Equal(t, "partial", out.Personas[0].Answer)
	assert.Equal(t, Stopped, out.Personas[1].Status)
}

func TestRun_RenderProgress(t *testing.T) {
	r := &fakeRunner{answer: func(_ context.Context, _ int, turn stream.Turn) stream.Result {
		turn.Render(stream.Update{Text: "tok", Deltas: 1})
		return completed("tok")
	}}
	s := model.NewSession(model.ModeCouncil, "default")
	req := baseRequest(s, personas("A"))

	var stages []string
	req.Render = func(p Progress) {
		kind := "update"
		switch {
		case p.Started:
			kind = "start"
		case p.Done:
			kind = "done"
		}
		name := "consensus"
		if p.Stage == StagePersona {
			name = p.Persona.Name
		}
		stages = append(stages, name+":"+kind)
	}

	_, err := New(r).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "A:start A:update A:done consensus:start consensus:update consensus:done", strings.Join(stages, " "))
}

func TestRun_RetrievalAndThinkingReachPersonas(t *testing.T) {
	r := &fakeRunner{answer: func(context.Context, int, stream.Turn) stream.Result { return completed("ok") }}
	s := model.NewSession(model.ModeCouncil, "default")
	req := baseRequest(s, personas("A"))
	req.Retrieval = "[SEARCH RESULTS START]\n...\n[SEARCH RESULTS END]"
	req.Thinking = true

	_, err := New(r).Run(context.Background(), req)
	require.NoError(t, err)
	msgs := r.turns[0].Messages
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Content, stream.ThinkingOnSuffix)
	assert.Equal(t, req.Retrieval, msgs[1].Content)
	assert.Equal(t, "user", msgs[2].Role)
	assert.Contains(t, r.turns[1].Messages[0].Content, stream.ThinkingOnSuffix)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "answered", Answered.String())
	assert.Equal(t, "offline", Offline.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "failed", Failed.String())
}
