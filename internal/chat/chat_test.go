// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/offline"
	"github.com/jeranaias/colossus/internal/research"
	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/stream"
)

// fakeBackend streams reply(req) in two deltas and answers Complete with
// complete(req).
type fakeBackend struct {
	reply    func(req completion.Request) string
	complete func(req completion.Request) (string, error)
	block    chan struct{}

	mu      sync.Mutex
	streams []completion.Request
	calls   []completion.Request
}

func (b *fakeBackend) Stream(ctx context.Context, req completion.Request) <-chan completion.Event {
	b.mu.Lock()
	b.streams = append(b.streams, req)
	b.mu.Unlock()

	text := "ok"
	if b.reply != nil {
		text = b.reply(req)
	}
	ch := make(chan completion.Event)
	go func() {
		defer close(ch)
		if b.block != nil {
			select {
			case <-b.block:
			case <-ctx.Done():
				return
			}
		}
		half := len(text) / 2
		for _, ev := range []completion.Event{
			{Kind: completion.EventDelta, Delta: text[:half]},
			{Kind: completion.EventDelta, Delta: text[half:]},
			{Kind: completion.EventDone},
		} {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (b *fakeBackend) Complete(ctx context.Context, req completion.Request) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()
	if b.complete != nil {
		return b.complete(req)
	}
	return "Title", nil
}

func (b *fakeBackend) ListModels(ctx context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

func (b *fakeBackend) streamReqs() []completion.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]completion.Request(nil), b.streams...)
}

type fakeSearcher struct {
	results []research.Result
	err     error
	query   string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]research.Result, error) {
	f.query = query
	return f.results, f.err
}

func newContext(t *testing.T, b *fakeBackend, mode model.Mode, mutate func(*Deps, *Options)) (*Context, storage.Store) {
	t.Helper()
	st, err := storage.NewJSONStore(t.TempDir(), 0)
	require.NoError(t, err)

	deps := Deps{
		Backend: b,
		Titles:  council.NewTitleGenerator(b, council.WithSettleDelay(0)),
		Store:   st,
		Logger:  zerolog.Nop(),
	}
	opts := Options{
		Model:        "global",
		SystemPrompt: "You are helpful.",
		TitleEnabled: true,
	}
	if mutate != nil {
		mutate(&deps, &opts)
	}
	return New(deps, opts, model.DefaultPersonas(), mode), st
}

func systemOf(req completion.Request) string {
	if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
		return req.Messages[0].Content
	}
	return ""
}

// =============================================================================
// SINGLE MODE
// =============================================================================

// failingStore refuses every write.
type failingStore struct {
	storage.Store
}

func (failingStore) Save(*model.Session) error {
	return errors.New("disk full")
}

func TestAsk_SaveFailureReported(t *testing.T) {
	b := &fakeBackend{reply: func(completion.Request) string { return "Paris." }}
	c, _ := newContext(t, b, model.ModeSingle, func(d *Deps, _ *Options) {
		d.Store = failingStore{Store: d.Store}
	})

	reply, err := c.Ask(context.Background(), "Capital of France?", nil)
	require.NoError(t, err)
	require.Error(t, reply.SaveErr)
	assert.Contains(t, reply.SaveErr.Error(), "disk full")
	assert.Equal(t, "Paris.", reply.Answer())
	assert.Equal(t, 2, c.Session().Len(), "the exchange stays in memory")
}

func TestAsk_SingleModePersistsExchange(t *testing.T) {
	b := &fakeBackend{reply: func(completion.Request) string { return "<think>hmm</think>Paris." }}
	c, st := newContext(t, b, model.ModeSingle, nil)

	var updates int
	reply, err := c.Ask(context.Background(), "  Capital of France?  ", func(ev Event) {
		if ev.Kind == EventStream {
			updates++
		}
	})
	require.NoError(t, err)
	require.NotNil(t, reply.Single)
	assert.Equal(t, stream.Completed, reply.Single.Outcome)
	assert.Equal(t, "Paris.", reply.Answer())
	assert.False(t, reply.Cancelled())
	assert.Equal(t, 2, updates)

	reqs := b.streamReqs()
	require.Len(t, reqs, 1)
	assert.Equal(t, "global", reqs[0].Model)
	assert.Equal(t, completion.Unbounded, reqs[0].MaxTokens)
	assert.Equal(t, completion.DefaultTemperature, reqs[0].Temperature)
	assert.True(t, strings.HasPrefix(systemOf(reqs[0]), "You are helpful."))
	assert.Contains(t, systemOf(reqs[0]), stream.ThinkingOffSuffix)
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Equal(t, "Capital of France?", last.Content)

	stored, err := st.Load(c.Session().ID)
	require.NoError(t, err)
	msgs := stored.History()
	require.Len(t, msgs, 2)
	assert.Equal(t, "<think>hmm</think>Paris.", msgs[1].Content)
}

func TestAsk_PersonaAndModelSelection(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newContext(t, b, model.ModeSingle, nil)

	personas := c.Personas()
	bound := personas[1]
	bound.ModelID = "persona-model"
	c.SetPersonas(model.UpsertPersona(personas, bound))

	require.NoError(t, c.SelectPersona(bound.Name))
	_, err := c.Ask(context.Background(), "q1", nil)
	require.NoError(t, err)

	require.NoError(t, c.SetSessionModel("override"))
	_, err = c.Ask(context.Background(), "q2", nil)
	require.NoError(t, err)

	reqs := b.streamReqs()
	require.Len(t, reqs, 2)
	assert.Equal(t, "persona-model", reqs[0].Model)
	assert.True(t, strings.HasPrefix(systemOf(reqs[0]), bound.Prompt+SingleSuffix))
	assert.Equal(t, "override", reqs[1].Model)

	assert.ErrorIs(t, c.SelectPersona("Nobody"), model.ErrPersonaNotFound)
}

func TestAsk_ThinkingOnKeepsReasoningInHistory(t *testing.T) {
	b := &fakeBackend{reply: func(completion.Request) string { return "<think>r</think>a" }}
	c, _ := newContext(t, b, model.ModeSingle, nil)

	_, err := c.Ask(context.Background(), "one", nil)
	require.NoError(t, err)
	c.SetThinking(true)
	_, err = c.Ask(context.Background(), "two", nil)
	require.NoError(t, err)

	reqs := b.streamReqs()
	second := reqs[1]
	assert.Contains(t, systemOf(second), stream.ThinkingOnSuffix)
	assert.Equal(t, "<think>r</think>a", second.Messages[2].Content)
}

func TestAsk_RejectsEmptyAndConcurrent(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	c, _ := newContext(t, b, model.ModeSingle, nil)

	_, err := c.Ask(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Ask(context.Background(), "first", nil)
	}()

	// The first Ask holds the busy flag until its stream is released.
	require.Eventually(t, func() bool { return len(b.streamReqs()) == 1 }, timeout, tick)
	_, err = c.Ask(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(b.block)
	<-done
}

func TestAsk_CancelledTurnIsStopped(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	c, st := newContext(t, b, model.ModeSingle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply, err := c.Ask(ctx, "never answered", nil)
	require.NoError(t, err)
	assert.True(t, reply.Cancelled())

	stored, err := st.Load(c.Session().ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Len(), "empty cancelled turn appends nothing")
}

// =============================================================================
// COUNCIL MODE
// =============================================================================

func TestAsk_CouncilRunsPersonasThenChair(t *testing.T) {
	b := &fakeBackend{reply: func(req completion.Request) string {
		if strings.HasPrefix(systemOf(req), council.ChairSystemPrompt) {
			return "We agree."
		}
		return "opinion"
	}}
	c, st := newContext(t, b, model.ModeCouncil, func(d *Deps, o *Options) {
		o.ChairModel = "chair"
	})

	var stages []council.Stage
	reply, err := c.Ask(context.Background(), "Should we?", func(ev Event) {
		if ev.Kind == EventCouncil && ev.Progress.Started {
			stages = append(stages, ev.Progress.Stage)
		}
	})
	require.NoError(t, err)
	require.NotNil(t, reply.Council)
	require.NotNil(t, reply.Council.Consensus)
	assert.Equal(t, "We agree.", reply.Answer())
	assert.Equal(t, []council.Stage{council.StagePersona, council.StagePersona, council.StagePersona, council.StageConsensus}, stages)

	reqs := b.streamReqs()
	require.Len(t, reqs, 4)
	assert.Equal(t, "chair", reqs[3].Model)

	stored, err := st.Load(c.Session().ID)
	require.NoError(t, err)
	msgs := stored.History()
	require.Len(t, msgs, 2, "persona answers are not persisted")
	assert.True(t, msgs[1].IsConsensus())
}

func TestAsk_CouncilWithoutPersonas(t *testing.T) {
	c, _ := newContext(t, &fakeBackend{}, model.ModeCouncil, nil)
	c.SetPersonas(nil)

	_, err := c.Ask(context.Background(), "q", nil)
	assert.ErrorIs(t, err, council.ErrNoPersonas)
	assert.Equal(t, 0, c.Session().Len())
}

// =============================================================================
// RESEARCH
// =============================================================================

func TestAsk_ResearchInjectsRetrieval(t *testing.T) {
	b := &fakeBackend{complete: func(req completion.Request) (string, error) {
		return "france capital", nil
	}}
	search := &fakeSearcher{results: []research.Result{{Title: "Paris", Snippet: "Capital.", Link: "https://x"}}}
	c, _ := newContext(t, b, model.ModeSingle, func(d *Deps, o *Options) {
		d.Searcher = search
	})
	require.NoError(t, c.SetResearch(true))

	var sources []research.Result
	reply, err := c.Ask(context.Background(), "Capital of France?", func(ev Event) {
		if ev.Kind == EventSources {
			sources = ev.Sources
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "france capital", search.query)
	assert.Equal(t, "france capital", reply.Query)
	assert.Len(t, sources, 1)

	msgs := b.streamReqs()[0].Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	retrieval := msgs[len(msgs)-2]
	assert.Equal(t, "system", retrieval.Role)
	assert.Contains(t, retrieval.Content, "[SEARCH RESULTS START]")
	assert.Equal(t, "Capital of France?", msgs[len(msgs)-1].Content)
}

func TestAsk_ResearchSearchFailureProceeds(t *testing.T) {
	b := &fakeBackend{complete: func(req completion.Request) (string, error) { return "q", nil }}
	c, _ := newContext(t, b, model.ModeSingle, func(d *Deps, o *Options) {
		d.Searcher = &fakeSearcher{err: errors.New("blocked")}
	})
	require.NoError(t, c.SetResearch(true))

	reply, err := c.Ask(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, reply.Sources)
	for _, m := range b.streamReqs()[0].Messages[1:] {
		assert.NotEqual(t, "system", m.Role)
	}
}

func TestSetResearch_LocalOnlyRefuses(t *testing.T) {
	c, _ := newContext(t, &fakeBackend{}, model.ModeSingle, func(d *Deps, o *Options) {
		d.Searcher = &fakeSearcher{}
		d.Policy = offline.Policy{LocalOnly: true}
	})
	assert.ErrorIs(t, c.SetResearch(true), offline.ErrWebFetchBlocked)
	assert.NoError(t, c.SetResearch(false))
}

// =============================================================================
// TITLE, SUMMARY, SESSIONS
// =============================================================================

func TestAutoTitle(t *testing.T) {
	b := &fakeBackend{complete: func(req completion.Request) (string, error) {
		return `"Geography Basics"`, nil
	}}
	c, st := newContext(t, b, model.ModeSingle, nil)

	_, ok := c.AutoTitle(context.Background())
	assert.False(t, ok, "no exchange yet")

	_, err := c.Ask(context.Background(), "Capital of France?", nil)
	require.NoError(t, err)

	title, ok := c.AutoTitle(context.Background())
	require.True(t, ok)
	assert.Equal(t, "Geography Basics", title)

	stored, err := st.Load(c.Session().ID)
	require.NoError(t, err)
	assert.Equal(t, "Geography Basics", stored.Name)

	_, ok = c.AutoTitle(context.Background())
	assert.False(t, ok, "titled sessions keep their name")
}

func TestSummarize(t *testing.T) {
	b := &fakeBackend{
		reply:    func(completion.Request) string { return "<think>x</think>answer" },
		complete: func(req completion.Request) (string, error) { return "- one\n- two\n- three", nil },
	}
	c, _ := newContext(t, b, model.ModeSingle, nil)

	_, err := c.Summarize(context.Background())
	assert.ErrorIs(t, err, ErrEmptySession)

	_, err = c.Ask(context.Background(), "q", nil)
	require.NoError(t, err)

	summary, err := c.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "- one\n- two\n- three", summary)

	req := b.calls[len(b.calls)-1]
	assert.Equal(t, 200, req.MaxTokens)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "answer", req.Messages[1].Content)
	assert.Equal(t, SummaryPrompt, req.Messages[2].Content)
	assert.Equal(t, 2, c.Session().Len(), "summary is not stored")
}

func TestNewSessionAndResume(t *testing.T) {
	c, _ := newContext(t, &fakeBackend{}, model.ModeSingle, nil)

	_, err := c.Ask(context.Background(), "first", nil)
	require.NoError(t, err)
	firstID := c.Session().ID

	s := c.NewSession(model.ModeCouncil)
	assert.NotEqual(t, firstID, s.ID)
	assert.Equal(t, model.ModeCouncil, c.Session().CurrentMode())

	resumed, err := c.Resume(firstID[:8])
	require.NoError(t, err)
	assert.Equal(t, firstID, resumed.ID)
	assert.Equal(t, 2, c.Session().Len())

	require.NoError(t, c.Rename("Renamed"))
	assert.Equal(t, "Renamed", c.Session().Title())
}

type staticLister struct {
	models []string
	err    error
}

func (l staticLister) ListModels(context.Context) ([]string, error) {
	return l.models, l.err
}

func TestListAllModels(t *testing.T) {
	groups := ListAllModels(context.Background(), map[string]ModelLister{
		"openai": staticLister{models: []string{"qwen", "llama"}},
		"ollama": staticLister{err: errors.New("connection refused")},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "ollama", groups[0].Backend)
	assert.Error(t, groups[0].Err)
	assert.Equal(t, "connection refused", groups[0].Error)
	assert.Equal(t, "openai", groups[1].Backend)
	assert.Equal(t, []string{"llama", "qwen"}, groups[1].Models)
}
