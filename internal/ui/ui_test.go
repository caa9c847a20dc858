// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/commands"
	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scriptBackend streams reply in two deltas. With hold set it sends only
// the first half and then waits for cancellation.
type scriptBackend struct {
	reply func(req completion.Request) string
	hold  bool
}

func (b *scriptBackend) Stream(ctx context.Context, req completion.Request) <-chan completion.Event {
	text := "ok"
	if b.reply != nil {
		text = b.reply(req)
	}
	ch := make(chan completion.Event)
	go func() {
		defer close(ch)
		half := len(text) / 2
		events := []completion.Event{
			{Kind: completion.EventDelta, Delta: text[:half]},
			{Kind: completion.EventDelta, Delta: text[half:]},
			{Kind: completion.EventDone},
		}
		if b.hold {
			events = events[:1]
		}
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if b.hold {
			<-ctx.Done()
		}
	}()
	return ch
}

func (b *scriptBackend) Complete(ctx context.Context, req completion.Request) (string, error) {
	return "Title", nil
}

func (b *scriptBackend) ListModels(ctx context.Context) ([]string, error) {
	return []string{"m"}, nil
}

func newTestModel(t *testing.T, b *scriptBackend, personas []model.Persona) Model {
	t.Helper()
	store, err := storage.NewJSONStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	c := chat.New(chat.Deps{Backend: b, Store: store}, chat.Options{Model: "test-model"}, personas, model.ModeSingle)
	m := New(Config{
		Chat: c,
		Renderer: func(width int) *render.Renderer {
			return render.New(render.Options{Width: width, CollapseThinking: true})
		},
		Env: &commands.Env{Chat: c, Store: store},
	})
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func submit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// drain feeds every message of the running turn to the model.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	ch := m.turnCh
	if ch == nil {
		t.Fatal("no turn running")
	}
	for msg := range ch {
		m = update(t, m, msg)
	}
	return m
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestSingleTurnStreamsAndStores(t *testing.T) {
	b := &scriptBackend{reply: func(completion.Request) string { return "<think>recall</think>Paris." }}
	m := newTestModel(t, b, nil)

	m, _ = submit(t, m, "Capital of France?")
	if m.state != StateStreaming || m.turn == nil {
		t.Fatalf("state = %v, turn = %v", m.state, m.turn)
	}
	if m.input.Value() != "" {
		t.Error("input not cleared on submit")
	}

	m = drain(t, m)
	if m.state != StateReady || m.turn != nil {
		t.Fatalf("turn still running: state %v", m.state)
	}

	history := m.chat.Session().History()
	if len(history) != 2 {
		t.Fatalf("session holds %d messages, want 2", len(history))
	}
	panel, ok := m.panels[history[1].ID]
	if !ok {
		t.Fatal("live panel not carried over to the stored reply")
	}
	if !panel.Collapsed() {
		t.Error("reasoning panel did not auto-collapse")
	}

	out := m.renderTranscript()
	for _, want := range []string{"Capital of France?", "Paris.", "Thought process"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestToggleThinkingExpandsLatestPanel(t *testing.T) {
	b := &scriptBackend{reply: func(completion.Request) string { return "<think>recall</think>Paris." }}
	m := newTestModel(t, b, nil)
	m, _ = submit(t, m, "q")
	m = drain(t, m)

	if strings.Contains(m.renderTranscript(), "recall") {
		t.Fatal("collapsed panel shows its body")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if !strings.Contains(m.renderTranscript(), "recall") {
		t.Error("expanded panel hides its body")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if strings.Contains(m.renderTranscript(), "recall") {
		t.Error("second toggle did not collapse")
	}
}

func TestCouncilTurnKeepsPersonaAnswers(t *testing.T) {
	b := &scriptBackend{reply: func(req completion.Request) string {
		return "view of " + req.Model
	}}
	personas := []model.Persona{
		{Name: "Optimist", Prompt: "be upbeat", Color: "#00ff00"},
		{Name: "Pessimist", Prompt: "be gloomy"},
	}
	m := newTestModel(t, b, personas)
	if err := m.chat.SetMode(model.ModeCouncil); err != nil {
		t.Fatal(err)
	}

	m, _ = submit(t, m, "Should we ship?")
	m = drain(t, m)

	blocks := m.councilBlocks[0]
	if len(blocks) != 2 {
		t.Fatalf("kept %d persona answers, want 2", len(blocks))
	}
	out := m.renderTranscript()
	for _, want := range []string{"Optimist", "Pessimist", "Consensus"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
	if n := m.chat.Session().Len(); n != 2 {
		t.Errorf("session holds %d messages, want question and consensus", n)
	}
}

func TestCancelKeepsPartialAnswer(t *testing.T) {
	b := &scriptBackend{reply: func(completion.Request) string { return "partial answer" }, hold: true}
	m := newTestModel(t, b, nil)
	m, _ = submit(t, m, "long question")

	ch := m.turnCh
	for msg := range ch {
		m = update(t, m, msg)
		if ev, ok := msg.(turnEventMsg); ok && ev.ev.Kind == chat.EventStream {
			break
		}
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if !m.turn.cancelling {
		t.Fatal("Esc did not cancel the turn")
	}
	for msg := range ch {
		m = update(t, m, msg)
	}

	last, ok := m.chat.Session().Last()
	if !ok || last.Status != model.StatusStopped {
		t.Fatalf("last message = %+v, want stopped partial", last)
	}
	if !strings.Contains(m.renderTranscript(), "[STOPPED]") {
		t.Error("transcript lacks the stopped marker")
	}
}

func TestSubmitIgnoredWhileStreaming(t *testing.T) {
	b := &scriptBackend{hold: true}
	m := newTestModel(t, b, nil)
	m, _ = submit(t, m, "first")
	id := m.turn.id

	m, cmd := submit(t, m, "second")
	if cmd != nil || m.turn.id != id {
		t.Error("a second question started while streaming")
	}
	m.cancelMgr.cancel()
	drain(t, m)
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

// runCmd executes cmd and any batch it expands to, collecting messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestSlashCommandRunsThroughRegistry(t *testing.T) {
	m := newTestModel(t, &scriptBackend{}, nil)
	m, cmd := submit(t, m, "/think")
	if m.state != StateBusy {
		t.Fatalf("state = %v, want busy", m.state)
	}
	for _, msg := range runCmd(cmd) {
		if done, ok := msg.(commandDoneMsg); ok {
			m = update(t, m, done)
		}
	}
	if m.state != StateReady {
		t.Errorf("state = %v after command", m.state)
	}
	if !m.chat.Options().Thinking {
		t.Error("/think did not enable thinking")
	}
	if m.notice != "Thinking on" {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestSlashCommandErrorShown(t *testing.T) {
	m := newTestModel(t, &scriptBackend{}, nil)
	m, cmd := submit(t, m, "/council")
	for _, msg := range runCmd(cmd) {
		if done, ok := msg.(commandDoneMsg); ok {
			m = update(t, m, done)
		}
	}
	if !strings.Contains(m.errText, "no personas") {
		t.Errorf("errText = %q", m.errText)
	}
}

func TestPersonasReloaded(t *testing.T) {
	m := newTestModel(t, &scriptBackend{}, nil)
	m = update(t, m, PersonasReloadedMsg{Personas: model.DefaultPersonas()})
	if got := len(m.chat.Personas()); got != len(model.DefaultPersonas()) {
		t.Errorf("chat has %d personas after reload", got)
	}
}

func TestTabCompletesCommand(t *testing.T) {
	m := newTestModel(t, &scriptBackend{}, nil)
	m.input.SetValue("/resu")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.input.Value(); got != "/resume " {
		t.Errorf("completed to %q", got)
	}

	m.input.SetValue("/s")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.input.Value(); got != "/s" {
		t.Errorf("ambiguous prefix completed to %q", got)
	}
}

func TestCompleteCommon(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"/resume"}, "/resume"},
		{[]string{"/research", "/resume"}, "/res"},
		{[]string{"/sessions", "/single", "/stats"}, "/s"},
	}
	for _, tc := range tests {
		if got := completeCommon(tc.in); got != tc.want {
			t.Errorf("completeCommon(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
