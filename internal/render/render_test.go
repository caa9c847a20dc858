// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/think"
)

func TestPanelCollapsesOnce(t *testing.T) {
	s := think.New()
	panel := NewPanel(true)

	if panel.Observe(s.Update("<think>plan")) {
		t.Fatal("panel collapsed while reasoning")
	}
	if !panel.Observe(s.Update("<think>plan</think>answer")) {
		t.Fatal("panel did not collapse on close")
	}

	panel.Toggle()
	if panel.Observe(s.Update("<think>plan</think>answer more")) {
		t.Error("later updates overrode the user's expand")
	}
}

func TestPanelKeepsEarlyUserToggle(t *testing.T) {
	s := think.New()
	panel := NewPanel(true)

	panel.Observe(s.Update("<think>plan"))
	panel.Toggle() // collapse while reasoning
	panel.Toggle() // and open it again
	if panel.Observe(s.Update("<think>plan</think>answer")) {
		t.Error("closing tag collapsed a panel the user had opened")
	}
}

func TestPanelAutoCollapseDisabled(t *testing.T) {
	s := think.New()
	panel := NewPanel(false)
	s.Update("<think>a")
	if panel.Observe(s.Update("<think>a</think>b")) {
		t.Error("panel collapsed with auto-collapse off")
	}
}

func TestTurnWithoutReasoning(t *testing.T) {
	r := New(Options{Width: 60})
	out := r.Turn(think.Split("hello there"), nil, "")
	if out != "hello there" {
		t.Errorf("Turn = %q, want plain answer", out)
	}
}

func TestTurnAnnotation(t *testing.T) {
	r := New(Options{Width: 60})
	out := r.Turn(think.Split("partial"), nil, "[STOPPED]")
	if !strings.Contains(out, "partial") || !strings.Contains(out, "[STOPPED]") {
		t.Errorf("Turn = %q, want text and annotation", out)
	}

	out = r.Turn(think.Split(""), nil, "[CONNECTION LOST]")
	if !strings.Contains(out, "[CONNECTION LOST]") {
		t.Errorf("Turn = %q, want annotation on empty text", out)
	}
}

func TestThinkingPanelStates(t *testing.T) {
	r := New(Options{Width: 60})

	live := r.Thinking(think.Split("<think>step one"), false)
	if !strings.Contains(live, "Thinking...") || !strings.Contains(live, "step one") {
		t.Errorf("live panel = %q", live)
	}

	done := think.Split("<think>a\nb\nc</think>x")
	collapsed := r.Thinking(done, true)
	if !strings.Contains(collapsed, "3 lines") {
		t.Errorf("collapsed panel = %q, want line count", collapsed)
	}
	if strings.Contains(collapsed, "a\nb") {
		t.Error("collapsed panel shows the body")
	}
}

func TestPlainLeavesProseAlone(t *testing.T) {
	in := "no code here\njust text"
	if got := Plain(in); got != in {
		t.Errorf("Plain = %q, want %q", got, in)
	}
}

func TestPlainKeepsFences(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	in := "before\n```go\nfmt.Println(1)\n```\nafter"
	if got := Plain(in); got != in {
		t.Errorf("Plain with NO_COLOR = %q, want input unchanged", got)
	}

	open := "x\n```\nunterminated"
	if got := Plain(open); got != open {
		t.Errorf("Plain(open fence) = %q", got)
	}
}

func TestMarkdownFallsBackWhenDisabled(t *testing.T) {
	r := New(Options{Markdown: false})
	if got := r.Markdown("# Title"); got != "# Title" {
		t.Errorf("Markdown = %q", got)
	}
}

func TestMarkdownRenders(t *testing.T) {
	r := New(Options{Markdown: true, Style: "notty", Width: 40})
	out := r.Markdown("**bold** text")
	if !strings.Contains(out, "bold") || strings.Contains(out, "**") {
		t.Errorf("Markdown = %q", out)
	}
}

func TestMetaLines(t *testing.T) {
	if got := LiveMeta("héllo", 3); !strings.Contains(got, "5 chars") || !strings.Contains(got, "~3 tokens") {
		t.Errorf("LiveMeta = %q", got)
	}
	got := FinalMeta("abc", 20, 2*time.Second)
	for _, want := range []string{"3 chars", "20 tokens", "10.0 t/s"} {
		if !strings.Contains(got, want) {
			t.Errorf("FinalMeta = %q, missing %q", got, want)
		}
	}
	if got := FinalMeta("abc", 0, time.Second); strings.Contains(got, "t/s") {
		t.Errorf("FinalMeta without tokens = %q", got)
	}
}

func TestMessageLabels(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	r := New(Options{Width: 60})

	user := r.Message(model.NewUserMessage("hi there"), nil)
	if !strings.Contains(user, "You") || !strings.Contains(user, "hi there") {
		t.Errorf("user message = %q", user)
	}

	m := model.NewAssistantMessage("<think>weighing</think>Paris")
	m.Kind = model.KindConsensus
	m.Model = "chair"
	m.Status = model.StatusStopped
	out := r.Message(m, NewPanel(true))
	for _, want := range []string{"Consensus", "(chair)", "Thought process", "Paris", "[STOPPED]"} {
		if !strings.Contains(out, want) {
			t.Errorf("consensus message missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "weighing") {
		t.Error("auto-collapsed panel showed its body")
	}
}
