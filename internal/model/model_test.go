// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "System", RoleSystem.DisplayName())
	assert.Equal(t, "tool", Role("tool").DisplayName())
}

func TestStatusAnnotation(t *testing.T) {
	assert.Equal(t, "[STOPPED]", StatusStopped.Annotation())
	assert.Equal(t, "[CONNECTION LOST]", StatusInterrupted.Annotation())
	assert.Empty(t, StatusComplete.Annotation())
}

func TestNewMessage(t *testing.T) {
	m := NewUserMessage("hello")
	assert.True(t, strings.HasPrefix(m.ID, "msg_"))
	assert.Equal(t, RoleUser, m.Role)
	assert.False(t, m.Timestamp.IsZero())
	assert.False(t, m.IsConsensus())

	other := NewUserMessage("hello")
	assert.NotEqual(t, m.ID, other.ID)
}

func TestMessagePreview(t *testing.T) {
	m := NewUserMessage("abcdefghij")
	assert.Equal(t, "abcdefghij", m.Preview(10))
	assert.Equal(t, "abcd...", m.Preview(7))
}

func TestTokensPerSecond(t *testing.T) {
	u := UsageRecord{CompletionTokens: 50, Elapsed: 2 * time.Second}
	assert.InDelta(t, 25.0, u.TokensPerSecond(), 0.001)
	assert.Zero(t, UsageRecord{CompletionTokens: 5}.TokensPerSecond())

	m := Message{TokenCount: 10, Duration: time.Second}
	assert.InDelta(t, 10.0, m.TokensPerSecond(), 0.001)
}

func TestSessionAppendOnly(t *testing.T) {
	s := NewSession(ModeSingle, "m")
	require.True(t, s.IsUntitled())
	require.False(t, s.HasExchange())

	s.Append(NewUserMessage("q"))
	assert.False(t, s.HasExchange())
	s.Append(Message{Role: RoleAssistant, Content: "a"})
	assert.True(t, s.HasExchange())

	hist := s.History()
	require.Len(t, hist, 2)
	assert.NotEmpty(t, hist[1].ID, "append fills missing IDs")

	hist[0].Content = "mutated"
	assert.Equal(t, "q", s.History()[0].Content, "History returns a copy")

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "a", last.Content)
	assert.Equal(t, "q", s.FirstUserMessage())
}

func TestSessionRename(t *testing.T) {
	s := NewSession("", "m")
	assert.Equal(t, ModeSingle, s.CurrentMode())
	s.Rename("  Go rewrite  ")
	assert.Equal(t, "Go rewrite", s.Title())
	assert.False(t, s.IsUntitled())
	s.Rename("")
	assert.True(t, s.IsUntitled())
}

func TestSessionSnapshotIsIndependent(t *testing.T) {
	s := NewSession(ModeCouncil, "m")
	s.Append(NewUserMessage("one"))
	snap := s.Snapshot()
	s.Append(NewUserMessage("two"))
	assert.Len(t, snap.Messages, 1)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, ModeCouncil, snap.Mode)
}

func TestSessionSummary(t *testing.T) {
	s := NewSession(ModeSingle, "m")
	s.Append(NewMessage(RoleSystem, "sys"))
	s.Append(NewUserMessage(strings.Repeat("x", 80)))
	sum := s.Summary()
	assert.Equal(t, 2, sum.MessageCount)
	assert.Len(t, sum.Preview, 50)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeCouncil, ParseMode(" Council "))
	assert.Equal(t, ModeSingle, ParseMode("single"))
	assert.Equal(t, ModeSingle, ParseMode("whatever"))
}

func TestLoadPersonasWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	got, err := LoadPersonas(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPersonas(), got)

	again, err := LoadPersonas(path)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSaveAndLoadPersonas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	in := []Persona{{Name: "Chair", Prompt: "Decide.", ModelID: "big"}}
	require.NoError(t, SavePersonas(path, in))
	out, err := LoadPersonas(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, "big", out[0].ModelOr("small"))
	assert.Equal(t, "small", Persona{}.ModelOr("small"))
}

func TestValidatePersonas(t *testing.T) {
	assert.Error(t, ValidatePersonas([]Persona{{Name: " "}}))
	assert.Error(t, ValidatePersonas([]Persona{{Name: "A"}, {Name: "a"}}))
	assert.NoError(t, ValidatePersonas(nil))
}

func TestPersonaEditing(t *testing.T) {
	ps := DefaultPersonas()
	ps = UpsertPersona(ps, Persona{Name: "skeptic", Prompt: "new"})
	i, err := FindPersona(ps, "Skeptic")
	require.NoError(t, err)
	assert.Equal(t, "new", ps[i].Prompt)
	assert.Len(t, ps, 3)

	ps = UpsertPersona(ps, Persona{Name: "Historian"})
	assert.Len(t, ps, 4)

	ps, err = RemovePersona(ps, "analyst")
	require.NoError(t, err)
	assert.Len(t, ps, 3)

	_, err = RemovePersona(ps, "nobody")
	assert.ErrorIs(t, err, ErrPersonaNotFound)
}

func TestSessionPersonaAndModelOverride(t *testing.T) {
	s := NewSession(ModeSingle, "")
	assert.Equal(t, NoPersona, s.Persona())
	assert.Equal(t, "", s.ModelOverride())

	s.SetPersona(2)
	s.SetModel("  qwen3-14b ")
	assert.Equal(t, 2, s.Persona())
	assert.Equal(t, "qwen3-14b", s.ModelOverride())
	assert.Equal(t, 2, s.Snapshot().PersonaIndex)
}
