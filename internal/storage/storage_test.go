// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/colossus/internal/model"
)

// backends runs fn against every Store implementation.
func backends(t *testing.T, max int, fn func(t *testing.T, st Store)) {
	t.Helper()
	for _, name := range []string{BackendJSON, BackendSQLite} {
		t.Run(name, func(t *testing.T) {
			st, err := Open(name, t.TempDir(), max)
			require.NoError(t, err)
			defer st.Close()
			fn(t, st)
		})
	}
}

func newSession(name string, modified time.Time, msgs ...string) *model.Session {
	s := model.NewSession(model.ModeSingle, "qwen3")
	for i, content := range msgs {
		if i%2 == 0 {
			s.Append(model.NewUserMessage(content))
		} else {
			s.Append(model.NewAssistantMessage(content))
		}
	}
	s.Rename(name)
	s.LastModified = modified
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	backends(t, 0, func(t *testing.T, st Store) {
		s := newSession("Go channels", time.Now(), "what is a channel?", "<think>hm</think>A pipe.")
		stopped := model.NewAssistantMessage("partial")
		stopped.Status = model.StatusStopped
		stopped.Duration = 1500 * time.Millisecond
		stopped.TokenCount = 12
		s.Append(stopped)
		consensus := model.NewAssistantMessage("We agree.")
		consensus.Kind = model.KindConsensus
		consensus.Persona = "Chair"
		s.Append(consensus)

		require.NoError(t, st.Save(s))

		got, err := st.Load(s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, "Go channels", got.Name)
		assert.Equal(t, model.ModeSingle, got.Mode)

		msgs := got.History()
		require.Len(t, msgs, 4)
		assert.Equal(t, model.RoleUser, msgs[0].Role)
		assert.Equal(t, "<think>hm</think>A pipe.", msgs[1].Content)
		assert.Equal(t, model.StatusStopped, msgs[2].Status)
		assert.Equal(t, 1500*time.Millisecond, msgs[2].Duration)
		assert.Equal(t, 12, msgs[2].TokenCount)
		assert.True(t, msgs[3].IsConsensus())
		assert.Equal(t, "Chair", msgs[3].Persona)
		assert.True(t, s.History()[0].Timestamp.Equal(msgs[0].Timestamp))
	})
}

func TestStore_SaveIsIncremental(t *testing.T) {
	backends(t, 0, func(t *testing.T, st Store) {
		s := newSession("n", time.Now(), "q1")
		require.NoError(t, st.Save(s))

		s.Append(model.NewAssistantMessage("a1"))
		s.Rename("renamed")
		require.NoError(t, st.Save(s))
		require.NoError(t, st.Save(s))

		got, err := st.Load(s.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, 2, got.Len())
	})
}

func TestStore_LoadMissing(t *testing.T) {
	backends(t, 0, func(t *testing.T, st Store) {
		_, err := st.Load("nope")
		assert.True(t, errors.Is(err, ErrSessionNotFound))
		assert.Contains(t, err.Error(), "nope")

		err = st.Delete("nope")
		assert.True(t, errors.Is(err, ErrSessionNotFound))
	})
}

func TestStore_ListOrderAndDelete(t *testing.T) {
	backends(t, 0, func(t *testing.T, st Store) {
		now := time.Now()
		old := newSession("old", now.Add(-time.Hour), "first question")
		mid := newSession("mid", now.Add(-time.Minute), "second")
		fresh := newSession("fresh", now, "third")
		for _, s := range []*model.Session{mid, old, fresh} {
			require.NoError(t, st.Save(s))
		}

		list, err := st.List()
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "fresh", list[0].Name)
		assert.Equal(t, "mid", list[1].Name)
		assert.Equal(t, "old", list[2].Name)
		assert.Equal(t, "first question", list[2].Preview)
		assert.Equal(t, 1, list[2].MessageCount)

		require.NoError(t, st.Delete(mid.ID))
		list, err = st.List()
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestStore_MaxSessionsPrunesOldest(t *testing.T) {
	backends(t, 2, func(t *testing.T, st Store) {
		now := time.Now()
		a := newSession("a", now.Add(-2*time.Hour), "x")
		b := newSession("b", now.Add(-time.Hour), "y")
		c := newSession("c", now, "z")
		for _, s := range []*model.Session{a, b, c} {
			require.NoError(t, st.Save(s))
		}

		list, err := st.List()
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "c", list[0].Name)
		assert.Equal(t, "b", list[1].Name)

		_, err = st.Load(a.ID)
		assert.True(t, errors.Is(err, ErrSessionNotFound))
	})
}

func TestSearch(t *testing.T) {
	backends(t, 0, func(t *testing.T, st Store) {
		now := time.Now()
		require.NoError(t, st.Save(newSession("Rust lifetimes", now, "borrowing?")))
		require.NoError(t, st.Save(newSession("Dinner", now.Add(-time.Minute), "recipe", "Try a GOROUTINE stew")))

		hits, err := Search(st, "rust")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Rust lifetimes", hits[0].Name)

		hits, err = Search(st, "goroutine")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Dinner", hits[0].Name)

		hits, err = Search(st, "  ")
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})
}

func TestResolve(t *testing.T) {
	backends(t, 0, func(t *testing.T, st Store) {
		now := time.Now()
		a := newSession("a", now, "x")
		b := newSession("b", now.Add(-time.Minute), "y")
		require.NoError(t, st.Save(a))
		require.NoError(t, st.Save(b))

		got, err := Resolve(st, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		got, err = Resolve(st, "2")
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)

		_, err = Resolve(st, "-1")
		assert.True(t, errors.Is(err, ErrSessionNotFound))

		if a.ID[:6] != b.ID[:6] {
			got, err = Resolve(st, b.ID[:6])
			require.NoError(t, err)
			assert.Equal(t, b.ID, got.ID)
		}

		_, err = Resolve(st, "zzzz")
		assert.True(t, errors.Is(err, ErrSessionNotFound))
	})
}

func TestJSONStore_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := NewJSONStore(dir, 0)
	require.NoError(t, err)

	require.NoError(t, st.Save(newSession("ok", time.Now(), "q")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].Name)
}

func TestJSONStore_RejectsPathIDs(t *testing.T) {
	st, err := NewJSONStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = st.Load("../etc/passwd")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir(), 0)
	assert.Error(t, err)
}

func TestFormatSessionList(t *testing.T) {
	assert.Equal(t, "No sessions found.", FormatSessionList(nil))

	out := FormatSessionList([]model.SessionSummary{{
		ID:           "0123456789abcdef",
		Name:         "A chat",
		Mode:         model.ModeCouncil,
		MessageCount: 4,
		LastModified: time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC),
	}})
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "council")
	assert.Contains(t, out, "2025-03-01 14:30")
	assert.Contains(t, out, "A chat")
}

func TestExportMarkdown(t *testing.T) {
	s := newSession("Export me", time.Now(), "question", "answer")
	m := model.NewAssistantMessage("cut off")
	m.Status = model.StatusInterrupted
	s.Append(m)

	md := ExportMarkdown(s)
	assert.True(t, strings.HasPrefix(md, "# Export me\n"))
	assert.Contains(t, md, "**You**")
	assert.Contains(t, md, "**Assistant**")
	assert.Contains(t, md, "cut off [CONNECTION LOST]")
}
