// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile_CreatesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "file.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.json")
	in := map[string]int{"requests": 3}

	require.NoError(t, WriteJSON(path, in, 0o600))

	var out map[string]int
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestReadJSON_Missing(t *testing.T) {
	var v map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &v)
	assert.True(t, os.IsNotExist(err))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateRunes("short", 10))
	assert.Equal(t, "What is", TruncateRunes("What is the airspeed", 7))
	assert.Equal(t, "日本", TruncateRunes("日本語", 2))
	assert.Equal(t, "", TruncateRunes("anything", 0))
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 25, "short"},
		{"exactly twenty-five char", 25, "exactly twenty-five char"},
		{"What is the airspeed velocity of a swallow?", 25, "What is the airspeed velo..."},
		{"日本語のテキスト", 3, "日本語..."},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Snippet(tt.in, tt.max), tt.in)
	}
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "hello", TruncateWidth("hello", 10))
	assert.Equal(t, "hello w...", TruncateWidth("hello world!", 10))
	assert.LessOrEqual(t, StringWidth(TruncateWidth("日本語のテキスト", 7)), 7)
	assert.Equal(t, "", TruncateWidth("x", 0))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", OneLine("a\r\n b\n\nc"))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, 6, StringWidth(PadRight("ab", 6)))
}
