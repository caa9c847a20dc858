// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/colossus/internal/model"
)

func TestRecordAccumulates(t *testing.T) {
	s := NewMemory()
	s.Record(model.UsageRecord{PromptTokens: 10, CompletionTokens: 40, Elapsed: 2 * time.Second})
	s.Record(model.UsageRecord{PromptTokens: 5, CompletionTokens: 0, Elapsed: time.Second})

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Requests)
	assert.Equal(t, 15, snap.PromptTokens)
	assert.Equal(t, 40, snap.CompletionTokens)
	assert.Equal(t, 55, snap.TotalTokens())
	assert.InDelta(t, 20.0, snap.LastSpeed, 0.001, "zero-token turn keeps the previous speed")
	assert.Contains(t, snap.Format(), "Requests: 2")
}

func TestPersistAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	s, err := Open(path)
	require.NoError(t, err)
	s.Record(model.UsageRecord{PromptTokens: 1, CompletionTokens: 2, Elapsed: time.Second})

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Snapshot().Requests)
	assert.Equal(t, 2, reopened.Snapshot().CompletionTokens)

	require.NoError(t, reopened.Reset())
	again, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, again.Snapshot().Requests)
}

func TestConcurrentRecord(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(model.UsageRecord{PromptTokens: 1, CompletionTokens: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Snapshot().Requests)
}
