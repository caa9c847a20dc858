// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/util"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a copy of the aggregate.
type Snapshot struct {
	Requests         int       `json:"requests"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	// LastSpeed is completion tokens per second of the most recent turn
	// that had both tokens and elapsed time.
	LastSpeed float64   `json:"last_speed"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TotalTokens returns prompt plus completion tokens.
func (s Snapshot) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// Format renders the snapshot for terminals.
func (s Snapshot) Format() string {
	return fmt.Sprintf("Requests: %d | Tokens: %d in / %d out | Last speed: %.1f tok/s",
		s.Requests, s.PromptTokens, s.CompletionTokens, s.LastSpeed)
}

// =============================================================================
// STATS
// =============================================================================

// Stats is the mutex-protected aggregate. It implements stream.UsageSink.
// A zero path keeps it in memory only.
type Stats struct {
	mu   sync.Mutex
	snap Snapshot
	path string
	log  zerolog.Logger
}

// Option configures Stats.
type Option func(*Stats)

// WithLogger sets the logger used for persistence failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Stats) { s.log = l }
}

// NewMemory returns an aggregate that is never persisted.
func NewMemory() *Stats {
	return &Stats{log: zerolog.Nop()}
}

// Open loads the aggregate at path, starting from zero when the file does
// not exist yet.
func Open(path string, opts ...Option) (*Stats, error) {
	s := &Stats{path: path, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := util.ReadJSON(path, &s.snap); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return s, nil
}

// Record adds one usage record and persists the new totals.
func (s *Stats) Record(rec model.UsageRecord) {
	s.mu.Lock()
	s.snap.Requests++
	s.snap.PromptTokens += rec.PromptTokens
	s.snap.CompletionTokens += rec.CompletionTokens
	if speed := rec.TokensPerSecond(); speed > 0 {
		s.snap.LastSpeed = speed
	}
	s.snap.UpdatedAt = time.Now()

	// Saving under the lock keeps the file in step with the newest totals.
	if err := s.save(s.snap); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist stats")
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of the totals.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Reset clears the totals and persists the empty aggregate.
func (s *Stats) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{UpdatedAt: time.Now()}
	return s.save(s.snap)
}

func (s *Stats) save(snap Snapshot) error {
	if s.path == "" {
		return nil
	}
	return util.WriteJSON(s.path, snap, 0o600)
}
