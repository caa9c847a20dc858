// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/util"
)

// JSONStore keeps one JSON file per session under a directory.
type JSONStore struct {
	// BaseDir is the directory for session files.
	BaseDir string

	// MaxSessions limits stored sessions (0 = unlimited).
	MaxSessions int

	mu sync.Mutex
}

// NewJSONStore creates a store rooted at dir.
func NewJSONStore(dir string, maxSessions int) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &JSONStore{BaseDir: dir, MaxSessions: maxSessions}, nil
}

// Save persists a snapshot of s. The write is atomic.
func (st *JSONStore) Save(s *model.Session) error {
	snap := s.Snapshot()

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := util.WriteJSON(st.filePath(snap.ID), snap, 0o600); err != nil {
		return err
	}
	if st.MaxSessions > 0 {
		st.enforceLimit()
	}
	return nil
}

// Load retrieves a session by ID.
func (st *JSONStore) Load(id string) (*model.Session, error) {
	if !validID(id) {
		return nil, notFound(id)
	}
	var s model.Session
	if err := util.ReadJSON(st.filePath(id), &s); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return &s, nil
}

// List returns all sessions, most recent first. Corrupted files are skipped.
func (st *JSONStore) List() ([]model.SessionSummary, error) {
	entries, err := os.ReadDir(st.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.SessionSummary{}, nil
		}
		return nil, err
	}

	out := make([]model.SessionSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		s, err := st.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		out = append(out, s.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Delete removes a session by ID.
func (st *JSONStore) Delete(id string) error {
	if !validID(id) {
		return notFound(id)
	}
	if err := os.Remove(st.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return err
	}
	return nil
}

// Close is a no-op.
func (st *JSONStore) Close() error { return nil }

// enforceLimit removes the oldest sessions if over the limit.
func (st *JSONStore) enforceLimit() {
	all, err := st.List()
	if err != nil || len(all) <= st.MaxSessions {
		return
	}
	for _, sum := range all[st.MaxSessions:] {
		st.Delete(sum.ID)
	}
}

func (st *JSONStore) filePath(id string) string {
	return filepath.Join(st.BaseDir, id+".json")
}

// validID rejects IDs that would escape BaseDir.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
