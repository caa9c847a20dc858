// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/util"
)

// Store persists sessions. Implementations are safe for concurrent use.
type Store interface {
	// Save writes the session, creating or updating it.
	Save(s *model.Session) error
	// Load returns the session or ErrSessionNotFound.
	Load(id string) (*model.Session, error)
	// List returns summaries, most recently modified first.
	List() ([]model.SessionSummary, error)
	// Delete removes the session or returns ErrSessionNotFound.
	Delete(id string) error
	Close() error
}

// Backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultMaxSessions bounds the number of stored sessions.
const DefaultMaxSessions = 200

// Open creates the store named by backend under dir.
func Open(backend, dir string, maxSessions int) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return NewJSONStore(filepath.Join(dir, "sessions"), maxSessions)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "sessions.db"), maxSessions)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound is returned when a session doesn't exist.
// Use errors.Is(err, ErrSessionNotFound) to check for this error.
var ErrSessionNotFound = &SessionError{Message: "session not found"}

// SessionError represents a session-related error.
type SessionError struct {
	Message string
	ID      string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// Is compares by message so per-ID errors match the sentinel.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(id string) error {
	return &SessionError{Message: ErrSessionNotFound.Message, ID: id}
}

// =============================================================================
// QUERIES OVER ANY STORE
// =============================================================================

// Search returns summaries whose name, preview or message content contains
// query (case-insensitive).
func Search(st Store, query string) ([]model.SessionSummary, error) {
	all, err := st.List()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}

	var out []model.SessionSummary
	for _, sum := range all {
		if strings.Contains(strings.ToLower(sum.Name), query) ||
			strings.Contains(strings.ToLower(sum.Preview), query) {
			out = append(out, sum)
			continue
		}
		s, err := st.Load(sum.ID)
		if err != nil {
			continue
		}
		for _, m := range s.History() {
			if strings.Contains(strings.ToLower(m.Content), query) {
				out = append(out, sum)
				break
			}
		}
	}
	return out, nil
}

// Resolve finds a session by full ID, 1-based index into List, or unique
// ID prefix.
func Resolve(st Store, ref string) (*model.Session, error) {
	if s, err := st.Load(ref); err == nil {
		return s, nil
	}
	all, err := st.List()
	if err != nil {
		return nil, err
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 1 && idx <= len(all) {
		return st.Load(all[idx-1].ID)
	}
	var match string
	for _, sum := range all {
		if strings.HasPrefix(sum.ID, ref) {
			if match != "" {
				return nil, fmt.Errorf("ambiguous session reference %q", ref)
			}
			match = sum.ID
		}
	}
	if match == "" {
		return nil, notFound(ref)
	}
	return st.Load(match)
}

func sortSummaries(list []model.SessionSummary) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastModified.After(list[j].LastModified)
	})
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatSessionList formats summaries as a table for terminals.
func FormatSessionList(sessions []model.SessionSummary) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("#", 4) + util.PadRight("ID", 10) + util.PadRight("Mode", 9) +
		util.PadRight("Modified", 18) + util.PadRight("Msgs", 6) + "Name\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")
	for i, s := range sessions {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(fmt.Sprint(i+1), 4) +
			util.PadRight(id, 10) +
			util.PadRight(string(s.Mode), 9) +
			util.PadRight(s.LastModified.Format("2006-01-02 15:04"), 18) +
			util.PadRight(fmt.Sprint(s.MessageCount), 6) +
			util.TruncateWidth(s.Name, 30) + "\n")
	}
	return sb.String()
}

// ExportMarkdown renders a session as Markdown.
func ExportMarkdown(s *model.Session) string {
	snap := s.Snapshot()
	var sb strings.Builder
	sb.WriteString("# " + snap.Name + "\n\n")
	sb.WriteString("Mode: " + string(snap.Mode) + " | Model: " + snap.Model + "\n\n")
	sb.WriteString("Created: " + snap.CreatedAt.Format(time.RFC3339) + "\n\n---\n\n")

	for _, m := range snap.Messages {
		label := "**" + m.Role.DisplayName() + "**"
		if m.IsConsensus() {
			label = "**Council consensus**"
		} else if m.Persona != "" {
			label = "**" + m.Persona + "**"
		}
		sb.WriteString(label + " (" + m.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(m.Content)
		if a := m.Status.Annotation(); a != "" {
			sb.WriteString(" " + a)
		}
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}
