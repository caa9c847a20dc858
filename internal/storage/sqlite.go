// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/colossus/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    mode TEXT NOT NULL,
    model TEXT NOT NULL,
    persona_index INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,     -- Unix nanoseconds
    last_modified INTEGER NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS messages (
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,            -- position in the append-only log
    id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    persona TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    timestamp INTEGER NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    duration_ns INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, seq),
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_sessions_modified ON sessions(last_modified);
`

// SQLiteStore keeps sessions in one SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	maxSessions int
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string, maxSessions int) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and :memory:
	// databases are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, maxSessions: maxSessions}, nil
}

// Save upserts the session row and inserts messages not stored yet.
func (st *SQLiteStore) Save(s *model.Session) error {
	snap := s.Snapshot()

	tx, err := st.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, name, mode, model, persona_index, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mode = excluded.mode,
			model = excluded.model,
			persona_index = excluded.persona_index,
			last_modified = excluded.last_modified`,
		snap.ID, snap.Name, string(snap.Mode), snap.Model, snap.PersonaIndex,
		snap.CreatedAt.UnixNano(), snap.LastModified.UnixNano())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	var stored int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, snap.ID).Scan(&stored); err != nil {
		return fmt.Errorf("count messages: %w", err)
	}

	if stored < len(snap.Messages) {
		stmt, err := tx.Prepare(`
			INSERT INTO messages (session_id, seq, id, role, content, kind, status, persona, model, timestamp, token_count, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for seq := stored; seq < len(snap.Messages); seq++ {
			m := snap.Messages[seq]
			if _, err := stmt.Exec(snap.ID, seq, m.ID, string(m.Role), m.Content, string(m.Kind), string(m.Status),
				m.Persona, m.Model, m.Timestamp.UnixNano(), m.TokenCount, int64(m.Duration)); err != nil {
				return fmt.Errorf("insert message %d: %w", seq, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if st.maxSessions > 0 {
		return st.enforceLimit()
	}
	return nil
}

// Load retrieves a session with its messages.
func (st *SQLiteStore) Load(id string) (*model.Session, error) {
	var s model.Session
	var mode string
	var created, modified int64
	err := st.db.QueryRow(`
		SELECT id, name, mode, model, persona_index, created_at, last_modified
		FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &mode, &s.Model, &s.PersonaIndex, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	s.Mode = model.Mode(mode)
	s.CreatedAt = time.Unix(0, created)
	s.LastModified = time.Unix(0, modified)

	rows, err := st.db.Query(`
		SELECT id, role, content, kind, status, persona, model, timestamp, token_count, duration_ns
		FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	s.Messages = []model.Message{}
	for rows.Next() {
		var m model.Message
		var role, kind, status string
		var ts, dur int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &kind, &status, &m.Persona, &m.Model, &ts, &m.TokenCount, &dur); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.Kind = model.Kind(kind)
		m.Status = model.Status(status)
		m.Timestamp = time.Unix(0, ts)
		m.Duration = time.Duration(dur)
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns summaries, most recent first.
func (st *SQLiteStore) List() ([]model.SessionSummary, error) {
	rows, err := st.db.Query(`
		SELECT s.id, s.name, s.mode, s.model, s.last_modified,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id),
			COALESCE((SELECT m.content FROM messages m WHERE m.session_id = s.id AND m.role = 'user' ORDER BY m.seq LIMIT 1), '')
		FROM sessions s
		ORDER BY s.last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []model.SessionSummary{}
	for rows.Next() {
		var sum model.SessionSummary
		var mode, first string
		var modified int64
		if err := rows.Scan(&sum.ID, &sum.Name, &mode, &sum.Model, &modified, &sum.MessageCount, &first); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Mode = model.Mode(mode)
		sum.LastModified = time.Unix(0, modified)
		sum.Preview = model.Message{Content: first}.Preview(50)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a session and its messages.
func (st *SQLiteStore) Delete(id string) error {
	res, err := st.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

// Close closes the database.
func (st *SQLiteStore) Close() error {
	return st.db.Close()
}

func (st *SQLiteStore) enforceLimit() error {
	_, err := st.db.Exec(`
		DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY last_modified DESC LIMIT ?
		)`, st.maxSessions)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	return nil
}
