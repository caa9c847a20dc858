// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode selects how a session answers.
type Mode string

const (
	ModeSingle  Mode = "single"
	ModeCouncil Mode = "council"
)

// ParseMode maps a user string onto a Mode, defaulting to single.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeCouncil)) {
		return ModeCouncil
	}
	return ModeSingle
}

// DefaultSessionName is the placeholder name of an untitled session.
const DefaultSessionName = "New Chat"

// NoPersona as PersonaIndex answers single-mode turns with the configured
// system prompt instead of a persona.
const NoPersona = -1

// Session is an ordered, append-only message log.
//
// Exported fields exist for serialization. While a session is shared between
// a running turn and a renderer, go through the methods.
type Session struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Mode         Mode      `json:"mode"`
	Model        string    `json:"model"`
	PersonaIndex int       `json:"persona_index"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`

	mu sync.RWMutex
}

// NewSession creates an untitled session.
func NewSession(mode Mode, modelID string) *Session {
	now := time.Now()
	if mode == "" {
		mode = ModeSingle
	}
	return &Session{
		ID:           uuid.NewString(),
		Name:         DefaultSessionName,
		Mode:         mode,
		Model:        modelID,
		PersonaIndex: NoPersona,
		Messages:     []Message{},
		CreatedAt:    now,
		LastModified: now,
	}
}

// Append adds a message to the end of the log. It is the only mutation of
// the message list.
func (s *Session) Append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = generateID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.Messages = append(s.Messages, m)
	s.LastModified = time.Now()
}

// History returns a copy of the message log.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// Last returns the most recent message.
func (s *Session) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Title returns the session name.
func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Name
}

// Rename sets the session name.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Name = strings.TrimSpace(name)
	s.LastModified = time.Now()
}

// SetMode switches between single and council answering.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mode = m
	s.LastModified = time.Now()
}

// SetPersona selects the single-mode persona by index, or NoPersona.
func (s *Session) SetPersona(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PersonaIndex = index
	s.LastModified = time.Now()
}

// Persona returns the selected persona index.
func (s *Session) Persona() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PersonaIndex
}

// SetModel sets the per-session model override. Empty clears it.
func (s *Session) SetModel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = strings.TrimSpace(id)
	s.LastModified = time.Now()
}

// ModelOverride returns the per-session model, empty when unset.
func (s *Session) ModelOverride() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

// CurrentMode returns the session mode.
func (s *Session) CurrentMode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Mode
}

// IsUntitled reports whether the session still carries the placeholder name.
func (s *Session) IsUntitled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Name == "" || s.Name == DefaultSessionName
}

// HasExchange reports whether the log holds at least one user message and
// one assistant message.
func (s *Session) HasExchange() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var user, assistant bool
	for _, m := range s.Messages {
		switch m.Role {
		case RoleUser:
			user = true
		case RoleAssistant:
			assistant = true
		}
	}
	return user && assistant
}

// FirstUserMessage returns the content of the first user message.
func (s *Session) FirstUserMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}

// Snapshot returns an independent copy safe to serialize while the original
// keeps changing.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return &Session{
		ID:           s.ID,
		Name:         s.Name,
		Mode:         s.Mode,
		Model:        s.Model,
		PersonaIndex: s.PersonaIndex,
		Messages:     msgs,
		CreatedAt:    s.CreatedAt,
		LastModified: s.LastModified,
	}
}

// =============================================================================
// SUMMARY
// =============================================================================

// SessionSummary is the list view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Mode         Mode      `json:"mode"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
	LastModified time.Time `json:"last_modified"`
}

// Summary builds the list view of s.
func (s *Session) Summary() SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := SessionSummary{
		ID:           s.ID,
		Name:         s.Name,
		Mode:         s.Mode,
		Model:        s.Model,
		MessageCount: len(s.Messages),
		LastModified: s.LastModified,
	}
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			sum.Preview = m.Preview(50)
			break
		}
	}
	return sum
}
