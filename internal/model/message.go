// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// KIND AND STATUS
// =============================================================================

// Kind distinguishes ordinary replies from council consensus reports.
type Kind string

const (
	KindPlain     Kind = ""
	KindConsensus Kind = "consensus"
)

// Status records how an assistant turn ended when it did not complete.
type Status string

const (
	StatusComplete Status = ""
	// StatusStopped: cancelled by the user after some text arrived.
	StatusStopped Status = "stopped"
	// StatusInterrupted: the stream failed after some text arrived.
	StatusInterrupted Status = "interrupted"
)

// Annotation is the inline marker shown after a partial reply.
func (s Status) Annotation() string {
	switch s {
	case StatusStopped:
		return "[STOPPED]"
	case StatusInterrupted:
		return "[CONNECTION LOST]"
	default:
		return ""
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of a session log. Content is stored raw; reasoning
// segments are split out only when rendering.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Kind      Kind      `json:"kind,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Persona   string    `json:"persona,omitempty"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	TokenCount int           `json:"token_count,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
}

// NewMessage creates a message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// IsConsensus reports whether m is a council consensus report.
func (m Message) IsConsensus() bool {
	return m.Kind == KindConsensus
}

// Preview returns the first maxRunes runes of the content.
func (m Message) Preview(maxRunes int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxRunes {
		return m.Content
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// TokensPerSecond derives generation speed from the stored stats.
func (m Message) TokensPerSecond() float64 {
	if m.TokenCount == 0 || m.Duration <= 0 {
		return 0
	}
	return float64(m.TokenCount) / m.Duration.Seconds()
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "msg_" + hex.EncodeToString(b)
}
