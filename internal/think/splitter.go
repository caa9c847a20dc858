// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package think

import (
	"strings"
	"unicode"
)

// =============================================================================
// MARKERS
// =============================================================================

const (
	// OpenTag is the canonical opening marker.
	OpenTag = "<think>"
	// CloseTag is the canonical closing marker. Every variant closes with it.
	CloseTag = "</think>"
)

// Variant is an opening marker the splitter can lock onto.
type Variant struct {
	// Name identifies the variant in logs and tests.
	Name string
	// Open is the marker text.
	Open string
	// PrefixOnly variants match case-insensitively and only at the start of
	// the whitespace-trimmed text. The canonical tag matches anywhere.
	PrefixOnly bool
}

// Canonical is the <think> tag variant.
var Canonical = Variant{Name: "tag", Open: OpenTag}

// Fallbacks are tried in order when the canonical tag is absent.
//
// "Research Objectives:" is the heading research-mode prompts ask for inside
// the tag; models sometimes drop the tag and start with the heading. A normal
// answer that happens to begin with that heading is misread as reasoning
// until a </think> shows up, which it never will. Known false positive.
var Fallbacks = []Variant{
	{Name: "think-colon", Open: "think:", PrefixOnly: true},
	{Name: "thinking-colon", Open: "thinking:", PrefixOnly: true},
	{Name: "thought-process", Open: "**Thought Process:**", PrefixOnly: true},
	{Name: "research-objectives", Open: "Research Objectives:", PrefixOnly: true},
}

// =============================================================================
// STATE
// =============================================================================

// Phase is the splitter state.
type Phase int

const (
	// Scanning: no opening marker seen yet.
	Scanning Phase = iota
	// InsideThinking: opened, no closing tag yet.
	InsideThinking
	// Closed: both markers seen. Terminal for the turn.
	Closed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Scanning:
		return "scanning"
	case InsideThinking:
		return "inside_thinking"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Projection is the split view of the accumulated text after one update.
type Projection struct {
	Phase Phase
	// Variant is the locked opening marker, nil while scanning.
	Variant *Variant
	// Thinking is the reasoning text between the markers.
	Thinking string
	// Answer is empty while reasoning is open and everything after the
	// closing tag once it closes.
	Answer string
	// SawTag reports whether any opening marker has been recognized.
	SawTag bool
	// AutoCollapse is true only on the update that closed the segment.
	// Renderers collapse the reasoning panel once on this signal and leave
	// any later expand/collapse to the user.
	AutoCollapse bool
}

// Splitter tracks one assistant turn. It is not safe for concurrent use.
type Splitter struct {
	phase   Phase
	variant *Variant
}

// New returns a splitter in the Scanning phase.
func New() *Splitter {
	return &Splitter{}
}

// Phase returns the current phase.
func (s *Splitter) Phase() Phase {
	return s.phase
}

// Split projects a complete text with a fresh splitter. It is the replay
// path for persisted messages: an unterminated segment stays InsideThinking.
func Split(text string) Projection {
	return New().Update(text)
}

// Update projects text, the full accumulated text of the turn so far.
// Callers must pass a superset of the previous text for the split to stay
// monotonic.
func (s *Splitter) Update(text string) Projection {
	if s.variant == nil {
		v, ok := detect(text)
		if !ok {
			return Projection{Phase: Scanning, Answer: text}
		}
		s.variant = v
		s.phase = InsideThinking
	}

	start, ok := locate(text, s.variant)
	if !ok {
		// Only reachable if the caller broke the superset contract.
		return Projection{Phase: s.phase, Variant: s.variant, Answer: text, SawTag: true}
	}

	// Text before the opening marker belongs to neither part.
	body := text[start+len(s.variant.Open):]

	end := strings.Index(body, CloseTag)
	if end < 0 {
		return Projection{
			Phase:    s.phase,
			Variant:  s.variant,
			Thinking: body,
			SawTag:   true,
		}
	}

	justClosed := s.phase != Closed
	s.phase = Closed
	return Projection{
		Phase:        Closed,
		Variant:      s.variant,
		Thinking:     body[:end],
		Answer:       body[end+len(CloseTag):],
		SawTag:       true,
		AutoCollapse: justClosed,
	}
}

// detect picks the opening marker for text, canonical first.
func detect(text string) (*Variant, bool) {
	if strings.Contains(text, OpenTag) {
		v := Canonical
		return &v, true
	}
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	for i := range Fallbacks {
		if hasPrefixFold(trimmed, Fallbacks[i].Open) {
			v := Fallbacks[i]
			return &v, true
		}
	}
	return nil, false
}

// locate returns the byte offset of the locked opening marker in text.
func locate(text string, v *Variant) (int, bool) {
	if !v.PrefixOnly {
		i := strings.Index(text, v.Open)
		return i, i >= 0
	}
	offset := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	if !hasPrefixFold(text[offset:], v.Open) {
		return 0, false
	}
	return offset, true
}

// hasPrefixFold is a case-insensitive HasPrefix for ASCII markers.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
