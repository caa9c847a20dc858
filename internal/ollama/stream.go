// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/completion"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader decodes Ollama's NDJSON stream into completion events.
// The final done line yields a Usage event and then Done.
type StreamReader struct {
	reader  *bufio.Reader
	log     zerolog.Logger
	pending []completion.Event
	done    bool
}

// NewStreamReader creates a stream reader from an io.Reader.
func NewStreamReader(r io.Reader, log zerolog.Logger) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r), log: log}
}

// Next implements completion.Source.
func (s *StreamReader) Next() (completion.Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return completion.Event{Kind: completion.EventDone}, nil
		}
		if err := s.readChunk(); err != nil {
			if err == io.EOF {
				s.done = true
				continue
			}
			return completion.Event{}, err
		}
	}
}

// readChunk reads and parses a single line, queueing the events it yields.
func (s *StreamReader) readChunk() error {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return err
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	if len(line) > completion.MaxEventSize {
		s.log.Debug().Int("bytes", len(line)).Msg("skipping oversized ndjson line")
		return nil
	}

	var resp ChatResponse
	if jerr := json.Unmarshal(line, &resp); jerr != nil {
		s.log.Debug().Err(jerr).Msg("skipping malformed ndjson line")
		return nil
	}
	if resp.Error != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
	}

	if resp.Message.Content != "" {
		s.pending = append(s.pending, completion.Event{Kind: completion.EventDelta, Delta: resp.Message.Content})
	}
	if resp.Done {
		if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
			s.pending = append(s.pending, completion.Event{
				Kind: completion.EventUsage,
				Usage: &completion.Usage{
					PromptTokens:     resp.PromptEvalCount,
					CompletionTokens: resp.EvalCount,
				},
			})
		}
		s.pending = append(s.pending, completion.Event{Kind: completion.EventDone})
		s.done = true
	}
	return nil
}
