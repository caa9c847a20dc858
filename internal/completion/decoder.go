// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// MaxEventSize bounds a single SSE line. Larger lines are skipped.
const MaxEventSize = 1 << 20

var doneMarker = []byte("[DONE]")

// errEventTooLarge is internal; oversized events are logged and skipped.
var errEventTooLarge = errors.New("sse event exceeds MaxEventSize")

// Source yields decoded events. Both the SSE and NDJSON decoders implement it.
type Source interface {
	Next() (Event, error)
}

// Decoder turns an SSE byte stream into Events.
//
// Every data line is parsed as its own payload, so a corrupt line costs only
// itself and chunks sent without a blank line between them still decode.
// Reading is line oriented, so a multi-byte rune split across two network
// reads is reassembled before any JSON is parsed.
type Decoder struct {
	r       *bufio.Reader
	log     zerolog.Logger
	pending []Event
	done    bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, log zerolog.Logger) *Decoder {
	return &Decoder{r: bufio.NewReader(r), log: log}
}

// Next returns the next event. After Done it keeps returning Done. A payload
// carrying both a delta and usage yields the delta first. A read error other
// than io.EOF is returned as is; io.EOF without [DONE] ends the stream
// normally.
func (d *Decoder) Next() (Event, error) {
	if len(d.pending) > 0 {
		ev := d.pending[0]
		d.pending = d.pending[1:]
		return ev, nil
	}
	if d.done {
		return Event{Kind: EventDone}, nil
	}

	for {
		data, err := d.readPayload()
		if errors.Is(err, errEventTooLarge) {
			d.log.Debug().Int("limit", MaxEventSize).Msg("skipping oversized sse line")
			continue
		}
		if err == io.EOF {
			d.done = true
			return Event{Kind: EventDone}, nil
		}
		if err != nil {
			return Event{}, err
		}

		ev, ok, err := d.parse(data)
		if err != nil {
			return Event{}, err
		}
		if ok {
			return ev, nil
		}
	}
}

// parse converts one data payload. ok is false for payloads that carry
// nothing the caller needs (role-only deltas, finish markers, junk).
func (d *Decoder) parse(data []byte) (Event, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Event{}, false, nil
	}
	if bytes.Equal(data, doneMarker) {
		d.done = true
		return Event{Kind: EventDone}, true, nil
	}

	var c chunk
	if err := json.Unmarshal(data, &c); err != nil {
		d.log.Debug().Err(err).Int("bytes", len(data)).Msg("skipping malformed sse payload")
		return Event{}, false, nil
	}
	if c.Error != nil && c.Error.Message != "" {
		return Event{}, false, fromPayload(0, c.Error)
	}

	content := c.content()
	switch {
	case content != "" && c.Usage != nil:
		d.pending = append(d.pending, Event{Kind: EventUsage, Usage: c.Usage})
		return Event{Kind: EventDelta, Delta: content}, true, nil
	case content != "":
		return Event{Kind: EventDelta, Delta: content}, true, nil
	case c.Usage != nil:
		return Event{Kind: EventUsage, Usage: c.Usage}, true, nil
	default:
		return Event{}, false, nil
	}
}

// readPayload returns the payload of the next data line. Blank lines and
// other fields (event:, id:, retry:, comments) are skipped.
func (d *Decoder) readPayload() ([]byte, error) {
	for {
		line, tooLong, err := d.readLine()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if tooLong {
			return nil, errEventTooLarge
		}
		line = bytes.TrimRight(line, "\r\n")
		if bytes.HasPrefix(line, []byte("data:")) {
			// A final line without a newline still counts; the reader
			// reports io.EOF again on the next call.
			return bytes.TrimPrefix(line[5:], []byte(" ")), nil
		}
		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

// readLine reads one line, discarding the content of lines longer than
// MaxEventSize instead of buffering them.
func (d *Decoder) readLine() ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		frag, err := d.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(frag) > MaxEventSize {
				tooLong = true
				line = nil
			} else {
				line = append(line, frag...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, tooLong, err
	}
}

// =============================================================================
// CHANNEL PUMP
// =============================================================================

// Pump moves events from src into ch until Done, an error or cancellation.
// A source error is delivered as EventError unless ctx is already done. Pump
// does not close ch.
func Pump(ctx context.Context, src Source, ch chan<- Event) {
	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			send(ctx, ch, Event{Kind: EventError, Err: err})
			return
		}
		if !send(ctx, ch, ev) {
			return
		}
		if ev.Kind == EventDone {
			return
		}
	}
}

func send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
