// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain collects events until Done or an error.
func drain(t *testing.T, d *Decoder) ([]Event, error) {
	t.Helper()
	var out []Event
	for i := 0; i < 1000; i++ {
		ev, err := d.Next()
		if err != nil {
			return out, err
		}
		out = append(out, ev)
		if ev.Kind == EventDone {
			return out, nil
		}
	}
	t.Fatal("decoder never finished")
	return nil, nil
}

func deltas(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == EventDelta {
			sb.WriteString(ev.Delta)
		}
	}
	return sb.String()
}

func TestDecoder_DeltasAndDone(t *testing.T) {
	stream := "" +
		`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Hello", deltas(events))
	assert.Equal(t, EventDone, events[2].Kind)
}

func TestDecoder_UsageEvent(t *testing.T) {
	stream := "" +
		`data: {"choices":[{"delta":{"content":"a"}}]}` + "\n\n" +
		`data: {"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":34}}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventUsage, events[1].Kind)
	assert.Equal(t, &Usage{PromptTokens: 12, CompletionTokens: 34}, events[1].Usage)
}

func TestDecoder_DeltaAndUsageInOneEvent(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"x"}}],"usage":{"prompt_tokens":1,"completion_tokens":2}}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventDelta, events[0].Kind)
	assert.Equal(t, EventUsage, events[1].Kind)
	assert.Equal(t, 2, events[1].Usage.CompletionTokens)
}

func TestDecoder_SkipsMalformed(t *testing.T) {
	stream := "" +
		": keep-alive comment\n\n" +
		"event: message\n" +
		`data: {"choices":[{"delta":{"content":"ok"}}]}` + "\n\n" +
		"data: {not json\n\n" +
		"garbage line\n\n" +
		`data: {"choices":[{"delta":{"content":"!"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "ok!", deltas(events))
}

func TestDecoder_UnseparatedDataLines(t *testing.T) {
	stream := "" +
		`data: {"choices":[{"delta":{"content":"a"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"b"}},"usage":{"prompt_tokens":3,"completion_tokens":2}}` + "\n" +
		"data: {garbage\n" +
		`data: {"choices":[{"delta":{"content":"c"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "abc", deltas(events))

	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventDelta, EventDelta, EventUsage, EventDelta, EventDone}, kinds)
}

func TestDecoder_EOFWithoutDoneEndsNormally(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"tail"}}]}`

	d := NewDecoder(strings.NewReader(stream), zerolog.Nop())
	events, err := drain(t, d)
	require.NoError(t, err)
	assert.Equal(t, "tail", deltas(events))

	ev, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, EventDone, ev.Kind, "Done is sticky")
}

func TestDecoder_MultibyteAcrossReads(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"héllo wörld 你好"}}]}` + "\n\n" + "data: [DONE]\n\n"

	// OneByteReader splits every rune across reads.
	events, err := drain(t, NewDecoder(iotest.OneByteReader(strings.NewReader(stream)), zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld 你好", deltas(events))
}

func TestDecoder_CRLF(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r\n\r\ndata: [DONE]\r\n\r\n"
	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "a", deltas(events))
}

func TestDecoder_OversizedEventSkipped(t *testing.T) {
	huge := `data: {"choices":[{"delta":{"content":"` + strings.Repeat("x", MaxEventSize+10) + `"}}]}`
	stream := huge + "\n\n" +
		`data: {"choices":[{"delta":{"content":"small"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	events, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "small", deltas(events))
}

func TestDecoder_ErrorPayload(t *testing.T) {
	stream := `data: {"error":{"message":"model unloaded","code":"model_not_loaded"}}` + "\n\n"
	_, err := drain(t, NewDecoder(strings.NewReader(stream), zerolog.Nop()))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "model unloaded", apiErr.Message)
	assert.Equal(t, "model_not_loaded", apiErr.Code)
}

func TestDecoder_ReadErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader(`data: {"choices":[{"delta":{"content":"part"}}]}`+"\n\n"),
		iotest.ErrReader(boom),
	)
	events, err := drain(t, NewDecoder(r, zerolog.Nop()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "part", deltas(events))
}

type sliceSource struct {
	events []Event
	err    error
}

func (s *sliceSource) Next() (Event, error) {
	if len(s.events) == 0 {
		return Event{}, s.err
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func TestPump_DeliversErrorEvent(t *testing.T) {
	boom := errors.New("boom")
	src := &sliceSource{events: []Event{{Kind: EventDelta, Delta: "a"}}, err: boom}
	ch := make(chan Event)
	go func() {
		defer close(ch)
		Pump(context.Background(), src, ch)
	}()

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventError, got[1].Kind)
	assert.ErrorIs(t, got[1].Err, boom)
}

func TestPump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSource{events: []Event{{Kind: EventDelta, Delta: "a"}, {Kind: EventDelta, Delta: "b"}}}
	ch := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Pump(ctx, src, ch)
	}()

	<-ch
	cancel()
	<-done
}
