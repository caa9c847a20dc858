// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/completion"
)

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func readAll(t *testing.T, r *StreamReader) []completion.Event {
	t.Helper()
	var out []completion.Event
	for i := 0; i < 100; i++ {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, ev)
		if ev.Kind == completion.EventDone {
			return out
		}
	}
	t.Fatal("stream never finished")
	return nil
}

func TestStreamReader_DeltasUsageDone(t *testing.T) {
	input := `{"model":"m","message":{"role":"assistant","content":"Hel"},"done":false}
{"model":"m","message":{"role":"assistant","content":"lo"},"done":false}
not json
{"model":"m","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":7,"eval_count":2}
`
	events := readAll(t, NewStreamReader(strings.NewReader(input), zerolog.Nop()))

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Delta != "Hel" || events[1].Delta != "lo" {
		t.Errorf("deltas = %q, %q", events[0].Delta, events[1].Delta)
	}
	if events[2].Kind != completion.EventUsage {
		t.Fatalf("events[2].Kind = %v, want usage", events[2].Kind)
	}
	if events[2].Usage.PromptTokens != 7 || events[2].Usage.CompletionTokens != 2 {
		t.Errorf("usage = %+v", events[2].Usage)
	}
}

func TestStreamReader_EOFWithoutDone(t *testing.T) {
	input := `{"message":{"content":"partial"},"done":false}`
	events := readAll(t, NewStreamReader(strings.NewReader(input), zerolog.Nop()))
	if len(events) != 2 || events[0].Delta != "partial" {
		t.Errorf("events = %+v", events)
	}
}

func TestStreamReader_ErrorLine(t *testing.T) {
	r := NewStreamReader(strings.NewReader(`{"error":"model 'x' not found"}`+"\n"), zerolog.Nop())
	_, err := r.Next()
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Next() error = %v, want server error", err)
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func newTestClient(url string) *Client {
	return NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: 5 * time.Second})
}

func TestClient_Stream(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"b"},"done":true,"prompt_eval_count":3,"eval_count":2}`)
	}))
	defer srv.Close()

	var text strings.Builder
	var kinds []completion.EventKind
	for ev := range newTestClient(srv.URL).Stream(context.Background(), completion.Request{
		Model:       "m",
		Messages:    []completion.Message{completion.NewUserMessage("hi")},
		Temperature: 0.7,
	}) {
		kinds = append(kinds, ev.Kind)
		text.WriteString(ev.Delta)
	}

	if text.String() != "ab" {
		t.Errorf("text = %q, want 'ab'", text.String())
	}
	if len(kinds) != 4 || kinds[3] != completion.EventDone {
		t.Errorf("kinds = %v", kinds)
	}
	if !got.Stream || got.Options == nil || got.Options.NumPredict != -1 {
		t.Errorf("request = %+v", got)
	}
}

func TestClient_StreamModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var last completion.Event
	for ev := range newTestClient(srv.URL).Stream(context.Background(), completion.Request{Model: "nope"}) {
		last = ev
	}
	if last.Kind != completion.EventError || !IsModelNotFound(last.Err) {
		t.Errorf("last event = %+v, want model-not-found error", last)
	}
}

func TestClient_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestClient(url).CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("CheckRunning() error = %v, want not running", err)
	}
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"A Title"},"done":true}`)
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Complete(context.Background(), completion.Request{Model: "m", MaxTokens: 50})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "A Title" {
		t.Errorf("text = %q", text)
	}
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"qwen2.5:7b"},{"name":"llama3:8b"}]}`)
	}))
	defer srv.Close()

	names, err := newTestClient(srv.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(names) != 2 || names[0] != "llama3:8b" {
		t.Errorf("names = %v", names)
	}
}

func TestClientErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &ClientError{Type: ErrTypeTimeout, Message: "slow"})
	if !IsTimeout(err) {
		t.Error("wrapped timeout not recognized")
	}
	if IsNotRunning(err) {
		t.Error("timeout misread as not running")
	}
}
