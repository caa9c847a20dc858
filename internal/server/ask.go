// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/research"
	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/stream"
	"github.com/jeranaias/colossus/internal/think"
)

// ============================================================================
// REQUEST AND EVENT TYPES
// ============================================================================

// AskRequest is the body of POST /v1/sessions/{id}/ask. Nil toggles keep
// the server defaults.
type AskRequest struct {
	Question string `json:"question"`
	Thinking *bool  `json:"thinking,omitempty"`
	Research *bool  `json:"research,omitempty"`
	// Mode switches the session before asking.
	Mode string `json:"mode,omitempty"`
}

// Event names on the ask stream.
const (
	EventStatus     = "status"
	EventSources    = "sources"
	EventProjection = "projection"
	EventPersona    = "persona"
	EventConsensus  = "consensus"
	EventDone       = "done"
	EventTitle      = "title"
	EventError      = "error"
)

// ProjectionData is the split view of a streaming turn.
type ProjectionData struct {
	Phase        string `json:"phase"`
	Thinking     string `json:"thinking,omitempty"`
	Answer       string `json:"answer"`
	Deltas       int    `json:"deltas"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	AutoCollapse bool   `json:"auto_collapse,omitempty"`
}

// PersonaData reports one council run. Index is -1 for the chair.
type PersonaData struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	Color      string          `json:"color,omitempty"`
	Started    bool            `json:"started,omitempty"`
	Done       bool            `json:"done,omitempty"`
	Status     string          `json:"status,omitempty"`
	Projection *ProjectionData `json:"projection,omitempty"`
}

// StatusData is a transient progress line.
type StatusData struct {
	Status string `json:"status"`
	Query  string `json:"query,omitempty"`
}

// SourcesData carries the research results.
type SourcesData struct {
	Query   string            `json:"query"`
	Results []research.Result `json:"results"`
}

// DoneData is the final event of a turn.
type DoneData struct {
	Mode        string             `json:"mode"`
	Outcome     string             `json:"outcome"`
	Answer      string             `json:"answer"`
	Annotation  string             `json:"annotation,omitempty"`
	Cancelled   bool               `json:"cancelled"`
	NoConsensus bool               `json:"no_consensus,omitempty"`
	Message     string             `json:"message,omitempty"`
	Usage       *model.UsageRecord `json:"usage,omitempty"`
	Personas    []PersonaData      `json:"personas,omitempty"`
	// SaveError reports that the session could not be persisted.
	SaveError   string             `json:"save_error,omitempty"`
}

// TitleData announces the session's generated title.
type TitleData struct {
	Title string `json:"title"`
}

// ErrorData reports a failure after the stream started.
type ErrorData struct {
	Message string `json:"message"`
}

// ============================================================================
// SSE WRITER
// ============================================================================

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	failed  bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// send writes one named event. After the first write error it is a no-op;
// the request context is cancelled by then.
func (s *sseWriter) send(event string, v any) {
	if s.failed {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.failed = true
		return
	}
	s.flusher.Flush()
}

// ============================================================================
// ASK HANDLER
// ============================================================================

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.NewChat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}
	if !s.requireStore(w) {
		return
	}

	var req AskRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, chat.ErrEmptyQuestion.Error())
		return
	}
	if utf8.RuneCountInString(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusRequestEntityTooLarge, "question too long")
		return
	}

	id := chi.URLParam(r, "id")
	if !s.acquire(id) {
		writeError(w, http.StatusConflict, ErrSessionBusy.Error())
		return
	}
	defer s.release(id)

	c := s.deps.NewChat()
	sess, err := c.Resume(id)
	if err == nil && sess.ID != id {
		// Resume also accepts list indexes and prefixes; the API does not.
		err = storage.ErrSessionNotFound
	}
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.storeError(w, err)
		return
	}
	if err := s.applyToggles(c, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if c.Session().CurrentMode() == model.ModeCouncil && len(c.Personas()) == 0 {
		writeError(w, http.StatusUnprocessableEntity, council.ErrNoPersonas.Error())
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	reply, err := c.Ask(ctx, req.Question, func(ev chat.Event) {
		forwardEvent(sse, ev)
	})
	if err != nil {
		sse.send(EventError, ErrorData{Message: err.Error()})
		return
	}
	sse.send(EventDone, doneData(reply))

	if ctx.Err() != nil || reply.Cancelled() {
		return
	}
	titleCtx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()
	if title, ok := c.AutoTitle(titleCtx); ok {
		sse.send(EventTitle, TitleData{Title: title})
	}
}

func (s *Server) applyToggles(c *chat.Context, req AskRequest) error {
	if req.Mode != "" {
		mode := model.ParseMode(req.Mode)
		if string(mode) != strings.ToLower(strings.TrimSpace(req.Mode)) {
			return fmt.Errorf("unknown mode %q", req.Mode)
		}
		if err := c.SetMode(mode); err != nil {
			return err
		}
	}
	if req.Thinking != nil {
		c.SetThinking(*req.Thinking)
	}
	if req.Research != nil {
		if err := c.SetResearch(*req.Research); err != nil {
			return err
		}
	}
	return nil
}

// forwardEvent maps a chat event onto the SSE stream.
func forwardEvent(sse *sseWriter, ev chat.Event) {
	switch ev.Kind {
	case chat.EventStatus:
		sse.send(EventStatus, StatusData{Status: ev.Status, Query: ev.Query})
	case chat.EventSources:
		results := ev.Sources
		if results == nil {
			results = []research.Result{}
		}
		sse.send(EventSources, SourcesData{Query: ev.Query, Results: results})
	case chat.EventStream:
		sse.send(EventProjection, projectionData(ev.Update))
	case chat.EventCouncil:
		name := EventPersona
		if ev.Progress.Stage == council.StageConsensus {
			name = EventConsensus
		}
		sse.send(name, progressData(ev.Progress))
	}
}

func projectionData(u stream.Update) *ProjectionData {
	return projectionOf(u.Projection, u.Deltas, u.Elapsed.Milliseconds())
}

func projectionOf(p think.Projection, deltas int, elapsedMs int64) *ProjectionData {
	return &ProjectionData{
		Phase:        p.Phase.String(),
		Thinking:     p.Thinking,
		Answer:       p.Answer,
		Deltas:       deltas,
		ElapsedMs:    elapsedMs,
		AutoCollapse: p.AutoCollapse,
	}
}

func progressData(p council.Progress) PersonaData {
	name := p.Persona.Name
	if p.Stage == council.StageConsensus {
		name = "Consensus"
	}
	d := PersonaData{
		Index:   p.Index,
		Name:    name,
		Color:   p.Persona.Color,
		Started: p.Started,
		Done:    p.Done,
	}
	switch {
	case p.Done && p.Outcome != nil:
		d.Status = p.Outcome.Status.String()
		d.Projection = projectionOf(p.Outcome.Result.Projection, p.Outcome.Result.Deltas, p.Outcome.Result.Usage.Elapsed.Milliseconds())
	case p.Done && p.Result != nil:
		d.Status = p.Result.Outcome.String()
		d.Projection = projectionOf(p.Result.Projection, p.Result.Deltas, p.Result.Usage.Elapsed.Milliseconds())
	case p.Done:
		d.Status = "no_consensus"
	case !p.Started:
		d.Projection = projectionData(p.Update)
	}
	return d
}

func doneData(reply chat.Reply) DoneData {
	d := DoneData{
		Mode:      string(reply.Mode),
		Answer:    reply.Answer(),
		Cancelled: reply.Cancelled(),
	}
	if reply.SaveErr != nil {
		d.SaveError = reply.SaveErr.Error()
	}
	if res := reply.Single; res != nil {
		d.Outcome = res.Outcome.String()
		d.Annotation = res.Annotation
		if res.UsageRecorded {
			usage := res.Usage
			d.Usage = &usage
		}
		return d
	}
	if out := reply.Council; out != nil {
		d.NoConsensus = out.NoConsensus
		d.Message = out.Message
		for i, p := range out.Personas {
			d.Personas = append(d.Personas, PersonaData{
				Index:  i,
				Name:   p.Persona.Name,
				Color:  p.Persona.Color,
				Done:   p.Ran,
				Status: p.Status.String(),
			})
		}
		switch {
		case out.Consensus != nil:
			d.Outcome = out.Consensus.Outcome.String()
			d.Annotation = out.Consensus.Annotation
			if out.Consensus.UsageRecorded {
				usage := out.Consensus.Usage
				d.Usage = &usage
			}
		case out.Cancelled:
			d.Outcome = stream.Cancelled.String()
		default:
			d.Outcome = "no_consensus"
		}
	}
	return d
}
