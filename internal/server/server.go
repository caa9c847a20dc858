// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize caps JSON request bodies.
	MaxRequestBodySize = 1 << 20

	// MaxQuestionLength caps a question in runes.
	MaxQuestionLength = 100000

	// DefaultRequestsPerMinute is the per-client rate limit.
	DefaultRequestsPerMinute = 120

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second

	// titleTimeout bounds the title request after a turn.
	titleTimeout = 30 * time.Second
)

// ErrSessionBusy is returned when a session already has a turn running.
var ErrSessionBusy = errors.New("session is busy")

// ============================================================================
// SERVER
// ============================================================================

// Config configures a Server.
type Config struct {
	Addr string
	// Token enables bearer authentication when non-empty.
	Token string
	// RequestsPerMinute is the per-client limit. Zero uses the default,
	// negative disables limiting.
	RequestsPerMinute int
	Version           string
	Logger            zerolog.Logger
}

// Deps are the collaborators behind the endpoints.
type Deps struct {
	// NewChat builds a chat context for one request.
	NewChat func() *chat.Context
	Store   storage.Store
	Stats   *telemetry.Stats
	// Personas returns the current persona list.
	Personas func() []model.Persona
	// Models are the backends listed by /v1/models.
	Models map[string]chat.ModelLister
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	deps    Deps
	log     zerolog.Logger
	router  chi.Router
	started time.Time

	// inflight holds the IDs of sessions with a running turn.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New creates a Server and its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		log:      cfg.Logger,
		started:  time.Now(),
		inflight: make(map[string]struct{}),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

func (s *Server) routes() chi.Router {
	var limiter *RateLimiter
	if s.cfg.RequestsPerMinute > 0 {
		limiter = NewRateLimiter(s.cfg.RequestsPerMinute, s.cfg.RequestsPerMinute/4)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(s.log))
	r.Use(SecurityHeadersMiddleware())
	r.Use(LoggingMiddleware(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Token, s.log))
		r.Use(RateLimitMiddleware(limiter))

		r.Get("/stats", s.handleStats)
		r.Get("/models", s.handleModels)
		r.Get("/personas", s.handlePersonas)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Post("/{id}/ask", s.handleAsk)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Str("version", s.cfg.Version).Msg("Server started")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HANDLERS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.cfg.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeJSON(w, http.StatusOK, telemetry.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Stats.Snapshot())
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backends": chat.ListAllModels(r.Context(), s.deps.Models),
	})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	var personas []model.Persona
	if s.deps.Personas != nil {
		personas = s.deps.Personas()
	}
	if personas == nil {
		personas = []model.Persona{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": personas})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var (
		list []model.SessionSummary
		err  error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		list, err = storage.Search(s.deps.Store, q)
	} else {
		list, err = s.deps.Store.List()
	}
	if err != nil {
		s.log.Error().Err(err).Msg("List sessions failed")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if list == nil {
		list = []model.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	Name    string `json:"name"`
	Mode    string `json:"mode"`
	Model   string `json:"model"`
	Persona string `json:"persona"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req CreateSessionRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := model.NewSession(model.ParseMode(req.Mode), "")
	sess.SetModel(req.Model)
	if name := strings.TrimSpace(req.Name); name != "" {
		sess.Rename(name)
	}
	if req.Persona != "" && s.deps.Personas != nil {
		idx, err := model.FindPersona(s.deps.Personas(), req.Persona)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess.SetPersona(idx)
	}
	if err := s.deps.Store.Save(sess); err != nil {
		s.log.Error().Err(err).Msg("Create session failed")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sess, err := s.deps.Store.Load(chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if s.isBusy(id) {
		writeError(w, http.StatusConflict, ErrSessionBusy.Error())
		return
	}
	if err := s.deps.Store.Delete(id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no session store configured")
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.log.Error().Err(err).Msg("Session store failed")
	writeError(w, http.StatusInternalServerError, "session store error")
}

// acquire marks id busy. It fails if a turn is already running on it.
func (s *Server) acquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Server) release(id string) {
	s.inflightMu.Lock()
	delete(s.inflight, id)
	s.inflightMu.Unlock()
}

func (s *Server) isBusy(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Message: message, Code: status}})
}
