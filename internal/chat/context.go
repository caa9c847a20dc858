// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/offline"
	"github.com/jeranaias/colossus/internal/research"
	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/stream"
	"github.com/jeranaias/colossus/internal/think"
)

var (
	// ErrBusy is returned when a question is asked while another runs.
	ErrBusy = errors.New("a response is still being generated")
	// ErrEmptyQuestion is returned for blank input.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrEmptySession is returned when summarizing a session without messages.
	ErrEmptySession = errors.New("session has no messages")
)

const (
	// SingleSuffix is appended to the persona prompt in single mode.
	SingleSuffix = " Be helpful and answer in detail."

	// SummaryPrompt asks for a short recap of the conversation.
	SummaryPrompt    = "Summarize the above conversation in 3 bullet points."
	summaryMaxTokens = 200
)

// Backend is everything a Context needs from an inference server.
// *completion.Client and *ollama.Client implement it.
type Backend interface {
	stream.Backend
	Complete(ctx context.Context, req completion.Request) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Options are the per-client toggles.
type Options struct {
	// Model is the global default model.
	Model string
	// ChairModel runs council consensus; Model when empty.
	ChairModel    string
	Temperature   float64
	MaxTokens     int
	HistoryLimit  int
	Thinking      bool
	Research      bool
	SystemPrompt  string
	PersonaSuffix string
	TitleEnabled  bool
}

// Deps are the collaborators of a Context. Searcher, Store and Titles may
// be nil.
type Deps struct {
	Backend  Backend
	Runner   *stream.Session
	Titles   *council.TitleGenerator
	Searcher research.Searcher
	Store    storage.Store
	Policy   offline.Policy
	Logger   zerolog.Logger
}

// Context is the state of one chat client.
type Context struct {
	backend  Backend
	runner   *stream.Session
	council  *council.Orchestrator
	titles   *council.TitleGenerator
	searcher research.Searcher
	store    storage.Store
	policy   offline.Policy
	log      zerolog.Logger

	busy atomic.Bool

	mu       sync.RWMutex
	opts     Options
	personas []model.Persona
	session  *model.Session
}

// New creates a Context with a fresh session in mode.
func New(deps Deps, opts Options, personas []model.Persona, mode model.Mode) *Context {
	runner := deps.Runner
	if runner == nil {
		runner = stream.New(deps.Backend, stream.WithLogger(deps.Logger))
	}
	titles := deps.Titles
	if titles == nil && opts.TitleEnabled {
		titles = council.NewTitleGenerator(deps.Backend, council.WithTitleLogger(deps.Logger))
	}
	if opts.Temperature == 0 {
		opts.Temperature = completion.DefaultTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = completion.Unbounded
	}
	return &Context{
		backend:  deps.Backend,
		runner:   runner,
		council:  council.New(runner, council.WithLogger(deps.Logger)),
		titles:   titles,
		searcher: deps.Searcher,
		store:    deps.Store,
		policy:   deps.Policy,
		log:      deps.Logger,
		opts:     opts,
		personas: personas,
		session:  model.NewSession(mode, ""),
	}
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Session returns the current session.
func (c *Context) Session() *model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Options returns a copy of the current toggles.
func (c *Context) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Personas returns a copy of the persona list.
func (c *Context) Personas() []model.Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

// SetPersonas replaces the persona list, e.g. after the file changed.
func (c *Context) SetPersonas(p []model.Persona) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.personas = p
}

// SetThinking toggles thinking mode.
func (c *Context) SetThinking(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Thinking = on
}

// SetResearch toggles the research phase. Enabling it fails under the
// local-only policy or without a searcher.
func (c *Context) SetResearch(on bool) error {
	if on {
		if err := c.policy.CheckWebFetch(); err != nil {
			return err
		}
		if c.searcher == nil {
			return errors.New("web search is not configured")
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Research = on
	return nil
}

// SetModel changes the global default model.
func (c *Context) SetModel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Model = id
}

// SetMode switches the current session between single and council.
func (c *Context) SetMode(m model.Mode) error {
	c.Session().SetMode(m)
	return c.save()
}

// SelectPersona sets the single-mode persona by name. An empty name goes
// back to the configured system prompt.
func (c *Context) SelectPersona(name string) error {
	idx := model.NoPersona
	if strings.TrimSpace(name) != "" {
		c.mu.RLock()
		i, err := model.FindPersona(c.personas, name)
		c.mu.RUnlock()
		if err != nil {
			return err
		}
		idx = i
	}
	c.Session().SetPersona(idx)
	return c.save()
}

// SetSessionModel sets the model override of the current session.
func (c *Context) SetSessionModel(id string) error {
	c.Session().SetModel(id)
	return c.save()
}

// =============================================================================
// SESSIONS
// =============================================================================

// NewSession starts an empty session. Nothing is stored until the first
// question.
func (c *Context) NewSession(mode model.Mode) *model.Session {
	s := model.NewSession(mode, "")
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s
}

// Resume loads a stored session by ID, prefix or list index.
func (c *Context) Resume(ref string) (*model.Session, error) {
	if c.store == nil {
		return nil, errors.New("no session store configured")
	}
	s, err := storage.Resolve(c.store, ref)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return s, nil
}

// Rename sets the current session name.
func (c *Context) Rename(name string) error {
	c.Session().Rename(name)
	return c.save()
}

func (c *Context) save() error {
	if c.store == nil {
		return nil
	}
	s := c.Session()
	if s.Len() == 0 {
		return nil
	}
	if err := c.store.Save(s); err != nil {
		c.log.Error().Err(err).Str("session", s.ID).Msg("Failed to save session")
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// singleModel picks the model for single-mode turns: the session override,
// then the selected persona's model, then the global default.
func (c *Context) singleModel(s *model.Session) string {
	if m := s.ModelOverride(); m != "" {
		return m
	}
	if p, ok := c.persona(s); ok && p.ModelID != "" {
		return p.ModelID
	}
	return c.opts.Model
}

// persona returns the session's selected persona, if any.
func (c *Context) persona(s *model.Session) (model.Persona, bool) {
	if i := s.Persona(); i >= 0 && i < len(c.personas) {
		return c.personas[i], true
	}
	return model.Persona{}, false
}

func (c *Context) singleSystemPrompt(s *model.Session, thinking bool) string {
	base := c.opts.SystemPrompt
	if p, ok := c.persona(s); ok {
		base = p.Prompt + SingleSuffix
	}
	return stream.SystemPrompt(base, thinking)
}

// cleanHistory strips reasoning from assistant messages.
func cleanHistory(msgs []model.Message) []completion.Message {
	out := make([]completion.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			continue
		}
		content := m.Content
		if m.Role == model.RoleAssistant {
			content = think.Strip(content)
		}
		out = append(out, completion.Message{Role: m.Role.String(), Content: strings.TrimSpace(content)})
	}
	return out
}
