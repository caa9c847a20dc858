// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/commands"
	"github.com/jeranaias/colossus/internal/completion"
	"github.com/jeranaias/colossus/internal/config"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/offline"
	"github.com/jeranaias/colossus/internal/ollama"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/research"
	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/stream"
	"github.com/jeranaias/colossus/internal/telemetry"
)

// Backend kinds.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// =============================================================================
// APP
// =============================================================================

// App holds everything the commands share. It is built once per process
// from the loaded config.
type App struct {
	Config *config.Config
	Log    zerolog.Logger
	Policy offline.Policy

	Backend  chat.Backend
	Listers  map[string]chat.ModelLister
	Stats    *telemetry.Stats
	Store    storage.Store
	Searcher research.Searcher

	personasPath string
	mu           sync.RWMutex
	personas     []model.Persona
}

// NewApp wires clients, stores and telemetry from cfg.
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	policy := offline.Policy{LocalOnly: cfg.Offline.LocalOnly}
	app := &App{Config: cfg, Log: log, Policy: policy}

	openai, ollamaClient := newClients(cfg, policy, log)
	app.Listers = map[string]chat.ModelLister{}
	if openai != nil {
		app.Listers[BackendOpenAI] = openai
	}
	if ollamaClient != nil {
		app.Listers[BackendOllama] = ollamaClient
	}
	switch cfg.Backend.Kind {
	case BackendOllama:
		if ollamaClient == nil {
			return nil, fmt.Errorf("ollama endpoint %s is blocked by the local-only policy", cfg.Backend.OllamaURL)
		}
		app.Backend = ollamaClient
	default:
		if openai == nil {
			return nil, fmt.Errorf("endpoint %s is blocked by the local-only policy", cfg.Backend.BaseURL)
		}
		app.Backend = openai
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	app.Stats, err = telemetry.Open(filepath.Join(dataDir, "stats.json"), telemetry.WithLogger(log))
	if err != nil {
		log.Warn().Err(err).Msg("Stats file unreadable, starting from zero")
		app.Stats = telemetry.NewMemory()
	}

	app.Store, err = storage.Open(cfg.Storage.Backend, dataDir, cfg.Storage.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	app.personasPath, err = cfg.PersonasPath()
	if err != nil {
		return nil, err
	}
	if err := app.ReloadPersonas(); err != nil {
		log.Warn().Err(err).Str("path", app.personasPath).Msg("Using default personas")
	}

	if !policy.LocalOnly {
		app.Searcher = research.NewDuckDuckGo(research.Config{
			Endpoint:   cfg.Research.Endpoint,
			Proxy:      cfg.Research.Proxy,
			MaxResults: cfg.Research.MaxResults,
			Timeout:    time.Duration(cfg.Research.TimeoutSecs) * time.Second,
			Logger:     log,
		})
	}
	return app, nil
}

// newClients builds both backends. A backend whose endpoint the policy
// rejects is returned as nil.
func newClients(cfg *config.Config, policy offline.Policy, log zerolog.Logger) (*completion.Client, *ollama.Client) {
	var openai *completion.Client
	if err := policy.CheckEndpoint(cfg.Backend.BaseURL); err == nil {
		openai = completion.NewClient(completion.Config{
			BaseURL:           cfg.Backend.BaseURL,
			APIKey:            cfg.Backend.APIKey,
			Timeout:           cfg.Timeout(),
			MaxRetries:        cfg.Backend.MaxRetries,
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
			Logger:            log,
			HTTPClient:        &http.Client{Transport: policy.Transport(nil)},
		})
	} else {
		log.Debug().Err(err).Msg("OpenAI-compatible backend disabled")
	}

	var ollamaClient *ollama.Client
	if err := policy.CheckEndpoint(cfg.Backend.OllamaURL); err == nil {
		ollamaClient = ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:           cfg.Backend.OllamaURL,
			Timeout:           cfg.Timeout(),
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
			Logger:            log,
			HTTPClient:        &http.Client{Transport: policy.Transport(nil)},
		})
	} else {
		log.Debug().Err(err).Msg("Ollama backend disabled")
	}
	return openai, ollamaClient
}

// Personas returns a copy of the loaded persona list.
func (a *App) Personas() []model.Persona {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Persona, len(a.personas))
	copy(out, a.personas)
	return out
}

// PersonasPath returns the persona file location.
func (a *App) PersonasPath() string {
	return a.personasPath
}

// ReloadPersonas rereads the persona file. On error the previous list (or
// the defaults) stays in place.
func (a *App) ReloadPersonas() error {
	personas, err := model.LoadPersonas(a.personasPath)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		if a.personas == nil {
			a.personas = model.DefaultPersonas()
		}
		return err
	}
	a.personas = personas
	return nil
}

// SavePersonas writes personas and makes them current.
func (a *App) SavePersonas(personas []model.Persona) error {
	if err := model.SavePersonas(a.personasPath, personas); err != nil {
		return err
	}
	a.mu.Lock()
	a.personas = personas
	a.mu.Unlock()
	return nil
}

// ChatOptions maps the config onto chat toggles.
func (a *App) ChatOptions() chat.Options {
	c := a.Config.Chat
	return chat.Options{
		Model:         c.Model,
		ChairModel:    c.ChairModel,
		Temperature:   c.Temperature,
		MaxTokens:     c.MaxTokens,
		HistoryLimit:  c.HistoryLimit,
		Thinking:      c.Thinking,
		Research:      a.Config.Research.Enabled && !a.Policy.LocalOnly,
		SystemPrompt:  c.SystemPrompt,
		PersonaSuffix: c.PersonaPromptSuffix,
		TitleEnabled:  c.TitleEnabled,
	}
}

// NewChat builds a chat context on the shared backend, store and stats.
func (a *App) NewChat(mode model.Mode) *chat.Context {
	if mode == "" {
		mode = model.ParseMode(a.Config.Chat.Mode)
	}
	runner := stream.New(a.Backend,
		stream.WithLogger(a.Log),
		stream.WithUsageSink(a.Stats),
	)
	var titles *council.TitleGenerator
	if a.Config.Chat.TitleEnabled {
		titles = council.NewTitleGenerator(a.Backend,
			council.WithSettleDelay(a.Config.TitleDelay()),
			council.WithTitleLogger(a.Log),
		)
	}
	return chat.New(chat.Deps{
		Backend:  a.Backend,
		Runner:   runner,
		Titles:   titles,
		Searcher: a.Searcher,
		Store:    a.Store,
		Policy:   a.Policy,
		Logger:   a.Log,
	}, a.ChatOptions(), a.Personas(), mode)
}

// Renderer builds the terminal renderer from the UI config.
func (a *App) Renderer(width int) *render.Renderer {
	ui := a.Config.UI
	if ui.WordWrap > 0 {
		width = ui.WordWrap
	}
	return render.New(render.Options{
		Markdown:         ui.Markdown && ColorsEnabled(),
		Width:            width,
		Style:            ui.Style,
		CollapseThinking: ui.CollapseThinking,
	})
}

// BackendLabel describes the active backend for banners.
func (a *App) BackendLabel() string {
	kind := a.Config.Backend.Kind
	url := a.Config.Backend.BaseURL
	if kind == BackendOllama {
		url = a.Config.Backend.OllamaURL
	}
	label := kind + " @ " + url
	if badge := a.Policy.Badge(); badge != "" {
		label = badge + " " + label
	}
	return strings.TrimSpace(label)
}

// CommandEnv exposes c and the shared services to slash commands.
func (a *App) CommandEnv(c *chat.Context) *commands.Env {
	return &commands.Env{
		Chat:    c,
		Store:   a.Store,
		Stats:   a.Stats,
		Listers: a.Listers,
		Timeout: a.Config.Timeout(),
	}
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
