// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"

	"github.com/jeranaias/colossus/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete colossus configuration.
type Config struct {
	Backend  BackendConfig  `toml:"backend" json:"backend"`
	Chat     ChatConfig     `toml:"chat" json:"chat"`
	Research ResearchConfig `toml:"research" json:"research"`
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	Server   ServerConfig   `toml:"server" json:"server"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Log      LogConfig      `toml:"log" json:"log"`
	Offline  OfflineConfig  `toml:"offline" json:"offline"`
}

// BackendConfig selects and tunes the inference server.
type BackendConfig struct {
	// Kind is "openai" (any /v1/chat/completions server) or "ollama".
	Kind string `toml:"kind" json:"kind"`
	// BaseURL is the OpenAI-compatible base URL, /v1 included.
	BaseURL string `toml:"base_url" json:"base_url"`
	// OllamaURL is the Ollama server URL.
	OllamaURL string `toml:"ollama_url" json:"ollama_url"`
	// APIKey is sent as a bearer token when set.
	APIKey string `toml:"api_key" json:"api_key"`
	// TimeoutSecs bounds non-streaming requests.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int `toml:"max_retries" json:"max_retries"`
	// RequestsPerSecond paces outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// ChatConfig holds models, sampling and prompt settings.
type ChatConfig struct {
	// Model is the default model for single mode and for personas without one.
	Model string `toml:"model" json:"model"`
	// ChairModel answers the consensus stage (empty = Model).
	ChairModel string `toml:"chair_model" json:"chair_model"`
	// Mode is the mode of new sessions: "single" or "council".
	Mode        string  `toml:"mode" json:"mode"`
	Temperature float64 `toml:"temperature" json:"temperature"`
	// MaxTokens caps each answer (-1 = unbounded).
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// HistoryLimit keeps the last N messages in each request (0 = all).
	HistoryLimit int  `toml:"history_limit" json:"history_limit"`
	Thinking     bool `toml:"thinking" json:"thinking"`
	// SystemPrompt is the single-mode base prompt when no persona is chosen.
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// PersonaPromptSuffix is appended to every council persona prompt.
	PersonaPromptSuffix string `toml:"persona_prompt_suffix" json:"persona_prompt_suffix"`
	// PersonasFile is the YAML persona list (empty = personas.yaml in the config dir).
	PersonasFile string `toml:"personas_file" json:"personas_file"`
	TitleEnabled bool   `toml:"title_enabled" json:"title_enabled"`
	// TitleDelayMs is the settle delay before title generation.
	TitleDelayMs int `toml:"title_delay_ms" json:"title_delay_ms"`
}

// ResearchConfig configures the web search phase.
type ResearchConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Endpoint is the DuckDuckGo HTML endpoint.
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// Proxy is an optional HTTP proxy URL for search requests.
	Proxy       string `toml:"proxy" json:"proxy"`
	MaxResults  int    `toml:"max_results" json:"max_results"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	// Backend is "json" or "sqlite".
	Backend string `toml:"backend" json:"backend"`
	// Dir holds session data (empty = config dir).
	Dir         string `toml:"dir" json:"dir"`
	MaxSessions int    `toml:"max_sessions" json:"max_sessions"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
	// Token, when set, is required as a bearer token on every request.
	Token string `toml:"token" json:"token"`
}

// UIConfig contains terminal rendering settings.
type UIConfig struct {
	Markdown bool `toml:"markdown" json:"markdown"`
	// WordWrap is the rendering width (0 = terminal width).
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// Style is a glamour style name: "auto", "dark", "light", "notty".
	Style            string `toml:"style" json:"style"`
	CollapseThinking bool   `toml:"collapse_thinking" json:"collapse_thinking"`
}

// LogConfig controls diagnostics on stderr.
type LogConfig struct {
	// Level is a zerolog level name.
	Level string `toml:"level" json:"level"`
	// Pretty forces the console writer even when stderr is not a terminal.
	Pretty bool `toml:"pretty" json:"pretty"`
}

// OfflineConfig restricts network access.
type OfflineConfig struct {
	// LocalOnly allows loopback endpoints only and disables web search.
	LocalOnly bool `toml:"local_only" json:"local_only"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default system prompt for single mode.
const DefaultSystemPrompt = "You are a helpful, intelligent AI assistant. You always provide clear, complete, and direct answers."

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:        "openai",
			BaseURL:     "http://127.0.0.1:1234/v1",
			OllamaURL:   "http://127.0.0.1:11434",
			TimeoutSecs: 60,
			MaxRetries:  2,
		},
		Chat: ChatConfig{
			Model:               "local-model",
			Mode:                "single",
			Temperature:         0.7,
			MaxTokens:           -1,
			HistoryLimit:        0,
			Thinking:            false,
			SystemPrompt:        DefaultSystemPrompt,
			PersonaPromptSuffix: " Give a well-founded but concise opinion. Briefly justify your view.",
			TitleEnabled:        true,
			TitleDelayMs:        1000,
		},
		Research: ResearchConfig{
			Enabled:     false,
			Endpoint:    "https://html.duckduckgo.com/html/",
			MaxResults:  5,
			TimeoutSecs: 15,
		},
		Storage: StorageConfig{
			Backend:     "json",
			MaxSessions: 200,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		UI: UIConfig{
			Markdown:         true,
			Style:            "auto",
			CollapseThinking: true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the colossus configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("COLOSSUS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".colossus"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// DataDir resolves the storage directory.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir), nil
	}
	return ConfigDir()
}

// PersonasPath resolves the persona file.
func (c *Config) PersonasPath() (string, error) {
	if c.Chat.PersonasFile != "" {
		return expandHome(c.Chat.PersonasFile), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "personas.yaml"), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ensureSecurePermissions tightens config files to 0600; they hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		return LoadFromPath(tomlPath)
	}

	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(jsonPath); statErr == nil {
		return LoadFromPath(jsonPath)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a specific file over the defaults, applies environment
// overrides and validates. Keys absent from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with a header comment, 0600, atomically.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# colossus configuration file\n")
	sb.WriteString("# Generated by colossus - edit with care\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON, 0600, atomically.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := util.WriteJSON(path, cfg, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration. The returned error is a ValidateErrors
// listing every problem.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.Backend.Kind) {
	case "openai", "ollama":
	default:
		add("backend.kind", "invalid kind '%s', must be one of: openai, ollama", c.Backend.Kind)
	}
	if err := validateURL(c.Backend.BaseURL); err != nil {
		add("backend.base_url", "%v", err)
	}
	if err := validateURL(c.Backend.OllamaURL); err != nil {
		add("backend.ollama_url", "%v", err)
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 3600 {
		add("backend.timeout_secs", "must be between 1 and 3600, got %d", c.Backend.TimeoutSecs)
	}
	if c.Backend.MaxRetries < 0 || c.Backend.MaxRetries > 10 {
		add("backend.max_retries", "must be between 0 and 10, got %d", c.Backend.MaxRetries)
	}
	if c.Backend.RequestsPerSecond < 0 {
		add("backend.requests_per_second", "must not be negative")
	}

	if strings.TrimSpace(c.Chat.Model) == "" {
		add("chat.model", "must not be empty")
	}
	switch strings.ToLower(c.Chat.Mode) {
	case "single", "council":
	default:
		add("chat.mode", "invalid mode '%s', must be one of: single, council", c.Chat.Mode)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		add("chat.temperature", "must be between 0 and 2, got %g", c.Chat.Temperature)
	}
	if c.Chat.MaxTokens == 0 || c.Chat.MaxTokens < -1 {
		add("chat.max_tokens", "must be positive or -1 for unbounded, got %d", c.Chat.MaxTokens)
	}
	if c.Chat.HistoryLimit < 0 {
		add("chat.history_limit", "must not be negative")
	}
	if c.Chat.TitleDelayMs < 0 {
		add("chat.title_delay_ms", "must not be negative")
	}

	if c.Research.Enabled {
		if err := validateURL(c.Research.Endpoint); err != nil {
			add("research.endpoint", "%v", err)
		}
	}
	if c.Research.Proxy != "" {
		if err := validateURL(c.Research.Proxy); err != nil {
			add("research.proxy", "%v", err)
		}
	}
	if c.Research.MaxResults < 1 || c.Research.MaxResults > 20 {
		add("research.max_results", "must be between 1 and 20, got %d", c.Research.MaxResults)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "json", "sqlite":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: json, sqlite", c.Storage.Backend)
	}
	if c.Storage.MaxSessions < 0 {
		add("storage.max_sessions", "must not be negative")
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative")
	}
	switch strings.ToLower(c.UI.Style) {
	case "auto", "dark", "light", "notty", "ascii", "dracula", "pink", "tokyo-night":
	default:
		add("ui.style", "unknown style '%s'", c.UI.Style)
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		add("log.level", "invalid level '%s'", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - COLOSSUS_MODEL: overrides chat.model
//   - COLOSSUS_BASE_URL: overrides backend.base_url
//   - COLOSSUS_OLLAMA_URL: overrides backend.ollama_url
//   - COLOSSUS_BACKEND: overrides backend.kind
//   - COLOSSUS_API_KEY: overrides backend.api_key
//   - COLOSSUS_LOCAL_ONLY: "1" or "true" enables offline.local_only
//   - COLOSSUS_LOG_LEVEL: overrides log.level
//   - COLOSSUS_STORAGE: overrides storage.backend
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COLOSSUS_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("COLOSSUS_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("COLOSSUS_OLLAMA_URL"); v != "" {
		c.Backend.OllamaURL = v
	}
	if v := os.Getenv("COLOSSUS_BACKEND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("COLOSSUS_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("COLOSSUS_LOCAL_ONLY"); v != "" {
		c.Offline.LocalOnly = parseBool(v)
	}
	if v := os.Getenv("COLOSSUS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("COLOSSUS_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Timeout returns the backend request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// TitleDelay returns the title settle delay.
func (c *Config) TitleDelay() time.Duration {
	return time.Duration(c.Chat.TitleDelayMs) * time.Millisecond
}

// ChairModel returns the consensus model.
func (c *Config) ChairModel() string {
	if c.Chat.ChairModel != "" {
		return c.Chat.ChairModel
	}
	return c.Chat.Model
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup resolves a dotted key against the toml tags.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, normalizeKey(part))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// normalizeKey accepts kebab-case and any letter case.
func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}

// setFieldValue sets a reflect.Value from an any value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// AllKeys returns all configuration keys in dot notation, sorted.
func AllKeys() []string {
	var keys []string
	v := reflect.ValueOf(Config{})
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		section := tagName(t.Field(i))
		st := t.Field(i).Type
		for j := 0; j < st.NumField(); j++ {
			keys = append(keys, section+"."+tagName(st.Field(j)))
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	r := c.Clone()
	r.Backend.APIKey = mask(r.Backend.APIKey)
	r.Server.Token = mask(r.Server.Token)
	return r
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

// String renders the redacted config as TOML.
func (c *Config) String() string {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c.Redacted()); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return sb.String()
}
