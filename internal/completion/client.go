// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is LM Studio's local server.
	DefaultBaseURL = "http://127.0.0.1:1234/v1"

	// DefaultTimeout applies to non-streaming requests and to connection setup
	// of streaming ones.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of retries for transient errors.
	DefaultMaxRetries = 2

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024
)

// Config holds client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond paces request starts. Zero means unlimited.
	RequestsPerSecond float64
	Logger            zerolog.Logger
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the LM Studio defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		Logger:     zerolog.Nop(),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is an OpenAI-compatible chat-completion client. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	timeout    time.Duration
	http       *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a client, filling zero config values with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Streaming bodies outlive any fixed client timeout; deadlines come
		// from the request context instead.
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		log:        cfg.Logger,
	}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Stream starts a streaming completion. The returned channel is unbuffered
// and closed after the last event. Errors arrive as a final EventError.
// When ctx is cancelled the channel is closed without a terminal event.
func (c *Client) Stream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		resp, err := c.open(ctx, req)
		if err != nil {
			if ctx.Err() == nil {
				send(ctx, ch, Event{Kind: EventError, Err: err})
			}
			return
		}
		defer resp.Body.Close()
		Pump(ctx, NewDecoder(resp.Body, c.log), ch)
	}()
	return ch
}

// open posts a streaming request and returns the 200 response, retrying
// transient failures before any byte of the body is consumed.
func (c *Client) open(ctx context.Context, req Request) (*http.Response, error) {
	body, err := json.Marshal(newChatRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		resp, err := c.post(ctx, "/chat/completions", body)
		if err != nil {
			lastErr = err
			if retryable(err) {
				continue
			}
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		apiErr := readAPIError(resp)
		lastErr = apiErr
		if !apiErr.Retryable() {
			return nil, apiErr
		}
		c.log.Debug().Int("attempt", attempt+1).Int("status", apiErr.Status).Msg("retrying stream request")
	}
	return nil, lastErr
}

// Complete runs a non-streaming completion and returns the assistant text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(newChatRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt-1)); err != nil {
				return "", err
			}
		}
		text, err := c.completeOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) completeOnce(ctx context.Context, body []byte) (string, error) {
	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// ListModels returns the model IDs served at GET /models, sorted.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var out modelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}
	ids := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req)
}

// do paces and sends req. Only method, path, status and duration are
// logged; bodies and headers may carry prompts or keys.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("completion request")
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func readAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return newAPIError(resp.StatusCode, body)
}

// retryable reports whether err is transient. Cancellation and an
// unreachable local server are not: retrying a server that is not running
// only delays the OFFLINE answer.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// backoff: 500ms, 1s, 2s, ... capped at retryMaxDelay.
func backoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
