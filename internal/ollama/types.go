// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"time"

	"github.com/jeranaias/colossus/internal/completion"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model    string               `json:"model"`
	Messages []completion.Message `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  *Options             `json:"options,omitempty"`
}

// Options are model parameters.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // -1 for unlimited
}

// ChatResponse is one NDJSON line of /api/chat, or the whole non-streaming
// response.
type ChatResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason,omitempty"`
	TotalDuration      int64  `json:"total_duration,omitempty"`
	PromptEvalCount    int    `json:"prompt_eval_count,omitempty"`
	EvalCount          int    `json:"eval_count,omitempty"`
	EvalDuration       int64  `json:"eval_duration,omitempty"`
	Error              string `json:"error,omitempty"`
}

// ModelInfo is one entry of GET /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListModelsResponse is the body of GET /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

func newChatRequest(req completion.Request, stream bool) ChatRequest {
	opts := &Options{Temperature: req.Temperature, NumPredict: req.MaxTokens}
	if opts.NumPredict == 0 {
		opts.NumPredict = completion.Unbounded
	}
	return ChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   stream,
		Options:  opts,
	}
}
