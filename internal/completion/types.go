// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

// =============================================================================
// MESSAGES
// =============================================================================

// Message is one entry of the request message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// Request describes one chat completion.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	// MaxTokens of -1 means unbounded.
	MaxTokens int
}

// Default request parameters.
const (
	DefaultTemperature = 0.7
	Unbounded          = -1
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind tags an Event.
type EventKind int

const (
	// EventDelta carries a non-empty content fragment.
	EventDelta EventKind = iota
	// EventUsage carries provider token counts.
	EventUsage
	// EventDone marks the normal end of the stream.
	EventDone
	// EventError carries a transport or protocol failure. It is always last.
	EventError
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventUsage:
		return "usage"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Usage holds provider-reported token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Event is one decoded stream event.
type Event struct {
	Kind  EventKind
	Delta string
	Usage *Usage
	Err   error
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream"`
	Temperature   float64        `json:"temperature"`
	MaxTokens     int            `json:"max_tokens"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

func newChatRequest(req Request, stream bool) chatRequest {
	body := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = Unbounded
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	return body
}

// chunk is one streamed SSE payload.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage        `json:"usage"`
	Error *errorPayload `json:"error"`
}

func (c *chunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

type errorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}
