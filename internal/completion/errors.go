// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Sentinel errors. An *APIError matches the sentinel for its status class
// under errors.Is.
var (
	ErrModelNotFound = errors.New("model not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrServer        = errors.New("server error")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrUnreachable   = errors.New("server unreachable")
)

// APIError is a non-2xx response, or an error object sent inside a stream.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// Is maps the status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrServer:
		return e.Status >= 500 && e.Status < 600
	}
	return false
}

// Retryable reports whether the request may be repeated.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || (e.Status >= 500 && e.Status < 600)
}

// newAPIError builds an APIError from a response body. Servers disagree on
// the error shape, so anything unparsable becomes the message verbatim.
func newAPIError(status int, body []byte) *APIError {
	var wrapped struct {
		Error *errorPayload `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		return fromPayload(status, wrapped.Error)
	}
	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return &APIError{Status: status, Message: flat.Error}
	}
	msg := string(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

func fromPayload(status int, p *errorPayload) *APIError {
	e := &APIError{Status: status, Message: p.Message}
	switch code := p.Code.(type) {
	case string:
		e.Code = code
	case float64:
		e.Code = fmt.Sprintf("%.0f", code)
	}
	if e.Code == "" {
		e.Code = p.Type
	}
	return e
}
