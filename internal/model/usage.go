// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// UsageRecord describes one finished stream.
type UsageRecord struct {
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Elapsed          time.Duration `json:"elapsed_ns"`
	// Estimated is true when the provider sent no usage and the counts were
	// synthesized locally.
	Estimated bool `json:"estimated,omitempty"`
}

// TokensPerSecond returns completion tokens per elapsed second, or 0.
func (u UsageRecord) TokensPerSecond() float64 {
	if u.CompletionTokens <= 0 || u.Elapsed <= 0 {
		return 0
	}
	return float64(u.CompletionTokens) / u.Elapsed.Seconds()
}
