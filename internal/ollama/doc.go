// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is the Ollama backend.
//
// It speaks Ollama's native /api/chat protocol (NDJSON streaming) and
// translates it into the same completion.Event sequence the OpenAI-compatible
// client produces, so the streaming core does not care which server it talks
// to.
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: "http://127.0.0.1:11434"})
//	for ev := range client.Stream(ctx, completion.Request{Model: "qwen2.5:7b", Messages: msgs}) {
//	    fmt.Print(ev.Delta)
//	}
package ollama
