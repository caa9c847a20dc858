// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion talks to OpenAI-compatible chat-completion servers such
// as LM Studio or llama.cpp.
//
// Streaming responses are decoded into a sequence of Events by Decoder and
// delivered over an unbuffered channel by Client.Stream. The channel carries
// content deltas, an optional usage record and a terminal Done event; any
// transport failure is delivered as an EventError and the channel is closed.
//
// # Usage
//
//	c := completion.NewClient(completion.DefaultConfig())
//	for ev := range c.Stream(ctx, completion.Request{Model: "qwen", Messages: msgs}) {
//	    switch ev.Kind {
//	    case completion.EventDelta:
//	        fmt.Print(ev.Delta)
//	    case completion.EventError:
//	        return ev.Err
//	    }
//	}
package completion
