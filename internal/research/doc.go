// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package research implements the optional web-search phase of a turn.
//
// A short search query is generated from the question with a
// non-streaming completion, the DuckDuckGo HTML endpoint is scraped for the
// top results, and FormatContext renders them as the retrieval block that is
// injected right before the user's message.
//
// Search failures are never fatal to a turn: callers get an empty result
// list and the answer proceeds without retrieval.
package research
