// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package council runs a question past several personas and has a chair
// model synthesize their answers.
//
// Personas run strictly one after another against the same backend, so a
// single local inference server is never asked to serve two streams at once.
// Each persona sees the shared history and its own system prompt, never the
// other answers. Persona answers are reported as data (PersonaOutcome) and
// are not persisted; only the consensus is.
//
// TitleGenerator names untitled sessions with a short one-shot completion.
package council
