// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant turns into terminal text.
//
// The answer is rendered as markdown with glamour. The reasoning segment
// goes into a bordered thinking panel that starts expanded while the model
// reasons, collapses once when the closing tag arrives, and afterwards
// follows the user's toggles. With markdown disabled, fenced code blocks are
// still highlighted with chroma.
package render
