// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package think

import (
	"regexp"
	"strings"
)

var (
	closedSpan = regexp.MustCompile(`(?is)<think>.*?</think>`)
	openTail   = regexp.MustCompile(`(?is)<think>.*$`)
)

// Strip removes every closed <think>...</think> span and trims the result.
// An unterminated segment is left in place.
func Strip(text string) string {
	if !containsFold(text, OpenTag) {
		return text
	}
	return strings.TrimSpace(closedSpan.ReplaceAllString(text, ""))
}

// StripAll is Strip plus removal of an unterminated <think> and everything
// after it. Used where only a short clean answer is useful, such as titles
// and search queries.
func StripAll(text string) string {
	text = closedSpan.ReplaceAllString(text, "")
	text = openTail.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
