// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

// Plain returns text with fenced code blocks syntax-highlighted and
// everything else untouched. An unterminated fence, as seen mid-stream, is
// highlighted up to the end of the text.
func Plain(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var out []string
	var code []string
	var language string
	inCode := false

	flush := func() {
		out = append(out, Highlight(strings.Join(code, "\n"), language))
		code = nil
		language = ""
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				flush()
				out = append(out, line)
				inCode = false
			} else {
				language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				out = append(out, line)
				inCode = true
			}
			continue
		}
		if inCode {
			code = append(code, line)
		} else {
			out = append(out, line)
		}
	}
	if inCode && len(code) > 0 {
		flush()
	}
	return strings.Join(out, "\n")
}

// Highlight applies terminal syntax highlighting to code. It returns code
// unchanged when the terminal has no colors or highlighting fails.
func Highlight(code, language string) string {
	if termenv.EnvNoColor() {
		return code
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
