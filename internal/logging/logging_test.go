// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("disabled"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("chatty"))
}

func TestSetup_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(Options{Level: "info", Out: &buf})

	log.Debug().Msg("hidden")
	log.Info().Str("model", "qwen3").Msg("ready")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"model":"qwen3"`)
}

func TestSetup_VerboseAndPretty(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(Options{Level: "error", Verbose: true, Pretty: true, Out: &buf})

	log.Debug().Msg("visible")
	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.False(t, strings.HasPrefix(out, "{"))
}
