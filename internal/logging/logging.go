// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger shared by colossus components.
//
// Logs always go to stderr so they never interleave with streamed answers on
// stdout. Components receive the logger explicitly; the zerolog global is
// left alone.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options configures Setup.
type Options struct {
	// Level is a zerolog level name. Empty means "warn".
	Level string
	// Verbose forces debug level.
	Verbose bool
	// Pretty forces the console writer.
	Pretty bool
	// Out overrides the destination. Defaults to os.Stderr.
	Out io.Writer
}

// Setup returns a logger for opts. The console writer is used when Pretty is
// set or Out is a terminal; otherwise output is JSON lines.
func Setup(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	if opts.Pretty || isTerminal(out) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(out),
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to warn.
func ParseLevel(name string) zerolog.Level {
	if strings.TrimSpace(name) == "" {
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.WarnLevel
	}
	return level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
