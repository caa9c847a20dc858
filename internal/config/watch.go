// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 150 * time.Millisecond

// Watch calls onChange after path is written, created or replaced, until ctx
// is done. It watches the parent directory, so path may not exist yet and
// atomic rename-over saves are seen. Watch blocks; run it in a goroutine.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	target := filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return err
	}

	var timer *time.Timer
	fired := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(DefaultDebounce, func() {
				select {
				case fired <- struct{}{}:
				default:
				}
			})

		case <-fired:
			log.Debug().Str("path", target).Msg("Watched file changed")
			onChange()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", target).Msg("File watch error")
		}
	}
}
