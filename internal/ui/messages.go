// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/commands"
	"github.com/jeranaias/colossus/internal/model"
)

// turnEventMsg carries one chat event of the running turn.
type turnEventMsg struct {
	id int
	ev chat.Event
}

// turnDoneMsg ends the running turn.
type turnDoneMsg struct {
	id    int
	reply chat.Reply
	err   error
}

// titleMsg reports a generated session title.
type titleMsg struct {
	sessionID string
	title     string
}

// commandDoneMsg reports a finished slash command.
type commandDoneMsg struct {
	res commands.Result
	err error
}

// frameTickMsg triggers a transcript redraw while a turn runs.
type frameTickMsg time.Time

// PersonasReloadedMsg replaces the persona list. Send it with
// tea.Program.Send when the persona file changes.
type PersonasReloadedMsg struct {
	Personas []model.Persona
}

// frameInterval caps redraws during streaming at about 30 per second.
const frameInterval = time.Second / 30

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

// waitForTurn reads the next message of a turn.
func waitForTurn(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
