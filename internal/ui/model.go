// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/commands"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/think"
)

// DefaultTitleTimeout bounds automatic session naming.
const DefaultTitleTimeout = 30 * time.Second

// =============================================================================
// CONFIG
// =============================================================================

// Config wires a Model.
type Config struct {
	Chat *chat.Context
	// Renderer builds a renderer for a terminal width. It is called again
	// on every resize.
	Renderer func(width int) *render.Renderer
	// Env runs slash commands; nil disables them.
	Env *commands.Env
	// Backend and Badge are shown in the status bar.
	Backend string
	Badge   string
	// TitleTimeout bounds automatic naming; DefaultTitleTimeout when zero.
	TitleTimeout time.Duration
}

// =============================================================================
// MODEL
// =============================================================================

// State is the screen state.
type State int

const (
	// StateReady: waiting for input.
	StateReady State = iota
	// StateStreaming: a turn is running.
	StateStreaming
	// StateBusy: a slash command is running.
	StateBusy
)

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	cfg      Config
	chat     *chat.Context
	commands *commands.Registry
	renderer *render.Renderer

	state    State
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keyMap   KeyMap

	width, height int
	ready         bool
	showHelp      bool

	// turn is the running question, nil when idle.
	turn      *turn
	turnSeq   int
	turnCh    <-chan tea.Msg
	cancelMgr *cancelManager
	dirty     bool

	// panels keeps the reasoning panel state of stored messages by ID.
	panels map[string]*render.Panel
	// councilBlocks are persona answers keyed by the index of the user
	// message they answer. They live only as long as the session is shown.
	councilBlocks map[int][]*block

	notice  string
	errText string
}

// New creates the chat screen.
func New(cfg Config) Model {
	if cfg.Renderer == nil {
		cfg.Renderer = func(width int) *render.Renderer {
			return render.New(render.Options{Width: width})
		}
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = DefaultTitleTimeout
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask anything, or /help"
	ti.CharLimit = 0
	ti.Focus()

	vp := viewport.New(render.DefaultWidth, 20)
	vp.KeyMap = viewportKeys()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	return Model{
		cfg:           cfg,
		chat:          cfg.Chat,
		commands:      commands.NewRegistry(),
		renderer:      cfg.Renderer(render.DefaultWidth),
		state:         StateReady,
		viewport:      vp,
		input:         ti,
		spinner:       sp,
		help:          help.New(),
		keyMap:        DefaultKeyMap(),
		cancelMgr:     newCancelManager(),
		panels:        make(map[string]*render.Panel),
		councilBlocks: make(map[int][]*block),
	}
}

// Run starts the program on the alternate screen. onStart receives the
// program so callers can Send messages, such as PersonasReloadedMsg, from
// other goroutines.
func Run(ctx context.Context, m Model, onStart func(*tea.Program)) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if onStart != nil {
		onStart(p)
	}
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.cancelMgr.cancel()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case turnEventMsg:
		if m.turn == nil || msg.id != m.turn.id {
			return m, nil
		}
		m.turn.apply(msg.ev, m.renderer.NewPanel)
		m.dirty = true
		return m, waitForTurn(m.turnCh)

	case turnDoneMsg:
		if m.turn == nil || msg.id != m.turn.id {
			return m, nil
		}
		return m.handleTurnDone(msg)

	case frameTickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		if m.dirty {
			m.refresh()
		}
		return m, frameTick()

	case titleMsg:
		if msg.sessionID == m.chat.Session().ID {
			m.notice = "Session: " + msg.title
			m.refresh()
		}
		return m, nil

	case commandDoneMsg:
		return m.handleCommandDone(msg)

	case PersonasReloadedMsg:
		m.chat.SetPersonas(msg.Personas)
		m.notice = "Personas reloaded"
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.state == StateReady {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	m.renderer = m.cfg.Renderer(msg.Width)
	m.input.Width = msg.Width - 4
	m.help.Width = msg.Width
	m.viewport.Width = msg.Width
	m.viewport.Height = m.transcriptHeight()
	m.ready = true
	m.refresh()
	return m, nil
}

// handleKey returns handled=false for keys the input and viewport process.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case m.state == StateStreaming && key.Matches(msg, m.keyMap.Cancel):
		if m.cancelMgr.cancel() {
			m.turn.cancelling = true
			m.turn.status = "Stopping..."
			m.refresh()
		}
		return m, nil, true

	case key.Matches(msg, m.keyMap.Quit):
		m.cancelMgr.cancel()
		return m, tea.Quit, true

	case msg.Type == tea.KeyEsc:
		m.input.SetValue("")
		m.errText = ""
		return m, nil, true

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		m.viewport.Height = m.transcriptHeight()
		m.refresh()
		return m, nil, true

	case key.Matches(msg, m.keyMap.ToggleThinking):
		if m.togglePanel() {
			m.refresh()
		}
		return m, nil, true

	case key.Matches(msg, m.keyMap.ToggleCouncil):
		if m.state != StateReady {
			return m, nil, true
		}
		return m.runCommand(m.toggleModeCommand())

	case key.Matches(msg, m.keyMap.Complete):
		if partial := commands.GetPartialCommand(m.input.Value()); partial != "" {
			if matches := m.commands.Complete(partial); len(matches) > 0 {
				m.input.SetValue(completeCommon(matches) + completionSuffix(matches))
				m.input.CursorEnd()
			}
		}
		return m, nil, true

	case key.Matches(msg, m.keyMap.Submit):
		if m.state != StateReady {
			return m, nil, true
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil, true
		}
		m.input.SetValue("")
		m.errText = ""
		m.notice = ""
		if commands.IsCommand(text) {
			return m.runCommand(text)
		}
		next, cmd := m.startTurn(text)
		return next, cmd, true
	}
	return m, nil, false
}

func (m Model) toggleModeCommand() string {
	if m.chat.Session().CurrentMode() == model.ModeCouncil {
		return "/single"
	}
	return "/council"
}

// startTurn runs Ask on a goroutine that forwards events to the loop.
func (m Model) startTurn(question string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	m.turnSeq++
	id := m.turnSeq
	m.turn = newTurn(id, question, m.chat.Session().Len())
	m.state = StateStreaming

	ch := make(chan tea.Msg, 64)
	m.turnCh = ch
	c := m.chat
	go func() {
		defer close(ch)
		reply, err := c.Ask(ctx, question, func(ev chat.Event) {
			select {
			case ch <- turnEventMsg{id: id, ev: ev}:
			case <-ctx.Done():
			}
		})
		ch <- turnDoneMsg{id: id, reply: reply, err: err}
	}()

	m.refresh()
	return m, tea.Batch(waitForTurn(ch), frameTick(), m.spinner.Tick)
}

func (m Model) handleTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	t := m.turn
	m.turn = nil
	m.turnCh = nil
	m.state = StateReady
	m.cancelMgr.cancel()

	if msg.err != nil {
		m.errText = msg.err.Error()
		m.refresh()
		return m, nil
	}

	// Carry the live panel state over to the stored messages.
	reply := msg.reply
	if reply.Single != nil && reply.Single.Message != nil {
		if b := t.last(); b != nil {
			m.panels[reply.Single.Message.ID] = b.panel
		}
	}
	if reply.Council != nil {
		if personas := t.personaBlocks(); len(personas) > 0 {
			m.councilBlocks[t.base] = personas
		}
		if res := reply.Council.Consensus; res != nil && res.Message != nil {
			if b := t.last(); b != nil && b.consensus {
				m.panels[res.Message.ID] = b.panel
			}
		}
		if reply.Council.Consensus == nil && reply.Council.Message != "" {
			m.notice = reply.Council.Message
		}
	}
	if reply.SaveErr != nil {
		m.errText = reply.SaveErr.Error()
	}
	m.refresh()

	if reply.Cancelled() {
		return m, nil
	}
	return m, m.autoTitle()
}

// autoTitle names a fresh session in the background.
func (m Model) autoTitle() tea.Cmd {
	c := m.chat
	timeout := m.cfg.TitleTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id := c.Session().ID
		title, ok := c.AutoTitle(ctx)
		if !ok {
			return nil
		}
		return titleMsg{sessionID: id, title: title}
	}
}

// runCommand executes a slash command off the loop.
func (m Model) runCommand(input string) (tea.Model, tea.Cmd, bool) {
	if m.cfg.Env == nil {
		m.errText = "slash commands are not available"
		m.refresh()
		return m, nil, true
	}
	m.state = StateBusy
	env := m.cfg.Env
	reg := m.commands
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := reg.Execute(context.Background(), env, input)
		return commandDoneMsg{res: res, err: err}
	}), true
}

func (m Model) handleCommandDone(msg commandDoneMsg) (tea.Model, tea.Cmd) {
	m.state = StateReady
	if msg.err != nil {
		m.errText = msg.err.Error()
		m.refresh()
		return m, nil
	}
	if msg.res.Quit {
		return m, tea.Quit
	}
	if msg.res.SessionChanged {
		m.panels = make(map[string]*render.Panel)
		m.councilBlocks = make(map[int][]*block)
	}
	m.notice = msg.res.Text
	if msg.res.Markdown {
		m.notice = m.renderer.Markdown(msg.res.Text)
	}
	m.refresh()
	return m, nil
}

// togglePanel flips the newest reasoning panel. It reports whether one was
// found.
func (m *Model) togglePanel() bool {
	if m.turn != nil {
		for i := len(m.turn.blocks) - 1; i >= 0; i-- {
			if b := m.turn.blocks[i]; b.proj.SawTag {
				b.panel.Toggle()
				return true
			}
		}
	}
	history := m.chat.Session().History()
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role == model.RoleAssistant && think.Split(msg.Content).SawTag {
			m.panelFor(msg).Toggle()
			return true
		}
	}
	return false
}

// panelFor returns the stored panel of msg, creating it on first use.
func (m *Model) panelFor(msg model.Message) *render.Panel {
	p, ok := m.panels[msg.ID]
	if !ok {
		p = m.renderer.NewPanel()
		m.panels[msg.ID] = p
	}
	return p
}

// refresh re-renders the transcript, keeping the view pinned to the bottom
// if it was there.
func (m *Model) refresh() {
	m.dirty = false
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.state == StateStreaming {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// completeCommon returns the longest common prefix of matches.
func completeCommon(matches []string) string {
	prefix := matches[0]
	for _, m := range matches[1:] {
		for !strings.HasPrefix(m, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}

// completionSuffix adds a space after an unambiguous completion.
func completionSuffix(matches []string) string {
	if len(matches) == 1 {
		return " "
	}
	return ""
}
