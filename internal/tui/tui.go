// Package tui provides the terminal front end. It is deliberately thin:
// every piece of state it renders comes from the registry, the request
// cache, or the live view, and a bus subscription tells it when to redraw.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/opencode-ai/pocketcode/internal/app"
	"github.com/opencode-ai/pocketcode/internal/bus"
	"github.com/opencode-ai/pocketcode/internal/live"
	"github.com/opencode-ai/pocketcode/internal/registry"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

type screen int

const (
	screenSessions screen = iota
	screenChat
)

// refreshMsg asks the model to re-read state after a bus notification.
type refreshMsg struct{}

// sessionsLoadedMsg carries the session list and status map.
type sessionsLoadedMsg struct {
	sessions []types.Session
	status   map[string]types.SessionStatus
	err      error
}

// detailLoadedMsg carries a session's fetched snapshot.
type detailLoadedMsg struct {
	sessionID string
	messages  []types.MessageWithParts
	todos     []types.TodoInfo
	status    types.SessionStatus
	err       error
}

type promptSentMsg struct{ err error }

// Model is the bubbletea model for the client.
type Model struct {
	app *app.App

	screen  screen
	cursor  int
	width   int
	height  int
	err     error
	loading bool

	sessions []types.Session
	status   map[string]types.SessionStatus
	current  types.Session
	snapshot live.Snapshot

	input   textinput.Model
	spinner spinner.Model
}

// NewModel creates the TUI model.
func NewModel(a *app.App) Model {
	input := textinput.New()
	input.Placeholder = "Type a prompt..."
	input.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		app:     a,
		screen:  screenSessions,
		status:  map[string]types.SessionStatus{},
		input:   input,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.loadSessions(), m.spinner.Tick)
}

func (m Model) loadSessions() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx := context.Background()
		sessions, err := a.Cache.Sessions(ctx)
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		status, err := a.Cache.Status(ctx)
		if err != nil {
			status = map[string]types.SessionStatus{}
		}
		return sessionsLoadedMsg{sessions: sessions, status: status}
	}
}

func (m Model) loadDetail(sessionID string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx := context.Background()
		detail, err := a.Cache.Detail(ctx, sessionID)
		if err != nil {
			return detailLoadedMsg{sessionID: sessionID, err: err}
		}
		todos, err := a.Cache.Todos(ctx, sessionID)
		if err != nil {
			todos = nil
		}
		return detailLoadedMsg{
			sessionID: sessionID,
			messages:  detail.Messages,
			todos:     todos,
			status:    detail.Status,
		}
	}
}

func (m Model) sendPrompt(text string) tea.Cmd {
	a := m.app
	sessionID := m.current.ID
	return func() tea.Msg {
		ctx := context.Background()

		var model *types.ModelRef
		if providers, err := a.Cache.Providers(ctx); err == nil {
			if ref, ok := a.Registry.ResolveModel(ctx, providers); ok {
				model = &ref
			}
		}
		agents, _ := a.Cache.Agents(ctx)
		agent := a.Registry.ResolveAgent(ctx, agents)

		return promptSentMsg{err: a.Cache.SendPrompt(ctx, sessionID, text, model, agent)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		if m.screen == screenChat {
			m.snapshot = m.app.View.Snapshot()
			return m, nil
		}
		return m, m.loadSessions()

	case sessionsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.sessions = msg.sessions
		m.status = msg.status
		if m.cursor >= len(m.sessions) {
			m.cursor = max(0, len(m.sessions)-1)
		}
		return m, nil

	case detailLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		// Seed is a no-op once live events arrived for this session.
		m.app.View.Seed(msg.sessionID, msg.messages, msg.todos, msg.status)
		m.snapshot = m.app.View.Snapshot()
		return m, nil

	case promptSentMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.snapshot = m.app.View.Snapshot()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.screen == screenChat {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenSessions:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sessions)-1 {
				m.cursor++
			}
		case "r":
			m.loading = true
			return m, m.loadSessions()
		case "enter":
			if m.cursor < len(m.sessions) {
				m.current = m.sessions[m.cursor]
				m.screen = screenChat
				m.loading = true
				m.err = nil
				m.input.Focus()
				// Entering resets any buffer left from a previous session.
				m.app.View.Enter(m.current.ID)
				m.snapshot = m.app.View.Snapshot()
				return m, m.loadDetail(m.current.ID)
			}
		}
		return m, nil

	case screenChat:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.app.View.Leave(m.current.ID)
			m.screen = screenSessions
			m.input.Blur()
			m.loading = true
			return m, m.loadSessions()
		case "ctrl+x":
			a, id := m.app, m.current.ID
			return m, func() tea.Msg {
				return promptSentMsg{err: a.Cache.Abort(context.Background(), id)}
			}
		case "enter":
			text := m.input.Value()
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.sendPrompt(text)
		}
		if perms := m.app.View.Permissions(); len(perms) > 0 {
			if cmd, handled := m.handlePermissionKey(msg, perms[0]); handled {
				return m, cmd
			}
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handlePermissionKey answers the oldest pending permission with ctrl+y
// (allow once), ctrl+a (always), or ctrl+n (reject).
func (m Model) handlePermissionKey(msg tea.KeyMsg, p types.Permission) (tea.Cmd, bool) {
	var response string
	switch msg.String() {
	case "ctrl+y":
		response = "once"
	case "ctrl+a":
		response = "always"
	case "ctrl+n":
		response = "reject"
	default:
		return nil, false
	}

	a := m.app
	return func() tea.Msg {
		err := a.Cache.RespondPermission(context.Background(), p.SessionID, p.ID, response)
		if err == nil {
			a.View.RemovePermission(p.ID)
		}
		return promptSentMsg{err: err}
	}, true
}

// Run starts the TUI and blocks until the user quits. Bus notifications are
// forwarded into the program so screens redraw on cache and stream changes.
func Run(a *app.App) error {
	p := tea.NewProgram(NewModel(a), tea.WithAltScreen())

	unsub := a.Bus.SubscribeAll(func(bus.Notification) {
		p.Send(refreshMsg{})
	})
	defer unsub()

	_, err := p.Run()
	return err
}

func serverLabel(st registry.ServerState) string {
	switch st.Status {
	case registry.StatusConnected:
		if st.Version != "" {
			return fmt.Sprintf("connected (v%s)", st.Version)
		}
		return "connected"
	case registry.StatusConnecting:
		return "connecting..."
	case registry.StatusError:
		return "error: " + st.Error
	default:
		return "disconnected"
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
