package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/pocketcode/internal/registry"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	busyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	roleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

func (m Model) View() string {
	switch m.screen {
	case screenChat:
		return m.chatView()
	default:
		return m.sessionsView()
	}
}

// header renders the server line shown at the top of every screen.
func (m Model) header() string {
	cfg, ok := m.app.Registry.ActiveServer()
	if !ok {
		return headerStyle.Render("pocketcode") + dimStyle.Render("  no server configured")
	}
	st, _ := m.app.Registry.State(cfg.ID)

	label := serverLabel(st)
	if st.Status == registry.StatusError {
		label = errorStyle.Render(label)
	} else {
		label = dimStyle.Render(label)
	}
	line := headerStyle.Render("pocketcode") + "  " + cfg.Name + " " + label
	if project := m.app.Registry.ActiveProject(); project != "" {
		line += dimStyle.Render("  " + project)
	}
	return line
}

func (m Model) sessionsView() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if m.loading && len(m.sessions) == 0 {
		b.WriteString(m.spinner.View() + " loading sessions...\n")
	} else if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("no sessions") + "\n")
	}

	for i, s := range m.sessions {
		title := s.Title
		if title == "" {
			title = s.ID
		}
		line := title
		if st, ok := m.status[s.ID]; ok && st.Type != types.StatusIdle {
			line += " " + busyStyle.Render("["+st.Type+"]")
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("j/k move  enter open  r refresh  q quit"))
	return b.String()
}

func (m Model) chatView() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	title := m.current.Title
	if title == "" {
		title = m.current.ID
	}
	b.WriteString(headerStyle.Render(title))
	if m.snapshot.Status.Type != types.StatusIdle {
		b.WriteString(" " + busyStyle.Render(m.spinner.View()+m.snapshot.Status.Type))
	}
	if t := m.snapshot.Tokens; t.Total > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d tokens", t.Total)))
	}
	b.WriteString("\n\n")

	if m.loading && len(m.snapshot.Messages) == 0 {
		b.WriteString(m.spinner.View() + " loading...\n")
	}
	for _, msg := range m.snapshot.Messages {
		b.WriteString(renderMessage(msg))
	}

	if len(m.snapshot.Todos) > 0 {
		b.WriteString("\n" + dimStyle.Render("todos:") + "\n")
		for _, t := range m.snapshot.Todos {
			mark := " "
			if t.Status == "completed" {
				mark = "x"
			}
			b.WriteString(fmt.Sprintf("  [%s] %s\n", mark, t.Content))
		}
	}

	if m.snapshot.LastError != nil {
		b.WriteString("\n" + errorStyle.Render(m.snapshot.LastError.Data.Message) + "\n")
	}
	if perms := m.app.View.Permissions(); len(perms) > 0 {
		p := perms[0]
		b.WriteString("\n" + warnStyle.Render("permission: "+p.Title))
		b.WriteString(dimStyle.Render("  ctrl+y once  ctrl+a always  ctrl+n reject") + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(dimStyle.Render("enter send  ctrl+x abort  esc back  ctrl+c quit"))
	return b.String()
}

// renderMessage flattens a message to its visible parts. Rendering stays
// plain text; tool calls show their title or name and terminal state.
func renderMessage(msg types.MessageWithParts) string {
	var b strings.Builder
	b.WriteString(roleStyle.Render(msg.Info.Role) + "\n")

	for _, p := range msg.Parts {
		switch p.Type {
		case types.PartText:
			if p.Text != "" {
				b.WriteString(p.Text + "\n")
			}
		case types.PartReasoning:
			if p.Text != "" {
				b.WriteString(dimStyle.Render(p.Text) + "\n")
			}
		case types.PartTool:
			b.WriteString(renderTool(p))
		}
	}
	if msg.Info.Error != nil {
		b.WriteString(errorStyle.Render(msg.Info.Error.Data.Message) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func renderTool(p types.Part) string {
	name := p.Tool
	status := ""
	if p.State != nil {
		if p.State.Title != "" {
			name = p.State.Title
		}
		status = p.State.Status
	}
	line := fmt.Sprintf("* %s", name)
	switch status {
	case "error":
		line = errorStyle.Render(line)
	case "completed":
		line = dimStyle.Render(line)
	default:
		line = busyStyle.Render(line)
	}
	out := line + "\n"
	if p.State != nil && p.State.Error != "" {
		out += errorStyle.Render("  "+p.State.Error) + "\n"
	}
	return out
}
