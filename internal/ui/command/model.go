package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/theme"
)

// Palette commands.
const (
	Refresh     = "refresh"
	Notify      = "notifications"
	MarkAllRead = "read-all"
	Projects    = "projects"
	Activity    = "activity"
	Help        = "help"
	Logout      = "logout"
	Quit        = "quit"
)

var aliases = map[string]string{
	"sync":  Refresh,
	"n":     Notify,
	"inbox": Notify,
	"q":     Quit,
	"exit":  Quit,
	"?":     Help,
}

// CommandMsg is emitted when the user executes a known command.
type CommandMsg string

// CloseMsg is emitted when the palette is dismissed.
type CloseMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// SetAdmin offers the admin-only commands as suggestions.
func (m *Model) SetAdmin(admin bool) {
	suggestions := []string{Refresh, Notify, MarkAllRead, Help, Logout, Quit}
	if admin {
		suggestions = append(suggestions, Projects, Activity)
	}
	m.input.SetSuggestions(suggestions)
}

// Parse resolves raw input to a command name, accepting aliases.
func Parse(raw string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	switch name {
	case Refresh, Notify, MarkAllRead, Projects, Activity, Help, Logout, Quit:
		return name, true
	}
	return "", false
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CloseMsg{} }
		case "enter":
			raw := m.input.Value()
			if strings.TrimSpace(raw) == "" {
				return m, nil
			}
			name, ok := Parse(raw)
			if !ok {
				m.err = "unknown command: " + strings.TrimSpace(raw)
				return m, nil
			}
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CommandMsg(name) }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	parts := []string{theme.TitleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		parts = append(parts, "", theme.OverdueStyle.Render(m.err))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
