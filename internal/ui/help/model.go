package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/theme"
)

const (
	moveNote  = "Moving a task sends the new status; the card moves once the server confirms it."
	adminNote = "Creating and deleting tasks, projects and the activity log need an admin account."
)

// Model lists every key binding with notes for the signed-in role.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	admin  bool
	width  int
	height int
}

// New creates a help view.
func New(k *keys.KeyMap, width, height int) Model {
	m := Model{keys: k, help: help.New()}
	m.help.ShowAll = true
	m.SetSize(width, height)
	return m
}

// SetAdmin hides the admin-account note for administrators.
func (m *Model) SetAdmin(admin bool) {
	m.admin = admin
}

// Update is a no-op; the root model closes the view on any key.
func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the bindings and the role notes.
func (m Model) View() string {
	notes := moveNote
	if !m.admin {
		notes += "\n" + adminNote
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			theme.TitleStyle.Render("Keyboard Shortcuts"),
			m.help.View(m.keys),
			"",
			theme.HelpStyle.Render(notes),
		))
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-4, 0)
}
