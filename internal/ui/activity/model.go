package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// PageSize is the number of logs fetched per page.
const PageSize = 10

// LogAPI fetches the admin activity log.
type LogAPI interface {
	ListActivityLogs(ctx context.Context, page, limit int) (api.ActivityPage, error)
}

// CloseMsg signals the parent to close the view.
type CloseMsg struct{}

type loadedMsg struct {
	page api.ActivityPage
	err  error
}

// Model is the read-only activity log table.
type Model struct {
	logs       LogAPI
	keys       *keys.KeyMap
	table      table.Model
	page       int
	pagination model.Pagination
	width      int
	height     int
}

// New creates an activity view.
func New(logs LogAPI, k *keys.KeyMap, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(max(height-6, 5)),
	)
	return Model{
		logs:   logs,
		keys:   k,
		table:  t,
		page:   1,
		width:  width,
		height: height,
	}
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.load(1)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			return m, ui.ErrorNotice(msg.err)
		}
		m.pagination = msg.page.Pagination
		if m.pagination.CurrentPage > 0 {
			m.page = m.pagination.CurrentPage
		}
		m.table.SetRows(Rows(msg.page.Logs))
		m.table.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return CloseMsg{} }
		case key.Matches(msg, m.keys.NextPage):
			if m.page < m.pagination.TotalPages {
				return m, m.load(m.page + 1)
			}
			return m, nil
		case key.Matches(msg, m.keys.PrevPage):
			if m.page > 1 {
				return m, m.load(m.page - 1)
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.load(m.page)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) load(page int) tea.Cmd {
	logs := m.logs
	return func() tea.Msg {
		p, err := logs.ListActivityLogs(context.Background(), page, PageSize)
		return loadedMsg{page: p, err: err}
	}
}

// View renders the table.
func (m Model) View() string {
	title := theme.TitleStyle.Render("Activity Log")
	footer := theme.HelpStyle.Render(fmt.Sprintf(
		"page %d of %d (%d entries) | [ prev | ] next | r refresh | esc back",
		m.page, max(m.pagination.TotalPages, 1), m.pagination.TotalItems,
	))
	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, m.table.View(), "", footer),
	)
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetHeight(max(height-6, 5))
}

func columns(width int) []table.Column {
	changes := max(width-4-16-24-16-8, 20)
	return []table.Column{
		{Title: "When", Width: 16},
		{Title: "Task", Width: 24},
		{Title: "By", Width: 16},
		{Title: "Changes", Width: changes},
	}
}

// Rows converts logs into table rows.
func Rows(logs []model.ActivityLog) []table.Row {
	rows := make([]table.Row, 0, len(logs))
	for _, l := range logs {
		task := l.Task.Title
		if task == "" {
			task = "(deleted task)"
		}
		rows = append(rows, table.Row{
			l.UpdatedAt.Local().Format("Jan 2 15:04"),
			task,
			l.UpdatedBy.Name,
			DescribeChanges(l.Changes),
		})
	}
	return rows
}

// DescribeChanges renders field changes as "field: old → new".
func DescribeChanges(changes []model.Change) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		old := "none"
		if c.OldValue != nil {
			old = *c.OldValue
		}
		parts = append(parts, fmt.Sprintf("%s: %s → %s", c.Field, old, c.NewValue))
	}
	return strings.Join(parts, "; ")
}
