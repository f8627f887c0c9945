package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	appsync "github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// Tasks is the synchronized task state the board renders and mutates.
type Tasks interface {
	Board() appsync.Board
	Load(ctx context.Context) error
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	Delete(ctx context.Context, id string) error
}

// EditTaskMsg asks the parent to open the edit form for a task.
type EditTaskMsg struct {
	Task model.Task
}

// ShowTaskMsg asks the parent to open the detail view for a task.
type ShowTaskMsg struct {
	Task model.Task
}

// NewTaskMsg asks the parent to open the create form.
type NewTaskMsg struct {
	Status model.Status
}

type loadedMsg struct{ err error }
type mutationDoneMsg struct{ err error }

// Model is the three-column Kanban view.
type Model struct {
	tasks    Tasks
	keys     *keys.KeyMap
	board    appsync.Board
	col      int
	row      int
	admin    bool
	loading  bool
	width    int
	height   int
	nowFunc  func() time.Time
	selected string
}

// New creates a board view.
func New(tasks Tasks, k *keys.KeyMap, width, height int) Model {
	return Model{
		tasks:   tasks,
		keys:    k,
		board:   appsync.NewBoard(nil),
		width:   width,
		height:  height,
		nowFunc: time.Now,
	}
}

// Init fetches the task list.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// SetAdmin enables the admin-only actions.
func (m *Model) SetAdmin(admin bool) {
	m.admin = admin
}

// Refresh re-reads the board from the synchronized state, keeping the
// cursor on the same task when it still exists.
func (m *Model) Refresh() {
	m.board = m.tasks.Board()
	if m.selected != "" {
		if col, row, ok := m.board.Find(m.selected); ok {
			m.col, m.row = col, row
			return
		}
	}
	m.clamp()
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	if m.col >= len(m.board.Columns) {
		return model.Task{}, false
	}
	tasks := m.board.Columns[m.col].Tasks
	if m.row < 0 || m.row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.row], true
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		m.Refresh()
		return m, ui.ErrorNotice(msg.err)

	case mutationDoneMsg:
		return m, ui.ErrorNotice(msg.err)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clamp()
	case key.Matches(msg, m.keys.Up):
		m.row--
		m.clamp()
	case key.Matches(msg, m.keys.Right):
		m.col++
		m.clamp()
	case key.Matches(msg, m.keys.Left):
		m.col--
		m.clamp()

	case key.Matches(msg, m.keys.MoveRight):
		return m, m.move(1)
	case key.Matches(msg, m.keys.MoveLeft):
		return m, m.move(-1)

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return EditTaskMsg{Task: t} }
		}

	case key.Matches(msg, m.keys.Details):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return ShowTaskMsg{Task: t} }
		}

	case key.Matches(msg, m.keys.New):
		if m.admin {
			status := m.board.Columns[m.col].Status
			return m, func() tea.Msg { return NewTaskMsg{Status: status} }
		}

	case key.Matches(msg, m.keys.Delete):
		if t, ok := m.Selected(); ok && m.admin {
			return m, m.delete(t.ID)
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	}

	if t, ok := m.Selected(); ok {
		m.selected = t.ID
	}
	return m, nil
}

// move sends a status transition for the selected task. The card moves
// when the taskUpdated push arrives.
func (m Model) move(delta int) tea.Cmd {
	t, ok := m.Selected()
	if !ok {
		return nil
	}
	target := t.Status.Index() + delta
	if target < 0 || target >= len(model.Statuses) {
		return nil
	}
	status := model.Statuses[target]
	tasks := m.tasks
	return func() tea.Msg {
		return mutationDoneMsg{err: tasks.UpdateStatus(context.Background(), t.ID, status)}
	}
}

func (m Model) delete(id string) tea.Cmd {
	tasks := m.tasks
	return func() tea.Msg {
		return mutationDoneMsg{err: tasks.Delete(context.Background(), id)}
	}
}

func (m Model) load() tea.Cmd {
	tasks := m.tasks
	return func() tea.Msg {
		return loadedMsg{err: tasks.Load(context.Background())}
	}
}

func (m *Model) clamp() {
	m.col = min(max(m.col, 0), len(m.board.Columns)-1)
	n := len(m.board.Columns[m.col].Tasks)
	m.row = min(max(m.row, 0), max(n-1, 0))
}

// View renders the board.
func (m Model) View() string {
	colWidth := max(m.width/len(m.board.Columns)-2, 20)
	now := m.nowFunc()

	cols := make([]string, 0, len(m.board.Columns))
	for i, c := range m.board.Columns {
		var b strings.Builder
		b.WriteString(theme.StatusStyle(c.Status).Render(
			fmt.Sprintf("%s (%d)", c.Status, len(c.Tasks)),
		))
		b.WriteString("\n\n")
		if len(c.Tasks) == 0 {
			b.WriteString(theme.DimmedStyle.Render("  no tasks"))
		}
		for j, t := range c.Tasks {
			card := m.renderCard(t, now, colWidth-4)
			if i == m.col && j == m.row {
				b.WriteString(theme.SelectedItemStyle.Render(card))
			} else {
				b.WriteString(theme.ListItemStyle.Render(card))
			}
			b.WriteString("\n")
		}

		style := theme.ColumnStyle
		if i == m.col {
			style = theme.FocusedColumnStyle
		}
		cols = append(cols, style.Width(colWidth).Height(m.height-2).Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m Model) renderCard(t model.Task, now time.Time, width int) string {
	title := lipgloss.NewStyle().Bold(true).MaxWidth(width).Render(t.Title)
	meta := theme.PriorityStyle(t.Priority).Render(string(t.Priority)) +
		theme.DimmedStyle.Render(" · "+t.AssigneeName())
	lines := []string{title, meta}

	if label := t.Project.Label(); label != "" {
		lines = append(lines, theme.DimmedStyle.MaxWidth(width).Render(label))
	}
	if t.DueDate != nil {
		due := "due " + t.DueDate.Format("Jan 2")
		if t.IsOverdue(now) {
			lines = append(lines, theme.OverdueStyle.Render(due+" (overdue)"))
		} else {
			lines = append(lines, theme.DimmedStyle.Render(due))
		}
	}
	return strings.Join(lines, "\n")
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
