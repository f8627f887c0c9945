package detail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

const timeLayout = "2006-01-02 15:04"

// Fetcher reads the latest copy of a task or project.
type Fetcher interface {
	GetTask(ctx context.Context, id string) (model.Task, error)
	GetProject(ctx context.Context, id string) (model.Project, error)
}

// BackMsg signals the parent to navigate back.
type BackMsg struct{}

// EditMsg asks the parent to open the edit form for the shown task.
type EditMsg struct {
	Task model.Task
}

type taskLoadedMsg struct {
	task model.Task
	err  error
}

type projectLoadedMsg struct {
	project model.Project
	err     error
}

// Model shows one task or project in a scrollable viewport. The cached
// copy renders at once and is replaced when the fetch returns.
type Model struct {
	fetcher  Fetcher
	keys     *keys.KeyMap
	viewport viewport.Model
	task     *model.Task
	project  *model.Project
	loading  bool
	width    int
	height   int
}

// New creates a detail view.
func New(f Fetcher, k *keys.KeyMap, width, height int) Model {
	return Model{
		fetcher:  f,
		keys:     k,
		viewport: viewport.New(width, max(height-2, 1)),
		width:    width,
		height:   height,
	}
}

// ShowTask displays t and fetches its latest copy.
func (m *Model) ShowTask(t model.Task) tea.Cmd {
	m.task = &t
	m.project = nil
	m.loading = true
	m.render()

	fetcher := m.fetcher
	id := t.ID
	return func() tea.Msg {
		fresh, err := fetcher.GetTask(context.Background(), id)
		return taskLoadedMsg{task: fresh, err: err}
	}
}

// ShowProject displays p and fetches its latest copy.
func (m *Model) ShowProject(p model.Project) tea.Cmd {
	m.project = &p
	m.task = nil
	m.loading = true
	m.render()

	fetcher := m.fetcher
	id := p.ID
	return func() tea.Msg {
		fresh, err := fetcher.GetProject(context.Background(), id)
		return projectLoadedMsg{project: fresh, err: err}
	}
}

// SetTask replaces the shown task with t when they share an identity.
func (m *Model) SetTask(t model.Task) {
	if m.task == nil || m.task.ID != t.ID {
		return
	}
	m.task = &t
	m.render()
}

// TaskID returns the id of the shown task, or "" when none is shown.
func (m Model) TaskID() string {
	if m.task == nil {
		return ""
	}
	return m.task.ID
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskLoadedMsg:
		m.loading = false
		if msg.err != nil {
			return m, ui.ErrorNotice(msg.err)
		}
		if m.task != nil && m.task.ID == msg.task.ID {
			m.task = &msg.task
			m.render()
		}
		return m, nil

	case projectLoadedMsg:
		m.loading = false
		if msg.err != nil {
			return m, ui.ErrorNotice(msg.err)
		}
		if m.project != nil && m.project.ID == msg.project.ID {
			m.project = &msg.project
			m.render()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Select):
			if m.task != nil {
				t := *m.task
				return m, func() tea.Msg { return EditMsg{Task: t} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.task == nil && m.project == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Nothing selected")
	}

	footer := "esc back | j/k scroll"
	if m.task != nil {
		footer = "enter edit | " + footer
	}
	if m.loading {
		footer = "refreshing... | " + footer
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		theme.HelpStyle.Render(footer),
	)
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 1)
	m.render()
}

func (m *Model) render() {
	switch {
	case m.task != nil:
		m.viewport.SetContent(RenderTask(*m.task, m.width))
	case m.project != nil:
		m.viewport.SetContent(RenderProject(*m.project, m.width))
	default:
		m.viewport.SetContent("")
	}
	m.viewport.GotoTop()
}

// RenderTask lays out every field of t.
func RenderTask(t model.Task, width int) string {
	sections := []string{
		theme.TitleStyle.Render(t.Title),
		lipgloss.JoinHorizontal(lipgloss.Top,
			theme.StatusStyle(t.Status).Render(string(t.Status)),
			"  ",
			theme.PriorityStyle(t.Priority).Render(string(t.Priority)),
		),
		"",
		field("Project", t.Project.Label()),
		field("Assignee", t.AssigneeName()),
		field("Created by", userLabel(t.CreatedBy)),
	}
	if t.DueDate != nil {
		sections = append(sections, field("Due", t.DueDate.Format("2006-01-02")))
	}
	sections = append(sections, timestamps(t.CreatedAt, t.UpdatedAt)...)
	sections = append(sections, body("Description", t.Description, width)...)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderProject lays out every field of p, including its members.
func RenderProject(p model.Project, width int) string {
	sections := []string{
		theme.TitleStyle.Render(p.Name),
		"",
		field("Created by", userLabel(p.CreatedBy)),
	}
	sections = append(sections, timestamps(p.CreatedAt, p.UpdatedAt)...)
	sections = append(sections, body("Description", p.Description, width)...)

	sections = append(sections, "", separator(width), "",
		theme.TitleStyle.Render(fmt.Sprintf("Members (%d)", len(p.Members))))
	if len(p.Members) == 0 {
		sections = append(sections, theme.DimmedStyle.Italic(true).Render("No members"))
	}
	for _, u := range p.Members {
		line := "• " + userLabel(u)
		if u.Role != "" {
			line += theme.DimmedStyle.Render("  " + u.Role)
		}
		sections = append(sections, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func field(label, value string) string {
	return fmt.Sprintf("%s %s",
		theme.DimmedStyle.Width(12).Render(label+":"),
		lipgloss.NewStyle().Foreground(theme.ColorWhite).Render(value),
	)
}

func timestamps(created, updated time.Time) []string {
	var out []string
	if !created.IsZero() {
		out = append(out, field("Created", created.Local().Format(timeLayout)))
	}
	if !updated.IsZero() {
		out = append(out, field("Updated", updated.Local().Format(timeLayout)))
	}
	return out
}

func userLabel(u model.User) string {
	switch {
	case u.Name != "" && u.Email != "":
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return "Unknown"
	}
}

func body(title, text string, width int) []string {
	if strings.TrimSpace(text) == "" {
		text = theme.DimmedStyle.Italic(true).Render("No " + strings.ToLower(title))
	} else {
		text = lipgloss.NewStyle().Width(max(width-4, 20)).Render(text)
	}
	return []string{"", separator(width), "", theme.TitleStyle.Render(title), text}
}

func separator(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", min(max(width-4, 10), 80)))
}
