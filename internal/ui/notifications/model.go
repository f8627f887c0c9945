package notifications

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

// Feed is the notification state the panel renders and mutates.
type Feed interface {
	Items() []model.NotificationItem
	Unread() int
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// CloseMsg signals the parent to close the panel.
type CloseMsg struct{}

type doneMsg struct{ err error }

// Model is the notification panel.
type Model struct {
	feed    Feed
	keys    *keys.KeyMap
	items   []model.NotificationItem
	unread  int
	cursor  int
	width   int
	height  int
	nowFunc func() time.Time
}

// New creates a notification panel over feed.
func New(feed Feed, k *keys.KeyMap, width, height int) Model {
	return Model{
		feed:    feed,
		keys:    k,
		width:   width,
		height:  height,
		nowFunc: time.Now,
	}
}

// Refresh re-reads the feed.
func (m *Model) Refresh() {
	m.items = m.feed.Items()
	m.unread = m.feed.Unread()
	m.cursor = min(max(m.cursor, 0), max(len(m.items)-1, 0))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.Refresh()
		return m, ui.ErrorNotice(msg.err)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Notifications):
		return m, func() tea.Msg { return CloseMsg{} }
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Select):
		if n, ok := m.selected(); ok && !n.IsRead {
			return m, m.run(func(ctx context.Context) error { return m.feed.MarkRead(ctx, n.ID) })
		}
	case key.Matches(msg, m.keys.MarkAllRead):
		if m.unread > 0 {
			return m, m.run(m.feed.MarkAllRead)
		}
	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) error { return m.feed.Delete(ctx, n.ID) })
		}
	}
	return m, nil
}

func (m Model) selected() (model.NotificationItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.NotificationItem{}, false
	}
	return m.items[m.cursor], true
}

func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: fn(context.Background())}
	}
}

// View renders the panel.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render(fmt.Sprintf("Notifications (%d unread)", m.unread)))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(theme.HelpStyle.Render("No notifications yet."))
	}
	now := m.nowFunc()
	for i, n := range m.items {
		line := renderItem(n, now)
		if i == m.cursor {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("m mark read | M mark all read | d delete | esc back"))
	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func renderItem(n model.NotificationItem, now time.Time) string {
	marker := "  "
	msg := n.Message
	if !n.IsRead {
		marker = theme.UnreadStyle.Render("● ")
		msg = lipgloss.NewStyle().Bold(true).Render(msg)
	}
	var refs []string
	if n.Task != nil && n.Task.Title != "" {
		refs = append(refs, n.Task.Title)
	}
	if n.Project != nil && n.Project.Label() != "" {
		refs = append(refs, n.Project.Label())
	}
	line := marker + msg
	if len(refs) > 0 {
		line += theme.DimmedStyle.Render(" · " + strings.Join(refs, " / "))
	}
	return line + theme.DimmedStyle.Render("  "+appsync.FormatRelative(n.CreatedAt, now))
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
