package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/theme"
)

const (
	headerRows    = 1
	statusBarRows = 1
)

// Layout splits the terminal into a header row, the active view and a
// status bar row.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentWidth returns the width available to the active view.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view once the
// header and status bar are drawn.
func (l Layout) ContentHeight() int {
	return max(l.Height-headerRows-statusBarRows, 0)
}

// RenderHeader draws the title with the unread badge on the left and the
// push channel indicator on the right.
func (l Layout) RenderHeader(title, badge string, connected bool) string {
	left := theme.HeaderStyle.Render(title)
	if badge != "" {
		left += theme.BadgeStyle.Render(badge)
	}

	indicator := "● live"
	if !connected {
		indicator = "○ offline"
	}
	right := theme.ConnectionStyle(connected).Render(indicator)

	return l.row(theme.HeaderStyle, left, right)
}

// RenderStatusBar draws the key hints, replaced by the notice while one
// is showing.
func (l Layout) RenderStatusBar(hints, notice string) string {
	if notice != "" {
		return l.row(theme.StatusBarStyle, theme.NoticeStyle.Render(notice), "")
	}
	return l.row(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), "")
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// row fills the space between left and right with bg's background so the
// bar spans the full width.
func (l Layout) row(bg lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(bg.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}
