package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	appsync "github.com/nhle/taskboard/internal/sync"
)

// NoticeTTL is how long a transient notice stays in the status bar.
const NoticeTTL = 4 * time.Second

// NoticeMsg asks the root model to show a transient status-bar notice.
type NoticeMsg struct {
	Text string
}

// NoticeExpiredMsg clears the notice with the matching sequence number.
type NoticeExpiredMsg struct {
	Seq int
}

// ErrorNotice returns a command showing the user-facing text for err,
// or nil when err is nil.
func ErrorNotice(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	text := appsync.Notice(err)
	return func() tea.Msg { return NoticeMsg{Text: text} }
}

// ExpireNotice schedules the removal of notice seq after NoticeTTL.
func ExpireNotice(seq int) tea.Cmd {
	return tea.Tick(NoticeTTL, func(time.Time) tea.Msg {
		return NoticeExpiredMsg{Seq: seq}
	})
}

// FormWidth clamps a form width to a readable range.
func FormWidth(width int) int {
	return min(max(width-4, 40), 100)
}

// FormHeight leaves room for the form frame.
func FormHeight(height int) int {
	return max(height-4, 10)
}
