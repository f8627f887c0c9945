package sync

import tea "github.com/charmbracelet/bubbletea"

// UpdateMsg tells the Bubble Tea loop that synchronized state changed.
type UpdateMsg struct{}

// Updates is a coalescing change signal. Any number of Notify calls
// between two waits collapse into one UpdateMsg.
type Updates struct {
	ch chan struct{}
}

// NewUpdates returns a signal with nothing pending.
func NewUpdates() *Updates {
	return &Updates{ch: make(chan struct{}, 1)}
}

// Notify marks state as changed without blocking. A nil receiver is a
// no-op.
func (u *Updates) Notify() {
	if u == nil {
		return
	}
	select {
	case u.ch <- struct{}{}:
	default:
	}
}

// C exposes the raw signal channel.
func (u *Updates) C() <-chan struct{} { return u.ch }

// Wait returns a tea.Cmd that blocks until the next change. Re-issue it
// after every UpdateMsg to keep listening.
func (u *Updates) Wait() tea.Cmd {
	return func() tea.Msg {
		<-u.ch
		return UpdateMsg{}
	}
}
