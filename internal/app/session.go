package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/model"
)

// restore resumes the persisted session, rendering the cached board
// snapshot while the first fetch is in flight.
func (m Model) restore() tea.Cmd {
	svc := m.deps.Session
	tasks := m.deps.Tasks
	logger := m.logger
	return func() tea.Msg {
		ctx := context.Background()
		sess, err := svc.Restore(ctx)
		if err != nil {
			return restoreFailedMsg{err: err}
		}
		if err := tasks.Warm(ctx); err != nil {
			logger.Debug("no board snapshot", zap.Error(err))
		}
		return sessionStartedMsg{session: sess}
	}
}

func (m Model) signIn(fn func(ctx context.Context) (model.Session, error)) tea.Cmd {
	return func() tea.Msg {
		sess, err := fn(context.Background())
		if err != nil {
			return authFailedMsg{err: err}
		}
		return sessionStartedMsg{session: sess}
	}
}

// startSession switches to the board for sess and starts the fetches
// that populate it.
func (m *Model) startSession(sess model.Session) tea.Cmd {
	admin := sess.IsAdmin()
	m.session = sess
	m.signedIn = true
	m.currentView = ViewBoard
	m.deps.Feed.SetAdmin(admin)
	m.board.SetAdmin(admin)
	m.board.Refresh()
	m.taskForm.SetAdmin(admin)
	m.helpView.SetAdmin(admin)
	m.commandView.SetAdmin(admin)

	cmds := []tea.Cmd{m.board.Init(), m.loadOptions()}
	if start := m.deps.Poller.Start(); start != nil && !m.pollerListening {
		m.pollerListening = true
		cmds = append(cmds, start)
	}
	return tea.Batch(cmds...)
}

// loadOptions fetches the project and user pickers for the task form.
// Users are only listed for admins.
func (m Model) loadOptions() tea.Cmd {
	projects := m.deps.Projects
	users := m.deps.Users
	admin := m.session.IsAdmin()
	logger := m.logger
	return func() tea.Msg {
		ctx := context.Background()
		msg := optionsLoadedMsg{}
		var err error
		if msg.projects, err = projects.All(ctx); err != nil {
			logger.Debug("loading projects failed", zap.Error(err))
		}
		if admin {
			if msg.users, err = users.ListUsers(ctx); err != nil {
				logger.Debug("loading users failed", zap.Error(err))
			}
		}
		return msg
	}
}

func (m Model) mutate(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return mutationDoneMsg{err: fn(context.Background())}
	}
}

func (m Model) logout() tea.Cmd {
	svc := m.deps.Session
	return func() tea.Msg {
		_ = svc.Logout(context.Background())
		return nil
	}
}

// waitEnded blocks until the session ends.
func (m Model) waitEnded() tea.Cmd {
	ended := m.ended
	return func() tea.Msg {
		return sessionEndedMsg{reason: <-ended}
	}
}

// quit persists what a restart needs and exits.
func (m Model) quit() tea.Cmd {
	m.deps.Poller.Stop()
	if m.signedIn {
		m.deps.Session.Persist()
		if err := m.deps.Tasks.Snapshot(context.Background()); err != nil {
			m.logger.Debug("saving board snapshot failed", zap.Error(err))
		}
	}
	return tea.Quit
}
