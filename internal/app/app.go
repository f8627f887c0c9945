package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	appsync "github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/ui"
	"github.com/nhle/taskboard/internal/ui/activity"
	"github.com/nhle/taskboard/internal/ui/board"
	"github.com/nhle/taskboard/internal/ui/command"
	"github.com/nhle/taskboard/internal/ui/detail"
	helpview "github.com/nhle/taskboard/internal/ui/help"
	"github.com/nhle/taskboard/internal/ui/login"
	"github.com/nhle/taskboard/internal/ui/notifications"
	"github.com/nhle/taskboard/internal/ui/projectmgr"
	"github.com/nhle/taskboard/internal/ui/taskform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewBoard
	ViewTaskCreate
	ViewTaskEdit
	ViewNotifications
	ViewProjects
	ViewActivity
	ViewHelp
	ViewCommand
	ViewDetail
)

// UsersAPI lists the users an admin can assign.
type UsersAPI interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Deps are the collaborators the root model drives.
type Deps struct {
	Session  *session.Service
	Tasks    *appsync.Coordinator
	Feed     *appsync.Feed
	Poller   *appsync.FeedPoller
	Projects *appsync.ProjectCatalog
	Users    UsersAPI
	Logs     activity.LogAPI
	Details  detail.Fetcher
	Updates  *appsync.Updates

	// Connected reports the push channel state for the header.
	Connected func() bool

	Logger *zap.Logger
}

// Model is the root Bubble Tea model. It routes between views by role
// and turns synchronized state changes into redraws.
type Model struct {
	deps   Deps
	logger *zap.Logger

	currentView  ViewState
	previousView ViewState
	detailReturn ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	ready        bool

	session   model.Session
	signedIn  bool
	unread    int
	notice    string
	noticeSeq int

	// ended receives the reason whenever the session ends, including
	// expiry detected on a background goroutine.
	ended           chan error
	pollerListening bool

	login         login.Model
	board         board.Model
	taskForm      taskform.Model
	notifications notifications.Model
	projects      projectmgr.Model
	activity      activity.Model
	helpView      helpview.Model
	commandView   command.Model
	detail        detail.Model
}

type sessionStartedMsg struct{ session model.Session }
type restoreFailedMsg struct{ err error }
type authFailedMsg struct{ err error }
type sessionEndedMsg struct{ reason error }
type mutationDoneMsg struct{ err error }
type optionsLoadedMsg struct {
	projects []model.Project
	users    []model.User
}

// New creates the root model.
func New(deps Deps) Model {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Connected == nil {
		deps.Connected = func() bool { return false }
	}
	k := keys.DefaultKeyMap()
	m := Model{
		deps:          deps,
		logger:        logger.Named("app"),
		currentView:   ViewLogin,
		keys:          k,
		ended:         make(chan error, 1),
		login:         login.New(80, 24),
		board:         board.New(deps.Tasks, k, 80, 24),
		taskForm:      taskform.New(80, 24),
		notifications: notifications.New(deps.Feed, k, 80, 24),
		projects:      projectmgr.New(deps.Projects, k, 80, 24),
		activity:      activity.New(deps.Logs, k, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		detail:        detail.New(deps.Details, k, 80, 24),
	}

	ended := m.ended
	deps.Session.OnLogout(func(reason error) {
		deps.Tasks.Clear()
		deps.Feed.Clear()
		deps.Projects.Clear()
		select {
		case ended <- reason:
		default:
		}
	})
	return m
}

// Init restores the previous session and starts listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.restore(),
		m.deps.Updates.Wait(),
		m.waitEnded(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.login.SetSize(w, h)
		m.board.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.notifications.SetSize(w, h)
		m.projects.SetSize(w, h)
		m.activity.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.detail.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionStartedMsg:
		return m, m.startSession(msg.session)

	case restoreFailedMsg:
		text := ""
		if api.IsSessionExpired(msg.err) {
			text = api.UserMessage(msg.err)
		} else if !errors.Is(msg.err, session.ErrNoSession) {
			m.logger.Warn("restoring session failed", zap.Error(msg.err))
		}
		m.currentView = ViewLogin
		return m, m.login.Start(text)

	case authFailedMsg:
		m.currentView = ViewLogin
		return m, m.login.Start(api.UserMessage(msg.err))

	case sessionEndedMsg:
		m.signedIn = false
		m.session = model.Session{}
		m.unread = 0
		m.deps.Poller.Stop()
		m.currentView = ViewLogin
		text := ""
		if msg.reason != nil {
			text = api.UserMessage(msg.reason)
		}
		return m, tea.Batch(m.login.Start(text), m.waitEnded())

	case login.LoginMsg:
		return m, m.signIn(func(ctx context.Context) (model.Session, error) {
			return m.deps.Session.Login(ctx, msg.Input)
		})

	case login.SignupMsg:
		return m, m.signIn(func(ctx context.Context) (model.Session, error) {
			return m.deps.Session.Signup(ctx, msg.Input)
		})

	case appsync.UpdateMsg:
		m.board.Refresh()
		m.notifications.Refresh()
		m.projects.Refresh()
		if t, ok := m.deps.Tasks.Tasks().Get(m.detail.TaskID()); ok {
			m.detail.SetTask(t)
		}
		m.unread = m.deps.Feed.Unread()
		return m, m.deps.Updates.Wait()

	case appsync.FeedResultMsg:
		if msg.Error != nil && !msg.SessionExpired {
			m.logger.Debug("notification poll failed", zap.Error(msg.Error))
		}
		return m, m.deps.Poller.WaitForNextResult()

	case ui.NoticeMsg:
		m.notice = msg.Text
		m.noticeSeq++
		return m, ui.ExpireNotice(m.noticeSeq)

	case ui.NoticeExpiredMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case mutationDoneMsg:
		return m, ui.ErrorNotice(msg.err)

	case optionsLoadedMsg:
		m.taskForm.SetOptions(msg.projects, msg.users)
		m.projects.SetUsers(msg.users)
		return m, nil

	case board.EditTaskMsg:
		m.currentView = ViewTaskEdit
		return m, m.taskForm.StartEdit(msg.Task)

	case board.ShowTaskMsg:
		m.detailReturn = ViewBoard
		m.currentView = ViewDetail
		return m, m.detail.ShowTask(msg.Task)

	case projectmgr.ShowProjectMsg:
		m.detailReturn = ViewProjects
		m.currentView = ViewDetail
		return m, m.detail.ShowProject(msg.Project)

	case detail.BackMsg:
		m.currentView = m.detailReturn
		return m, nil

	case detail.EditMsg:
		m.currentView = ViewTaskEdit
		return m, m.taskForm.StartEdit(msg.Task)

	case board.NewTaskMsg:
		m.currentView = ViewTaskCreate
		return m, m.taskForm.StartCreate(msg.Status)

	case taskform.TaskCreatedMsg:
		m.currentView = ViewBoard
		return m, m.mutate(func(ctx context.Context) error {
			_, err := m.deps.Tasks.Create(ctx, msg.Input)
			return err
		})

	case taskform.TaskUpdatedMsg:
		m.currentView = ViewBoard
		return m, m.mutate(func(ctx context.Context) error {
			return m.deps.Tasks.Update(ctx, msg.ID, msg.Input)
		})

	case taskform.CancelMsg,
		notifications.CloseMsg,
		projectmgr.ProjectListCloseMsg,
		activity.CloseMsg:
		m.currentView = ViewBoard
		return m, nil

	case projectmgr.ProjectChangedMsg:
		return m, m.loadOptions()

	case command.CloseMsg:
		m.currentView = ViewBoard
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewBoard
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.currentView == ViewBoard {
			if cmd, ok := m.handleBoardKey(msg); ok {
				return m, cmd
			}
		}
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleBoardKey handles the global keys available from the board. It
// reports false when the key belongs to the board itself.
func (m *Model) handleBoardKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	admin := m.session.IsAdmin()
	switch msg.String() {
	case "q":
		return m.quit(), true
	case "?":
		return m.executeCommand(command.Help), true
	case ":":
		m.currentView = ViewCommand
		return m.commandView.Focus(), true
	case "N":
		return m.executeCommand(command.Notify), true
	case "p":
		if !admin {
			return nil, true
		}
		return m.executeCommand(command.Projects), true
	case "a":
		if !admin {
			return nil, true
		}
		return m.executeCommand(command.Activity), true
	case "ctrl+l":
		return m.logout(), true
	}
	return nil, false
}

// executeCommand runs a palette command. Admin-only views stay closed
// for regular users.
func (m *Model) executeCommand(name string) tea.Cmd {
	admin := m.session.IsAdmin()
	switch name {
	case command.Refresh:
		return tea.Batch(m.deps.Poller.Refresh(), m.board.Init())
	case command.Notify:
		m.currentView = ViewNotifications
		m.notifications.Refresh()
		return m.deps.Poller.Refresh()
	case command.MarkAllRead:
		return m.mutate(m.deps.Feed.MarkAllRead)
	case command.Projects:
		if admin {
			m.currentView = ViewProjects
			return m.projects.Init()
		}
	case command.Activity:
		if admin {
			m.currentView = ViewActivity
			return m.activity.Init()
		}
	case command.Help:
		m.previousView = ViewBoard
		m.currentView = ViewHelp
	case command.Logout:
		return m.logout()
	case command.Quit:
		return m.quit()
	}
	return nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.login, cmd = m.login.Update(msg)
	case ViewBoard:
		m.board, cmd = m.board.Update(msg)
	case ViewTaskCreate, ViewTaskEdit:
		m.taskForm, cmd = m.taskForm.Update(msg)
	case ViewNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewProjects:
		m.projects, cmd = m.projects.Update(msg)
	case ViewActivity:
		m.activity, cmd = m.activity.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Task Board"
	if m.signedIn {
		title = fmt.Sprintf("Task Board · %s (%s)", m.session.Username, m.session.Role)
	}
	header := m.layout.RenderHeader(title, appsync.Badge(m.unread), m.deps.Connected())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.notice)

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.login.View()
	case ViewBoard:
		return m.board.View()
	case ViewTaskCreate, ViewTaskEdit:
		return m.taskForm.View()
	case ViewNotifications:
		return m.notifications.View()
	case ViewProjects:
		return m.projects.View()
	case ViewActivity:
		return m.activity.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewDetail:
		return m.detail.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter continue | ctrl+c quit"
	case ViewHelp:
		return "any key close help"
	case ViewCommand:
		return "enter execute | tab complete | esc close"
	case ViewTaskCreate, ViewTaskEdit:
		return "enter submit | esc cancel"
	case ViewNotifications:
		return "m mark read | M mark all | d delete | esc back"
	case ViewProjects:
		return "n new | e edit | v details | d delete | [ ] page | esc back"
	case ViewActivity:
		return "[ ] page | r refresh | esc back"
	case ViewDetail:
		return "j/k scroll | enter edit task | esc back"
	default:
		if m.session.IsAdmin() {
			return "q quit | ? help | : command | v details | n new | d delete | H/L move | N notifications | p projects | a activity"
		}
		return "q quit | ? help | : command | enter edit | v details | H/L move | N notifications | ctrl+l log out"
	}
}
