package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// LoginMsg is dispatched when the sign-in form is submitted.
type LoginMsg struct {
	Input model.LoginInput
}

// SignupMsg is dispatched when the sign-up form is submitted.
type SignupMsg struct {
	Input model.SignupInput
}

const (
	actionLogin  = "login"
	actionSignup = "signup"
)

type formBindings struct {
	action   string
	name     string
	email    string
	password string
}

// Model is the sign-in entry point.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	message string
	width   int
	height  int
}

// New creates a login view.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{action: actionLogin},
		width:  width,
		height: height,
	}
}

// Start resets the form. message, when set, explains why the user is
// back at the entry point.
func (m *Model) Start(message string) tea.Cmd {
	email := m.fb.email
	*m.fb = formBindings{action: actionLogin, email: email}
	m.message = message
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.message = ""
		return m, m.handleSubmit()
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	parts := []string{theme.TitleStyle.Render("Task Board")}
	if m.message != "" {
		parts = append(parts, theme.NoticeStyle.Render(m.message), "")
	}
	parts = append(parts, m.form.View())
	return theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Welcome").
				Options(
					huh.NewOption("Sign in", actionLogin),
					huh.NewOption("Create an account", actionSignup),
				).
				Value(&fb.action),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&fb.name).
				Validate(required("name")),
		).WithHideFunc(func() bool { return fb.action != actionSignup }),
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(required("password")),
		),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

func (m Model) handleSubmit() tea.Cmd {
	fb := *m.fb
	email := strings.TrimSpace(fb.email)
	if fb.action == actionSignup {
		in := model.SignupInput{Name: strings.TrimSpace(fb.name), Email: email, Password: fb.password}
		return func() tea.Msg { return SignupMsg{Input: in} }
	}
	in := model.LoginInput{Email: email, Password: fb.password}
	return func() tea.Msg { return LoginMsg{Input: in} }
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(s, "@") {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}
