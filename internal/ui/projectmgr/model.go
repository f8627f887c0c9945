package projectmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

// Catalog is the paginated project state the view renders and mutates.
type Catalog interface {
	Projects() []model.Project
	Pagination() model.Pagination
	Load(ctx context.Context, page int) error
	Create(ctx context.Context, in model.CreateProjectInput) (model.Project, error)
	Update(ctx context.Context, id string, in model.UpdateProjectInput) error
	Delete(ctx context.Context, id string) error
}

// ProjectListCloseMsg signals the parent to close the project view.
type ProjectListCloseMsg struct{}

// ShowProjectMsg asks the parent to open the detail view for a project.
type ShowProjectMsg struct {
	Project model.Project
}

// ProjectChangedMsg signals that projects were created, updated or deleted.
type ProjectChangedMsg struct{}

type projectMode int

const (
	modeList projectMode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	name        string
	description string
	members     []string
	confirm     bool
}

type pageLoadedMsg struct{ err error }
type projectSavedMsg struct{ err error }
type projectDeletedMsg struct{ err error }

// Model is the Bubble Tea model for project management.
type Model struct {
	mode        projectMode
	catalog     Catalog
	keys        *keys.KeyMap
	projects    []model.Project
	pagination  model.Pagination
	users       []model.User
	selectedIdx int
	editingID   string
	isNew       bool
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new project manager model.
func New(c Catalog, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:    modeList,
		catalog: c,
		keys:    k,
		fb:      &formBindings{},
		width:   width, height: height,
	}
}

// SetUsers sets the users offered as project members.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// Init loads the current page.
func (m Model) Init() tea.Cmd {
	return m.loadPage(max(m.catalog.Pagination().CurrentPage, 1))
}

// Refresh re-reads the catalog.
func (m *Model) Refresh() {
	m.projects = m.catalog.Projects()
	m.pagination = m.catalog.Pagination()
	if m.selectedIdx >= len(m.projects) {
		m.selectedIdx = max(len(m.projects)-1, 0)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pageLoadedMsg:
		m.Refresh()
		return m, ui.ErrorNotice(msg.err)

	case projectSavedMsg:
		m.mode = modeList
		m.Refresh()
		if msg.err != nil {
			m.statusMsg = ""
			return m, ui.ErrorNotice(msg.err)
		}
		m.statusMsg = "Project saved"
		return m, func() tea.Msg { return ProjectChangedMsg{} }

	case projectDeletedMsg:
		m.mode = modeList
		m.Refresh()
		if msg.err != nil {
			m.statusMsg = ""
			return m, ui.ErrorNotice(msg.err)
		}
		m.statusMsg = "Project deleted"
		return m, func() tea.Msg { return ProjectChangedMsg{} }

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ProjectListCloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.projects) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.projects)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.projects) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.projects) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if m.pagination.CurrentPage < m.pagination.TotalPages {
			m.selectedIdx = 0
			return m, m.loadPage(m.pagination.CurrentPage + 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.pagination.CurrentPage > 1 {
			m.selectedIdx = 0
			return m, m.loadPage(m.pagination.CurrentPage - 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.isNew = true
		m.editingID = ""
		*m.fb = formBindings{}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "e", key.Matches(msg, m.keys.Select):
		if len(m.projects) == 0 {
			return m, nil
		}
		p := m.projects[m.selectedIdx]
		m.isNew = false
		m.editingID = p.ID
		*m.fb = formBindings{name: p.Name, description: p.Description}
		for _, u := range p.Members {
			m.fb.members = append(m.fb.members, u.ID)
		}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Details):
		if len(m.projects) == 0 {
			return m, nil
		}
		p := m.projects[m.selectedIdx]
		return m, func() tea.Msg { return ShowProjectMsg{Project: p} }

	case key.Matches(msg, m.keys.Delete):
		if len(m.projects) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Name").
			Placeholder("Project name").
			Value(&m.fb.name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			}),
		huh.NewText().
			Title("Description").
			Placeholder("Optional description").
			Value(&m.fb.description),
	}
	if len(m.users) > 0 {
		opts := make([]huh.Option[string], len(m.users))
		for i, u := range m.users {
			opts[i] = huh.NewOption(u.Name, u.ID)
		}
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Members").
			Options(opts...).
			Value(&m.fb.members))
	}
	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if m.selectedIdx < len(m.projects) {
		name = m.projects[m.selectedIdx].Name
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete project %q?", name)).
				Description("Tasks in this project are deleted by the server.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		return m, m.saveProject()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		if m.fb.confirm && m.selectedIdx < len(m.projects) {
			p := m.projects[m.selectedIdx]
			return m, m.deleteProject(p.ID)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// View renders the project manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	b.WriteString(theme.TitleStyle.Render("Projects"))
	b.WriteString("\n\n")

	if len(m.projects) == 0 {
		b.WriteString(theme.HelpStyle.Render("No projects yet. Press 'n' to create one."))
	} else {
		for i, p := range m.projects {
			label := fmt.Sprintf("%s  %s", p.Name,
				theme.DimmedStyle.Render(fmt.Sprintf("%d members", len(p.Members))))

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.DimmedStyle.Render(fmt.Sprintf("page %d of %d (%d projects)",
		max(m.pagination.CurrentPage, 1), max(m.pagination.TotalPages, 1), m.pagination.TotalItems)))

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"n new | e edit | v details | d delete | [ ] page | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) loadPage(page int) tea.Cmd {
	c := m.catalog
	return func() tea.Msg {
		return pageLoadedMsg{err: c.Load(context.Background(), page)}
	}
}

func (m Model) saveProject() tea.Cmd {
	c := m.catalog
	fb := *m.fb
	editID := m.editingID
	isNew := m.isNew
	return func() tea.Msg {
		name := strings.TrimSpace(fb.name)
		if isNew {
			_, err := c.Create(context.Background(), model.CreateProjectInput{
				Name:        name,
				Description: fb.description,
				Members:     fb.members,
			})
			return projectSavedMsg{err: err}
		}
		err := c.Update(context.Background(), editID, model.UpdateProjectInput{
			Name:        &name,
			Description: &fb.description,
			Members:     fb.members,
		})
		return projectSavedMsg{err: err}
	}
}

func (m Model) deleteProject(id string) tea.Cmd {
	c := m.catalog
	return func() tea.Msg {
		return projectDeletedMsg{err: c.Delete(context.Background(), id)}
	}
}
