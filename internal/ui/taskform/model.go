package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui"
)

const dateLayout = "2006-01-02"

// TaskCreatedMsg is dispatched when the create form is submitted.
type TaskCreatedMsg struct {
	Input model.CreateTaskInput
}

// TaskUpdatedMsg is dispatched when the edit form is submitted. Only
// the fields that changed are set.
type TaskUpdatedMsg struct {
	ID    string
	Input model.UpdateTaskInput
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	status      model.Status
	priority    model.Priority
	dueDate     string
	projectID   string
	assignee    string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	original model.Task
	editMode bool
	admin    bool
	projects []model.Project
	users    []model.User
	width    int
	height   int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetOptions sets the projects and assignable users for the pickers.
func (m *Model) SetOptions(projects []model.Project, users []model.User) {
	m.projects = projects
	m.users = users
}

// SetAdmin controls whether project and assignee can be changed.
func (m *Model) SetAdmin(admin bool) {
	m.admin = admin
}

// StartCreate initializes the form for a new task in status.
func (m *Model) StartCreate(status model.Status) tea.Cmd {
	m.editMode = false
	m.original = model.Task{}
	*m.fb = formBindings{
		status:   status,
		priority: model.PriorityMedium,
	}
	if len(m.projects) > 0 {
		m.fb.projectID = m.projects[0].ID
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form for editing t.
func (m *Model) StartEdit(t model.Task) tea.Cmd {
	m.editMode = true
	m.original = t
	*m.fb = formBindings{
		title:       t.Title,
		description: t.Description,
		status:      t.Status,
		priority:    t.Priority,
		projectID:   t.Project.ID,
	}
	if t.DueDate != nil {
		m.fb.dueDate = t.DueDate.Format(dateLayout)
	}
	if t.AssignedTo != nil {
		m.fb.assignee = t.AssignedTo.ID
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editMode {
		titleText = "Edit Task"
	}
	content := theme.TitleStyle.Render(titleText) + "\n" + m.form.View()
	return theme.PanelStyle.Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs to be done?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&m.fb.description),
		huh.NewSelect[model.Status]().
			Title("Status").
			Options(statusOptions()...).
			Value(&m.fb.status),
		huh.NewSelect[model.Priority]().
			Title("Priority").
			Options(priorityOptions()...).
			Value(&m.fb.priority),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&m.fb.dueDate).
			Validate(validateOptionalDate),
	}
	if m.admin {
		if !m.editMode {
			fields = append(fields, m.projectField())
		}
		fields = append(fields, m.assigneeField())
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

func statusOptions() []huh.Option[model.Status] {
	opts := make([]huh.Option[model.Status], len(model.Statuses))
	for i, s := range model.Statuses {
		opts[i] = huh.NewOption(string(s), s)
	}
	return opts
}

func priorityOptions() []huh.Option[model.Priority] {
	opts := make([]huh.Option[model.Priority], len(model.Priorities))
	for i, p := range model.Priorities {
		opts[i] = huh.NewOption(string(p), p)
	}
	return opts
}

func (m *Model) projectField() huh.Field {
	opts := make([]huh.Option[string], 0, len(m.projects))
	for _, p := range m.projects {
		opts = append(opts, huh.NewOption(p.Name, p.ID))
	}
	return huh.NewSelect[string]().
		Title("Project").
		Options(opts...).
		Value(&m.fb.projectID).
		Validate(validateRequired("Project"))
}

func (m *Model) assigneeField() huh.Field {
	opts := []huh.Option[string]{huh.NewOption("Unassigned", "")}
	for _, u := range m.users {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s <%s>", u.Name, u.Email), u.ID))
	}
	return huh.NewSelect[string]().
		Title("Assignee").
		Options(opts...).
		Value(&m.fb.assignee)
}

func (m Model) handleSubmit() tea.Cmd {
	due := parseDate(m.fb.dueDate)

	if !m.editMode {
		in := model.CreateTaskInput{
			Title:       strings.TrimSpace(m.fb.title),
			Description: m.fb.description,
			Status:      m.fb.status,
			Priority:    m.fb.priority,
			DueDate:     due,
			ProjectID:   m.fb.projectID,
			AssignedTo:  m.fb.assignee,
		}
		return func() tea.Msg { return TaskCreatedMsg{Input: in} }
	}

	id := m.original.ID
	in := diff(m.original, *m.fb, due, m.admin)
	return func() tea.Msg { return TaskUpdatedMsg{ID: id, Input: in} }
}

// diff returns the partial update that turns orig into the form values.
func diff(orig model.Task, fb formBindings, due *time.Time, admin bool) model.UpdateTaskInput {
	var in model.UpdateTaskInput
	if title := strings.TrimSpace(fb.title); title != orig.Title {
		in.Title = &title
	}
	if fb.description != orig.Description {
		in.Description = &fb.description
	}
	if fb.status != orig.Status {
		in.Status = &fb.status
	}
	if fb.priority != orig.Priority {
		in.Priority = &fb.priority
	}
	if due != nil && (orig.DueDate == nil || !due.Equal(*orig.DueDate)) {
		in.DueDate = due
	}
	if admin {
		current := ""
		if orig.AssignedTo != nil {
			current = orig.AssignedTo.ID
		}
		if fb.assignee != current {
			in.AssignedTo = &fb.assignee
		}
	}
	return in
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	_, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
