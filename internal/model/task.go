package model

import (
	"fmt"
	"time"
)

// Status is the board column a task sits in.
type Status string

// Task status values, in board order.
const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In-Progress"
	StatusDone       Status = "Done"
)

// Statuses lists every valid status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the three defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Index returns the column position of s, or -1 when s is not valid.
func (s Status) Index() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Priority is the urgency label attached to a task.
type Priority string

// Task priority values.
const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists every valid priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the client's cached copy of a server-owned task.
type Task struct {
	// ID is the server-assigned identity.
	ID string `json:"_id"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`

	// DueDate is optional.
	DueDate *time.Time `json:"dueDate,omitempty"`

	// Project is the owning project. The server sends either a bare id
	// or an embedded project document.
	Project ProjectRef `json:"projectId"`

	// AssignedTo is nil for unassigned tasks.
	AssignedTo *User `json:"assignedTo,omitempty"`

	CreatedBy User      `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityID returns the task identity.
func (t Task) EntityID() string { return t.ID }

// Version returns the server modification time used to reject stale
// push events.
func (t Task) Version() time.Time { return t.UpdatedAt }

// IsOverdue reports whether the task has a due date in the past and is
// not done yet.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusDone
}

// AssigneeName returns the assignee display name or "Unassigned".
func (t Task) AssigneeName() string {
	if t.AssignedTo == nil || t.AssignedTo.Name == "" {
		return "Unassigned"
	}
	return t.AssignedTo.Name
}

// CreateTaskInput is the body of POST /task.
type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	ProjectID   string     `json:"projectId"`
	AssignedTo  string     `json:"assignedTo"`
}

// UpdateTaskInput is the partial body of PUT /task/{id}. Nil fields are
// left unchanged by the server.
type UpdateTaskInput struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
}

// Validate checks the fields the server would otherwise reject.
func (in CreateTaskInput) Validate() error {
	if in.Title == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if !in.Status.Valid() {
		return fmt.Errorf("unknown task status %q", in.Status)
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("unknown task priority %q", in.Priority)
	}
	if in.ProjectID == "" {
		return fmt.Errorf("task must belong to a project")
	}
	return nil
}
