package model

import "time"

// ActivityTask is the task reference embedded in an activity log. The
// task may no longer exist.
type ActivityTask struct {
	ID      string      `json:"_id"`
	Title   string      `json:"title"`
	Project *ProjectRef `json:"projectId,omitempty"`
}

// Change is a single field-level modification.
type Change struct {
	Field string `json:"field"`

	// OldValue is nil when the field was previously unset.
	OldValue *string `json:"oldValue"`
	NewValue string  `json:"newValue"`
}

// ActivityLog is an append-only, server-generated record of who changed
// what on a task.
type ActivityLog struct {
	ID        string       `json:"_id"`
	Task      ActivityTask `json:"taskId"`
	UpdatedBy User         `json:"updatedBy"`
	Changes   []Change     `json:"changes"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
