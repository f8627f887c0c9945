package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Project is a grouping of tasks with a member list.
type Project struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   User      `json:"createdBy"`
	Members     []User    `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EntityID returns the project identity.
func (p Project) EntityID() string { return p.ID }

// Version returns the server modification time.
func (p Project) Version() time.Time { return p.UpdatedAt }

// Ref returns a reference to p suitable for embedding in a task.
func (p Project) Ref() ProjectRef {
	return ProjectRef{ID: p.ID, Name: p.Name, Members: p.Members}
}

// ProjectRef is a project reference embedded in another document. On the
// wire it is either the bare project id or a populated project object.
type ProjectRef struct {
	ID      string `json:"_id"`
	Name    string `json:"name,omitempty"`
	Members []User `json:"members,omitempty"`
}

// UnmarshalJSON accepts both `"<id>"` and `{"_id": "<id>", ...}`.
func (r *ProjectRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ProjectRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decoding project id: %w", err)
		}
		*r = ProjectRef{ID: id}
		return nil
	}

	type plain ProjectRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding project reference: %w", err)
	}
	*r = ProjectRef(p)
	return nil
}

// Label returns the project name, falling back to its id.
func (r ProjectRef) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// CreateProjectInput is the body of POST /project.
type CreateProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// UpdateProjectInput is the partial body of PUT /project/{id}.
type UpdateProjectInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}
