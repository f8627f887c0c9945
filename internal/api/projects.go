package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/taskboard/internal/model"
)

// ProjectPage is one page of GET /project/paginated.
type ProjectPage struct {
	Projects   []model.Project  `json:"projects"`
	Pagination model.Pagination `json:"pagination"`
}

type projectEnvelope struct {
	Message string        `json:"message"`
	Project model.Project `json:"project"`
}

type projectsEnvelope struct {
	Projects []model.Project `json:"projects"`
}

// ListProjects fetches every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var resp projectsEnvelope
	if err := c.Get(ctx, "/project", &resp); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return resp.Projects, nil
}

// ListProjectsPage fetches one page of projects.
func (c *Client) ListProjectsPage(ctx context.Context, page, limit int) (ProjectPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp ProjectPage
	if err := c.Get(ctx, "/project/paginated?"+q.Encode(), &resp); err != nil {
		return ProjectPage{}, fmt.Errorf("listing projects page %d: %w", page, err)
	}
	return resp, nil
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, id string) (model.Project, error) {
	var resp projectEnvelope
	if err := c.Get(ctx, "/project/"+escape(id), &resp); err != nil {
		return model.Project{}, fmt.Errorf("getting project %s: %w", id, err)
	}
	return resp.Project, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, in model.CreateProjectInput) (model.Project, error) {
	var resp projectEnvelope
	if err := c.Post(ctx, "/project", in, &resp); err != nil {
		return model.Project{}, fmt.Errorf("creating project: %w", err)
	}
	return resp.Project, nil
}

// UpdateProject applies a partial update.
func (c *Client) UpdateProject(
	ctx context.Context,
	id string,
	in model.UpdateProjectInput,
) (model.Project, error) {
	var resp projectEnvelope
	if err := c.Put(ctx, "/project/"+escape(id), in, &resp); err != nil {
		return model.Project{}, fmt.Errorf("updating project %s: %w", id, err)
	}
	return resp.Project, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	if err := c.Delete(ctx, "/project/"+escape(id), nil); err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return nil
}
