package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
)

// ProjectAPI is the REST surface the project catalog needs.
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListProjectsPage(ctx context.Context, page, limit int) (api.ProjectPage, error)
	CreateProject(ctx context.Context, in model.CreateProjectInput) (model.Project, error)
	UpdateProject(ctx context.Context, id string, in model.UpdateProjectInput) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// DefaultPageSize is the number of projects per page.
const DefaultPageSize = 10

// ProjectCatalog holds one page of projects. Projects have no push
// events, so every successful mutation refetches a page.
type ProjectCatalog struct {
	api     ProjectAPI
	limit   int
	updates *Updates
	logger  *zap.Logger

	mu         gosync.RWMutex
	projects   []model.Project
	pagination model.Pagination
}

// NewProjectCatalog returns an empty catalog fetching limit projects per
// page.
func NewProjectCatalog(projectAPI ProjectAPI, limit int, updates *Updates, logger *zap.Logger) *ProjectCatalog {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectCatalog{
		api:        projectAPI,
		limit:      limit,
		updates:    updates,
		logger:     logger.Named("projects"),
		pagination: model.Pagination{CurrentPage: 1},
	}
}

// Load fetches page and replaces the held page.
func (p *ProjectCatalog) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	resp, err := p.api.ListProjectsPage(ctx, page, p.limit)
	if err != nil {
		return fmt.Errorf("loading projects page %d: %w", page, err)
	}

	pagination := resp.Pagination
	if pagination.CurrentPage == 0 {
		pagination.CurrentPage = page
	}

	p.mu.Lock()
	p.projects = resp.Projects
	p.pagination = pagination
	p.mu.Unlock()

	p.updates.Notify()
	return nil
}

// Create creates a project and shows the first page.
func (p *ProjectCatalog) Create(ctx context.Context, in model.CreateProjectInput) (model.Project, error) {
	if in.Name == "" {
		return model.Project{}, mutationError("project", "create", "", fmt.Errorf("project name must not be empty"))
	}
	project, err := p.api.CreateProject(ctx, in)
	if err != nil {
		return model.Project{}, mutationError("project", "create", "", err)
	}
	RecordMutation("project", "create", nil)
	return project, p.refetch(ctx, 1)
}

// Update updates a project and refetches the current page.
func (p *ProjectCatalog) Update(ctx context.Context, id string, in model.UpdateProjectInput) error {
	if _, err := p.api.UpdateProject(ctx, id, in); err != nil {
		return mutationError("project", "update", id, err)
	}
	RecordMutation("project", "update", nil)
	return p.refetch(ctx, p.Pagination().CurrentPage)
}

// Delete deletes a project and refetches the current page, stepping back
// one page when the deleted project was the last one on it.
func (p *ProjectCatalog) Delete(ctx context.Context, id string) error {
	if err := p.api.DeleteProject(ctx, id); err != nil {
		return mutationError("project", "delete", id, err)
	}
	RecordMutation("project", "delete", nil)

	p.mu.RLock()
	page := p.pagination.CurrentPage
	if len(p.projects) == 1 && page > 1 {
		page--
	}
	p.mu.RUnlock()
	return p.refetch(ctx, page)
}

// All fetches every project, for pickers.
func (p *ProjectCatalog) All(ctx context.Context) ([]model.Project, error) {
	projects, err := p.api.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing all projects: %w", err)
	}
	return projects, nil
}

// Projects returns the held page.
func (p *ProjectCatalog) Projects() []model.Project {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.Project(nil), p.projects...)
}

// Pagination returns the held page position.
func (p *ProjectCatalog) Pagination() model.Pagination {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pagination
}

// Clear forgets the held page.
func (p *ProjectCatalog) Clear() {
	p.mu.Lock()
	p.projects = nil
	p.pagination = model.Pagination{CurrentPage: 1}
	p.mu.Unlock()
	p.updates.Notify()
}

func (p *ProjectCatalog) refetch(ctx context.Context, page int) error {
	if err := p.Load(ctx, page); err != nil {
		p.logger.Warn("refetching projects after mutation", zap.Error(err))
		return err
	}
	return nil
}
