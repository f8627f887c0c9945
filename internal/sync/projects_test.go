package sync

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
)

// fakeProjectAPI pages over an in-memory project list.
type fakeProjectAPI struct {
	projects []model.Project
	pages    []int
	err      error
}

func (f *fakeProjectAPI) ListProjects(context.Context) ([]model.Project, error) {
	return f.projects, f.err
}

func (f *fakeProjectAPI) ListProjectsPage(_ context.Context, page, limit int) (api.ProjectPage, error) {
	f.pages = append(f.pages, page)
	if f.err != nil {
		return api.ProjectPage{}, f.err
	}
	start := (page - 1) * limit
	end := min(start+limit, len(f.projects))
	var slice []model.Project
	if start < end {
		slice = f.projects[start:end]
	}
	total := (len(f.projects) + limit - 1) / limit
	return api.ProjectPage{
		Projects: slice,
		Pagination: model.Pagination{
			CurrentPage:  page,
			TotalPages:   total,
			TotalItems:   len(f.projects),
			ItemsPerPage: limit,
		},
	}, nil
}

func (f *fakeProjectAPI) CreateProject(_ context.Context, in model.CreateProjectInput) (model.Project, error) {
	if f.err != nil {
		return model.Project{}, f.err
	}
	p := model.Project{ID: fmt.Sprintf("p%d", len(f.projects)+1), Name: in.Name}
	f.projects = append([]model.Project{p}, f.projects...)
	return p, nil
}

func (f *fakeProjectAPI) UpdateProject(_ context.Context, id string, _ model.UpdateProjectInput) (model.Project, error) {
	return model.Project{ID: id}, f.err
}

func (f *fakeProjectAPI) DeleteProject(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	for i, p := range f.projects {
		if p.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			break
		}
	}
	return nil
}

func seededProjects(n int) []model.Project {
	out := make([]model.Project, n)
	for i := range out {
		out[i] = model.Project{ID: fmt.Sprintf("s%d", i+1), Name: fmt.Sprintf("Project %d", i+1)}
	}
	return out
}

func TestProjectCatalogDeleteLastOnPageStepsBack(t *testing.T) {
	fake := &fakeProjectAPI{projects: seededProjects(3)}
	c := NewProjectCatalog(fake, 2, NewUpdates(), zaptest.NewLogger(t))
	ctx := context.Background()

	if err := c.Load(ctx, 2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Projects(); len(got) != 1 || got[0].ID != "s3" {
		t.Fatalf("page 2 = %+v", got)
	}

	if err := c.Delete(ctx, "s3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := c.Pagination().CurrentPage; got != 1 {
		t.Errorf("CurrentPage = %d, want 1", got)
	}
	if len(c.Projects()) != 2 {
		t.Errorf("page 1 should hold 2 projects, got %d", len(c.Projects()))
	}
}

func TestProjectCatalogDeleteKeepsPage(t *testing.T) {
	fake := &fakeProjectAPI{projects: seededProjects(4)}
	c := NewProjectCatalog(fake, 2, NewUpdates(), zaptest.NewLogger(t))
	ctx := context.Background()
	_ = c.Load(ctx, 2)

	if err := c.Delete(ctx, "s3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := fake.pages[len(fake.pages)-1]; got != 2 {
		t.Errorf("refetched page %d, want 2", got)
	}
}

func TestProjectCatalogCreateShowsFirstPage(t *testing.T) {
	fake := &fakeProjectAPI{projects: seededProjects(5)}
	c := NewProjectCatalog(fake, 2, NewUpdates(), zaptest.NewLogger(t))
	ctx := context.Background()
	_ = c.Load(ctx, 3)

	p, err := c.Create(ctx, model.CreateProjectInput{Name: "New"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Pagination().CurrentPage != 1 || c.Projects()[0].ID != p.ID {
		t.Errorf("catalog = %+v on page %d", c.Projects(), c.Pagination().CurrentPage)
	}

	if err := c.Update(ctx, p.ID, model.UpdateProjectInput{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := fake.pages[len(fake.pages)-1]; got != 1 {
		t.Errorf("update refetched page %d, want 1", got)
	}
}

func TestProjectCatalogFailureLeavesPage(t *testing.T) {
	fake := &fakeProjectAPI{projects: seededProjects(3)}
	c := NewProjectCatalog(fake, 2, NewUpdates(), zaptest.NewLogger(t))
	ctx := context.Background()
	_ = c.Load(ctx, 1)
	before := c.Projects()

	fake.err = errServer
	if _, err := c.Create(ctx, model.CreateProjectInput{Name: "x"}); err == nil {
		t.Error("expected create error")
	}
	if err := c.Delete(ctx, "s1"); err == nil {
		t.Error("expected delete error")
	}
	if _, err := c.Create(ctx, model.CreateProjectInput{}); err == nil {
		t.Error("expected validation error for empty name")
	}
	if len(c.Projects()) != len(before) || c.Pagination().CurrentPage != 1 {
		t.Error("catalog changed after failures")
	}
}
