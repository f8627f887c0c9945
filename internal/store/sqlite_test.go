package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

func TestSessionRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadSession(ctx); !errors.Is(err, store.ErrNoSession) {
		t.Fatalf("LoadSession on empty store = %v, want ErrNoSession", err)
	}

	want := model.Session{ID: "u1", Username: "Ada", Email: "ada@example.com", Role: model.RoleAdmin}
	if err := s.SaveSession(ctx, want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := s.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got != want {
		t.Errorf("session = %+v, want %+v", got, want)
	}

	// A second save replaces the single record.
	other := model.Session{ID: "u2", Username: "Bo", Email: "bo@example.com"}
	if err := s.SaveSession(ctx, other); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, _ = s.LoadSession(ctx)
	if got.ID != "u2" || got.Role != model.RoleUser {
		t.Errorf("session = %+v, want u2 with default role", got)
	}

	if err := s.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, err := s.LoadSession(ctx); !errors.Is(err, store.ErrNoSession) {
		t.Errorf("LoadSession after clear = %v", err)
	}
}

func TestSaveSessionRejectsInvalid(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	if err := s.SaveSession(ctx, model.Session{}); err == nil {
		t.Error("expected error for empty id")
	}
	if err := s.SaveSession(ctx, model.Session{ID: "u1", Role: "root"}); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestTaskSnapshotKeepsOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	tasks := []model.Task{
		{ID: "b", Title: "B", Status: model.StatusDone, Project: model.ProjectRef{ID: "p1", Name: "Web"}},
		{ID: "a", Title: "A", Status: model.StatusTodo, DueDate: &due, AssignedTo: &model.User{ID: "u1", Name: "Ada"}},
		{ID: "x", Title: "bad", Status: model.Status("Archived")},
	}
	if err := s.SaveTasks(ctx, tasks); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	got, err := s.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("snapshot = %+v", got)
	}
	if got[0].Project.Label() != "Web" {
		t.Errorf("project = %+v", got[0].Project)
	}
	if got[1].DueDate == nil || !got[1].DueDate.Equal(due) || got[1].AssigneeName() != "Ada" {
		t.Errorf("task a = %+v", got[1])
	}

	if err := s.SaveTasks(ctx, tasks[1:2]); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	got, _ = s.LoadTasks(ctx)
	if !reflect.DeepEqual(ids(got), []string{"a"}) {
		t.Errorf("second snapshot should replace the first, got %v", ids(got))
	}

	if err := s.ClearTasks(ctx); err != nil {
		t.Fatalf("ClearTasks: %v", err)
	}
	if got, _ := s.LoadTasks(ctx); len(got) != 0 {
		t.Errorf("snapshot after clear = %v", got)
	}
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.db")
	ctx := context.Background()

	first, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := first.SaveSession(ctx, model.Session{ID: "u1"}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	first.Close()

	second, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer second.Close()
	if got, err := second.LoadSession(ctx); err != nil || got.ID != "u1" {
		t.Errorf("LoadSession after reopen = %+v, %v", got, err)
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
