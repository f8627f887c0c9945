package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/realtime/realtimetest"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func task(id string, status model.Status) model.Task {
	return model.Task{
		ID:        id,
		Title:     "Task " + id,
		Status:    status,
		Priority:  model.PriorityMedium,
		Project:   model.ProjectRef{ID: "p1"},
		CreatedAt: epoch,
		UpdatedAt: epoch,
	}
}

// fakeTaskAPI records calls and answers from canned values.
type fakeTaskAPI struct {
	mu     gosync.Mutex
	calls  []string
	list   []model.Task
	create model.Task
	err    error

	// listing runs inside ListTasks, before the list is returned.
	listing func()
}

func (f *fakeTaskAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeTaskAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTaskAPI) ListTasks(context.Context) ([]model.Task, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	if f.listing != nil {
		f.listing()
	}
	return f.list, nil
}

func (f *fakeTaskAPI) CreateTask(_ context.Context, in model.CreateTaskInput) (model.Task, error) {
	if err := f.record("create " + in.Title); err != nil {
		return model.Task{}, err
	}
	return f.create, nil
}

func (f *fakeTaskAPI) UpdateTask(_ context.Context, id string, _ model.UpdateTaskInput) (model.Task, error) {
	if err := f.record("update " + id); err != nil {
		return model.Task{}, err
	}
	return model.Task{ID: id}, nil
}

func (f *fakeTaskAPI) UpdateTaskStatus(_ context.Context, id string, status model.Status) (model.Task, error) {
	if err := f.record(fmt.Sprintf("move %s %s", id, status)); err != nil {
		return model.Task{}, err
	}
	return model.Task{ID: id, Status: status}, nil
}

func (f *fakeTaskAPI) DeleteTask(_ context.Context, id string) error {
	return f.record("delete " + id)
}

// fakeCache is an in-memory TaskCache.
type fakeCache struct {
	mu    gosync.Mutex
	tasks []model.Task
	saves int
}

func (c *fakeCache) SaveTasks(_ context.Context, tasks []model.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append([]model.Task(nil), tasks...)
	c.saves++
	return nil
}

func (c *fakeCache) LoadTasks(context.Context) ([]model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Task(nil), c.tasks...), nil
}

// session bundles one connected client: manager, rooms, channel and
// coordinator.
type session struct {
	manager     *realtime.Manager
	rooms       *realtime.Rooms
	channel     *realtimetest.Channel
	api         *fakeTaskAPI
	coordinator *Coordinator
	updates     *Updates
}

func newSession(t *testing.T, identity string) *session {
	t.Helper()
	logger := zaptest.NewLogger(t)
	transport := realtimetest.NewTransport()
	m := realtime.NewManager(transport, logger)
	rooms := realtime.NewRooms(m, logger)
	t.Cleanup(rooms.Attach(m))

	updates := NewUpdates()
	fake := &fakeTaskAPI{}
	c := NewCoordinator(fake, rooms, nil, updates, logger)
	t.Cleanup(c.Attach(m))

	if err := m.Connect(context.Background(), identity); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ch := transport.Last()
	ch.SimulateConnect()
	ch.ClearEmits()

	return &session{
		manager:     m,
		rooms:       rooms,
		channel:     ch,
		api:         fake,
		coordinator: c,
		updates:     updates,
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

var errServer = &api.Error{Kind: api.KindServer, StatusCode: 500, Method: "PUT", Path: "/task/t1", Message: "boom"}
