package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/realtime/realtimetest"
	"github.com/nhle/taskboard/tests/testutil"
)

func createInput(title string) model.CreateTaskInput {
	return model.CreateTaskInput{
		Title:     title,
		Status:    model.StatusTodo,
		Priority:  model.PriorityLow,
		ProjectID: "p1",
	}
}

func TestCreateThenPushKeepsOneEntry(t *testing.T) {
	s := newSession(t, "u1")
	s.api.create = task("t1", model.StatusTodo)

	if _, err := s.coordinator.Create(context.Background(), createInput("A")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.channel.Push(realtime.EventTaskAssigned, task("t1", model.StatusTodo))

	if got := s.coordinator.Tasks().IDs(); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("IDs = %v, want [t1]", got)
	}
	if got := s.channel.Payloads(realtime.EventJoinTask); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("joinTask payloads = %v", got)
	}
}

func TestPushThenCreateResponseKeepsOneEntry(t *testing.T) {
	s := newSession(t, "u1")
	s.api.create = task("t1", model.StatusTodo)

	s.channel.Push(realtime.EventTaskAssigned, task("t1", model.StatusTodo))
	if _, err := s.coordinator.Create(context.Background(), createInput("A")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n := s.coordinator.Tasks().Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestMoveWaitsForPush(t *testing.T) {
	s := newSession(t, "u1")
	s.api.list = []model.Task{
		task("t0", model.StatusTodo),
		task("t1", model.StatusTodo),
		task("t2", model.StatusTodo),
		task("t3", model.StatusInProgress),
	}
	ctx := context.Background()
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.coordinator.UpdateStatus(ctx, "t1", model.StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	held, _ := s.coordinator.Tasks().Get("t1")
	if held.Status != model.StatusTodo {
		t.Fatal("REST success alone must not patch the collection")
	}

	moved := task("t1", model.StatusInProgress)
	moved.UpdatedAt = epoch.Add(time.Minute)
	s.channel.Push(realtime.EventTaskUpdated, moved)

	board := s.coordinator.Board()
	if got := ids(board.Column(model.StatusTodo)); !reflect.DeepEqual(got, []string{"t0", "t2"}) {
		t.Errorf("Todo = %v", got)
	}
	if got := ids(board.Column(model.StatusInProgress)); !reflect.DeepEqual(got, []string{"t1", "t3"}) {
		t.Errorf("In-Progress = %v", got)
	}
	if got := s.coordinator.Tasks().IDs(); !reflect.DeepEqual(got, []string{"t0", "t1", "t2", "t3"}) {
		t.Errorf("collection order changed: %v", got)
	}
}

func TestInvalidStatusSendsNothing(t *testing.T) {
	s := newSession(t, "u1")

	err := s.coordinator.UpdateStatus(context.Background(), "t1", model.Status("Blocked"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
	if calls := s.api.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}

	bad := model.Status("Archived")
	err = s.coordinator.Update(context.Background(), "t1", model.UpdateTaskInput{Status: &bad})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("Update err = %v, want ErrInvalidStatus", err)
	}
}

func TestFailedMutationsLeaveStateUntouched(t *testing.T) {
	s := newSession(t, "u1")
	s.api.list = []model.Task{task("t1", model.StatusTodo)}
	ctx := context.Background()
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := s.coordinator.Tasks().Items()
	rooms := s.rooms.IDs()
	s.api.err = errServer

	_, createErr := s.coordinator.Create(ctx, createInput("B"))
	ops := map[string]error{
		"create": createErr,
		"update": s.coordinator.Update(ctx, "t1", model.UpdateTaskInput{}),
		"move":   s.coordinator.UpdateStatus(ctx, "t1", model.StatusDone),
		"delete": s.coordinator.Delete(ctx, "t1"),
	}
	for op, err := range ops {
		var mErr *MutationError
		if !errors.As(err, &mErr) {
			t.Errorf("%s: err = %v, want *MutationError", op, err)
			continue
		}
		if mErr.Op != op {
			t.Errorf("%s: Op = %q", op, mErr.Op)
		}
		if got := mErr.Notice(); got != "Could not "+op+" task: Server error, please try again" {
			t.Errorf("%s: Notice = %q", op, got)
		}
	}

	if !reflect.DeepEqual(s.coordinator.Tasks().Items(), before) {
		t.Error("collection changed after failed mutations")
	}
	if !reflect.DeepEqual(s.rooms.IDs(), rooms) {
		t.Error("rooms changed after failed mutations")
	}
}

func TestCreateValidationNotice(t *testing.T) {
	s := newSession(t, "u1")
	_, err := s.coordinator.Create(context.Background(), model.CreateTaskInput{Status: model.StatusTodo})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := Notice(err); got != "Could not create task: task title must not be empty" {
		t.Errorf("Notice = %q", got)
	}
	if len(s.api.Calls()) != 0 {
		t.Error("invalid input must not reach the server")
	}
}

func TestTwoSessionsBothRemoveDeletedTask(t *testing.T) {
	a := newSession(t, "alice")
	b := newSession(t, "bob")
	shared := []model.Task{task("t1", model.StatusTodo), task("t2", model.StatusDone)}
	a.api.list = shared
	b.api.list = shared
	ctx := context.Background()
	for _, s := range []*session{a, b} {
		if err := s.coordinator.Load(ctx); err != nil {
			t.Fatalf("Load: %v", err)
		}
		s.channel.ClearEmits()
	}

	if err := a.coordinator.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !a.coordinator.Tasks().Has("t1") {
		t.Fatal("delete must wait for the push event")
	}

	// The server broadcasts to the task room in both payload shapes.
	a.channel.Push(realtime.EventTaskDeleted, "t1")
	b.channel.Push(realtime.EventTaskDeleted, map[string]string{"_id": "t1"})

	for name, s := range map[string]*session{"alice": a, "bob": b} {
		if s.coordinator.Tasks().Has("t1") {
			t.Errorf("%s still holds t1", name)
		}
		if s.rooms.Subscribed("t1") {
			t.Errorf("%s still tracks room t1", name)
		}
		if got := s.channel.Payloads(realtime.EventLeaveTask); !reflect.DeepEqual(got, []string{"t1"}) {
			t.Errorf("%s leaveTask payloads = %v", name, got)
		}
	}

	// A late duplicate is a no-op.
	a.channel.Push(realtime.EventTaskDeleted, "t1")
	if got := a.channel.Payloads(realtime.EventLeaveTask); len(got) != 1 {
		t.Errorf("duplicate delete emitted leaveTask again: %v", got)
	}
}

func TestLoadSyncsRooms(t *testing.T) {
	s := newSession(t, "u1")
	ctx := context.Background()
	s.api.list = []model.Task{task("a", model.StatusTodo), task("b", model.StatusTodo), task("a", model.StatusDone)}
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.rooms.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("rooms = %v", got)
	}

	s.channel.ClearEmits()
	s.api.list = []model.Task{task("b", model.StatusTodo), task("c", model.StatusTodo)}
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.channel.Payloads(realtime.EventLeaveTask); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("leaveTask = %v", got)
	}
	if got := s.channel.Payloads(realtime.EventJoinTask); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("joinTask = %v", got)
	}
}

func TestLoadKeepsTaskCreatedDuringFetch(t *testing.T) {
	s := newSession(t, "u1")
	ctx := context.Background()
	s.api.list = []model.Task{task("t1", model.StatusTodo)}
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.channel.ClearEmits()

	s.api.create = task("t3", model.StatusTodo)
	s.api.listing = func() {
		if _, err := s.coordinator.Create(ctx, createInput("C")); err != nil {
			t.Errorf("Create: %v", err)
		}
	}
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.coordinator.Tasks().IDs(); !reflect.DeepEqual(got, []string{"t1", "t3"}) {
		t.Fatalf("IDs = %v, want [t1 t3]", got)
	}
	if !s.rooms.Subscribed("t3") {
		t.Error("room t3 should stay subscribed")
	}
	if got := s.channel.Payloads(realtime.EventLeaveTask); len(got) != 0 {
		t.Errorf("leaveTask = %v, want none", got)
	}

	moved := task("t3", model.StatusDone)
	moved.UpdatedAt = epoch.Add(time.Minute)
	s.channel.Push(realtime.EventTaskUpdated, moved)
	if held, _ := s.coordinator.Tasks().Get("t3"); held.Status != model.StatusDone {
		t.Errorf("t3 status = %q, want Done", held.Status)
	}
}

func TestLoadKeepsPushesDuringFetch(t *testing.T) {
	s := newSession(t, "u1")
	ctx := context.Background()
	s.api.list = []model.Task{task("t1", model.StatusTodo), task("t2", model.StatusTodo)}
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	moved := task("t1", model.StatusInProgress)
	moved.UpdatedAt = epoch.Add(time.Minute)
	s.api.listing = func() {
		s.channel.Push(realtime.EventTaskUpdated, moved)
		s.channel.Push(realtime.EventTaskDeleted, "t2")
	}
	if err := s.coordinator.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := s.coordinator.Tasks().IDs(); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Fatalf("IDs = %v, want [t1]", got)
	}
	if held, _ := s.coordinator.Tasks().Get("t1"); held.Status != model.StatusInProgress {
		t.Errorf("t1 status = %q, fetched copy overwrote the newer push", held.Status)
	}
	if s.rooms.Subscribed("t2") {
		t.Error("deleted t2 rejoined its room")
	}
}

func TestLoadDropsUnknownStatus(t *testing.T) {
	s := newSession(t, "u1")
	s.api.list = []model.Task{task("a", model.StatusTodo), task("x", model.Status("Blocked"))}
	if err := s.coordinator.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.coordinator.Tasks().IDs(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("IDs = %v, want [a]", got)
	}
	if got := s.rooms.IDs(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("rooms = %v, want [a]", got)
	}
}

func TestPushWithUnknownStatusIsIgnored(t *testing.T) {
	s := newSession(t, "u1")
	s.channel.Push(realtime.EventTaskAssigned, task("x", model.Status("Blocked")))

	if n := s.coordinator.Tasks().Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
	if got := s.channel.Payloads(realtime.EventJoinTask); len(got) != 0 {
		t.Errorf("joinTask = %v, want none", got)
	}
}

func TestCreateWithoutIDLeavesStateUntouched(t *testing.T) {
	s := newSession(t, "u1")
	s.api.create = model.Task{}

	_, err := s.coordinator.Create(context.Background(), createInput("A"))
	var mErr *MutationError
	if !errors.As(err, &mErr) {
		t.Fatalf("err = %v, want *MutationError", err)
	}
	if n := s.coordinator.Tasks().Len(); n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestLoadFailureKeepsCollection(t *testing.T) {
	s := newSession(t, "u1")
	s.api.list = []model.Task{task("a", model.StatusTodo)}
	ctx := context.Background()
	_ = s.coordinator.Load(ctx)

	s.api.err = errServer
	if err := s.coordinator.Load(ctx); err == nil {
		t.Fatal("expected error")
	}
	if !s.coordinator.Tasks().Has("a") {
		t.Error("failed load must keep the previous collection")
	}
}

func TestWarmFromSnapshot(t *testing.T) {
	logger := zaptest.NewLogger(t)
	transport := realtimetest.NewTransport()
	m := realtime.NewManager(transport, logger)
	rooms := realtime.NewRooms(m, logger)
	cache := &fakeCache{}
	fake := &fakeTaskAPI{list: []model.Task{task("a", model.StatusTodo)}}
	c := NewCoordinator(fake, rooms, cache, NewUpdates(), logger)
	ctx := context.Background()

	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cache.saves != 1 {
		t.Fatalf("saves = %d, want 1", cache.saves)
	}

	warm := NewCoordinator(fake, rooms, cache, NewUpdates(), logger)
	if err := warm.Warm(ctx); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if !warm.Tasks().Has("a") {
		t.Error("warm collection should hold the snapshot")
	}
}

func TestPushNotifiesUpdates(t *testing.T) {
	s := newSession(t, "u1")
	// Drain anything pending from setup.
	select {
	case <-s.updates.C():
	default:
	}

	s.channel.Push(realtime.EventTaskAssigned, task("t1", model.StatusTodo))
	testutil.RequireReceive(t, s.updates.C(), time.Second, "update signal")

	s.channel.Push(realtime.EventTaskDeleted, "ghost")
	testutil.RequireNoReceive(t, s.updates.C(), 50*time.Millisecond, "no signal for unknown delete")
}

// TestExpiredAuthIsRetriedTransparently drives a real api.Client: the
// first move gets 401, the refresh succeeds and the move is retried.
func TestExpiredAuthIsRetriedTransparently(t *testing.T) {
	var refreshed atomic.Bool
	var moves atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/refresh":
			refreshed.Store(true)
			w.Write([]byte(`{"message":"ok"}`))
		case "/api/task/t1":
			moves.Add(1)
			if !refreshed.Load() {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Unauthenticated"}`))
				return
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Write([]byte(`{"task":{"_id":"t1","status":"` + body["status"] + `"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := api.NewClient(api.Config{BaseURL: srv.URL + "/api", Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	logger := zaptest.NewLogger(t)
	m := realtime.NewManager(realtimetest.NewTransport(), logger)
	c := NewCoordinator(client, realtime.NewRooms(m, logger), nil, NewUpdates(), logger)

	if err := c.UpdateStatus(context.Background(), "t1", model.StatusDone); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := moves.Load(); got != 2 {
		t.Errorf("move requests = %d, want 2", got)
	}
}
