package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

// TaskAPI is the REST surface the coordinator needs.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, in model.CreateTaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, id string, in model.UpdateTaskInput) (model.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status model.Status) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// RoomTracker scopes push delivery to the tasks the client holds.
type RoomTracker interface {
	Subscribe(id string)
	Unsubscribe(id string) bool
	Sync(visible []string) (joined, left []string)
}

// TaskCache persists a snapshot of the board between runs.
type TaskCache interface {
	SaveTasks(ctx context.Context, tasks []model.Task) error
	LoadTasks(ctx context.Context) ([]model.Task, error)
}

// Coordinator runs task mutations against the server and owns the local
// task collection they converge on.
//
// Create is the only mutation that patches local state on success, and
// only when the push event has not already inserted the task. Update and
// delete results arrive through taskUpdated and taskDeleted.
type Coordinator struct {
	api     TaskAPI
	rooms   RoomTracker
	cache   TaskCache
	updates *Updates
	logger  *zap.Logger

	tasks      *Collection[model.Task]
	reconciler *Reconciler[model.Task]
}

// NewCoordinator wires a task collection to rooms and updates. cache may
// be nil.
func NewCoordinator(
	taskAPI TaskAPI,
	rooms RoomTracker,
	cache TaskCache,
	updates *Updates,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	tasks := NewCollection[model.Task]()
	r := NewReconciler(tasks, "task", logger)
	r.OnInsert(rooms.Subscribe)
	r.OnRemove(func(id string) { rooms.Unsubscribe(id) })
	r.Observe(func(_ string, outcome Outcome) {
		if outcome == Applied {
			updates.Notify()
		}
	})

	return &Coordinator{
		api:        taskAPI,
		rooms:      rooms,
		cache:      cache,
		updates:    updates,
		logger:     logger.Named("tasks"),
		tasks:      tasks,
		reconciler: r,
	}
}

// Attach feeds the task push events of src into the collection.
func (c *Coordinator) Attach(src realtime.EventSource) (detach func()) {
	return AttachTasks(src, c.reconciler, c.logger)
}

// Tasks returns the local task collection.
func (c *Coordinator) Tasks() *Collection[model.Task] { return c.tasks }

// Reconciler returns the reconciler behind the collection.
func (c *Coordinator) Reconciler() *Reconciler[model.Task] { return c.reconciler }

// Board projects the collection into status columns.
func (c *Coordinator) Board() Board { return NewBoard(c.tasks.Items()) }

// Warm fills an empty collection from the snapshot cache so the board
// can render before the first fetch.
func (c *Coordinator) Warm(ctx context.Context) error {
	if c.cache == nil || c.tasks.Len() > 0 {
		return nil
	}
	tasks, err := c.cache.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("loading task snapshot: %w", err)
	}
	c.tasks.Reset(tasks)
	c.updates.Notify()
	return nil
}

// Load fetches every task, merges the result with changes made while the
// fetch was in flight and reconciles room membership with the merged
// ids. Tasks with an unknown status are dropped.
func (c *Coordinator) Load(ctx context.Context) error {
	mark := c.tasks.Mark()
	fetched, err := c.api.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(fetched))
	for _, t := range fetched {
		if !t.Status.Valid() {
			c.logger.Warn("dropping task with unknown status",
				zap.String("id", t.ID),
				zap.String("status", string(t.Status)),
			)
			continue
		}
		tasks = append(tasks, t)
	}

	if dropped := c.tasks.Merge(tasks, mark); dropped > 0 {
		c.logger.Warn("server returned duplicate tasks", zap.Int("dropped", dropped))
	}
	joined, left := c.rooms.Sync(c.tasks.IDs())
	c.logger.Debug("tasks loaded",
		zap.Int("count", c.tasks.Len()),
		zap.Int("joined", len(joined)),
		zap.Int("left", len(left)),
	)
	c.updates.Notify()

	if err := c.Snapshot(ctx); err != nil {
		c.logger.Warn("saving task snapshot", zap.Error(err))
	}
	return nil
}

// Snapshot writes the current collection to the cache.
func (c *Coordinator) Snapshot(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.SaveTasks(ctx, c.tasks.Items())
}

// Create creates a task. On success the server's copy is inserted unless
// a taskAssigned event already delivered it.
func (c *Coordinator) Create(ctx context.Context, in model.CreateTaskInput) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, mutationError("task", "create", "", err)
	}

	task, err := c.api.CreateTask(ctx, in)
	if err != nil {
		return model.Task{}, mutationError("task", "create", "", err)
	}
	if task.ID == "" {
		return model.Task{}, mutationError("task", "create", "", errNoTaskID)
	}
	RecordMutation("task", "create", nil)

	if c.reconciler.Created(task) == Duplicate {
		c.logger.Debug("created task already delivered by push", zap.String("id", task.ID))
	}
	return task, nil
}

// Update sends a partial update. The collection changes when the
// taskUpdated event arrives.
func (c *Coordinator) Update(ctx context.Context, id string, in model.UpdateTaskInput) error {
	if in.Status != nil && !in.Status.Valid() {
		return mutationError("task", "update", id, ErrInvalidStatus)
	}
	_, err := c.api.UpdateTask(ctx, id, in)
	return mutationError("task", "update", id, err)
}

// UpdateStatus moves a task to another column. Invalid statuses are
// rejected without a request.
func (c *Coordinator) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return mutationError("task", "move", id, ErrInvalidStatus)
	}
	_, err := c.api.UpdateTaskStatus(ctx, id, status)
	return mutationError("task", "move", id, err)
}

// Delete deletes a task. The collection changes when the taskDeleted
// event arrives.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	return mutationError("task", "delete", id, c.api.DeleteTask(ctx, id))
}

// Clear empties the collection without touching rooms.
func (c *Coordinator) Clear() {
	c.tasks.Reset(nil)
	c.updates.Notify()
}
