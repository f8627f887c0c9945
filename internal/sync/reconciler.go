package sync

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

// Outcome is the result of merging one event into a collection.
type Outcome int

const (
	// Applied means the collection changed.
	Applied Outcome = iota
	// Duplicate means a create arrived for an identity already held.
	Duplicate
	// Unknown means an update or delete named an identity not held.
	Unknown
	// Stale means an update was older than the held entity.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Unknown:
		return "unknown"
	case Stale:
		return "stale"
	default:
		return "invalid"
	}
}

// Reconciler merges create, update and delete events into a collection
// without duplicating or resurrecting entities.
type Reconciler[T Versioned] struct {
	items  *Collection[T]
	kind   string
	logger *zap.Logger

	onInsert func(id string)
	onRemove func(id string)
	observer func(op string, outcome Outcome)
}

// NewReconciler returns a reconciler for items. kind labels metrics and
// logs ("task").
func NewReconciler[T Versioned](items *Collection[T], kind string, logger *zap.Logger) *Reconciler[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler[T]{
		items:  items,
		kind:   kind,
		logger: logger.Named("reconciler").With(zap.String("kind", kind)),
	}
}

// OnInsert sets the hook run after an entity is inserted.
func (r *Reconciler[T]) OnInsert(fn func(id string)) { r.onInsert = fn }

// OnRemove sets the hook run after an entity is removed.
func (r *Reconciler[T]) OnRemove(fn func(id string)) { r.onRemove = fn }

// Observe sets a callback that sees every outcome.
func (r *Reconciler[T]) Observe(fn func(op string, outcome Outcome)) { r.observer = fn }

// Created inserts x unless its identity is already held.
func (r *Reconciler[T]) Created(x T) Outcome {
	outcome := Duplicate
	if r.items.Insert(x) {
		outcome = Applied
		if r.onInsert != nil {
			r.onInsert(x.EntityID())
		}
	}
	r.record("create", x.EntityID(), outcome)
	return outcome
}

// Updated replaces the held entity in place. Events for identities not
// held are dropped, and so are events older than the held version. An
// event without a version is always applied.
func (r *Reconciler[T]) Updated(x T) Outcome {
	replaced, found := r.items.Replace(x, func(held T) bool {
		v := x.Version()
		return v.IsZero() || !held.Version().After(v)
	})

	outcome := Applied
	switch {
	case !found:
		outcome = Unknown
	case !replaced:
		outcome = Stale
	}
	r.record("update", x.EntityID(), outcome)
	return outcome
}

// Deleted removes the entity with id. Deleting an absent id is a no-op.
func (r *Reconciler[T]) Deleted(id string) Outcome {
	outcome := Unknown
	if _, ok := r.items.Remove(id); ok {
		outcome = Applied
		if r.onRemove != nil {
			r.onRemove(id)
		}
	}
	r.record("delete", id, outcome)
	return outcome
}

func (r *Reconciler[T]) record(op, id string, outcome Outcome) {
	reconcileOutcomes.WithLabelValues(r.kind, op, outcome.String()).Inc()
	if outcome != Applied {
		r.logger.Debug("event not applied",
			zap.String("op", op),
			zap.String("id", id),
			zap.Stringer("outcome", outcome),
		)
	}
	if r.observer != nil {
		r.observer(op, outcome)
	}
}

// AttachTasks feeds the task push events of src into r. The returned
// func releases every registration.
func AttachTasks(src realtime.EventSource, r *Reconciler[model.Task], logger *zap.Logger) (detach func()) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens := []realtime.Token{
		src.On(realtime.EventTaskAssigned, func(data json.RawMessage) {
			task, err := realtime.DecodeTask(data)
			if err != nil {
				logger.Warn("dropping taskAssigned", zap.Error(err))
				return
			}
			r.Created(task)
		}),
		src.On(realtime.EventTaskUpdated, func(data json.RawMessage) {
			task, err := realtime.DecodeTask(data)
			if err != nil {
				logger.Warn("dropping taskUpdated", zap.Error(err))
				return
			}
			r.Updated(task)
		}),
		src.On(realtime.EventTaskDeleted, func(data json.RawMessage) {
			id, err := realtime.DecodeTaskID(data)
			if err != nil {
				logger.Warn("dropping taskDeleted", zap.Error(err))
				return
			}
			r.Deleted(id)
		}),
	}

	return func() {
		for _, tok := range tokens {
			src.Off(tok)
		}
	}
}
