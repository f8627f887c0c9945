package store

import (
	"context"
	"errors"

	"github.com/nhle/taskboard/internal/model"
)

// ErrNoSession is returned when no session record is persisted.
var ErrNoSession = errors.New("no persisted session")

// Store persists the client state that survives restarts: the signed-in
// identity and a snapshot of the board.
type Store interface {
	// === Session ===

	SaveSession(ctx context.Context, s model.Session) error
	LoadSession(ctx context.Context) (model.Session, error)
	ClearSession(ctx context.Context) error

	// === Task snapshot ===

	SaveTasks(ctx context.Context, tasks []model.Task) error
	LoadTasks(ctx context.Context) ([]model.Task, error)
	ClearTasks(ctx context.Context) error

	Close() error
}
