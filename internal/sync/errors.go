package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/taskboard/internal/api"
)

// ErrInvalidStatus is returned when a move names a status outside the
// three board columns. Nothing is sent to the server.
var ErrInvalidStatus = errors.New("invalid task status")

var errNoTaskID = errors.New("server returned a task without an id")

// MutationError reports a failed user mutation. The local state is left
// as it was before the attempt.
type MutationError struct {
	Entity string
	Op     string
	ID     string
	Err    error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Notice returns the transient text shown to the user.
func (e *MutationError) Notice() string {
	reason := api.UserMessage(e.Err)
	var apiErr *api.Error
	switch {
	case errors.As(e.Err, &apiErr), api.IsSessionExpired(e.Err):
	case errors.Is(e.Err, context.DeadlineExceeded):
	default:
		// Rejected before reaching the server.
		reason = e.Err.Error()
	}
	return fmt.Sprintf("Could not %s %s: %s", e.Op, e.Entity, reason)
}

// Notice returns the user-facing text for any error returned by this
// package.
func Notice(err error) string {
	var mErr *MutationError
	if errors.As(err, &mErr) {
		return mErr.Notice()
	}
	return api.UserMessage(err)
}

func mutationError(entity, op, id string, err error) error {
	RecordMutation(entity, op, err)
	if err == nil {
		return nil
	}
	return &MutationError{Entity: entity, Op: op, ID: id, Err: err}
}
