package sync

import "github.com/nhle/taskboard/internal/model"

// Column is one status column of the board.
type Column struct {
	Status model.Status
	Tasks  []model.Task
}

// Board is the three-column projection of the task collection.
type Board struct {
	Columns []Column
}

// NewBoard splits tasks by status, preserving their relative order.
// Tasks with an unknown status are left out.
func NewBoard(tasks []model.Task) Board {
	b := Board{Columns: make([]Column, len(model.Statuses))}
	for i, st := range model.Statuses {
		b.Columns[i].Status = st
	}
	for _, t := range tasks {
		if i := t.Status.Index(); i >= 0 {
			b.Columns[i].Tasks = append(b.Columns[i].Tasks, t)
		}
	}
	return b
}

// Column returns the tasks in the column for status.
func (b Board) Column(status model.Status) []model.Task {
	if i := status.Index(); i >= 0 && i < len(b.Columns) {
		return b.Columns[i].Tasks
	}
	return nil
}

// Find locates a task by id.
func (b Board) Find(id string) (col, row int, ok bool) {
	for c, column := range b.Columns {
		for r, t := range column.Tasks {
			if t.ID == id {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

// Total returns the number of tasks on the board.
func (b Board) Total() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}
