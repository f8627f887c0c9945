package activity

import (
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

func TestDescribeChanges(t *testing.T) {
	old := "Todo"
	got := DescribeChanges([]model.Change{
		{Field: "status", OldValue: &old, NewValue: "Done"},
		{Field: "assignedTo", NewValue: "ana"},
	})
	want := "status: Todo → Done; assignedTo: none → ana"
	if got != want {
		t.Errorf("DescribeChanges = %q, want %q", got, want)
	}
}

func TestRowsLabelDeletedTasks(t *testing.T) {
	rows := Rows([]model.ActivityLog{{
		Task:      model.ActivityTask{ID: "t1"},
		UpdatedBy: model.User{Name: "ana"},
		UpdatedAt: time.Date(2025, 1, 2, 15, 4, 0, 0, time.Local),
	}})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][1] != "(deleted task)" || rows[0][2] != "ana" {
		t.Errorf("row = %v", rows[0])
	}
}
