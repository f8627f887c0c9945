package taskform

import (
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

func TestDiffOnlySetsChangedFields(t *testing.T) {
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	orig := model.Task{
		ID:          "t1",
		Title:       "Write docs",
		Description: "draft",
		Status:      model.StatusTodo,
		Priority:    model.PriorityLow,
		DueDate:     &due,
		AssignedTo:  &model.User{ID: "u1"},
	}

	t.Run("unchanged", func(t *testing.T) {
		fb := formBindings{
			title:       "Write docs",
			description: "draft",
			status:      model.StatusTodo,
			priority:    model.PriorityLow,
			assignee:    "u1",
		}
		in := diff(orig, fb, &due, true)
		if in != (model.UpdateTaskInput{}) {
			t.Errorf("diff = %+v, want empty", in)
		}
	})

	t.Run("status and assignee", func(t *testing.T) {
		fb := formBindings{
			title:       "Write docs",
			description: "draft",
			status:      model.StatusDone,
			priority:    model.PriorityLow,
			assignee:    "u2",
		}
		in := diff(orig, fb, &due, true)
		if in.Status == nil || *in.Status != model.StatusDone {
			t.Errorf("Status = %v, want Done", in.Status)
		}
		if in.AssignedTo == nil || *in.AssignedTo != "u2" {
			t.Errorf("AssignedTo = %v, want u2", in.AssignedTo)
		}
		if in.Title != nil || in.Priority != nil || in.DueDate != nil {
			t.Errorf("unexpected fields in %+v", in)
		}
	})

	t.Run("non-admin never reassigns", func(t *testing.T) {
		fb := formBindings{
			title:    "Write docs",
			status:   model.StatusTodo,
			priority: model.PriorityLow,
		}
		in := diff(orig, fb, nil, false)
		if in.AssignedTo != nil {
			t.Errorf("AssignedTo = %v, want nil", *in.AssignedTo)
		}
		if in.Description == nil || *in.Description != "" {
			t.Errorf("Description = %v, want cleared", in.Description)
		}
	})
}

func TestParseDate(t *testing.T) {
	if parseDate("") != nil || parseDate("tomorrow") != nil {
		t.Error("blank or malformed dates should parse to nil")
	}
	got := parseDate(" 2025-03-01 ")
	if got == nil || got.Day() != 1 || got.Month() != time.March {
		t.Errorf("parseDate = %v", got)
	}
	if err := validateOptionalDate("2025-13-01"); err == nil {
		t.Error("invalid month accepted")
	}
}
