package api

import (
	"context"
	"fmt"

	"github.com/nhle/taskboard/internal/model"
)

type taskEnvelope struct {
	Message string     `json:"message"`
	Task    model.Task `json:"task"`
}

type tasksEnvelope struct {
	Tasks []model.Task `json:"tasks"`
}

// ListTasks fetches every task visible to the signed-in user.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var resp tasksEnvelope
	if err := c.Get(ctx, "/task", &resp); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return resp.Tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (model.Task, error) {
	var resp taskEnvelope
	if err := c.Get(ctx, "/task/"+escape(id), &resp); err != nil {
		return model.Task{}, fmt.Errorf("getting task %s: %w", id, err)
	}
	if resp.Task.ID == "" {
		return model.Task{}, fmt.Errorf("getting task %s: %w", id, errMissingTask)
	}
	return resp.Task, nil
}

// CreateTask creates a task and returns the server's copy.
func (c *Client) CreateTask(ctx context.Context, in model.CreateTaskInput) (model.Task, error) {
	var resp taskEnvelope
	if err := c.Post(ctx, "/task", in, &resp); err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	if resp.Task.ID == "" {
		return model.Task{}, fmt.Errorf("creating task: %w", errMissingTask)
	}
	return resp.Task, nil
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(
	ctx context.Context,
	id string,
	in model.UpdateTaskInput,
) (model.Task, error) {
	var resp taskEnvelope
	if err := c.Put(ctx, "/task/"+escape(id), in, &resp); err != nil {
		return model.Task{}, fmt.Errorf("updating task %s: %w", id, err)
	}
	return resp.Task, nil
}

// UpdateTaskStatus moves a task to another column.
func (c *Client) UpdateTaskStatus(
	ctx context.Context,
	id string,
	status model.Status,
) (model.Task, error) {
	body := struct {
		Status model.Status `json:"status"`
	}{Status: status}

	var resp taskEnvelope
	if err := c.Put(ctx, "/task/"+escape(id), body, &resp); err != nil {
		return model.Task{}, fmt.Errorf("moving task %s to %s: %w", id, status, err)
	}
	return resp.Task, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.Delete(ctx, "/task/"+escape(id), nil); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}
