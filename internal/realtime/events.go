// Package realtime owns the push channel: one long-lived connection per
// signed-in identity, the handler registry that survives channel
// replacement, and the task room subscriptions scoped to what the user
// is looking at.
package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/taskboard/internal/model"
)

// Channel-local lifecycle events.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Client to server events.
const (
	EventJoinUser  = "joinUser"
	EventJoinTask  = "joinTask"
	EventLeaveTask = "leaveTask"
)

// Server to client events.
const (
	EventTaskAssigned    = "taskAssigned"
	EventTaskUpdated     = "taskUpdated"
	EventTaskDeleted     = "taskDeleted"
	EventNewNotification = "newNotification"
)

// ErrNotConnected is returned by Emit when no connected channel exists.
var ErrNotConnected = errors.New("push channel not connected")

// Frame is the wire envelope of every push message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeTask decodes a taskAssigned or taskUpdated payload. Tasks must
// carry an identity and one of the board statuses.
func DecodeTask(data json.RawMessage) (model.Task, error) {
	var t model.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return model.Task{}, fmt.Errorf("decoding task payload: %w", err)
	}
	if t.ID == "" {
		return model.Task{}, fmt.Errorf("task payload has no _id")
	}
	if !t.Status.Valid() {
		return model.Task{}, fmt.Errorf("task %s has unknown status %q", t.ID, t.Status)
	}
	return t, nil
}

// DecodeTaskID decodes a taskDeleted payload, which is either the bare
// id or an object carrying _id.
func DecodeTaskID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return "", fmt.Errorf("decoding task id: %w", err)
		}
		if id == "" {
			return "", fmt.Errorf("empty task id")
		}
		return id, nil
	}

	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("decoding task id: %w", err)
	}
	if obj.ID == "" {
		return "", fmt.Errorf("task id payload has no _id")
	}
	return obj.ID, nil
}

// DecodeNotification decodes a newNotification payload.
func DecodeNotification(data json.RawMessage) (model.NotificationItem, error) {
	var n model.NotificationItem
	if err := json.Unmarshal(data, &n); err != nil {
		return model.NotificationItem{}, fmt.Errorf("decoding notification payload: %w", err)
	}
	if n.ID == "" {
		return model.NotificationItem{}, fmt.Errorf("notification payload has no _id")
	}
	return n, nil
}
