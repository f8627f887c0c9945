package model

import "time"

// NotificationType tags what a notification is about.
type NotificationType string

// Notification types sent by the server.
const (
	NotificationTaskAssigned NotificationType = "task_assigned"
	NotificationTaskUpdated  NotificationType = "task_updated"
)

// NotificationTask is the task summary embedded in a notification.
type NotificationTask struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// NotificationItem is a personal notification for the signed-in user.
type NotificationItem struct {
	ID      string           `json:"_id"`
	UserID  string           `json:"userId"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`

	// Task and Project are optional; the referenced documents may have
	// been deleted since.
	Task    *NotificationTask `json:"taskId,omitempty"`
	Project *ProjectRef       `json:"projectId,omitempty"`

	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityID returns the notification identity.
func (n NotificationItem) EntityID() string { return n.ID }
