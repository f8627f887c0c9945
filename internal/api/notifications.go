package api

import (
	"context"
	"fmt"

	"github.com/nhle/taskboard/internal/model"
)

// NotificationList is the response of GET /notifications.
type NotificationList struct {
	Notifications []model.NotificationItem `json:"notifications"`
	UnreadCount   int                      `json:"unreadCount"`
}

type notificationEnvelope struct {
	Message      string                 `json:"message"`
	Notification model.NotificationItem `json:"notification"`
}

// ListNotifications fetches the user's notifications. Admins may pass
// all to list every user's notifications.
func (c *Client) ListNotifications(ctx context.Context, all bool) (NotificationList, error) {
	path := "/notifications"
	if all {
		path = "/notifications/all"
	}

	var resp NotificationList
	if err := c.Get(ctx, path, &resp); err != nil {
		return NotificationList{}, fmt.Errorf("listing notifications: %w", err)
	}
	return resp, nil
}

// UnreadCount fetches the server's unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.Get(ctx, "/notifications/unread-count", &resp); err != nil {
		return 0, fmt.Errorf("getting unread count: %w", err)
	}
	return resp.UnreadCount, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (model.NotificationItem, error) {
	var resp notificationEnvelope
	if err := c.Patch(ctx, "/notifications/"+escape(id)+"/read", nil, &resp); err != nil {
		return model.NotificationItem{}, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return resp.Notification, nil
}

// MarkAllNotificationsRead marks every notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.Patch(ctx, "/notifications/mark-all-read", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if err := c.Delete(ctx, "/notifications/"+escape(id), nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}
