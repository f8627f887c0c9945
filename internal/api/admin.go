package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/taskboard/internal/model"
)

// ActivityPage is one page of GET /admin/active-logs.
type ActivityPage struct {
	Logs       []model.ActivityLog `json:"logs"`
	Count      int                 `json:"count"`
	Pagination model.Pagination    `json:"pagination"`
}

// ListUsers fetches every user. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	if err := c.Get(ctx, "/admin/users", &resp); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return resp.Users, nil
}

// ListActivityLogs fetches one page of task activity logs. Admin only.
func (c *Client) ListActivityLogs(ctx context.Context, page, limit int) (ActivityPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp ActivityPage
	if err := c.Get(ctx, "/admin/active-logs?"+q.Encode(), &resp); err != nil {
		return ActivityPage{}, fmt.Errorf("listing activity logs: %w", err)
	}
	return resp, nil
}
