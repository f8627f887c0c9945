package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
)

// NotificationAPI is the REST surface the feed needs.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, all bool) (api.NotificationList, error)
	MarkNotificationRead(ctx context.Context, id string) (model.NotificationItem, error)
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	UnreadCount(ctx context.Context) (int, error)
}

// Feed is the notification list and its unread counter. After every
// operation the counter equals the number of unread items held.
type Feed struct {
	api     NotificationAPI
	updates *Updates
	logger  *zap.Logger

	mu     gosync.RWMutex
	items  []model.NotificationItem
	unread int
	all    bool
	loaded bool
}

// NewFeed returns an empty feed.
func NewFeed(notificationAPI NotificationAPI, updates *Updates, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		api:     notificationAPI,
		updates: updates,
		logger:  logger.Named("feed"),
	}
}

// SetAdmin switches Load to every user's notifications.
func (f *Feed) SetAdmin(all bool) {
	f.mu.Lock()
	f.all = all
	f.mu.Unlock()
}

// Attach prepends every newNotification event from src.
func (f *Feed) Attach(src realtime.EventSource) (detach func()) {
	tok := src.On(realtime.EventNewNotification, func(data json.RawMessage) {
		n, err := realtime.DecodeNotification(data)
		if err != nil {
			f.logger.Warn("dropping newNotification", zap.Error(err))
			return
		}
		f.Push(n)
	})
	return func() { src.Off(tok) }
}

// Load replaces the list with the server's. The counter is recomputed
// from the items; a disagreeing server counter is logged.
func (f *Feed) Load(ctx context.Context) error {
	f.mu.RLock()
	all := f.all
	f.mu.RUnlock()

	resp, err := f.api.ListNotifications(ctx, all)
	if err != nil {
		return fmt.Errorf("loading notifications: %w", err)
	}

	unread := countUnread(resp.Notifications)
	if unread != resp.UnreadCount {
		f.logger.Debug("server unread count disagrees with items",
			zap.Int("server", resp.UnreadCount),
			zap.Int("items", unread),
		)
	}

	f.mu.Lock()
	f.items = resp.Notifications
	f.unread = unread
	f.loaded = true
	f.mu.Unlock()

	f.changed(unread)
	return nil
}

// Check asks the server for its unread counter and reloads the list only
// when it differs from the local one. A feed that never loaded, or one
// showing every user's notifications, always reloads.
func (f *Feed) Check(ctx context.Context) (reloaded bool, err error) {
	f.mu.RLock()
	all, loaded, unread := f.all, f.loaded, f.unread
	f.mu.RUnlock()

	if all || !loaded {
		return true, f.Load(ctx)
	}
	n, err := f.api.UnreadCount(ctx)
	if err != nil {
		return false, fmt.Errorf("checking unread count: %w", err)
	}
	if n == unread {
		return false, nil
	}
	f.logger.Debug("unread count changed", zap.Int("local", unread), zap.Int("server", n))
	return true, f.Load(ctx)
}

// Push prepends n. Later fetches may return it again; the list is
// replaced wholesale then.
func (f *Feed) Push(n model.NotificationItem) {
	f.mu.Lock()
	f.items = append([]model.NotificationItem{n}, f.items...)
	if !n.IsRead {
		f.unread++
	}
	unread := f.unread
	f.mu.Unlock()

	f.changed(unread)
}

// MarkRead marks one notification read on the server, then locally.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	if _, err := f.api.MarkNotificationRead(ctx, id); err != nil {
		return mutationError("notification", "mark read", id, err)
	}
	RecordMutation("notification", "mark read", nil)

	f.mu.Lock()
	for i := range f.items {
		if f.items[i].ID == id && !f.items[i].IsRead {
			f.items[i].IsRead = true
			f.unread = max(f.unread-1, 0)
		}
	}
	unread := f.unread
	f.mu.Unlock()

	f.changed(unread)
	return nil
}

// MarkAllRead marks everything read on the server, then locally.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	if err := f.api.MarkAllNotificationsRead(ctx); err != nil {
		return mutationError("notification", "mark all read", "", err)
	}
	RecordMutation("notification", "mark all read", nil)

	f.mu.Lock()
	for i := range f.items {
		f.items[i].IsRead = true
	}
	f.unread = 0
	f.mu.Unlock()

	f.changed(0)
	return nil
}

// Delete removes one notification on the server, then locally.
func (f *Feed) Delete(ctx context.Context, id string) error {
	if err := f.api.DeleteNotification(ctx, id); err != nil {
		return mutationError("notification", "delete", id, err)
	}
	RecordMutation("notification", "delete", nil)

	f.mu.Lock()
	kept := f.items[:0]
	for _, n := range f.items {
		if n.ID == id {
			if !n.IsRead {
				f.unread = max(f.unread-1, 0)
			}
			continue
		}
		kept = append(kept, n)
	}
	f.items = kept
	unread := f.unread
	f.mu.Unlock()

	f.changed(unread)
	return nil
}

// Items returns a copy of the list, newest first.
func (f *Feed) Items() []model.NotificationItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.NotificationItem(nil), f.items...)
}

// Unread returns the unread counter.
func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// Badge renders the counter: empty for zero, "9+" above nine.
func (f *Feed) Badge() string {
	return Badge(f.Unread())
}

// Badge renders an unread counter.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 9:
		return "9+"
	default:
		return strconv.Itoa(unread)
	}
}

// Clear forgets every notification.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.items = nil
	f.unread = 0
	f.all = false
	f.loaded = false
	f.mu.Unlock()
	f.changed(0)
}

func (f *Feed) changed(unread int) {
	unreadGauge.Set(float64(unread))
	f.updates.Notify()
}

func countUnread(items []model.NotificationItem) int {
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n
}
