package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	gosync "sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/realtime/realtimetest"
)

type fakeNotificationAPI struct {
	mu        gosync.Mutex
	list      api.NotificationList
	err       error
	lastAll   bool
	listHits  int
	countHits int
}

func (f *fakeNotificationAPI) ListNotifications(_ context.Context, all bool) (api.NotificationList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAll = all
	f.listHits++
	if f.err != nil {
		return api.NotificationList{}, f.err
	}
	items := append([]model.NotificationItem(nil), f.list.Notifications...)
	return api.NotificationList{Notifications: items, UnreadCount: f.list.UnreadCount}, nil
}

func (f *fakeNotificationAPI) MarkNotificationRead(_ context.Context, id string) (model.NotificationItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.NotificationItem{ID: id, IsRead: true}, f.err
}

func (f *fakeNotificationAPI) MarkAllNotificationsRead(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeNotificationAPI) DeleteNotification(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeNotificationAPI) UnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countHits++
	if f.err != nil {
		return 0, f.err
	}
	return countUnread(f.list.Notifications), nil
}

func (f *fakeNotificationAPI) setList(items ...model.NotificationItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = api.NotificationList{Notifications: items}
}

func (f *fakeNotificationAPI) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listHits
}

func notification(id string, read bool) model.NotificationItem {
	return model.NotificationItem{
		ID:        id,
		Message:   "Task updated",
		Type:      model.NotificationTaskUpdated,
		IsRead:    read,
		CreatedAt: epoch,
	}
}

func newFeed(t *testing.T, items ...model.NotificationItem) (*Feed, *fakeNotificationAPI) {
	t.Helper()
	fake := &fakeNotificationAPI{list: api.NotificationList{Notifications: items}}
	f := NewFeed(fake, NewUpdates(), zaptest.NewLogger(t))
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f, fake
}

func assertConsistent(t *testing.T, f *Feed) {
	t.Helper()
	if want := countUnread(f.Items()); f.Unread() != want {
		t.Fatalf("unread = %d, items say %d", f.Unread(), want)
	}
}

func TestFeedLoadRecomputesUnread(t *testing.T) {
	fake := &fakeNotificationAPI{list: api.NotificationList{
		Notifications: []model.NotificationItem{notification("a", false), notification("b", true)},
		UnreadCount:   7,
	}}
	f := NewFeed(fake, NewUpdates(), zaptest.NewLogger(t))
	f.SetAdmin(true)

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Unread() != 1 {
		t.Errorf("Unread = %d, want 1", f.Unread())
	}
	if !fake.lastAll {
		t.Error("admin feed should list every notification")
	}
}

func TestFeedPushPrepends(t *testing.T) {
	f, _ := newFeed(t, notification("a", false))

	f.Push(notification("b", false))
	f.Push(notification("c", true))

	items := f.Items()
	if items[0].ID != "c" || items[1].ID != "b" || items[2].ID != "a" {
		t.Errorf("order = %v %v %v", items[0].ID, items[1].ID, items[2].ID)
	}
	if f.Unread() != 2 {
		t.Errorf("Unread = %d, want 2", f.Unread())
	}
}

func TestFeedMarkReadFloorsAtZero(t *testing.T) {
	f, _ := newFeed(t, notification("a", false), notification("b", true))
	ctx := context.Background()

	if err := f.MarkRead(ctx, "a"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := f.MarkRead(ctx, "a"); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if err := f.MarkRead(ctx, "b"); err != nil {
		t.Fatalf("MarkRead read item: %v", err)
	}
	if f.Unread() != 0 {
		t.Errorf("Unread = %d, want 0", f.Unread())
	}
	assertConsistent(t, f)
}

func TestFeedFailuresLeaveStateUntouched(t *testing.T) {
	f, fake := newFeed(t, notification("a", false), notification("b", false))
	fake.err = &api.Error{Kind: api.KindNetwork, Err: errors.New("offline")}
	ctx := context.Background()

	for name, err := range map[string]error{
		"mark read":     f.MarkRead(ctx, "a"),
		"mark all read": f.MarkAllRead(ctx),
		"delete":        f.Delete(ctx, "a"),
		"load":          f.Load(ctx),
	} {
		if err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if f.Unread() != 2 || len(f.Items()) != 2 {
		t.Errorf("state changed: unread=%d items=%d", f.Unread(), len(f.Items()))
	}
}

func TestFeedUnreadConsistencyUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		f, fake := newFeed(t, notification("seed-1", false), notification("seed-2", true))
		next := 0
		for step := 0; step < 50; step++ {
			items := f.Items()
			pick := func() string {
				if len(items) == 0 || rng.Intn(5) == 0 {
					return "missing"
				}
				return items[rng.Intn(len(items))].ID
			}
			fake.err = nil
			if rng.Intn(6) == 0 {
				fake.err = errServer
			}

			switch rng.Intn(5) {
			case 0:
				next++
				f.Push(notification(fmt.Sprintf("n%d", next), rng.Intn(3) == 0))
			case 1:
				_ = f.MarkRead(ctx, pick())
			case 2:
				_ = f.Delete(ctx, pick())
			case 3:
				_ = f.MarkAllRead(ctx)
			case 4:
				fake.mu.Lock()
				fake.list.Notifications = f.Items()
				fake.list.UnreadCount = rng.Intn(10)
				fake.mu.Unlock()
				_ = f.Load(ctx)
			}
			assertConsistent(t, f)
			if f.Unread() < 0 {
				t.Fatalf("negative unread")
			}
		}
	}
}

func TestFeedAttach(t *testing.T) {
	f, _ := newFeed(t)
	transport := realtimetest.NewTransport()
	m := realtime.NewManager(transport, zaptest.NewLogger(t))
	detach := f.Attach(m)
	_ = m.Connect(context.Background(), "u1")
	ch := transport.Last()
	ch.SimulateConnect()

	ch.Push(realtime.EventNewNotification, notification("n1", false))
	ch.Push(realtime.EventNewNotification, map[string]string{"message": "no id"})
	if f.Unread() != 1 || len(f.Items()) != 1 {
		t.Errorf("unread=%d items=%d", f.Unread(), len(f.Items()))
	}

	detach()
	ch.Push(realtime.EventNewNotification, notification("n2", false))
	if len(f.Items()) != 1 {
		t.Error("events after detach must be ignored")
	}
}

func TestBadge(t *testing.T) {
	tests := map[int]string{0: "", -1: "", 1: "1", 9: "9", 10: "9+", 42: "9+"}
	for n, want := range tests {
		if got := Badge(n); got != want {
			t.Errorf("Badge(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{time.Minute, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{2 * time.Hour, "2h ago"},
		{23*time.Hour + 59*time.Minute, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
		{7 * 24 * time.Hour, "Mar 3, 2025"},
	}
	for _, tt := range tests {
		if got := FormatRelative(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("FormatRelative(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestFeedCheckReloadsOnlyWhenCountChanges(t *testing.T) {
	ctx := context.Background()
	f, fake := newFeed(t, notification("a", false))

	reloaded, err := f.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if reloaded || fake.hits() != 1 {
		t.Errorf("unchanged count: reloaded=%v hits=%d", reloaded, fake.hits())
	}

	fake.setList(notification("b", false), notification("a", false))
	reloaded, err = f.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !reloaded || fake.hits() != 2 {
		t.Errorf("changed count: reloaded=%v hits=%d", reloaded, fake.hits())
	}
	if f.Unread() != 2 || len(f.Items()) != 2 {
		t.Errorf("unread = %d, items = %d", f.Unread(), len(f.Items()))
	}
}

func TestFeedCheckLoadsWhenNeverLoaded(t *testing.T) {
	fake := &fakeNotificationAPI{list: api.NotificationList{
		Notifications: []model.NotificationItem{notification("a", false)},
	}}
	f := NewFeed(fake, NewUpdates(), zaptest.NewLogger(t))

	reloaded, err := f.Check(context.Background())
	if err != nil || !reloaded {
		t.Fatalf("Check = %v, %v", reloaded, err)
	}
	if fake.countHits != 0 || fake.hits() != 1 {
		t.Errorf("countHits=%d listHits=%d", fake.countHits, fake.hits())
	}

	f.Clear()
	if reloaded, _ := f.Check(context.Background()); !reloaded {
		t.Error("Check after Clear should reload")
	}
}
