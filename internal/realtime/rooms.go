package realtime

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Emitter sends client events on the push channel.
type Emitter interface {
	Emit(event string, payload any) error
	Connected() bool
}

// Rooms tracks which task rooms the client wants to be in. Membership is
// recorded even while disconnected and replayed on every connect.
type Rooms struct {
	emitter Emitter
	logger  *zap.Logger

	mu  sync.Mutex
	ids map[string]struct{}
}

// NewRooms creates a tracker emitting through e.
func NewRooms(e Emitter, logger *zap.Logger) *Rooms {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rooms{
		emitter: e,
		logger:  logger.Named("rooms"),
		ids:     make(map[string]struct{}),
	}
}

// Attach replays every tracked room whenever src reports a connect. The
// returned func detaches.
func (r *Rooms) Attach(src EventSource) (detach func()) {
	tok := src.On(EventConnect, func(json.RawMessage) { r.Rejoin() })
	return func() { src.Off(tok) }
}

// Subscribe tracks id and joins its room. Repeated calls re-emit the
// join; the server-side room is a set.
func (r *Rooms) Subscribe(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	r.ids[id] = struct{}{}
	r.mu.Unlock()

	r.emit(EventJoinTask, id)
}

// Unsubscribe leaves the room for id if it is tracked and reports
// whether it was.
func (r *Rooms) Unsubscribe(id string) bool {
	r.mu.Lock()
	_, ok := r.ids[id]
	delete(r.ids, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.emit(EventLeaveTask, id)
	return true
}

// Sync makes the tracked set equal to visible, emitting joins and leaves
// only for the symmetric difference. Both returned slices are sorted.
func (r *Rooms) Sync(visible []string) (joined, left []string) {
	want := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		if id != "" {
			want[id] = struct{}{}
		}
	}

	r.mu.Lock()
	for id := range want {
		if _, ok := r.ids[id]; !ok {
			joined = append(joined, id)
		}
	}
	for id := range r.ids {
		if _, ok := want[id]; !ok {
			left = append(left, id)
		}
	}
	r.ids = want
	r.mu.Unlock()

	sort.Strings(joined)
	sort.Strings(left)
	for _, id := range left {
		r.emit(EventLeaveTask, id)
	}
	for _, id := range joined {
		r.emit(EventJoinTask, id)
	}
	return joined, left
}

// Rejoin emits joinTask for every tracked room.
func (r *Rooms) Rejoin() {
	ids := r.IDs()
	for _, id := range ids {
		r.emit(EventJoinTask, id)
	}
	if len(ids) > 0 {
		r.logger.Debug("rejoined task rooms", zap.Int("count", len(ids)))
	}
}

// Reset forgets every room without emitting.
func (r *Rooms) Reset() {
	r.mu.Lock()
	r.ids = make(map[string]struct{})
	r.mu.Unlock()
}

// IDs returns the tracked ids in sorted order.
func (r *Rooms) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Subscribed reports whether id is tracked.
func (r *Rooms) Subscribed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of tracked rooms.
func (r *Rooms) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Rooms) emit(event, id string) {
	if !r.emitter.Connected() {
		return
	}
	if err := r.emitter.Emit(event, id); err != nil {
		r.logger.Debug("room emit failed",
			zap.String("event", event),
			zap.String("task", id),
			zap.Error(err),
		)
	}
}
