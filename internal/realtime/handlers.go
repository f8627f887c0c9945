package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Handler receives the raw payload of one event.
type Handler func(data json.RawMessage)

// Token identifies one handler registration. Pass it to Off to release
// the registration.
type Token struct {
	id    uuid.UUID
	event string
}

// Event returns the event the token is registered for.
func (t Token) Event() string { return t.event }

// EventSource is anything handlers can be registered on.
type EventSource interface {
	On(event string, fn Handler) Token
	Off(tok Token) bool
}

type registration struct {
	id uuid.UUID
	fn Handler
}

// Handlers is a goroutine-safe registry of event handlers. Handlers run
// outside the registry lock, in registration order.
type Handlers struct {
	mu      sync.RWMutex
	byEvent map[string][]registration
}

// NewHandlers returns an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{byEvent: make(map[string][]registration)}
}

// On registers fn for event.
func (h *Handlers) On(event string, fn Handler) Token {
	tok := Token{id: uuid.New(), event: event}
	h.mu.Lock()
	h.byEvent[event] = append(h.byEvent[event], registration{id: tok.id, fn: fn})
	h.mu.Unlock()
	return tok
}

// Off removes the registration identified by tok. It reports whether a
// registration was removed.
func (h *Handlers) Off(tok Token) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	regs := h.byEvent[tok.event]
	for i, r := range regs {
		if r.id != tok.id {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(h.byEvent, tok.event)
		} else {
			h.byEvent[tok.event] = next
		}
		return true
	}
	return false
}

// Dispatch calls every handler registered for event and returns how many
// ran.
func (h *Handlers) Dispatch(event string, data json.RawMessage) int {
	h.mu.RLock()
	regs := h.byEvent[event]
	h.mu.RUnlock()

	for _, r := range regs {
		r.fn(data)
	}
	return len(regs)
}

// Count returns the number of handlers registered for event.
func (h *Handlers) Count(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byEvent[event])
}
