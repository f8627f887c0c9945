package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sink receives every event a channel delivers, including the local
// connect and disconnect events.
type Sink func(event string, data json.RawMessage)

// Channel is one live push connection.
type Channel interface {
	Emit(event string, payload any) error
	Connected() bool
	Close() error
}

// Transport opens channels. Open must return without waiting for the
// connection and must call sink only from its own goroutines.
type Transport interface {
	Open(ctx context.Context, identity string, sink Sink) (Channel, error)
}

// Manager owns the single push channel of the process. Handlers
// registered with On live on the manager and keep receiving events
// after the channel is replaced.
type Manager struct {
	transport Transport
	handlers  *Handlers
	state     *State
	logger    *zap.Logger

	mu       sync.Mutex
	active   Channel
	identity string

	// generation invalidates events from closed channels. dispatchMu is
	// held for reading while an event is checked and dispatched, so a
	// Disconnect returns only after in-flight handlers finish.
	generation atomic.Uint64
	dispatchMu sync.RWMutex
}

// NewManager creates a manager that opens channels through transport.
func NewManager(transport Transport, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		transport: transport,
		handlers:  NewHandlers(),
		state:     &State{},
		logger:    logger.Named("realtime"),
	}
}

// Connect opens a channel for identity unless one is already active.
// An empty identity is a no-op.
func (m *Manager) Connect(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil
	}

	gen := m.generation.Add(1)
	ch, err := m.transport.Open(ctx, identity, func(event string, data json.RawMessage) {
		m.handle(gen, identity, event, data)
	})
	if err != nil {
		return fmt.Errorf("opening push channel: %w", err)
	}

	m.active = ch
	m.identity = identity
	m.logger.Info("push channel opened", zap.String("identity", identity))
	return nil
}

// Disconnect closes the active channel and resets the connection state.
// No handler runs for the closed channel once it returns. Handlers must
// not call it.
func (m *Manager) Disconnect() error {
	m.dispatchMu.Lock()
	m.mu.Lock()
	ch := m.active
	m.active = nil
	m.identity = ""
	m.generation.Add(1)
	m.mu.Unlock()
	m.dispatchMu.Unlock()

	m.state.Reset()
	if ch == nil {
		return nil
	}
	m.logger.Info("push channel closed")
	if err := ch.Close(); err != nil {
		return fmt.Errorf("closing push channel: %w", err)
	}
	return nil
}

// Active returns the live channel, or nil.
func (m *Manager) Active() Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Identity returns the identity of the active channel.
func (m *Manager) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// State returns the shared connection flag.
func (m *Manager) State() *State { return m.state }

// Connected reports whether the active channel is connected.
func (m *Manager) Connected() bool { return m.state.Connected() }

// On registers fn for event.
func (m *Manager) On(event string, fn Handler) Token { return m.handlers.On(event, fn) }

// Off releases a registration.
func (m *Manager) Off(tok Token) bool { return m.handlers.Off(tok) }

// Emit sends event on the active channel.
func (m *Manager) Emit(event string, payload any) error {
	ch := m.Active()
	if ch == nil || !ch.Connected() {
		recordEmit(event, ErrNotConnected)
		return ErrNotConnected
	}
	err := ch.Emit(event, payload)
	recordEmit(event, err)
	if err != nil {
		return fmt.Errorf("emitting %s: %w", event, err)
	}
	return nil
}

func (m *Manager) handle(gen uint64, identity, event string, data json.RawMessage) {
	m.dispatchMu.RLock()
	defer m.dispatchMu.RUnlock()
	if m.generation.Load() != gen {
		return
	}
	eventsReceived.WithLabelValues(event).Inc()

	switch event {
	case EventConnect:
		m.state.Set(true)
		if err := m.Emit(EventJoinUser, identity); err != nil {
			m.logger.Warn("joining user room", zap.Error(err))
		}
		m.logger.Debug("push channel connected")
	case EventDisconnect:
		m.state.Set(false)
		m.logger.Debug("push channel disconnected")
	}

	m.handlers.Dispatch(event, data)
}
