// Package realtimetest provides an in-memory Transport and Channel for
// tests of code built on realtime.Manager.
package realtimetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nhle/taskboard/internal/realtime"
)

// Emit is one recorded client-to-server event.
type Emit struct {
	Event   string
	Payload any
}

// Transport records every channel it opens. Channels start disconnected;
// call Channel.SimulateConnect to fire the connect event.
type Transport struct {
	mu       sync.Mutex
	channels []*Channel

	// OpenErr, when set, is returned by Open.
	OpenErr error
}

// NewTransport returns an empty fake transport.
func NewTransport() *Transport { return &Transport{} }

// Open implements realtime.Transport.
func (t *Transport) Open(_ context.Context, identity string, sink realtime.Sink) (realtime.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.OpenErr != nil {
		return nil, t.OpenErr
	}
	ch := &Channel{Identity: identity, sink: sink}
	t.channels = append(t.channels, ch)
	return ch, nil
}

// Opens returns the number of channels opened so far.
func (t *Transport) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels)
}

// Last returns the most recently opened channel, or nil.
func (t *Transport) Last() *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.channels) == 0 {
		return nil
	}
	return t.channels[len(t.channels)-1]
}

// Channel is a fake push connection.
type Channel struct {
	Identity string

	sink realtime.Sink

	mu        sync.Mutex
	connected bool
	closed    bool
	emits     []Emit
}

// Emit implements realtime.Channel.
func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return realtime.ErrNotConnected
	}
	c.emits = append(c.emits, Emit{Event: event, Payload: payload})
	return nil
}

// Connected implements realtime.Channel.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close implements realtime.Channel.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SimulateConnect marks the channel connected and delivers connect.
func (c *Channel) SimulateConnect() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.sink(realtime.EventConnect, nil)
}

// SimulateDisconnect marks the channel disconnected and delivers
// disconnect.
func (c *Channel) SimulateDisconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.sink(realtime.EventDisconnect, nil)
}

// Push delivers a server event with payload marshaled to JSON.
func (c *Channel) Push(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("realtimetest: marshaling %s payload: %v", event, err))
	}
	c.sink(event, data)
}

// Emits returns a copy of every recorded emit.
func (c *Channel) Emits() []Emit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Emit(nil), c.emits...)
}

// Payloads returns the string payloads emitted for event, in order.
func (c *Channel) Payloads(event string) []string {
	var out []string
	for _, e := range c.Emits() {
		if e.Event == event {
			out = append(out, fmt.Sprint(e.Payload))
		}
	}
	return out
}

// ClearEmits forgets the recorded emits.
func (c *Channel) ClearEmits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emits = nil
}
