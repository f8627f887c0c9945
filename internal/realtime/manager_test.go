package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/realtime/realtimetest"
	"github.com/nhle/taskboard/tests/testutil"
)

func newManager(t *testing.T) (*realtime.Manager, *realtimetest.Transport) {
	t.Helper()
	transport := realtimetest.NewTransport()
	return realtime.NewManager(transport, zaptest.NewLogger(t)), transport
}

func TestConnectOpensOneChannel(t *testing.T) {
	m, transport := newManager(t)
	ctx := context.Background()

	if err := m.Connect(ctx, "u1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Connect(ctx, "u1"); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if err := m.Connect(ctx, "u2"); err != nil {
		t.Fatalf("Connect other identity: %v", err)
	}

	if got := transport.Opens(); got != 1 {
		t.Errorf("opens = %d, want 1", got)
	}
	if got := m.Identity(); got != "u1" {
		t.Errorf("Identity = %q, want u1", got)
	}
}

func TestConnectEmptyIdentityIsNoop(t *testing.T) {
	m, transport := newManager(t)
	if err := m.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if transport.Opens() != 0 || m.Active() != nil {
		t.Error("empty identity must not open a channel")
	}
}

func TestConnectPropagatesOpenError(t *testing.T) {
	m, transport := newManager(t)
	transport.OpenErr = errors.New("boom")
	if err := m.Connect(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
	if m.Active() != nil {
		t.Error("failed open must leave no active channel")
	}
}

func TestConnectEventJoinsUserRoom(t *testing.T) {
	m, transport := newManager(t)
	if err := m.Connect(context.Background(), "u1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ch := transport.Last()

	if m.Connected() {
		t.Fatal("state should be disconnected before the connect event")
	}
	ch.SimulateConnect()

	if !m.State().Connected() {
		t.Error("state should be connected")
	}
	if got := ch.Payloads(realtime.EventJoinUser); len(got) != 1 || got[0] != "u1" {
		t.Errorf("joinUser payloads = %v", got)
	}

	ch.SimulateDisconnect()
	if m.Connected() {
		t.Error("state should be disconnected after disconnect event")
	}

	ch.SimulateConnect()
	if got := ch.Payloads(realtime.EventJoinUser); len(got) != 2 {
		t.Errorf("joinUser should be re-emitted on reconnect, got %v", got)
	}
}

func TestEmitWithoutChannel(t *testing.T) {
	m, transport := newManager(t)
	if err := m.Emit(realtime.EventJoinTask, "t1"); !errors.Is(err, realtime.ErrNotConnected) {
		t.Fatalf("Emit = %v, want ErrNotConnected", err)
	}

	_ = m.Connect(context.Background(), "u1")
	if err := m.Emit(realtime.EventJoinTask, "t1"); !errors.Is(err, realtime.ErrNotConnected) {
		t.Fatalf("Emit before connect event = %v, want ErrNotConnected", err)
	}
	transport.Last().SimulateConnect()
	if err := m.Emit(realtime.EventJoinTask, "t1"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
}

func TestHandlersSurviveChannelReplacement(t *testing.T) {
	m, transport := newManager(t)
	ctx := context.Background()

	var got atomic.Int32
	tok := m.On(realtime.EventTaskDeleted, func(json.RawMessage) { got.Add(1) })

	_ = m.Connect(ctx, "u1")
	first := transport.Last()
	first.SimulateConnect()
	first.Push(realtime.EventTaskDeleted, "t1")

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !first.Closed() {
		t.Error("Disconnect should close the channel")
	}
	if m.Connected() || m.Identity() != "" || m.Active() != nil {
		t.Error("Disconnect should reset state and identity")
	}

	// Events from the closed channel are ignored.
	first.Push(realtime.EventTaskDeleted, "t2")

	_ = m.Connect(ctx, "u2")
	second := transport.Last()
	if second == first {
		t.Fatal("expected a new channel after disconnect")
	}
	second.SimulateConnect()
	second.Push(realtime.EventTaskDeleted, "t3")

	if n := got.Load(); n != 2 {
		t.Errorf("handler calls = %d, want 2", n)
	}

	if !m.Off(tok) {
		t.Error("Off should report the removal")
	}
	if m.Off(tok) {
		t.Error("second Off should be a no-op")
	}
	second.Push(realtime.EventTaskDeleted, "t4")
	if n := got.Load(); n != 2 {
		t.Errorf("handler ran after Off: %d calls", n)
	}
}

func TestDisconnectWithoutChannel(t *testing.T) {
	m, _ := newManager(t)
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
}

func TestDisconnectWaitsForInFlightHandler(t *testing.T) {
	m, transport := newManager(t)
	if err := m.Connect(context.Background(), "u1"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ch := transport.Last()
	ch.SimulateConnect()

	entered := make(chan string, 4)
	release := make(chan struct{})
	m.On(realtime.EventTaskDeleted, func(data json.RawMessage) {
		entered <- string(data)
		<-release
	})

	go ch.Push(realtime.EventTaskDeleted, "t1")
	testutil.RequireReceive(t, entered, time.Second, "handler for t1")

	done := make(chan struct{}, 1)
	go func() {
		_ = m.Disconnect()
		done <- struct{}{}
	}()
	testutil.RequireNoReceive(t, done, 50*time.Millisecond, "Disconnect returned while a handler was running")

	close(release)
	testutil.RequireReceive(t, done, time.Second, "Disconnect after handler finished")

	ch.Push(realtime.EventTaskDeleted, "t2")
	testutil.RequireNoReceive(t, entered, 50*time.Millisecond, "event from the closed channel reached a handler")
}
