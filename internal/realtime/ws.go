package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
	initialBackoff = 500 * time.Millisecond
)

// ErrSendBufferFull is returned by Emit when the outgoing queue is full.
var ErrSendBufferFull = errors.New("push channel send buffer full")

// WSConfig configures a WSTransport.
type WSConfig struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Jar supplies the session cookies for the handshake.
	Jar http.CookieJar

	// Reconnect redials with capped exponential backoff after the
	// connection drops.
	Reconnect    bool
	ReconnectMax time.Duration

	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// WSTransport opens push channels over websocket. Each frame is a JSON
// object {"event": ..., "data": ...}.
type WSTransport struct {
	cfg    WSConfig
	logger *zap.Logger
}

// NewWSTransport validates cfg and returns a transport.
func NewWSTransport(cfg WSConfig) (*WSTransport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing socket url %q: %w", cfg.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("socket url %q must use ws or wss", cfg.URL)
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSTransport{cfg: cfg, logger: logger.Named("ws")}, nil
}

// Open starts dialing in the background and returns immediately. The
// channel outlives ctx; Close stops it.
func (t *WSTransport) Open(ctx context.Context, identity string, sink Sink) (Channel, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &wsChannel{
		cfg: t.cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: t.cfg.HandshakeTimeout,
			Jar:              t.cfg.Jar,
		},
		sink:   sink,
		send:   make(chan []byte, sendBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: t.logger.With(zap.String("identity", identity)),
	}
	go c.run(runCtx)
	return c, nil
}

type wsChannel struct {
	cfg    WSConfig
	dialer *websocket.Dialer
	sink   Sink
	logger *zap.Logger

	send      chan []byte
	connected atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func (c *wsChannel) Connected() bool { return c.connected.Load() }

func (c *wsChannel) Emit(event string, payload any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshaling %s frame: %w", event, err)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn("dropping outgoing frame", zap.String("event", event))
		return ErrSendBufferFull
	}
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
	return nil
}

// run dials, serves the connection until it drops, and redials while
// reconnect is enabled.
func (c *wsChannel) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("dial failed", zap.Int("attempt", attempt), zap.Error(err))
			if !c.cfg.Reconnect || !c.wait(ctx, attempt) {
				return
			}
			attempt++
			reconnects.Inc()
			continue
		}

		if !c.setConn(ctx, conn) {
			conn.Close()
			return
		}
		attempt = 0
		c.connected.Store(true)
		c.sink(EventConnect, nil)

		err = c.serve(conn)
		c.connected.Store(false)
		c.setConn(ctx, nil)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.logger.Info("push connection lost", zap.Error(err))
		c.sink(EventDisconnect, nil)

		if !c.cfg.Reconnect || !c.wait(ctx, attempt) {
			return
		}
		attempt++
		reconnects.Inc()
	}
}

// setConn stores conn unless the channel is already closing.
func (c *wsChannel) setConn(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn != nil && ctx.Err() != nil {
		return false
	}
	c.conn = conn
	return true
}

// wait sleeps for the backoff of attempt and reports whether the channel
// is still open.
func (c *wsChannel) wait(ctx context.Context, attempt int) bool {
	backoff := initialBackoff << uint(min(attempt, 16))
	if backoff > c.cfg.ReconnectMax {
		backoff = c.cfg.ReconnectMax
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// serve runs the write pump in a goroutine and the read pump inline. It
// returns the error that ended the read pump.
func (c *wsChannel) serve(conn *websocket.Conn) error {
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, stop)
	}()

	err := c.readPump(conn)
	close(stop)
	<-writerDone
	return err
}

func (c *wsChannel) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Event == "" {
			c.logger.Warn("ignoring malformed frame", zap.ByteString("frame", msg))
			continue
		}
		if frame.Event == EventConnect || frame.Event == EventDisconnect {
			continue
		}
		c.sink(frame.Event, frame.Data)
	}
}

func (c *wsChannel) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case frame := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}
