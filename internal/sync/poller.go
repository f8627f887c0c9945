package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
)

// FeedResultMsg is a tea.Msg sent when a polled notification fetch
// completes.
type FeedResultMsg struct {
	Unread int
	Error  error

	// SessionExpired is set when the fetch failed because the session
	// could not be refreshed.
	SessionExpired bool
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// FeedPoller reloads the notification feed on an interval and on demand.
type FeedPoller struct {
	feed     *Feed
	interval time.Duration
	logger   *zap.Logger

	resultCh  chan FeedResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// NewFeedPoller creates a poller for feed. A non-positive interval
// defaults to two minutes.
func NewFeedPoller(feed *Feed, interval time.Duration, logger *zap.Logger) *FeedPoller {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedPoller{
		feed:      feed,
		interval:  interval,
		logger:    logger.Named("poller"),
		resultCh:  make(chan FeedResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine and returns a command waiting on
// the first result.
func (p *FeedPoller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	go p.poll(stop)

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *FeedPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Running reports whether the poller is started.
func (p *FeedPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Refresh triggers an immediate fetch.
func (p *FeedPoller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A fetch is already pending.
	}
	return nil
}

func (p *FeedPoller) poll(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.fetch(true)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.fetch(false)
		case <-p.triggerCh:
			p.fetch(true)
		}
	}
}

// fetch reloads the feed. Ticks pass full=false and only compare the
// unread counter; nothing is sent when it is unchanged.
func (p *FeedPoller) fetch(full bool) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var err error
	if full {
		err = p.feed.Load(ctx)
	} else {
		var reloaded bool
		reloaded, err = p.feed.Check(ctx)
		if err == nil && !reloaded {
			return
		}
	}
	if err != nil {
		p.logger.Warn("notification fetch failed", zap.Error(err))
		p.sendResult(FeedResultMsg{
			Error:          err,
			SessionExpired: api.IsSessionExpired(err),
		})
		return
	}
	p.sendResult(FeedResultMsg{Unread: p.feed.Unread()})
}

// sendResult sends a FeedResultMsg on the result channel without
// blocking.
func (p *FeedPoller) sendResult(msg FeedResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *FeedPoller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next fetch
// result. Call it after processing a FeedResultMsg to keep listening.
func (p *FeedPoller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
