package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeatMonitor detects silently-dead connections that never emit a close
// event. Each tick sends a ping and counts the miss up front; a pong arriving
// before the next tick resets the counter. Reaching the limit forces a hard
// teardown through onDead, the only path that treats an ostensibly-open
// transport as failed.
type heartbeatMonitor struct {
	interval time.Duration
	limit    int
	logger   *slog.Logger

	// sendPing reports whether a probe was actually written; a closed
	// transport does not accumulate misses.
	sendPing func() bool
	onDead   func()

	mu      sync.Mutex
	misses  int
	stopCh  chan struct{}
	stopped bool
}

func newHeartbeatMonitor(interval time.Duration, limit int, sendPing func() bool, onDead func(), logger *slog.Logger) *heartbeatMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeatMonitor{
		interval: interval,
		limit:    limit,
		logger:   logger,
		sendPing: sendPing,
		onDead:   onDead,
		stopCh:   make(chan struct{}),
	}
}

// Start resets the miss counter and begins the probe loop.
func (h *heartbeatMonitor) Start() {
	h.mu.Lock()
	h.misses = 0
	h.mu.Unlock()

	go h.run()
}

// Stop halts the probe loop. Idempotent; does not wait for the loop to exit
// so it is safe to call from paths holding the manager lock.
func (h *heartbeatMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	close(h.stopCh)
}

// Pong resets the miss counter.
func (h *heartbeatMonitor) Pong() {
	h.mu.Lock()
	h.misses = 0
	h.mu.Unlock()
}

// Misses returns the current miss count.
func (h *heartbeatMonitor) Misses() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.misses
}

func (h *heartbeatMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if h.tick() {
				return
			}
		}
	}
}

// tick sends one probe and returns true when the connection is declared dead.
func (h *heartbeatMonitor) tick() bool {
	if !h.sendPing() {
		return false
	}

	// Optimistic accounting: the miss is counted now and reverted by the
	// pong handler, not confirmed after a reply window.
	h.mu.Lock()
	h.misses++
	misses := h.misses
	dead := misses >= h.limit
	h.mu.Unlock()

	if !dead {
		return false
	}

	h.logger.Warn("heartbeat limit reached, forcing reconnect", "misses", misses, "limit", h.limit)
	h.Stop()
	h.onDead()
	return true
}
