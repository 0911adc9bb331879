package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// backoffDelay computes the exponential delay for a given attempt number
// (1-based, after the increment): min(base * 2^attempt, max).
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// restartDelay computes the proactive delay for a server-announced restart:
// reconnect lead before the window closes, but never sooner than min nor
// later than the full window.
func restartDelay(expected, lead, min time.Duration) time.Duration {
	d := expected - lead
	if d < min {
		d = min
	}
	if d > expected {
		d = expected
	}
	return d
}

// scheduler owns reconnect timing. It holds no transport reference; its only
// mutation rights are the attempt counter and the connect callback.
//
// The two policies are mutually exclusive at any instant: whichever arms
// first wins, the other backs off on finding a timer already pending.
type scheduler struct {
	baseDelay       time.Duration
	maxDelay        time.Duration
	maxAttempts     int
	restartLead     time.Duration
	restartMin      time.Duration
	defaultDowntime time.Duration
	logger          *slog.Logger

	// connect fires from the timer goroutine with no locks held.
	connect func()
	// onScheduled and onExhausted are invoked synchronously from the
	// scheduling call, so the caller's locks are still held.
	onScheduled func(restart bool, attempt int, delay time.Duration)
	onExhausted func()

	mu               sync.Mutex
	attempts         int
	timer            *time.Timer
	restartScheduled bool
	shutdownAt       time.Time
}

func newScheduler(cfg ManagerConfig, logger *slog.Logger) *scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &scheduler{
		baseDelay:       cfg.ReconnectBaseDelay,
		maxDelay:        cfg.ReconnectMaxDelay,
		maxAttempts:     cfg.MaxReconnectAttempts,
		restartLead:     cfg.RestartLeadTime,
		restartMin:      cfg.RestartMinDelay,
		defaultDowntime: cfg.DefaultRestartDowntime,
		logger:          logger,
	}
}

// scheduleBackoff arms the normal exponential policy. Returns false when a
// timer is already pending or the attempt budget is exhausted (the latter
// also fires onExhausted).
func (s *scheduler) scheduleBackoff() bool {
	s.mu.Lock()
	if s.timer != nil {
		s.mu.Unlock()
		return false
	}
	if s.attempts >= s.maxAttempts {
		s.mu.Unlock()
		s.logger.Error("reconnect attempts exhausted", "attempts", s.attempts)
		if s.onExhausted != nil {
			s.onExhausted()
		}
		return false
	}

	s.attempts++
	attempt := s.attempts
	delay := backoffDelay(attempt, s.baseDelay, s.maxDelay)
	s.timer = time.AfterFunc(delay, s.fire)
	s.mu.Unlock()

	s.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
	if s.onScheduled != nil {
		s.onScheduled(false, attempt, delay)
	}
	return true
}

// scheduleRestart arms the restart-aware policy for a server-announced
// maintenance window. Does not consume the normal attempt budget.
func (s *scheduler) scheduleRestart(expected time.Duration) bool {
	if expected <= 0 {
		expected = s.defaultDowntime
	}

	s.mu.Lock()
	if s.timer != nil {
		s.mu.Unlock()
		return false
	}

	delay := restartDelay(expected, s.restartLead, s.restartMin)
	s.restartScheduled = true
	s.shutdownAt = time.Now()
	s.timer = time.AfterFunc(delay, s.fire)
	s.mu.Unlock()

	s.logger.Info("restart reconnect scheduled", "expected_downtime", expected, "delay", delay)
	if s.onScheduled != nil {
		s.onScheduled(true, 0, delay)
	}
	return true
}

// fire clears the pending timer state and requests a connect.
func (s *scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.restartScheduled = false
	s.shutdownAt = time.Time{}
	s.mu.Unlock()

	s.connect()
}

// cancel drops any pending timer.
func (s *scheduler) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.restartScheduled = false
	s.shutdownAt = time.Time{}
}

// pending reports whether any reconnect timer is armed.
func (s *scheduler) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// restartPending reports whether the armed timer is restart-aware.
func (s *scheduler) restartPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restartScheduled
}

// resetAttempts clears the backoff counter after a successful open.
func (s *scheduler) resetAttempts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
}

// attemptCount returns the current backoff counter.
func (s *scheduler) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
