package realtime

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt, base, max); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRestartDelay(t *testing.T) {
	lead := 5 * time.Second
	min := 3 * time.Second

	tests := []struct {
		expected time.Duration
		want     time.Duration
	}{
		{40 * time.Second, 35 * time.Second}, // lead applied
		{30 * time.Second, 25 * time.Second},
		{4 * time.Second, 3 * time.Second}, // floor
		{2 * time.Second, 2 * time.Second}, // never beyond the window
	}

	for _, tt := range tests {
		if got := restartDelay(tt.expected, lead, min); got != tt.want {
			t.Errorf("restartDelay(%v) = %v, want %v", tt.expected, got, tt.want)
		}
	}
}

func testSchedulerConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.ReconnectMaxDelay = 8 * time.Millisecond
	cfg.MaxReconnectAttempts = 3
	cfg.RestartLeadTime = time.Millisecond
	cfg.RestartMinDelay = time.Millisecond
	cfg.DefaultRestartDowntime = 5 * time.Millisecond
	return cfg
}

func TestSchedulerFiresConnect(t *testing.T) {
	s := newScheduler(testSchedulerConfig(), nil)

	fired := make(chan struct{})
	s.connect = func() { close(fired) }

	if !s.scheduleBackoff() {
		t.Fatal("scheduleBackoff() = false, want true")
	}
	if !s.pending() {
		t.Error("pending() = false after scheduling")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("connect never fired")
	}

	if s.pending() {
		t.Error("pending() = true after fire")
	}
	if got := s.attemptCount(); got != 1 {
		t.Errorf("attemptCount() = %d, want 1", got)
	}
}

func TestSchedulerMutualExclusion(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.ReconnectBaseDelay = time.Minute // never fires during the test
	cfg.RestartMinDelay = time.Minute

	s := newScheduler(cfg, nil)
	s.connect = func() {}

	if !s.scheduleBackoff() {
		t.Fatal("first scheduleBackoff() = false")
	}
	if s.scheduleRestart(time.Minute) {
		t.Error("scheduleRestart() = true while backoff pending")
	}
	if s.scheduleBackoff() {
		t.Error("second scheduleBackoff() = true while pending")
	}
	s.cancel()

	if !s.scheduleRestart(time.Minute) {
		t.Fatal("scheduleRestart() = false after cancel")
	}
	if !s.restartPending() {
		t.Error("restartPending() = false after restart scheduling")
	}
	if s.scheduleBackoff() {
		t.Error("scheduleBackoff() = true while restart pending")
	}
	s.cancel()

	if s.restartPending() {
		t.Error("restartPending() = true after cancel")
	}
}

func TestSchedulerExhaustion(t *testing.T) {
	s := newScheduler(testSchedulerConfig(), nil)

	var connects atomic.Int32
	done := make(chan struct{}, 8)
	s.connect = func() {
		connects.Add(1)
		done <- struct{}{}
	}
	exhausted := false
	s.onExhausted = func() { exhausted = true }

	// Burn the attempt budget.
	for i := 0; i < 3; i++ {
		if !s.scheduleBackoff() {
			t.Fatalf("scheduleBackoff() = false on attempt %d", i+1)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduled connect never fired")
		}
	}

	if s.scheduleBackoff() {
		t.Error("scheduleBackoff() = true past the budget")
	}
	if !exhausted {
		t.Error("onExhausted never invoked")
	}

	// Restart scheduling ignores the backoff budget.
	if !s.scheduleRestart(0) {
		t.Error("scheduleRestart() = false after exhaustion")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("restart connect never fired")
	}

	// A successful open resets the budget.
	s.resetAttempts()
	if !s.scheduleBackoff() {
		t.Error("scheduleBackoff() = false after resetAttempts")
	}
	s.cancel()
}

func TestSchedulerRestartDefaultDowntime(t *testing.T) {
	s := newScheduler(testSchedulerConfig(), nil)

	fired := make(chan struct{})
	s.connect = func() { close(fired) }

	var gotDelay time.Duration
	s.onScheduled = func(restart bool, _ int, delay time.Duration) {
		if !restart {
			t.Error("onScheduled restart = false for restart scheduling")
		}
		gotDelay = delay
	}

	if !s.scheduleRestart(0) {
		t.Fatal("scheduleRestart(0) = false")
	}
	// Default window 5ms, lead 1ms.
	if gotDelay != 4*time.Millisecond {
		t.Errorf("delay = %v, want 4ms", gotDelay)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("connect never fired")
	}
}
