package realtime

import (
	"testing"
	"time"
)

// The tick path is exercised directly; the ticker loop only feeds it.

func TestHeartbeatMissAccumulation(t *testing.T) {
	dead := false
	h := newHeartbeatMonitor(time.Minute, 3,
		func() bool { return true },
		func() { dead = true },
		nil,
	)

	h.tick()
	h.tick()
	if got := h.Misses(); got != 2 {
		t.Fatalf("Misses() = %d, want 2", got)
	}
	if dead {
		t.Fatal("declared dead below the limit")
	}

	if !h.tick() {
		t.Error("tick() = false at the limit")
	}
	if !dead {
		t.Error("onDead never invoked")
	}
}

func TestHeartbeatPongResets(t *testing.T) {
	dead := false
	h := newHeartbeatMonitor(time.Minute, 2,
		func() bool { return true },
		func() { dead = true },
		nil,
	)

	h.tick()
	h.Pong()
	h.tick()
	if dead {
		t.Error("declared dead despite intervening pong")
	}
	if got := h.Misses(); got != 1 {
		t.Errorf("Misses() = %d, want 1", got)
	}
}

func TestHeartbeatUnsentProbeDoesNotCount(t *testing.T) {
	h := newHeartbeatMonitor(time.Minute, 2,
		func() bool { return false },
		func() { t.Error("onDead invoked for unsent probes") },
		nil,
	)

	h.tick()
	h.tick()
	h.tick()
	if got := h.Misses(); got != 0 {
		t.Errorf("Misses() = %d, want 0", got)
	}
}

func TestHeartbeatStopIdempotent(t *testing.T) {
	h := newHeartbeatMonitor(time.Millisecond, 3,
		func() bool { return true },
		func() {},
		nil,
	)
	h.Start()
	h.Stop()
	h.Stop()
}

func TestHeartbeatLoopDeclaresDead(t *testing.T) {
	dead := make(chan struct{})
	h := newHeartbeatMonitor(time.Millisecond, 2,
		func() bool { return true },
		func() { close(dead) },
		nil,
	)
	h.Start()
	defer h.Stop()

	select {
	case <-dead:
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop never declared the connection dead")
	}
}
