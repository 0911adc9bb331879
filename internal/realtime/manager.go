package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BranchManager69/degenduel-realtime/internal/auth"
	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
	"github.com/BranchManager69/degenduel-realtime/internal/telemetry"
)

// Manager owns the single transport and the connection state machine. All
// side-effecting operations (open/close) are serialized so only one active
// attempt exists at a time; every other component gets narrow mutation
// rights but never holds the transport itself.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	sink     telemetry.Sink
	resolver *auth.Resolver
	identity auth.Identity

	newTransport TransportFactory

	listeners *ListenerRegistry
	subs      *SubscriptionRegistry
	sched     *scheduler

	mu          sync.Mutex
	state       State
	transport   Transport
	gen         uint64        // transport session; stale callbacks check it and bail
	pumpStop    chan struct{} // closed on detach so the session's pump exits
	lastErr     error
	hb          *heartbeatMonitor
	authRetries int

	pendingMu sync.Mutex
	pending   map[string]chan protocol.Envelope

	msgsIn      atomic.Int64
	msgsOut     atomic.Int64
	parseErrors atomic.Int64
}

// NewManager creates the connection Manager. resolver and identity may be
// nil for anonymous-only use; sink may be nil to discard telemetry.
func NewManager(cfg ManagerConfig, resolver *auth.Resolver, identity auth.Identity, sink telemetry.Sink, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if identity == nil {
		identity = auth.StaticIdentity{}
	}

	m := &Manager{
		cfg:          cfg,
		logger:       logger,
		sink:         sink,
		resolver:     resolver,
		identity:     identity,
		newTransport: NewWSTransport,
		listeners:    NewListenerRegistry(logger),
		subs:         NewSubscriptionRegistry(logger),
		pending:      make(map[string]chan protocol.Envelope),
		state:        StateDisconnected,
	}

	m.sched = newScheduler(cfg, logger)
	m.sched.connect = func() {
		if err := m.Connect(); err != nil {
			m.logger.Warn("scheduled reconnect failed", "error", err)
		}
	}
	// The scheduling callbacks run synchronously under m.mu (scheduling
	// only ever happens from manager handlers), so they use locked forms.
	m.sched.onScheduled = func(restart bool, attempt int, delay time.Duration) {
		m.setStateLocked(StateReconnecting)
		kind := "backoff"
		if restart {
			kind = "restart"
		}
		m.sink.Record(telemetry.Event{
			Kind:    telemetry.KindReconnectScheduled,
			State:   m.state.String(),
			Detail:  kind,
			Attempt: attempt,
			DelayMs: delay.Milliseconds(),
		})
	}
	m.sched.onExhausted = func() {
		m.lastErr = ErrReconnectExhausted
		m.setStateLocked(StateError)
		m.sink.Record(telemetry.Event{
			Kind:   telemetry.KindError,
			State:  m.state.String(),
			Detail: ErrReconnectExhausted.Error(),
		})
	}

	return m
}

// Connect opens the transport. Reentrant-safe: a no-op while a connection is
// already open or an attempt is in flight. A manual call also recovers from
// the terminal ERROR state.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if m.state == StateConnecting {
		return nil
	}
	if m.transport != nil && m.transport.IsOpen() {
		return nil
	}

	// A pending reconnect timer is superseded by this attempt.
	m.sched.cancel()

	// Discard any residual transport without letting its close event
	// re-enter the reconnect logic.
	if m.transport != nil {
		m.detachLocked()
		m.transport.Close()
		m.transport = nil
	}

	target, err := ResolveEndpoint(m.cfg.Endpoint)
	if err != nil {
		m.failLocked(err)
		return err
	}

	m.setStateLocked(StateConnecting)
	m.sink.Record(telemetry.Event{
		Kind:    telemetry.KindConnectAttempt,
		State:   m.state.String(),
		Detail:  target,
		Attempt: m.sched.attemptCount(),
	})

	t := m.newTransport(TransportConfig{
		URL:          target,
		DialTimeout:  m.cfg.DialTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.ReadBufferSize,
	}, m.logger)

	// Dial without holding the lock so facade reads stay responsive.
	m.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	err = t.Connect(ctx)
	cancel()
	m.mu.Lock()

	if m.state != StateConnecting {
		// Torn down or superseded while dialing.
		t.Close()
		return nil
	}

	if err != nil {
		t.Close()
		m.failLocked(err)
		return err
	}

	m.gen++
	m.transport = t
	m.pumpStop = make(chan struct{})
	m.onOpenLocked(m.gen)
	go m.pump(t, m.gen, m.pumpStop)

	return nil
}

// detachLocked ends the current transport session: in-flight callbacks see a
// new generation and become no-ops, and the session's pump is released. The
// deliberate-close paths rely on this; a transport torn down by us emits no
// close event of its own.
func (m *Manager) detachLocked() {
	m.gen++
	if m.pumpStop != nil {
		close(m.pumpStop)
		m.pumpStop = nil
	}
}

// failLocked records a transport-level failure and schedules a retry.
func (m *Manager) failLocked(err error) {
	m.lastErr = err
	m.setStateLocked(StateError)
	m.logger.Error("connection failed", "error", err)
	m.sink.Record(telemetry.Event{
		Kind:   telemetry.KindError,
		State:  m.state.String(),
		Detail: err.Error(),
	})
	m.sched.scheduleBackoff()
}

// onOpenLocked handles a successful open: reset the attempt counter, start
// the heartbeat, and run the handshake (which always asserts the public
// topic set, token or not).
func (m *Manager) onOpenLocked(gen uint64) {
	m.setStateLocked(StateConnected)
	m.lastErr = nil
	m.sched.resetAttempts()

	m.hb = newHeartbeatMonitor(
		m.cfg.HeartbeatInterval,
		m.cfg.MissedHeartbeatLimit,
		func() bool { return m.SendMessage(protocol.NewPing()) },
		func() { m.heartbeatDead(gen) },
		m.logger,
	)
	m.hb.Start()

	m.sink.Record(telemetry.Event{Kind: telemetry.KindConnected, State: m.state.String()})
	m.logger.Info("connected")

	go m.handshake(gen, false)
}

// pump moves transport events into the manager until the session ends,
// either by the transport's close event or by a deliberate detach.
func (m *Manager) pump(t Transport, gen uint64, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case data, ok := <-t.Frames():
			if !ok {
				return
			}
			m.handleFrame(gen, data)
		case ci := <-t.Done():
			m.handleClose(gen, ci)
			return
		}
	}
}

// handleFrame parses one inbound frame, applies the protocol special cases,
// and fans the envelope out. Malformed payloads are swallowed with a local
// diagnostic; they never take the socket down.
func (m *Manager) handleFrame(gen uint64, data []byte) {
	env, err := protocol.Parse(data)
	if err != nil {
		m.parseErrors.Add(1)
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	m.msgsIn.Add(1)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	switch {
	case env.IsPong():
		if m.hb != nil {
			m.hb.Pong()
		}

	case env.Type == protocol.TypeAcknowledgment && isAuthAck(env):
		m.authRetries = 0
		m.setStateLocked(StateAuthenticated)
		m.sink.Record(telemetry.Event{Kind: telemetry.KindAuthenticated, State: m.state.String()})
		m.logger.Info("authenticated")

	case env.IsShutdownNotice():
		notice := env.DecodeShutdown()
		expected := time.Duration(notice.ExpectedDowntimeMs) * time.Millisecond
		m.logger.Info("server shutdown notice", "expected_downtime", expected, "reason", notice.Reason)
		m.sched.scheduleRestart(expected)

	case env.IsTokenExpiry():
		m.logger.Warn("auth token expired", "code", env.Code, "reason", env.Reason)
		if m.resolver != nil {
			m.resolver.Clear()
		}
		if m.authRetries < m.cfg.MaxAuthRetries && m.state.open() {
			m.authRetries++
			go m.handshake(gen, true)
		}
	}
	m.mu.Unlock()

	if env.RequestID != "" {
		m.deliverReply(env)
	}

	// Fan-out is unconditional: even special-cased envelopes reach any
	// listener registered for their type.
	m.listeners.Dispatch(env)
}

// isAuthAck recognizes the acknowledgment confirming the restricted
// subscribe was accepted with our token.
func isAuthAck(env protocol.Envelope) bool {
	return strings.Contains(strings.ToLower(env.Operation), "authenticated") ||
		strings.Contains(strings.ToLower(env.Message), "authenticated")
}

// handleClose processes the end of a transport session. An abnormal close
// schedules backoff; a close that itself announces a restart arms the
// restart-aware policy defensively, covering the case where the shutdown
// notice never arrived.
func (m *Manager) handleClose(gen uint64, ci CloseInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}
	m.detachLocked()

	if m.hb != nil {
		m.hb.Stop()
		m.hb = nil
	}
	m.transport = nil

	if ci.Err != nil {
		m.lastErr = ci.Err
		m.setStateLocked(StateError)
		m.sink.Record(telemetry.Event{
			Kind:   telemetry.KindError,
			State:  m.state.String(),
			Detail: ci.Err.Error(),
			Code:   ci.Code,
		})
	}

	m.setStateLocked(StateDisconnected)
	m.sink.Record(telemetry.Event{
		Kind:   telemetry.KindDisconnected,
		State:  m.state.String(),
		Detail: ci.Reason,
		Code:   ci.Code,
	})
	m.logger.Info("disconnected", "code", ci.Code, "reason", ci.Reason)

	switch {
	case isRestartReason(ci.Reason) && !m.sched.restartPending():
		m.sched.scheduleRestart(0)
	case ci.Code != protocol.CloseNormal:
		m.sched.scheduleBackoff()
	}
}

// isRestartReason matches close reasons that indicate a planned restart.
func isRestartReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "restart") || strings.Contains(r, "maintenance")
}

// heartbeatDead tears the connection down after the miss limit and schedules
// a normal reconnect. Fired from the heartbeat goroutine.
func (m *Manager) heartbeatDead(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	m.sink.Record(telemetry.Event{Kind: telemetry.KindHeartbeatTimeout, State: m.state.String()})
	m.logger.Warn("connection unresponsive, tearing down")

	m.cleanupLocked()
	m.sched.scheduleBackoff()
}

// Close tears the connection down deterministically: timers cleared, the
// transport detached before it is closed so the deliberate close does not
// re-arm reconnection.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

func (m *Manager) cleanupLocked() {
	m.detachLocked()
	m.sched.cancel()
	if m.hb != nil {
		m.hb.Stop()
		m.hb = nil
	}
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
	m.setStateLocked(StateDisconnected)
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state transition", "from", m.state.String(), "to", s.String())
	m.state = s
}

// SendMessage serializes and writes one envelope. Returns false with a local
// diagnostic when the transport is not open. This is the only write path.
func (m *Manager) SendMessage(env protocol.Envelope) bool {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()

	if t == nil || !t.IsOpen() {
		m.logger.Warn("send while not connected", "type", string(env.Type))
		return false
	}
	return m.write(t, env)
}

// write marshals and sends on a specific transport.
func (m *Manager) write(t Transport, env protocol.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		m.logger.Warn("marshal envelope failed", "type", string(env.Type), "error", err)
		return false
	}
	if err := t.Send(data); err != nil {
		m.logger.Warn("send failed", "type", string(env.Type), "error", err)
		return false
	}
	m.msgsOut.Add(1)
	return true
}

// Subscribe marks topics as desired and, when connected, issues the
// subscribe envelope for the ones not already tracked. Idempotent.
func (m *Manager) Subscribe(topics ...protocol.Topic) bool {
	added := m.subs.Add(topics...)
	if len(added) == 0 {
		return true
	}

	token := ""
	if anyRestricted(added) {
		m.mu.Lock()
		authed := m.state == StateAuthenticated
		m.mu.Unlock()
		if authed && m.resolver != nil {
			token, _ = m.resolver.Cached()
		}
	}

	return m.SendMessage(protocol.NewSubscribe(added, token))
}

// Unsubscribe drops topics from the desired set and, when connected, issues
// the unsubscribe envelope for the ones that were tracked. Idempotent.
func (m *Manager) Unsubscribe(topics ...protocol.Topic) bool {
	removed := m.subs.Remove(topics...)
	if len(removed) == 0 {
		return true
	}
	return m.SendMessage(protocol.NewUnsubscribe(removed))
}

func anyRestricted(topics []protocol.Topic) bool {
	for _, t := range topics {
		if protocol.RequiredCapability(t) != protocol.CapPublic {
			return true
		}
	}
	return false
}

// Request sends a REQUEST envelope and returns its correlation id.
func (m *Manager) Request(topic protocol.Topic, action string, params map[string]any) (string, bool) {
	env := protocol.NewRequest(topic, action, params)
	return env.RequestID, m.SendMessage(env)
}

// RequestWait sends a REQUEST and blocks until the correlated reply arrives
// or ctx expires.
func (m *Manager) RequestWait(ctx context.Context, topic protocol.Topic, action string, params map[string]any) (protocol.Envelope, error) {
	env := protocol.NewRequest(topic, action, params)

	replyCh := make(chan protocol.Envelope, 1)
	m.pendingMu.Lock()
	m.pending[env.RequestID] = replyCh
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, env.RequestID)
		m.pendingMu.Unlock()
	}()

	if !m.SendMessage(env) {
		return protocol.Envelope{}, ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	}
}

// deliverReply routes a correlated reply to its waiter, if any.
func (m *Manager) deliverReply(env protocol.Envelope) {
	m.pendingMu.Lock()
	ch, ok := m.pending[env.RequestID]
	if ok {
		delete(m.pending, env.RequestID)
	}
	m.pendingMu.Unlock()

	if ok {
		select {
		case ch <- env:
		default:
		}
	}
}

// RegisterListener adds or replaces a consumer callback filtered by message
// type and optional topic set, returning its disposer.
func (m *Manager) RegisterListener(id string, types []protocol.MessageType, topics []protocol.Topic, fn ListenerFunc) func() {
	return m.listeners.Register(id, types, topics, fn)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the transport is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.open()
}

// IsAuthenticated reports whether the session has been elevated.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated
}

// ConnectionError returns the last transport-level error, if any.
func (m *Manager) ConnectionError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Stats returns a snapshot of manager counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	state := m.state
	misses := 0
	if m.hb != nil {
		misses = m.hb.Misses()
	}
	m.mu.Unlock()

	return Stats{
		State:             state,
		ReconnectAttempts: m.sched.attemptCount(),
		MissedHeartbeats:  misses,
		DesiredTopics:     m.subs.Len(),
		Listeners:         m.listeners.Len(),
		MessagesIn:        m.msgsIn.Load(),
		MessagesOut:       m.msgsOut.Load(),
		ParseErrors:       m.parseErrors.Load(),
	}
}

// StatsEvent renders Stats as a telemetry event for the periodic reporter.
func (m *Manager) StatsEvent() telemetry.Event {
	s := m.Stats()
	return telemetry.Event{
		Kind:    telemetry.KindStats,
		State:   s.State.String(),
		Attempt: s.ReconnectAttempts,
		Detail: fmt.Sprintf("listeners=%d topics=%d in=%d out=%d parse_errors=%d missed_hb=%d",
			s.Listeners, s.DesiredTopics, s.MessagesIn, s.MessagesOut, s.ParseErrors, s.MissedHeartbeats),
	}
}
