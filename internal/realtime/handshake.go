package realtime

import (
	"context"

	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
	"github.com/BranchManager69/degenduel-realtime/internal/telemetry"
)

// handshake runs after every successful open and after a token expiry. It
// always asserts the public topic set first so market data keeps flowing
// regardless of how authentication goes; a missing or failed token then
// degrades the session to public-only rather than failing the connection.
//
// Writes happen with the manager lock released; the session check before
// each write is the generation counter plus transport liveness, the same
// rule SendMessage applies.
func (m *Manager) handshake(gen uint64, force bool) {
	m.mu.Lock()
	if gen != m.gen || m.transport == nil || !m.transport.IsOpen() {
		m.mu.Unlock()
		return
	}
	t := m.transport

	if !m.identity.LoggedIn() || m.resolver == nil {
		m.mu.Unlock()
		m.write(t, protocol.NewSubscribe(m.subs.Public(), ""))
		return
	}

	m.setStateLocked(StateAuthenticating)
	m.mu.Unlock()

	// Token acquisition happens off the lock; the socket may close while
	// we wait, so liveness is re-checked afterwards.
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AuthTimeout)
	token, err := m.resolver.Resolve(ctx, force)
	if err != nil && !force {
		token, err = m.resolver.Resolve(ctx, true)
	}
	cancel()

	m.mu.Lock()
	if gen != m.gen || m.transport == nil || !m.transport.IsOpen() {
		m.mu.Unlock()
		return
	}
	t = m.transport

	if err != nil || token == "" {
		m.setStateLocked(StateConnected)
		detail := "no token"
		if err != nil {
			detail = err.Error()
		}
		m.sink.Record(telemetry.Event{
			Kind:   telemetry.KindAuthDegraded,
			State:  m.state.String(),
			Detail: detail,
		})
		m.logger.Warn("authentication unavailable, public topics only", "error", err)
		m.mu.Unlock()

		m.write(t, protocol.NewSubscribe(m.subs.Public(), ""))
		return
	}
	m.mu.Unlock()

	m.write(t, protocol.NewSubscribe(m.subs.Public(), ""))

	// Elevation is confirmed asynchronously by the server acknowledgment;
	// until then the session stays in AUTHENTICATING.
	m.write(t, protocol.NewSubscribe(m.subs.Restricted(m.identity), token))
}
