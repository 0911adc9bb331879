// Package realtime implements the unified realtime connection layer.
//
// One Manager owns one WebSocket transport for the whole process. Dozens of
// independent consumers (market data, portfolio, wallet, notifications,
// contests, admin panels) share it through the listener registry, each seeing
// only the envelopes matching its type/topic filter.
//
// The Manager drives the connection state machine:
//
//	DISCONNECTED → CONNECTING → CONNECTED → AUTHENTICATING → AUTHENTICATED
//
// with RECONNECTING entered whenever a reconnect timer is pending and ERROR
// on transport failure or attempt exhaustion. Liveness is watched by the
// heartbeat monitor; reconnection is scheduled either with exponential
// backoff or, for server-announced restarts, proactively near the announced
// recovery time.
package realtime
