package realtime

import (
	"errors"
	"time"

	"github.com/BranchManager69/degenduel-realtime/internal/config"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrTimeout            = errors.New("operation timeout")
	ErrReconnectExhausted = errors.New("max reconnection attempts reached")
	ErrNoEndpoint         = errors.New("no endpoint resolvable")
)

// State is the connection lifecycle state. Exactly one instance lives per
// process; transitions are the only way consumers observe liveness.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticating
	StateAuthenticated
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// open reports whether the transport is usable in this state.
func (s State) open() bool {
	switch s {
	case StateConnected, StateAuthenticating, StateAuthenticated:
		return true
	}
	return false
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	Endpoint config.EndpointConfig

	HeartbeatInterval    time.Duration // probe period (default 30s)
	MissedHeartbeatLimit int           // probes without a pong before forcing reconnect (default 3)

	MaxReconnectAttempts int           // backoff attempts before terminal ERROR (default 5)
	ReconnectBaseDelay   time.Duration // first backoff step (default 1s)
	ReconnectMaxDelay    time.Duration // backoff cap (default 30s)

	RestartLeadTime        time.Duration // reconnect this early within the announced window (default 5s)
	RestartMinDelay        time.Duration // never reconnect sooner than this after a shutdown notice (default 3s)
	DefaultRestartDowntime time.Duration // assumed window when the notice carries none (default 30s)

	DialTimeout    time.Duration // transport handshake timeout (default 10s)
	WriteTimeout   time.Duration // per-write deadline (default 5s)
	ReadBufferSize int           // inbound frame channel depth (default 1000)

	AuthTimeout    time.Duration // token acquisition budget per handshake (default 10s)
	MaxAuthRetries int           // bounded re-auth attempts after token expiry (default 2)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HeartbeatInterval:      30 * time.Second,
		MissedHeartbeatLimit:   3,
		MaxReconnectAttempts:   5,
		ReconnectBaseDelay:     1 * time.Second,
		ReconnectMaxDelay:      30 * time.Second,
		RestartLeadTime:        5 * time.Second,
		RestartMinDelay:        3 * time.Second,
		DefaultRestartDowntime: 30 * time.Second,
		DialTimeout:            10 * time.Second,
		WriteTimeout:           5 * time.Second,
		ReadBufferSize:         1000,
		AuthTimeout:            10 * time.Second,
		MaxAuthRetries:         2,
	}
}

// applyDefaults fills zero fields from DefaultManagerConfig.
func (c *ManagerConfig) applyDefaults() {
	d := DefaultManagerConfig()
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.MissedHeartbeatLimit == 0 {
		c.MissedHeartbeatLimit = d.MissedHeartbeatLimit
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if c.RestartLeadTime == 0 {
		c.RestartLeadTime = d.RestartLeadTime
	}
	if c.RestartMinDelay == 0 {
		c.RestartMinDelay = d.RestartMinDelay
	}
	if c.DefaultRestartDowntime == 0 {
		c.DefaultRestartDowntime = d.DefaultRestartDowntime
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.MaxAuthRetries == 0 {
		c.MaxAuthRetries = d.MaxAuthRetries
	}
}

// FromConfig builds a ManagerConfig from the loaded file config.
func FromConfig(cfg *config.Config) ManagerConfig {
	mc := ManagerConfig{
		Endpoint:             cfg.Endpoint,
		HeartbeatInterval:    cfg.Realtime.HeartbeatInterval,
		MissedHeartbeatLimit: cfg.Realtime.MissedHeartbeatLimit,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Realtime.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Realtime.ReconnectMaxDelay,
		DialTimeout:          cfg.Realtime.DialTimeout,
		WriteTimeout:         cfg.Realtime.WriteTimeout,
		ReadBufferSize:       cfg.Realtime.ReadBufferSize,
		AuthTimeout:          cfg.Auth.Timeout,
		MaxAuthRetries:       cfg.Auth.MaxRetries,
	}
	mc.applyDefaults()
	return mc
}

// Stats is a point-in-time snapshot of manager counters.
type Stats struct {
	State             State
	ReconnectAttempts int
	MissedHeartbeats  int
	DesiredTopics     int
	Listeners         int
	MessagesIn        int64
	MessagesOut       int64
	ParseErrors       int64
}
