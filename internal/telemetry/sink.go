package telemetry

import (
	"log/slog"
	"time"
)

// Kind classifies a lifecycle event.
type Kind string

const (
	KindConnectAttempt     Kind = "connect_attempt"
	KindConnected          Kind = "connected"
	KindAuthenticated      Kind = "authenticated"
	KindAuthDegraded       Kind = "auth_degraded"
	KindDisconnected       Kind = "disconnected"
	KindReconnectScheduled Kind = "reconnect_scheduled"
	KindHeartbeatTimeout   Kind = "heartbeat_timeout"
	KindError              Kind = "error"
	KindStats              Kind = "stats"
)

// Event is a single structured lifecycle event.
type Event struct {
	At      time.Time
	Kind    Kind
	State   string // connection state name at the time of the event
	Detail  string // free-form context (close reason, error text, topic list)
	Code    int    // close or error code when applicable
	Attempt int    // reconnect attempt counter when applicable
	DelayMs int64  // scheduled delay when applicable
}

// Sink receives lifecycle events. Implementations must not block.
type Sink interface {
	Record(ev Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Record(Event) {}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return LogSink{Logger: logger}
}

func (s LogSink) Record(ev Event) {
	s.Logger.Info("realtime event",
		"kind", string(ev.Kind),
		"state", ev.State,
		"detail", ev.Detail,
		"code", ev.Code,
		"attempt", ev.Attempt,
		"delay_ms", ev.DelayMs,
	)
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Record(ev Event) {
	for _, s := range m {
		s.Record(ev)
	}
}

// stamp fills the event timestamp if the caller left it zero.
func stamp(ev Event) Event {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return ev
}
