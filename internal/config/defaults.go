package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultEnvironment          = "production"
	DefaultAuthTimeout          = 10 * time.Second
	DefaultAuthMaxRetries       = 2
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultMissedHeartbeatLimit = 3
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultDialTimeout          = 10 * time.Second
	DefaultReadBufferSize       = 1000
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 5 * time.Second
	DefaultReportInterval       = 1 * time.Minute
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
)

func (c *Config) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.Environment == "" {
		c.Endpoint.Environment = DefaultEnvironment
	}

	// Auth defaults
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultAuthTimeout
	}
	if c.Auth.MaxRetries == 0 {
		c.Auth.MaxRetries = DefaultAuthMaxRetries
	}

	// Realtime defaults
	if c.Realtime.HeartbeatInterval == 0 {
		c.Realtime.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Realtime.MissedHeartbeatLimit == 0 {
		c.Realtime.MissedHeartbeatLimit = DefaultMissedHeartbeatLimit
	}
	if c.Realtime.MaxReconnectAttempts == 0 {
		c.Realtime.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Realtime.ReconnectBaseDelay == 0 {
		c.Realtime.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Realtime.ReconnectMaxDelay == 0 {
		c.Realtime.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.DialTimeout == 0 {
		c.Realtime.DialTimeout = DefaultDialTimeout
	}
	if c.Realtime.ReadBufferSize == 0 {
		c.Realtime.ReadBufferSize = DefaultReadBufferSize
	}

	// Telemetry defaults
	if c.Telemetry.BatchSize == 0 {
		c.Telemetry.BatchSize = DefaultBatchSize
	}
	if c.Telemetry.FlushInterval == 0 {
		c.Telemetry.FlushInterval = DefaultFlushInterval
	}
	if c.Telemetry.ReportInterval == 0 {
		c.Telemetry.ReportInterval = DefaultReportInterval
	}
	if c.Telemetry.Postgres.Host != "" {
		applyDBDefaults(&c.Telemetry.Postgres)
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
