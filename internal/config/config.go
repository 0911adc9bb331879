package config

import "time"

// Config is the root configuration for the realtime layer.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Auth      AuthConfig      `yaml:"auth"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// EndpointConfig controls how the socket address is resolved. Resolution
// order: URL override, then environment mapping, then derivation from Origin.
type EndpointConfig struct {
	URL         string `yaml:"url"`         // explicit wss:// override
	Environment string `yaml:"environment"` // production | staging | local
	Origin      string `yaml:"origin"`      // page origin, e.g. https://degenduel.me
}

// AuthConfig holds the credential provider settings.
type AuthConfig struct {
	TokenURL   string        `yaml:"token_url"`   // REST endpoint issuing realtime tokens
	SessionKey string        `yaml:"session_key"` // opaque session credential, usually ${DD_SESSION}
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// RealtimeConfig holds connection manager tunables.
type RealtimeConfig struct {
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	MissedHeartbeatLimit int           `yaml:"missed_heartbeat_limit"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	ReadBufferSize       int           `yaml:"read_buffer_size"`
}

// TelemetryConfig holds diagnostics sink settings. The Postgres store is
// optional; when Host is empty, events go to the log sink only.
type TelemetryConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	ReportInterval time.Duration `yaml:"report_interval"`
	Postgres       DBConfig      `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
