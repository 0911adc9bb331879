package config

import (
	"errors"
	"fmt"
)

var validEnvironments = map[string]bool{
	"production": true,
	"staging":    true,
	"local":      true,
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Endpoint.URL == "" && c.Endpoint.Origin == "" && !validEnvironments[c.Endpoint.Environment] {
		return fmt.Errorf("endpoint.environment must be production, staging, or local, got %q", c.Endpoint.Environment)
	}

	if c.Realtime.MissedHeartbeatLimit < 1 {
		return errors.New("realtime.missed_heartbeat_limit must be >= 1")
	}
	if c.Realtime.MaxReconnectAttempts < 1 {
		return errors.New("realtime.max_reconnect_attempts must be >= 1")
	}
	if c.Realtime.ReconnectBaseDelay > c.Realtime.ReconnectMaxDelay {
		return fmt.Errorf("realtime.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Realtime.ReconnectBaseDelay, c.Realtime.ReconnectMaxDelay)
	}

	if c.Telemetry.BatchSize < 1 {
		return errors.New("telemetry.batch_size must be >= 1")
	}

	if c.Telemetry.Postgres.Host != "" {
		if err := c.Telemetry.Postgres.validate("telemetry.postgres"); err != nil {
			return err
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
