// Package config loads and validates YAML configuration for the realtime
// layer. Values reference environment variables with ${VAR} syntax and are
// expanded at load time.
package config
