// Package database provides the PostgreSQL connection pool backing the
// telemetry event store.
package database
