// Package telemetry is the diagnostics sink for connection lifecycle events.
//
// Sinks are fire-and-forget: recording an event never blocks, never returns
// an error to the caller, and never influences connection control flow. The
// Postgres store writes events in batches; a full buffer drops events rather
// than applying backpressure.
package telemetry
