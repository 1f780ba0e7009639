// Package observe provides telemetry for the bridge: structured JSON
// logging, OpenTelemetry tracing of command dispatch, and metrics for
// dispatch outcomes, cache results, and live connections.
package observe
