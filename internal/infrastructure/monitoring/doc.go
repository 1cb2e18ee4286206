// Package monitoring provides Prometheus metrics for the GUI host.
//
// Metrics cover the HTTP API, project resolution sources, the content
// fallback chain (attempts per kind, terminal outcomes, stale completions),
// live sandboxes and connected viewers. Each Metrics value owns its own
// registry so several hosts can coexist in one process (tests do this).
//
// All recording methods are nil-safe.
package monitoring
