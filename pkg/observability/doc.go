// Package observability bundles the operational surface of crewdesk:
// structured slog logging, Prometheus metrics, health probes, and
// OpenTelemetry export.
//
// The server wires the pieces together at startup; the rest of the codebase
// only sees the Logger and the Metrics counters. Authorization decisions are
// fed into AuthzDecisionsTotal through an engine observer so the policy
// engine itself stays free of metrics imports.
package observability
