// Package api defines wire-format types and converters for the HTTP API
// layer. It translates engine results into transport-friendly DTOs so clients
// can render them without coupling to internal types.
//
// # Key Types
//
// ConfigResponse: a user's effective indicator configuration with display
// labels.
//
// BaselineResponse: the resolved baseline context and either one metric's
// statistics or the full metric map.
//
// MetricsRequest: raw observations, either as a list or as one timestamp with
// a metric map.
//
// SelfReportRequest/SelfReportResponse: questionnaire submissions and the
// baseline and threshold changes they produced.
//
// ScoreRecord: one derived indicator-score batch including explanations.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Explanations are passed through in their
// stored snake_case layout so the API and the store agree on one shape.
// Timestamps use RFC3339 with milliseconds in UTC. Request timestamps accept
// any layout understood by baseline.ParseTimestamp.
package api
