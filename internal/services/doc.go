// Package services defines shared utilities consumed by the scoring engine,
// the HTTP API, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp user IDs, operation names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent classifications (validation, not found, storage).
//
// Use these helpers when wiring new engine operations so operational
// behaviour (error handling, observability) stays uniform across surfaces.
package services
