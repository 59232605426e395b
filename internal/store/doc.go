// Package store persists Resonance documents in SQLite and exposes narrow
// accessors for each owning component.
//
// The Store manages the database connection, pragmas, embedded schema
// migrations, and SQLITE_BUSY retries. Each table belongs to exactly one
// engine component: baselines to the baseline manager, overrides to the
// mapping resolver, indicator scores to the scorer, and observations plus
// self-reports to the ingestion paths. Bodies are stored as JSON so owners
// control their own document layout and versioning; the store only indexes
// user, timestamp, and schema version.
//
// Indicator-score and self-report rows are append-only logs keyed by
// (user_id, timestamp). Baselines are upserted on the same key.
package store
