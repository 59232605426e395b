// Package engine is the orchestration facade over configuration, baselines,
// scoring, calibration, and schema migration.
//
// Every write that follows a read-modify-write sequence for a user (score
// derivation, self-report processing, override updates) runs under a
// per-user lock: an in-process mutex plus an advisory file lock, so CLI
// invocations and the daemon never interleave updates for the same user.
package engine
