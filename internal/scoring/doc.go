// Package scoring derives smoothed indicator scores from standardized metric
// batches.
//
// Observations are standardized against the baseline for their own
// timestamp, grouped into buckets, and processed in ascending order. Each
// bucket yields an instantaneous weighted score per indicator, an EMA-smoothed
// score seeded from the previous record, a binary activation against the
// indicator's severity threshold, and a combined diagnostic signal that is
// suppressed during the learning window. Records are append-only.
package scoring
