// Package baseline owns per-user statistical baselines.
//
// A baseline maps metric names to a mean and standard deviation. Stored
// documents come in two layouts: the legacy flat layout (schema 1) and the
// context-partitioned layout (schema 2) with general, morning, and evening
// partitions. Decode is the single boundary that upgrades legacy documents;
// every other piece of code works with the partitioned Document.
//
// The Manager resolves a time-of-day context for lookups, falls back from the
// context partition to general and then to the immutable population baseline,
// and fine-tunes stored baselines from self-report feedback.
package baseline
