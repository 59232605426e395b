// Package mapping resolves the effective per-user indicator configuration.
//
// A process-wide default document maps indicator keys to severity
// thresholds, smoothing factors, and the weighted metrics that contribute to
// each indicator. Users carry sparse override documents that are deep-merged
// on top of a copy of the default; the default itself is frozen at start-up
// and never aliased into a user's result.
//
// Overrides are persisted through the OverrideStore owned by this package's
// Resolver. Indicators unknown to the default document are ignored when an
// override is resolved.
package mapping
