// Package config loads, normalizes, and validates Resonance configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// RESONANCE_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: where the document store lives, which default mapping and
// population baseline documents to load, and the constants that drive
// scoring, baseline fine-tuning, and threshold calibration.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
