// Package daemon coordinates the long-running Resonance process.
//
// It wires configuration, the document store, and the engine into a single
// lifecycle with flock-based locking to prevent multiple instances, and serves
// the HTTP API. Handlers decode requests into api DTOs, call the engine, and
// map service error markers onto status codes.
//
// Keep orchestration logic here: scoring, baseline, and calibration rules live
// in their own packages while the daemon focuses on startup, shutdown, and
// request plumbing.
package daemon
