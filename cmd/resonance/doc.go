// Package main hosts the Resonance CLI entrypoint and command graph.
//
// The Cobra-based command tree opens the document store directly and calls
// the engine, so every operation the HTTP API offers is also available from a
// terminal: metric ingestion, score derivation, self-reports, baseline
// inspection and import, threshold and weight overrides, schema migration,
// and a foreground server. Per-user file locks inside the engine keep CLI
// writers from racing a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
