package main

import (
	"fmt"
	"log/slog"

	"resonance/internal/config"
	"resonance/internal/daemon"
	"resonance/internal/engine"
	"resonance/internal/store"
)

// buildDaemon opens the store and wires the engine and daemon. The returned
// daemon owns the store.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	eng, err := engine.New(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	d, err := daemon.New(cfg, st, eng, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}
