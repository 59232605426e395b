package preflight

import (
	"context"

	"resonance/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Lock directory", cfg.LockDir()),
		CheckMappingDocument(cfg.Mapping.DefaultPath),
		CheckPopulationBaseline(cfg.Mapping.PopulationPath),
	}
	if ctx.Err() != nil {
		return results
	}
	return append(results, CheckAPIExposure(cfg.Paths.APIBind, cfg.Paths.APIToken))
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
