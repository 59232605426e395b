// Package standardize converts raw metric values into clipped z-scores
// against a user's baseline.
package standardize

import (
	"context"
	"math"
	"time"

	"resonance/internal/baseline"
	"resonance/internal/mapping"
)

// MinStd floors the standard deviation used as a divisor.
const MinStd = 1e-6

// BaselineSource returns every baseline metric visible to a user at ts.
type BaselineSource interface {
	Snapshot(ctx context.Context, userID int64, ts time.Time) (baseline.Metrics, baseline.ContextKey, error)
}

// ConfigSource resolves the effective indicator configuration for a user.
type ConfigSource interface {
	EffectiveConfig(ctx context.Context, userID int64) (mapping.EffectiveConfig, error)
}

// ZScore standardizes value against stat and clips the result to
// [-clip, clip]. Missing baselines, non-positive deviations, and non-finite
// inputs yield zero.
func ZScore(value float64, stat baseline.Stat, ok bool, clip float64) float64 {
	if !ok || !finite(value) || !finite(stat.Mean) || !finite(stat.Std) || stat.Std <= 0 {
		return 0
	}
	z := (value - stat.Mean) / math.Max(stat.Std, MinStd)
	return Clip(z, clip)
}

// Clip bounds z to [-limit, limit] while preserving its sign. A non-positive
// limit falls back to the default clipping threshold.
func Clip(z, limit float64) float64 {
	if !finite(z) {
		return 0
	}
	if limit <= 0 || !finite(limit) {
		limit = mapping.DefaultClipThreshold
	}
	if math.Abs(z) <= limit {
		return z
	}
	return math.Copysign(limit, z)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Standardizer resolves baselines and clipping thresholds for users.
type Standardizer struct {
	baselines BaselineSource
	configs   ConfigSource
}

// New returns a Standardizer.
func New(baselines BaselineSource, configs ConfigSource) *Standardizer {
	return &Standardizer{baselines: baselines, configs: configs}
}

// Standardize returns the clipped z-score of one raw value.
func (s *Standardizer) Standardize(ctx context.Context, userID int64, metric string, value float64, ts time.Time) (float64, error) {
	out, err := s.Batch(ctx, userID, map[string]float64{metric: value}, ts)
	if err != nil {
		return 0, err
	}
	return out[metric], nil
}

// Batch standardizes a set of raw values observed at ts, loading the
// baseline and the effective configuration once.
func (s *Standardizer) Batch(ctx context.Context, userID int64, values map[string]float64, ts time.Time) (map[string]float64, error) {
	effective, err := s.configs.EffectiveConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshot, _, err := s.baselines.Snapshot(ctx, userID, ts)
	if err != nil {
		return nil, err
	}
	return Apply(values, snapshot, effective), nil
}

// Apply standardizes values against a preloaded baseline snapshot.
func Apply(values map[string]float64, snapshot baseline.Metrics, effective mapping.EffectiveConfig) map[string]float64 {
	out := make(map[string]float64, len(values))
	for metric, value := range values {
		stat, ok := snapshot[metric]
		out[metric] = ZScore(value, stat, ok, effective.ClipThreshold(metric))
	}
	return out
}
