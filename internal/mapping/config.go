package mapping

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Default values applied when a document omits or mangles a field.
const (
	DefaultSeverityThreshold = 0.5
	DefaultSmoothingFactor   = 0.99
	DefaultClipThreshold     = 3.0
)

// Direction describes how a metric's deviation contributes to an indicator.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionBoth     Direction = "both"
	DirectionAnomaly  Direction = "anomaly"
)

// Contribution applies the direction transform to a standardized value.
// Unrecognized directions behave as positive.
func (d Direction) Contribution(z float64) float64 {
	switch d {
	case DirectionNegative:
		return -z
	case DirectionBoth, DirectionAnomaly:
		return math.Abs(z)
	default:
		return z
	}
}

// Sign returns -1 for negative metrics and +1 otherwise.
func (d Direction) Sign() float64 {
	if d == DirectionNegative {
		return -1
	}
	return 1
}

// MetricConfig describes one metric's contribution to an indicator.
type MetricConfig struct {
	Weight            float64   `json:"weight"`
	Direction         Direction `json:"direction"`
	ClippingThreshold float64   `json:"clipping_threshold"`
}

// IndicatorConfig is the resolved configuration of one indicator.
type IndicatorConfig struct {
	Label             string                  `json:"label,omitempty"`
	SeverityThreshold float64                 `json:"severity_threshold"`
	SmoothingFactor   float64                 `json:"smoothing_factor"`
	CriticalMetrics   []string                `json:"critical_metrics,omitempty"`
	Metrics           map[string]MetricConfig `json:"metrics"`
}

// MetricNames returns the indicator's metric names in sorted order.
func (c IndicatorConfig) MetricNames() []string {
	names := make([]string, 0, len(c.Metrics))
	for name := range c.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EffectiveConfig maps indicator keys to their resolved configuration.
type EffectiveConfig map[string]IndicatorConfig

// Keys returns indicator keys in sorted order.
func (c EffectiveConfig) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ClipThreshold returns the clipping threshold configured for metric. The first
// indicator (in key order) that references the metric wins.
func (c EffectiveConfig) ClipThreshold(metric string) float64 {
	for _, key := range c.Keys() {
		if mc, ok := c[key].Metrics[metric]; ok {
			return mc.ClippingThreshold
		}
	}
	return DefaultClipThreshold
}

// MetricNames returns every metric referenced by any indicator, sorted.
func (c EffectiveConfig) MetricNames() []string {
	seen := map[string]struct{}{}
	for _, ind := range c {
		for name := range ind.Metrics {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve converts a merged document into typed configuration. Only
// indicators present in known are kept; a nil known keeps every indicator.
func resolve(doc Document, known map[string]struct{}) EffectiveConfig {
	out := make(EffectiveConfig, len(doc))
	for key, raw := range doc {
		if known != nil {
			if _, ok := known[key]; !ok {
				continue
			}
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out[key] = resolveIndicator(obj)
	}
	return out
}

func resolveIndicator(obj map[string]any) IndicatorConfig {
	ind := IndicatorConfig{
		SeverityThreshold: DefaultSeverityThreshold,
		SmoothingFactor:   DefaultSmoothingFactor,
		Metrics:           map[string]MetricConfig{},
	}
	if label, ok := obj["label"].(string); ok {
		ind.Label = strings.TrimSpace(label)
	}
	if v, ok := toFloat(obj["severity_threshold"]); ok {
		ind.SeverityThreshold = v
	}
	if v, ok := toFloat(obj["smoothing_factor"]); ok && v > 0 && v < 1 {
		ind.SmoothingFactor = v
	}
	if list, ok := obj["critical_metrics"].([]any); ok {
		ind.CriticalMetrics = make([]string, 0, len(list))
		for _, item := range list {
			if name, ok := item.(string); ok && strings.TrimSpace(name) != "" {
				ind.CriticalMetrics = append(ind.CriticalMetrics, strings.TrimSpace(name))
			}
		}
	}
	metrics, _ := obj["metrics"].(map[string]any)
	for name, raw := range metrics {
		props, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		mc := MetricConfig{Direction: DirectionPositive, ClippingThreshold: DefaultClipThreshold}
		if v, ok := toFloat(props["weight"]); ok {
			mc.Weight = v
		}
		if dir, ok := props["direction"].(string); ok && strings.TrimSpace(dir) != "" {
			mc.Direction = Direction(strings.ToLower(strings.TrimSpace(dir)))
		}
		if v, ok := toFloat(props["clipping_threshold"]); ok && v > 0 {
			mc.ClippingThreshold = v
		}
		ind.Metrics[name] = mc
	}
	return ind
}

func toFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
