package scoring

import (
	"strings"

	"resonance/internal/mapping"
)

// Instantaneous returns Σ weight·f(direction, z) over the indicator's
// metrics. Metrics missing from z contribute nothing.
func Instantaneous(ind mapping.IndicatorConfig, z map[string]float64) float64 {
	var total float64
	for _, name := range ind.MetricNames() {
		mc := ind.Metrics[name]
		if mc.Weight == 0 {
			continue
		}
		total += mc.Weight * mc.Direction.Contribution(z[name])
	}
	return total
}

// Smooth applies the exponential moving average (1-α)·current + α·previous.
func Smooth(alpha, current, previous float64) float64 {
	return (1-alpha)*current + alpha*previous
}

// Binarize returns 1 when score reaches threshold.
func Binarize(score, threshold float64) int {
	if score >= threshold {
		return 1
	}
	return 0
}

// Rule is the diagnostic combination rule.
type Rule struct {
	MinActive    int
	CorePrefixes []string
}

// Signal reports whether at least MinActive indicators are active and at
// least one active indicator carries a core prefix.
func (r Rule) Signal(binary map[string]int) bool {
	active := 0
	core := false
	for key, value := range binary {
		if value != 1 {
			continue
		}
		active++
		for _, prefix := range r.CorePrefixes {
			if strings.HasPrefix(key, prefix) {
				core = true
				break
			}
		}
	}
	return active >= r.MinActive && core
}

// Step evaluates one bucket for every configured indicator. previous holds
// the last smoothed scores; indicators absent from previous start at zero.
func Step(effective mapping.EffectiveConfig, z, previous map[string]float64) (map[string]float64, map[string]int) {
	smoothed := make(map[string]float64, len(effective))
	binary := make(map[string]int, len(effective))
	for key, ind := range effective {
		s := Smooth(ind.SmoothingFactor, Instantaneous(ind, z), previous[key])
		smoothed[key] = s
		binary[key] = Binarize(s, ind.SeverityThreshold)
	}
	return smoothed, binary
}
