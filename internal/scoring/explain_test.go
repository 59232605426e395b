package scoring_test

import (
	"testing"

	"resonance/internal/mapping"
	"resonance/internal/scoring"
)

var fatigue = mapping.IndicatorConfig{
	SeverityThreshold: 0.5,
	CriticalMetrics:   []string{"f0_avg", "energy_mean", "rate_of_speech"},
	Metrics: map[string]mapping.MetricConfig{
		"f0_avg":         {Weight: 0.25, Direction: mapping.DirectionNegative},
		"energy_mean":    {Weight: 0.35, Direction: mapping.DirectionNegative},
		"rate_of_speech": {Weight: 0.25, Direction: mapping.DirectionNegative},
		"hnr":            {Weight: 0.15, Direction: mapping.DirectionNegative},
	},
}

func TestExplainFullData(t *testing.T) {
	z := map[string]float64{"f0_avg": -2.5, "energy_mean": -1.2, "rate_of_speech": 0.1, "hnr": -0.3}
	exp := scoring.ExplainIndicator(fatigue, z, 0.72)
	if exp.DataQuality != scoring.QualityFull || exp.Confidence != 1 {
		t.Fatalf("unexpected quality %q confidence %v", exp.DataQuality, exp.Confidence)
	}
	want := "Score significantly elevated (0.72) due to: pitch (F0) is significantly reduced (-2.5σ); vocal energy is reduced (-1.2σ)."
	if exp.Text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", exp.Text, want)
	}
	if len(exp.TopContributors) != 3 {
		t.Fatalf("expected three contributors, got %d", len(exp.TopContributors))
	}
	if top := exp.TopContributors[0]; top.Metric != "f0_avg" || top.Contribution != 0.625 || top.FriendlyName != "pitch (F0)" {
		t.Fatalf("unexpected top contributor: %+v", top)
	}
}

func TestExplainPartialDataNotesMissingCritical(t *testing.T) {
	z := map[string]float64{"f0_avg": 0.8, "hnr": 0.2}
	exp := scoring.ExplainIndicator(fatigue, z, 0.1)
	// availability 2/4, critical 1/3: 0.6*0.5 + 0.4*0.333
	if exp.Confidence != 0.43 || exp.DataQuality != scoring.QualityPartial {
		t.Fatalf("unexpected confidence %v quality %q", exp.Confidence, exp.DataQuality)
	}
	want := "Score within normal range (0.10). Contributing factors: pitch (F0) is slightly elevated; voice clarity (HNR) is near baseline. Note: vocal energy, speech rate data unavailable."
	if exp.Text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", exp.Text, want)
	}
	if len(exp.MissingMetrics) != 2 {
		t.Fatalf("expected two missing metrics, got %v", exp.MissingMetrics)
	}
}

func TestExplainInsufficientAndEmpty(t *testing.T) {
	exp := scoring.ExplainIndicator(fatigue, map[string]float64{}, 0)
	if exp.DataQuality != scoring.QualityInsufficient {
		t.Fatalf("expected insufficient quality, got %q", exp.DataQuality)
	}
	if exp.Text != "Insufficient acoustic data for reliable assessment. Key metrics unavailable." {
		t.Fatalf("unexpected text %q", exp.Text)
	}

	empty := scoring.ExplainIndicator(mapping.IndicatorConfig{Metrics: map[string]mapping.MetricConfig{}}, map[string]float64{"f0_avg": 1}, 0)
	if empty.Confidence != 1 || empty.Text != "No significant metric contributions detected." {
		t.Fatalf("unexpected explanation for indicator without metrics: %+v", empty)
	}
}

func TestExplainAnomalyPhrase(t *testing.T) {
	ind := mapping.IndicatorConfig{CriticalMetrics: []string{}, Metrics: map[string]mapping.MetricConfig{
		"energy_std": {Weight: 1, Direction: mapping.DirectionAnomaly},
	}}
	exp := scoring.ExplainIndicator(ind, map[string]float64{"energy_std": -1.75}, 0.55)
	want := "Score elevated (0.55) due to: energy variability shows deviation (1.8σ)."
	if exp.Text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", exp.Text, want)
	}
}

func TestFriendlyMetricNameFallback(t *testing.T) {
	if got := scoring.FriendlyMetricName("breath_rate"); got != "breath rate" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
