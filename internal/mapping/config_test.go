package mapping_test

import (
	"testing"

	"resonance/internal/mapping"
)

func TestDirectionContribution(t *testing.T) {
	cases := []struct {
		dir  mapping.Direction
		z    float64
		want float64
	}{
		{mapping.DirectionPositive, 1.5, 1.5},
		{mapping.DirectionNegative, 1.5, -1.5},
		{mapping.DirectionBoth, -2, 2},
		{mapping.DirectionAnomaly, -0.5, 0.5},
		{mapping.Direction("sideways"), -1, -1},
	}
	for _, tc := range cases {
		if got := tc.dir.Contribution(tc.z); got != tc.want {
			t.Fatalf("%s.Contribution(%v) = %v, want %v", tc.dir, tc.z, got, tc.want)
		}
	}
	if mapping.DirectionNegative.Sign() != -1 || mapping.Direction("").Sign() != 1 {
		t.Fatal("unexpected direction sign")
	}
}

func TestClipThresholdFirstMatchInKeyOrder(t *testing.T) {
	cfg := mapping.EffectiveConfig{
		"b_second": {Metrics: map[string]mapping.MetricConfig{"energy_std": {ClippingThreshold: 1.0}}},
		"a_first":  {Metrics: map[string]mapping.MetricConfig{"energy_std": {ClippingThreshold: 2.5}}},
	}
	if got := cfg.ClipThreshold("energy_std"); got != 2.5 {
		t.Fatalf("expected first indicator in key order to win, got %v", got)
	}
	if got := cfg.ClipThreshold("missing"); got != mapping.DefaultClipThreshold {
		t.Fatalf("expected default clip threshold, got %v", got)
	}
}

func TestMergeIsRecursiveAndNonDestructive(t *testing.T) {
	base := mapping.Document{
		"x": map[string]any{"a": 1.0, "nested": map[string]any{"k": "v", "j": 2.0}},
		"y": 3.0,
	}
	override := mapping.Document{
		"x": map[string]any{"nested": map[string]any{"k": "w"}},
		"z": map[string]any{"new": true},
	}
	merged := mapping.Merge(base, override)

	nested := merged["x"].(map[string]any)["nested"].(map[string]any)
	if nested["k"] != "w" || nested["j"] != 2.0 {
		t.Fatalf("unexpected nested merge: %#v", nested)
	}
	if merged["y"] != 3.0 || merged["z"] == nil {
		t.Fatalf("unexpected merge result: %#v", merged)
	}
	if base["x"].(map[string]any)["nested"].(map[string]any)["k"] != "v" {
		t.Fatal("merge mutated base document")
	}
	nested["k"] = "mutated"
	if override["x"].(map[string]any)["nested"].(map[string]any)["k"] != "w" {
		t.Fatal("merge result aliases override document")
	}
}

func TestMetricNamesUnion(t *testing.T) {
	cfg := mapping.EffectiveConfig{
		"a": {Metrics: map[string]mapping.MetricConfig{"f0_avg": {}, "jitter": {}}},
		"b": {Metrics: map[string]mapping.MetricConfig{"f0_avg": {}, "hnr": {}}},
	}
	got := cfg.MetricNames()
	if len(got) != 3 || got[0] != "f0_avg" || got[1] != "hnr" || got[2] != "jitter" {
		t.Fatalf("unexpected metric names %v", got)
	}
	if names := cfg["a"].MetricNames(); len(names) != 2 || names[0] != "f0_avg" {
		t.Fatalf("unexpected indicator metric names %v", names)
	}
}

func TestDisplayName(t *testing.T) {
	if got := mapping.DisplayName("6_fatigue_loss_of_energy", mapping.IndicatorConfig{}); got != "Fatigue Loss Of Energy" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := mapping.DisplayName("1_depressed_mood", mapping.IndicatorConfig{Label: "depressed mood"}); got != "Depressed Mood" {
		t.Fatalf("label should win, got %q", got)
	}
	if got := mapping.DisplayName("custom", mapping.IndicatorConfig{}); got != "Custom" {
		t.Fatalf("unexpected display name %q", got)
	}
}
