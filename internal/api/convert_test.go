package api_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"resonance/internal/api"
	"resonance/internal/baseline"
	"resonance/internal/calibration"
	"resonance/internal/engine"
	"resonance/internal/mapping"
	"resonance/internal/scoring"
	"resonance/internal/services"
)

func TestFunctionalImpactAcceptsStringOrObject(t *testing.T) {
	cases := map[string]string{
		`{"scores":{},"functionalImpact":"somewhat difficult"}`:                 "somewhat difficult",
		`{"scores":{},"functionalImpact":{"label":" very difficult ","x":1}}`: "very difficult",
		`{"scores":{},"functionalImpact":null}`:                                "",
		`{"scores":{}}`:                                                        "",
	}
	for body, want := range cases {
		var req api.SelfReportRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if string(req.FunctionalImpact) != want {
			t.Fatalf("%s: got %q want %q", body, req.FunctionalImpact, want)
		}
	}
	var req api.SelfReportRequest
	if err := json.Unmarshal([]byte(`{"functionalImpact":5}`), &req); err == nil {
		t.Fatal("expected error for numeric functional impact")
	}
}

func TestSelfReportDefaultsTotal(t *testing.T) {
	req := api.SelfReportRequest{
		Timestamp: "2026-03-02 08:00:00",
		Scores:    map[string]int{"1_depressed_mood": 2, "6_fatigue_loss_of_energy": 1},
	}
	report, err := req.SelfReport()
	if err != nil {
		t.Fatalf("SelfReport: %v", err)
	}
	if report.TotalScore != 3 {
		t.Fatalf("expected summed total, got %d", report.TotalScore)
	}
	if !report.Timestamp.Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", report.Timestamp)
	}

	req.Timestamp = "yesterday"
	if _, err := req.SelfReport(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMetricsRequestFlattens(t *testing.T) {
	req := api.MetricsRequest{
		Timestamp: "2026-03-02T08:00:00Z",
		Metrics:   map[string]float64{"jitter": 0.01, "f0_avg": 150},
		Observations: []api.Observation{
			{Metric: "hnr", Value: 12},
			{Timestamp: "2026-03-02T20:00:00Z", Metric: "hnr", Value: 11},
		},
	}
	got, err := req.ToObservations()
	if err != nil {
		t.Fatalf("Observations: %v", err)
	}
	morning := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	want := []engine.Observation{
		{Timestamp: morning, Metric: "f0_avg", Value: 150},
		{Timestamp: morning, Metric: "jitter", Value: 0.01},
		{Timestamp: morning, Metric: "hnr", Value: 12},
		{Timestamp: morning.Add(12 * time.Hour), Metric: "hnr", Value: 11},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("observations mismatch (-want +got):\n%s", diff)
	}

	if _, err := (api.MetricsRequest{Metrics: map[string]float64{"f0_avg": 1}}).ToObservations(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without timestamp, got %v", err)
	}
}

func TestFromEffectiveConfigOrdersIndicators(t *testing.T) {
	cfg := mapping.EffectiveConfig{
		"2_loss_of_interest": {SeverityThreshold: 0.5, Metrics: map[string]mapping.MetricConfig{
			"f0_std": {Weight: 0.35, Direction: mapping.DirectionNegative, ClippingThreshold: 3},
		}},
		"1_depressed_mood": {Label: "depressed mood", SeverityThreshold: 0.6},
	}
	resp := api.FromEffectiveConfig(9, cfg)
	if len(resp.Indicators) != 2 || resp.Indicators[0].Key != "1_depressed_mood" {
		t.Fatalf("unexpected order: %+v", resp.Indicators)
	}
	if resp.Indicators[0].DisplayName != "Depressed Mood" {
		t.Fatalf("unexpected display name %q", resp.Indicators[0].DisplayName)
	}
	if got := resp.Indicators[1].Metrics["f0_std"].Direction; got != "negative" {
		t.Fatalf("unexpected direction %q", got)
	}
}

func TestFromSubmission(t *testing.T) {
	res := engine.SubmissionResult{
		ID:       "abc",
		Finetune: baseline.FinetuneResult{Updated: true, Context: baseline.ContextEvening},
		Calibration: []calibration.Decision{{
			Indicator: "6_fatigue_loss_of_energy", Action: calibration.ActionRaised,
			Threshold: 0.5, NewThreshold: 0.55, PassiveScore: 0.6, Passive: true,
		}},
	}
	got := api.FromSubmission(res)
	want := api.SelfReportResponse{
		ID:              "abc",
		BaselineUpdated: true,
		BaselineContext: "evening",
		Calibration: []api.CalibrationDecision{{
			Indicator: "6_fatigue_loss_of_energy", Action: "raised",
			Threshold: 0.5, NewThreshold: 0.55, PassiveScore: 0.6, Passive: true,
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRecordsNeverNil(t *testing.T) {
	if got := api.FromRecords(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
	rec := scoring.Record{Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), MDDSignal: true}
	if got := api.FromRecord(rec).Timestamp; got != "2026-03-02T08:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", got)
	}
}
