package baseline_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"resonance/internal/baseline"
	"resonance/internal/mapping"
	"resonance/internal/store"
	"resonance/internal/testsupport"
)

type staticPredictions map[string]float64

func (p staticPredictions) LatestIndicatorScores(context.Context, int64) (map[string]float64, error) {
	return p, nil
}

type staticConfig mapping.EffectiveConfig

func (c staticConfig) EffectiveConfig(context.Context, int64) (mapping.EffectiveConfig, error) {
	return mapping.EffectiveConfig(c), nil
}

var fatigueConfig = staticConfig{
	"6_fatigue_loss_of_energy": {
		SeverityThreshold: 0.5,
		SmoothingFactor:   0.99,
		Metrics: map[string]mapping.MetricConfig{
			"f0_avg": {Weight: 0.25, Direction: mapping.DirectionNegative, ClippingThreshold: 3},
			"hnr":    {Weight: 0, Direction: mapping.DirectionNegative, ClippingThreshold: 3},
		},
	},
}

var testPopulation = baseline.Metrics{
	"f0_avg": {Mean: 165, Std: 35},
	"hnr":    {Mean: 18, Std: 4.5},
	"jitter": {Mean: 0.012, Std: 0.005},
}

func newManager(t *testing.T, predictions baseline.PredictionSource) (*baseline.Manager, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr, err := baseline.NewManager(st, predictions, fatigueConfig, testPopulation, cfg.Baseline, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr, st
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestLookupColdStartUsesPopulation(t *testing.T) {
	mgr, _ := newManager(t, nil)
	stat, ok, err := mgr.Lookup(context.Background(), 1, "f0_avg", time.Time{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || stat != testPopulation["f0_avg"] {
		t.Fatalf("expected population stat, got %+v ok=%v", stat, ok)
	}
	if _, ok, _ := mgr.Lookup(context.Background(), 1, "unknown_metric", time.Time{}); ok {
		t.Fatal("expected unknown metric to be absent")
	}
}

func TestLookupFallsBackThroughPartitions(t *testing.T) {
	mgr, st := newManager(t, nil)
	body := `{"user_id":4,"timestamp":"2024-01-01T00:00:00Z","schema_version":2,"context_partitions":{
		"general":{"description":"g","metrics":{"f0_avg":{"mean":150,"std":20},"hnr":{"mean":20,"std":3}}},
		"morning":{"description":"06:00 to 12:00","metrics":{"f0_avg":{"mean":140,"std":18}}},
		"evening":{"description":"18:00 to 24:00","metrics":{}}}}`
	testsupport.MustUpsertBaseline(t, st, 4, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2, body)

	ctx := context.Background()
	morning := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		metric string
		ts     time.Time
		want   baseline.Stat
	}{
		{"context partition", "f0_avg", morning, baseline.Stat{Mean: 140, Std: 18}},
		{"general when context lacks metric", "hnr", morning, baseline.Stat{Mean: 20, Std: 3}},
		{"general when context empty", "f0_avg", evening, baseline.Stat{Mean: 150, Std: 20}},
		{"population when user lacks metric", "jitter", morning, testPopulation["jitter"]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := mgr.Lookup(ctx, 4, tc.metric, tc.ts)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if !ok || got != tc.want {
				t.Fatalf("got %+v ok=%v, want %+v", got, ok, tc.want)
			}
		})
	}

	snapshot, key, err := mgr.Snapshot(ctx, 4, morning)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if key != baseline.ContextMorning {
		t.Fatalf("expected morning context, got %q", key)
	}
	wantMorning := baseline.Metrics{
		"f0_avg": {Mean: 140, Std: 18},
		"hnr":    {Mean: 20, Std: 3},
		"jitter": testPopulation["jitter"],
	}
	if diff := cmp.Diff(wantMorning, snapshot); diff != "" {
		t.Fatalf("morning snapshot mismatch (-want +got):\n%s", diff)
	}

	snapshot, key, err = mgr.Snapshot(ctx, 4, evening)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if key != baseline.ContextEvening {
		t.Fatalf("expected evening context, got %q", key)
	}
	wantEvening := baseline.Metrics{
		"f0_avg": {Mean: 150, Std: 20},
		"hnr":    {Mean: 20, Std: 3},
		"jitter": testPopulation["jitter"],
	}
	if diff := cmp.Diff(wantEvening, snapshot); diff != "" {
		t.Fatalf("evening snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFinetuneAdjustsContextAndGeneral(t *testing.T) {
	mgr, _ := newManager(t, staticPredictions{"6_fatigue_loss_of_energy": 0.5})
	ctx := context.Background()
	ts := time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC)

	res, err := mgr.Finetune(ctx, 9, baseline.Feedback{Scores: map[string]int{"6_fatigue_loss_of_energy": 3}, Timestamp: ts})
	if err != nil {
		t.Fatalf("Finetune: %v", err)
	}
	if !res.Updated || res.Context != baseline.ContextMorning {
		t.Fatalf("unexpected result: %+v", res)
	}
	// error = 3/3 - 0.5 = 0.5; adj = 0.5 * 35 * 0.2 * -1 * 0.25
	want := 165 - 0.875
	if !approx(res.Metrics["f0_avg"].Mean, want) {
		t.Fatalf("unexpected adjusted mean %v, want %v", res.Metrics["f0_avg"].Mean, want)
	}
	if _, ok := res.Metrics["hnr"]; ok {
		t.Fatal("zero-weight metric must not be adjusted")
	}

	doc, err := mgr.Document(ctx, 9)
	if err != nil || doc == nil {
		t.Fatalf("Document: %v (doc=%v)", err, doc)
	}
	if doc.SourceVersion != 2 {
		t.Fatalf("expected stored v2 document, got %d", doc.SourceVersion)
	}
	for _, key := range []baseline.ContextKey{baseline.ContextMorning, baseline.ContextGeneral} {
		stat := doc.Metrics(key)["f0_avg"]
		if !approx(stat.Mean, want) || stat.Std != 35 {
			t.Fatalf("%s partition not updated: %+v", key, stat)
		}
	}
	if got := doc.Partitions[baseline.ContextGeneral].Description; got != "Fallback baseline derived from all data" {
		t.Fatalf("unexpected general description %q", got)
	}
	if len(doc.Metrics(baseline.ContextEvening)) != 0 {
		t.Fatal("evening partition must stay empty")
	}
}

func TestFinetuneOlderReportUpdatesCurrentDocument(t *testing.T) {
	mgr, st := newManager(t, staticPredictions{"6_fatigue_loss_of_energy": 0.5})
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	current := day.Add(48 * time.Hour)
	body := `{"user_id":6,"schema_version":2,"context_partitions":{
		"general":{"description":"g","metrics":{"f0_avg":{"mean":150,"std":20}}},
		"morning":{"description":"m","metrics":{}},
		"evening":{"description":"e","metrics":{}}}}`
	testsupport.MustUpsertBaseline(t, st, 6, current, 2, body)

	reportedAt := day.Add(8 * time.Hour)
	res, err := mgr.Finetune(ctx, 6, baseline.Feedback{Scores: map[string]int{"6_fatigue_loss_of_energy": 3}, Timestamp: reportedAt})
	if err != nil {
		t.Fatalf("Finetune: %v", err)
	}
	// error = 3/3 - 0.5 = 0.5; adj = 0.5 * 20 * 0.2 * -1 * 0.25 = -0.5
	if !res.Updated || !approx(res.Metrics["f0_avg"].Mean, 149.5) {
		t.Fatalf("unexpected result: %+v", res)
	}

	stat, ok, err := mgr.Lookup(ctx, 6, "f0_avg", reportedAt)
	if err != nil || !ok {
		t.Fatalf("Lookup: %+v ok=%v err=%v", stat, ok, err)
	}
	if !approx(stat.Mean, 149.5) {
		t.Fatalf("fine-tuned mean not visible: %+v", stat)
	}
	rows, err := st.UserBaselines(ctx, 6)
	if err != nil {
		t.Fatalf("UserBaselines: %v", err)
	}
	if len(rows) != 1 || !rows[0].Timestamp.Equal(current) {
		t.Fatalf("expected the current document to be rewritten in place, got %+v", rows)
	}
}

func TestFinetuneWithoutHistoryIsNoop(t *testing.T) {
	mgr, st := newManager(t, staticPredictions{})
	res, err := mgr.Finetune(context.Background(), 2, baseline.Feedback{Scores: map[string]int{"6_fatigue_loss_of_energy": 3}, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("Finetune: %v", err)
	}
	if res.Updated {
		t.Fatal("expected no update without score history")
	}
	rec, err := st.LatestBaseline(context.Background(), 2)
	if err != nil {
		t.Fatalf("LatestBaseline: %v", err)
	}
	if rec != nil {
		t.Fatal("expected no baseline to be written")
	}
}

func TestFinetuneUpgradesFlatDocument(t *testing.T) {
	mgr, st := newManager(t, staticPredictions{"6_fatigue_loss_of_energy": 1.0})
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testsupport.MustUpsertBaseline(t, st, 5, old, 0,
		`{"user_id":5,"timestamp":"2024-01-01T00:00:00Z","metrics":{"f0_avg":{"mean":100,"std":10},"jitter":{"mean":0.02,"std":0.004}}}`)

	ts := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)
	res, err := mgr.Finetune(context.Background(), 5, baseline.Feedback{Scores: map[string]int{"6_fatigue_loss_of_energy": 0}, Timestamp: ts})
	if err != nil {
		t.Fatalf("Finetune: %v", err)
	}
	// error = 0 - 1 = -1; adj = -1 * 10 * 0.2 * -1 * 0.25 = +0.5
	if !approx(res.Metrics["f0_avg"].Mean, 100.5) {
		t.Fatalf("unexpected adjusted mean: %+v", res.Metrics)
	}

	doc, err := mgr.Document(context.Background(), 5)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	general := doc.Metrics(baseline.ContextGeneral)
	if general["jitter"].Mean != 0.02 {
		t.Fatalf("untouched legacy metric lost: %+v", general)
	}
	if got := doc.Partitions[baseline.ContextGeneral].Description; got != "Migrated from V1 flat baseline" {
		t.Fatalf("unexpected general description %q", got)
	}
	if !approx(doc.Metrics(baseline.ContextEvening)["f0_avg"].Mean, 100.5) {
		t.Fatalf("evening partition not updated: %+v", doc.Metrics(baseline.ContextEvening))
	}
}

func TestImportUpgradesAndBecomesCurrent(t *testing.T) {
	mgr, _ := newManager(t, nil)
	ctx := context.Background()
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	doc, err := mgr.Import(ctx, 8, ts, []byte(`{"metrics":{"f0_avg":{"mean":130,"std":15}}}`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if doc.UserID != 8 || len(doc.Partitions) != 3 {
		t.Fatalf("unexpected imported document: %+v", doc)
	}
	stat, ok, err := mgr.Lookup(ctx, 8, "f0_avg", time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC))
	if err != nil || !ok || stat.Mean != 130 {
		t.Fatalf("imported baseline not served: %+v ok=%v err=%v", stat, ok, err)
	}

	if _, err := mgr.Import(ctx, 8, ts, []byte(`{"metrics":{"f0_avg":{"mean":1,"std":-2}}}`)); err == nil {
		t.Fatal("expected negative std to be rejected")
	}
}
