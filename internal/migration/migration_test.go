package migration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"resonance/internal/baseline"
	"resonance/internal/migration"
	"resonance/internal/store"
	"resonance/internal/testsupport"
)

const legacyBody = `{"user_id":3,"timestamp":"2024-01-01T00:00:00Z","metrics":{"f0_avg":{"mean":121.5,"std":11.25},"jitter":{"mean":0.013,"std":0.004}}}`

func TestMigrateRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := testsupport.MustUpsertBaseline(t, st, 3, ts, 0, legacyBody)

	original, err := baseline.Decode([]byte(legacyBody), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	m := migration.New(st, nil)
	report, err := m.MigrateToV2(ctx, migration.Options{})
	if err != nil {
		t.Fatalf("MigrateToV2: %v", err)
	}
	if report.Migrated != 1 || report.Errors() != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	latest, err := st.LatestBaseline(ctx, 3)
	if err != nil {
		t.Fatalf("LatestBaseline: %v", err)
	}
	if latest.ID != rec.ID || latest.SchemaVersion != 2 {
		t.Fatalf("expected in-place v2 rewrite, got id=%d version=%d", latest.ID, latest.SchemaVersion)
	}
	upgraded, err := baseline.Decode(latest.Body, latest.SchemaVersion)
	if err != nil {
		t.Fatalf("Decode v2: %v", err)
	}
	if len(upgraded.Metrics(baseline.ContextMorning)) != 0 || len(upgraded.Metrics(baseline.ContextEvening)) != 0 {
		t.Fatal("expected empty context placeholders")
	}

	again, err := m.MigrateToV2(ctx, migration.Options{})
	if err != nil {
		t.Fatalf("second MigrateToV2: %v", err)
	}
	if again.Scanned != 0 {
		t.Fatalf("expected idempotent rerun, scanned %d", again.Scanned)
	}

	back, err := m.RollbackToV1(ctx, migration.Options{})
	if err != nil {
		t.Fatalf("RollbackToV1: %v", err)
	}
	if back.Migrated != 1 {
		t.Fatalf("unexpected rollback report: %+v", back)
	}
	latest, err = st.LatestBaseline(ctx, 3)
	if err != nil {
		t.Fatalf("LatestBaseline: %v", err)
	}
	if latest.SchemaVersion != 0 {
		t.Fatalf("expected legacy document without version, got %d", latest.SchemaVersion)
	}
	restored, err := baseline.Decode(latest.Body, latest.SchemaVersion)
	if err != nil {
		t.Fatalf("Decode restored: %v", err)
	}
	if diff := cmp.Diff(original.Metrics(baseline.ContextGeneral), restored.Metrics(baseline.ContextGeneral)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrateDryRunLeavesDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.MustUpsertBaseline(t, st, 3, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, legacyBody)

	report, err := migration.New(st, nil).MigrateToV2(context.Background(), migration.Options{DryRun: true})
	if err != nil {
		t.Fatalf("MigrateToV2: %v", err)
	}
	if report.Migrated != 1 || !report.DryRun {
		t.Fatalf("unexpected report: %+v", report)
	}
	pending, err := st.BaselinesBelowVersion(context.Background(), 2)
	if err != nil {
		t.Fatalf("BaselinesBelowVersion: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("dry run must not rewrite documents, %d still pending", len(pending))
	}
}

type failingStore struct {
	records []store.BaselineRecord
}

func (f *failingStore) BaselinesBelowVersion(context.Context, int) ([]store.BaselineRecord, error) {
	return f.records, nil
}

func (f *failingStore) BaselinesAtVersion(context.Context, int) ([]store.BaselineRecord, error) {
	return nil, nil
}

func (f *failingStore) ReplaceBaseline(_ context.Context, id int64, _ int, _ []byte) error {
	if id == 2 {
		return errors.New("disk full")
	}
	return nil
}

func TestMigrateCountsPerDocumentErrors(t *testing.T) {
	fs := &failingStore{records: []store.BaselineRecord{
		{ID: 1, UserID: 1, Body: []byte(legacyBody)},
		{ID: 2, UserID: 2, Body: []byte(legacyBody)},
		{ID: 3, UserID: 3, Body: []byte(`{not json`)},
		{ID: 4, UserID: 4, Body: []byte(legacyBody)},
	}}
	report, err := migration.New(fs, nil).MigrateToV2(context.Background(), migration.Options{})
	if err != nil {
		t.Fatalf("MigrateToV2: %v", err)
	}
	if report.Migrated != 2 || report.Errors() != 2 {
		t.Fatalf("expected 2 migrated and 2 errors, got %+v", report)
	}
	if report.Failures[0].ID != 2 || report.Failures[1].ID != 3 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
}
