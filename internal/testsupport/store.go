package testsupport

import (
	"context"
	"testing"
	"time"

	"resonance/internal/config"
	"resonance/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustUpsertBaseline writes a raw baseline document for tests.
func MustUpsertBaseline(t testing.TB, st *store.Store, userID int64, ts time.Time, schemaVersion int, body string) *store.BaselineRecord {
	t.Helper()

	rec, err := st.UpsertBaseline(context.Background(), userID, ts, schemaVersion, []byte(body))
	if err != nil {
		t.Fatalf("store.UpsertBaseline: %v", err)
	}
	return rec
}

// MustInsertScore appends a raw indicator-score record for tests.
func MustInsertScore(t testing.TB, st *store.Store, userID int64, ts time.Time, body string) store.ScoreRecord {
	t.Helper()

	recs, err := st.InsertScores(context.Background(), []store.ScoreRecord{{UserID: userID, Timestamp: ts, Body: []byte(body)}})
	if err != nil {
		t.Fatalf("store.InsertScores: %v", err)
	}
	return recs[0]
}
