package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resonance/internal/api"
	"resonance/internal/engine"
	"resonance/internal/logging"
	"resonance/internal/testsupport"
)

func newTestHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token), testsupport.WithLearningWindow(0))
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	eng, err := engine.New(cfg, st, logger)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	d, err := New(cfg, st, eng, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.api.server.Handler
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected request id header even on rejected requests")
	}

	w = do(t, h, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	status := decode[api.DaemonStatus](t, w)
	if status.StorePath == "" || len(status.Migrations) == 0 {
		t.Fatalf("unexpected status payload: %+v", status)
	}
}

func TestIngestDeriveAndScores(t *testing.T) {
	h := newTestHandler(t, "secret")

	w := do(t, h, http.MethodPost, "/api/users/1/metrics",
		`{"timestamp":"2026-03-02T08:00:00Z","metrics":{"f0_avg":165,"energy_mean":0.065,"rate_of_speech":4.2}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[api.IngestResponse](t, w).Stored; got != 3 {
		t.Fatalf("expected 3 stored, got %d", got)
	}

	w = do(t, h, http.MethodPost, "/api/users/1/derive", "")
	if w.Code != http.StatusOK {
		t.Fatalf("derive: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	derived := decode[api.ScoresResponse](t, w)
	if len(derived.Records) != 1 {
		t.Fatalf("expected one derived record, got %d", len(derived.Records))
	}
	if _, ok := derived.Records[0].Explanations["6_fatigue_loss_of_energy"]; !ok {
		t.Fatal("expected explanations on derived record")
	}

	w = do(t, h, http.MethodGet, "/api/users/1/scores?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("scores: expected 200, got %d", w.Code)
	}
	if got := decode[api.ScoresResponse](t, w); len(got.Records) != 1 || got.UserID != 1 {
		t.Fatalf("unexpected scores payload: %+v", got)
	}

	w = do(t, h, http.MethodPost, "/api/users/1/self-reports",
		`{"timestamp":"2026-03-02T10:00:00Z","scores":{"6_fatigue_loss_of_energy":2},"functionalImpact":{"label":"somewhat difficult"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("self-report: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.SelfReportResponse](t, w)
	if resp.ID == "" || !resp.BaselineUpdated || resp.BaselineContext != "morning" {
		t.Fatalf("unexpected self-report response: %+v", resp)
	}

	w = do(t, h, http.MethodGet, "/api/users/1/baseline?metric=f0_avg&timestamp=2026-03-02T09:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("baseline: expected 200, got %d", w.Code)
	}
	view := decode[api.BaselineResponse](t, w)
	if view.Context != "morning" || view.Stat == nil || view.Stat.Mean >= 165 {
		t.Fatalf("expected fine-tuned morning baseline, got %+v", view)
	}
}

func TestConfigUpdates(t *testing.T) {
	h := newTestHandler(t, "secret")

	w := do(t, h, http.MethodPut, "/api/users/2/config/thresholds/6_fatigue_loss_of_energy", `{"value":0.65}`)
	if w.Code != http.StatusOK {
		t.Fatalf("threshold: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cfg := decode[api.ConfigResponse](t, w)
	var found bool
	for _, ind := range cfg.Indicators {
		if ind.Key == "6_fatigue_loss_of_energy" {
			found = true
			if ind.SeverityThreshold != 0.65 {
				t.Fatalf("unexpected threshold %v", ind.SeverityThreshold)
			}
		}
	}
	if !found {
		t.Fatal("indicator missing from config response")
	}

	w = do(t, h, http.MethodPut, "/api/users/2/config/weights/6_fatigue_loss_of_energy/hnr", `{"value":0.3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("weight: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t, "secret")
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{"bad user id", http.MethodGet, "/api/users/abc/config", "", http.StatusBadRequest, ""},
		{"unknown indicator", http.MethodPut, "/api/users/1/config/thresholds/99_unknown", `{"value":0.5}`, http.StatusBadRequest, "validation"},
		{"missing value", http.MethodPut, "/api/users/1/config/thresholds/6_fatigue_loss_of_energy", `{}`, http.StatusBadRequest, ""},
		{"score out of range", http.MethodPost, "/api/users/1/self-reports", `{"scores":{"1_depressed_mood":9}}`, http.StatusBadRequest, "validation"},
		{"unknown metric", http.MethodGet, "/api/users/1/baseline?metric=nope", "", http.StatusNotFound, "not_found"},
		{"bad limit", http.MethodGet, "/api/users/1/scores?limit=-1", "", http.StatusBadRequest, ""},
		{"malformed body", http.MethodPost, "/api/users/1/metrics", `{`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, tc.method, tc.path, tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			resp := decode[api.ErrorResponse](t, w)
			if resp.Error == "" || resp.RequestID == "" {
				t.Fatalf("expected error and request id, got %+v", resp)
			}
			if tc.kind != "" && resp.Kind != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, resp.Kind)
			}
		})
	}
}
