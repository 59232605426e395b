package api

import (
	"fmt"
	"strings"
	"time"

	"resonance/internal/baseline"
	"resonance/internal/calibration"
	"resonance/internal/engine"
	"resonance/internal/mapping"
	"resonance/internal/scoring"
	"resonance/internal/services"
	"resonance/internal/store"
)

// FormatTime renders t for API payloads.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an optional request timestamp. Empty input yields the zero
// time.
func ParseTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	ts, ok := baseline.ParseTimestamp(value)
	if !ok {
		return time.Time{}, services.Wrap(services.ErrValidation, "api", "parse request", fmt.Sprintf("%s %q is not a recognised timestamp", field, value), nil)
	}
	return ts, nil
}

// FromEffectiveConfig converts a resolved configuration, ordering indicators
// by key.
func FromEffectiveConfig(userID int64, cfg mapping.EffectiveConfig) ConfigResponse {
	resp := ConfigResponse{UserID: userID, Indicators: make([]IndicatorConfig, 0, len(cfg))}
	for _, key := range cfg.Keys() {
		ind := cfg[key]
		metrics := make(map[string]MetricConfig, len(ind.Metrics))
		for name, m := range ind.Metrics {
			metrics[name] = MetricConfig{Weight: m.Weight, Direction: string(m.Direction), ClippingThreshold: m.ClippingThreshold}
		}
		resp.Indicators = append(resp.Indicators, IndicatorConfig{
			Key:               key,
			DisplayName:       mapping.DisplayName(key, ind),
			SeverityThreshold: ind.SeverityThreshold,
			SmoothingFactor:   ind.SmoothingFactor,
			CriticalMetrics:   ind.CriticalMetrics,
			Metrics:           metrics,
		})
	}
	return resp
}

// FromBaselineView converts a baseline lookup.
func FromBaselineView(view engine.BaselineView) BaselineResponse {
	resp := BaselineResponse{
		UserID:    view.UserID,
		Context:   string(view.Context),
		ColdStart: view.ColdStart,
		Metric:    view.Metric,
	}
	if view.Stat != nil {
		resp.Stat = &BaselineStat{Mean: view.Stat.Mean, Std: view.Stat.Std}
	}
	if view.Metrics != nil {
		resp.Metrics = make(map[string]BaselineStat, len(view.Metrics))
		for name, stat := range view.Metrics {
			resp.Metrics[name] = BaselineStat{Mean: stat.Mean, Std: stat.Std}
		}
	}
	return resp
}

// ToObservations flattens a metrics request. Every observation needs a
// timestamp, either its own or the request's.
func (r MetricsRequest) ToObservations() ([]engine.Observation, error) {
	shared, err := ParseTime("timestamp", r.Timestamp)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Observation, 0, len(r.Metrics)+len(r.Observations))
	if len(r.Metrics) > 0 && shared.IsZero() {
		return nil, services.Wrap(services.ErrValidation, "api", "parse request", "timestamp is required with metrics", nil)
	}
	for _, name := range sortedKeys(r.Metrics) {
		out = append(out, engine.Observation{Timestamp: shared, Metric: name, Value: r.Metrics[name]})
	}
	for i, obs := range r.Observations {
		ts, err := ParseTime(fmt.Sprintf("observations[%d].timestamp", i), obs.Timestamp)
		if err != nil {
			return nil, err
		}
		if ts.IsZero() {
			ts = shared
		}
		out = append(out, engine.Observation{Timestamp: ts, Metric: obs.Metric, Value: obs.Value})
	}
	return out, nil
}

// SelfReport converts the request into an engine submission.
func (r SelfReportRequest) SelfReport() (engine.SelfReport, error) {
	ts, err := ParseTime("timestamp", r.Timestamp)
	if err != nil {
		return engine.SelfReport{}, err
	}
	total := r.TotalScore
	if total == 0 {
		for _, v := range r.Scores {
			total += v
		}
	}
	return engine.SelfReport{
		Scores:           r.Scores,
		TotalScore:       total,
		FunctionalImpact: string(r.FunctionalImpact),
		Timestamp:        ts,
	}, nil
}

// FromRecord converts a derived score record.
func FromRecord(rec scoring.Record) ScoreRecord {
	return ScoreRecord{
		Timestamp:       FormatTime(rec.Timestamp),
		IndicatorScores: rec.IndicatorScores,
		BinaryScores:    rec.BinaryScores,
		MDDSignal:       rec.MDDSignal,
		LearningMode:    rec.LearningMode,
		Explanations:    rec.Explanations,
	}
}

// FromRecords converts a slice of records, never returning nil.
func FromRecords(recs []scoring.Record) []ScoreRecord {
	out := make([]ScoreRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromDecision converts one calibration decision.
func FromDecision(d calibration.Decision) CalibrationDecision {
	return CalibrationDecision{
		Indicator:    d.Indicator,
		Action:       string(d.Action),
		PassiveScore: d.PassiveScore,
		Threshold:    d.Threshold,
		NewThreshold: d.NewThreshold,
		Passive:      d.Passive,
		Active:       d.Active,
		Reason:       d.Reason,
	}
}

// FromSubmission converts a self-report result.
func FromSubmission(res engine.SubmissionResult) SelfReportResponse {
	resp := SelfReportResponse{
		ID:              res.ID,
		BaselineUpdated: res.Finetune.Updated,
		FinetuneReason:  res.Finetune.Reason,
		Calibration:     make([]CalibrationDecision, 0, len(res.Calibration)),
	}
	if res.Finetune.Updated {
		resp.BaselineContext = string(res.Finetune.Context)
	}
	for _, d := range res.Calibration {
		resp.Calibration = append(resp.Calibration, FromDecision(d))
	}
	return resp
}

// FromStats converts store row counts.
func FromStats(stats store.Stats) StoreCounts {
	return StoreCounts{
		Baselines:    stats.Baselines,
		Overrides:    stats.Overrides,
		Observations: stats.Observations,
		Scores:       stats.Scores,
		SelfReports:  stats.SelfReports,
	}
}
