package engine

import (
	"time"

	"resonance/internal/baseline"
	"resonance/internal/calibration"
	"resonance/internal/store"
)

// Observation is one raw metric value submitted for ingestion.
type Observation struct {
	Timestamp time.Time
	Metric    string
	Value     float64
}

// SelfReport is a questionnaire submission. Scores map indicator keys to
// item scores from 0 to 3.
type SelfReport struct {
	Scores           map[string]int
	TotalScore       int
	FunctionalImpact string
	Timestamp        time.Time
}

// SubmissionResult reports what a self-report changed.
type SubmissionResult struct {
	ID          string
	Finetune    baseline.FinetuneResult
	Calibration []calibration.Decision
}

// BaselineView answers a baseline lookup. Metric and Stat are set for single
// metric lookups; Metrics is set otherwise.
type BaselineView struct {
	UserID    int64
	Context   baseline.ContextKey
	ColdStart bool
	Metric    string
	Stat      *baseline.Stat
	Metrics   baseline.Metrics
}

// UserResult is the outcome of deriving scores for one user in a batch.
type UserResult struct {
	UserID  int64
	Records int
	Err     error
}

// DeriveSummary aggregates a multi-user derivation.
type DeriveSummary struct {
	Users   int
	Records int
	Results []UserResult
}

// Failed returns the number of users whose derivation failed.
func (s DeriveSummary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Status describes the store backing the engine.
type Status struct {
	StorePath  string
	Stats      store.Stats
	Migrations []string
}
