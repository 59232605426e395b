package store

import (
	"encoding/json"
	"time"
)

// BaselineRecord is a stored baseline document. SchemaVersion is zero when the
// document predates versioning.
type BaselineRecord struct {
	ID            int64
	UserID        int64
	Timestamp     time.Time
	SchemaVersion int
	Body          json.RawMessage
	UpdatedAt     time.Time
}

// OverrideRecord is a user's sparse configuration override document.
type OverrideRecord struct {
	UserID    int64
	Body      json.RawMessage
	UpdatedAt time.Time
}

// Observation is one raw metric value produced by feature extraction.
type Observation struct {
	ID         int64
	UserID     int64
	MetricName string
	Value      float64
	ObservedAt time.Time
}

// ScoreRecord is one persisted indicator-score batch.
type ScoreRecord struct {
	ID        int64
	UserID    int64
	Timestamp time.Time
	MDDSignal bool
	Body      json.RawMessage
	CreatedAt time.Time
}

// SelfReportRecord is one write-once self-report submission.
type SelfReportRecord struct {
	ID               string
	UserID           int64
	Timestamp        time.Time
	Scores           map[string]int
	TotalScore       int
	FunctionalImpact string
	CreatedAt        time.Time
}
