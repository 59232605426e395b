package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"resonance/internal/scoring"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// MetricConfig mirrors one metric entry of an indicator.
type MetricConfig struct {
	Weight            float64 `json:"weight"`
	Direction         string  `json:"direction"`
	ClippingThreshold float64 `json:"clippingThreshold"`
}

// IndicatorConfig mirrors one resolved indicator.
type IndicatorConfig struct {
	Key               string                  `json:"key"`
	DisplayName       string                  `json:"displayName"`
	SeverityThreshold float64                 `json:"severityThreshold"`
	SmoothingFactor   float64                 `json:"smoothingFactor"`
	CriticalMetrics   []string                `json:"criticalMetrics,omitempty"`
	Metrics           map[string]MetricConfig `json:"metrics"`
}

// ConfigResponse wraps a user's effective configuration.
type ConfigResponse struct {
	UserID     int64             `json:"userId"`
	Indicators []IndicatorConfig `json:"indicators"`
}

// ValueRequest carries the new value for a threshold or weight update.
type ValueRequest struct {
	Value *float64 `json:"value"`
}

// BaselineStat is a metric's mean and standard deviation.
type BaselineStat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// BaselineResponse answers a baseline lookup.
type BaselineResponse struct {
	UserID    int64                   `json:"userId"`
	Context   string                  `json:"context"`
	ColdStart bool                    `json:"coldStart"`
	Metric    string                  `json:"metric,omitempty"`
	Stat      *BaselineStat           `json:"stat,omitempty"`
	Metrics   map[string]BaselineStat `json:"metrics,omitempty"`
}

// Observation is one raw metric value.
type Observation struct {
	Timestamp string  `json:"timestamp"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
}

// MetricsRequest submits observations. Timestamp and Metrics describe a single
// recording; Observations lists values individually. Both may be combined.
type MetricsRequest struct {
	Timestamp    string             `json:"timestamp,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Observations []Observation      `json:"observations,omitempty"`
}

// IngestResponse reports how many observations were stored.
type IngestResponse struct {
	Stored int `json:"stored"`
}

// ScoreRecord is one derived indicator-score batch.
type ScoreRecord struct {
	Timestamp       string                         `json:"timestamp"`
	IndicatorScores map[string]float64             `json:"indicatorScores"`
	BinaryScores    map[string]int                 `json:"binaryScores"`
	MDDSignal       bool                           `json:"mddSignal"`
	LearningMode    bool                           `json:"learningMode"`
	Explanations    map[string]scoring.Explanation `json:"explanations,omitempty"`
}

// ScoresResponse wraps a list of score records.
type ScoresResponse struct {
	UserID  int64         `json:"userId"`
	Records []ScoreRecord `json:"records"`
}

// FunctionalImpact accepts either a plain label string or an object with a
// "label" field.
type FunctionalImpact string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FunctionalImpact) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FunctionalImpact(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("functionalImpact must be a string or an object with a label: %w", err)
	}
	*f = FunctionalImpact(strings.TrimSpace(obj.Label))
	return nil
}

// SelfReportRequest submits a questionnaire.
type SelfReportRequest struct {
	Timestamp        string           `json:"timestamp,omitempty"`
	Scores           map[string]int   `json:"scores"`
	TotalScore       int              `json:"totalScore,omitempty"`
	FunctionalImpact FunctionalImpact `json:"functionalImpact,omitempty"`
}

// CalibrationDecision reports one threshold calibration outcome.
type CalibrationDecision struct {
	Indicator    string  `json:"indicator"`
	Action       string  `json:"action"`
	PassiveScore float64 `json:"passiveScore"`
	Threshold    float64 `json:"threshold"`
	NewThreshold float64 `json:"newThreshold"`
	Passive      bool    `json:"passiveDetected"`
	Active       bool    `json:"activeDetected"`
	Reason       string  `json:"reason,omitempty"`
}

// SelfReportResponse reports what a submission changed.
type SelfReportResponse struct {
	ID              string                `json:"id"`
	BaselineUpdated bool                  `json:"baselineUpdated"`
	BaselineContext string                `json:"baselineContext,omitempty"`
	FinetuneReason  string                `json:"finetuneReason,omitempty"`
	Calibration     []CalibrationDecision `json:"calibration"`
}

// StoreCounts mirrors store row counts.
type StoreCounts struct {
	Baselines    int `json:"baselines"`
	Overrides    int `json:"overrides"`
	Observations int `json:"observations"`
	Scores       int `json:"scores"`
	SelfReports  int `json:"selfReports"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	StorePath    string      `json:"storePath"`
	LockFilePath string      `json:"lockFilePath"`
	Counts       StoreCounts `json:"counts"`
	Migrations   []string    `json:"migrations"`
}
