package scoring

import (
	"encoding/json"
	"fmt"
	"time"

	"resonance/internal/store"
)

// Record is one derived indicator-score batch.
type Record struct {
	UserID          int64                  `json:"user_id"`
	Timestamp       time.Time              `json:"timestamp"`
	IndicatorScores map[string]float64     `json:"indicator_scores"`
	BinaryScores    map[string]int         `json:"binary_scores"`
	MDDSignal       bool                   `json:"mdd_signal"`
	LearningMode    bool                   `json:"learning_mode"`
	Explanations    map[string]Explanation `json:"explanations,omitempty"`
}

func (r Record) toStore() (store.ScoreRecord, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("encode score record: %w", err)
	}
	return store.ScoreRecord{UserID: r.UserID, Timestamp: r.Timestamp, MDDSignal: r.MDDSignal, Body: body}, nil
}

func recordFromStore(rec store.ScoreRecord) (Record, error) {
	var out Record
	if err := json.Unmarshal(rec.Body, &out); err != nil {
		return Record{}, fmt.Errorf("decode score record %d: %w", rec.ID, err)
	}
	out.UserID = rec.UserID
	out.Timestamp = rec.Timestamp
	out.MDDSignal = rec.MDDSignal
	if out.IndicatorScores == nil {
		out.IndicatorScores = map[string]float64{}
	}
	if out.BinaryScores == nil {
		out.BinaryScores = map[string]int{}
	}
	return out, nil
}
