package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateSelfReport indicates a submission already exists for the (user, timestamp) key.
var ErrDuplicateSelfReport = errors.New("self-report already recorded for timestamp")

// InsertSelfReport appends a write-once self-report submission.
func (s *Store) InsertSelfReport(ctx context.Context, rec SelfReportRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("self-report id is empty")
	}
	if err := checkTimestamp(rec.Timestamp); err != nil {
		return fmt.Errorf("insert self-report: %w", err)
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return fmt.Errorf("encode self-report scores: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO self_reports (id, user_id, ts, ts_ns, scores, total_score, functional_impact, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, formatTime(rec.Timestamp), rec.Timestamp.UnixNano(), string(scores),
		rec.TotalScore, nullableString(rec.FunctionalImpact), nowString(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert self-report: %w", ErrDuplicateSelfReport)
		}
		return fmt.Errorf("insert self-report: %w", err)
	}
	return nil
}

// ListSelfReports returns up to limit of the user's submissions, newest first.
func (s *Store) ListSelfReports(ctx context.Context, userID int64, limit int) ([]SelfReportRecord, error) {
	query := `SELECT id, user_id, ts, scores, total_score, functional_impact, created_at
        FROM self_reports WHERE user_id = ? ORDER BY ts_ns DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list self-reports: %w", err)
	}
	defer rows.Close()

	var out []SelfReportRecord
	for rows.Next() {
		var (
			rec        SelfReportRecord
			tsRaw      string
			scoresRaw  string
			impact     *string
			createdRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &tsRaw, &scoresRaw, &rec.TotalScore, &impact, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan self-report: %w", err)
		}
		if err := json.Unmarshal([]byte(scoresRaw), &rec.Scores); err != nil {
			return nil, fmt.Errorf("decode self-report %s scores: %w", rec.ID, err)
		}
		if impact != nil {
			rec.FunctionalImpact = *impact
		}
		rec.Timestamp = parseTimeOrZero(tsRaw)
		rec.CreatedAt = parseTimeOrZero(createdRaw)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate self-reports: %w", err)
	}
	return out, nil
}
