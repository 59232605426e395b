package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateScore indicates a score record already exists for the (user, timestamp) key.
var ErrDuplicateScore = errors.New("indicator score already recorded for timestamp")

const scoreColumns = "id, user_id, ts, mdd_signal, body, created_at"

func scanScore(scanner rowScanner) (*ScoreRecord, error) {
	var (
		rec        ScoreRecord
		tsRaw      string
		mdd        int
		body       string
		createdRaw string
	)
	if err := scanner.Scan(&rec.ID, &rec.UserID, &tsRaw, &mdd, &body, &createdRaw); err != nil {
		return nil, err
	}
	rec.Timestamp = parseTimeOrZero(tsRaw)
	rec.MDDSignal = mdd != 0
	rec.Body = []byte(body)
	rec.CreatedAt = parseTimeOrZero(createdRaw)
	return &rec, nil
}

// InsertScores appends indicator-score records in one transaction. Records
// are immutable: a record whose (user, timestamp) already exists aborts the
// whole batch with ErrDuplicateScore.
func (s *Store) InsertScores(ctx context.Context, records []ScoreRecord) ([]ScoreRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	created := time.Now().UTC()
	out := make([]ScoreRecord, len(records))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, rec := range records {
			if len(rec.Body) == 0 {
				return errors.New("score body is empty")
			}
			if err := checkTimestamp(rec.Timestamp); err != nil {
				return fmt.Errorf("score record: %w", err)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO indicator_scores (user_id, ts, ts_ns, mdd_signal, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
				rec.UserID, formatTime(rec.Timestamp), rec.Timestamp.UnixNano(), boolToInt(rec.MDDSignal), string(rec.Body), formatTime(created),
			)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("user %d at %s: %w", rec.UserID, formatTime(rec.Timestamp), ErrDuplicateScore)
				}
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			rec.ID = id
			rec.CreatedAt = created
			out[i] = rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert scores: %w", err)
	}
	return out, nil
}

// LatestScore returns the user's most recent indicator-score record, or nil
// when no score has been recorded.
func (s *Store) LatestScore(ctx context.Context, userID int64) (*ScoreRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+scoreColumns+` FROM indicator_scores WHERE user_id = ? ORDER BY ts_ns DESC, id DESC LIMIT 1`,
		userID,
	)
	rec, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest score: %w", err)
	}
	return rec, nil
}

// FirstScoreTime returns the timestamp of the user's earliest score record.
// The boolean is false when the user has no history.
func (s *Store) FirstScoreTime(ctx context.Context, userID int64) (time.Time, bool, error) {
	var tsRaw sql.NullString
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT ts FROM indicator_scores WHERE user_id = ? ORDER BY ts_ns ASC, id ASC LIMIT 1`,
		userID,
	).Scan(&tsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("first score time: %w", err)
	}
	ts, err := parseTimeString(tsRaw.String)
	if err != nil {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}

// ListScores returns up to limit of the user's score records, newest first.
// A limit <= 0 returns every record.
func (s *Store) ListScores(ctx context.Context, userID int64, limit int) ([]ScoreRecord, error) {
	query := `SELECT ` + scoreColumns + ` FROM indicator_scores WHERE user_id = ? ORDER BY ts_ns DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}
