package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const observationColumns = "id, user_id, metric_name, value, observed_at"

// observationInsertChunk bounds multi-row inserts well below SQLite's
// variable limit.
const observationInsertChunk = 100

// InsertObservations appends raw metric observations in a single transaction.
// Non-finite values are stored as NULL and read back as NaN.
func (s *Store) InsertObservations(ctx context.Context, observations []Observation) error {
	if len(observations) == 0 {
		return nil
	}
	for _, obs := range observations {
		if strings.TrimSpace(obs.MetricName) == "" {
			return errors.New("observation metric name is empty")
		}
		if obs.ObservedAt.IsZero() {
			return errors.New("observation timestamp is zero")
		}
		if err := checkTimestamp(obs.ObservedAt); err != nil {
			return fmt.Errorf("observation %s: %w", obs.MetricName, err)
		}
	}
	created := nowString()
	rowPlaceholders := "(" + makePlaceholders(6) + ")"

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(observations); start += observationInsertChunk {
			end := min(start+observationInsertChunk, len(observations))
			chunk := observations[start:end]

			values := make([]string, 0, len(chunk))
			args := make([]any, 0, len(chunk)*6)
			for _, obs := range chunk {
				values = append(values, rowPlaceholders)
				var value any
				if !math.IsNaN(obs.Value) && !math.IsInf(obs.Value, 0) {
					value = obs.Value
				}
				args = append(args, obs.UserID, obs.MetricName, value, formatTime(obs.ObservedAt), obs.ObservedAt.UnixNano(), created)
			}
			query := `INSERT INTO metric_observations (user_id, metric_name, value, observed_at, observed_ns, created_at) VALUES ` +
				strings.Join(values, ", ")
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert observations: %w", err)
	}
	return nil
}

// ObservationsSince returns the user's observations at or after since in
// ascending timestamp order. A zero since returns the full history. When
// exclusive is true, observations exactly at since are skipped.
func (s *Store) ObservationsSince(ctx context.Context, userID int64, since time.Time, exclusive bool) ([]Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM metric_observations WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		if exclusive {
			query += ` AND observed_ns > ?`
		} else {
			query += ` AND observed_ns >= ?`
		}
		args = append(args, since.UnixNano())
	}
	query += ` ORDER BY observed_ns, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			obs      Observation
			value    sql.NullFloat64
			observed string
		)
		if err := rows.Scan(&obs.ID, &obs.UserID, &obs.MetricName, &value, &observed); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.Value = math.NaN()
		if value.Valid {
			obs.Value = value.Float64
		}
		obs.ObservedAt = parseTimeOrZero(observed)
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// ObservationUsers lists every user with at least one stored observation.
func (s *Store) ObservationUsers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT DISTINCT user_id FROM metric_observations ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list observation users: %w", err)
	}
	defer rows.Close()
	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
