package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const baselineColumns = "id, user_id, ts, schema_version, body, updated_at"

func scanBaseline(scanner rowScanner) (*BaselineRecord, error) {
	var (
		rec        BaselineRecord
		tsRaw      string
		version    sql.NullInt64
		body       string
		updatedRaw string
	)
	if err := scanner.Scan(&rec.ID, &rec.UserID, &tsRaw, &version, &body, &updatedRaw); err != nil {
		return nil, err
	}
	rec.Timestamp = parseTimeOrZero(tsRaw)
	rec.SchemaVersion = nullIntValue(version)
	rec.Body = []byte(body)
	rec.UpdatedAt = parseTimeOrZero(updatedRaw)
	return &rec, nil
}

// LatestBaseline returns the most recent baseline document for the user, or
// nil when the user has none.
func (s *Store) LatestBaseline(ctx context.Context, userID int64) (*BaselineRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+baselineColumns+` FROM baselines WHERE user_id = ? ORDER BY ts_ns DESC, id DESC LIMIT 1`,
		userID,
	)
	rec, err := scanBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest baseline: %w", err)
	}
	return rec, nil
}

// UpsertBaseline writes a baseline document keyed by (user, timestamp),
// replacing the body and schema version of an existing row with the same key.
func (s *Store) UpsertBaseline(ctx context.Context, userID int64, ts time.Time, schemaVersion int, body []byte) (*BaselineRecord, error) {
	if len(body) == 0 {
		return nil, errors.New("baseline body is empty")
	}
	if err := checkTimestamp(ts); err != nil {
		return nil, fmt.Errorf("upsert baseline: %w", err)
	}
	now := nowString()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO baselines (user_id, ts, ts_ns, schema_version, body, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (user_id, ts_ns) DO UPDATE SET
             schema_version = excluded.schema_version,
             body = excluded.body,
             updated_at = excluded.updated_at`,
		userID, formatTime(ts), ts.UnixNano(), nullableInt(schemaVersion), string(body), now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert baseline: %w", err)
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+baselineColumns+` FROM baselines WHERE user_id = ? AND ts_ns = ?`,
		userID, ts.UnixNano(),
	)
	rec, err := scanBaseline(row)
	if err != nil {
		return nil, fmt.Errorf("reload baseline: %w", err)
	}
	return rec, nil
}

// BaselinesBelowVersion lists documents with no schema version or a version
// lower than version, oldest first.
func (s *Store) BaselinesBelowVersion(ctx context.Context, version int) ([]BaselineRecord, error) {
	return s.queryBaselines(ctx,
		`SELECT `+baselineColumns+` FROM baselines WHERE schema_version IS NULL OR schema_version < ? ORDER BY id`,
		version,
	)
}

// BaselinesAtVersion lists documents stored at exactly version, oldest first.
func (s *Store) BaselinesAtVersion(ctx context.Context, version int) ([]BaselineRecord, error) {
	return s.queryBaselines(ctx,
		`SELECT `+baselineColumns+` FROM baselines WHERE schema_version = ? ORDER BY id`,
		version,
	)
}

// UserBaselines lists every stored baseline for a user, newest first.
func (s *Store) UserBaselines(ctx context.Context, userID int64) ([]BaselineRecord, error) {
	return s.queryBaselines(ctx,
		`SELECT `+baselineColumns+` FROM baselines WHERE user_id = ? ORDER BY ts_ns DESC, id DESC`,
		userID,
	)
}

func (s *Store) queryBaselines(ctx context.Context, query string, args ...any) ([]BaselineRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	var out []BaselineRecord
	for rows.Next() {
		rec, err := scanBaseline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baselines: %w", err)
	}
	return out, nil
}

// ReplaceBaseline rewrites the body and schema version of the document with
// the given id in place. User and timestamp are preserved.
func (s *Store) ReplaceBaseline(ctx context.Context, id int64, schemaVersion int, body []byte) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE baselines SET schema_version = ?, body = ?, updated_at = ? WHERE id = ?`,
		nullableInt(schemaVersion), string(body), nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("replace baseline %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace baseline %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("replace baseline %d: %w", id, ErrRecordNotFound)
	}
	return nil
}
