package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Ordering columns hold nanoseconds since the epoch, so stored timestamps
// must fit an int64 with a day of headroom for bucket arithmetic.
var (
	MinTimestamp = time.Date(1678, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTimestamp = time.Date(2262, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// ErrTimestampOutOfRange indicates a timestamp outside [MinTimestamp, MaxTimestamp).
var ErrTimestampOutOfRange = errors.New("timestamp outside supported range")

// TimestampInRange reports whether ts can be stored without overflowing the
// nanosecond ordering columns.
func TimestampInRange(ts time.Time) bool {
	return !ts.Before(MinTimestamp) && ts.Before(MaxTimestamp)
}

func checkTimestamp(ts time.Time) error {
	if !TimestampInRange(ts) {
		return fmt.Errorf("%s: %w", formatTime(ts), ErrTimestampOutOfRange)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func nowString() string {
	return formatTime(time.Now())
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseTimeOrZero(value string) time.Time {
	t, err := parseTimeString(value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullIntValue(value sql.NullInt64) int {
	if !value.Valid {
		return 0
	}
	return int(value.Int64)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
