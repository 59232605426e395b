package baseline

import (
	"strings"
	"time"
)

// ContextKey names a time-of-day baseline partition.
type ContextKey string

const (
	ContextGeneral ContextKey = "general"
	ContextMorning ContextKey = "morning"
	ContextEvening ContextKey = "evening"
)

// Contexts lists every partition key in document order.
var Contexts = []ContextKey{ContextGeneral, ContextMorning, ContextEvening}

// ResolveContext maps a timestamp's wall-clock hour to a partition: [6,12) is
// morning, [18,24) is evening, and everything else (including the zero time)
// is general.
func ResolveContext(ts time.Time) ContextKey {
	if ts.IsZero() {
		return ContextGeneral
	}
	switch hour := ts.Hour(); {
	case hour >= 6 && hour < 12:
		return ContextMorning
	case hour >= 18:
		return ContextEvening
	default:
		return ContextGeneral
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats accepted at the API and CLI
// boundaries. Values without a zone are read as UTC wall-clock time.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ContextFromString resolves a context from a textual timestamp. Missing or
// unparsable values resolve to general.
func ContextFromString(value string) ContextKey {
	ts, ok := ParseTimestamp(value)
	if !ok {
		return ContextGeneral
	}
	return ResolveContext(ts)
}

func (k ContextKey) description() string {
	switch k {
	case ContextMorning:
		return "06:00 to 12:00"
	case ContextEvening:
		return "18:00 to 24:00"
	default:
		return generalDescription
	}
}
