package baseline_test

import (
	"testing"
	"time"

	"resonance/internal/baseline"
)

func TestResolveContextHours(t *testing.T) {
	cases := []struct {
		hour, minute int
		want         baseline.ContextKey
	}{
		{0, 0, baseline.ContextGeneral},
		{5, 59, baseline.ContextGeneral},
		{6, 0, baseline.ContextMorning},
		{11, 59, baseline.ContextMorning},
		{12, 0, baseline.ContextGeneral},
		{17, 59, baseline.ContextGeneral},
		{18, 0, baseline.ContextEvening},
		{23, 59, baseline.ContextEvening},
	}
	for _, tc := range cases {
		ts := time.Date(2024, 3, 4, tc.hour, tc.minute, 0, 0, time.UTC)
		if got := baseline.ResolveContext(ts); got != tc.want {
			t.Fatalf("ResolveContext(%02d:%02d) = %q, want %q", tc.hour, tc.minute, got, tc.want)
		}
	}
}

func TestResolveContextZeroTimeIsGeneral(t *testing.T) {
	if got := baseline.ResolveContext(time.Time{}); got != baseline.ContextGeneral {
		t.Fatalf("expected general for zero time, got %q", got)
	}
}

func TestContextFromString(t *testing.T) {
	cases := map[string]baseline.ContextKey{
		"":                     baseline.ContextGeneral,
		"not a time":           baseline.ContextGeneral,
		"2024-03-04T07:30:00Z": baseline.ContextMorning,
		"2024-03-04 19:05:00":  baseline.ContextEvening,
		"2024-03-04":           baseline.ContextGeneral,
	}
	for input, want := range cases {
		if got := baseline.ContextFromString(input); got != want {
			t.Fatalf("ContextFromString(%q) = %q, want %q", input, got, want)
		}
	}
}
