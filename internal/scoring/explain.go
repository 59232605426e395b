package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"resonance/internal/mapping"
)

// Data quality labels attached to explanations.
const (
	QualityFull         = "full"
	QualityPartial      = "partial"
	QualityInsufficient = "insufficient"
)

// DefaultCriticalMetrics applies to indicators whose configuration does not
// list critical metrics.
var DefaultCriticalMetrics = []string{"f0_avg", "f0_std", "rate_of_speech"}

var friendlyNames = map[string]string{
	"f0_avg":                      "pitch (F0)",
	"f0_std":                      "pitch variability",
	"f0_range":                    "pitch range",
	"jitter":                      "voice tremor (jitter)",
	"shimmer":                     "voice instability (shimmer)",
	"hnr":                         "voice clarity (HNR)",
	"snr":                         "signal quality",
	"rate_of_speech":              "speech rate",
	"articulation_rate":           "articulation speed",
	"pause_duration":              "pause length",
	"pause_count":                 "pause frequency",
	"spectral_flatness":           "spectral flatness",
	"formant_f1_frequencies_mean": "vowel resonance (F1)",
	"formant_f2_frequencies_mean": "vowel articulation (F2)",
	"f2_transition_speed":         "articulation dynamics",
	"mfcc_mean":                   "spectral envelope",
	"energy_mean":                 "vocal energy",
	"energy_std":                  "energy variability",
	"speaking_rate_variability":   "speech rhythm",
	"response_latency":            "response time",
}

// FriendlyMetricName returns a readable metric name.
func FriendlyMetricName(metric string) string {
	if name, ok := friendlyNames[metric]; ok {
		return name
	}
	return strings.ReplaceAll(metric, "_", " ")
}

// Contributor is one metric's share of an indicator score.
type Contributor struct {
	Metric       string            `json:"metric"`
	FriendlyName string            `json:"friendly_name"`
	Contribution float64           `json:"contribution"`
	ZScore       float64           `json:"z_score"`
	Direction    mapping.Direction `json:"direction"`
	Weight       float64           `json:"weight"`
}

// Explanation describes why an indicator scored the way it did.
type Explanation struct {
	Text             string        `json:"text"`
	Confidence       float64       `json:"confidence"`
	AvailableMetrics []string      `json:"available_metrics"`
	MissingMetrics   []string      `json:"missing_metrics"`
	TopContributors  []Contributor `json:"top_contributors"`
	DataQuality      string        `json:"data_quality"`
}

// Explain builds explanations for every configured indicator from the
// bucket's standardized values and the smoothed scores.
func Explain(effective mapping.EffectiveConfig, z map[string]float64, scores map[string]float64) map[string]Explanation {
	out := make(map[string]Explanation, len(effective))
	for key, ind := range effective {
		out[key] = ExplainIndicator(ind, z, scores[key])
	}
	return out
}

// ExplainIndicator builds the explanation for one indicator.
func ExplainIndicator(ind mapping.IndicatorConfig, z map[string]float64, score float64) Explanation {
	expected := ind.MetricNames()
	available := make([]string, 0, len(expected))
	missing := make([]string, 0, len(expected))
	for _, name := range expected {
		if _, ok := z[name]; ok {
			available = append(available, name)
		} else {
			missing = append(missing, name)
		}
	}

	critical := ind.CriticalMetrics
	if critical == nil {
		critical = DefaultCriticalMetrics
	}
	var missingCritical []string
	for _, name := range critical {
		_, observed := z[name]
		if _, expectedMetric := ind.Metrics[name]; expectedMetric && !observed {
			missingCritical = append(missingCritical, name)
		}
	}

	confidence, quality := confidenceFor(expected, available, critical, z)
	top := topContributors(ind, z, 3)
	return Explanation{
		Text:             explanationText(score, top, missingCritical, quality),
		Confidence:       confidence,
		AvailableMetrics: available,
		MissingMetrics:   missing,
		TopContributors:  top,
		DataQuality:      quality,
	}
}

// confidenceFor weighs metric availability at 60% and critical-metric
// availability at 40%.
func confidenceFor(expected, available, critical []string, z map[string]float64) (float64, string) {
	if len(expected) == 0 {
		return 1.0, QualityFull
	}
	availability := float64(len(available)) / float64(len(expected))
	criticalRatio := 1.0
	if len(critical) > 0 {
		present := 0
		for _, name := range critical {
			if _, ok := z[name]; ok {
				present++
			}
		}
		criticalRatio = float64(present) / float64(len(critical))
	}
	confidence := 0.6*availability + 0.4*criticalRatio
	quality := QualityInsufficient
	switch {
	case confidence >= 0.8:
		quality = QualityFull
	case confidence >= 0.4:
		quality = QualityPartial
	}
	return round(confidence, 2), quality
}

func topContributors(ind mapping.IndicatorConfig, z map[string]float64, n int) []Contributor {
	out := make([]Contributor, 0, len(ind.Metrics))
	for _, name := range ind.MetricNames() {
		value, ok := z[name]
		if !ok {
			continue
		}
		mc := ind.Metrics[name]
		out = append(out, Contributor{
			Metric:       name,
			FriendlyName: FriendlyMetricName(name),
			Contribution: round(mc.Direction.Contribution(value)*mc.Weight, 3),
			ZScore:       round(value, 3),
			Direction:    mc.Direction,
			Weight:       mc.Weight,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Contribution) > math.Abs(out[j].Contribution)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func explanationText(score float64, top []Contributor, missingCritical []string, quality string) string {
	if quality == QualityInsufficient {
		return "Insufficient acoustic data for reliable assessment. Key metrics unavailable."
	}
	if len(top) == 0 {
		return "No significant metric contributions detected."
	}

	phrases := make([]string, 0, 2)
	for i, c := range top {
		if i == 2 {
			break
		}
		phrases = append(phrases, contributionPhrase(c))
	}

	var text string
	if score >= 0.5 {
		severity := "elevated"
		if score >= 0.7 {
			severity = "significantly elevated"
		}
		text = fmt.Sprintf("Score %s (%.2f) due to: %s.", severity, score, strings.Join(phrases, "; "))
	} else {
		text = fmt.Sprintf("Score within normal range (%.2f). Contributing factors: %s.", score, strings.Join(phrases, "; "))
	}

	if quality == QualityPartial && len(missingCritical) > 0 {
		limit := min(len(missingCritical), 2)
		names := make([]string, 0, limit)
		for _, name := range missingCritical[:limit] {
			names = append(names, FriendlyMetricName(name))
		}
		text += fmt.Sprintf(" Note: %s data unavailable.", strings.Join(names, ", "))
	}
	return text
}

func contributionPhrase(c Contributor) string {
	z := c.ZScore
	desc := changeDescription(z)
	switch {
	case c.Direction == mapping.DirectionPositive && z > 0:
		return fmt.Sprintf("%s is %s (+%.1fσ)", c.FriendlyName, desc, math.Abs(z))
	case c.Direction == mapping.DirectionNegative && z < 0:
		return fmt.Sprintf("%s is %s (%.1fσ)", c.FriendlyName, desc, z)
	case c.Direction == mapping.DirectionBoth || c.Direction == mapping.DirectionAnomaly:
		return fmt.Sprintf("%s shows deviation (%.1fσ)", c.FriendlyName, math.Abs(z))
	default:
		return fmt.Sprintf("%s is %s", c.FriendlyName, desc)
	}
}

func changeDescription(z float64) string {
	switch {
	case math.Abs(z) < 0.5:
		return "near baseline"
	case z > 2.0:
		return "significantly elevated"
	case z > 1.0:
		return "elevated"
	case z > 0:
		return "slightly elevated"
	case z < -2.0:
		return "significantly reduced"
	case z < -1.0:
		return "reduced"
	default:
		return "slightly reduced"
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
