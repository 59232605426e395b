// Package calibration adjusts indicator thresholds when passive detection
// disagrees with self-reports.
//
// The controller only ever raises thresholds. A passive detection that the
// user does not confirm raises the threshold by a fixed step up to a cap; a
// self-reported symptom the passive system missed is recorded but does not
// lower the threshold.
package calibration

import (
	"context"
	"log/slog"
	"math"

	"resonance/internal/config"
	"resonance/internal/logging"
	"resonance/internal/mapping"
	"resonance/internal/services"
)

// Action describes what the controller did for one indicator.
type Action string

const (
	ActionRaised        Action = "raised"
	ActionAtMaximum     Action = "at_maximum"
	ActionFalseNegative Action = "false_negative_ignored"
	ActionAgreement     Action = "agreement"
	ActionSkipped       Action = "skipped"
)

// Thresholds reads and writes per-user configuration.
type Thresholds interface {
	EffectiveConfig(ctx context.Context, userID int64) (mapping.EffectiveConfig, error)
	UpdateThreshold(ctx context.Context, userID int64, indicator string, threshold float64) error
}

// ScoreSource exposes the user's most recent smoothed indicator scores.
type ScoreSource interface {
	LatestIndicatorScores(ctx context.Context, userID int64) (map[string]float64, error)
}

// Decision is the controller outcome for one indicator.
type Decision struct {
	Indicator    string  `json:"indicator"`
	PassiveScore float64 `json:"passive_score"`
	Threshold    float64 `json:"threshold"`
	NewThreshold float64 `json:"new_threshold"`
	Passive      bool    `json:"passive_detected"`
	Active       bool    `json:"active_detected"`
	Action       Action  `json:"action"`
	Reason       string  `json:"reason,omitempty"`
}

// Controller is the threshold feedback controller.
type Controller struct {
	thresholds Thresholds
	scores     ScoreSource
	cfg        config.Calibration
	logger     *slog.Logger
}

// New returns a Controller.
func New(thresholds Thresholds, scores ScoreSource, cfg config.Calibration, logger *slog.Logger) *Controller {
	return &Controller{
		thresholds: thresholds,
		scores:     scores,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "calibration"),
	}
}

// Calibrate compares the latest smoothed scores with a self-report for every
// indicator under calibration. Users without score history are skipped.
func (c *Controller) Calibrate(ctx context.Context, userID int64, report map[string]int) ([]Decision, error) {
	logger := logging.WithContext(ctx, c.logger).With(logging.UserID(userID))

	latest, err := c.scores.LatestIndicatorScores(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "calibration", "calibrate", "load latest scores", err)
	}
	if len(latest) == 0 {
		logger.Info("threshold calibration skipped", logging.Args(logging.DecisionAttrs("calibration", string(ActionSkipped), "no score history")...)...)
		return nil, nil
	}
	effective, err := c.thresholds.EffectiveConfig(ctx, userID)
	if err != nil {
		return nil, err
	}

	decisions := make([]Decision, 0, len(c.cfg.Indicators))
	for _, indicator := range c.cfg.Indicators {
		d := Decision{Indicator: indicator}
		ind, configured := effective[indicator]
		score, scored := latest[indicator]
		if !configured || !scored {
			d.Action = ActionSkipped
			d.Reason = "indicator not configured or not scored"
			decisions = append(decisions, d)
			continue
		}
		d.PassiveScore = score
		d.Threshold = ind.SeverityThreshold
		d.NewThreshold = ind.SeverityThreshold
		d.Passive = score >= ind.SeverityThreshold
		d.Active = report[indicator] >= c.cfg.ActiveMinScore

		switch {
		case d.Passive && !d.Active:
			d.NewThreshold = math.Min(ind.SeverityThreshold+c.cfg.Step, c.cfg.MaxThreshold)
			if d.NewThreshold <= ind.SeverityThreshold {
				d.NewThreshold = ind.SeverityThreshold
				d.Action = ActionAtMaximum
				break
			}
			if err := c.thresholds.UpdateThreshold(ctx, userID, indicator, d.NewThreshold); err != nil {
				return decisions, err
			}
			d.Action = ActionRaised
		case !d.Passive && d.Active:
			d.Action = ActionFalseNegative
			d.Reason = "threshold lowering is not applied"
		default:
			d.Action = ActionAgreement
		}

		logger.Info("threshold calibration decision",
			logging.Indicator(indicator),
			logging.String(logging.FieldDecisionType, "calibration"),
			logging.String("decision_result", string(d.Action)),
			logging.Float64("passive_score", d.PassiveScore),
			logging.Float64("threshold", d.Threshold),
			logging.Float64("new_threshold", d.NewThreshold),
		)
		decisions = append(decisions, d)
	}
	return decisions, nil
}
