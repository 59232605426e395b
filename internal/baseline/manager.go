package baseline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sort"
	"time"

	"resonance/internal/config"
	"resonance/internal/logging"
	"resonance/internal/mapping"
	"resonance/internal/services"
	"resonance/internal/store"
)

// Repository persists baseline documents.
type Repository interface {
	LatestBaseline(ctx context.Context, userID int64) (*store.BaselineRecord, error)
	UpsertBaseline(ctx context.Context, userID int64, ts time.Time, schemaVersion int, body []byte) (*store.BaselineRecord, error)
}

// PredictionSource exposes the user's most recent smoothed indicator scores.
// It returns nil when the user has no score history.
type PredictionSource interface {
	LatestIndicatorScores(ctx context.Context, userID int64) (map[string]float64, error)
}

// ConfigSource resolves the effective indicator configuration for a user.
type ConfigSource interface {
	EffectiveConfig(ctx context.Context, userID int64) (mapping.EffectiveConfig, error)
}

// Feedback is a self-report used to fine-tune a baseline. Scores maps
// indicator keys to item scores on the questionnaire scale.
type Feedback struct {
	Scores    map[string]int
	Timestamp time.Time
}

// FinetuneResult summarizes a fine-tuning pass.
type FinetuneResult struct {
	Updated bool
	Context ContextKey
	Metrics Metrics
	Reason  string
}

// Manager reads and fine-tunes per-user baselines.
type Manager struct {
	repo        Repository
	predictions PredictionSource
	configs     ConfigSource
	population  Metrics
	cfg         config.Baseline
	logger      *slog.Logger
}

// NewManager builds a Manager over a private copy of population.
func NewManager(repo Repository, predictions PredictionSource, configs ConfigSource, population Metrics, cfg config.Baseline, logger *slog.Logger) (*Manager, error) {
	if repo == nil {
		return nil, services.Wrap(services.ErrConfiguration, "baseline", "init", "baseline repository is required", nil)
	}
	if configs == nil {
		return nil, services.Wrap(services.ErrConfiguration, "baseline", "init", "config source is required", nil)
	}
	return &Manager{
		repo:        repo,
		predictions: predictions,
		configs:     configs,
		population:  population.Clone(),
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "baseline"),
	}, nil
}

// SetPredictions attaches the score reader used by Finetune. The scorer and
// the manager depend on each other, so the engine wires this after both exist.
func (m *Manager) SetPredictions(predictions PredictionSource) {
	m.predictions = predictions
}

// Population returns a copy of the population baseline.
func (m *Manager) Population() Metrics {
	return m.population.Clone()
}

// Document returns the user's latest stored baseline in the partitioned
// layout, or nil when none exists.
func (m *Manager) Document(ctx context.Context, userID int64) (*Document, error) {
	rec, err := m.repo.LatestBaseline(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "baseline", "load", "", err)
	}
	if rec == nil {
		return nil, nil
	}
	doc, err := Decode(rec.Body, rec.SchemaVersion)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "baseline", "decode", fmt.Sprintf("baseline %d", rec.ID), err)
	}
	// The row key decides which document is current, not the body.
	if !rec.Timestamp.IsZero() {
		doc.Timestamp = rec.Timestamp
	}
	return &doc, nil
}

// Snapshot returns every metric visible to the user at ts. Context metrics
// override general metrics, which override the population baseline.
func (m *Manager) Snapshot(ctx context.Context, userID int64, ts time.Time) (Metrics, ContextKey, error) {
	key := ResolveContext(ts)
	doc, err := m.Document(ctx, userID)
	if err != nil {
		return nil, key, err
	}
	out := m.population.Clone()
	if doc == nil {
		return out, key, nil
	}
	maps.Copy(out, doc.Metrics(ContextGeneral))
	if key != ContextGeneral {
		maps.Copy(out, doc.Metrics(key))
	}
	return out, key, nil
}

// Lookup returns the baseline entry for one metric at ts. The context
// partition is consulted first, then general, then the population baseline.
func (m *Manager) Lookup(ctx context.Context, userID int64, metric string, ts time.Time) (Stat, bool, error) {
	snapshot, _, err := m.Snapshot(ctx, userID, ts)
	if err != nil {
		return Stat{}, false, err
	}
	stat, ok := snapshot[metric]
	return stat, ok, nil
}

// Finetune nudges baseline means toward agreement with a self-report. Each
// reported indicator with a smoothed prediction contributes
// error * std * learning_rate * direction_sign * weight to each of its
// metrics; contributions are averaged per metric and added to the mean.
// Standard deviations are left unchanged.
func (m *Manager) Finetune(ctx context.Context, userID int64, fb Feedback) (FinetuneResult, error) {
	key := ResolveContext(fb.Timestamp)
	result := FinetuneResult{Context: key}
	logger := logging.WithContext(ctx, m.logger).With(logging.UserID(userID), logging.String("context", string(key)))

	if m.predictions == nil {
		result.Reason = "no score history"
		return result, nil
	}
	predicted, err := m.predictions.LatestIndicatorScores(ctx, userID)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "baseline", "finetune", "load latest scores", err)
	}
	if len(predicted) == 0 {
		result.Reason = "no score history"
		logger.Info("baseline finetune skipped", logging.String(logging.FieldDecisionType, "finetune_skip"), logging.String("reason", result.Reason))
		return result, nil
	}
	effective, err := m.configs.EffectiveConfig(ctx, userID)
	if err != nil {
		return result, err
	}
	current, _, err := m.Snapshot(ctx, userID, fb.Timestamp)
	if err != nil {
		return result, err
	}

	adjustments := map[string][]float64{}
	indicators := make([]string, 0, len(fb.Scores))
	for indicator := range fb.Scores {
		indicators = append(indicators, indicator)
	}
	sort.Strings(indicators)
	for _, indicator := range indicators {
		score, ok := predicted[indicator]
		if !ok {
			continue
		}
		indCfg, ok := effective[indicator]
		if !ok {
			continue
		}
		actual := float64(fb.Scores[indicator])
		if m.cfg.NormalizeSelfReport && m.cfg.SelfReportMax > 0 {
			actual /= float64(m.cfg.SelfReportMax)
		}
		predictionError := actual - score
		for _, metric := range indCfg.MetricNames() {
			mc := indCfg.Metrics[metric]
			if mc.Weight == 0 {
				continue
			}
			stat, ok := current[metric]
			if !ok {
				continue
			}
			adj := predictionError * stat.Std * m.cfg.LearningRate * mc.Direction.Sign() * mc.Weight
			if math.IsNaN(adj) || math.IsInf(adj, 0) {
				continue
			}
			adjustments[metric] = append(adjustments[metric], adj)
		}
	}
	if len(adjustments) == 0 {
		result.Reason = "no adjustable metrics"
		logger.Info("baseline finetune skipped", logging.String(logging.FieldDecisionType, "finetune_skip"), logging.String("reason", result.Reason))
		return result, nil
	}

	updates := make(Metrics, len(adjustments))
	for metric, values := range adjustments {
		var sum float64
		for _, v := range values {
			sum += v
		}
		stat := current[metric]
		updates[metric] = Stat{Mean: stat.Mean + sum/float64(len(values)), Std: stat.Std}
	}

	existing, err := m.Document(ctx, userID)
	if err != nil {
		return result, err
	}
	// A report older than the current document still updates it in place;
	// writing at the report time would create a row that is never current.
	writeAt := fb.Timestamp
	var doc Document
	if existing == nil {
		doc = NewDocument(userID, fb.Timestamp)
	} else {
		doc = existing.Clone()
		if existing.Timestamp.After(writeAt) {
			writeAt = existing.Timestamp
		}
	}
	doc.UserID = userID
	doc.Timestamp = writeAt
	doc.SourceVersion = SchemaVersion
	doc.mergeInto(key, updates)
	if key != ContextGeneral {
		doc.mergeInto(ContextGeneral, updates)
	}

	body, err := Encode(doc)
	if err != nil {
		return result, services.Wrap(services.ErrStorage, "baseline", "finetune", "encode baseline", err)
	}
	if _, err := m.repo.UpsertBaseline(ctx, userID, writeAt, SchemaVersion, body); err != nil {
		return result, services.Wrap(services.ErrStorage, "baseline", "finetune", "save baseline", err)
	}

	result.Updated = true
	result.Metrics = updates
	logger.Info("baseline finetuned",
		logging.String(logging.FieldEventType, "baseline_finetuned"),
		logging.Int("metrics_updated", len(updates)),
	)
	return result, nil
}

// Import stores body as the user's baseline at ts. Legacy flat documents are
// upgraded before writing; user and timestamp fields in the body are replaced
// by the arguments.
func (m *Manager) Import(ctx context.Context, userID int64, ts time.Time, body []byte) (Document, error) {
	doc, err := Decode(body, 0)
	if err != nil {
		return Document{}, services.Wrap(services.ErrValidation, "baseline", "import", "unreadable baseline document", err)
	}
	for key, part := range doc.Partitions {
		for metric, stat := range part.Metrics {
			if math.IsNaN(stat.Mean) || math.IsInf(stat.Mean, 0) || math.IsNaN(stat.Std) || math.IsInf(stat.Std, 0) || stat.Std < 0 {
				return Document{}, services.Wrap(services.ErrValidation, "baseline", "import",
					fmt.Sprintf("invalid statistics for %s in %s partition", metric, key), nil)
			}
		}
	}
	for _, key := range Contexts {
		if _, ok := doc.Partitions[key]; !ok {
			doc.Partitions[key] = Partition{Description: key.description(), Metrics: Metrics{}}
		}
	}
	doc.UserID = userID
	doc.Timestamp = ts
	doc.SourceVersion = SchemaVersion
	encoded, err := Encode(doc)
	if err != nil {
		return Document{}, services.Wrap(services.ErrStorage, "baseline", "import", "encode baseline", err)
	}
	if _, err := m.repo.UpsertBaseline(ctx, userID, ts, SchemaVersion, encoded); err != nil {
		return Document{}, services.Wrap(services.ErrStorage, "baseline", "import", "save baseline", err)
	}
	logging.WithContext(ctx, m.logger).Info("baseline imported",
		logging.UserID(userID),
		logging.String(logging.FieldEventType, "baseline_imported"),
		logging.Int("metrics", len(doc.Metrics(ContextGeneral))),
	)
	return doc, nil
}
