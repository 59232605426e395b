package scoring

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"resonance/internal/baseline"
	"resonance/internal/config"
	"resonance/internal/logging"
	"resonance/internal/mapping"
	"resonance/internal/services"
	"resonance/internal/standardize"
	"resonance/internal/store"
)

// Store persists indicator-score records and exposes raw observations.
type Store interface {
	LatestScore(ctx context.Context, userID int64) (*store.ScoreRecord, error)
	FirstScoreTime(ctx context.Context, userID int64) (time.Time, bool, error)
	InsertScores(ctx context.Context, records []store.ScoreRecord) ([]store.ScoreRecord, error)
	ListScores(ctx context.Context, userID int64, limit int) ([]store.ScoreRecord, error)
	ObservationsSince(ctx context.Context, userID int64, since time.Time, exclusive bool) ([]store.Observation, error)
}

// ConfigSource resolves the effective indicator configuration for a user.
type ConfigSource interface {
	EffectiveConfig(ctx context.Context, userID int64) (mapping.EffectiveConfig, error)
}

// Scorer derives indicator-score records for users.
type Scorer struct {
	store     Store
	baselines standardize.BaselineSource
	configs   ConfigSource
	cfg       config.Scoring
	logger    *slog.Logger
}

// New returns a Scorer.
func New(st Store, baselines standardize.BaselineSource, configs ConfigSource, cfg config.Scoring, logger *slog.Logger) *Scorer {
	return &Scorer{
		store:     st,
		baselines: baselines,
		configs:   configs,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "scoring"),
	}
}

// BucketStart returns the start of the bucket containing ts.
func BucketStart(ts time.Time, mode string) time.Time {
	ts = ts.UTC()
	switch mode {
	case config.BucketHour:
		return ts.Truncate(time.Hour)
	case config.BucketDay:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return ts
	}
}

func bucketSpan(mode string) time.Duration {
	switch mode {
	case config.BucketHour:
		return time.Hour
	case config.BucketDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

type bucket struct {
	start  time.Time
	sums   map[string]float64
	counts map[string]int
}

func (b *bucket) values() map[string]float64 {
	out := make(map[string]float64, len(b.sums))
	for name, sum := range b.sums {
		out[name] = sum / float64(b.counts[name])
	}
	return out
}

// Derive scores every observation recorded after the user's latest score
// record and appends one record per bucket in ascending order. It returns
// an empty slice when there is nothing new to score.
func (s *Scorer) Derive(ctx context.Context, userID int64) ([]Record, error) {
	logger := logging.WithContext(ctx, s.logger).With(logging.UserID(userID))

	latest, err := s.store.LatestScore(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scoring", "derive", "load latest score", err)
	}
	previous := map[string]float64{}
	var since time.Time
	exclusive := false
	if latest != nil {
		rec, err := recordFromStore(*latest)
		if err != nil {
			logging.WarnWithContext(logger, "latest score record unreadable; smoothing restarts from zero", "score_decode_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "smoothed scores lose their history"),
			)
		} else {
			previous = rec.IndicatorScores
		}
		if span := bucketSpan(s.cfg.Bucket); span > 0 {
			since = BucketStart(latest.Timestamp, s.cfg.Bucket).Add(span)
		} else {
			since = latest.Timestamp
			exclusive = true
		}
	}

	observations, err := s.store.ObservationsSince(ctx, userID, since, exclusive)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scoring", "derive", "load observations", err)
	}
	if len(observations) == 0 {
		logger.Debug("no new observations", logging.Args(logging.DecisionAttrs("derive", "skip", "no observations since last score")...)...)
		return []Record{}, nil
	}

	effective, err := s.configs.EffectiveConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	buckets, err := s.standardizeBuckets(ctx, userID, observations, effective)
	if err != nil {
		return nil, err
	}

	first, hasFirst, err := s.store.FirstScoreTime(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scoring", "derive", "load first score time", err)
	}
	window := time.Duration(s.cfg.LearningWindowDays) * 24 * time.Hour
	rule := Rule{MinActive: s.cfg.MinActiveIndicators, CorePrefixes: s.cfg.CoreIndicatorPrefixes}

	records := make([]Record, 0, len(buckets))
	for _, b := range buckets {
		z := b.values()
		smoothed, binary := Step(effective, z, previous)
		learning := !hasFirst || b.start.Sub(first) < window
		if !hasFirst {
			first, hasFirst = b.start, true
		}
		rec := Record{
			UserID:          userID,
			Timestamp:       b.start,
			IndicatorScores: smoothed,
			BinaryScores:    binary,
			MDDSignal:       !learning && rule.Signal(binary),
			LearningMode:    learning,
		}
		if s.cfg.Explanations {
			rec.Explanations = Explain(effective, z, smoothed)
		}
		records = append(records, rec)
		previous = smoothed
	}

	rows := make([]store.ScoreRecord, 0, len(records))
	for _, rec := range records {
		row, err := rec.toStore()
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "scoring", "derive", "encode record", err)
		}
		rows = append(rows, row)
	}
	if _, err := s.store.InsertScores(ctx, rows); err != nil {
		if errors.Is(err, store.ErrDuplicateScore) {
			return nil, services.Wrap(services.ErrConflict, "scoring", "derive", "score already recorded for bucket", err)
		}
		return nil, services.Wrap(services.ErrStorage, "scoring", "derive", "save records", err)
	}

	last := records[len(records)-1]
	logger.Info("indicator scores derived",
		logging.String(logging.FieldEventType, "scores_derived"),
		logging.Int("records", len(records)),
		logging.Int("observations", len(observations)),
		logging.Bool("mdd_signal", last.MDDSignal),
		logging.Bool("learning_mode", last.LearningMode),
	)
	return records, nil
}

// standardizeBuckets converts observations into per-bucket mean z-scores.
// Each observation is standardized against the baseline for its own time of
// day; snapshots are loaded once per context.
func (s *Scorer) standardizeBuckets(ctx context.Context, userID int64, observations []store.Observation, effective mapping.EffectiveConfig) ([]*bucket, error) {
	snapshots := map[baseline.ContextKey]baseline.Metrics{}
	byStart := map[int64]*bucket{}
	for _, obs := range observations {
		key := baseline.ResolveContext(obs.ObservedAt)
		snapshot, ok := snapshots[key]
		if !ok {
			var err error
			snapshot, _, err = s.baselines.Snapshot(ctx, userID, obs.ObservedAt)
			if err != nil {
				return nil, err
			}
			snapshots[key] = snapshot
		}
		stat, found := snapshot[obs.MetricName]
		z := standardize.ZScore(obs.Value, stat, found, effective.ClipThreshold(obs.MetricName))

		start := BucketStart(obs.ObservedAt, s.cfg.Bucket)
		b, ok := byStart[start.UnixNano()]
		if !ok {
			b = &bucket{start: start, sums: map[string]float64{}, counts: map[string]int{}}
			byStart[start.UnixNano()] = b
		}
		b.sums[obs.MetricName] += z
		b.counts[obs.MetricName]++
	}

	out := make([]*bucket, 0, len(byStart))
	for _, b := range byStart {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out, nil
}

// Latest returns the user's most recent record, or nil when none exists.
func (s *Scorer) Latest(ctx context.Context, userID int64) (*Record, error) {
	row, err := s.store.LatestScore(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scoring", "latest", "", err)
	}
	if row == nil {
		return nil, nil
	}
	rec, err := recordFromStore(*row)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scoring", "latest", "", err)
	}
	return &rec, nil
}

// LatestIndicatorScores returns the user's current smoothed scores, or nil
// when the user has no history.
func (s *Scorer) LatestIndicatorScores(ctx context.Context, userID int64) (map[string]float64, error) {
	rec, err := s.Latest(ctx, userID)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.IndicatorScores, nil
}

// List returns up to limit records, newest first.
func (s *Scorer) List(ctx context.Context, userID int64, limit int) ([]Record, error) {
	rows, err := s.store.ListScores(ctx, userID, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "scoring", "list", "", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromStore(row)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "scoring", "list", "", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
