package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resonance/internal/baseline"
	"resonance/internal/calibration"
	"resonance/internal/config"
	"resonance/internal/logging"
	"resonance/internal/mapping"
	"resonance/internal/migration"
	"resonance/internal/scoring"
	"resonance/internal/services"
	"resonance/internal/store"
)

// MaxSelfReportScore is the top of the questionnaire item scale.
const MaxSelfReportScore = 3

// Engine exposes the user-facing operations.
type Engine struct {
	cfg        *config.Config
	store      *store.Store
	resolver   *mapping.Resolver
	baselines  *baseline.Manager
	scorer     *scoring.Scorer
	calibrator *calibration.Controller
	migrator   *migration.Migrator
	locks      *userLocks
	logger     *slog.Logger
}

// New wires the components over st. The default mapping document and the
// population baseline are loaded once here and frozen for the engine's
// lifetime.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Engine, error) {
	if cfg == nil || st == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init", "config and store are required", nil)
	}
	defaults, err := mapping.LoadDefaultDocument(cfg.Mapping.DefaultPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init", "load default mapping", err)
	}
	population, err := baseline.LoadPopulation(cfg.Mapping.PopulationPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init", "load population baseline", err)
	}
	if err := os.MkdirAll(cfg.LockDir(), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "init", "create lock directory", err)
	}

	resolver, err := mapping.NewResolver(defaults, st, logger)
	if err != nil {
		return nil, err
	}
	baselines, err := baseline.NewManager(st, nil, resolver, population, cfg.Baseline, logger)
	if err != nil {
		return nil, err
	}
	scorer := scoring.New(st, baselines, resolver, cfg.Scoring, logger)
	baselines.SetPredictions(scorer)

	return &Engine{
		cfg:        cfg,
		store:      st,
		resolver:   resolver,
		baselines:  baselines,
		scorer:     scorer,
		calibrator: calibration.New(resolver, scorer, cfg.Calibration, logger),
		migrator:   migration.New(st, logger),
		locks:      newUserLocks(cfg.LockDir(), time.Duration(cfg.Workflow.LockTimeout)*time.Second),
		logger:     logging.NewComponentLogger(logger, "engine"),
	}, nil
}

func userContext(ctx context.Context, userID int64, operation string) context.Context {
	return services.WithOperation(services.WithUserID(ctx, userID), operation)
}

func validateUser(operation string, userID int64) error {
	if userID <= 0 {
		return services.Wrap(services.ErrValidation, "engine", operation, "user id must be positive", nil)
	}
	return nil
}

func validateTimestamp(operation, subject string, ts time.Time) error {
	if !store.TimestampInRange(ts) {
		return services.Wrap(services.ErrValidation, "engine", operation,
			fmt.Sprintf("%s timestamp %s is outside %d-%d", subject, ts.UTC().Format(time.RFC3339), store.MinTimestamp.Year(), store.MaxTimestamp.Year()), nil)
	}
	return nil
}

// ResolveConfig returns the user's effective configuration.
func (e *Engine) ResolveConfig(ctx context.Context, userID int64) (mapping.EffectiveConfig, error) {
	if err := validateUser("resolve config", userID); err != nil {
		return nil, err
	}
	return e.resolver.EffectiveConfig(userContext(ctx, userID, "resolve_config"), userID)
}

// UpdateThreshold sets an indicator's severity threshold for the user.
func (e *Engine) UpdateThreshold(ctx context.Context, userID int64, indicator string, value float64) error {
	if err := validateUser("update threshold", userID); err != nil {
		return err
	}
	ctx = userContext(ctx, userID, "update_threshold")
	release, err := e.locks.forUser(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return e.resolver.UpdateThreshold(ctx, userID, indicator, value)
}

// UpdateWeight sets a metric weight within an indicator for the user.
func (e *Engine) UpdateWeight(ctx context.Context, userID int64, indicator, metric string, value float64) error {
	if err := validateUser("update weight", userID); err != nil {
		return err
	}
	ctx = userContext(ctx, userID, "update_weight")
	release, err := e.locks.forUser(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return e.resolver.UpdateWeight(ctx, userID, indicator, metric, value)
}

// Baseline looks up one metric, or every visible metric when metric is empty.
// A zero ts resolves to the general context.
func (e *Engine) Baseline(ctx context.Context, userID int64, metric string, ts time.Time) (BaselineView, error) {
	if err := validateUser("get baseline", userID); err != nil {
		return BaselineView{}, err
	}
	ctx = userContext(ctx, userID, "get_baseline")
	doc, err := e.baselines.Document(ctx, userID)
	if err != nil {
		return BaselineView{}, err
	}
	snapshot, key, err := e.baselines.Snapshot(ctx, userID, ts)
	if err != nil {
		return BaselineView{}, err
	}
	view := BaselineView{UserID: userID, Context: key, ColdStart: doc == nil}
	metric = strings.TrimSpace(metric)
	if metric == "" {
		view.Metrics = snapshot
		return view, nil
	}
	view.Metric = metric
	stat, ok := snapshot[metric]
	if !ok {
		return view, services.Wrap(services.ErrNotFound, "engine", "get baseline", fmt.Sprintf("metric %q has no baseline", metric), nil)
	}
	view.Stat = &stat
	return view, nil
}

// ImportBaseline stores a baseline document for the user.
func (e *Engine) ImportBaseline(ctx context.Context, userID int64, ts time.Time, body []byte) (baseline.Document, error) {
	if err := validateUser("import baseline", userID); err != nil {
		return baseline.Document{}, err
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if err := validateTimestamp("import baseline", "baseline", ts); err != nil {
		return baseline.Document{}, err
	}
	ctx = userContext(ctx, userID, "import_baseline")
	release, err := e.locks.forUser(ctx, userID)
	if err != nil {
		return baseline.Document{}, err
	}
	defer release()
	return e.baselines.Import(ctx, userID, ts, body)
}

// IngestMetrics appends raw observations for the user and returns how many
// were stored. Non-finite values are stored and later standardize to zero.
func (e *Engine) IngestMetrics(ctx context.Context, userID int64, observations []Observation) (int, error) {
	if err := validateUser("ingest metrics", userID); err != nil {
		return 0, err
	}
	if len(observations) == 0 {
		return 0, nil
	}
	rows := make([]store.Observation, 0, len(observations))
	for i, obs := range observations {
		name := strings.TrimSpace(obs.Metric)
		if name == "" {
			return 0, services.Wrap(services.ErrValidation, "engine", "ingest metrics", fmt.Sprintf("observation %d: metric name is required", i), nil)
		}
		if obs.Timestamp.IsZero() {
			return 0, services.Wrap(services.ErrValidation, "engine", "ingest metrics", fmt.Sprintf("observation %d: timestamp is required", i), nil)
		}
		if err := validateTimestamp("ingest metrics", fmt.Sprintf("observation %d", i), obs.Timestamp); err != nil {
			return 0, err
		}
		rows = append(rows, store.Observation{UserID: userID, MetricName: name, Value: obs.Value, ObservedAt: obs.Timestamp})
	}
	ctx = userContext(ctx, userID, "ingest_metrics")
	if err := e.store.InsertObservations(ctx, rows); err != nil {
		return 0, services.Wrap(services.ErrStorage, "engine", "ingest metrics", "", err)
	}
	logging.WithContext(ctx, e.logger).Debug("observations ingested", logging.Int("count", len(rows)))
	return len(rows), nil
}

// DeriveScores scores every unprocessed observation batch for the user.
func (e *Engine) DeriveScores(ctx context.Context, userID int64) ([]scoring.Record, error) {
	if err := validateUser("derive scores", userID); err != nil {
		return nil, err
	}
	ctx = userContext(ctx, userID, "derive_scores")
	release, err := e.locks.forUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.scorer.Derive(ctx, userID)
}

// DeriveAll derives scores for every user with observations, running up to
// workflow.derive_concurrency users in parallel. Per-user failures are
// reported in the summary; storage failures abort the batch.
func (e *Engine) DeriveAll(ctx context.Context) (DeriveSummary, error) {
	users, err := e.store.ObservationUsers(ctx)
	if err != nil {
		return DeriveSummary{}, services.Wrap(services.ErrStorage, "engine", "derive all", "list users", err)
	}
	summary := DeriveSummary{Users: len(users), Results: make([]UserResult, 0, len(users))}
	if len(users) == 0 {
		return summary, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Workflow.DeriveConcurrency, 1))
	var mu sync.Mutex
	for _, userID := range users {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			records, err := e.DeriveScores(gctx, userID)
			mu.Lock()
			summary.Results = append(summary.Results, UserResult{UserID: userID, Records: len(records), Err: err})
			summary.Records += len(records)
			mu.Unlock()
			if err != nil {
				if errors.Is(err, services.ErrStorage) {
					return err
				}
				logging.WarnWithContext(logging.WithContext(userContext(gctx, userID, "derive_all"), e.logger),
					"derive failed for user", "derive_user_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "scores for this user stay at the previous record"),
					logging.String(logging.FieldErrorHint, "rerun derive for the user after resolving the error"),
				)
			}
			return nil
		})
	}
	err = g.Wait()
	sort.Slice(summary.Results, func(i, j int) bool { return summary.Results[i].UserID < summary.Results[j].UserID })
	if err != nil {
		return summary, err
	}
	e.logger.Info("derive all complete",
		logging.String(logging.FieldEventType, "derive_all_complete"),
		logging.Int("users", summary.Users),
		logging.Int("records", summary.Records),
		logging.Int("failed", summary.Failed()),
	)
	return summary, nil
}

// SubmitSelfReport persists a self-report, fine-tunes the user's baseline,
// and then runs threshold calibration. Indicators unknown to the user's
// configuration are ignored by both steps.
func (e *Engine) SubmitSelfReport(ctx context.Context, userID int64, report SelfReport) (SubmissionResult, error) {
	if err := validateUser("submit self-report", userID); err != nil {
		return SubmissionResult{}, err
	}
	if len(report.Scores) == 0 {
		return SubmissionResult{}, services.Wrap(services.ErrValidation, "engine", "submit self-report", "scores are required", nil)
	}
	for indicator, score := range report.Scores {
		if score < 0 || score > MaxSelfReportScore {
			return SubmissionResult{}, services.Wrap(services.ErrValidation, "engine", "submit self-report",
				fmt.Sprintf("score for %q must be between 0 and %d", indicator, MaxSelfReportScore), nil)
		}
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}
	if err := validateTimestamp("submit self-report", "self-report", report.Timestamp); err != nil {
		return SubmissionResult{}, err
	}

	ctx = userContext(ctx, userID, "submit_self_report")
	release, err := e.locks.forUser(ctx, userID)
	if err != nil {
		return SubmissionResult{}, err
	}
	defer release()

	result := SubmissionResult{ID: uuid.NewString()}
	scores := make(map[string]int, len(report.Scores))
	for k, v := range report.Scores {
		scores[k] = v
	}
	rec := store.SelfReportRecord{
		ID:               result.ID,
		UserID:           userID,
		Timestamp:        report.Timestamp,
		Scores:           scores,
		TotalScore:       report.TotalScore,
		FunctionalImpact: strings.TrimSpace(report.FunctionalImpact),
	}
	if err := e.store.InsertSelfReport(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateSelfReport) {
			return SubmissionResult{}, services.Wrap(services.ErrConflict, "engine", "submit self-report", "a self-report already exists for this timestamp", err)
		}
		return SubmissionResult{}, services.Wrap(services.ErrStorage, "engine", "submit self-report", "save submission", err)
	}

	result.Finetune, err = e.baselines.Finetune(ctx, userID, baseline.Feedback{Scores: scores, Timestamp: report.Timestamp})
	if err != nil {
		return result, err
	}
	result.Calibration, err = e.calibrator.Calibrate(ctx, userID, scores)
	if err != nil {
		return result, err
	}
	logging.WithContext(ctx, e.logger).Info("self-report processed",
		logging.String(logging.FieldEventType, "self_report_processed"),
		logging.String("submission_id", result.ID),
		logging.Bool("baseline_updated", result.Finetune.Updated),
		logging.Int("calibration_decisions", len(result.Calibration)),
	)
	return result, nil
}

// ListScores returns up to limit score records, newest first.
func (e *Engine) ListScores(ctx context.Context, userID int64, limit int) ([]scoring.Record, error) {
	if err := validateUser("list scores", userID); err != nil {
		return nil, err
	}
	return e.scorer.List(userContext(ctx, userID, "list_scores"), userID, limit)
}

// ListSelfReports returns up to limit submissions, newest first.
func (e *Engine) ListSelfReports(ctx context.Context, userID int64, limit int) ([]store.SelfReportRecord, error) {
	if err := validateUser("list self-reports", userID); err != nil {
		return nil, err
	}
	recs, err := e.store.ListSelfReports(ctx, userID, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "engine", "list self-reports", "", err)
	}
	return recs, nil
}

// Migrate upgrades (up) or rolls back stored baseline documents. The run
// holds a store-wide lock so concurrent invocations do not overlap.
func (e *Engine) Migrate(ctx context.Context, up bool, dryRun bool) (migration.Report, error) {
	release, err := e.locks.acquire(ctx, "migration")
	if err != nil {
		return migration.Report{}, err
	}
	defer release()
	opts := migration.Options{DryRun: dryRun}
	if up {
		return e.migrator.MigrateToV2(ctx, opts)
	}
	return e.migrator.RollbackToV1(ctx, opts)
}

// Status reports store location, row counts, and applied migrations.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return Status{}, services.Wrap(services.ErrStorage, "engine", "status", "", err)
	}
	applied, err := e.store.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, services.Wrap(services.ErrStorage, "engine", "status", "", err)
	}
	return Status{StorePath: e.store.Path(), Stats: stats, Migrations: applied}, nil
}

// Known reports whether indicator exists in the default mapping.
func (e *Engine) Known(indicator string) bool {
	return e.resolver.Known(indicator)
}
