// Package migration upgrades stored baseline documents between layouts.
package migration

import (
	"context"
	"log/slog"

	"resonance/internal/baseline"
	"resonance/internal/logging"
	"resonance/internal/services"
	"resonance/internal/store"
)

// Store exposes the baseline queries the migrator needs.
type Store interface {
	BaselinesBelowVersion(ctx context.Context, version int) ([]store.BaselineRecord, error)
	BaselinesAtVersion(ctx context.Context, version int) ([]store.BaselineRecord, error)
	ReplaceBaseline(ctx context.Context, id int64, schemaVersion int, body []byte) error
}

// Failure records a document that could not be rewritten.
type Failure struct {
	ID     int64
	UserID int64
	Err    error
}

// Report summarizes a migration run.
type Report struct {
	Direction string
	Scanned   int
	Migrated  int
	Failures  []Failure
	DryRun    bool
}

// Errors returns the number of documents that failed.
func (r Report) Errors() int { return len(r.Failures) }

// Options tunes a migration run.
type Options struct {
	// DryRun decodes and re-encodes documents without writing them.
	DryRun bool
}

// Migrator rewrites baseline documents in place.
type Migrator struct {
	store  Store
	logger *slog.Logger
}

// New returns a Migrator backed by st.
func New(st Store, logger *slog.Logger) *Migrator {
	return &Migrator{store: st, logger: logging.NewComponentLogger(logger, "migration")}
}

// MigrateToV2 wraps every flat document as the general partition of a
// partitioned document. Documents already at version 2 are not selected, so
// repeated runs are no-ops.
func (m *Migrator) MigrateToV2(ctx context.Context, opts Options) (Report, error) {
	records, err := m.store.BaselinesBelowVersion(ctx, baseline.SchemaVersion)
	if err != nil {
		return Report{}, services.Wrap(services.ErrStorage, "migration", "migrate up", "list legacy baselines", err)
	}
	return m.rewrite(ctx, "up", records, opts, func(rec store.BaselineRecord) ([]byte, int, error) {
		doc, err := baseline.Decode(rec.Body, rec.SchemaVersion)
		if err != nil {
			return nil, 0, err
		}
		if doc.UserID == 0 {
			doc.UserID = rec.UserID
		}
		if doc.Timestamp.IsZero() {
			doc.Timestamp = rec.Timestamp
		}
		body, err := baseline.Encode(doc)
		return body, baseline.SchemaVersion, err
	})
}

// RollbackToV1 flattens the general partition of every version 2 document
// back into the legacy layout. Context partitions are discarded.
func (m *Migrator) RollbackToV1(ctx context.Context, opts Options) (Report, error) {
	records, err := m.store.BaselinesAtVersion(ctx, baseline.SchemaVersion)
	if err != nil {
		return Report{}, services.Wrap(services.ErrStorage, "migration", "migrate down", "list partitioned baselines", err)
	}
	return m.rewrite(ctx, "down", records, opts, func(rec store.BaselineRecord) ([]byte, int, error) {
		doc, err := baseline.Decode(rec.Body, rec.SchemaVersion)
		if err != nil {
			return nil, 0, err
		}
		if doc.UserID == 0 {
			doc.UserID = rec.UserID
		}
		if doc.Timestamp.IsZero() {
			doc.Timestamp = rec.Timestamp
		}
		body, err := baseline.EncodeV1(doc)
		return body, 0, err
	})
}

func (m *Migrator) rewrite(ctx context.Context, direction string, records []store.BaselineRecord, opts Options, convert func(store.BaselineRecord) ([]byte, int, error)) (Report, error) {
	report := Report{Direction: direction, Scanned: len(records), DryRun: opts.DryRun}
	logger := logging.WithContext(ctx, m.logger).With(logging.String("direction", direction))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		body, version, err := convert(rec)
		if err == nil && !opts.DryRun {
			err = m.store.ReplaceBaseline(ctx, rec.ID, version, body)
		}
		if err != nil {
			report.Failures = append(report.Failures, Failure{ID: rec.ID, UserID: rec.UserID, Err: err})
			logging.WarnWithContext(logger, "baseline migration failed", "baseline_migration_failed",
				logging.Int64("baseline_id", rec.ID),
				logging.UserID(rec.UserID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "document keeps its previous layout"),
				logging.String(logging.FieldErrorHint, "inspect the stored body and rerun the migration"),
			)
			continue
		}
		report.Migrated++
	}
	logger.Info("baseline migration complete",
		logging.String(logging.FieldEventType, "baseline_migration_complete"),
		logging.Int("scanned", report.Scanned),
		logging.Int("migrated", report.Migrated),
		logging.Int("errors", report.Errors()),
		logging.Bool("dry_run", opts.DryRun),
	)
	return report, nil
}
