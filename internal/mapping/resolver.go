package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"resonance/internal/logging"
	"resonance/internal/services"
	"resonance/internal/store"
)

// OverrideStore persists per-user override documents.
type OverrideStore interface {
	UserOverrides(ctx context.Context, userID int64) (*store.OverrideRecord, error)
	PutUserOverrides(ctx context.Context, userID int64, body []byte) error
}

// Resolver produces effective per-user configuration from a frozen default
// document and stored overrides.
type Resolver struct {
	defaults  Document
	known     map[string]struct{}
	overrides OverrideStore
	logger    *slog.Logger
}

// NewResolver freezes a private copy of defaults and returns a resolver that
// reads and writes overrides through overrides.
func NewResolver(defaults Document, overrides OverrideStore, logger *slog.Logger) (*Resolver, error) {
	if len(defaults) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "mapping", "init", "default mapping document is empty", nil)
	}
	if overrides == nil {
		return nil, services.Wrap(services.ErrConfiguration, "mapping", "init", "override store is required", nil)
	}
	frozen := defaults.Clone()
	known := make(map[string]struct{}, len(frozen))
	for key, value := range frozen {
		if _, ok := value.(map[string]any); ok {
			known[key] = struct{}{}
		}
	}
	return &Resolver{
		defaults:  frozen,
		known:     known,
		overrides: overrides,
		logger:    logging.NewComponentLogger(logger, "mapping"),
	}, nil
}

// Defaults returns the resolved default configuration.
func (r *Resolver) Defaults() EffectiveConfig {
	return resolve(r.defaults.Clone(), r.known)
}

// Known reports whether indicator exists in the default document.
func (r *Resolver) Known(indicator string) bool {
	_, ok := r.known[indicator]
	return ok
}

// EffectiveConfig returns the default configuration merged with the user's
// overrides. Users without overrides receive a fresh copy of the defaults.
func (r *Resolver) EffectiveConfig(ctx context.Context, userID int64) (EffectiveConfig, error) {
	override, err := r.Overrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(override) == 0 {
		return r.Defaults(), nil
	}
	return resolve(Merge(r.defaults, override), r.known), nil
}

// Overrides returns the user's sparse override document, or an empty document.
func (r *Resolver) Overrides(ctx context.Context, userID int64) (Document, error) {
	rec, err := r.overrides.UserOverrides(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "mapping", "load overrides", "", err)
	}
	if rec == nil || len(rec.Body) == 0 {
		return Document{}, nil
	}
	doc, err := ParseDocument(rec.Body)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "override document unreadable; using defaults", "override_decode_failed",
			logging.UserID(userID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "user customizations are ignored until the override is rewritten"),
		)
		return Document{}, nil
	}
	return doc, nil
}

// UpdateThreshold upserts the severity threshold override for indicator.
func (r *Resolver) UpdateThreshold(ctx context.Context, userID int64, indicator string, threshold float64) error {
	indicator = strings.TrimSpace(indicator)
	if !r.Known(indicator) {
		return services.Wrap(services.ErrValidation, "mapping", "update threshold", fmt.Sprintf("unknown indicator %q", indicator), nil)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return services.Wrap(services.ErrValidation, "mapping", "update threshold", "threshold must be finite", nil)
	}
	return r.updateOverride(ctx, userID, threshold, indicator, "severity_threshold")
}

// UpdateWeight upserts the weight override for metric within indicator. The
// metric does not need to exist in the default document; new metrics inherit
// a positive direction and the default clipping threshold.
func (r *Resolver) UpdateWeight(ctx context.Context, userID int64, indicator, metric string, weight float64) error {
	indicator = strings.TrimSpace(indicator)
	metric = strings.TrimSpace(metric)
	if !r.Known(indicator) {
		return services.Wrap(services.ErrValidation, "mapping", "update weight", fmt.Sprintf("unknown indicator %q", indicator), nil)
	}
	if metric == "" {
		return services.Wrap(services.ErrValidation, "mapping", "update weight", "metric name is required", nil)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return services.Wrap(services.ErrValidation, "mapping", "update weight", "weight must be finite", nil)
	}
	return r.updateOverride(ctx, userID, weight, indicator, "metrics", metric, "weight")
}

func (r *Resolver) updateOverride(ctx context.Context, userID int64, value float64, path ...string) error {
	doc, err := r.Overrides(ctx, userID)
	if err != nil {
		return err
	}
	doc.setPath(value, path...)
	body, err := doc.Marshal()
	if err != nil {
		return services.Wrap(services.ErrStorage, "mapping", "encode overrides", "", err)
	}
	if err := r.overrides.PutUserOverrides(ctx, userID, body); err != nil {
		return services.Wrap(services.ErrStorage, "mapping", "save overrides", "", err)
	}
	logging.WithContext(ctx, r.logger).Info("override updated",
		logging.UserID(userID),
		logging.String("path", strings.Join(path, ".")),
		logging.Float64("value", value),
		logging.String(logging.FieldEventType, "override_updated"),
	)
	return nil
}
