package testsupport

import (
	"path/filepath"
	"testing"

	"resonance/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workflow.LockTimeout = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithBucket overrides the observation bucketing mode.
func WithBucket(bucket string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.Bucket = bucket
	}
}

// WithLearningWindow overrides the learning-mode window in days.
func WithLearningWindow(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.LearningWindowDays = days
	}
}

// WithRawSelfReportScale disables self-report normalization so prediction
// errors use the raw 0-3 scale.
func WithRawSelfReportScale() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Baseline.NormalizeSelfReport = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
