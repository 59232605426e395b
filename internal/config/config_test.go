package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"resonance/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("RESONANCE_API_TOKEN", "secret")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "resonance")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.StorePath() != filepath.Join(wantData, "resonance.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Scoring.Bucket != config.BucketDay {
		t.Fatalf("unexpected bucket default: %q", cfg.Scoring.Bucket)
	}
	if cfg.Scoring.LearningWindowDays != 14 {
		t.Fatalf("unexpected learning window: %d", cfg.Scoring.LearningWindowDays)
	}
	if cfg.Baseline.LearningRate != 0.2 {
		t.Fatalf("unexpected learning rate: %v", cfg.Baseline.LearningRate)
	}
	if len(cfg.Calibration.Indicators) != 1 || cfg.Calibration.Indicators[0] != "6_fatigue_loss_of_energy" {
		t.Fatalf("unexpected calibration indicators: %v", cfg.Calibration.Indicators)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir": "~/data",
		},
		"scoring": map[string]any{
			"bucket":                  " HOUR ",
			"core_indicator_prefixes": []string{" 1_", "", "2_"},
		},
		"calibration": map[string]any{
			"indicators": []string{"6_fatigue_loss_of_energy", "6_fatigue_loss_of_energy", " 4_insomnia_hypersomnia "},
		},
		"logging": map[string]any{
			"format": "JSON",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Scoring.Bucket != config.BucketHour {
		t.Fatalf("expected bucket normalized to hour, got %q", cfg.Scoring.Bucket)
	}
	if strings.Join(cfg.Scoring.CoreIndicatorPrefixes, ",") != "1_,2_" {
		t.Fatalf("unexpected prefixes: %v", cfg.Scoring.CoreIndicatorPrefixes)
	}
	if strings.Join(cfg.Calibration.Indicators, ",") != "6_fatigue_loss_of_energy,4_insomnia_hypersomnia" {
		t.Fatalf("unexpected calibration indicators: %v", cfg.Calibration.Indicators)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bucket", func(c *config.Config) { c.Scoring.Bucket = "week" }, "scoring.bucket"},
		{"min active", func(c *config.Config) { c.Scoring.MinActiveIndicators = 0 }, "scoring.min_active_indicators"},
		{"prefixes", func(c *config.Config) { c.Scoring.CoreIndicatorPrefixes = nil }, "scoring.core_indicator_prefixes"},
		{"learning rate", func(c *config.Config) { c.Baseline.LearningRate = 0 }, "baseline.learning_rate"},
		{"self report max", func(c *config.Config) { c.Baseline.SelfReportMax = 0 }, "baseline.self_report_max"},
		{"step", func(c *config.Config) { c.Calibration.Step = -0.1 }, "calibration.step"},
		{"concurrency", func(c *config.Config) { c.Workflow.DeriveConcurrency = 0 }, "workflow.derive_concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Calibration.Step != 0.05 {
		t.Fatalf("unexpected step from sample: %v", cfg.Calibration.Step)
	}
}
