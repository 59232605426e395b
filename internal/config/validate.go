package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateBaseline(); err != nil {
		return err
	}
	if err := c.validateCalibration(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateScoring() error {
	switch c.Scoring.Bucket {
	case BucketExact, BucketHour, BucketDay:
	default:
		return fmt.Errorf("scoring.bucket must be one of %q, %q, %q (got %q)", BucketExact, BucketHour, BucketDay, c.Scoring.Bucket)
	}
	if c.Scoring.LearningWindowDays < 0 {
		return errors.New("scoring.learning_window_days must be >= 0")
	}
	if c.Scoring.MinActiveIndicators < 1 {
		return errors.New("scoring.min_active_indicators must be >= 1")
	}
	if len(c.Scoring.CoreIndicatorPrefixes) == 0 {
		return errors.New("scoring.core_indicator_prefixes must include at least one prefix")
	}
	return nil
}

func (c *Config) validateBaseline() error {
	if c.Baseline.LearningRate <= 0 || c.Baseline.LearningRate > 1 {
		return errors.New("baseline.learning_rate must be between 0 (exclusive) and 1")
	}
	if c.Baseline.NormalizeSelfReport && c.Baseline.SelfReportMax <= 0 {
		return errors.New("baseline.self_report_max must be positive when baseline.normalize_self_report is true")
	}
	return nil
}

func (c *Config) validateCalibration() error {
	if c.Calibration.Step <= 0 {
		return errors.New("calibration.step must be positive")
	}
	if c.Calibration.MaxThreshold <= 0 {
		return errors.New("calibration.max_threshold must be positive")
	}
	if c.Calibration.ActiveMinScore < 0 {
		return errors.New("calibration.active_min_score must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.derive_concurrency": c.Workflow.DeriveConcurrency,
		"workflow.lock_timeout":       c.Workflow.LockTimeout,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
