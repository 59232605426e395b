package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMapping(); err != nil {
		return err
	}
	c.normalizeScoring()
	c.normalizeCalibration()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("RESONANCE_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("RESONANCE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeMapping() error {
	var err error
	if c.Mapping.DefaultPath, err = expandPath(strings.TrimSpace(c.Mapping.DefaultPath)); err != nil {
		return fmt.Errorf("mapping.default_path: %w", err)
	}
	if c.Mapping.PopulationPath, err = expandPath(strings.TrimSpace(c.Mapping.PopulationPath)); err != nil {
		return fmt.Errorf("mapping.population_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeScoring() {
	c.Scoring.Bucket = strings.ToLower(strings.TrimSpace(c.Scoring.Bucket))
	if c.Scoring.Bucket == "" {
		c.Scoring.Bucket = defaultBucket
	}
	prefixes := make([]string, 0, len(c.Scoring.CoreIndicatorPrefixes))
	for _, prefix := range c.Scoring.CoreIndicatorPrefixes {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			prefixes = append(prefixes, trimmed)
		}
	}
	c.Scoring.CoreIndicatorPrefixes = prefixes
}

func (c *Config) normalizeCalibration() {
	indicators := make([]string, 0, len(c.Calibration.Indicators))
	seen := make(map[string]struct{}, len(c.Calibration.Indicators))
	for _, indicator := range c.Calibration.Indicators {
		trimmed := strings.TrimSpace(indicator)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		indicators = append(indicators, trimmed)
	}
	c.Calibration.Indicators = indicators
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
