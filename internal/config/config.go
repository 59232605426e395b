package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Mapping points at the documents the Configuration Resolver and the
// Baseline Store load once at process start. Empty paths select the
// embedded documents.
type Mapping struct {
	DefaultPath    string `toml:"default_path"`
	PopulationPath string `toml:"population_path"`
}

// Scoring contains configuration for the Indicator Scorer.
type Scoring struct {
	// Bucket controls how observations are grouped into batches: "exact"
	// groups by identical timestamps, "hour" and "day" truncate first.
	Bucket                string   `toml:"bucket"`
	LearningWindowDays    int      `toml:"learning_window_days"`
	MinActiveIndicators   int      `toml:"min_active_indicators"`
	CoreIndicatorPrefixes []string `toml:"core_indicator_prefixes"`
	Explanations          bool     `toml:"explanations"`
}

// Baseline contains configuration for baseline fine-tuning.
type Baseline struct {
	LearningRate float64 `toml:"learning_rate"`
	// NormalizeSelfReport divides self-report item scores by SelfReportMax
	// before computing the prediction error against smoothed scores.
	NormalizeSelfReport bool `toml:"normalize_self_report"`
	SelfReportMax       int  `toml:"self_report_max"`
}

// Calibration contains configuration for the threshold feedback controller.
type Calibration struct {
	Indicators     []string `toml:"indicators"`
	Step           float64  `toml:"step"`
	MaxThreshold   float64  `toml:"max_threshold"`
	ActiveMinScore int      `toml:"active_min_score"`
}

// Workflow contains configuration for batch processing.
type Workflow struct {
	DeriveConcurrency int `toml:"derive_concurrency"`
	LockTimeout       int `toml:"lock_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Resonance.
//
// Configuration sections by subsystem:
//   - Paths: document store location, log directory, API bind address
//   - Mapping: default indicator mapping and population baseline documents
//   - Scoring: batching, learning window, diagnostic combination rule
//   - Baseline: fine-tuning learning rate and self-report scale handling
//   - Calibration: indicators under threshold calibration and step size
//   - Workflow: derive concurrency and per-user lock timeout
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Mapping     Mapping     `toml:"mapping"`
	Scoring     Scoring     `toml:"scoring"`
	Baseline    Baseline    `toml:"baseline"`
	Calibration Calibration `toml:"calibration"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/resonance/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/resonance/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("resonance.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite document store location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "resonance.db")
}

// LockDir returns the directory holding per-user and daemon lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
