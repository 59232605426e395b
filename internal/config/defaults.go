package config

const (
	defaultDataDir                 = "~/.local/share/resonance"
	defaultLogDir                  = "~/.local/share/resonance/logs"
	defaultAPIBind                 = "127.0.0.1:7490"
	defaultBucket                  = BucketDay
	defaultLearningWindowDays      = 14
	defaultMinActiveIndicators     = 5
	defaultLearningRate            = 0.2
	defaultSelfReportMax           = 3
	defaultCalibrationIndicator    = "6_fatigue_loss_of_energy"
	defaultCalibrationStep         = 0.05
	defaultCalibrationMaxThreshold = 1.0
	defaultActiveMinScore          = 1
	defaultDeriveConcurrency       = 4
	defaultLockTimeout             = 30
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
)

// Observation bucketing modes for Scoring.Bucket.
const (
	BucketExact = "exact"
	BucketHour  = "hour"
	BucketDay   = "day"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Scoring: Scoring{
			Bucket:                defaultBucket,
			LearningWindowDays:    defaultLearningWindowDays,
			MinActiveIndicators:   defaultMinActiveIndicators,
			CoreIndicatorPrefixes: []string{"1_", "2_"},
			Explanations:          true,
		},
		Baseline: Baseline{
			LearningRate:        defaultLearningRate,
			NormalizeSelfReport: true,
			SelfReportMax:       defaultSelfReportMax,
		},
		Calibration: Calibration{
			Indicators:     []string{defaultCalibrationIndicator},
			Step:           defaultCalibrationStep,
			MaxThreshold:   defaultCalibrationMaxThreshold,
			ActiveMinScore: defaultActiveMinScore,
		},
		Workflow: Workflow{
			DeriveConcurrency: defaultDeriveConcurrency,
			LockTimeout:       defaultLockTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
