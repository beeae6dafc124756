package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultStateDir   = "data/state"
	DefaultSignalsDir = "data/signals"

	// Policy thresholds
	DefaultRedIntegrity     = 90.0
	DefaultRedConsensus     = 85.0
	DefaultRedResponses     = 8
	DefaultYellowIntegrity  = 95.0
	DefaultYellowConsensus  = 90.0
	DefaultYellowReputation = 80.0
	DefaultYellowResponses  = 4

	// Trust-lock thresholds and windows
	DefaultLockMinIntegrity     = 90.0
	DefaultLockMinConsensus     = 92.0
	DefaultLockMinReputation    = 85.0
	DefaultLockWindow           = 60 * time.Minute
	DefaultMaxLockDuration      = 24 * time.Hour
	DefaultManualUnlocksPerDay  = 2

	// Escalation lifecycle
	DefaultPendingTimeout = 24 * time.Hour
	DefaultStuckThreshold = 72 * time.Hour

	// Rate limiter
	DefaultRateLimitWindow     = 24 * time.Hour
	DefaultRateLimitBucketSize = time.Hour
	DefaultRateLimitCeiling    = 10

	// Persistence
	DefaultFixDir = "fix"

	// History
	DefaultHistoryBackend     = "sqlite"
	DefaultHistorySQLitePath  = "data/history.db"
	DefaultHistoryBusyTimeout = 5 * time.Second

	// Telemetry
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "warden"
)

// DefaultRetryBackoff is the fixed backoff schedule between persistence
// write attempts.
var DefaultRetryBackoff = []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}

// DefaultConfig returns a Config populated entirely with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in default values for any unset configuration fields.
// It is called automatically by LoadConfig.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.StateDir == "" {
		cfg.Engine.StateDir = DefaultStateDir
	}
	if cfg.Engine.SignalsDir == "" {
		cfg.Engine.SignalsDir = DefaultSignalsDir
	}

	// Policy defaults
	if cfg.Policy.RedIntegrity == 0 {
		cfg.Policy.RedIntegrity = DefaultRedIntegrity
	}
	if cfg.Policy.RedConsensus == 0 {
		cfg.Policy.RedConsensus = DefaultRedConsensus
	}
	if cfg.Policy.RedResponses == 0 {
		cfg.Policy.RedResponses = DefaultRedResponses
	}
	if cfg.Policy.YellowIntegrity == 0 {
		cfg.Policy.YellowIntegrity = DefaultYellowIntegrity
	}
	if cfg.Policy.YellowConsensus == 0 {
		cfg.Policy.YellowConsensus = DefaultYellowConsensus
	}
	if cfg.Policy.YellowReputation == 0 {
		cfg.Policy.YellowReputation = DefaultYellowReputation
	}
	if cfg.Policy.YellowResponses == 0 {
		cfg.Policy.YellowResponses = DefaultYellowResponses
	}

	// Trust-lock defaults
	if cfg.TrustLock.MinIntegrity == 0 {
		cfg.TrustLock.MinIntegrity = DefaultLockMinIntegrity
	}
	if cfg.TrustLock.MinConsensus == 0 {
		cfg.TrustLock.MinConsensus = DefaultLockMinConsensus
	}
	if cfg.TrustLock.MinReputation == 0 {
		cfg.TrustLock.MinReputation = DefaultLockMinReputation
	}
	if cfg.TrustLock.LockWindow == 0 {
		cfg.TrustLock.LockWindow = DefaultLockWindow
	}
	if cfg.TrustLock.MaxLockDuration == 0 {
		cfg.TrustLock.MaxLockDuration = DefaultMaxLockDuration
	}
	if cfg.TrustLock.ManualUnlocksPerDay == 0 {
		cfg.TrustLock.ManualUnlocksPerDay = DefaultManualUnlocksPerDay
	}

	// Escalation defaults
	if cfg.Escalation.PendingTimeout == 0 {
		cfg.Escalation.PendingTimeout = DefaultPendingTimeout
	}
	if cfg.Escalation.StuckThreshold == 0 {
		cfg.Escalation.StuckThreshold = DefaultStuckThreshold
	}

	// Rate-limit defaults
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.RateLimit.BucketSize == 0 {
		cfg.RateLimit.BucketSize = DefaultRateLimitBucketSize
	}
	if cfg.RateLimit.Ceiling == 0 {
		cfg.RateLimit.Ceiling = DefaultRateLimitCeiling
	}

	// Persistence defaults
	if len(cfg.Persistence.RetryBackoff) == 0 {
		cfg.Persistence.RetryBackoff = append([]time.Duration(nil), DefaultRetryBackoff...)
	}
	if cfg.Persistence.FixDir == "" {
		cfg.Persistence.FixDir = DefaultFixDir
	}

	// History defaults
	if cfg.History.Backend == "" {
		cfg.History.Backend = DefaultHistoryBackend
	}
	if cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = DefaultHistorySQLitePath
	}
	if cfg.History.BusyTimeout == 0 {
		cfg.History.BusyTimeout = DefaultHistoryBusyTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics == (MetricsConfig{}) {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}
