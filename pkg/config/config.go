package config

import "time"

// Config is the root configuration structure for Warden.
// It contains all configuration sections for the governance engine: signal
// collection, policy thresholds, trust-lock behavior, escalation lifecycle,
// rate limiting, persistence, history storage, and telemetry.
type Config struct {
	// Engine contains paths and tick-level settings for the engine itself.
	Engine EngineConfig `yaml:"engine"`

	// Policy contains the GREEN/YELLOW/RED threshold set used by the
	// policy evaluator.
	Policy PolicyConfig `yaml:"policy"`

	// TrustLock contains the three trust thresholds, lock windows, and the
	// manual-unlock quota.
	TrustLock TrustLockConfig `yaml:"trust_lock"`

	// Escalation contains timing for the escalation lifecycle state machine.
	Escalation EscalationConfig `yaml:"escalation"`

	// RateLimit contains the rolling automated-action budget and safety
	// brake settings.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Persistence contains the retry schedule for durable writes and the
	// diagnostic-bundle location.
	Persistence PersistenceConfig `yaml:"persistence"`

	// History contains configuration for the queryable snapshot/transition
	// history backend.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains paths and tick-level settings for the engine.
type EngineConfig struct {
	// StateDir is the directory holding all durable engine state: the
	// current policy snapshot, trust-lock state, escalation records,
	// rate-limiter window, audit markers, and append-only logs.
	// Default: "data/state"
	StateDir string `yaml:"state_dir"`

	// SignalsDir is the directory holding externally produced signal
	// artifacts (integrity, consensus, reputation, forecast, responses).
	// Each artifact is independently optional.
	// Default: "data/signals"
	SignalsDir string `yaml:"signals_dir"`
}

// PolicyConfig contains the threshold set for the policy evaluator.
// Numeric comparisons use closed/open interval semantics: a value exactly at
// a yellow boundary is YELLOW, not GREEN.
type PolicyConfig struct {
	// RedIntegrity is the integrity score below which the policy level is
	// RED. Default: 90
	RedIntegrity float64 `yaml:"red_integrity"`

	// RedConsensus is the consensus agreement below which the policy level
	// is RED. Default: 85
	RedConsensus float64 `yaml:"red_consensus"`

	// RedResponses is the recent automated-action count at or above which
	// the policy level is RED. Default: 8
	RedResponses int `yaml:"red_responses"`

	// YellowIntegrity is the integrity score below which (and at or above
	// RedIntegrity) the policy level is YELLOW. Default: 95
	YellowIntegrity float64 `yaml:"yellow_integrity"`

	// YellowConsensus is the consensus agreement below which (and at or
	// above RedConsensus) the policy level is YELLOW. Default: 90
	YellowConsensus float64 `yaml:"yellow_consensus"`

	// YellowReputation is the peer reputation below which the policy level
	// is YELLOW. Default: 80
	YellowReputation float64 `yaml:"yellow_reputation"`

	// YellowResponses is the recent automated-action count at or above
	// which (and below RedResponses) the policy level is YELLOW.
	// Default: 4
	YellowResponses int `yaml:"yellow_responses"`
}

// TrustLockConfig contains trust-lock thresholds and unlock behavior.
type TrustLockConfig struct {
	// MinIntegrity is the integrity score below which the trust lock
	// engages. Default: 90
	MinIntegrity float64 `yaml:"min_integrity"`

	// MinConsensus is the weighted-consensus value below which the trust
	// lock engages. Default: 92
	MinConsensus float64 `yaml:"min_consensus"`

	// MinReputation is the reputation index below which the trust lock
	// engages. Default: 85
	MinReputation float64 `yaml:"min_reputation"`

	// LockWindow is the minimum time a lock stays engaged before automatic
	// unlock becomes eligible. Default: 60m
	LockWindow time.Duration `yaml:"lock_window"`

	// MaxLockDuration is the hard ceiling after which an unconditional
	// forced unlock occurs to avoid permanent deadlock. Default: 24h
	MaxLockDuration time.Duration `yaml:"max_lock_duration"`

	// ManualUnlocksPerDay is the number of manual unlocks permitted per UTC
	// calendar day. Default: 2
	ManualUnlocksPerDay int `yaml:"manual_unlocks_per_day"`

	// OverrideCredential is the shared credential required by the emergency
	// override path. Empty disables overrides. Prefer setting this via
	// WARDEN_TRUST_LOCK_OVERRIDE_CREDENTIAL rather than the config file.
	OverrideCredential string `yaml:"override_credential"`

	// OverrideBypassesBrake controls whether an emergency override also
	// bypasses the safety brake, or only the trust lock.
	// Default: false (the brake still applies)
	OverrideBypassesBrake bool `yaml:"override_bypasses_brake"`
}

// EscalationConfig contains timing for the escalation lifecycle.
type EscalationConfig struct {
	// PendingTimeout is how long a record may sit in "pending" without
	// human action before it advances to "in_progress". Default: 24h
	PendingTimeout time.Duration `yaml:"pending_timeout"`

	// StuckThreshold is how long a record may hold any non-terminal state
	// before it is reported as stuck. Default: 72h
	StuckThreshold time.Duration `yaml:"stuck_threshold"`
}

// RateLimitConfig contains the rolling action budget and brake settings.
type RateLimitConfig struct {
	// Window is the rolling window over which automated actions are
	// counted. Default: 24h
	Window time.Duration `yaml:"window"`

	// BucketSize is the granularity of the rolling window's buckets.
	// Smaller buckets are more accurate but produce larger persisted
	// state. Default: 1h
	BucketSize time.Duration `yaml:"bucket_size"`

	// Ceiling is the automated-action count at which the safety brake
	// engages. Default: 10
	Ceiling int `yaml:"ceiling"`
}

// PersistenceConfig contains the retry schedule for durable writes.
type PersistenceConfig struct {
	// RetryBackoff is the fixed backoff schedule between write attempts.
	// The first attempt is immediate; each entry is the delay before the
	// next retry. Default: [1s, 3s, 9s]
	RetryBackoff []time.Duration `yaml:"retry_backoff"`

	// FixDir is the directory (relative to StateDir unless absolute) where
	// diagnostic bundles are materialized when all retries are exhausted.
	// Default: "fix"
	FixDir string `yaml:"fix_dir"`
}

// HistoryConfig contains configuration for the history backend.
type HistoryConfig struct {
	// Backend selects the history storage backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/history.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json", "text", or "console".
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "warden"
	Namespace string `yaml:"namespace"`

	// ListenAddress is the address for the /metrics endpoint when running
	// in watch mode. Empty disables the endpoint.
	// Default: "" (disabled)
	ListenAddress string `yaml:"listen_address"`
}
