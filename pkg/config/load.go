package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. A missing file is not an error: the defaults are returned, so the
// engine can run without a config file at all.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention WARDEN_SECTION_FIELD (e.g., WARDEN_ENGINE_STATE_DIR) and always
// take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format WARDEN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	if val := os.Getenv("WARDEN_ENGINE_STATE_DIR"); val != "" {
		cfg.Engine.StateDir = val
	}
	if val := os.Getenv("WARDEN_ENGINE_SIGNALS_DIR"); val != "" {
		cfg.Engine.SignalsDir = val
	}

	// Trust-lock overrides
	if val := os.Getenv("WARDEN_TRUST_LOCK_OVERRIDE_CREDENTIAL"); val != "" {
		cfg.TrustLock.OverrideCredential = val
	}
	if val := os.Getenv("WARDEN_TRUST_LOCK_LOCK_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.TrustLock.LockWindow = d
		}
	}
	if val := os.Getenv("WARDEN_TRUST_LOCK_MAX_LOCK_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.TrustLock.MaxLockDuration = d
		}
	}
	if val := os.Getenv("WARDEN_TRUST_LOCK_MANUAL_UNLOCKS_PER_DAY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.TrustLock.ManualUnlocksPerDay = n
		}
	}
	if val := os.Getenv("WARDEN_TRUST_LOCK_OVERRIDE_BYPASSES_BRAKE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.TrustLock.OverrideBypassesBrake = b
		}
	}

	// Rate-limit overrides
	if val := os.Getenv("WARDEN_RATE_LIMIT_CEILING"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.RateLimit.Ceiling = n
		}
	}
	if val := os.Getenv("WARDEN_RATE_LIMIT_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.RateLimit.Window = d
		}
	}

	// History overrides
	if val := os.Getenv("WARDEN_HISTORY_BACKEND"); val != "" {
		cfg.History.Backend = val
	}
	if val := os.Getenv("WARDEN_HISTORY_SQLITE_PATH"); val != "" {
		cfg.History.SQLitePath = val
	}

	// Telemetry overrides
	if val := os.Getenv("WARDEN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("WARDEN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("WARDEN_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
}
