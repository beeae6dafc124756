package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Policy.RedIntegrity != 90 || cfg.Policy.YellowIntegrity != 95 {
		t.Errorf("integrity thresholds = %v/%v, want 90/95", cfg.Policy.RedIntegrity, cfg.Policy.YellowIntegrity)
	}
	if cfg.Policy.RedConsensus != 85 || cfg.Policy.YellowConsensus != 90 {
		t.Errorf("consensus thresholds = %v/%v, want 85/90", cfg.Policy.RedConsensus, cfg.Policy.YellowConsensus)
	}
	if cfg.Policy.YellowResponses != 4 || cfg.Policy.RedResponses != 8 {
		t.Errorf("response thresholds = %d/%d, want 4/8", cfg.Policy.YellowResponses, cfg.Policy.RedResponses)
	}
	if cfg.TrustLock.MinIntegrity != 90 || cfg.TrustLock.MinConsensus != 92 || cfg.TrustLock.MinReputation != 85 {
		t.Errorf("lock thresholds = %v/%v/%v, want 90/92/85",
			cfg.TrustLock.MinIntegrity, cfg.TrustLock.MinConsensus, cfg.TrustLock.MinReputation)
	}
	if cfg.TrustLock.LockWindow != time.Hour || cfg.TrustLock.MaxLockDuration != 24*time.Hour {
		t.Errorf("lock windows = %v/%v, want 1h/24h", cfg.TrustLock.LockWindow, cfg.TrustLock.MaxLockDuration)
	}
	if cfg.TrustLock.ManualUnlocksPerDay != 2 {
		t.Errorf("manual unlocks = %d, want 2", cfg.TrustLock.ManualUnlocksPerDay)
	}
	if cfg.Escalation.PendingTimeout != 24*time.Hour || cfg.Escalation.StuckThreshold != 72*time.Hour {
		t.Errorf("escalation timing = %v/%v, want 24h/72h", cfg.Escalation.PendingTimeout, cfg.Escalation.StuckThreshold)
	}
	if cfg.RateLimit.Ceiling != 10 || cfg.RateLimit.Window != 24*time.Hour {
		t.Errorf("rate limit = %d per %v, want 10 per 24h", cfg.RateLimit.Ceiling, cfg.RateLimit.Window)
	}
	if len(cfg.Persistence.RetryBackoff) != 3 {
		t.Errorf("retry backoff = %v, want three entries", cfg.Persistence.RetryBackoff)
	}
	if cfg.History.Backend != "sqlite" {
		t.Errorf("history backend = %q, want sqlite", cfg.History.Backend)
	}
	if !cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Metrics.Namespace != "warden" {
		t.Errorf("metrics defaults = %+v", cfg.Telemetry.Metrics)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default configuration does not validate: %v", err)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Policy.RedIntegrity != DefaultRedIntegrity {
		t.Errorf("missing file did not yield defaults: %+v", cfg.Policy)
	}
}

func TestLoadConfig_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
policy:
  red_integrity: 85
trust_lock:
  manual_unlocks_per_day: 3
history:
  backend: memory
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Policy.RedIntegrity != 85 {
		t.Errorf("red_integrity = %v, want file value 85", cfg.Policy.RedIntegrity)
	}
	if cfg.Policy.YellowIntegrity != DefaultYellowIntegrity {
		t.Errorf("yellow_integrity = %v, want default", cfg.Policy.YellowIntegrity)
	}
	if cfg.TrustLock.ManualUnlocksPerDay != 3 {
		t.Errorf("manual_unlocks_per_day = %d, want 3", cfg.TrustLock.ManualUnlocksPerDay)
	}
	if cfg.History.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.History.Backend)
	}
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unparsable yaml", "policy: [not a map"},
		{"score out of range", "policy:\n  red_integrity: 140\n"},
		{"inverted thresholds", "policy:\n  yellow_integrity: 80\n  red_integrity: 90\n"},
		{"unknown history backend", "history:\n  backend: postgres\n"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
rate_limit:
  ceiling: 5
`)
	t.Setenv("WARDEN_RATE_LIMIT_CEILING", "7")
	t.Setenv("WARDEN_ENGINE_STATE_DIR", "/var/lib/warden")
	t.Setenv("WARDEN_TRUST_LOCK_OVERRIDE_CREDENTIAL", "break-glass")
	t.Setenv("WARDEN_TELEMETRY_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}
	if cfg.RateLimit.Ceiling != 7 {
		t.Errorf("ceiling = %d, want env value 7", cfg.RateLimit.Ceiling)
	}
	if cfg.Engine.StateDir != "/var/lib/warden" {
		t.Errorf("state_dir = %q", cfg.Engine.StateDir)
	}
	if cfg.TrustLock.OverrideCredential != "break-glass" {
		t.Error("override credential not taken from environment")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Telemetry.Logging.Level)
	}
}

func TestApplyDefaults_ExplicitMetricsDisableSurvives(t *testing.T) {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Namespace = "custom"
	ApplyDefaults(cfg)
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("explicitly configured metrics section was re-enabled by defaulting")
	}
	if cfg.Telemetry.Metrics.Namespace != "custom" {
		t.Errorf("namespace = %q, want custom", cfg.Telemetry.Metrics.Namespace)
	}
}

func TestValidate_TrustLockWindows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustLock.MaxLockDuration = 30 * time.Minute // below the lock window
	if err := Validate(cfg); err == nil {
		t.Error("max_lock_duration below lock_window accepted")
	}

	cfg = DefaultConfig()
	cfg.Escalation.StuckThreshold = time.Hour
	if err := Validate(cfg); err == nil {
		t.Error("stuck_threshold below pending_timeout accepted")
	}

	cfg = DefaultConfig()
	cfg.RateLimit.BucketSize = 48 * time.Hour
	if err := Validate(cfg); err == nil {
		t.Error("bucket_size larger than window accepted")
	}
}
