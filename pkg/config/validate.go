package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error found; a nil return means the configuration is
// usable as-is.
func Validate(cfg *Config) error {
	if err := validatePolicy(&cfg.Policy); err != nil {
		return err
	}
	if err := validateTrustLock(&cfg.TrustLock); err != nil {
		return err
	}
	if err := validateEscalation(&cfg.Escalation); err != nil {
		return err
	}
	if err := validateRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := validatePersistence(&cfg.Persistence); err != nil {
		return err
	}
	if err := validateHistory(&cfg.History); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validatePolicy(p *PolicyConfig) error {
	for name, v := range map[string]float64{
		"policy.red_integrity":     p.RedIntegrity,
		"policy.red_consensus":     p.RedConsensus,
		"policy.yellow_integrity":  p.YellowIntegrity,
		"policy.yellow_consensus":  p.YellowConsensus,
		"policy.yellow_reputation": p.YellowReputation,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be in [0, 100], got %v", name, v)
		}
	}
	// Yellow thresholds sit above red thresholds; an inverted pair would
	// make the yellow band empty and the interval semantics meaningless.
	if p.YellowIntegrity < p.RedIntegrity {
		return fmt.Errorf("policy.yellow_integrity (%v) must be >= policy.red_integrity (%v)",
			p.YellowIntegrity, p.RedIntegrity)
	}
	if p.YellowConsensus < p.RedConsensus {
		return fmt.Errorf("policy.yellow_consensus (%v) must be >= policy.red_consensus (%v)",
			p.YellowConsensus, p.RedConsensus)
	}
	if p.YellowResponses > p.RedResponses {
		return fmt.Errorf("policy.yellow_responses (%d) must be <= policy.red_responses (%d)",
			p.YellowResponses, p.RedResponses)
	}
	if p.RedResponses < 1 {
		return fmt.Errorf("policy.red_responses must be >= 1, got %d", p.RedResponses)
	}
	return nil
}

func validateTrustLock(t *TrustLockConfig) error {
	for name, v := range map[string]float64{
		"trust_lock.min_integrity":  t.MinIntegrity,
		"trust_lock.min_consensus":  t.MinConsensus,
		"trust_lock.min_reputation": t.MinReputation,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be in [0, 100], got %v", name, v)
		}
	}
	if t.LockWindow <= 0 {
		return fmt.Errorf("trust_lock.lock_window must be positive, got %v", t.LockWindow)
	}
	if t.MaxLockDuration < t.LockWindow {
		return fmt.Errorf("trust_lock.max_lock_duration (%v) must be >= trust_lock.lock_window (%v)",
			t.MaxLockDuration, t.LockWindow)
	}
	if t.ManualUnlocksPerDay < 0 {
		return fmt.Errorf("trust_lock.manual_unlocks_per_day must be >= 0, got %d", t.ManualUnlocksPerDay)
	}
	return nil
}

func validateEscalation(e *EscalationConfig) error {
	if e.PendingTimeout <= 0 {
		return fmt.Errorf("escalation.pending_timeout must be positive, got %v", e.PendingTimeout)
	}
	if e.StuckThreshold < e.PendingTimeout {
		return fmt.Errorf("escalation.stuck_threshold (%v) must be >= escalation.pending_timeout (%v)",
			e.StuckThreshold, e.PendingTimeout)
	}
	return nil
}

func validateRateLimit(r *RateLimitConfig) error {
	if r.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %v", r.Window)
	}
	if r.BucketSize <= 0 || r.BucketSize > r.Window {
		return fmt.Errorf("rate_limit.bucket_size must be in (0, window], got %v", r.BucketSize)
	}
	if r.Ceiling < 1 {
		return fmt.Errorf("rate_limit.ceiling must be >= 1, got %d", r.Ceiling)
	}
	return nil
}

func validatePersistence(p *PersistenceConfig) error {
	if len(p.RetryBackoff) == 0 {
		return fmt.Errorf("persistence.retry_backoff must contain at least one delay")
	}
	var total time.Duration
	for i, d := range p.RetryBackoff {
		if d <= 0 {
			return fmt.Errorf("persistence.retry_backoff[%d] must be positive, got %v", i, d)
		}
		total += d
	}
	return nil
}

func validateHistory(h *HistoryConfig) error {
	switch h.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("history.backend must be \"sqlite\" or \"memory\", got %q", h.Backend)
	}
	if h.Backend == "sqlite" && h.SQLitePath == "" {
		return fmt.Errorf("history.sqlite_path is required when history.backend is \"sqlite\"")
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	switch t.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be one of debug/info/warn/error, got %q", t.Logging.Level)
	}
	switch t.Logging.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("telemetry.logging.format must be one of json/text/console, got %q", t.Logging.Format)
	}
	return nil
}
