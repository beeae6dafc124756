// Package trustlock manages the reversible lock on destructive actions.
//
// The lock engages whenever any of three independent trust thresholds
// (integrity, weighted consensus, reputation index) falls below its
// configured minimum. It clears only by automatic re-evaluation after the
// lock window (all thresholds passing), by a quota-limited manual unlock, or
// by an audited emergency override. A hard ceiling forces an unconditional
// unlock so a permanently failing signal cannot deadlock the engine.
package trustlock

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/signals"
	"mercator-hq/warden/pkg/store"
)

// Controller evaluates trust thresholds and drives lock transitions. It
// mutates only the in-memory State handed to it; the caller commits the
// result and writes the returned audit marker.
type Controller struct {
	cfg    config.TrustLockConfig
	logger *slog.Logger
}

// NewController creates a trust-lock controller.
func NewController(cfg config.TrustLockConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, logger: logger.With("component", "trustlock")}
}

// Transition describes the outcome of one evaluation. Changed reports
// whether the state must be re-committed; Marker, when non-zero, is the
// audit marker kind the caller must write.
type Transition struct {
	Changed bool
	Marker  store.MarkerKind
	Detail  string
}

// Evaluate advances the lock state for one tick using the current signal
// bundle. It handles engagement, window-gated automatic unlock, and the
// forced unlock at the hard ceiling.
func (c *Controller) Evaluate(st *State, b signals.Bundle, now time.Time) Transition {
	now = now.UTC()
	changed := st.resetQuotaIfNewDay(now)

	breaches := c.breaches(b)

	if !st.Locked {
		if len(breaches) == 0 {
			return Transition{Changed: changed}
		}
		reason := strings.Join(breaches, "; ")
		st.Locked = true
		st.Reason = reason
		st.LockedAt = now
		st.AutoUnlockEligibleAt = now.Add(c.cfg.LockWindow)
		c.logger.Warn("trust lock engaged", "reason", reason)
		return Transition{Changed: true, Marker: store.MarkerLocked, Detail: reason}
	}

	// Locked. The hard ceiling wins over everything else.
	if now.Sub(st.LockedAt) >= c.cfg.MaxLockDuration {
		detail := fmt.Sprintf("forced unlock after %v ceiling; original reason: %s",
			c.cfg.MaxLockDuration, st.Reason)
		c.unlock(st)
		c.logger.Warn("trust lock force-unlocked at hard ceiling", "ceiling", c.cfg.MaxLockDuration)
		return Transition{Changed: true, Marker: store.MarkerForcedUnlock, Detail: detail}
	}

	if now.Before(st.AutoUnlockEligibleAt) {
		return Transition{Changed: changed}
	}

	if len(breaches) > 0 {
		// Window elapsed but thresholds still failing: the lock persists
		// and is re-evaluated next tick.
		c.logger.Info("trust lock persists, thresholds still breached",
			"breaches", strings.Join(breaches, "; "))
		return Transition{Changed: changed}
	}

	detail := fmt.Sprintf("automatic unlock, all thresholds passing; original reason: %s", st.Reason)
	c.unlock(st)
	c.logger.Info("trust lock automatically released")
	return Transition{Changed: true, Marker: store.MarkerUnlocked, Detail: detail}
}

// ManualUnlock releases the lock on operator request, consuming one unit of
// the daily quota. The reason is required and recorded in the audit marker.
func (c *Controller) ManualUnlock(st *State, reason, actor string, now time.Time) (Transition, error) {
	if reason == "" {
		return Transition{}, fmt.Errorf("manual unlock requires a reason")
	}
	if !st.Locked {
		return Transition{}, ErrNotLocked
	}

	now = now.UTC()
	st.resetQuotaIfNewDay(now)

	if st.ManualUnlocksToday >= c.cfg.ManualUnlocksPerDay {
		c.logger.Warn("manual unlock refused, quota exhausted",
			"used", st.ManualUnlocksToday, "cap", c.cfg.ManualUnlocksPerDay)
		return Transition{}, fmt.Errorf("%w: %d of %d used",
			ErrUnlockQuotaExceeded, st.ManualUnlocksToday, c.cfg.ManualUnlocksPerDay)
	}

	st.ManualUnlocksToday++
	detail := fmt.Sprintf("manual unlock by %s: %s (quota %d/%d)",
		actor, reason, st.ManualUnlocksToday, c.cfg.ManualUnlocksPerDay)
	c.unlock(st)
	c.logger.Info("trust lock manually released", "actor", actor, "reason", reason)
	return Transition{Changed: true, Marker: store.MarkerManualUnlock, Detail: detail}, nil
}

// Override releases the lock through the emergency bypass. It ignores the
// daily quota entirely; the caller is responsible for credential checking
// and for writing the distinct override audit marker returned here.
func (c *Controller) Override(st *State, reason, actor string, now time.Time) (Transition, error) {
	if reason == "" {
		return Transition{}, fmt.Errorf("emergency override requires a reason")
	}
	if !st.Locked {
		return Transition{}, ErrNotLocked
	}

	st.resetQuotaIfNewDay(now.UTC())
	detail := fmt.Sprintf("emergency override by %s: %s", actor, reason)
	c.unlock(st)
	c.logger.Warn("trust lock released by emergency override", "actor", actor, "reason", reason)
	return Transition{Changed: true, Marker: store.MarkerOverrideUnlock, Detail: detail}, nil
}

// breaches returns a description of every trust threshold currently failing.
func (c *Controller) breaches(b signals.Bundle) []string {
	var out []string
	if b.Integrity < c.cfg.MinIntegrity {
		out = append(out, fmt.Sprintf("integrity %.1f below minimum %.1f", b.Integrity, c.cfg.MinIntegrity))
	}
	if b.WeightedConsensus < c.cfg.MinConsensus {
		out = append(out, fmt.Sprintf("weighted consensus %.1f below minimum %.1f", b.WeightedConsensus, c.cfg.MinConsensus))
	}
	if b.ReputationIndex < c.cfg.MinReputation {
		out = append(out, fmt.Sprintf("reputation index %.1f below minimum %.1f", b.ReputationIndex, c.cfg.MinReputation))
	}
	return out
}

func (c *Controller) unlock(st *State) {
	st.Locked = false
	st.Reason = ""
	st.LockedAt = time.Time{}
	st.AutoUnlockEligibleAt = time.Time{}
}
