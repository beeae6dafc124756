// Package ratelimit counts automated actions in a rolling window and halts
// all automated action once a configured ceiling is reached.
//
// Reaching the ceiling engages the safety brake: a persisted flag that
// blocks every further automated action (not just the triggering one) until
// an operator explicitly clears it. Both the window and the brake survive
// process restarts.
package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/config"
)

// ErrBrakeNotEngaged is returned when a brake clear is requested while the
// brake is not engaged.
var ErrBrakeNotEngaged = errors.New("safety brake is not engaged")

// BrakeState is the persisted safety-brake flag.
type BrakeState struct {
	Engaged   bool      `json:"engaged"`
	Reason    string    `json:"reason,omitempty"`
	EngagedAt time.Time `json:"engaged_at,omitempty"`
}

// State is the persisted form of the limiter: the live window buckets plus
// the brake flag.
type State struct {
	Buckets []BucketSnapshot `json:"buckets"`
	Brake   BrakeState       `json:"brake"`
}

// Decision is the outcome of a budget check.
type Decision struct {
	// Allowed reports whether the action may proceed.
	Allowed bool `json:"allowed"`

	// Reason explains a refusal.
	Reason string `json:"reason,omitempty"`

	// BrakeEngagedNow reports that this check is the one that engaged the
	// brake; the caller must commit state and write the audit marker.
	BrakeEngagedNow bool `json:"brake_engaged_now,omitempty"`
}

// Limiter enforces the rolling automated-action budget.
type Limiter struct {
	cfg    config.RateLimitConfig
	window *Window
	brake  BrakeState
	logger *slog.Logger
}

// NewLimiter creates a limiter with an empty window and a disengaged brake.
func NewLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		cfg:    cfg,
		window: NewWindow(cfg.Window, cfg.BucketSize),
		logger: logger.With("component", "ratelimit"),
	}
}

// Restore rebuilds the limiter from persisted state. The brake flag is
// honored before any counting: once engaged it survives restarts.
func (l *Limiter) Restore(st State) {
	l.window = RestoreWindow(l.cfg.Window, l.cfg.BucketSize, st.Buckets)
	l.brake = st.Brake
}

// Check decides whether one automated action may proceed. Reaching the
// ceiling engages the brake as a side effect on the in-memory state; the
// caller commits and audits it.
func (l *Limiter) Check(action string, now time.Time) Decision {
	if l.brake.Engaged {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("safety brake engaged at %s: %s",
				l.brake.EngagedAt.UTC().Format(time.RFC3339), l.brake.Reason),
		}
	}

	count := l.window.Sum(now)
	if count >= int64(l.cfg.Ceiling) {
		reason := fmt.Sprintf("action %q refused: %d automated actions in trailing %v reached ceiling %d",
			action, count, l.cfg.Window, l.cfg.Ceiling)
		l.brake = BrakeState{Engaged: true, Reason: reason, EngagedAt: now.UTC()}
		l.logger.Warn("safety brake engaged", "action", action, "count", count, "ceiling", l.cfg.Ceiling)
		return Decision{Allowed: false, Reason: reason, BrakeEngagedNow: true}
	}

	return Decision{Allowed: true}
}

// Record counts one executed automated action.
func (l *Limiter) Record(now time.Time) {
	l.window.Add(now, 1)
}

// Count returns the number of automated actions in the trailing window.
func (l *Limiter) Count(now time.Time) int64 {
	return l.window.Sum(now)
}

// Brake returns the current brake state.
func (l *Limiter) Brake() BrakeState {
	return l.brake
}

// ClearBrake disengages the brake on operator request.
func (l *Limiter) ClearBrake(reason, actor string, now time.Time) error {
	if reason == "" {
		return fmt.Errorf("brake clear requires a reason")
	}
	if !l.brake.Engaged {
		return ErrBrakeNotEngaged
	}
	l.brake = BrakeState{}
	l.logger.Info("safety brake cleared", "actor", actor, "reason", reason)
	return nil
}

// State returns the persistable limiter state.
func (l *Limiter) State(now time.Time) State {
	return State{
		Buckets: l.window.Snapshot(now),
		Brake:   l.brake,
	}
}
