package policy

import (
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/signals"
)

// Level is the overall policy verdict for one tick.
type Level string

const (
	// LevelGreen means all signals are healthy.
	LevelGreen Level = "GREEN"
	// LevelYellow means at least one signal is degraded.
	LevelYellow Level = "YELLOW"
	// LevelRed means a critical condition is present.
	LevelRed Level = "RED"
)

// Severity orders levels for comparison: GREEN < YELLOW < RED.
func (l Level) Severity() int {
	switch l {
	case LevelRed:
		return 2
	case LevelYellow:
		return 1
	default:
		return 0
	}
}

// Snapshot is the immutable result of one policy evaluation. It is created
// once per tick, never mutated, and appended to the policy history log.
type Snapshot struct {
	// Timestamp is the UTC evaluation time.
	Timestamp time.Time `json:"timestamp"`

	// Level is the computed policy level.
	Level Level `json:"level"`

	// Rationale is the first matching rule, in precedence order.
	Rationale string `json:"rationale"`

	// Reasons lists every rule that matched at the computed level.
	Reasons []string `json:"reasons"`

	// Inputs are the raw signal values the evaluation used.
	Inputs signals.Bundle `json:"inputs"`

	// LockEngaged records whether the trust lock was engaged at
	// evaluation time.
	LockEngaged bool `json:"lock_engaged"`

	// Thresholds is the threshold set active at evaluation time.
	Thresholds config.PolicyConfig `json:"thresholds"`
}
