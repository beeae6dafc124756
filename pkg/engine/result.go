package engine

import (
	"time"

	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/signals"
	"mercator-hq/warden/pkg/trustlock"
)

// Mode selects how much of the tick is committed.
type Mode string

const (
	// ModeCheck evaluates and reports without mutating persisted state
	// except for the snapshot log.
	ModeCheck Mode = "check"
	// ModeEnforce performs the full evaluate-and-commit cycle.
	ModeEnforce Mode = "enforce"
)

// Exit codes for the operator-facing command surface.
const (
	// ExitOK means the tick evaluated with no fatal error and no warnings.
	ExitOK = 0
	// ExitWarnings means the tick evaluated but with degraded inputs,
	// blocked actions, or stuck escalations.
	ExitWarnings = 1
	// ExitFatal means persistence failed after all retries; a diagnostic
	// bundle was created.
	ExitFatal = 2
)

// ActionOutcome records the gate decision for one requested action.
type ActionOutcome struct {
	Action      string `json:"action"`
	Destructive bool   `json:"destructive"`
	Executed    bool   `json:"executed"`
	Gate        string `json:"gate,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// BlockedReport is the structured artifact written whenever a gate refuses
// an action, so operators can see which gate rejected it without re-deriving
// state.
type BlockedReport struct {
	Timestamp time.Time       `json:"timestamp"`
	TickID    string          `json:"tick_id"`
	Blocked   []ActionOutcome `json:"blocked"`
}

// TickResult is everything one tick produced.
type TickResult struct {
	TickID    string    `json:"tick_id"`
	Mode      Mode      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`

	Snapshot policy.Snapshot   `json:"snapshot"`
	Warnings []signals.Warning `json:"warnings,omitempty"`

	LockState trustlock.State `json:"lock_state"`

	Transitions      []escalation.TransitionEntry `json:"transitions,omitempty"`
	OpenEscalations  int                          `json:"open_escalations"`
	StuckEscalations []escalation.StuckReport     `json:"stuck_escalations,omitempty"`

	ActionsExecuted []ActionOutcome `json:"actions_executed,omitempty"`
	ActionsBlocked  []ActionOutcome `json:"actions_blocked,omitempty"`

	WindowCount  int64 `json:"window_count"`
	BrakeEngaged bool  `json:"brake_engaged"`

	// FatalError is set when persistence exhausted all retries.
	FatalError string `json:"fatal_error,omitempty"`
}

// ExitCode maps the result to the operator-facing exit-code contract.
func (r *TickResult) ExitCode() int {
	if r.FatalError != "" {
		return ExitFatal
	}
	if len(r.Warnings) > 0 || len(r.ActionsBlocked) > 0 || len(r.StuckEscalations) > 0 {
		return ExitWarnings
	}
	return ExitOK
}

// Outcome is a short label for metrics and logs.
func (r *TickResult) Outcome() string {
	switch r.ExitCode() {
	case ExitFatal:
		return "fatal"
	case ExitWarnings:
		return "warnings"
	default:
		return "ok"
	}
}
