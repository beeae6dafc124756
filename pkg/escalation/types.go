package escalation

import "time"

// State is one step of the escalation lifecycle.
type State string

const (
	// StatePending is the initial state of a newly opened record.
	StatePending State = "pending"
	// StateInProgress is entered after a pending record ages past the
	// pending timeout without human action.
	StateInProgress State = "in_progress"
	// StateCorrectiveActionApplied is entered when evidence of a
	// corrective action is detected.
	StateCorrectiveActionApplied State = "corrective_action_applied"
	// StateAwaitingValidation is entered after a corrective action, while
	// the record waits for the next verification pass.
	StateAwaitingValidation State = "awaiting_validation"
	// StateResolved is terminal: a verification pass confirmed the fix.
	StateResolved State = "resolved"
	// StateRejected is terminal: a verification pass still reported the
	// failing condition.
	StateRejected State = "rejected"
)

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateRejected
}

// Record tracks the life of one detected deviation. A record is never
// reopened: a fresh failure after a terminal state creates a new record.
type Record struct {
	// ID is the record's unique identifier.
	ID string `json:"id"`

	// Check names the deviation this record tracks. At most one open
	// record exists per check.
	Check string `json:"check"`

	// CurrentState is the record's lifecycle state.
	CurrentState State `json:"current_state"`

	// CreatedAt is the UTC time the record was opened.
	CreatedAt time.Time `json:"created_at"`

	// EnteredStateAt is the UTC time CurrentState was entered.
	EnteredStateAt time.Time `json:"entered_state_at"`

	// LastTransitionReason explains the most recent transition.
	LastTransitionReason string `json:"last_transition_reason"`
}

// RecordSet is the persisted collection of escalation records plus the
// cumulative terminal counters. Terminal records remain for audit but are
// excluded from open queries.
type RecordSet struct {
	Records       []*Record `json:"records"`
	ResolvedCount int       `json:"resolved_count"`
	RejectedCount int       `json:"rejected_count"`
}

// Open returns the open (non-terminal) record for check, or nil.
func (rs *RecordSet) Open(check string) *Record {
	for _, r := range rs.Records {
		if r.Check == check && !r.CurrentState.Terminal() {
			return r
		}
	}
	return nil
}

// OpenRecords returns every non-terminal record.
func (rs *RecordSet) OpenRecords() []*Record {
	var out []*Record
	for _, r := range rs.Records {
		if !r.CurrentState.Terminal() {
			out = append(out, r)
		}
	}
	return out
}

// Input carries one tick's verifier and correction signals for one check.
type Input struct {
	// Check names the deviation the signals concern.
	Check string

	// VerifierRan reports whether a verification pass for this check ran
	// during the tick.
	VerifierRan bool

	// VerifierPassed is the verification outcome; only meaningful when
	// VerifierRan is true.
	VerifierPassed bool

	// CorrectionDetected reports whether evidence of a corrective action
	// was observed.
	CorrectionDetected bool
}

// TransitionEntry is one line of the append-only transition log.
type TransitionEntry struct {
	RecordID  string    `json:"record_id"`
	Check     string    `json:"check"`
	From      State     `json:"from,omitempty"`
	To        State     `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// StuckReport flags a record held in a non-terminal state past the stuck
// threshold. It surfaces for operator attention; no transition is forced.
type StuckReport struct {
	RecordID string        `json:"record_id"`
	Check    string        `json:"check"`
	State    State         `json:"state"`
	Age      time.Duration `json:"age"`
}
