// Package escalation tracks detected deviations through a deterministic
// remediation lifecycle.
//
// The lifecycle is:
//
//	pending -> in_progress                 (pending timeout, no human action)
//	pending|in_progress -> corrective_action_applied   (correction evidence)
//	corrective_action_applied -> awaiting_validation   (automatic)
//	awaiting_validation -> resolved|rejected           (verification outcome)
//
// resolved and rejected are terminal. Advancing is idempotent: re-running
// with unchanged inputs yields the same states and no duplicate transition
// entries.
package escalation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/warden/pkg/config"
)

// Manager advances escalation records. It mutates only the in-memory
// RecordSet; the caller commits the set and appends the returned transition
// entries to the durable log.
type Manager struct {
	cfg    config.EscalationConfig
	logger *slog.Logger
}

// NewManager creates an escalation lifecycle manager.
func NewManager(cfg config.EscalationConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger.With("component", "escalation")}
}

// Advance applies one tick's inputs to the record set. It opens a new
// pending record for any failing check without an open record, steps open
// records through the lifecycle, and reports records held past the stuck
// threshold.
func (m *Manager) Advance(rs *RecordSet, inputs []Input, now time.Time) ([]TransitionEntry, []StuckReport) {
	now = now.UTC()
	var entries []TransitionEntry

	byCheck := make(map[string]Input, len(inputs))
	for _, in := range inputs {
		byCheck[in.Check] = in
	}

	// Open new records for failing checks first so the new record's own
	// lifecycle starts this tick.
	for _, in := range inputs {
		if in.VerifierRan && !in.VerifierPassed && rs.Open(in.Check) == nil {
			rec := &Record{
				ID:                   uuid.NewString(),
				Check:                in.Check,
				CurrentState:         StatePending,
				CreatedAt:            now,
				EnteredStateAt:       now,
				LastTransitionReason: "verification pass reported failure",
			}
			rs.Records = append(rs.Records, rec)
			entries = append(entries, TransitionEntry{
				RecordID:  rec.ID,
				Check:     rec.Check,
				To:        StatePending,
				Reason:    rec.LastTransitionReason,
				Timestamp: now,
			})
			m.logger.Info("escalation opened", "check", in.Check, "id", rec.ID)
		}
	}

	for _, rec := range rs.Records {
		if rec.CurrentState.Terminal() || rec.CreatedAt.Equal(now) && rec.CurrentState == StatePending {
			// Freshly opened records wait for the next tick.
			continue
		}
		in := byCheck[rec.Check]
		if e, ok := m.step(rs, rec, in, now); ok {
			entries = append(entries, e)
		}
	}

	return entries, m.stuck(rs, now)
}

// step advances one open record by at most one state per tick.
func (m *Manager) step(rs *RecordSet, rec *Record, in Input, now time.Time) (TransitionEntry, bool) {
	switch rec.CurrentState {
	case StatePending:
		if in.CorrectionDetected {
			return m.transition(rec, StateCorrectiveActionApplied, "corrective action evidence detected", now), true
		}
		if now.Sub(rec.EnteredStateAt) > m.cfg.PendingTimeout {
			reason := fmt.Sprintf("no human action within %v", m.cfg.PendingTimeout)
			return m.transition(rec, StateInProgress, reason, now), true
		}

	case StateInProgress:
		if in.CorrectionDetected {
			return m.transition(rec, StateCorrectiveActionApplied, "corrective action evidence detected", now), true
		}

	case StateCorrectiveActionApplied:
		return m.transition(rec, StateAwaitingValidation, "awaiting verification of corrective action", now), true

	case StateAwaitingValidation:
		if !in.VerifierRan {
			break
		}
		if in.VerifierPassed {
			rs.ResolvedCount++
			return m.transition(rec, StateResolved, "verification pass reported success", now), true
		}
		rs.RejectedCount++
		return m.transition(rec, StateRejected, "verification pass still reported failure", now), true
	}

	return TransitionEntry{}, false
}

func (m *Manager) transition(rec *Record, to State, reason string, now time.Time) TransitionEntry {
	from := rec.CurrentState
	rec.CurrentState = to
	rec.EnteredStateAt = now
	rec.LastTransitionReason = reason

	m.logger.Info("escalation transition",
		"id", rec.ID, "check", rec.Check, "from", string(from), "to", string(to), "reason", reason)

	return TransitionEntry{
		RecordID:  rec.ID,
		Check:     rec.Check,
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: now,
	}
}

// stuck reports every non-terminal record older than the stuck threshold.
func (m *Manager) stuck(rs *RecordSet, now time.Time) []StuckReport {
	var out []StuckReport
	for _, rec := range rs.OpenRecords() {
		age := now.Sub(rec.CreatedAt)
		if age > m.cfg.StuckThreshold {
			out = append(out, StuckReport{
				RecordID: rec.ID,
				Check:    rec.Check,
				State:    rec.CurrentState,
				Age:      age,
			})
			m.logger.Warn("escalation stuck",
				"id", rec.ID, "check", rec.Check, "state", string(rec.CurrentState), "age", age)
		}
	}
	return out
}
