package engine

import (
	"fmt"

	"mercator-hq/warden/pkg/escalation"
)

// Action is one requested automated remediation. The two variants differ in
// reversibility: soft actions carry an undo capability, hard actions are
// irreversible and additionally gated on the trust lock.
type Action interface {
	// Name identifies the action in reports and the response log.
	Name() string

	// Destructive reports whether the action is irreversible.
	Destructive() bool
}

// SoftAction is a reversible remediation. Undo describes how the action is
// reverted.
type SoftAction struct {
	Label string `json:"label"`
	Undo  string `json:"undo"`
}

// Name implements Action.
func (a SoftAction) Name() string { return a.Label }

// Destructive implements Action.
func (a SoftAction) Destructive() bool { return false }

// HardAction is an irreversible remediation. It is refused while the trust
// lock is engaged.
type HardAction struct {
	Label string `json:"label"`
}

// Name implements Action.
func (a HardAction) Name() string { return a.Label }

// Destructive implements Action.
func (a HardAction) Destructive() bool { return true }

// deriveActions maps this tick's escalation transitions to the automated
// remediations the engine requests: a reversible quarantine when a record
// opens, and an irreversible rollback when a corrective action is rejected.
func deriveActions(entries []escalation.TransitionEntry) []Action {
	var out []Action
	for _, e := range entries {
		switch {
		case e.To == escalation.StatePending && e.From == "":
			out = append(out, SoftAction{
				Label: fmt.Sprintf("quarantine/%s", e.Check),
				Undo:  fmt.Sprintf("release quarantine for %s", e.Check),
			})
		case e.To == escalation.StateRejected:
			out = append(out, HardAction{
				Label: fmt.Sprintf("rollback/%s", e.Check),
			})
		}
	}
	return out
}
