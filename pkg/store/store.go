// Package store is the persistence and recovery layer for all engine state.
//
// The store owns every durable artifact: other components hold transient
// in-memory copies for the duration of one tick and hand them back here to
// be committed. Writes use a stage-then-atomically-replace pattern so a
// crash mid-write never leaves a torn file, retries follow a bounded fixed
// backoff schedule, and exhausted retries materialize a diagnostic bundle
// instead of failing silently.
package store

import (
	"fmt"
	"time"
)

// Well-known artifact names inside the state directory.
const (
	// SnapshotDoc is the current policy snapshot.
	SnapshotDoc = "policy_snapshot.json"
	// HistoryLog is the append-only policy snapshot history.
	HistoryLog = "policy_history.jsonl"
	// TrustLockDoc is the current trust-lock state.
	TrustLockDoc = "trust_lock.json"
	// EscalationsDoc holds all escalation records, open and terminal.
	EscalationsDoc = "escalations.json"
	// TransitionLog is the append-only escalation transition log.
	TransitionLog = "escalation_transitions.jsonl"
	// RateLimitDoc is the persisted rate-limiter window and brake flag.
	RateLimitDoc = "rate_limiter.json"
	// MarkerDoc holds the audit markers, one live instance per kind.
	MarkerDoc = "audit_markers.json"
	// MarkerRendering is the human-readable rendering of MarkerDoc.
	MarkerRendering = "AUDIT_MARKERS.md"
	// BlockedDoc is the structured report of the most recent refusal.
	BlockedDoc = "blocked.json"
)

// Store is the injected state store. Exactly one implementation enforces the
// atomic-replace contract (FileStore); MemoryStore is the in-process fake
// used by tests.
type Store interface {
	// Get unmarshals the named artifact into v. It returns (false, nil)
	// when the artifact does not exist yet.
	Get(name string, v any) (bool, error)

	// Commit durably replaces the named artifact with the JSON encoding
	// of v. The replacement is atomic: readers see either the prior or
	// the new complete state, never a partial one. On unrecoverable
	// failure Commit returns a *FatalError.
	Commit(name string, v any) error

	// AppendLine appends one JSON line to the named append-only log.
	AppendLine(name string, v any) error

	// WriteMarker records an audit marker, replacing any prior marker of
	// the same kind. Writing the same kind twice leaves exactly one live
	// instance.
	WriteMarker(m Marker) error

	// Markers returns all live audit markers.
	Markers() (MarkerSet, error)
}

// FatalError is returned when every write attempt for an artifact has been
// exhausted. The caller must halt further automated action for the tick;
// the diagnostic bundle at BundlePath carries the unpersisted state.
type FatalError struct {
	Artifact   string
	BundlePath string
	Err        error
}

func (e *FatalError) Error() string {
	if e.BundlePath != "" {
		return fmt.Sprintf("persistence failed for %s after all retries (diagnostic bundle at %s): %v",
			e.Artifact, e.BundlePath, e.Err)
	}
	return fmt.Sprintf("persistence failed for %s after all retries: %v", e.Artifact, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// MarkerKind names a class of audited action. Each kind has at most one
// live marker at any time.
type MarkerKind string

const (
	MarkerLocked         MarkerKind = "LOCKED"
	MarkerUnlocked       MarkerKind = "UNLOCKED"
	MarkerManualUnlock   MarkerKind = "MANUAL_UNLOCK"
	MarkerForcedUnlock   MarkerKind = "FORCED_UNLOCK"
	MarkerOverrideUnlock MarkerKind = "OVERRIDE_UNLOCK"
	MarkerOverrideDenied MarkerKind = "OVERRIDE_DENIED"
	MarkerBrakeEngaged   MarkerKind = "BRAKE_ENGAGED"
	MarkerBrakeCleared   MarkerKind = "BRAKE_CLEARED"
	MarkerPersistFailed  MarkerKind = "PERSISTENCE_FAILED"
)

// Marker is the idempotent record of the most recent action of its kind.
type Marker struct {
	Kind      MarkerKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
	Detail    string     `json:"detail"`
	Actor     string     `json:"actor,omitempty"`
}

// MarkerSet maps each kind to its single live marker. The map key is the
// idempotency guarantee: a second write of the same kind replaces the first.
type MarkerSet map[MarkerKind]Marker
