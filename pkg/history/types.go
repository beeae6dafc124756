// Package history provides queryable storage for policy snapshots and
// escalation transitions.
//
// The append-only JSONL logs in the state directory remain the
// authoritative record; history is a derived index used by the operator
// query commands. Two backends are provided: sqlite for deployments and
// memory for tests.
package history

import (
	"context"
	"time"

	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/policy"
)

// SnapshotQuery filters policy snapshot queries. Zero values match
// everything.
type SnapshotQuery struct {
	// Since bounds results to snapshots at or after this time.
	Since time.Time

	// Until bounds results to snapshots before this time.
	Until time.Time

	// Level restricts results to one policy level.
	Level policy.Level

	// Limit caps the number of results; 0 means no cap.
	Limit int
}

// TransitionQuery filters escalation transition queries. Zero values match
// everything.
type TransitionQuery struct {
	// Since bounds results to transitions at or after this time.
	Since time.Time

	// Check restricts results to one check name.
	Check string

	// RecordID restricts results to one escalation record.
	RecordID string

	// Limit caps the number of results; 0 means no cap.
	Limit int
}

// Storage is the history backend interface.
type Storage interface {
	// RecordSnapshot stores one policy snapshot.
	RecordSnapshot(ctx context.Context, snap policy.Snapshot) error

	// RecordTransition stores one escalation transition.
	RecordTransition(ctx context.Context, entry escalation.TransitionEntry) error

	// QuerySnapshots returns snapshots matching the query, newest first.
	QuerySnapshots(ctx context.Context, q SnapshotQuery) ([]policy.Snapshot, error)

	// QueryTransitions returns transitions matching the query, newest
	// first.
	QueryTransitions(ctx context.Context, q TransitionQuery) ([]escalation.TransitionEntry, error)

	// Close releases backend resources.
	Close() error
}
