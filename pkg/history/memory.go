package history

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/policy"
)

// MemoryStorage implements Storage with in-process slices. It is intended
// for tests and for running the engine with history disabled on disk.
type MemoryStorage struct {
	snapshots   []policy.Snapshot
	transitions []escalation.TransitionEntry
	mu          sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory history backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// RecordSnapshot stores one policy snapshot.
func (s *MemoryStorage) RecordSnapshot(_ context.Context, snap policy.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

// RecordTransition stores one escalation transition.
func (s *MemoryStorage) RecordTransition(_ context.Context, entry escalation.TransitionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, entry)
	return nil
}

// QuerySnapshots returns snapshots matching the query, newest first.
func (s *MemoryStorage) QuerySnapshots(_ context.Context, q SnapshotQuery) ([]policy.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []policy.Snapshot
	for _, snap := range s.snapshots {
		if !q.Since.IsZero() && snap.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !snap.Timestamp.Before(q.Until) {
			continue
		}
		if q.Level != "" && snap.Level != q.Level {
			continue
		}
		out = append(out, snap)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// QueryTransitions returns transitions matching the query, newest first.
func (s *MemoryStorage) QueryTransitions(_ context.Context, q TransitionQuery) ([]escalation.TransitionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []escalation.TransitionEntry
	for _, entry := range s.transitions {
		if !q.Since.IsZero() && entry.Timestamp.Before(q.Since) {
			continue
		}
		if q.Check != "" && entry.Check != q.Check {
			continue
		}
		if q.RecordID != "" && entry.RecordID != q.RecordID {
			continue
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStorage) Close() error { return nil }
