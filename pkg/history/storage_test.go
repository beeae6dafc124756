package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/policy"
)

// backends runs the same contract tests against every Storage implementation.
func backends(t *testing.T) map[string]Storage {
	t.Helper()
	sq, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sq,
	}
}

func snapAt(ts time.Time, level policy.Level) policy.Snapshot {
	return policy.Snapshot{Timestamp: ts, Level: level, Rationale: "test"}
}

func TestQuerySnapshots(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i, level := range []policy.Level{policy.LevelGreen, policy.LevelYellow, policy.LevelRed, policy.LevelGreen} {
				if err := st.RecordSnapshot(ctx, snapAt(t0.Add(time.Duration(i)*time.Hour), level)); err != nil {
					t.Fatalf("RecordSnapshot: %v", err)
				}
			}

			all, err := st.QuerySnapshots(ctx, SnapshotQuery{})
			if err != nil {
				t.Fatalf("QuerySnapshots: %v", err)
			}
			if len(all) != 4 {
				t.Fatalf("got %d snapshots, want 4", len(all))
			}
			// Newest first.
			if !all[0].Timestamp.After(all[1].Timestamp) {
				t.Errorf("results not newest first: %v then %v", all[0].Timestamp, all[1].Timestamp)
			}

			since, err := st.QuerySnapshots(ctx, SnapshotQuery{Since: t0.Add(2 * time.Hour)})
			if err != nil {
				t.Fatal(err)
			}
			if len(since) != 2 {
				t.Errorf("since filter returned %d, want 2", len(since))
			}

			red, err := st.QuerySnapshots(ctx, SnapshotQuery{Level: policy.LevelRed})
			if err != nil {
				t.Fatal(err)
			}
			if len(red) != 1 || red[0].Level != policy.LevelRed {
				t.Errorf("level filter = %v", red)
			}

			limited, err := st.QuerySnapshots(ctx, SnapshotQuery{Limit: 2})
			if err != nil {
				t.Fatal(err)
			}
			if len(limited) != 2 {
				t.Errorf("limit returned %d, want 2", len(limited))
			}
		})
	}
}

func TestQueryTransitions(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entries := []escalation.TransitionEntry{
				{RecordID: "a", Check: "metadata", To: escalation.StatePending, Timestamp: t0},
				{RecordID: "a", Check: "metadata", From: escalation.StatePending, To: escalation.StateInProgress, Timestamp: t0.Add(time.Hour)},
				{RecordID: "b", Check: "consensus", To: escalation.StatePending, Timestamp: t0.Add(2 * time.Hour)},
			}
			for _, e := range entries {
				if err := st.RecordTransition(ctx, e); err != nil {
					t.Fatalf("RecordTransition: %v", err)
				}
			}

			all, err := st.QueryTransitions(ctx, TransitionQuery{})
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 {
				t.Fatalf("got %d transitions, want 3", len(all))
			}
			if all[0].RecordID != "b" {
				t.Errorf("results not newest first: %+v", all[0])
			}

			byRecord, err := st.QueryTransitions(ctx, TransitionQuery{RecordID: "a"})
			if err != nil {
				t.Fatal(err)
			}
			if len(byRecord) != 2 {
				t.Errorf("record filter returned %d, want 2", len(byRecord))
			}

			byCheck, err := st.QueryTransitions(ctx, TransitionQuery{Check: "consensus"})
			if err != nil {
				t.Fatal(err)
			}
			if len(byCheck) != 1 || byCheck[0].RecordID != "b" {
				t.Errorf("check filter = %v", byCheck)
			}
		})
	}
}
