package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/ratelimit"
	"mercator-hq/warden/pkg/store"
	"mercator-hq/warden/pkg/trustlock"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) (*Engine, *store.MemoryStore, string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine.SignalsDir = t.TempDir()

	st := store.NewMemoryStore()
	e := New(cfg, st, nil)
	e.Now = func() time.Time { return testNow }
	return e, st, cfg.Engine.SignalsDir
}

func writeSignal(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTick_HealthyDefaults(t *testing.T) {
	e, st, _ := testEngine(t)

	res := e.Tick(context.Background(), ModeEnforce)
	if res.FatalError != "" {
		t.Fatalf("fatal: %s", res.FatalError)
	}
	if res.Snapshot.Level != policy.LevelGreen {
		t.Errorf("level = %s, want GREEN", res.Snapshot.Level)
	}
	if res.ExitCode() != ExitOK {
		t.Errorf("exit = %d, want %d", res.ExitCode(), ExitOK)
	}

	var snap policy.Snapshot
	if found, err := st.Get(store.SnapshotDoc, &snap); err != nil || !found {
		t.Fatalf("snapshot not committed: (%v, %v)", found, err)
	}
	if st.LogLen(store.HistoryLog) != 1 {
		t.Errorf("history log entries = %d, want 1", st.LogLen(store.HistoryLog))
	}
}

func TestTick_BreachEngagesLockAndForcesRed(t *testing.T) {
	e, st, dir := testEngine(t)
	writeSignal(t, dir, "integrity.json", `{"score": 80}`)

	res := e.Tick(context.Background(), ModeEnforce)
	if !res.LockState.Locked {
		t.Fatal("trust lock not engaged on integrity breach")
	}
	if res.Snapshot.Level != policy.LevelRed {
		t.Errorf("level = %s, want RED while locked", res.Snapshot.Level)
	}

	var lockState trustlock.State
	if found, _ := st.Get(store.TrustLockDoc, &lockState); !found || !lockState.Locked {
		t.Error("lock state not committed")
	}
	markers, _ := st.Markers()
	if _, ok := markers[store.MarkerLocked]; !ok {
		t.Error("LOCKED marker not written")
	}
}

// TestTick_CheckModeCommitsOnlySnapshotLog verifies check mode evaluates
// fully but leaves all operational state untouched.
func TestTick_CheckModeCommitsOnlySnapshotLog(t *testing.T) {
	e, st, dir := testEngine(t)
	writeSignal(t, dir, "integrity.json", `{"score": 80}`)

	res := e.Tick(context.Background(), ModeCheck)
	if !res.LockState.Locked {
		t.Fatal("check mode must still evaluate the lock")
	}

	var lockState trustlock.State
	if found, _ := st.Get(store.TrustLockDoc, &lockState); found {
		t.Error("check mode committed lock state")
	}
	markers, _ := st.Markers()
	if len(markers) != 0 {
		t.Errorf("check mode wrote markers: %v", markers)
	}
	if st.LogLen(store.HistoryLog) != 1 {
		t.Errorf("snapshot log entries = %d, want 1", st.LogLen(store.HistoryLog))
	}
}

func TestTick_FailingVerificationOpensEscalation(t *testing.T) {
	e, st, dir := testEngine(t)
	writeSignal(t, dir, "verifications.json", `{"results": [{"check": "metadata", "passed": false}]}`)

	res := e.Tick(context.Background(), ModeEnforce)
	if res.OpenEscalations != 1 {
		t.Fatalf("open escalations = %d, want 1", res.OpenEscalations)
	}
	if len(res.ActionsExecuted) != 1 || res.ActionsExecuted[0].Action != "quarantine/metadata" {
		t.Fatalf("executed = %+v, want quarantine/metadata", res.ActionsExecuted)
	}
	if !res.ActionsExecuted[0].Executed {
		t.Error("quarantine not recorded as executed in enforce mode")
	}
	if res.WindowCount != 1 {
		t.Errorf("window count = %d, want 1", res.WindowCount)
	}

	var rs escalation.RecordSet
	if found, _ := st.Get(store.EscalationsDoc, &rs); !found || len(rs.Records) != 1 {
		t.Error("escalation records not committed")
	}
	if st.LogLen(store.TransitionLog) != 1 {
		t.Errorf("transition log entries = %d, want 1", st.LogLen(store.TransitionLog))
	}
}

// TestTick_HardActionBlockedByLock drives a rejection while the lock is
// engaged and verifies the irreversible rollback is refused at the lock gate.
func TestTick_HardActionBlockedByLock(t *testing.T) {
	e, st, dir := testEngine(t)
	writeSignal(t, dir, "integrity.json", `{"score": 80}`)
	writeSignal(t, dir, "verifications.json", `{"results": [{"check": "metadata", "passed": false}]}`)

	st.Commit(store.EscalationsDoc, escalation.RecordSet{
		Records: []*escalation.Record{{
			ID:             "esc-1",
			Check:          "metadata",
			CurrentState:   escalation.StateAwaitingValidation,
			CreatedAt:      testNow.Add(-2 * time.Hour),
			EnteredStateAt: testNow.Add(-time.Hour),
		}},
	})

	res := e.Tick(context.Background(), ModeEnforce)
	if len(res.Transitions) != 1 || res.Transitions[0].To != escalation.StateRejected {
		t.Fatalf("transitions = %+v, want rejection", res.Transitions)
	}
	if len(res.ActionsBlocked) != 1 {
		t.Fatalf("blocked = %+v, want one", res.ActionsBlocked)
	}
	blocked := res.ActionsBlocked[0]
	if blocked.Action != "rollback/metadata" || blocked.Gate != "trust_lock" {
		t.Errorf("blocked = %+v, want rollback/metadata at trust_lock gate", blocked)
	}
	if res.ExitCode() != ExitWarnings {
		t.Errorf("exit = %d, want %d for blocked action", res.ExitCode(), ExitWarnings)
	}

	var report BlockedReport
	if found, _ := st.Get(store.BlockedDoc, &report); !found || len(report.Blocked) != 1 {
		t.Error("blocked report not committed")
	}
}

func TestTick_CeilingEngagesBrake(t *testing.T) {
	e, st, dir := testEngine(t)
	writeSignal(t, dir, "verifications.json", `{"results": [{"check": "metadata", "passed": false}]}`)

	st.Commit(store.RateLimitDoc, ratelimit.State{
		Buckets: []ratelimit.BucketSnapshot{{Timestamp: testNow.Truncate(time.Hour), Value: 10}},
	})

	res := e.Tick(context.Background(), ModeEnforce)
	if len(res.ActionsBlocked) != 1 || res.ActionsBlocked[0].Gate != "rate_limit" {
		t.Fatalf("blocked = %+v, want one at rate_limit gate", res.ActionsBlocked)
	}
	if !res.BrakeEngaged {
		t.Error("brake not engaged at ceiling")
	}
	if res.ExitCode() != ExitWarnings {
		t.Errorf("exit = %d, want %d", res.ExitCode(), ExitWarnings)
	}

	markers, _ := st.Markers()
	if _, ok := markers[store.MarkerBrakeEngaged]; !ok {
		t.Error("BRAKE_ENGAGED marker not written")
	}
	var rlState ratelimit.State
	if found, _ := st.Get(store.RateLimitDoc, &rlState); !found || !rlState.Brake.Engaged {
		t.Error("engaged brake not persisted")
	}
}

// TestTick_PersistenceFailureIsFatal verifies exhausted persistence maps to
// the fatal exit code and records the failure marker.
func TestTick_PersistenceFailureIsFatal(t *testing.T) {
	e, st, _ := testEngine(t)
	st.FailCommits = 1

	res := e.Tick(context.Background(), ModeEnforce)
	if res.FatalError == "" {
		t.Fatal("injected commit failure not surfaced")
	}
	if res.ExitCode() != ExitFatal {
		t.Errorf("exit = %d, want %d", res.ExitCode(), ExitFatal)
	}
	markers, _ := st.Markers()
	if _, ok := markers[store.MarkerPersistFailed]; !ok {
		t.Error("PERSISTENCE_FAILED marker not written")
	}
}

func TestTick_SignalWarningsExitCode(t *testing.T) {
	e, _, dir := testEngine(t)
	writeSignal(t, dir, "integrity.json", `{not json`)

	res := e.Tick(context.Background(), ModeEnforce)
	if len(res.Warnings) == 0 {
		t.Fatal("malformed source produced no warning")
	}
	if res.ExitCode() != ExitWarnings {
		t.Errorf("exit = %d, want %d", res.ExitCode(), ExitWarnings)
	}
}

func TestManualUnlock(t *testing.T) {
	e, st, dir := testEngine(t)
	writeSignal(t, dir, "integrity.json", `{"score": 80}`)
	e.Tick(context.Background(), ModeEnforce)

	lockState, err := e.ManualUnlock("incident resolved", "ops@example.com")
	if err != nil {
		t.Fatalf("ManualUnlock: %v", err)
	}
	if lockState.Locked {
		t.Error("still locked after manual unlock")
	}
	if lockState.ManualUnlocksToday != 1 {
		t.Errorf("quota used = %d, want 1", lockState.ManualUnlocksToday)
	}
	markers, _ := st.Markers()
	if _, ok := markers[store.MarkerManualUnlock]; !ok {
		t.Error("MANUAL_UNLOCK marker not written")
	}
}

func TestOverride(t *testing.T) {
	e, st, dir := testEngine(t)
	e.cfg.TrustLock.OverrideCredential = "break-glass"
	writeSignal(t, dir, "integrity.json", `{"score": 80}`)
	e.Tick(context.Background(), ModeEnforce)

	if _, err := e.Override("wrong", "emergency", "ops@example.com"); !errors.Is(err, ErrBadCredential) {
		t.Fatalf("err = %v, want ErrBadCredential", err)
	}
	markers, _ := st.Markers()
	if _, ok := markers[store.MarkerOverrideDenied]; !ok {
		t.Error("denied override not audited")
	}

	lockState, err := e.Override("break-glass", "emergency", "ops@example.com")
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if lockState.Locked {
		t.Error("still locked after override")
	}
	markers, _ = st.Markers()
	if _, ok := markers[store.MarkerOverrideUnlock]; !ok {
		t.Error("OVERRIDE_UNLOCK marker not written")
	}
}

// TestOverride_BrakeSurvivesByDefault verifies an override releases the lock
// but leaves an engaged safety brake in place unless configured otherwise.
func TestOverride_BrakeSurvivesByDefault(t *testing.T) {
	e, st, dir := testEngine(t)
	e.cfg.TrustLock.OverrideCredential = "break-glass"
	writeSignal(t, dir, "integrity.json", `{"score": 80}`)

	brake := ratelimit.BrakeState{Engaged: true, Reason: "ceiling reached", EngagedAt: testNow.Add(-time.Hour)}
	st.Commit(store.RateLimitDoc, ratelimit.State{Brake: brake})
	e.Tick(context.Background(), ModeEnforce)

	if _, err := e.Override("break-glass", "emergency", "ops@example.com"); err != nil {
		t.Fatalf("Override: %v", err)
	}
	var rlState ratelimit.State
	st.Get(store.RateLimitDoc, &rlState)
	if !rlState.Brake.Engaged {
		t.Error("override cleared the brake without override_bypasses_brake")
	}
}

func TestClearBrake(t *testing.T) {
	e, st, _ := testEngine(t)

	if err := e.ClearBrake("reviewed", "ops@example.com"); !errors.Is(err, ratelimit.ErrBrakeNotEngaged) {
		t.Fatalf("err = %v, want ErrBrakeNotEngaged", err)
	}

	st.Commit(store.RateLimitDoc, ratelimit.State{
		Brake: ratelimit.BrakeState{Engaged: true, Reason: "ceiling reached", EngagedAt: testNow},
	})
	if err := e.ClearBrake("reviewed", "ops@example.com"); err != nil {
		t.Fatalf("ClearBrake: %v", err)
	}

	var rlState ratelimit.State
	st.Get(store.RateLimitDoc, &rlState)
	if rlState.Brake.Engaged {
		t.Error("brake still engaged after clear")
	}
	markers, _ := st.Markers()
	if _, ok := markers[store.MarkerBrakeCleared]; !ok {
		t.Error("BRAKE_CLEARED marker not written")
	}
}
