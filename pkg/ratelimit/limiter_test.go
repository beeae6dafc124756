package ratelimit

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
)

func testLimiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Ceiling:    10,
		Window:     24 * time.Hour,
		BucketSize: time.Hour,
	}
}

func TestCheck_AllowsUnderCeiling(t *testing.T) {
	l := NewLimiter(testLimiterConfig(), nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 9; i++ {
		d := l.Check("quarantine/metadata", now)
		if !d.Allowed {
			t.Fatalf("action %d refused under ceiling: %s", i, d.Reason)
		}
		l.Record(now)
	}
	if got := l.Count(now); got != 9 {
		t.Errorf("count = %d, want 9", got)
	}
}

// TestCheck_CeilingEngagesBrake covers the tenth-action boundary: the tenth
// action in the window is refused and the brake engages.
func TestCheck_CeilingEngagesBrake(t *testing.T) {
	l := NewLimiter(testLimiterConfig(), nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		d := l.Check("quarantine/metadata", now)
		if !d.Allowed {
			t.Fatalf("action %d refused with count %d", i, l.Count(now))
		}
		l.Record(now)
	}

	d := l.Check("quarantine/metadata", now)
	if d.Allowed {
		t.Fatal("action allowed at ceiling")
	}
	if !d.BrakeEngagedNow {
		t.Error("ceiling breach did not report brake engagement")
	}
	if !l.Brake().Engaged {
		t.Error("brake not engaged after ceiling breach")
	}
}

// TestCheck_BrakeBlocksEverything verifies the brake halts all automated
// action, not only the action class that tripped it.
func TestCheck_BrakeBlocksEverything(t *testing.T) {
	l := NewLimiter(testLimiterConfig(), nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		l.Record(now)
	}
	l.Check("quarantine/metadata", now) // engages brake

	d := l.Check("rollback/consensus", now.Add(time.Minute))
	if d.Allowed {
		t.Fatal("unrelated action allowed while brake engaged")
	}
	if d.BrakeEngagedNow {
		t.Error("already-engaged brake reported as newly engaged")
	}

	// Even after the window empties, the brake still blocks.
	d = l.Check("quarantine/metadata", now.Add(48*time.Hour))
	if d.Allowed {
		t.Error("brake released by window expiry; it must persist until cleared")
	}
}

func TestClearBrake(t *testing.T) {
	l := NewLimiter(testLimiterConfig(), nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := l.ClearBrake("mistake", "ops@example.com", now); !errors.Is(err, ErrBrakeNotEngaged) {
		t.Fatalf("clear on disengaged brake: err = %v, want ErrBrakeNotEngaged", err)
	}

	for i := 0; i < 10; i++ {
		l.Record(now)
	}
	l.Check("quarantine/metadata", now)

	if err := l.ClearBrake("", "ops@example.com", now); err == nil {
		t.Fatal("clear without reason accepted")
	}
	if err := l.ClearBrake("incident reviewed", "ops@example.com", now); err != nil {
		t.Fatalf("ClearBrake: %v", err)
	}
	if l.Brake().Engaged {
		t.Error("brake still engaged after clear")
	}

	// The window itself is untouched by a clear; with the count still at
	// the ceiling the next check re-engages.
	d := l.Check("quarantine/metadata", now)
	if d.Allowed || !d.BrakeEngagedNow {
		t.Errorf("check after clear at ceiling = %+v, want refusal with re-engagement", d)
	}
}

func TestWindow_RollsOff(t *testing.T) {
	l := NewLimiter(testLimiterConfig(), nil)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		l.Record(t0)
	}
	if got := l.Count(t0); got != 10 {
		t.Fatalf("count = %d, want 10", got)
	}

	// Inside the window the actions still count.
	if got := l.Count(t0.Add(23 * time.Hour)); got != 10 {
		t.Errorf("count at 23h = %d, want 10", got)
	}

	// Past the window they roll off and actions are allowed again.
	later := t0.Add(25 * time.Hour)
	if got := l.Count(later); got != 0 {
		t.Errorf("count at 25h = %d, want 0", got)
	}
	if d := l.Check("quarantine/metadata", later); !d.Allowed {
		t.Errorf("action refused after window rolled off: %s", d.Reason)
	}
}

// TestRestore verifies both the window counts and the brake flag survive a
// snapshot/restore cycle, simulating a process restart.
func TestRestore(t *testing.T) {
	cfg := testLimiterConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l := NewLimiter(cfg, nil)
	for i := 0; i < 7; i++ {
		l.Record(now.Add(time.Duration(i) * time.Hour))
	}
	at := now.Add(7 * time.Hour)

	restored := NewLimiter(cfg, nil)
	restored.Restore(l.State(at))
	if got := restored.Count(at); got != 7 {
		t.Errorf("restored count = %d, want 7", got)
	}

	// Engage the brake, snapshot, restore: the flag must survive.
	for i := 0; i < 4; i++ {
		l.Record(at)
	}
	l.Check("quarantine/metadata", at)
	if !l.Brake().Engaged {
		t.Fatal("brake not engaged")
	}

	restored = NewLimiter(cfg, nil)
	restored.Restore(l.State(at))
	if !restored.Brake().Engaged {
		t.Error("brake flag lost across restore")
	}
	if d := restored.Check("quarantine/metadata", at); d.Allowed {
		t.Error("restored limiter allowed action with brake engaged")
	}
}
