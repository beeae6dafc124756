// Package engine orchestrates one governance tick: collect signals, evaluate
// the trust lock and policy level, advance escalations, budget-check
// automated actions, and commit the resulting state.
//
// The engine is single-writer and tick-batch: all state is read as a
// snapshot at the start of a tick, and the commit phase at the end is the
// only mutation point. At most one tick executes at a time, enforced by the
// external caller.
package engine

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/escalation"
	"mercator-hq/warden/pkg/history"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/ratelimit"
	"mercator-hq/warden/pkg/signals"
	"mercator-hq/warden/pkg/store"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/trustlock"
)

// ErrBadCredential is returned when an emergency override presents a
// credential that does not match the configured one.
var ErrBadCredential = errors.New("override credential rejected")

// Engine wires the governance components together over an injected state
// store.
type Engine struct {
	cfg       *config.Config
	st        store.Store
	collector *signals.Collector
	lockCtl   *trustlock.Controller
	escMgr    *escalation.Manager
	hist      history.Storage
	metrics   *metrics.Collector
	logger    *slog.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// New creates an engine over the given store. History and metrics are
// optional; attach them with WithHistory and WithMetrics.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		st:        st,
		collector: signals.NewCollector(cfg.Engine.SignalsDir, cfg.RateLimit.Window, logger),
		lockCtl:   trustlock.NewController(cfg.TrustLock, logger),
		escMgr:    escalation.NewManager(cfg.Escalation, logger),
		logger:    logger.With("component", "engine"),
		Now:       time.Now,
	}
}

// WithHistory attaches a history backend.
func (e *Engine) WithHistory(h history.Storage) *Engine {
	e.hist = h
	return e
}

// WithMetrics attaches a metrics collector.
func (e *Engine) WithMetrics(m *metrics.Collector) *Engine {
	e.metrics = m
	return e
}

// Tick runs one full evaluation. In check mode nothing is committed except
// the snapshot log; in enforce mode every state transition is committed and
// audited. Tick itself never returns an error: persistence failure is
// reported through TickResult.FatalError and the exit-code contract.
func (e *Engine) Tick(ctx context.Context, mode Mode) *TickResult {
	now := e.Now()
	res := &TickResult{
		TickID:    uuid.NewString(),
		Mode:      mode,
		Timestamp: now.UTC(),
	}

	bundle, warnings := e.collector.Collect(now)
	res.Warnings = warnings

	lockState, rs, limiter := e.loadState(res)

	lockTr := e.lockCtl.Evaluate(&lockState, bundle, now)
	res.LockState = lockState

	res.Snapshot = policy.Evaluate(bundle, e.cfg.Policy, lockState.Locked, now)

	entries, stuck := e.escMgr.Advance(&rs, verificationInputs(bundle.Verifications), now)
	res.Transitions = entries
	res.StuckEscalations = stuck
	res.OpenEscalations = len(rs.OpenRecords())

	brakeEngagedNow := e.gateActions(res, deriveActions(entries), lockState, limiter, mode, now)
	res.WindowCount = limiter.Count(now)
	res.BrakeEngaged = limiter.Brake().Engaged

	if err := e.commit(ctx, mode, res, lockState, lockTr, &rs, limiter, brakeEngagedNow, now); err != nil {
		res.FatalError = err.Error()
	}

	e.observe(res, lockState)
	e.logger.Info("tick complete",
		"tick_id", res.TickID, "mode", string(mode), "level", string(res.Snapshot.Level),
		"outcome", res.Outcome(), "open_escalations", res.OpenEscalations)
	return res
}

// loadState reads the tick's snapshot of all mutable state. Unreadable own
// state is reported as a warning and replaced with a fresh zero value; the
// atomic-replace contract makes this an operator-level event, not an
// expected one.
func (e *Engine) loadState(res *TickResult) (trustlock.State, escalation.RecordSet, *ratelimit.Limiter) {
	var lockState trustlock.State
	if _, err := e.st.Get(store.TrustLockDoc, &lockState); err != nil {
		e.warnOwnState(res, store.TrustLockDoc, err)
		lockState = trustlock.State{}
	}

	var rs escalation.RecordSet
	if _, err := e.st.Get(store.EscalationsDoc, &rs); err != nil {
		e.warnOwnState(res, store.EscalationsDoc, err)
		rs = escalation.RecordSet{}
	}

	limiter := ratelimit.NewLimiter(e.cfg.RateLimit, e.logger)
	var rlState ratelimit.State
	if ok, err := e.st.Get(store.RateLimitDoc, &rlState); err != nil {
		e.warnOwnState(res, store.RateLimitDoc, err)
	} else if ok {
		limiter.Restore(rlState)
	}

	return lockState, rs, limiter
}

func (e *Engine) warnOwnState(res *TickResult, artifact string, err error) {
	e.logger.Error("state artifact unreadable, starting fresh", "artifact", artifact, "error", err)
	res.Warnings = append(res.Warnings, signals.Warning{
		Source:  artifact,
		Kind:    signals.WarnMalformed,
		Message: err.Error(),
	})
}

// gateActions runs every requested action through the trust-lock and
// rate-limit gates. It returns whether this tick engaged the safety brake.
func (e *Engine) gateActions(res *TickResult, actions []Action, lockState trustlock.State, limiter *ratelimit.Limiter, mode Mode, now time.Time) bool {
	brakeEngagedNow := false
	for _, a := range actions {
		outcome := ActionOutcome{Action: a.Name(), Destructive: a.Destructive()}

		if a.Destructive() && lockState.Locked {
			outcome.Gate = "trust_lock"
			outcome.Reason = "trust lock engaged: " + lockState.Reason
			res.ActionsBlocked = append(res.ActionsBlocked, outcome)
			continue
		}

		dec := limiter.Check(a.Name(), now)
		if dec.BrakeEngagedNow {
			brakeEngagedNow = true
		}
		if !dec.Allowed {
			outcome.Gate = "rate_limit"
			outcome.Reason = dec.Reason
			res.ActionsBlocked = append(res.ActionsBlocked, outcome)
			continue
		}

		if mode == ModeEnforce {
			limiter.Record(now)
			outcome.Executed = true
		}
		res.ActionsExecuted = append(res.ActionsExecuted, outcome)
	}
	return brakeEngagedNow
}

// commit is the tick's single mutation point.
func (e *Engine) commit(ctx context.Context, mode Mode, res *TickResult, lockState trustlock.State, lockTr trustlock.Transition, rs *escalation.RecordSet, limiter *ratelimit.Limiter, brakeEngagedNow bool, now time.Time) error {
	// The snapshot log is written in both modes.
	if err := e.st.Commit(store.SnapshotDoc, res.Snapshot); err != nil {
		return e.persistFatal(err)
	}
	if err := e.st.AppendLine(store.HistoryLog, res.Snapshot); err != nil {
		return e.persistFatal(err)
	}
	if e.hist != nil {
		if err := e.hist.RecordSnapshot(ctx, res.Snapshot); err != nil {
			// History is a derived index; the JSONL log already holds
			// the authoritative record.
			e.logger.Warn("history snapshot insert failed", "error", err)
		}
	}

	if mode != ModeEnforce {
		return nil
	}

	if lockTr.Changed {
		if err := e.st.Commit(store.TrustLockDoc, lockState); err != nil {
			return e.persistFatal(err)
		}
	}
	if lockTr.Marker != "" {
		if err := e.writeMarker(lockTr.Marker, lockTr.Detail, ""); err != nil {
			return e.persistFatal(err)
		}
	}

	if len(res.Transitions) > 0 {
		if err := e.st.Commit(store.EscalationsDoc, rs); err != nil {
			return e.persistFatal(err)
		}
		for _, entry := range res.Transitions {
			if err := e.st.AppendLine(store.TransitionLog, entry); err != nil {
				return e.persistFatal(err)
			}
			if e.hist != nil {
				if err := e.hist.RecordTransition(ctx, entry); err != nil {
					e.logger.Warn("history transition insert failed", "error", err)
				}
			}
		}
	}

	if err := e.st.Commit(store.RateLimitDoc, limiter.State(now)); err != nil {
		return e.persistFatal(err)
	}
	if brakeEngagedNow {
		if err := e.writeMarker(store.MarkerBrakeEngaged, limiter.Brake().Reason, ""); err != nil {
			return e.persistFatal(err)
		}
	}

	if len(res.ActionsBlocked) > 0 {
		report := BlockedReport{Timestamp: now.UTC(), TickID: res.TickID, Blocked: res.ActionsBlocked}
		if err := e.st.Commit(store.BlockedDoc, report); err != nil {
			return e.persistFatal(err)
		}
	}

	return nil
}

// persistFatal records the failure in the audit-marker document so later
// ticks and operators see the last known bad state without re-deriving it.
func (e *Engine) persistFatal(err error) error {
	var fe *store.FatalError
	if errors.As(err, &fe) {
		detail := fe.Error()
		if mErr := e.writeMarker(store.MarkerPersistFailed, detail, ""); mErr != nil {
			e.logger.Error("failed to record persistence failure marker", "error", mErr)
		}
	}
	return err
}

// ManualUnlock releases the trust lock on operator request, consuming one
// unit of the daily quota.
func (e *Engine) ManualUnlock(reason, actor string) (trustlock.State, error) {
	now := e.Now()

	var lockState trustlock.State
	if _, err := e.st.Get(store.TrustLockDoc, &lockState); err != nil {
		return lockState, err
	}

	tr, err := e.lockCtl.ManualUnlock(&lockState, reason, actor, now)
	if err != nil {
		return lockState, err
	}

	if err := e.st.Commit(store.TrustLockDoc, lockState); err != nil {
		return lockState, err
	}
	if err := e.writeMarker(tr.Marker, tr.Detail, actor); err != nil {
		return lockState, err
	}
	return lockState, nil
}

// Override releases the trust lock through the emergency bypass. The
// credential must match the configured override credential; a mismatch is
// itself audited. Whether the bypass also clears an engaged safety brake is
// the explicit override_bypasses_brake configuration choice.
func (e *Engine) Override(credential, reason, actor string) (trustlock.State, error) {
	now := e.Now()

	var lockState trustlock.State
	if _, err := e.st.Get(store.TrustLockDoc, &lockState); err != nil {
		return lockState, err
	}

	if e.cfg.TrustLock.OverrideCredential == "" {
		return lockState, trustlock.ErrOverrideDisabled
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(e.cfg.TrustLock.OverrideCredential)) != 1 {
		detail := fmt.Sprintf("override denied for %s: credential mismatch", actor)
		if err := e.writeMarker(store.MarkerOverrideDenied, detail, actor); err != nil {
			e.logger.Error("failed to audit denied override", "error", err)
		}
		return lockState, ErrBadCredential
	}

	tr, err := e.lockCtl.Override(&lockState, reason, actor, now)
	if err != nil {
		return lockState, err
	}

	if err := e.st.Commit(store.TrustLockDoc, lockState); err != nil {
		return lockState, err
	}
	if err := e.writeMarker(tr.Marker, tr.Detail, actor); err != nil {
		return lockState, err
	}

	if e.cfg.TrustLock.OverrideBypassesBrake {
		if err := e.clearBrakeIfEngaged("cleared by emergency override: "+reason, actor, now); err != nil {
			return lockState, err
		}
	}
	return lockState, nil
}

// ClearBrake disengages the safety brake on operator request.
func (e *Engine) ClearBrake(reason, actor string) error {
	return e.clearBrake(reason, actor, e.Now(), false)
}

func (e *Engine) clearBrakeIfEngaged(reason, actor string, now time.Time) error {
	err := e.clearBrake(reason, actor, now, true)
	if errors.Is(err, ratelimit.ErrBrakeNotEngaged) {
		return nil
	}
	return err
}

func (e *Engine) clearBrake(reason, actor string, now time.Time, quiet bool) error {
	limiter := ratelimit.NewLimiter(e.cfg.RateLimit, e.logger)
	var rlState ratelimit.State
	if ok, err := e.st.Get(store.RateLimitDoc, &rlState); err != nil {
		return err
	} else if ok {
		limiter.Restore(rlState)
	}

	if err := limiter.ClearBrake(reason, actor, now); err != nil {
		return err
	}
	if err := e.st.Commit(store.RateLimitDoc, limiter.State(now)); err != nil {
		return err
	}
	detail := fmt.Sprintf("brake cleared by %s: %s", actor, reason)
	return e.writeMarker(store.MarkerBrakeCleared, detail, actor)
}

// RateLimit returns the persisted rate-limiter state.
func (e *Engine) RateLimit() (ratelimit.State, error) {
	var st ratelimit.State
	_, err := e.st.Get(store.RateLimitDoc, &st)
	return st, err
}

// Escalations returns the persisted escalation record set.
func (e *Engine) Escalations() (escalation.RecordSet, error) {
	var rs escalation.RecordSet
	_, err := e.st.Get(store.EscalationsDoc, &rs)
	return rs, err
}

// TrustLock returns the persisted trust-lock state.
func (e *Engine) TrustLock() (trustlock.State, error) {
	var st trustlock.State
	_, err := e.st.Get(store.TrustLockDoc, &st)
	return st, err
}

// History returns the attached history backend, or nil.
func (e *Engine) History() history.Storage { return e.hist }

func (e *Engine) writeMarker(kind store.MarkerKind, detail, actor string) error {
	return e.st.WriteMarker(store.Marker{
		Kind:      kind,
		Timestamp: e.Now().UTC(),
		Detail:    detail,
		Actor:     actor,
	})
}

func (e *Engine) observe(res *TickResult, lockState trustlock.State) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveTick(metrics.TickObservation{
		Mode:               string(res.Mode),
		Outcome:            res.Outcome(),
		LevelSeverity:      res.Snapshot.Level.Severity(),
		LockEngaged:        lockState.Locked,
		ManualUnlocksToday: lockState.ManualUnlocksToday,
		OpenEscalations:    res.OpenEscalations,
		StuckEscalations:   len(res.StuckEscalations),
		WindowCount:        res.WindowCount,
		BrakeEngaged:       res.BrakeEngaged,
		SignalWarnings:     len(res.Warnings),
		PersistFailed:      res.FatalError != "",
	})
}

// verificationInputs maps collected verifier outcomes to escalation inputs.
func verificationInputs(results []signals.VerificationResult) []escalation.Input {
	out := make([]escalation.Input, 0, len(results))
	for _, r := range results {
		out = append(out, escalation.Input{
			Check:              r.Check,
			VerifierRan:        true,
			VerifierPassed:     r.Passed,
			CorrectionDetected: r.CorrectionDetected,
		})
	}
	return out
}
