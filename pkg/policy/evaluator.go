// Package policy computes the GREEN/YELLOW/RED policy level for a tick.
//
// Evaluation is a pure function of the signal bundle, the active threshold
// set, and the current trust-lock state. Rules are checked in a fixed
// precedence order (RED first, then YELLOW); the first matching rule decides
// the level and all matching rules at that level are recorded as reasons.
//
// Interval semantics are deliberate: a value exactly at a yellow boundary is
// YELLOW, not GREEN. For integrity, RED is [0, red) and YELLOW is
// [red, yellow); the same shape applies to consensus. Response counts are
// RED at >= red and YELLOW in [yellow, red).
package policy

import (
	"fmt"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/signals"
)

// Evaluate computes the policy snapshot for one tick. It is deterministic
// and side-effect-free: the same inputs always produce the same snapshot
// (modulo the supplied timestamp).
func Evaluate(bundle signals.Bundle, thresholds config.PolicyConfig, lockEngaged bool, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:   now.UTC(),
		Inputs:      bundle,
		LockEngaged: lockEngaged,
		Thresholds:  thresholds,
	}

	if reasons := redReasons(bundle, thresholds, lockEngaged); len(reasons) > 0 {
		snap.Level = LevelRed
		snap.Rationale = reasons[0]
		snap.Reasons = reasons
		return snap
	}

	if reasons := yellowReasons(bundle, thresholds); len(reasons) > 0 {
		snap.Level = LevelYellow
		snap.Rationale = reasons[0]
		snap.Reasons = reasons
		return snap
	}

	snap.Level = LevelGreen
	snap.Rationale = "all signals within healthy thresholds"
	return snap
}

// redReasons returns every RED rule that matches, in precedence order.
func redReasons(b signals.Bundle, t config.PolicyConfig, lockEngaged bool) []string {
	var reasons []string
	if lockEngaged {
		reasons = append(reasons, "trust lock engaged")
	}
	if b.Integrity < t.RedIntegrity {
		reasons = append(reasons, fmt.Sprintf("integrity %.1f below red threshold %.1f", b.Integrity, t.RedIntegrity))
	}
	if b.Consensus < t.RedConsensus {
		reasons = append(reasons, fmt.Sprintf("consensus %.1f below red threshold %.1f", b.Consensus, t.RedConsensus))
	}
	if b.ForecastRisk == signals.RiskHigh {
		reasons = append(reasons, "forecast risk is high")
	}
	if b.RecentResponses >= t.RedResponses {
		reasons = append(reasons, fmt.Sprintf("recent automated actions %d at or above red threshold %d", b.RecentResponses, t.RedResponses))
	}
	return reasons
}

// yellowReasons returns every YELLOW rule that matches, in precedence order.
// Callers only reach this after no RED rule matched, so the lower bound of
// each interval is already guaranteed.
func yellowReasons(b signals.Bundle, t config.PolicyConfig) []string {
	var reasons []string
	if b.Integrity < t.YellowIntegrity {
		reasons = append(reasons, fmt.Sprintf("integrity %.1f below yellow threshold %.1f", b.Integrity, t.YellowIntegrity))
	}
	if b.Consensus < t.YellowConsensus {
		reasons = append(reasons, fmt.Sprintf("consensus %.1f below yellow threshold %.1f", b.Consensus, t.YellowConsensus))
	}
	if b.Reputation < t.YellowReputation {
		reasons = append(reasons, fmt.Sprintf("reputation %.1f below yellow threshold %.1f", b.Reputation, t.YellowReputation))
	}
	if b.ForecastRisk == signals.RiskMedium {
		reasons = append(reasons, "forecast risk is medium")
	}
	if b.RecentResponses >= t.YellowResponses {
		reasons = append(reasons, fmt.Sprintf("recent automated actions %d at or above yellow threshold %d", b.RecentResponses, t.YellowResponses))
	}
	return reasons
}
