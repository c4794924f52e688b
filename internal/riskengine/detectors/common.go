// Package detectors implements the fifteen behavioural anomaly detectors
// (component F). Every detector is a pure function of (transaction,
// pre-update profile, rule, evaluation context) and never mutates its
// inputs; the orchestrator recovers panics around each call so one
// misbehaving detector cannot abort the pipeline.
package detectors

import (
	"math"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

const epsilon = 1e-9

// Detector is the shared contract every entry in the registry satisfies.
type Detector func(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func notTriggered(rule riskengine.AnomalyRule, reason string) riskengine.RuleResult {
	return riskengine.RuleResult{
		RuleID:     rule.RuleID,
		RuleName:   rule.Name,
		RuleType:   rule.RuleType,
		Triggered:  false,
		RiskWeight: rule.RiskWeight,
		Reason:     reason,
	}
}

// baselineExcess implements the shared scoring convention: threshold =
// baseline*(1+variancePct/100), deviationPct = 100*excess/allowedRange.
// partialScore uses the "clamp(50+deviationPct/2, 50, 100) when triggered"
// mapping. SeasonalDeviation calls it for the trigger decision only and
// scores with clamp(maxDeviation, 0, 100) instead.
func baselineExcess(baseline, observed, variancePct float64) (triggered bool, deviationPct, partialScore float64) {
	threshold := baseline * (1 + variancePct/100)
	excess := observed - threshold
	allowedRange := baseline * variancePct / 100
	if allowedRange < epsilon {
		allowedRange = epsilon
	}
	deviationPct = 100 * excess / allowedRange
	triggered = observed > threshold
	if triggered {
		partialScore = clamp(50+deviationPct/2, 50, 100)
	}
	return
}

func baselineResult(rule riskengine.AnomalyRule, triggered bool, deviationPct, partialScore float64, reason string) riskengine.RuleResult {
	return riskengine.RuleResult{
		RuleID:       rule.RuleID,
		RuleName:     rule.Name,
		RuleType:     rule.RuleType,
		Triggered:    triggered,
		DeviationPct: deviationPct,
		PartialScore: partialScore,
		RiskWeight:   rule.RiskWeight,
		Reason:       reason,
	}
}

func paiseToRupees(p int64) float64 { return float64(p) / 100.0 }

func floatsClose(a, b, tol float64) bool { return math.Abs(a-b) <= tol }
