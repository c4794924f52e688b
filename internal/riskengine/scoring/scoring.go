// Package scoring implements the composite weighted score and the
// score→risk-level/action mapping (component I).
package scoring

import "sentinel/internal/riskengine"

// Thresholds are the registered alert/block cut points; alertThreshold <
// blockThreshold is a startup ConfigError precondition enforced by the
// caller, not by this package.
type Thresholds struct {
	Alert float64
	Block float64
}

// Composite computes the weighted mean of triggered partial scores,
// capped at 100; 0 when nothing triggered.
func Composite(results []riskengine.RuleResult) float64 {
	var weightedSum, weightSum float64
	for _, r := range results {
		if !r.Triggered {
			continue
		}
		weightedSum += r.PartialScore * r.RiskWeight
		weightSum += r.RiskWeight
	}
	if weightSum <= 0 {
		return 0
	}
	score := weightedSum / weightSum
	if score > 100 {
		score = 100
	}
	return score
}

// Action maps a composite score to PASS/ALERT/BLOCK per the registered
// thresholds.
func Action(score float64, t Thresholds) riskengine.Action {
	switch {
	case score < t.Alert:
		return riskengine.ActionPass
	case score < t.Block:
		return riskengine.ActionAlert
	default:
		return riskengine.ActionBlock
	}
}

// RiskLevel maps a composite score onto the four-tier risk level.
func RiskLevel(score float64) riskengine.RiskLevel {
	switch {
	case score < 30:
		return riskengine.RiskLow
	case score < 60:
		return riskengine.RiskMedium
	case score < 80:
		return riskengine.RiskHigh
	default:
		return riskengine.RiskCritical
	}
}
