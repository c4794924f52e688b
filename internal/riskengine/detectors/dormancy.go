package detectors

import (
	"fmt"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

// DormancyReactivation flags a transaction arriving after an unusually
// long gap since the client's last activity.
func DormancyReactivation(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if profile.TotalTxnCount < 2 {
		return notTriggered(rule, "insufficient history to judge dormancy")
	}

	var thresholdMinutes float64
	if m := rule.ParamFloat("dormancyMinutes", 0); m > 0 {
		thresholdMinutes = m
	} else {
		days := rule.ParamFloat("dormancyDays", 30)
		thresholdMinutes = days * 24 * 60
	}

	gapMinutes := txn.Timestamp.Sub(profile.LastUpdated).Minutes()
	if gapMinutes < thresholdMinutes {
		return notTriggered(rule, fmt.Sprintf("gap %.1f minutes below dormancy threshold %.1f", gapMinutes, thresholdMinutes))
	}

	deviationPct := 100 * (gapMinutes - thresholdMinutes) / thresholdMinutes
	score := clamp(50*gapMinutes/(thresholdMinutes*1.5), 0, 100)
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, DeviationPct: deviationPct, PartialScore: score, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("gap of %.1f minutes reactivates a dormant client (threshold %.1f)", gapMinutes, thresholdMinutes),
	}
}
