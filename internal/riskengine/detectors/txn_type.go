package detectors

import (
	"fmt"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

// TxnTypeAnomaly flags a transaction type the client rarely or never uses.
func TxnTypeAnomaly(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if profile.TotalTxnCount == 0 {
		return notTriggered(rule, "no transaction history")
	}

	minPct := rule.ParamFloat("minTypeFrequencyPct", 5)
	count := profile.TxnTypeCounts[txn.TxnType]
	if count == 0 {
		return riskengine.RuleResult{
			RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
			Triggered: true, DeviationPct: 100, PartialScore: 100, RiskWeight: rule.RiskWeight,
			Reason: fmt.Sprintf("transaction type %s never seen for this client", txn.TxnType),
		}
	}

	freqPct := profile.TypeFrequency(txn.TxnType) * 100
	if freqPct >= minPct {
		return notTriggered(rule, fmt.Sprintf("type frequency %.2f%% at or above minimum %.2f%%", freqPct, minPct))
	}
	deviationPct := (minPct - freqPct) / minPct * 100
	score := clamp(deviationPct, 0, 100)
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, DeviationPct: deviationPct, PartialScore: score, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("type frequency %.2f%% below minimum %.2f%%", freqPct, minPct),
	}
}
