package detectors

import (
	"fmt"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

func scaledSignal(value, min float64) float64 {
	if value < min {
		return 0
	}
	return clamp(30+(value-min)/max1(2*min)*70, 30, 100)
}

func max1(x float64) float64 {
	if x < 1 {
		return 1
	}
	return x
}

// MuleNetwork combines fan-in, shared-beneficiary, and neighbourhood
// density signals about the current beneficiary into a single composite;
// it requires at least 2 of the 3 signals to be individually above
// threshold before it will trigger at all.
func MuleNetwork(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	beneKey := txn.BeneficiaryKey()
	if beneKey == "" {
		return notTriggered(rule, "no beneficiary on this transaction")
	}
	if ctx.Graph == nil || !ctx.Graph.IsGraphReady() {
		return notTriggered(rule, "beneficiary graph not yet built")
	}

	minFanIn := rule.ParamFloat("minFanIn", 3)
	sharedThreshold := rule.ParamFloat("sharedBenePctThreshold", 40) / 100
	densityThreshold := rule.ParamFloat("densityThreshold", 30) / 100

	wF := rule.ParamFloat("fanInWeight", 0.4)
	wS := rule.ParamFloat("sharedWeight", 0.35)
	wD := rule.ParamFloat("densityWeight", 0.25)

	otherSenders := float64(ctx.Graph.OtherSendersCount(beneKey, txn.ClientID))
	fanInScore := 0.0
	fanInActive := false
	if otherSenders >= minFanIn {
		fanInScore = scaledSignal(otherSenders, minFanIn)
		fanInActive = true
	}

	total := ctx.Graph.TotalBeneficiaryCount(txn.ClientID)
	sharedScore := 0.0
	sharedActive := false
	if total > 0 {
		sharedRatio := float64(ctx.Graph.SharedBeneficiaryCount(txn.ClientID)) / float64(total)
		if sharedRatio >= sharedThreshold {
			sharedScore = scaledSignal(sharedRatio*100, sharedThreshold*100)
			sharedActive = true
		}
	}

	density := ctx.Graph.NetworkDensity(txn.ClientID)
	densityScore := 0.0
	densityActive := false
	if density >= densityThreshold {
		densityScore = scaledSignal(density*100, densityThreshold*100)
		densityActive = true
	}

	activeCount := 0
	for _, active := range []bool{fanInActive, sharedActive, densityActive} {
		if active {
			activeCount++
		}
	}
	if activeCount < 2 {
		return notTriggered(rule, "fewer than 2 of 3 mule-network signals active")
	}

	composite := fanInScore*wF + sharedScore*wS + densityScore*wD
	compositeThreshold := rule.ParamFloat("muleCompositeThreshold", rule.VariancePct)
	if compositeThreshold <= 0 {
		compositeThreshold = 40
	}
	if composite < compositeThreshold {
		return notTriggered(rule, fmt.Sprintf("mule-network composite %.1f below threshold %.1f", composite, compositeThreshold))
	}

	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, PartialScore: clamp(composite, 0, 100), RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("mule-network signals: fan-in=%.1f shared=%.1f density=%.2f composite=%.1f", fanInScore, sharedScore, densityScore, composite),
	}
}
