package detectors

import "sentinel/internal/riskengine"

// Registry maps each rule type to the detector that evaluates it, per the
// "resolve detectors by type at load time" design: a lookup table, not an
// inheritance hierarchy.
var Registry = map[riskengine.RuleType]Detector{
	riskengine.RuleTxnTypeAnomaly:         TxnTypeAnomaly,
	riskengine.RuleTPSSpike:               TPSSpike,
	riskengine.RuleAmountAnomaly:          AmountAnomaly,
	riskengine.RuleHourlyAmountAnomaly:    HourlyAmountAnomaly,
	riskengine.RuleAmountPerType:          AmountPerType,
	riskengine.RuleBeneRapidRepeat:        BeneficiaryRapidRepeat,
	riskengine.RuleBeneConcentration:      BeneficiaryConcentration,
	riskengine.RuleBeneAmountRepetition:   BeneficiaryAmountRepetition,
	riskengine.RuleDailyCumulativeAmount:  DailyCumulativeAmount,
	riskengine.RuleNewBeneficiaryVelocity: NewBeneficiaryVelocity,
	riskengine.RuleDormancyReactivation:   DormancyReactivation,
	riskengine.RuleCrossChannelBeneAmount: CrossChannelBeneficiaryAmount,
	riskengine.RuleSeasonalDeviation:      SeasonalDeviation,
	riskengine.RuleMuleNetwork:            MuleNetwork,
	riskengine.RuleIsolationForest:        IsolationForest,
}

// Lookup returns the detector for ruleType, or nil if unknown. Unknown
// rule types are skipped by the orchestrator, not treated as an error —
// it lets a rule row reference a type this build doesn't implement yet
// without taking down evaluation.
func Lookup(ruleType riskengine.RuleType) (Detector, bool) {
	d, ok := Registry[ruleType]
	return d, ok
}
