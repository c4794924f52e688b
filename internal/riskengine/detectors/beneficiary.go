package detectors

import (
	"fmt"
	"math"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

// BeneficiaryRapidRepeat flags many transactions to the same beneficiary
// within the current hour.
func BeneficiaryRapidRepeat(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if txn.BeneficiaryKey() == "" {
		return notTriggered(rule, "no beneficiary on this transaction")
	}
	minRepeat := rule.ParamInt("minRepeatCount", 5)
	count := ctx.BeneHourCount
	if int(count) < minRepeat {
		return notTriggered(rule, fmt.Sprintf("beneficiary hourly count %d below minimum %d", count, minRepeat))
	}
	score := clamp(50*float64(count)/float64(minRepeat), 0, 100)
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, PartialScore: score, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("%d transactions to same beneficiary within the hour", count),
	}
}

// BeneficiaryConcentration flags a disproportionate share of a client's
// transactions going to a single beneficiary.
func BeneficiaryConcentration(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	beneKey := txn.BeneficiaryKey()
	if beneKey == "" {
		return notTriggered(rule, "no beneficiary on this transaction")
	}
	minDistinct := rule.ParamInt("minDistinct", 3)
	if int(profile.DistinctBeneficiaryCount) < minDistinct {
		return notTriggered(rule, "too few distinct beneficiaries to judge concentration")
	}

	absMinPct := rule.ParamFloat("absMinConcentrationPct", 20)
	expected := (1.0 / float64(profile.DistinctBeneficiaryCount)) * (1 + rule.VariancePct/100)
	threshold := math.Max(expected, absMinPct/100)

	observed := float64(profile.BeneTxnCounts[beneKey]) / float64(profile.TotalTxnCount)
	if observed <= threshold {
		return notTriggered(rule, fmt.Sprintf("beneficiary share %.2f%% at or below threshold %.2f%%", observed*100, threshold*100))
	}
	allowedRange := math.Max(threshold, epsilon)
	deviationPct := 100 * (observed - threshold) / allowedRange
	score := clamp(50+deviationPct/2, 50, 100)
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, DeviationPct: deviationPct, PartialScore: score, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("beneficiary share %.2f%% exceeds threshold %.2f%%", observed*100, threshold*100),
	}
}

// BeneficiaryAmountRepetition flags a beneficiary the client pays an
// unusually consistent amount, where the current transaction matches that
// pattern too closely to be routine (a structuring/mule tell).
func BeneficiaryAmountRepetition(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	beneKey := txn.BeneficiaryKey()
	if beneKey == "" {
		return notTriggered(rule, "no beneficiary on this transaction")
	}
	stats, ok := profile.AmountByBeneficiary[beneKey]
	if !ok || stats.Count < 2 {
		return notTriggered(rule, "insufficient amount history for this beneficiary")
	}

	mean := stats.EWMA
	sigma := math.Sqrt(stats.Variance())
	if mean <= 0 {
		return notTriggered(rule, "beneficiary baseline amount is zero")
	}
	cv := sigma / mean
	maxCvPct := rule.ParamFloat("maxCvPct", 10)
	if cv*100 >= maxCvPct {
		return notTriggered(rule, fmt.Sprintf("coefficient of variation %.2f%% at or above maximum %.2f%%", cv*100, maxCvPct))
	}

	tolerance := math.Max(sigma, mean*0.05)
	observed := txn.AmountRupees()
	if !floatsClose(observed, mean, tolerance) {
		return notTriggered(rule, "current amount outside repetition tolerance of beneficiary baseline")
	}

	score := math.Max(50, 100*(1-cv*100/maxCvPct))
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, PartialScore: score, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("amount %.2f repeats beneficiary baseline %.2f within %.2f%% CV", observed, mean, cv*100),
	}
}

// NewBeneficiaryVelocity flags too many first-time beneficiaries in a
// single day, either by a hard cap or statistically against the client's
// usual daily rate.
func NewBeneficiaryVelocity(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	hardMax := rule.ParamInt("maxNewBenePerDay", 5)
	observed := ctx.CurrentDayNewBene
	if int(observed) >= hardMax {
		return riskengine.RuleResult{
			RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
			Triggered: true, PartialScore: 100, RiskWeight: rule.RiskWeight,
			Reason: fmt.Sprintf("%d new beneficiaries today reaches hard limit %d", observed, hardMax),
		}
	}

	minProfileDays := rule.ParamInt("minProfileDays", 3)
	if int(profile.CompletedDaysForBeneCount) < minProfileDays {
		return notTriggered(rule, "insufficient daily history to judge new-beneficiary velocity")
	}
	triggered, deviationPct, score := baselineExcess(profile.EWMADailyNewBeneficiaries, float64(observed), rule.VariancePct)
	reason := fmt.Sprintf("%d new beneficiaries vs baseline %.2f", observed, profile.EWMADailyNewBeneficiaries)
	if !triggered {
		reason = "new-beneficiary count within baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}
