package detectors

import (
	"fmt"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

// AmountAnomaly flags a transaction amount far above the client's global
// baseline.
func AmountAnomaly(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if profile.Amount.Count == 0 {
		return notTriggered(rule, "no amount history")
	}
	observed := txn.AmountRupees()
	triggered, deviationPct, score := baselineExcess(profile.Amount.EWMA, observed, rule.VariancePct)
	reason := fmt.Sprintf("amount %.2f vs baseline %.2f", observed, profile.Amount.EWMA)
	if !triggered {
		reason = "amount within baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}

// HourlyAmountAnomaly flags an hour whose cumulative amount exceeds the
// client's usual hourly total.
func HourlyAmountAnomaly(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if profile.CompletedHoursCount < 2 {
		return notTriggered(rule, "fewer than 2 completed hours of history")
	}
	observed := paiseToRupees(ctx.CurrentHourAmount)
	triggered, deviationPct, score := baselineExcess(profile.EWMAHourlyAmount, observed, rule.VariancePct)
	reason := fmt.Sprintf("hourly amount %.2f vs baseline %.2f", observed, profile.EWMAHourlyAmount)
	if !triggered {
		reason = "hourly amount within baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}

// AmountPerType flags an amount anomalous relative to the client's
// baseline for that specific transaction type.
func AmountPerType(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	minSamples := rule.ParamInt("minTypeSamples", 5)
	stats, ok := profile.AmountByType[txn.TxnType]
	if !ok || int(stats.Count) < minSamples {
		return notTriggered(rule, "insufficient samples for this transaction type")
	}
	observed := txn.AmountRupees()
	triggered, deviationPct, score := baselineExcess(stats.EWMA, observed, rule.VariancePct)
	reason := fmt.Sprintf("amount %.2f vs per-type baseline %.2f", observed, stats.EWMA)
	if !triggered {
		reason = "amount within per-type baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}

// DailyCumulativeAmount flags a day whose cumulative amount exceeds the
// client's usual daily total.
func DailyCumulativeAmount(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	minDays := rule.ParamInt("minDays", 2)
	if int(profile.CompletedDaysCount) < minDays {
		return notTriggered(rule, "insufficient daily history")
	}
	observed := paiseToRupees(ctx.CurrentDayAmount)
	triggered, deviationPct, score := baselineExcess(profile.EWMADailyAmount, observed, rule.VariancePct)
	reason := fmt.Sprintf("daily amount %.2f vs baseline %.2f", observed, profile.EWMADailyAmount)
	if !triggered {
		reason = "daily amount within baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}

// CrossChannelBeneficiaryAmount flags a beneficiary whose cumulative
// amount for the day, aggregated across all transaction types/channels,
// exceeds the client's usual daily baseline.
func CrossChannelBeneficiaryAmount(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if txn.BeneficiaryKey() == "" {
		return notTriggered(rule, "no beneficiary on this transaction")
	}
	minDays := rule.ParamInt("minDays", 2)
	if int(profile.CompletedDaysCount) < minDays {
		return notTriggered(rule, "insufficient daily history")
	}
	observed := paiseToRupees(ctx.BeneDailyAmount)
	triggered, deviationPct, score := baselineExcess(profile.EWMADailyAmount, observed, rule.VariancePct)
	reason := fmt.Sprintf("cross-channel beneficiary daily amount %.2f vs baseline %.2f", observed, profile.EWMADailyAmount)
	if !triggered {
		reason = "cross-channel beneficiary amount within baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}
