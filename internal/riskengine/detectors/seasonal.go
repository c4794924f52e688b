package detectors

import (
	"fmt"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

// seasonalBaseline picks the seasonal slot's EWMA when it has enough
// samples, else falls back to the corresponding global EWMA once it has
// at least 2 completed periods, else reports unavailable.
func seasonalBaseline(slot riskengine.SeasonalSlot, minSamples int, globalEWMA float64, globalCompletedPeriods int64) (float64, bool) {
	if int(slot.Count) >= minSamples {
		return slot.EWMA, true
	}
	if globalCompletedPeriods >= 2 {
		return globalEWMA, true
	}
	return 0, false
}

// SeasonalDeviation flags a transaction inconsistent with the client's
// recurring hour-of-day / day-of-week pattern, avoiding false positives
// the plain global-baseline detectors would raise (e.g. a high-volume
// hour that is simply this client's normal peak).
func SeasonalDeviation(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	minSamples := rule.ParamInt("minSeasonalSamples", 4)
	hour := txn.Timestamp.UTC().Hour()
	dow := int(txn.Timestamp.UTC().Weekday())

	type metric struct {
		name     string
		baseline float64
		observed float64
		ok       bool
	}
	metrics := make([]metric, 0, 4)

	if b, ok := seasonalBaseline(profile.HourOfDayTps[hour], minSamples, profile.EWMAHourlyTps, profile.CompletedHoursCount); ok {
		metrics = append(metrics, metric{"hourly TPS", b, float64(ctx.CurrentHourCount), true})
	}
	if b, ok := seasonalBaseline(profile.HourOfDayAmount[hour], minSamples, profile.EWMAHourlyAmount, profile.CompletedHoursCount); ok {
		metrics = append(metrics, metric{"hourly amount", b, paiseToRupees(ctx.CurrentHourAmount), true})
	}
	if b, ok := seasonalBaseline(profile.DayOfWeekAmount[dow], minSamples, profile.EWMADailyAmount, profile.CompletedDaysCount); ok {
		metrics = append(metrics, metric{"daily amount", b, paiseToRupees(ctx.CurrentDayAmount), true})
	}
	// Day-of-week TPS has no corresponding global daily-TPS EWMA in the
	// profile; the seasonal slot alone decides, with no global fallback.
	if int(profile.DayOfWeekTps[dow].Count) >= minSamples {
		metrics = append(metrics, metric{"daily TPS", profile.DayOfWeekTps[dow].EWMA, float64(ctx.CurrentDayCount), true})
	}

	if len(metrics) == 0 {
		return notTriggered(rule, "no seasonal baseline available yet")
	}

	anyTriggered := false
	maxDeviation := 0.0
	var fired string
	for _, m := range metrics {
		if !m.ok {
			continue
		}
		triggered, deviationPct, _ := baselineExcess(m.baseline, m.observed, rule.VariancePct)
		if triggered {
			anyTriggered = true
			if deviationPct > maxDeviation {
				maxDeviation = deviationPct
				fired = m.name
			}
		}
	}

	if !anyTriggered {
		return notTriggered(rule, "within seasonal baseline for hour-of-day and day-of-week")
	}
	score := clamp(maxDeviation, 0, 100)
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, DeviationPct: maxDeviation, PartialScore: score, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("%s exceeds its seasonal baseline by %.1f%%", fired, maxDeviation),
	}
}
