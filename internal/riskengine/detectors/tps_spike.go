package detectors

import (
	"fmt"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

// TPSSpike flags an hour whose transaction count exceeds the client's
// usual hourly throughput.
func TPSSpike(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if profile.CompletedHoursCount < 2 {
		return notTriggered(rule, "fewer than 2 completed hours of history")
	}
	observed := float64(ctx.CurrentHourCount)
	triggered, deviationPct, score := baselineExcess(profile.EWMAHourlyTps, observed, rule.VariancePct)
	reason := fmt.Sprintf("hourly tx count %.0f vs baseline %.2f", observed, profile.EWMAHourlyTps)
	if !triggered {
		reason = "hourly transaction count within baseline variance"
	}
	return baselineResult(rule, triggered, deviationPct, score, reason)
}
