package detectors

import (
	"fmt"
	"math"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
	"sentinel/internal/riskengine/iforest"
)

// BuildFeatures extracts the 8-dimension standardized feature vector for
// txn against profile/ctx, in the fixed order the forest was trained on.
// Exported so the tuner/training job can build the same vectors offline.
func BuildFeatures(txn riskengine.Transaction, profile *riskengine.ClientProfile, ctx evalcontext.Context) [iforest.FeatureCount]float64 {
	var f [iforest.FeatureCount]float64

	amount := txn.AmountRupees()
	f[0] = zscoreOf(amount, profile.Amount.EWMA, profile.Amount.StdDev())

	if ts, ok := profile.AmountByType[txn.TxnType]; ok {
		f[1] = zscoreOf(amount, ts.EWMA, ts.StdDev())
	}

	f[2] = logRatioOf(float64(ctx.CurrentHourCount), profile.EWMAHourlyTps)
	f[3] = logRatioOf(paiseToRupees(ctx.CurrentHourAmount), profile.EWMAHourlyAmount)
	f[4] = profile.TypeFrequency(txn.TxnType)

	hour := txn.Timestamp.UTC().Hour()
	sin, cos := iforest.HourOfDayAngle(hour)
	f[5] = sin
	f[6] = cos
	f[7] = iforest.DayOfWeekNormalized(int(txn.Timestamp.UTC().Weekday()))

	return f
}

func zscoreOf(x, mean, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}
	return (x - mean) / stddev
}

func logRatioOf(observed, baseline float64) float64 {
	return math.Log1p(observed) - math.Log1p(baseline)
}

// IsolationForest scores the transaction's feature vector against the
// client's trained model and triggers above the configured threshold.
func IsolationForest(txn riskengine.Transaction, profile *riskengine.ClientProfile, rule riskengine.AnomalyRule, ctx evalcontext.Context) riskengine.RuleResult {
	if ctx.Forest == nil {
		return notTriggered(rule, "no trained isolation forest model for this client")
	}
	features := BuildFeatures(txn, profile, ctx)
	score := ctx.Forest.Score(features)

	threshold := rule.ParamFloat("threshold", 60) / 100
	if score < threshold {
		return notTriggered(rule, fmt.Sprintf("isolation score %.4f below threshold %.4f", score, threshold))
	}

	denom := 1 - threshold
	if denom < epsilon {
		denom = epsilon
	}
	partial := clamp(100*(score-threshold)/denom, 0, 100)
	return riskengine.RuleResult{
		RuleID: rule.RuleID, RuleName: rule.Name, RuleType: rule.RuleType,
		Triggered: true, PartialScore: partial, RiskWeight: rule.RiskWeight,
		Reason: fmt.Sprintf("isolation forest anomaly score %.4f exceeds threshold %.4f", score, threshold),
	}
}
