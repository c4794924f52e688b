package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

func TestTPSSpikeNotTriggeredBelowHistoryGuard(t *testing.T) {
	p := riskengine.NewClientProfile("c1")
	p.CompletedHoursCount = 1
	result := TPSSpike(riskengine.Transaction{}, p, riskengine.AnomalyRule{RiskWeight: 2}, evalcontext.Context{CurrentHourCount: 100})
	assert.False(t, result.Triggered)
}

func TestTPSSpikeTriggersAboveVarianceThreshold(t *testing.T) {
	p := riskengine.NewClientProfile("c1")
	p.CompletedHoursCount = 10
	p.EWMAHourlyTps = 10
	rule := riskengine.AnomalyRule{RuleID: "r1", VariancePct: 20, RiskWeight: 1}

	below := TPSSpike(riskengine.Transaction{}, p, rule, evalcontext.Context{CurrentHourCount: 11})
	assert.False(t, below.Triggered, "11 is within 10*(1.2)=12 threshold")

	above := TPSSpike(riskengine.Transaction{}, p, rule, evalcontext.Context{CurrentHourCount: 20})
	assert.True(t, above.Triggered)
	assert.GreaterOrEqual(t, above.PartialScore, 50.0)
	assert.LessOrEqual(t, above.PartialScore, 100.0)
}

func TestTPSSpikeScoreMonotonicInDeviation(t *testing.T) {
	p := riskengine.NewClientProfile("c1")
	p.CompletedHoursCount = 10
	p.EWMAHourlyTps = 10
	// VariancePct 100 => threshold 20, allowedRange 10, keeping both samples
	// below the 100-point cap so the monotonicity is actually observable.
	rule := riskengine.AnomalyRule{RuleID: "r1", VariancePct: 100, RiskWeight: 1}

	small := TPSSpike(riskengine.Transaction{}, p, rule, evalcontext.Context{CurrentHourCount: 21})
	large := TPSSpike(riskengine.Transaction{}, p, rule, evalcontext.Context{CurrentHourCount: 25})
	assert.True(t, small.Triggered)
	assert.True(t, large.Triggered)
	assert.Less(t, small.PartialScore, large.PartialScore)
}
