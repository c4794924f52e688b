package tuner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/reviewqueue"
	"sentinel/internal/riskengine/rules"
	"sentinel/internal/riskengine/store/storetest"
	"sentinel/pkg/logger"
)

func setup(t *testing.T, cfg Config) (*Tuner, *reviewqueue.Queue, *rules.Registry, *storetest.Store) {
	t.Helper()
	s := storetest.New()
	repo := rules.NewRepository(s)
	reg := rules.NewRegistry(repo, logger.NewNop())
	queue := reviewqueue.New(s, logger.NewNop())
	tn := New(queue, reg, s, nil, cfg, logger.NewNop())
	return tn, queue, reg, s
}

func feedbackItem(txnID, ruleID string, status riskengine.FeedbackStatus) riskengine.ReviewQueueItem {
	return riskengine.ReviewQueueItem{
		TxnID:            txnID,
		TriggeredRuleIDs: []string{ruleID},
		FeedbackStatus:   status,
	}
}

func TestRunOnceSkipsRulesBelowMinSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesForTuning = 50
	tn, queue, reg, _ := setup(t, cfg)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true, RiskWeight: 2}))
	require.NoError(t, queue.Save(ctx, feedbackItem("t1", "r1", riskengine.FeedbackTruePositive)))

	require.NoError(t, tn.RunOnce(ctx))
	rule, _ := reg.GetRule("r1")
	assert.Equal(t, 2.0, rule.RiskWeight, "fewer than MinSamplesForTuning samples leaves the weight untouched")
}

func TestRunOnceIncreasesWeightOnHighTruePositiveRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesForTuning = 4
	tn, queue, reg, _ := setup(t, cfg)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true, RiskWeight: 2}))
	for i := 0; i < 4; i++ {
		require.NoError(t, queue.Save(ctx, feedbackItem(itoa(i), "r1", riskengine.FeedbackTruePositive)))
	}

	require.NoError(t, tn.RunOnce(ctx))
	rule, _ := reg.GetRule("r1")
	assert.Greater(t, rule.RiskWeight, 2.0, "all-TP feedback should raise the weight")
	// factor capped at MaxAdjustmentPct (0.10 default): newWeight <= old*1.10
	assert.LessOrEqual(t, rule.RiskWeight, 2.0*(1+cfg.MaxAdjustmentPct)+0.001)
}

func TestRunOnceDecreasesWeightOnHighFalsePositiveRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesForTuning = 4
	tn, queue, reg, _ := setup(t, cfg)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true, RiskWeight: 2}))
	for i := 0; i < 4; i++ {
		require.NoError(t, queue.Save(ctx, feedbackItem(itoa(i), "r1", riskengine.FeedbackFalsePositive)))
	}

	require.NoError(t, tn.RunOnce(ctx))
	rule, _ := reg.GetRule("r1")
	assert.Less(t, rule.RiskWeight, 2.0)
}

func TestRunOnceRespectsWeightFloorAndCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesForTuning = 4
	cfg.WeightFloor = 1.9
	cfg.WeightCeiling = 2.1
	cfg.MaxAdjustmentPct = 1.0 // allow a large swing so the floor and ceiling are what actually bind
	tn, queue, reg, _ := setup(t, cfg)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true, RiskWeight: 2}))
	for i := 0; i < 4; i++ {
		require.NoError(t, queue.Save(ctx, feedbackItem(itoa(i), "r1", riskengine.FeedbackFalsePositive)))
	}
	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r2", Enabled: true, RiskWeight: 2}))
	for i := 4; i < 8; i++ {
		require.NoError(t, queue.Save(ctx, feedbackItem(itoa(i), "r2", riskengine.FeedbackTruePositive)))
	}

	require.NoError(t, tn.RunOnce(ctx))
	rule, _ := reg.GetRule("r1")
	assert.GreaterOrEqual(t, rule.RiskWeight, cfg.WeightFloor)
	rule2, _ := reg.GetRule("r2")
	assert.LessOrEqual(t, rule2.RiskWeight, cfg.WeightCeiling)
}

func TestRunOnceWritesAuditRecordOnlyWhenWeightChanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesForTuning = 4
	tn, queue, reg, s := setup(t, cfg)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true, RiskWeight: 2}))
	// Balanced TP/FP -> tpRatio 0.5 -> factor 0 -> no change, no audit record.
	for i := 0; i < 2; i++ {
		require.NoError(t, queue.Save(ctx, feedbackItem(itoa(i), "r1", riskengine.FeedbackTruePositive)))
	}
	for i := 2; i < 4; i++ {
		require.NoError(t, queue.Save(ctx, feedbackItem(itoa(i), "r1", riskengine.FeedbackFalsePositive)))
	}

	require.NoError(t, tn.RunOnce(ctx))
	assert.Equal(t, 0, s.Count(riskengine.SetRuleWeightHistory))
}

func itoa(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return string(digits[i/10]) + string(digits[i%10])
}
