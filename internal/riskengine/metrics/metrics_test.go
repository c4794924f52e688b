package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"sentinel/internal/riskengine"
)

func TestObserveEvaluationIncrementsCounterByAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.ObserveEvaluation(riskengine.ActionBlock, 0.01)
	s.ObserveEvaluation(riskengine.ActionBlock, 0.02)
	s.ObserveEvaluation(riskengine.ActionPass, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.evaluations.WithLabelValues(string(riskengine.ActionBlock))))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.evaluations.WithLabelValues(string(riskengine.ActionPass))))
}

func TestObserveDetectorTriggerLabelsByRuleType(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.ObserveDetectorTrigger(riskengine.RuleTPSSpike)
	s.ObserveDetectorTrigger(riskengine.RuleTPSSpike)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.detectorTriggers.WithLabelValues(string(riskengine.RuleTPSSpike))))
}

func TestSetQueueDepthReflectsLatestValuePerStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.SetQueueDepth(riskengine.FeedbackPending, 5)
	s.SetQueueDepth(riskengine.FeedbackPending, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(s.queueDepth.WithLabelValues(string(riskengine.FeedbackPending))))
}

func TestObserveSilenceEventLabelsEnteredVsResolved(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)

	s.ObserveSilenceEvent("c1", false)
	s.ObserveSilenceEvent("c1", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.silenceEvents.WithLabelValues("entered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.silenceEvents.WithLabelValues("resolved")))
}

func TestNewRegistersAllMetricsWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { New(reg) })
}
