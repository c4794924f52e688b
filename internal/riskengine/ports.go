package riskengine

import "context"

// NotificationSink is the async, best-effort alert channel (component N).
// Implementations MUST NOT block the caller; both methods are expected to
// hand off to a bounded queue and return immediately.
type NotificationSink interface {
	NotifyBlocked(ctx context.Context, txn Transaction, result EvaluationResult)
	NotifySilent(ctx context.Context, clientID string, silenceMinutes, expectedGapMinutes, hourlyTps float64)
}

// MetricsSink is the counters/histograms port (component O).
type MetricsSink interface {
	ObserveEvaluation(action Action, durationSeconds float64)
	ObserveDetectorTrigger(ruleType RuleType)
	ObserveCompositeScore(score float64)
	SetQueueDepth(status FeedbackStatus, depth int)
	ObserveTunerAdjustment(ruleID string, delta float64)
	ObserveSilenceEvent(clientID string, resolved bool)
}
