// Package metrics implements the counters/histograms sink (component O)
// over prometheus client_golang, the metrics library the rest of this
// service's HTTP surface already exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"sentinel/internal/riskengine"
)

// Sink is the Prometheus-backed riskengine.MetricsSink implementation.
type Sink struct {
	evaluations       *prometheus.CounterVec
	evaluationLatency *prometheus.HistogramVec
	detectorTriggers  *prometheus.CounterVec
	compositeScore    prometheus.Histogram
	queueDepth        *prometheus.GaugeVec
	tunerAdjustments  *prometheus.HistogramVec
	silenceEvents     *prometheus.CounterVec
}

// New registers every metric against reg and returns the sink. Pass
// prometheus.DefaultRegisterer to export alongside the rest of the service.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskengine",
			Name:      "evaluations_total",
			Help:      "Transaction evaluations by final action.",
		}, []string{"action"}),
		evaluationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "riskengine",
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end evaluation latency by final action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		detectorTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskengine",
			Name:      "detector_triggers_total",
			Help:      "Detector trigger count by rule type.",
		}, []string{"rule_type"}),
		compositeScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskengine",
			Name:      "composite_score",
			Help:      "Distribution of composite risk scores (0-100).",
			Buckets:   []float64{5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "riskengine",
			Name:      "review_queue_depth",
			Help:      "Review queue depth by feedback status.",
		}, []string{"status"}),
		tunerAdjustments: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "riskengine",
			Name:      "tuner_weight_delta",
			Help:      "Per-rule weight adjustment applied by the auto-tuner.",
			Buckets:   []float64{-0.5, -0.2, -0.1, -0.05, 0, 0.05, 0.1, 0.2, 0.5},
		}, []string{"rule_id"}),
		silenceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskengine",
			Name:      "silence_events_total",
			Help:      "Silence detector entry/exit events.",
		}, []string{"transition"}),
	}

	reg.MustRegister(
		s.evaluations,
		s.evaluationLatency,
		s.detectorTriggers,
		s.compositeScore,
		s.queueDepth,
		s.tunerAdjustments,
		s.silenceEvents,
	)
	return s
}

func (s *Sink) ObserveEvaluation(action riskengine.Action, durationSeconds float64) {
	s.evaluations.WithLabelValues(string(action)).Inc()
	s.evaluationLatency.WithLabelValues(string(action)).Observe(durationSeconds)
}

func (s *Sink) ObserveDetectorTrigger(ruleType riskengine.RuleType) {
	s.detectorTriggers.WithLabelValues(string(ruleType)).Inc()
}

func (s *Sink) ObserveCompositeScore(score float64) {
	s.compositeScore.Observe(score)
}

func (s *Sink) SetQueueDepth(status riskengine.FeedbackStatus, depth int) {
	s.queueDepth.WithLabelValues(string(status)).Set(float64(depth))
}

func (s *Sink) ObserveTunerAdjustment(ruleID string, delta float64) {
	s.tunerAdjustments.WithLabelValues(ruleID).Observe(delta)
}

func (s *Sink) ObserveSilenceEvent(clientID string, resolved bool) {
	transition := "entered"
	if resolved {
		transition = "resolved"
	}
	s.silenceEvents.WithLabelValues(transition).Inc()
}
