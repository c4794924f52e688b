// Package riskenginetest provides simple in-memory NotificationSink and
// MetricsSink doubles shared across the riskengine test suites, in place
// of a mocking framework for these two fire-and-forget ports.
package riskenginetest

import (
	"context"
	"sync"

	"sentinel/internal/riskengine"
)

// Sink records every call made through it. Safe for concurrent use since
// both ports may be invoked from a background goroutine under test.
type Sink struct {
	mu sync.Mutex

	Blocked       []riskengine.EvaluationResult
	SilentClients []string

	Evaluations       []riskengine.Action
	DetectorTriggers  []riskengine.RuleType
	CompositeScores   []float64
	TunerAdjustments  map[string]float64
	SilenceEvents     map[string]bool
}

func NewSink() *Sink {
	return &Sink{
		TunerAdjustments: make(map[string]float64),
		SilenceEvents:    make(map[string]bool),
	}
}

func (s *Sink) NotifyBlocked(ctx context.Context, txn riskengine.Transaction, result riskengine.EvaluationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Blocked = append(s.Blocked, result)
}

func (s *Sink) NotifySilent(ctx context.Context, clientID string, silenceMinutes, expectedGapMinutes, hourlyTps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SilentClients = append(s.SilentClients, clientID)
}

func (s *Sink) ObserveEvaluation(action riskengine.Action, durationSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Evaluations = append(s.Evaluations, action)
}

func (s *Sink) ObserveDetectorTrigger(ruleType riskengine.RuleType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DetectorTriggers = append(s.DetectorTriggers, ruleType)
}

func (s *Sink) ObserveCompositeScore(score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompositeScores = append(s.CompositeScores, score)
}

func (s *Sink) SetQueueDepth(status riskengine.FeedbackStatus, depth int) {}

func (s *Sink) ObserveTunerAdjustment(ruleID string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TunerAdjustments[ruleID] = delta
}

func (s *Sink) ObserveSilenceEvent(clientID string, resolved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SilenceEvents[clientID] = resolved
}

// SilentCount returns how many times NotifySilent fired for clientID.
func (s *Sink) SilentCount(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.SilentClients {
		if id == clientID {
			n++
		}
	}
	return n
}
