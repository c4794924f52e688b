// Package tuner implements the auto-tuner (component L): periodic
// TP/FP aggregation over review-queue feedback, producing bounded rule
// weight adjustments with an append-only audit trail.
package tuner

import (
	"context"
	"math"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/reviewqueue"
	"sentinel/internal/riskengine/rules"
	"sentinel/internal/riskengine/store"
	"sentinel/pkg/logger"
)

// Config holds the tuner's tunable parameters, all with the spec defaults.
type Config struct {
	MinSamplesForTuning int
	MaxAdjustmentPct    float64
	WeightFloor         float64
	WeightCeiling       float64
}

func DefaultConfig() Config {
	return Config{
		MinSamplesForTuning: 50,
		MaxAdjustmentPct:    0.10,
		WeightFloor:         0.5,
		WeightCeiling:       5.0,
	}
}

type Tuner struct {
	queue   *reviewqueue.Queue
	rules   *rules.Registry
	s       store.Store
	metrics riskengine.MetricsSink
	cfg     Config
	log     logger.Logger

	stop chan struct{}
	done chan struct{}
}

func New(queue *reviewqueue.Queue, reg *rules.Registry, s store.Store, metrics riskengine.MetricsSink, cfg Config, log logger.Logger) *Tuner {
	return &Tuner{queue: queue, rules: reg, s: s, metrics: metrics, cfg: cfg, log: log}
}

type tally struct {
	tp, fp int
}

// RunOnce performs one tuning cycle: aggregate TP/FP per rule, adjust
// weights for rules that crossed the minimum-sample bar, and persist both
// the updated rule and an audit record for every change that is not a
// rounding no-op.
func (t *Tuner) RunOnce(ctx context.Context) error {
	items, err := t.queue.FindAllWithFeedback(ctx)
	if err != nil {
		return riskengine.StoreError("tuner: load feedback", err)
	}

	tallies := make(map[string]*tally)
	for _, item := range items {
		for _, ruleID := range item.TriggeredRuleIDs {
			tl, ok := tallies[ruleID]
			if !ok {
				tl = &tally{}
				tallies[ruleID] = tl
			}
			switch item.FeedbackStatus {
			case riskengine.FeedbackTruePositive:
				tl.tp++
			case riskengine.FeedbackFalsePositive:
				tl.fp++
			}
		}
	}

	for ruleID, tl := range tallies {
		total := tl.tp + tl.fp
		if total < t.cfg.MinSamplesForTuning {
			continue
		}
		rule, ok := t.rules.GetRule(ruleID)
		if !ok {
			continue
		}

		tpRatio := float64(tl.tp) / float64(total)
		factor := (tpRatio - 0.5) * 2
		factor = clamp(factor, -t.cfg.MaxAdjustmentPct, t.cfg.MaxAdjustmentPct)

		oldWeight := rule.RiskWeight
		newWeight := clamp(oldWeight*(1+factor), t.cfg.WeightFloor, t.cfg.WeightCeiling)
		newWeight = roundTo3(newWeight)

		if math.Abs(newWeight-oldWeight) < 0.001 {
			continue
		}

		rule.RiskWeight = newWeight
		if err := t.rules.Save(ctx, rule); err != nil {
			if t.log != nil {
				t.log.Warn("tuner: failed to persist rule weight", map[string]interface{}{"ruleId": ruleID, "error": err})
			}
			continue
		}

		change := riskengine.RuleWeightChange{
			RuleID:     ruleID,
			OldWeight:  oldWeight,
			NewWeight:  newWeight,
			TPCount:    tl.tp,
			FPCount:    tl.fp,
			TPFPRatio:  tpRatio,
			AdjustedAt: time.Now().UTC(),
		}
		if err := t.s.Put(ctx, riskengine.SetRuleWeightHistory, auditKey(ruleID, change.AdjustedAt), change); err != nil && t.log != nil {
			t.log.Warn("tuner: failed to persist weight-change audit record", map[string]interface{}{"ruleId": ruleID, "error": err})
		}
		if t.metrics != nil {
			t.metrics.ObserveTunerAdjustment(ruleID, newWeight-oldWeight)
		}
	}
	return nil
}

func auditKey(ruleID string, at time.Time) string {
	return ruleID + ":" + at.Format(time.RFC3339Nano)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func roundTo3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// StartScheduler runs RunOnce every interval, after an initial delay, until
// Stop is called. Matches the rule-reloader/graph-rebuilder ticker pattern.
func (t *Tuner) StartScheduler(initialDelay, interval time.Duration) {
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		timer := time.NewTimer(initialDelay)
		defer timer.Stop()
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}
		t.runAndLog()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.runAndLog()
			}
		}
	}()
}

func (t *Tuner) runAndLog() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := t.RunOnce(ctx); err != nil && t.log != nil {
		t.log.Warn("tuner cycle failed", map[string]interface{}{"error": err})
	}
}

// Stop cancels the scheduler and waits for its current pass to finish.
func (t *Tuner) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
}
