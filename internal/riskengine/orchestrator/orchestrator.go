// Package orchestrator implements component J: it sequences every other
// component into the single per-transaction evaluation pipeline described
// in the system overview — B -> D -> E -> F -> I -> D -> B -> K -> N.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/detectors"
	"sentinel/internal/riskengine/evalcontext"
	"sentinel/internal/riskengine/profile"
	"sentinel/internal/riskengine/reviewqueue"
	"sentinel/internal/riskengine/rules"
	"sentinel/internal/riskengine/scoring"
	"sentinel/internal/riskengine/store"
	"sentinel/pkg/logger"
)

// Config holds the orchestrator's own tunables; detector-specific params
// live on each AnomalyRule instead.
type Config struct {
	MinProfileTxns     int64
	Thresholds         scoring.Thresholds
	AutoAcceptTimeout  time.Duration
	EvaluationDeadline time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinProfileTxns:     5,
		Thresholds:         scoring.Thresholds{Alert: 30, Block: 70},
		AutoAcceptTimeout:  24 * time.Hour,
		EvaluationDeadline: 3 * time.Second,
	}
}

// Orchestrator wires the profile service, rule registry, context builder,
// detector registry, scoring, review queue and notification sink into one
// synchronous evaluation call.
type Orchestrator struct {
	s        store.Store
	profiles *profile.Service
	rules    *rules.Registry
	ctxBld   *evalcontext.Builder
	queue    *reviewqueue.Queue
	notifier riskengine.NotificationSink
	metrics  riskengine.MetricsSink
	cfg      Config
	log      logger.Logger
}

func New(
	s store.Store,
	profiles *profile.Service,
	ruleRegistry *rules.Registry,
	ctxBld *evalcontext.Builder,
	queue *reviewqueue.Queue,
	notifier riskengine.NotificationSink,
	metrics riskengine.MetricsSink,
	cfg Config,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		s:        s,
		profiles: profiles,
		rules:    ruleRegistry,
		ctxBld:   ctxBld,
		queue:    queue,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
}

// Evaluate validates and scores one transaction end to end. On success it
// has already persisted the profile, the risk result, and (for ALERT/BLOCK)
// the review-queue item; BLOCK additionally fires a fire-and-forget
// notification. A non-nil error means no risk result was persisted and
// nothing was enqueued or notified; the raw transaction, and for failures
// after the profile update the updated profile, may already be stored.
func (o *Orchestrator) Evaluate(ctx context.Context, txn riskengine.Transaction) (riskengine.EvaluationResult, error) {
	if err := validate(txn); err != nil {
		return riskengine.EvaluationResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.EvaluationDeadline)
	defer cancel()

	start := time.Now()

	if err := o.s.Put(ctx, riskengine.SetTransactions, txn.TxnID, txn); err != nil {
		return riskengine.EvaluationResult{}, wrapTimeout(ctx, riskengine.StoreError("persist transaction", err))
	}

	p, err := o.profiles.GetOrCreate(ctx, txn.ClientID)
	if err != nil {
		return riskengine.EvaluationResult{}, wrapTimeout(ctx, riskengine.StoreError("load profile", err))
	}

	var results []riskengine.RuleResult
	if p.TotalTxnCount >= o.cfg.MinProfileTxns {
		evalCtx, err := o.ctxBld.Build(ctx, txn)
		if err != nil {
			return riskengine.EvaluationResult{}, wrapTimeout(ctx, riskengine.StoreError("build evaluation context", err))
		}
		results = o.runDetectors(txn, p, evalCtx)
	}

	compositeScore := scoring.Composite(results)
	action := scoring.Action(compositeScore, o.cfg.Thresholds)
	riskLevel := scoring.RiskLevel(compositeScore)

	// Update and persist the profile AFTER detectors have consumed the
	// pre-update snapshot; this is the second D step in the control flow.
	if err := o.profiles.Update(ctx, p, txn); err != nil {
		return riskengine.EvaluationResult{}, wrapTimeout(ctx, riskengine.StoreError("update profile", err))
	}

	result := riskengine.EvaluationResult{
		TxnID:          txn.TxnID,
		ClientID:       txn.ClientID,
		CompositeScore: compositeScore,
		RiskLevel:      riskLevel,
		Action:         action,
		RuleResults:    results,
		EvaluatedAt:    time.Now().UTC(),
	}
	if err := o.s.Put(ctx, riskengine.SetRiskResults, txn.TxnID, result); err != nil {
		return riskengine.EvaluationResult{}, wrapTimeout(ctx, riskengine.StoreError("persist risk result", err))
	}

	if action == riskengine.ActionAlert || action == riskengine.ActionBlock {
		if err := o.enqueueReview(ctx, txn, result); err != nil && o.log != nil {
			o.log.Warn("review queue enqueue failed", map[string]interface{}{"txnId": txn.TxnID, "error": err})
		}
	}
	if action == riskengine.ActionBlock && o.notifier != nil {
		go o.notifier.NotifyBlocked(context.Background(), txn, result)
	}

	if o.metrics != nil {
		o.metrics.ObserveEvaluation(action, time.Since(start).Seconds())
		o.metrics.ObserveCompositeScore(compositeScore)
		for _, r := range results {
			if r.Triggered {
				o.metrics.ObserveDetectorTrigger(r.RuleType)
			}
		}
	}

	return result, nil
}

func (o *Orchestrator) enqueueReview(ctx context.Context, txn riskengine.Transaction, result riskengine.EvaluationResult) error {
	var triggeredIDs []string
	for _, r := range result.RuleResults {
		if r.Triggered {
			triggeredIDs = append(triggeredIDs, r.RuleID)
		}
	}
	item := riskengine.ReviewQueueItem{
		TxnID:              txn.TxnID,
		ClientID:           txn.ClientID,
		Action:             result.Action,
		CompositeScore:      result.CompositeScore,
		RiskLevel:          result.RiskLevel,
		TriggeredRuleIDs:   triggeredIDs,
		EnqueuedAt:         time.Now().UTC(),
		FeedbackStatus:     riskengine.FeedbackPending,
		AutoAcceptDeadline: time.Now().UTC().Add(o.cfg.AutoAcceptTimeout),
	}
	return o.queue.Save(ctx, item)
}

// runDetectors executes every enabled, implemented detector. A panicking
// detector is recovered locally and recorded as not-triggered with reason
// "evaluator error"; it never aborts the pipeline (§4.4 error semantics).
func (o *Orchestrator) runDetectors(txn riskengine.Transaction, p *riskengine.ClientProfile, evalCtx evalcontext.Context) []riskengine.RuleResult {
	active := o.rules.GetActiveRules()
	results := make([]riskengine.RuleResult, 0, len(active))
	for _, rule := range active {
		detector, ok := detectors.Lookup(rule.RuleType)
		if !ok {
			continue
		}
		results = append(results, o.runOneDetector(detector, txn, p, rule, evalCtx))
	}
	return results
}

func (o *Orchestrator) runOneDetector(detector detectors.Detector, txn riskengine.Transaction, p *riskengine.ClientProfile, rule riskengine.AnomalyRule, evalCtx evalcontext.Context) (result riskengine.RuleResult) {
	defer func() {
		if rec := recover(); rec != nil {
			if o.log != nil {
				o.log.Warn("detector panicked", map[string]interface{}{"ruleId": rule.RuleID, "ruleType": rule.RuleType, "panic": rec})
			}
			result = riskengine.RuleResult{
				RuleID:     rule.RuleID,
				RuleName:   rule.Name,
				RuleType:   rule.RuleType,
				Triggered:  false,
				RiskWeight: rule.RiskWeight,
				Reason:     "evaluator error",
			}
		}
	}()
	return detector(txn, p, rule, evalCtx)
}

func validate(txn riskengine.Transaction) error {
	if txn.TxnID == "" || txn.ClientID == "" || txn.TxnType == "" {
		return riskengine.ValidationError("missing required field (txnId, clientId, txnType)")
	}
	if txn.AmountPaise < 0 {
		return riskengine.ValidationError("amount must be non-negative")
	}
	return nil
}

func wrapTimeout(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return riskengine.TimeoutError(fmt.Sprintf("evaluation timed out: %v", err))
	}
	return err
}
