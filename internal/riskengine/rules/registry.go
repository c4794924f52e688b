// Package rules implements the rule registry (component C): a cached,
// atomically-swapped snapshot of enabled anomaly rules, refreshed on a
// fixed cadence so the hot evaluation path never touches the store.
package rules

import (
	"context"
	"sync/atomic"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/pkg/logger"
)

// Registry caches AnomalyRule records and serves the active subset without
// locking readers against the periodic reload.
type Registry struct {
	repo *Repository
	log  logger.Logger

	snapshot atomic.Pointer[snapshot]

	stop chan struct{}
	done chan struct{}
}

type snapshot struct {
	all    []riskengine.AnomalyRule
	active []riskengine.AnomalyRule
}

func NewRegistry(repo *Repository, log logger.Logger) *Registry {
	r := &Registry{repo: repo, log: log}
	r.snapshot.Store(&snapshot{})
	return r
}

// Reload pulls the full rule set from the repository and atomically
// publishes a new snapshot.
func (r *Registry) Reload(ctx context.Context) error {
	all, err := r.repo.LoadAll(ctx)
	if err != nil {
		return err
	}
	active := make([]riskengine.AnomalyRule, 0, len(all))
	for _, rule := range all {
		if rule.Enabled {
			active = append(active, rule)
		}
	}
	r.snapshot.Store(&snapshot{all: all, active: active})
	return nil
}

// GetActiveRules returns the current enabled-rule snapshot. Safe for
// concurrent use; never blocks on the reloader.
func (r *Registry) GetActiveRules() []riskengine.AnomalyRule {
	return r.snapshot.Load().active
}

// GetRule returns the named rule from the full (enabled-or-not) snapshot.
func (r *Registry) GetRule(ruleID string) (riskengine.AnomalyRule, bool) {
	for _, rule := range r.snapshot.Load().all {
		if rule.RuleID == ruleID {
			return rule, true
		}
	}
	return riskengine.AnomalyRule{}, false
}

// Save persists rule and immediately refreshes the snapshot.
func (r *Registry) Save(ctx context.Context, rule riskengine.AnomalyRule) error {
	if err := r.repo.Save(ctx, rule); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// Delete removes a rule and immediately refreshes the snapshot.
func (r *Registry) Delete(ctx context.Context, ruleID string) error {
	if err := r.repo.Delete(ctx, ruleID); err != nil {
		return err
	}
	return r.Reload(ctx)
}

// StartReloader runs Reload every interval until Stop is called. Skips a
// tick (logs, continues) rather than crashing the scheduler on error.
func (r *Registry) StartReloader(interval time.Duration) {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				if err := r.Reload(ctx); err != nil && r.log != nil {
					r.log.Warn("rule registry reload failed", map[string]interface{}{"error": err})
				}
				cancel()
			}
		}
	}()
}

// Stop cancels the reloader and waits for its current tick to finish.
func (r *Registry) Stop() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
}
