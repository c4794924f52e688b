package rules

import (
	"context"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
	pkgerrors "sentinel/pkg/errors"
)

// Repository is the Store-backed (component A) anomaly_rules collection.
// Rules go through the same narrow key/value interface as every other
// engine record; there is no separate SQL schema for them.
type Repository struct {
	s store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{s: s}
}

// LoadAll returns every rule in the set, enabled or not; filtering to the
// active snapshot is the registry's job.
func (r *Repository) LoadAll(ctx context.Context) ([]riskengine.AnomalyRule, error) {
	var out []riskengine.AnomalyRule
	err := r.s.ScanAll(ctx, riskengine.SetAnomalyRules, func(key string, raw []byte) error {
		var rule riskengine.AnomalyRule
		if err := unmarshalRule(raw, &rule); err != nil {
			return nil // corrupt record: skip rather than fail the whole reload
		}
		out = append(out, rule)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save upserts rule by rule_id.
func (r *Repository) Save(ctx context.Context, rule riskengine.AnomalyRule) error {
	return r.s.Put(ctx, riskengine.SetAnomalyRules, rule.RuleID, rule)
}

// Delete removes a rule by id.
func (r *Repository) Delete(ctx context.Context, ruleID string) error {
	var existing riskengine.AnomalyRule
	found, err := r.s.Get(ctx, riskengine.SetAnomalyRules, ruleID, &existing)
	if err != nil {
		return err
	}
	if !found {
		return pkgerrors.ErrRuleNotFound
	}
	return r.s.Delete(ctx, riskengine.SetAnomalyRules, ruleID)
}
