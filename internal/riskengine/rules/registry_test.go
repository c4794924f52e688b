package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store/storetest"
	pkgerrors "sentinel/pkg/errors"
	"sentinel/pkg/logger"
)

func newRegistry() (*Registry, *Repository) {
	repo := NewRepository(storetest.New())
	return NewRegistry(repo, logger.NewNop()), repo
}

func TestReloadPublishesActiveSubsetOnly(t *testing.T) {
	reg, repo := newRegistry()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true}))
	require.NoError(t, repo.Save(ctx, riskengine.AnomalyRule{RuleID: "r2", Enabled: false}))

	require.NoError(t, reg.Reload(ctx))
	active := reg.GetActiveRules()
	require.Len(t, active, 1)
	assert.Equal(t, "r1", active[0].RuleID)

	_, ok := reg.GetRule("r2")
	assert.True(t, ok, "GetRule sees disabled rules too")
}

func TestGetActiveRulesEmptyBeforeFirstReload(t *testing.T) {
	reg, _ := newRegistry()
	assert.Empty(t, reg.GetActiveRules())
	_, ok := reg.GetRule("anything")
	assert.False(t, ok)
}

func TestSaveRefreshesSnapshotImmediately(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true, RiskWeight: 1}))

	active := reg.GetActiveRules()
	require.Len(t, active, 1)
	assert.Equal(t, 1.0, active[0].RiskWeight)
}

func TestDeleteRefreshesSnapshot(t *testing.T) {
	reg, _ := newRegistry()
	ctx := context.Background()
	require.NoError(t, reg.Save(ctx, riskengine.AnomalyRule{RuleID: "r1", Enabled: true}))
	require.NoError(t, reg.Delete(ctx, "r1"))
	assert.Empty(t, reg.GetActiveRules())
	_, ok := reg.GetRule("r1")
	assert.False(t, ok)
}

func TestDeleteMissingRuleReturnsNotFound(t *testing.T) {
	_, repo := newRegistry()
	err := repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, pkgerrors.ErrRuleNotFound))
}

func TestLoadAllSkipsCorruptRecordsWithoutFailing(t *testing.T) {
	s := storetest.New()
	repo := NewRepository(s)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, riskengine.AnomalyRule{RuleID: "good", Enabled: true}))
	require.NoError(t, s.Put(ctx, riskengine.SetAnomalyRules, "corrupt", "not-a-rule-object-but-valid-json-string"))

	rules, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	// "corrupt" holds a JSON string, which fails to unmarshal into an
	// AnomalyRule, so the entry is skipped, leaving only the one good record.
	assert.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].RuleID)
}
