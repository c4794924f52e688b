package reviewqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store/storetest"
	"sentinel/pkg/logger"
)

func newQueue() *Queue {
	return New(storetest.New(), logger.NewNop())
}

func sampleItem(txnID string) riskengine.ReviewQueueItem {
	return riskengine.ReviewQueueItem{
		TxnID:              txnID,
		ClientID:           "c1",
		Action:             riskengine.ActionAlert,
		CompositeScore:     45,
		RiskLevel:          riskengine.RiskMedium,
		TriggeredRuleIDs:   []string{"r1"},
		EnqueuedAt:         time.Now().UTC(),
		FeedbackStatus:     riskengine.FeedbackPending,
		AutoAcceptDeadline: time.Now().UTC().Add(24 * time.Hour),
	}
}

func TestSaveAndFindByTxnID(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	item := sampleItem("t1")
	require.NoError(t, q.Save(ctx, item))

	found, ok, err := q.FindByTxnID(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, riskengine.FeedbackPending, found.FeedbackStatus)

	_, ok, err = q.FindByTxnID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateFeedbackOnlyTransitionsFromPending(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	require.NoError(t, q.Save(ctx, sampleItem("t1")))

	changed, err := q.UpdateFeedback(ctx, "t1", riskengine.FeedbackTruePositive, "reviewer-1")
	require.NoError(t, err)
	assert.True(t, changed)

	item, _, _ := q.FindByTxnID(ctx, "t1")
	assert.Equal(t, riskengine.FeedbackTruePositive, item.FeedbackStatus)
	assert.Equal(t, "reviewer-1", item.FeedbackBy)
	require.NotNil(t, item.FeedbackAt)

	// Second write loses the race: already non-PENDING, so no-op.
	changed, err = q.UpdateFeedback(ctx, "t1", riskengine.FeedbackFalsePositive, "reviewer-2")
	require.NoError(t, err)
	assert.False(t, changed)

	item, _, _ = q.FindByTxnID(ctx, "t1")
	assert.Equal(t, riskengine.FeedbackTruePositive, item.FeedbackStatus, "first write wins")
}

func TestUpdateFeedbackMissingItemIsNoop(t *testing.T) {
	q := newQueue()
	changed, err := q.UpdateFeedback(context.Background(), "absent", riskengine.FeedbackTruePositive, "r")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestFindAllWithFeedbackExcludesPendingAndAutoAccepted(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	pending := sampleItem("pending")
	tp := sampleItem("tp")
	tp.FeedbackStatus = riskengine.FeedbackTruePositive
	fp := sampleItem("fp")
	fp.FeedbackStatus = riskengine.FeedbackFalsePositive
	auto := sampleItem("auto")
	auto.FeedbackStatus = riskengine.FeedbackAutoAccepted

	for _, item := range []riskengine.ReviewQueueItem{pending, tp, fp, auto} {
		require.NoError(t, q.Save(ctx, item))
	}

	items, err := q.FindAllWithFeedback(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	ids := map[string]bool{}
	for _, it := range items {
		ids[it.TxnID] = true
	}
	assert.True(t, ids["tp"])
	assert.True(t, ids["fp"])
}

func TestCountByStatus(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	tp := sampleItem("tp")
	tp.FeedbackStatus = riskengine.FeedbackTruePositive
	require.NoError(t, q.Save(ctx, sampleItem("pending")))
	require.NoError(t, q.Save(ctx, tp))

	counts, err := q.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 1, counts.TruePositive)
}

func TestQueryFiltersAndOrdersByEnqueuedAtDescending(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	older := sampleItem("older")
	older.EnqueuedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleItem("newer")
	newer.EnqueuedAt = time.Now().UTC()
	otherClient := sampleItem("other-client")
	otherClient.ClientID = "c2"

	for _, item := range []riskengine.ReviewQueueItem{older, newer, otherClient} {
		require.NoError(t, q.Save(ctx, item))
	}

	results, err := q.Query(ctx, Filter{ClientID: "c1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "newer", results[0].TxnID)
	assert.Equal(t, "older", results[1].TxnID)
}

func TestQueryRespectsLimit(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		item := sampleItem(string(rune('a' + i)))
		require.NoError(t, q.Save(ctx, item))
	}
	results, err := q.Query(ctx, Filter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSweepAutoAcceptTransitionsOnlyExpiredPending(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	expired := sampleItem("expired")
	expired.AutoAcceptDeadline = time.Now().UTC().Add(-time.Minute)
	notExpired := sampleItem("fresh")
	notExpired.AutoAcceptDeadline = time.Now().UTC().Add(time.Hour)
	alreadyReviewed := sampleItem("reviewed")
	alreadyReviewed.FeedbackStatus = riskengine.FeedbackTruePositive
	alreadyReviewed.AutoAcceptDeadline = time.Now().UTC().Add(-time.Minute)

	for _, item := range []riskengine.ReviewQueueItem{expired, notExpired, alreadyReviewed} {
		require.NoError(t, q.Save(ctx, item))
	}

	n, err := q.SweepAutoAccept(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expiredItem, _, _ := q.FindByTxnID(ctx, "expired")
	assert.Equal(t, riskengine.FeedbackAutoAccepted, expiredItem.FeedbackStatus)

	freshItem, _, _ := q.FindByTxnID(ctx, "fresh")
	assert.Equal(t, riskengine.FeedbackPending, freshItem.FeedbackStatus)

	reviewedItem, _, _ := q.FindByTxnID(ctx, "reviewed")
	assert.Equal(t, riskengine.FeedbackTruePositive, reviewedItem.FeedbackStatus, "already-reviewed items are untouched by the sweep")
}

func TestSweepAutoAcceptIsIdempotent(t *testing.T) {
	q := newQueue()
	ctx := context.Background()
	expired := sampleItem("expired")
	expired.AutoAcceptDeadline = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, q.Save(ctx, expired))

	n1, err := q.SweepAutoAccept(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := q.SweepAutoAccept(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n2, "a second sweep pass finds nothing left to transition")
}
