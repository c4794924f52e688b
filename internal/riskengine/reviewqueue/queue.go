// Package reviewqueue implements the human review queue (component K):
// persistence of ALERT/BLOCK verdicts, reviewer feedback with a
// PENDING-only transition guard, and the auto-accept sweep.
package reviewqueue

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
	"sentinel/pkg/logger"
)

// Queue is the Store-backed review queue.
type Queue struct {
	s   store.Store
	log logger.Logger

	stop chan struct{}
	done chan struct{}
}

func New(s store.Store, log logger.Logger) *Queue {
	return &Queue{s: s, log: log}
}

// Save persists item, keyed by txnId, in its initial PENDING state.
func (q *Queue) Save(ctx context.Context, item riskengine.ReviewQueueItem) error {
	return q.s.Put(ctx, riskengine.SetReviewQueue, item.TxnID, item)
}

// FindByTxnID returns the queue item for txnID, if any.
func (q *Queue) FindByTxnID(ctx context.Context, txnID string) (riskengine.ReviewQueueItem, bool, error) {
	var item riskengine.ReviewQueueItem
	found, err := q.s.Get(ctx, riskengine.SetReviewQueue, txnID, &item)
	return item, found, err
}

// FindAllWithFeedback returns every item whose feedback status is
// TRUE_POSITIVE or FALSE_POSITIVE — the tuner's input set.
func (q *Queue) FindAllWithFeedback(ctx context.Context) ([]riskengine.ReviewQueueItem, error) {
	var out []riskengine.ReviewQueueItem
	err := q.s.ScanAll(ctx, riskengine.SetReviewQueue, func(key string, raw []byte) error {
		var item riskengine.ReviewQueueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil
		}
		if item.FeedbackStatus == riskengine.FeedbackTruePositive || item.FeedbackStatus == riskengine.FeedbackFalsePositive {
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

// UpdateFeedback transitions txnID from PENDING to status, recording who
// and when. Only the first caller wins: a non-PENDING item is left
// untouched and changed=false is returned, never an error.
func (q *Queue) UpdateFeedback(ctx context.Context, txnID string, status riskengine.FeedbackStatus, by string) (changed bool, err error) {
	item, found, err := q.FindByTxnID(ctx, txnID)
	if err != nil {
		return false, err
	}
	if !found || item.FeedbackStatus != riskengine.FeedbackPending {
		return false, nil
	}
	now := time.Now().UTC()
	item.FeedbackStatus = status
	item.FeedbackAt = &now
	item.FeedbackBy = by
	if err := q.s.Put(ctx, riskengine.SetReviewQueue, txnID, item); err != nil {
		return false, err
	}
	return true, nil
}

// BulkUpdateFeedback applies UpdateFeedback to each id, returning how many
// actually transitioned.
func (q *Queue) BulkUpdateFeedback(ctx context.Context, ids []string, status riskengine.FeedbackStatus, by string) (int, error) {
	count := 0
	for _, id := range ids {
		changed, err := q.UpdateFeedback(ctx, id, status, by)
		if err != nil {
			return count, err
		}
		if changed {
			count++
		}
	}
	return count, nil
}

// StatusCounts is the result of CountByStatus.
type StatusCounts struct {
	Pending, TruePositive, FalsePositive, AutoAccepted int
}

// CountByStatus tallies every item by feedback status.
func (q *Queue) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	err := q.s.ScanAll(ctx, riskengine.SetReviewQueue, func(key string, raw []byte) error {
		var item riskengine.ReviewQueueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil
		}
		switch item.FeedbackStatus {
		case riskengine.FeedbackPending:
			counts.Pending++
		case riskengine.FeedbackTruePositive:
			counts.TruePositive++
		case riskengine.FeedbackFalsePositive:
			counts.FalsePositive++
		case riskengine.FeedbackAutoAccepted:
			counts.AutoAccepted++
		}
		return nil
	})
	return counts, err
}

// Filter selects items for the review UI's listing endpoint.
type Filter struct {
	Action      riskengine.Action
	ClientID    string
	FromDate    time.Time
	ToDate      time.Time
	RuleID      string
	Limit       int
	BeforeCursor time.Time // items with EnqueuedAt < BeforeCursor, when non-zero
}

// Query returns items matching filter, newest first, paginated by the
// enqueuedAt cursor.
func (q *Queue) Query(ctx context.Context, f Filter) ([]riskengine.ReviewQueueItem, error) {
	var matched []riskengine.ReviewQueueItem
	err := q.s.ScanAll(ctx, riskengine.SetReviewQueue, func(key string, raw []byte) error {
		var item riskengine.ReviewQueueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil
		}
		if f.Action != "" && item.Action != f.Action {
			return nil
		}
		if f.ClientID != "" && item.ClientID != f.ClientID {
			return nil
		}
		if f.RuleID != "" && !containsRuleID(item.TriggeredRuleIDs, f.RuleID) {
			return nil
		}
		if !f.FromDate.IsZero() && item.EnqueuedAt.Before(f.FromDate) {
			return nil
		}
		if !f.ToDate.IsZero() && item.EnqueuedAt.After(f.ToDate) {
			return nil
		}
		if !f.BeforeCursor.IsZero() && !item.EnqueuedAt.Before(f.BeforeCursor) {
			return nil
		}
		matched = append(matched, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].EnqueuedAt.After(matched[j].EnqueuedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}
	return matched[:limit], nil
}

func containsRuleID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// SweepAutoAccept transitions every PENDING item whose deadline has
// elapsed to AUTO_ACCEPTED. Runs as a single pass; the caller schedules it.
func (q *Queue) SweepAutoAccept(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var due []string
	err := q.s.ScanAll(ctx, riskengine.SetReviewQueue, func(key string, raw []byte) error {
		var item riskengine.ReviewQueueItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil
		}
		if item.FeedbackStatus == riskengine.FeedbackPending && !item.AutoAcceptDeadline.After(now) {
			due = append(due, item.TxnID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return q.BulkUpdateFeedback(ctx, due, riskengine.FeedbackAutoAccepted, "system:auto-accept")
}

// StartAutoAcceptSweeper runs SweepAutoAccept every interval until Stop.
func (q *Queue) StartAutoAcceptSweeper(interval time.Duration) {
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	go func() {
		defer close(q.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				n, err := q.SweepAutoAccept(ctx)
				cancel()
				if err != nil && q.log != nil {
					q.log.Warn("auto-accept sweep failed", map[string]interface{}{"error": err})
					continue
				}
				if n > 0 && q.log != nil {
					q.log.Info("auto-accept sweep completed", map[string]interface{}{"count": n})
				}
			}
		}
	}()
}

// Stop cancels the sweeper and waits for its current pass to finish.
func (q *Queue) Stop() {
	if q.stop == nil {
		return
	}
	close(q.stop)
	<-q.done
}
