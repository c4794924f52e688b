package profile

import (
	"context"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
)

// Counters wraps the atomic hourly/daily aggregation counters that live
// alongside (but are not owned by) the ClientProfile online statistics.
// Every key schema here is a stable external contract.
type Counters struct {
	s store.Store
}

func NewCounters(s store.Store) *Counters {
	return &Counters{s: s}
}

func hourlyKey(clientID string, ts time.Time) string {
	return clientID + ":" + riskengine.HourBucket(ts)
}

func dailyKey(clientID string, ts time.Time) string {
	return clientID + ":" + riskengine.DayBucket(ts)
}

func newBeneKey(clientID string, ts time.Time) string {
	return clientID + ":newbene:" + riskengine.DayBucket(ts)
}

func beneHourlyKey(clientID, beneKey string, ts time.Time) string {
	return clientID + ":" + beneKey + ":" + riskengine.HourBucket(ts)
}

func beneDailyAmountKey(clientID, beneKey string, ts time.Time) string {
	return clientID + ":beneDaily:" + riskengine.DayBucket(ts) + ":" + beneKey
}

// BumpHourly atomically adds one transaction of amountPaise to the current
// hour bucket and returns the post-bump (count, totalAmountPaise).
func (c *Counters) BumpHourly(ctx context.Context, clientID string, ts time.Time, amountPaise int64) (int64, int64, error) {
	key := hourlyKey(clientID, ts)
	count, err := c.s.AddAndGet(ctx, riskengine.SetClientHourlyCntrs, key, riskengine.FieldCount, 1)
	if err != nil {
		return 0, 0, err
	}
	total, err := c.s.AddAndGet(ctx, riskengine.SetClientHourlyCntrs, key, riskengine.FieldTotalAmount, float64(amountPaise))
	if err != nil {
		return 0, 0, err
	}
	return int64(count), int64(total), nil
}

// BumpDaily atomically adds one transaction to the current day bucket.
func (c *Counters) BumpDaily(ctx context.Context, clientID string, ts time.Time, amountPaise int64) (int64, int64, error) {
	key := dailyKey(clientID, ts)
	count, err := c.s.AddAndGet(ctx, riskengine.SetClientDailyCntrs, key, riskengine.FieldCount, 1)
	if err != nil {
		return 0, 0, err
	}
	total, err := c.s.AddAndGet(ctx, riskengine.SetClientDailyCntrs, key, riskengine.FieldTotalAmount, float64(amountPaise))
	if err != nil {
		return 0, 0, err
	}
	return int64(count), int64(total), nil
}

// BumpNewBeneficiary atomically increments today's new-beneficiary counter.
func (c *Counters) BumpNewBeneficiary(ctx context.Context, clientID string, ts time.Time) (int64, error) {
	v, err := c.s.AddAndGet(ctx, riskengine.SetDailyNewBeneCntrs, newBeneKey(clientID, ts), riskengine.FieldCount, 1)
	return int64(v), err
}

// BumpBeneficiaryHourly atomically adds one transaction to the hourly
// beneficiary bucket.
func (c *Counters) BumpBeneficiaryHourly(ctx context.Context, clientID, beneKey string, ts time.Time, amountPaise int64) (int64, int64, error) {
	key := beneHourlyKey(clientID, beneKey, ts)
	count, err := c.s.AddAndGet(ctx, riskengine.SetBeneHourlyCntrs, key, riskengine.FieldCount, 1)
	if err != nil {
		return 0, 0, err
	}
	total, err := c.s.AddAndGet(ctx, riskengine.SetBeneHourlyCntrs, key, riskengine.FieldTotalAmount, float64(amountPaise))
	if err != nil {
		return 0, 0, err
	}
	return int64(count), int64(total), nil
}

// BumpBeneficiaryDailyAmount atomically adds to the daily cross-channel
// beneficiary amount counter (the "second logical family" sharing the
// client_daily_counters schema per the daily-amount counters design note).
func (c *Counters) BumpBeneficiaryDailyAmount(ctx context.Context, clientID, beneKey string, ts time.Time, amountPaise int64) (int64, error) {
	v, err := c.s.AddAndGet(ctx, riskengine.SetClientDailyCntrs, beneDailyAmountKey(clientID, beneKey, ts), riskengine.FieldTotalAmount, float64(amountPaise))
	return int64(v), err
}

// CurrentHourly returns the current hour's (count, totalAmountPaise)
// without mutating it, by issuing a zero-delta addAndGet.
func (c *Counters) CurrentHourly(ctx context.Context, clientID string, ts time.Time) (int64, int64, error) {
	key := hourlyKey(clientID, ts)
	count, err := c.s.AddAndGet(ctx, riskengine.SetClientHourlyCntrs, key, riskengine.FieldCount, 0)
	if err != nil {
		return 0, 0, err
	}
	total, err := c.s.AddAndGet(ctx, riskengine.SetClientHourlyCntrs, key, riskengine.FieldTotalAmount, 0)
	if err != nil {
		return 0, 0, err
	}
	return int64(count), int64(total), nil
}

// CurrentDaily returns the current day's (count, totalAmountPaise).
func (c *Counters) CurrentDaily(ctx context.Context, clientID string, ts time.Time) (int64, int64, error) {
	key := dailyKey(clientID, ts)
	count, err := c.s.AddAndGet(ctx, riskengine.SetClientDailyCntrs, key, riskengine.FieldCount, 0)
	if err != nil {
		return 0, 0, err
	}
	total, err := c.s.AddAndGet(ctx, riskengine.SetClientDailyCntrs, key, riskengine.FieldTotalAmount, 0)
	if err != nil {
		return 0, 0, err
	}
	return int64(count), int64(total), nil
}

// CurrentDailyNewBeneCount returns today's new-beneficiary count.
func (c *Counters) CurrentDailyNewBeneCount(ctx context.Context, clientID string, ts time.Time) (int64, error) {
	v, err := c.s.AddAndGet(ctx, riskengine.SetDailyNewBeneCntrs, newBeneKey(clientID, ts), riskengine.FieldCount, 0)
	return int64(v), err
}

// CurrentBeneficiary returns the current hour's (count, totalAmountPaise)
// for a specific beneficiary key.
func (c *Counters) CurrentBeneficiary(ctx context.Context, clientID, beneKey string, ts time.Time) (int64, int64, error) {
	key := beneHourlyKey(clientID, beneKey, ts)
	count, err := c.s.AddAndGet(ctx, riskengine.SetBeneHourlyCntrs, key, riskengine.FieldCount, 0)
	if err != nil {
		return 0, 0, err
	}
	total, err := c.s.AddAndGet(ctx, riskengine.SetBeneHourlyCntrs, key, riskengine.FieldTotalAmount, 0)
	if err != nil {
		return 0, 0, err
	}
	return int64(count), int64(total), nil
}

// CurrentDailyBeneficiaryAmount returns today's cross-channel total amount
// sent to beneKey by clientID.
func (c *Counters) CurrentDailyBeneficiaryAmount(ctx context.Context, clientID, beneKey string, ts time.Time) (int64, error) {
	v, err := c.s.AddAndGet(ctx, riskengine.SetClientDailyCntrs, beneDailyAmountKey(clientID, beneKey, ts), riskengine.FieldTotalAmount, 0)
	return int64(v), err
}

// PriorHourly reads the counter for the hour bucket immediately preceding
// ts's bucket.
func (c *Counters) PriorHourly(ctx context.Context, clientID string, ts time.Time) (int64, int64, error) {
	return c.CurrentHourly(ctx, clientID, ts.Add(-time.Hour))
}

// PriorDaily reads the counter for the day bucket immediately preceding
// ts's bucket.
func (c *Counters) PriorDaily(ctx context.Context, clientID string, ts time.Time) (int64, int64, error) {
	return c.CurrentDaily(ctx, clientID, ts.AddDate(0, 0, -1))
}

// PriorDailyNewBeneCount reads yesterday's new-beneficiary count.
func (c *Counters) PriorDailyNewBeneCount(ctx context.Context, clientID string, ts time.Time) (int64, error) {
	return c.CurrentDailyNewBeneCount(ctx, clientID, ts.AddDate(0, 0, -1))
}
