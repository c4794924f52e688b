// Package profile owns the client behavioural profile: online EWMA/Welford
// statistics, hour/day rollover into seasonal slots, and the counter bumps
// that back the real-time detectors.
package profile

import (
	"context"
	"math"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
)

// Service is the profile service (component D).
type Service struct {
	s        store.Store
	counters *Counters
	alpha    float64
}

// New builds a profile service. alpha is the global EWMA smoothing factor,
// constrained to (0,1] by config validation at startup.
func New(s store.Store, alpha float64) *Service {
	return &Service{s: s, counters: NewCounters(s), alpha: alpha}
}

func (svc *Service) Counters() *Counters { return svc.counters }

// hourlyAlpha and dailyAlpha are the rollover smoothing factors: ten times
// the per-transaction alpha, capped at 0.1 so a single hour/day never
// dominates the baseline.
func (svc *Service) hourlyAlpha() float64 {
	a := svc.alpha * 10
	if a > 0.1 {
		a = 0.1
	}
	return a
}

func (svc *Service) dailyAlpha() float64 {
	return svc.hourlyAlpha()
}

// GetOrCreate returns the persisted profile for clientID, or a fresh empty
// one if none exists. The fresh profile is not written back until Update
// persists it.
func (svc *Service) GetOrCreate(ctx context.Context, clientID string) (*riskengine.ClientProfile, error) {
	var p riskengine.ClientProfile
	found, err := svc.s.Get(ctx, riskengine.SetClientProfiles, clientID, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return riskengine.NewClientProfile(clientID), nil
	}
	if p.TxnTypeCounts == nil {
		p.TxnTypeCounts = make(map[riskengine.TxnType]int64)
	}
	if p.AmountByType == nil {
		p.AmountByType = make(map[riskengine.TxnType]*riskengine.Stats)
	}
	if p.BeneTxnCounts == nil {
		p.BeneTxnCounts = make(map[string]int64)
	}
	if p.AmountByBeneficiary == nil {
		p.AmountByBeneficiary = make(map[string]*riskengine.Stats)
	}
	return &p, nil
}

// Persist writes profile back to the store. Update calls it as its final
// step, including during the grace window when detectors are skipped.
func (svc *Service) Persist(ctx context.Context, p *riskengine.ClientProfile) error {
	return svc.s.Put(ctx, riskengine.SetClientProfiles, p.ClientID, p)
}

// Update applies the 8-step rollover/statistics algorithm for txn to
// profile, then persists it. Must be called only after detectors have
// already consumed the pre-update profile.
func (svc *Service) Update(ctx context.Context, p *riskengine.ClientProfile, txn riskengine.Transaction) error {
	amount := txn.AmountRupees()

	// 1. type counts and total
	p.TxnTypeCounts[txn.TxnType]++
	p.TotalTxnCount++

	// 2. global amount EWMA/M2
	p.Amount.Update(amount, svc.alpha)

	// 3. per-type amount EWMA/M2/count
	ts, ok := p.AmountByType[txn.TxnType]
	if !ok {
		ts = &riskengine.Stats{}
		p.AmountByType[txn.TxnType] = ts
	}
	ts.Update(amount, svc.alpha)

	hourBucket := riskengine.HourBucket(txn.Timestamp)
	dayBucket := riskengine.DayBucket(txn.Timestamp)

	// 4. hour rollover: feed the last recorded hour bucket
	if p.LastHourBucket != "" && hourBucket != p.LastHourBucket {
		prevHour, perr := time.Parse("2006010215", p.LastHourBucket)
		if perr != nil {
			prevHour = txn.Timestamp.Add(-time.Hour)
		}
		count, totalPaise, err := svc.counters.CurrentHourly(ctx, p.ClientID, prevHour)
		if err != nil {
			return err
		}
		if count > 0 || p.CompletedHoursCount > 0 {
			svc.rollHour(p, prevHour, count, float64(totalPaise)/100.0)
		}
	}
	p.LastHourBucket = hourBucket

	// 5. day rollover: feed the last recorded day bucket
	if p.LastDayBucket != "" && dayBucket != p.LastDayBucket {
		prevDay, perr := time.Parse("20060102", p.LastDayBucket)
		if perr != nil {
			prevDay = txn.Timestamp.AddDate(0, 0, -1)
		}
		count, totalPaise, err := svc.counters.CurrentDaily(ctx, p.ClientID, prevDay)
		if err != nil {
			return err
		}
		newBene, err := svc.counters.CurrentDailyNewBeneCount(ctx, p.ClientID, prevDay)
		if err != nil {
			return err
		}
		if count > 0 || p.CompletedDaysCount > 0 {
			svc.rollDay(p, prevDay, count, float64(totalPaise)/100.0, newBene)
		}
	}
	p.LastDayBucket = dayBucket

	// 6. bump current hour/day counters
	if _, _, err := svc.counters.BumpHourly(ctx, p.ClientID, txn.Timestamp, txn.AmountPaise); err != nil {
		return err
	}
	if _, _, err := svc.counters.BumpDaily(ctx, p.ClientID, txn.Timestamp, txn.AmountPaise); err != nil {
		return err
	}

	// 7. beneficiary bookkeeping
	beneKey := txn.BeneficiaryKey()
	if beneKey != "" {
		firstTime := p.BeneTxnCounts[beneKey] == 0
		if firstTime {
			p.DistinctBeneficiaryCount++
			if _, err := svc.counters.BumpNewBeneficiary(ctx, p.ClientID, txn.Timestamp); err != nil {
				return err
			}
		}
		p.BeneTxnCounts[beneKey]++
		bs, ok := p.AmountByBeneficiary[beneKey]
		if !ok {
			bs = &riskengine.Stats{}
			p.AmountByBeneficiary[beneKey] = bs
		}
		bs.Update(amount, svc.alpha)
		if _, _, err := svc.counters.BumpBeneficiaryHourly(ctx, p.ClientID, beneKey, txn.Timestamp, txn.AmountPaise); err != nil {
			return err
		}
		if _, err := svc.counters.BumpBeneficiaryDailyAmount(ctx, p.ClientID, beneKey, txn.Timestamp, txn.AmountPaise); err != nil {
			return err
		}
	}

	// 8. timestamp and persist
	p.LastUpdated = time.Now().UTC()
	return svc.Persist(ctx, p)
}

// rollHour feeds a just-completed hour's (count, amountRupees) into the
// hourly EWMAs, the hour-of-day seasonal slot, and advances the counters.
func (svc *Service) rollHour(p *riskengine.ClientProfile, hourStart time.Time, count int64, amountRupees float64) {
	alpha := svc.hourlyAlpha()
	oldTps := p.EWMAHourlyTps
	if p.CompletedHoursCount == 0 {
		p.EWMAHourlyTps = float64(count)
	} else {
		p.EWMAHourlyTps = alpha*float64(count) + (1-alpha)*oldTps
	}
	p.TpsCount++
	newTps := p.EWMAHourlyTps
	p.TpsM2 += (float64(count) - oldTps) * (float64(count) - newTps)

	oldAmt := p.EWMAHourlyAmount
	if p.CompletedHoursCount == 0 {
		p.EWMAHourlyAmount = amountRupees
	} else {
		p.EWMAHourlyAmount = alpha*amountRupees + (1-alpha)*oldAmt
	}
	p.HourlyAmountCount++
	newAmt := p.EWMAHourlyAmount
	p.HourlyAmountM2 += (amountRupees - oldAmt) * (amountRupees - newAmt)

	p.CompletedHoursCount++

	slot := hourStart.UTC().Hour()
	updateSlot(&p.HourOfDayTps[slot], float64(count), alpha)
	updateSlot(&p.HourOfDayAmount[slot], amountRupees, alpha)
}

// rollDay feeds a just-completed day's (amountRupees, newBeneCount) into
// the daily EWMAs and the day-of-week seasonal slot.
func (svc *Service) rollDay(p *riskengine.ClientProfile, dayStart time.Time, count int64, amountRupees float64, newBeneCount int64) {
	alpha := svc.dailyAlpha()
	oldAmt := p.EWMADailyAmount
	if p.CompletedDaysCount == 0 {
		p.EWMADailyAmount = amountRupees
	} else {
		p.EWMADailyAmount = alpha*amountRupees + (1-alpha)*oldAmt
	}
	p.DailyAmountCount++
	newAmt := p.EWMADailyAmount
	p.DailyAmountM2 += (amountRupees - oldAmt) * (amountRupees - newAmt)
	p.CompletedDaysCount++

	oldBene := p.EWMADailyNewBeneficiaries
	nb := float64(newBeneCount)
	if p.CompletedDaysForBeneCount == 0 {
		p.EWMADailyNewBeneficiaries = nb
	} else {
		p.EWMADailyNewBeneficiaries = alpha*nb + (1-alpha)*oldBene
	}
	p.DailyNewBeneCount++
	newBene := p.EWMADailyNewBeneficiaries
	p.DailyNewBeneM2 += (nb - oldBene) * (nb - newBene)
	p.CompletedDaysForBeneCount++

	dow := int(dayStart.UTC().Weekday())
	updateSlot(&p.DayOfWeekTps[dow], float64(count), alpha)
	updateSlot(&p.DayOfWeekAmount[dow], amountRupees, alpha)
}

func updateSlot(slot *riskengine.SeasonalSlot, x, alpha float64) {
	if slot.Count == 0 {
		slot.EWMA = x
	} else {
		slot.EWMA = alpha*x + (1-alpha)*slot.EWMA
	}
	slot.Count++
}

// AmountStdDev is a convenience accessor matching I4: never meaningful
// below 2 samples.
func AmountStdDev(s *riskengine.Stats) float64 {
	if s == nil || s.Count < 2 {
		return 0
	}
	v := s.Variance()
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}
