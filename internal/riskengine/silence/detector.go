// Package silence implements the silence detector (component M): a
// periodic scan that flags clients whose transaction stream has gone
// quiet for longer than their own hourly-rate EWMA predicts.
package silence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
	"sentinel/pkg/logger"
)

// Config holds the spec-default tunables.
type Config struct {
	MinCompletedHours int64
	MinExpectedTps    float64
	SilenceMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		MinCompletedHours: 48,
		MinExpectedTps:    0.05,
		SilenceMultiplier: 3,
	}
}

type Detector struct {
	s        store.Store
	notifier riskengine.NotificationSink
	metrics  riskengine.MetricsSink
	cfg      Config
	log      logger.Logger

	mu      sync.Mutex
	alerted map[string]struct{}

	stop chan struct{}
	done chan struct{}
}

func New(s store.Store, notifier riskengine.NotificationSink, metrics riskengine.MetricsSink, cfg Config, log logger.Logger) *Detector {
	return &Detector{
		s:        s,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
		alerted:  make(map[string]struct{}),
	}
}

// profileView is the minimal subset of ClientProfile this package reads,
// decoded independently of the profile package to avoid a cross-package
// cycle (profile doesn't need to know about silence, and vice versa).
type profileView struct {
	ClientID            string
	CompletedHoursCount int64
	EWMAHourlyTps       float64
	LastUpdated         time.Time
}

// RunOnce scans every client profile and updates the alert set.
func (d *Detector) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	seen := make(map[string]struct{})

	err := d.s.ScanAll(ctx, riskengine.SetClientProfiles, func(key string, raw []byte) error {
		var p profileView
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil
		}
		if p.CompletedHoursCount < d.cfg.MinCompletedHours || p.EWMAHourlyTps < d.cfg.MinExpectedTps {
			return nil
		}

		silenceMinutes := now.Sub(p.LastUpdated).Minutes()
		expectedGap := 60.0 / p.EWMAHourlyTps
		silent := silenceMinutes > expectedGap*d.cfg.SilenceMultiplier

		d.mu.Lock()
		_, wasAlerted := d.alerted[p.ClientID]
		d.mu.Unlock()

		if silent {
			seen[p.ClientID] = struct{}{}
			if !wasAlerted {
				d.mu.Lock()
				d.alerted[p.ClientID] = struct{}{}
				d.mu.Unlock()
				if d.notifier != nil {
					d.notifier.NotifySilent(ctx, p.ClientID, silenceMinutes, expectedGap, p.EWMAHourlyTps)
				}
				if d.metrics != nil {
					d.metrics.ObserveSilenceEvent(p.ClientID, false)
				}
			}
		}
		return nil
	})
	if err != nil {
		return riskengine.StoreError("silence detector: scan profiles", err)
	}

	d.mu.Lock()
	for clientID := range d.alerted {
		if _, stillSilent := seen[clientID]; !stillSilent {
			delete(d.alerted, clientID)
			if d.metrics != nil {
				d.metrics.ObserveSilenceEvent(clientID, true)
			}
		}
	}
	d.mu.Unlock()
	return nil
}

// StartScheduler runs RunOnce every interval until Stop is called.
func (d *Detector) StartScheduler(interval time.Duration) {
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := d.RunOnce(ctx); err != nil && d.log != nil {
					d.log.Warn("silence detector cycle failed", map[string]interface{}{"error": err})
				}
				cancel()
			}
		}
	}()
}

// Stop cancels the scheduler and waits for its current pass to finish.
func (d *Detector) Stop() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
}
