package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/riskengine"
	"sentinel/pkg/logger"
)

// clientNotificationID maps a risk-engine client id (an opaque string, not
// necessarily a UUID) onto the UUID the rest of the notification service
// keys on, deterministically so the same client always resolves the same way.
func clientNotificationID(clientID string) uuid.UUID {
	if id, err := uuid.Parse(clientID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(clientID))
}

// riskEvent is either a blocked-transaction alert or a silence alert,
// queued for async, best-effort delivery.
type riskEvent struct {
	blocked *blockedEvent
	silent  *silentEvent
}

type blockedEvent struct {
	txn    riskengine.Transaction
	result riskengine.EvaluationResult
}

type silentEvent struct {
	clientID                        string
	silenceMinutes, expectedGap, tps float64
}

// RiskSink adapts the risk engine's fire-and-forget NotificationSink port
// (component N) onto the existing multi-channel Service: a bounded queue
// drained by one worker, so a slow or unavailable channel never stalls the
// evaluation pipeline. Overflow drops the event and logs a warning, per
// the documented backpressure policy.
type RiskSink struct {
	svc    Service
	log    logger.Logger
	events chan riskEvent
	done   chan struct{}
}

// NewRiskSink starts the delivery worker immediately; Close stops it.
func NewRiskSink(svc Service, log logger.Logger, bufferSize int) *RiskSink {
	s := &RiskSink{
		svc:    svc,
		log:    log,
		events: make(chan riskEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *RiskSink) run() {
	defer close(s.done)
	for evt := range s.events {
		s.deliver(evt)
	}
}

func (s *RiskSink) deliver(evt riskEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch {
	case evt.blocked != nil:
		err = s.svc.Notify(ctx, clientNotificationID(evt.blocked.txn.ClientID), "RISK_ALERT", map[string]interface{}{
			"reason":          "transaction blocked",
			"txnId":           evt.blocked.txn.TxnID,
			"clientId":        evt.blocked.txn.ClientID,
			"compositeScore":  evt.blocked.result.CompositeScore,
			"riskLevel":       evt.blocked.result.RiskLevel,
		})
	case evt.silent != nil:
		err = s.svc.Notify(ctx, clientNotificationID(evt.silent.clientID), "RISK_ALERT", map[string]interface{}{
			"reason":         "client silent",
			"clientId":       evt.silent.clientID,
			"silenceMinutes": evt.silent.silenceMinutes,
			"expectedGap":    evt.silent.expectedGap,
			"hourlyTps":      evt.silent.tps,
		})
	}
	if err != nil && s.log != nil {
		s.log.Warn("risk notification delivery failed", map[string]interface{}{"error": err})
	}
}

// NotifyBlocked enqueues a blocked-transaction alert; drops and logs on a
// full buffer rather than blocking the orchestrator.
func (s *RiskSink) NotifyBlocked(ctx context.Context, txn riskengine.Transaction, result riskengine.EvaluationResult) {
	select {
	case s.events <- riskEvent{blocked: &blockedEvent{txn: txn, result: result}}:
	default:
		if s.log != nil {
			s.log.Warn("risk notification dropped (buffer full)", map[string]interface{}{"txnId": txn.TxnID})
		}
	}
}

// NotifySilent enqueues a silence alert; same overflow policy as NotifyBlocked.
func (s *RiskSink) NotifySilent(ctx context.Context, clientID string, silenceMinutes, expectedGapMinutes, hourlyTps float64) {
	select {
	case s.events <- riskEvent{silent: &silentEvent{clientID: clientID, silenceMinutes: silenceMinutes, expectedGap: expectedGapMinutes, tps: hourlyTps}}:
	default:
		if s.log != nil {
			s.log.Warn("silence notification dropped (buffer full)", map[string]interface{}{"clientId": clientID})
		}
	}
}

// Close stops accepting new events and waits for the queue to drain.
func (s *RiskSink) Close() {
	close(s.events)
	<-s.done
}
