// Package httpapi exposes the risk engine over HTTP: transaction
// evaluation, the review-queue listing/feedback surface reviewers use, and
// a read-only listing of the rules the registry currently serves.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/orchestrator"
	"sentinel/internal/riskengine/reviewqueue"
	"sentinel/internal/riskengine/rules"
	"sentinel/pkg/logger"
	"sentinel/pkg/validator"
)

// Handler wires the HTTP surface to the orchestrator, the review queue and
// the rule registry; it holds no business logic of its own.
type Handler struct {
	orch  *orchestrator.Orchestrator
	queue *reviewqueue.Queue
	regs  *rules.Registry
	val   *validator.Validator
	log   logger.Logger
}

// New constructs a Handler.
func New(orch *orchestrator.Orchestrator, queue *reviewqueue.Queue, regs *rules.Registry, val *validator.Validator, log logger.Logger) *Handler {
	return &Handler{orch: orch, queue: queue, regs: regs, val: val, log: log}
}

// Register attaches every route this handler serves onto r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/transactions", h.EvaluateTransaction).Methods(http.MethodPost)
	r.HandleFunc("/v1/review-queue", h.ListReviewQueue).Methods(http.MethodGet)
	r.HandleFunc("/v1/review-queue/stats", h.ReviewQueueStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/review-queue/{txnId}/feedback", h.SubmitFeedback).Methods(http.MethodPost)
	r.HandleFunc("/v1/rules", h.ListRules).Methods(http.MethodGet)
}

// transactionRequest is the wire shape of a transaction evaluation request;
// amountPaise keeps the same integer-paise representation the engine works
// in internally so no floating-point rounding enters at the boundary.
type transactionRequest struct {
	TxnID              string `json:"txnId" validate:"required"`
	ClientID           string `json:"clientId" validate:"required"`
	TxnType            string `json:"txnType" validate:"required"`
	AmountPaise        int64  `json:"amountPaise" validate:"gte=0"`
	Timestamp          string `json:"timestamp"`
	BeneficiaryIFSC    string `json:"beneficiaryIfsc"`
	BeneficiaryAccount string `json:"beneficiaryAccount"`
}

// EvaluateTransaction scores one transaction and returns the composite
// result: PASS/ALERT/BLOCK plus the per-rule breakdown.
func (h *Handler) EvaluateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.val.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
			return
		}
		ts = parsed
	}

	txn := riskengine.Transaction{
		TxnID:              req.TxnID,
		ClientID:           req.ClientID,
		TxnType:            riskengine.TxnType(req.TxnType),
		AmountPaise:        req.AmountPaise,
		Timestamp:          ts,
		BeneficiaryIFSC:    req.BeneficiaryIFSC,
		BeneficiaryAccount: req.BeneficiaryAccount,
	}

	result, err := h.orch.Evaluate(r.Context(), txn)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListReviewQueue returns review-queue items, optionally filtered by
// action, client or rule.
func (h *Handler) ListReviewQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := reviewqueue.Filter{
		Action:   riskengine.Action(q.Get("action")),
		ClientID: q.Get("clientId"),
		RuleID:   q.Get("ruleId"),
		Limit:    100,
	}
	items, err := h.queue.Query(r.Context(), f)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ReviewQueueStats returns the review-queue depth per feedback status.
func (h *Handler) ReviewQueueStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.CountByStatus(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

type feedbackRequest struct {
	Status string `json:"status" validate:"required"`
	By     string `json:"by" validate:"required"`
}

// SubmitFeedback records a reviewer's true-positive/false-positive
// decision for a queued item, feeding the auto-tuner's next run.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	txnID := mux.Vars(r)["txnId"]

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.val.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed, err := h.queue.UpdateFeedback(r.Context(), txnID, riskengine.FeedbackStatus(req.Status), req.By)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, "review queue item not found or not pending")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// ListRules returns the active rule snapshot the registry currently serves
// to the orchestrator.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.regs.GetActiveRules())
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case riskengine.IsKind(err, riskengine.KindValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case riskengine.IsKind(err, riskengine.KindTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		if h.log != nil {
			h.log.Error("engine request failed", map[string]interface{}{"error": err.Error()})
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
