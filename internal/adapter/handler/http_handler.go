package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/core/service"
	"github.com/jonathanbodnar/shoutout/internal/port"
)

// AttemptFactory builds a fresh checkout attempt. A failed attempt is done
// for good; retries always go through a new instance so no timer or flag
// survives into the next try.
type AttemptFactory func() *service.CheckoutAttempt

// defaultAttemptTTL bounds how long an attempt that never reaches order
// creation stays tracked. Abandoned checkouts are the common case for the
// widget, so the map would otherwise only grow.
const defaultAttemptTTL = 30 * time.Minute

type attemptEntry struct {
	attempt *service.CheckoutAttempt
	created time.Time
}

type HTTPHandler struct {
	ledger     *service.OrderLedger
	settlement *service.SettlementCoordinator
	newAttempt AttemptFactory

	attemptTTL time.Duration
	now        func() time.Time

	mu       sync.Mutex
	attempts map[string]attemptEntry
}

func NewHTTPHandler(ledger *service.OrderLedger, settlement *service.SettlementCoordinator, newAttempt AttemptFactory) *HTTPHandler {
	return &HTTPHandler{
		ledger:     ledger,
		settlement: settlement,
		newAttempt: newAttempt,
		attemptTTL: defaultAttemptTTL,
		now:        time.Now,
		attempts:   make(map[string]attemptEntry),
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/checkout", h.StartCheckout)
	mux.HandleFunc("POST /api/checkout/{id}/signal", h.CheckoutSignal)
	mux.HandleFunc("GET /api/checkout/{id}", h.CheckoutOutcome)

	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/accept", h.AcceptOrder)
	mux.HandleFunc("POST /api/orders/{id}/approve", h.ApproveOrder)
	mux.HandleFunc("POST /api/orders/{id}/reject", h.RejectOrder)
	mux.HandleFunc("POST /api/orders/{id}/complete", h.CompleteOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/deny", h.DenyOrder)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *HTTPHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	attempt := h.newAttempt()

	h.mu.Lock()
	h.sweepLocked()
	h.attempts[attempt.ID] = attemptEntry{attempt: attempt, created: h.now()}
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"attempt_id": attempt.ID})
}

func (h *HTTPHandler) CheckoutSignal(w http.ResponseWriter, r *http.Request) {
	attempt := h.attempt(r.PathValue("id"))
	if attempt == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "unknown checkout attempt"})
		return
	}

	var sig domain.WidgetSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid signal body"})
		return
	}

	attempt.Signal(r.Context(), sig)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *HTTPHandler) CheckoutOutcome(w http.ResponseWriter, r *http.Request) {
	attempt := h.attempt(r.PathValue("id"))
	if attempt == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "unknown checkout attempt"})
		return
	}

	outcome, done := attempt.Resolved()
	if !done {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type createOrderRequest struct {
	AttemptID        string              `json:"attempt_id"`
	CustomerID       string              `json:"customer_id"`
	TalentID         string              `json:"talent_id"`
	FulfillmentHours int                 `json:"fulfillment_hours"`
	Pricing          domain.PricingInput `json:"pricing"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}
	if req.CustomerID == "" || req.TalentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "missing required fields"})
		return
	}

	in := service.CreateOrderInput{
		AttemptID:        req.AttemptID,
		CustomerID:       req.CustomerID,
		TalentID:         req.TalentID,
		FulfillmentHours: req.FulfillmentHours,
		Pricing:          req.Pricing,
	}

	// The server trusts only its own resolved outcome, never one supplied
	// by the client.
	if req.AttemptID != "" {
		attempt := h.attempt(req.AttemptID)
		if attempt == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Message: "unknown checkout attempt"})
			return
		}
		outcome, done := attempt.Resolved()
		if !done {
			writeJSON(w, http.StatusConflict, errorResponse{Message: "payment not yet resolved"})
			return
		}
		in.Outcome = &outcome
	}

	order, err := h.ledger.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	if req.AttemptID != "" {
		h.dropAttempt(req.AttemptID)
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ledger.Accept)
}

type approveRequest struct {
	FulfillmentHours int `json:"fulfillment_hours"`
}

func (h *HTTPHandler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FulfillmentHours <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "fulfillment_hours must be positive"})
		return
	}
	if err := h.ledger.Approve(r.Context(), r.PathValue("id"), req.FulfillmentHours); err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ledger.RejectApproval)
}

func (h *HTTPHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ledger.Complete)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ledger.Cancel)
}

type denyOrderRequest struct {
	Reason      string          `json:"reason"`
	DeniedBy    domain.DeniedBy `json:"denied_by"`
	AmountCents int64           `json:"amount_cents,omitempty"`
}

func (h *HTTPHandler) DenyOrder(w http.ResponseWriter, r *http.Request) {
	var req denyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	result, err := h.settlement.ProcessRefund(r.Context(), domain.RefundRequest{
		OrderID:     r.PathValue("id"),
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
		DeniedBy:    req.DeniedBy,
	})
	if err != nil {
		var reconErr *service.ReconciliationError
		switch {
		case errors.Is(err, service.ErrReasonRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "denial reason is required"})
		case errors.Is(err, service.ErrInvalidDeniedBy):
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "denied_by must be admin or talent"})
		case errors.As(err, &reconErr):
			// Money moved but the order row did not follow. This must
			// read as an error to the operator, never a silent failure.
			log.WithError(err).Error("refund settled without matching order update")
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Message: "refund processed but status update failed, contact support",
			})
		case errors.Is(err, service.ErrRefundDeclined):
			writeJSON(w, http.StatusBadGateway, errorResponse{Message: "refund declined by processor"})
		case errors.Is(err, port.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Message: "order not found"})
		case errors.Is(err, port.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, errorResponse{Message: "order already settled"})
		default:
			writeJSON(w, http.StatusBadGateway, errorResponse{Message: "refund failed, try again"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	if err := fn(r.Context(), r.PathValue("id")); err != nil {
		h.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) attempt(id string) *service.CheckoutAttempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts[id].attempt
}

// sweepLocked evicts attempts past their TTL. Only successful order creation
// removes an attempt otherwise, so abandoned checkouts leave the map here.
func (h *HTTPHandler) sweepLocked() {
	cutoff := h.now().Add(-h.attemptTTL)
	for id, e := range h.attempts {
		if e.created.Before(cutoff) {
			delete(h.attempts, id)
		}
	}
}

func (h *HTTPHandler) dropAttempt(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attempts, id)
}

func (h *HTTPHandler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "order not found"})
	case errors.Is(err, port.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "order is not in the expected state"})
	case errors.Is(err, service.ErrDuplicateAttempt):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "checkout attempt already used"})
	case errors.Is(err, service.ErrPaymentDeclined):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Message: "payment was declined"})
	case errors.Is(err, service.ErrOutcomeRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "payment outcome required"})
	case errors.Is(err, service.ErrApprovalPending):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "corporate approval pending"})
	case errors.Is(err, service.ErrNotCorporate):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "not a corporate order"})
	case errors.Is(err, service.ErrDeadlineNotPassed):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "fulfillment deadline has not passed"})
	default:
		log.WithError(err).Error("order operation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
