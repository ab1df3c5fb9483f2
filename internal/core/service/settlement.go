package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/port"
)

var (
	ErrReasonRequired  = errors.New("denial reason is required")
	ErrInvalidDeniedBy = errors.New("denied_by must be admin or talent")

	// ErrRefundDeclined means the processor answered but refused the
	// refund. Retryable; nothing was mutated.
	ErrRefundDeclined = errors.New("processor declined the refund")
)

// ReconciliationError means the refund went through at the processor but
// the order update failed. The money has moved, so retrying the refund
// would double-pay; an operator has to reconcile by hand.
type ReconciliationError struct {
	OrderID           string
	RefundID          string
	RefundAmountCents int64
	Err               error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("refund %s for order %s processed but status update failed: %v",
		e.RefundID, e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

const defaultRefundTimeout = 15 * time.Second

// SettlementCoordinator drives a denial or refund to a single consistent
// end state across three independently failable steps: the processor refund
// call, the ledger mutation, and the notification fan-out.
type SettlementCoordinator struct {
	ledger    *OrderLedger
	processor port.PaymentProcessor
	recon     port.ReconciliationStore
	fanout    *NotificationFanout

	refundTimeout time.Duration
	now           func() time.Time
}

func NewSettlementCoordinator(ledger *OrderLedger, processor port.PaymentProcessor, recon port.ReconciliationStore, fanout *NotificationFanout) *SettlementCoordinator {
	return &SettlementCoordinator{
		ledger:        ledger,
		processor:     processor,
		recon:         recon,
		fanout:        fanout,
		refundTimeout: defaultRefundTimeout,
		now:           time.Now,
	}
}

// WithRefundTimeout overrides the processor call deadline.
func (c *SettlementCoordinator) WithRefundTimeout(d time.Duration) *SettlementCoordinator {
	c.refundTimeout = d
	return c
}

// WithClock overrides the coordinator clock, for tests.
func (c *SettlementCoordinator) WithClock(now func() time.Time) *SettlementCoordinator {
	c.now = now
	return c
}

// ProcessRefund settles a denial or post-completion refund.
//
// Ordering is load-bearing: the refund happens before the ledger write, so
// a denied or refunded status always means money actually moved (or the
// order was free and the processor was correctly skipped). A processor
// failure aborts with no mutation. A ledger failure after a successful
// refund is recorded durably and surfaced as *ReconciliationError.
// Notification failures never affect the result.
func (c *SettlementCoordinator) ProcessRefund(ctx context.Context, req domain.RefundRequest) (domain.RefundResult, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return domain.RefundResult{}, ErrReasonRequired
	}
	if !req.DeniedBy.Valid() {
		return domain.RefundResult{}, ErrInvalidDeniedBy
	}

	order, err := c.ledger.Get(ctx, req.OrderID)
	if err != nil {
		return domain.RefundResult{}, err
	}

	// An order that already reached a terminal state has had its money
	// question answered; a second settlement would refund twice and
	// overwrite the audit fields.
	switch order.Status {
	case domain.OrderStatusDenied, domain.OrderStatusRefunded, domain.OrderStatusCancelled:
		return domain.RefundResult{}, port.ErrStatusConflict
	}

	logCtx := log.WithFields(log.Fields{
		"order_id":  order.ID,
		"denied_by": req.DeniedBy,
	})

	var result domain.RefundResult
	if order.Free() {
		// Money was never captured; refunding is a status change only.
		result = domain.RefundResult{Success: true, AmountCents: 0}
		logCtx.Info("free order, skipping processor refund")
	} else {
		amount := req.AmountCents
		if amount <= 0 {
			amount = order.AmountCents
		}

		rctx, cancel := context.WithTimeout(ctx, c.refundTimeout)
		result, err = c.processor.Refund(rctx, order.PaymentTransactionID, amount, req.Reason)
		cancel()
		if err != nil {
			return domain.RefundResult{}, fmt.Errorf("processor refund: %w", err)
		}
		if !result.Success {
			return domain.RefundResult{}, ErrRefundDeclined
		}
		logCtx.WithFields(log.Fields{
			"refund_id":    result.RefundID,
			"amount_cents": result.AmountCents,
		}).Info("processor refund succeeded")
	}

	target := order.SettledStatus()
	audit := domain.SettlementAudit{
		Reason:            req.Reason,
		DeniedBy:          req.DeniedBy,
		DeniedAt:          c.now(),
		RefundID:          result.RefundID,
		RefundAmountCents: result.AmountCents,
	}

	if err := c.ledger.Settle(ctx, order.ID, order.Status, target, audit); err != nil {
		c.recordUnreconciled(order, result, req, err)
		return result, &ReconciliationError{
			OrderID:           order.ID,
			RefundID:          result.RefundID,
			RefundAmountCents: result.AmountCents,
			Err:               err,
		}
	}

	c.notifySettled(order, target, req, result)
	return result, nil
}

// recordUnreconciled persists the refund-without-matching-order state so it
// survives the process. A log line alone is not enough once money has moved.
func (c *SettlementCoordinator) recordUnreconciled(order *domain.Order, result domain.RefundResult, req domain.RefundRequest, cause error) {
	rec := domain.ReconciliationRecord{
		ID:                uuid.NewString(),
		OrderID:           order.ID,
		RefundID:          result.RefundID,
		RefundAmountCents: result.AmountCents,
		Reason:            req.Reason,
		FailureDetail:     cause.Error(),
		CreatedAt:         c.now(),
	}
	if err := c.recon.RecordUnreconciledRefund(context.Background(), rec); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"refund_id": result.RefundID,
		}).Error("failed to record unreconciled refund")
	}
}

func (c *SettlementCoordinator) notifySettled(order *domain.Order, target domain.OrderStatus, req domain.RefundRequest, result domain.RefundResult) {
	eventType := domain.NotifyOrderDenied
	title := "Your order was denied"
	body := fmt.Sprintf("Your order was denied: %s. Any captured payment has been refunded.", req.Reason)
	if target == domain.OrderStatusRefunded {
		eventType = domain.NotifyOrderRefunded
		title = "Your order was refunded"
		body = fmt.Sprintf("Your order has been refunded: %s.", req.Reason)
	}

	c.fanout.Dispatch(domain.NotificationEvent{
		Type:   eventType,
		UserID: order.CustomerID,
		Title:  title,
		Body:   body,
		Metadata: map[string]string{
			"order_id":            order.ID,
			"refund_id":           result.RefundID,
			"refund_amount_cents": fmt.Sprintf("%d", result.AmountCents),
		},
	})
}
