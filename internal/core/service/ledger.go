package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/port"
)

var (
	ErrDuplicateAttempt  = errors.New("checkout attempt already consumed")
	ErrPaymentDeclined   = errors.New("payment was not captured")
	ErrOutcomeRequired   = errors.New("payment outcome required for a paid order")
	ErrApprovalPending   = errors.New("corporate order awaiting approval")
	ErrNotCorporate      = errors.New("order is not a corporate order")
	ErrDeadlineNotPassed = errors.New("fulfillment deadline has not passed")
)

// OrderLedger owns order records and the order lifecycle:
//
//	pending -> in_progress -> completed
//	pending -> cancelled (deadline passed)
//	pending|in_progress -> denied, completed -> refunded (via settlement)
//
// All transitions go through conditional updates keyed on the current
// status, so a transition that lost the race is rejected instead of
// overwriting a later state.
type OrderLedger struct {
	orders port.OrderRepository
	cache  port.CacheRepository
	now    func() time.Time
}

func NewOrderLedger(orders port.OrderRepository, cache port.CacheRepository) *OrderLedger {
	return &OrderLedger{orders: orders, cache: cache, now: time.Now}
}

// WithClock overrides the ledger clock, for tests.
func (l *OrderLedger) WithClock(now func() time.Time) *OrderLedger {
	l.now = now
	return l
}

type CreateOrderInput struct {
	AttemptID  string
	CustomerID string
	TalentID   string

	Pricing          domain.PricingInput
	FulfillmentHours int

	// Outcome is the resolved payment outcome for the attempt. It is nil
	// for free orders, which never interact with the processor.
	Outcome *domain.PaymentOutcome
}

// CreateOrder prices the order and activates it. The attempt's outcome is
// consumed exactly once: a second submission with the same attempt id is
// rejected before any row is written.
func (l *OrderLedger) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	quote := domain.CalculatePricing(in.Pricing)
	free := quote.AmountDueCents() == 0

	transactionID := ""
	var payload []byte
	if !free {
		if in.Outcome == nil {
			return nil, ErrOutcomeRequired
		}
		if in.Outcome.Result != domain.OutcomeSuccess {
			return nil, ErrPaymentDeclined
		}
		transactionID = in.Outcome.TransactionID
		payload = in.Outcome.RawPayload

		ok, err := l.cache.ConsumeAttempt(ctx, in.AttemptID, payload)
		if err != nil {
			return nil, fmt.Errorf("attempt consumption check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateAttempt
		}
	}

	now := l.now()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: in.CustomerID,
		TalentID:   in.TalentID,

		SubtotalCents:      quote.SubtotalCents(),
		AdminFeeCents:      quote.AdminFeeCents(),
		CharityCents:       quote.CharityCents(),
		DiscountCents:      quote.DiscountCents(),
		ProcessingFeeCents: quote.ProcessingFeeCents(),
		TotalCents:         quote.TotalCents(),
		AmountCents:        quote.AmountCents(),

		PaymentTransactionID:  transactionID,
		PaymentOutcomePayload: payload,

		IsCorporate:    in.Pricing.IsCorporate,
		Status:         domain.OrderStatusPending,
		ApprovalStatus: domain.ApprovalStatusApproved,

		CreatedAt:           now,
		UpdatedAt:           now,
		FulfillmentDeadline: now.Add(time.Duration(in.FulfillmentHours) * time.Hour),
	}

	// Corporate orders wait for talent approval; their fulfillment clock
	// starts at approval time, not order time.
	if in.Pricing.IsCorporate {
		order.ApprovalStatus = domain.ApprovalStatusPending
		order.FulfillmentDeadline = domain.ApprovalDeadlinePlaceholder
	}

	if err := l.orders.CreateOrder(ctx, order); err != nil {
		// The attempt claim is older than the failed insert; without a
		// release every retry would be rejected as a duplicate.
		if !free {
			if rerr := l.cache.ReleaseAttempt(ctx, in.AttemptID); rerr != nil {
				log.WithError(rerr).WithField("attempt_id", in.AttemptID).
					Warn("failed to release attempt claim after insert failure")
			}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	log.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"talent_id":    order.TalentID,
		"amount_cents": order.AmountCents,
		"free":         free,
		"corporate":    order.IsCorporate,
	}).Info("order created")

	return &order, nil
}

func (l *OrderLedger) Get(ctx context.Context, id string) (*domain.Order, error) {
	return l.orders.GetOrder(ctx, id)
}

// Accept moves a pending order to in_progress. A corporate order cannot be
// accepted until its approval has been granted.
func (l *OrderLedger) Accept(ctx context.Context, id string) error {
	order, err := l.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.IsCorporate && order.ApprovalStatus != domain.ApprovalStatusApproved {
		return ErrApprovalPending
	}
	return l.orders.UpdateStatus(ctx, id, domain.OrderStatusPending, domain.OrderStatusInProgress)
}

// Approve grants a corporate order's approval and anchors the fulfillment
// deadline to the approval time plus the talent's fulfillment window.
func (l *OrderLedger) Approve(ctx context.Context, id string, fulfillmentHours int) error {
	order, err := l.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if !order.IsCorporate {
		return ErrNotCorporate
	}
	deadline := l.now().Add(time.Duration(fulfillmentHours) * time.Hour)
	return l.orders.SetApproval(ctx, id, domain.ApprovalStatusApproved, deadline)
}

// RejectApproval marks a corporate order's approval as rejected. Any refund
// of the paid amount goes through the settlement flow separately.
func (l *OrderLedger) RejectApproval(ctx context.Context, id string) error {
	order, err := l.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if !order.IsCorporate {
		return ErrNotCorporate
	}
	return l.orders.SetApproval(ctx, id, domain.ApprovalStatusRejected, domain.ApprovalDeadlinePlaceholder)
}

// Complete marks an in-progress order fulfilled (video delivered).
func (l *OrderLedger) Complete(ctx context.Context, id string) error {
	return l.orders.UpdateStatus(ctx, id, domain.OrderStatusInProgress, domain.OrderStatusCompleted)
}

// Cancel lets the customer withdraw a pending order once the fulfillment
// deadline has passed. A corporate order still awaiting approval carries the
// placeholder deadline and therefore can never be cancelled through here.
func (l *OrderLedger) Cancel(ctx context.Context, id string) error {
	order, err := l.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if l.now().Before(order.FulfillmentDeadline) {
		return ErrDeadlineNotPassed
	}
	return l.orders.UpdateStatus(ctx, id, domain.OrderStatusPending, domain.OrderStatusCancelled)
}

// Settle writes the terminal denial/refund state. Used by the settlement
// coordinator after the money question has been answered.
func (l *OrderLedger) Settle(ctx context.Context, id string, from, to domain.OrderStatus, audit domain.SettlementAudit) error {
	return l.orders.SettleOrder(ctx, id, from, to, audit)
}
