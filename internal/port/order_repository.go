package port

import (
	"context"
	"errors"
	"time"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrStatusConflict means a conditional update matched no row: the
	// order has already moved past the expected status.
	ErrStatusConflict = errors.New("order status conflict")
)

type OrderRepository interface {
	// CreateOrder persists a new order row.
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order by id, ErrOrderNotFound when absent.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// UpdateStatus transitions an order conditionally on its current
	// status, ErrStatusConflict when the condition no longer holds.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error

	// SetApproval resolves a corporate order's pending approval and, on
	// approval, stamps the computed fulfillment deadline.
	SetApproval(ctx context.Context, id string, status domain.ApprovalStatus, deadline time.Time) error

	// SettleOrder atomically writes the terminal status and the denial
	// audit fields, conditional on the current status.
	SettleOrder(ctx context.Context, id string, from, to domain.OrderStatus, audit domain.SettlementAudit) error
}

// ReconciliationStore durably records refunds that have no matching order
// update, so operators can reconcile them by hand.
type ReconciliationStore interface {
	RecordUnreconciledRefund(ctx context.Context, rec domain.ReconciliationRecord) error
}
