package domain

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDenied     OrderStatus = "denied"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

type DeniedBy string

const (
	DeniedByAdmin  DeniedBy = "admin"
	DeniedByTalent DeniedBy = "talent"
)

// Valid reports whether the value is one of the known denial actors.
// The field lands in audit columns, so arbitrary input is rejected.
func (d DeniedBy) Valid() bool {
	return d == DeniedByAdmin || d == DeniedByTalent
}

// ApprovalDeadlinePlaceholder marks the fulfillment deadline of a corporate
// order that has not been approved yet. The real deadline is computed from
// the approval time, so this value must never feed due-date logic.
var ApprovalDeadlinePlaceholder = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

type Order struct {
	ID         string
	CustomerID string
	TalentID   string

	// Money fields are immutable after creation except RefundID and
	// RefundAmountCents, which are written exactly once at settlement.
	SubtotalCents      int64
	AdminFeeCents      int64
	CharityCents       int64
	DiscountCents      int64
	ProcessingFeeCents int64
	TotalCents         int64
	AmountCents        int64 // payout base; subtotal-derived when the charge was zero

	// PaymentTransactionID is empty for fully discounted or credit-covered
	// orders, which never touched the processor.
	PaymentTransactionID  string
	PaymentOutcomePayload json.RawMessage

	IsCorporate    bool
	Status         OrderStatus
	ApprovalStatus ApprovalStatus

	CreatedAt           time.Time
	UpdatedAt           time.Time
	FulfillmentDeadline time.Time
	DeniedAt            *time.Time

	DenialReason      string
	DeniedBy          DeniedBy
	RefundID          string
	RefundAmountCents int64
}

// Free reports whether the order never had money captured for it: no
// processor transaction, or a discount that covered the full amount.
// Refunding a free order is a status change only, never a processor call.
func (o *Order) Free() bool {
	return o.PaymentTransactionID == "" || o.DiscountCents >= o.AmountCents
}

// SettledStatus is the terminal status a denial settlement moves the order
// to: completed orders become refunded, everything else becomes denied.
func (o *Order) SettledStatus() OrderStatus {
	if o.Status == OrderStatusCompleted {
		return OrderStatusRefunded
	}
	return OrderStatusDenied
}

// SettlementAudit carries the fields written atomically with the terminal
// status transition of a denial or refund.
type SettlementAudit struct {
	Reason            string
	DeniedBy          DeniedBy
	DeniedAt          time.Time
	RefundID          string
	RefundAmountCents int64
}

// ReconciliationRecord is the durable trace of a refund that succeeded at
// the processor while the matching order update failed. An operator resolves
// these by hand; they must never be retried as refunds.
type ReconciliationRecord struct {
	ID                string
	OrderID           string
	RefundID          string
	RefundAmountCents int64
	Reason            string
	FailureDetail     string
	CreatedAt         time.Time
}
