package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/port"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, talent_id,
			subtotal_cents, admin_fee_cents, charity_cents, discount_cents,
			processing_fee_cents, total_cents, amount_cents,
			payment_transaction_id, payment_outcome_payload,
			is_corporate, status, approval_status,
			created_at, updated_at, fulfillment_deadline
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, o.TalentID,
		o.SubtotalCents, o.AdminFeeCents, o.CharityCents, o.DiscountCents,
		o.ProcessingFeeCents, o.TotalCents, o.AmountCents,
		nullString(o.PaymentTransactionID), nullBytes(o.PaymentOutcomePayload),
		o.IsCorporate, o.Status, o.ApprovalStatus,
		o.CreatedAt, o.UpdatedAt, o.FulfillmentDeadline,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o             domain.Order
		transactionID sql.NullString
		payload       []byte
		deniedAt      sql.NullTime
		denialReason  sql.NullString
		deniedBy      sql.NullString
		refundID      sql.NullString
	)

	err := m.db.QueryRowContext(ctx, `
		SELECT id, customer_id, talent_id,
			subtotal_cents, admin_fee_cents, charity_cents, discount_cents,
			processing_fee_cents, total_cents, amount_cents,
			payment_transaction_id, payment_outcome_payload,
			is_corporate, status, approval_status,
			created_at, updated_at, fulfillment_deadline,
			denied_at, denial_reason, denied_by, refund_id, refund_amount_cents
		FROM orders WHERE id = ?`, id,
	).Scan(
		&o.ID, &o.CustomerID, &o.TalentID,
		&o.SubtotalCents, &o.AdminFeeCents, &o.CharityCents, &o.DiscountCents,
		&o.ProcessingFeeCents, &o.TotalCents, &o.AmountCents,
		&transactionID, &payload,
		&o.IsCorporate, &o.Status, &o.ApprovalStatus,
		&o.CreatedAt, &o.UpdatedAt, &o.FulfillmentDeadline,
		&deniedAt, &denialReason, &deniedBy, &refundID, &o.RefundAmountCents,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.PaymentTransactionID = transactionID.String
	o.PaymentOutcomePayload = payload
	o.DenialReason = denialReason.String
	o.DeniedBy = domain.DeniedBy(deniedBy.String)
	o.RefundID = refundID.String
	if deniedAt.Valid {
		t := deniedAt.Time
		o.DeniedAt = &t
	}
	return &o, nil
}

func (m *MySQLAdapter) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrStatusConflict
	}
	return nil
}

func (m *MySQLAdapter) SetApproval(ctx context.Context, id string, status domain.ApprovalStatus, deadline time.Time) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET approval_status = ?, fulfillment_deadline = ?, updated_at = NOW()
		WHERE id = ? AND approval_status = ?`,
		status, deadline, id, domain.ApprovalStatusPending,
	)
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrStatusConflict
	}
	return nil
}

// SettleOrder is the last write of a denial: the terminal status and every
// audit field land in one conditional update, so a settlement that lost the
// race cannot partially overwrite a newer state.
func (m *MySQLAdapter) SettleOrder(ctx context.Context, id string, from, to domain.OrderStatus, audit domain.SettlementAudit) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, denial_reason = ?, denied_by = ?, denied_at = ?,
			refund_id = ?, refund_amount_cents = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		to, audit.Reason, audit.DeniedBy, audit.DeniedAt,
		nullString(audit.RefundID), audit.RefundAmountCents,
		id, from,
	)
	if err != nil {
		return fmt.Errorf("settle order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrStatusConflict
	}
	return nil
}

func (m *MySQLAdapter) RecordUnreconciledRefund(ctx context.Context, rec domain.ReconciliationRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO refund_reconciliation (
			id, order_id, refund_id, refund_amount_cents, reason, failure_detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OrderID, nullString(rec.RefundID), rec.RefundAmountCents,
		rec.Reason, rec.FailureDetail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reconciliation record: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CreateInApp(ctx context.Context, n domain.Notification) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, metadata, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Contact(ctx context.Context, userID string) (domain.Contact, error) {
	var email, phone sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT email, phone FROM customers WHERE id = ?`, userID,
	).Scan(&email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Contact{}, fmt.Errorf("customer %s not found", userID)
	}
	if err != nil {
		return domain.Contact{}, fmt.Errorf("query customer contact: %w", err)
	}
	return domain.Contact{Email: email.String, Phone: phone.String}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
