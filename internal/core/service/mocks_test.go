package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/port"
)

// Mock PaymentProcessor
type mockProcessor struct {
	mu sync.Mutex

	verifyCode  string
	verifyErr   error
	verifyCalls int

	refundResult domain.RefundResult
	refundErr    error
	refundCalls  int
	lastRefund   struct {
		TransactionID string
		AmountCents   int64
		Reason        string
	}
}

func (p *mockProcessor) Verify(ctx context.Context, transactionID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyCalls++
	return p.verifyCode, p.verifyErr
}

func (p *mockProcessor) Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (domain.RefundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refundCalls++
	p.lastRefund.TransactionID = transactionID
	p.lastRefund.AmountCents = amountCents
	p.lastRefund.Reason = reason
	return p.refundResult, p.refundErr
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	createErr error
	settleErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.orders[order.ID] = order
	return nil
}

func (r *mockOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, port.ErrOrderNotFound
	}
	copied := o
	return &copied, nil
}

func (r *mockOrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return port.ErrStatusConflict
	}
	o.Status = to
	r.orders[id] = o
	return nil
}

func (r *mockOrderRepo) SetApproval(ctx context.Context, id string, status domain.ApprovalStatus, deadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.ApprovalStatus != domain.ApprovalStatusPending {
		return port.ErrStatusConflict
	}
	o.ApprovalStatus = status
	o.FulfillmentDeadline = deadline
	r.orders[id] = o
	return nil
}

func (r *mockOrderRepo) SettleOrder(ctx context.Context, id string, from, to domain.OrderStatus, audit domain.SettlementAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settleErr != nil {
		return r.settleErr
	}
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return port.ErrStatusConflict
	}
	o.Status = to
	o.DenialReason = audit.Reason
	o.DeniedBy = audit.DeniedBy
	deniedAt := audit.DeniedAt
	o.DeniedAt = &deniedAt
	o.RefundID = audit.RefundID
	o.RefundAmountCents = audit.RefundAmountCents
	r.orders[id] = o
	return nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu       sync.Mutex
	consumed map[string][]byte
	released []string
	err      error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{consumed: make(map[string][]byte)}
}

func (c *mockCacheRepo) ConsumeAttempt(ctx context.Context, attemptID string, payload []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.consumed[attemptID]; ok {
		return false, nil
	}
	c.consumed[attemptID] = payload
	return true, nil
}

func (c *mockCacheRepo) ReleaseAttempt(ctx context.Context, attemptID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.consumed, attemptID)
	c.released = append(c.released, attemptID)
	return nil
}

// Mock ReconciliationStore
type mockReconStore struct {
	mu      sync.Mutex
	records []domain.ReconciliationRecord
	err     error
}

func (s *mockReconStore) RecordUnreconciledRefund(ctx context.Context, rec domain.ReconciliationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

// Mock notification channels
type mockNotifyStore struct {
	mu            sync.Mutex
	notifications []domain.Notification
	err           error
}

func (s *mockNotifyStore) CreateInApp(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.notifications = append(s.notifications, n)
	return nil
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *mockEmailSender) SendEmail(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

type mockSMSSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *mockSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

type mockContactResolver struct {
	contact domain.Contact
	err     error
}

func (r *mockContactResolver) Contact(ctx context.Context, userID string) (domain.Contact, error) {
	return r.contact, r.err
}
