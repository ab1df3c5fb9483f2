package port

import (
	"context"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
)

// PaymentProcessor is the external processor API. Both calls are plain
// request/response; retries and optimistic fallbacks are the caller's
// decision. Refund is idempotent per transaction id on the processor side.
type PaymentProcessor interface {
	// Verify returns the processor's authoritative status code for a
	// transaction. Transport failures are propagated, never converted
	// into a status.
	Verify(ctx context.Context, transactionID string) (string, error)

	// Refund reverses a capture. amountCents of 0 requests a full refund.
	Refund(ctx context.Context, transactionID string, amountCents int64, reason string) (domain.RefundResult, error)
}
