package domain

import "encoding/json"

// SignalKind identifies one of the channels through which the embedded
// payment widget can report progress. Signals may arrive in any order, any
// number of times, or not at all.
type SignalKind string

const (
	SignalSubmit         SignalKind = "submit"
	SignalPrimarySuccess SignalKind = "payment_success"
	SignalAltSuccess     SignalKind = "payment_success_alt"
	SignalBroadcast      SignalKind = "broadcast"
	SignalFailure        SignalKind = "payment_failure"
)

// WidgetSignal is one raw event observed from the payment widget.
type WidgetSignal struct {
	Kind          SignalKind      `json:"kind"`
	TransactionID string          `json:"transaction_id,omitempty"`
	StatusCode    string          `json:"status_code,omitempty"`
	RawPayload    json.RawMessage `json:"payload,omitempty"`
}

type OutcomeResult string

const (
	OutcomeSuccess OutcomeResult = "success"
	OutcomeFailure OutcomeResult = "failure"
)

// OutcomeSource records which channel produced the terminal outcome.
type OutcomeSource string

const (
	SourcePrimary   OutcomeSource = "primary"
	SourceAlternate OutcomeSource = "alternate"
	SourceBroadcast OutcomeSource = "broadcast"
	SourceWatchdog  OutcomeSource = "watchdog"
	SourceFailure   OutcomeSource = "failure_signal"
)

// PaymentOutcome is the single terminal result of one checkout attempt.
// It is produced exactly once and consumed exactly once by order creation.
type PaymentOutcome struct {
	Result          OutcomeResult   `json:"result"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	StatusCode      string          `json:"status_code,omitempty"`
	Source          OutcomeSource   `json:"source"`
	TimeoutFallback bool            `json:"timeout_fallback,omitempty"`
	RawPayload      json.RawMessage `json:"payload,omitempty"`
}

// The processor reports exactly two codes for an approved capture; anything
// else is a decline.
const (
	statusApproved        = "00"
	statusApprovedPartial = "10"
)

func AcceptedStatus(code string) bool {
	return code == statusApproved || code == statusApprovedPartial
}

// QualifiesAsSuccess reports whether a broadcast message is trustworthy
// enough to resolve the attempt: it carries a transaction id, or its status
// code is accepted or absent.
func (s WidgetSignal) QualifiesAsSuccess() bool {
	return s.TransactionID != "" || s.StatusCode == "" || AcceptedStatus(s.StatusCode)
}

// RefundRequest is the validated command driving a denial or refund
// settlement. Reason is required before any side effect begins.
type RefundRequest struct {
	OrderID     string   `json:"order_id"`
	AmountCents int64    `json:"amount_cents,omitempty"` // 0 means full amount
	Reason      string   `json:"reason"`
	DeniedBy    DeniedBy `json:"denied_by"`
}

// RefundResult is the processor's answer to a refund call, or the synthetic
// zero-amount result used for free orders.
type RefundResult struct {
	Success     bool   `json:"success"`
	RefundID    string `json:"refund_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
}
