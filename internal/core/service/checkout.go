package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
	"github.com/jonathanbodnar/shoutout/internal/port"
)

const (
	defaultWatchdogTimeout = 8 * time.Second
	defaultVerifyTimeout   = 3 * time.Second
)

type attemptState int

const (
	stateIdle attemptState = iota
	stateAwaiting
	stateResolved
)

// CheckoutAttempt reconciles the payment widget's unreliable signal channels
// into exactly one PaymentOutcome. One instance exists per checkout attempt;
// nothing here is shared between attempts, so two concurrent checkouts
// cannot contaminate each other's timers or flags.
//
// The widget can report success through a primary event, alternately named
// events, a cross-frame broadcast, or not at all. Resolved is absorbing:
// the first signal to resolve wins, every later signal is logged and
// dropped, and the watchdog timer is torn down on resolution.
type CheckoutAttempt struct {
	ID string

	processor port.PaymentProcessor
	watchdog  time.Duration
	verify    time.Duration
	log       *log.Entry

	mu       sync.Mutex
	state    attemptState
	timer    *time.Timer
	resolved domain.PaymentOutcome

	outcome chan domain.PaymentOutcome
}

// AttemptOption tweaks timeouts, mostly for tests.
type AttemptOption func(*CheckoutAttempt)

func WithWatchdogTimeout(d time.Duration) AttemptOption {
	return func(a *CheckoutAttempt) { a.watchdog = d }
}

func WithVerifyTimeout(d time.Duration) AttemptOption {
	return func(a *CheckoutAttempt) { a.verify = d }
}

func NewCheckoutAttempt(processor port.PaymentProcessor, opts ...AttemptOption) *CheckoutAttempt {
	a := &CheckoutAttempt{
		ID:        uuid.NewString(),
		processor: processor,
		watchdog:  defaultWatchdogTimeout,
		verify:    defaultVerifyTimeout,
		outcome:   make(chan domain.PaymentOutcome, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = log.WithField("attempt_id", a.ID)
	return a
}

// Outcome delivers the terminal PaymentOutcome, exactly once.
func (a *CheckoutAttempt) Outcome() <-chan domain.PaymentOutcome {
	return a.outcome
}

// Resolved returns the outcome if the attempt has reached its terminal
// state. Used by callers that poll instead of blocking on Outcome.
func (a *CheckoutAttempt) Resolved() (domain.PaymentOutcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateResolved {
		return domain.PaymentOutcome{}, false
	}
	return a.resolved, true
}

// Signal feeds one raw widget signal into the state machine. Safe to call
// from any goroutine, any number of times, in any order.
func (a *CheckoutAttempt) Signal(ctx context.Context, sig domain.WidgetSignal) {
	switch sig.Kind {
	case domain.SignalSubmit:
		a.armWatchdog()

	case domain.SignalPrimarySuccess:
		a.armWatchdog()
		a.handlePrimary(ctx, sig)

	case domain.SignalAltSuccess:
		a.resolve(domain.PaymentOutcome{
			Result:        domain.OutcomeSuccess,
			TransactionID: sig.TransactionID,
			StatusCode:    sig.StatusCode,
			Source:        domain.SourceAlternate,
			RawPayload:    sig.RawPayload,
		})

	case domain.SignalBroadcast:
		if !sig.QualifiesAsSuccess() {
			a.log.WithField("status_code", sig.StatusCode).Debug("ignoring non-qualifying broadcast")
			return
		}
		a.resolve(domain.PaymentOutcome{
			Result:        domain.OutcomeSuccess,
			TransactionID: sig.TransactionID,
			StatusCode:    sig.StatusCode,
			Source:        domain.SourceBroadcast,
			RawPayload:    sig.RawPayload,
		})

	case domain.SignalFailure:
		a.resolve(domain.PaymentOutcome{
			Result:        domain.OutcomeFailure,
			TransactionID: sig.TransactionID,
			StatusCode:    sig.StatusCode,
			Source:        domain.SourceFailure,
			RawPayload:    sig.RawPayload,
		})

	default:
		a.log.WithField("kind", sig.Kind).Warn("unknown widget signal")
	}
}

// handlePrimary verifies the transaction best-effort and resolves. The
// widget already confirms capture client-side, so verification is advisory:
// only an explicit decline resolves failure; a verification error resolves
// success with the captured transaction id.
func (a *CheckoutAttempt) handlePrimary(ctx context.Context, sig domain.WidgetSignal) {
	if _, done := a.Resolved(); done {
		a.log.Debug("ignoring primary success after resolution")
		return
	}
	if sig.TransactionID == "" {
		a.resolve(domain.PaymentOutcome{
			Result:     domain.OutcomeSuccess,
			StatusCode: sig.StatusCode,
			Source:     domain.SourcePrimary,
			RawPayload: sig.RawPayload,
		})
		return
	}

	vctx, cancel := context.WithTimeout(ctx, a.verify)
	defer cancel()

	code, err := a.processor.Verify(vctx, sig.TransactionID)
	if err != nil {
		a.log.WithError(err).Warn("verification unavailable, resolving success optimistically")
		a.resolve(domain.PaymentOutcome{
			Result:        domain.OutcomeSuccess,
			TransactionID: sig.TransactionID,
			Source:        domain.SourcePrimary,
			RawPayload:    sig.RawPayload,
		})
		return
	}

	if domain.AcceptedStatus(code) {
		a.resolve(domain.PaymentOutcome{
			Result:        domain.OutcomeSuccess,
			TransactionID: sig.TransactionID,
			StatusCode:    code,
			Source:        domain.SourcePrimary,
			RawPayload:    sig.RawPayload,
		})
		return
	}

	a.resolve(domain.PaymentOutcome{
		Result:        domain.OutcomeFailure,
		TransactionID: sig.TransactionID,
		StatusCode:    code,
		Source:        domain.SourcePrimary,
		RawPayload:    sig.RawPayload,
	})
}

// armWatchdog starts the fallback timer on the first submit or success
// signal. If nothing resolves the attempt in time, a success outcome with a
// locally generated transaction id is synthesized: the processor has almost
// certainly captured the charge by then, and stranding the customer
// mid-checkout is the worse failure.
func (a *CheckoutAttempt) armWatchdog() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateResolved {
		return
	}
	a.state = stateAwaiting
	if a.timer == nil {
		a.timer = time.AfterFunc(a.watchdog, a.onWatchdog)
	}
}

func (a *CheckoutAttempt) onWatchdog() {
	a.log.Warn("no payment signal before watchdog expiry, synthesizing success")
	a.resolve(domain.PaymentOutcome{
		Result:          domain.OutcomeSuccess,
		TransactionID:   "local-" + uuid.NewString(),
		Source:          domain.SourceWatchdog,
		TimeoutFallback: true,
	})
}

// resolve enters the absorbing state. First caller wins; everyone else is
// a no-op. The timer is stopped here so a stale watchdog can never fire
// into a later attempt.
func (a *CheckoutAttempt) resolve(out domain.PaymentOutcome) {
	a.mu.Lock()
	if a.state == stateResolved {
		a.mu.Unlock()
		a.log.WithFields(log.Fields{
			"source": out.Source,
			"result": out.Result,
		}).Debug("ignoring signal after resolution")
		return
	}
	a.state = stateResolved
	a.resolved = out
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	a.log.WithFields(log.Fields{
		"result":           out.Result,
		"source":           out.Source,
		"timeout_fallback": out.TimeoutFallback,
	}).Info("checkout attempt resolved")
	a.outcome <- out
}
