package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
)

func waitOutcome(t *testing.T, a *CheckoutAttempt) domain.PaymentOutcome {
	t.Helper()
	select {
	case out := <-a.Outcome():
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome produced")
		return domain.PaymentOutcome{}
	}
}

func assertNoMoreOutcomes(t *testing.T, a *CheckoutAttempt) {
	t.Helper()
	select {
	case out := <-a.Outcome():
		t.Fatalf("unexpected second outcome: %+v", out)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCheckout_PrimarySuccessVerified(t *testing.T) {
	processor := &mockProcessor{verifyCode: "00"}
	attempt := NewCheckoutAttempt(processor)

	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalPrimarySuccess,
		TransactionID: "txn-1",
	})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeSuccess {
		t.Errorf("expected success, got %s", out.Result)
	}
	if out.TransactionID != "txn-1" {
		t.Errorf("expected txn-1, got %s", out.TransactionID)
	}
	if out.Source != domain.SourcePrimary {
		t.Errorf("expected primary source, got %s", out.Source)
	}
	if processor.verifyCalls != 1 {
		t.Errorf("expected 1 verify call, got %d", processor.verifyCalls)
	}
}

func TestCheckout_PrimaryVerifyDeclined(t *testing.T) {
	processor := &mockProcessor{verifyCode: "51"}
	attempt := NewCheckoutAttempt(processor)

	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalPrimarySuccess,
		TransactionID: "txn-1",
	})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeFailure {
		t.Errorf("expected failure for declined status, got %s", out.Result)
	}
	if out.StatusCode != "51" {
		t.Errorf("expected status code 51, got %s", out.StatusCode)
	}
}

func TestCheckout_VerifyErrorResolvesOptimistically(t *testing.T) {
	processor := &mockProcessor{verifyErr: errors.New("processor unreachable")}
	attempt := NewCheckoutAttempt(processor)

	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalPrimarySuccess,
		TransactionID: "txn-1",
	})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeSuccess {
		t.Errorf("verification error should not block settlement, got %s", out.Result)
	}
	if out.TransactionID != "txn-1" {
		t.Errorf("expected captured transaction id, got %s", out.TransactionID)
	}
}

func TestCheckout_AlternateResolvesWithoutVerification(t *testing.T) {
	processor := &mockProcessor{}
	attempt := NewCheckoutAttempt(processor)

	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalAltSuccess,
		TransactionID: "txn-alt",
	})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeSuccess || out.Source != domain.SourceAlternate {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if processor.verifyCalls != 0 {
		t.Errorf("alternate signals must not verify, got %d calls", processor.verifyCalls)
	}
}

func TestCheckout_BroadcastQualification(t *testing.T) {
	processor := &mockProcessor{}
	attempt := NewCheckoutAttempt(processor, WithWatchdogTimeout(time.Hour))

	// A broadcast with a declined code and no transaction id is noise.
	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:       domain.SignalBroadcast,
		StatusCode: "51",
	})
	if _, done := attempt.Resolved(); done {
		t.Fatal("non-qualifying broadcast must not resolve the attempt")
	}

	// One carrying a transaction id resolves success directly.
	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalBroadcast,
		TransactionID: "txn-bc",
	})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeSuccess || out.Source != domain.SourceBroadcast {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestCheckout_FailureSignalWins(t *testing.T) {
	processor := &mockProcessor{verifyCode: "00"}
	attempt := NewCheckoutAttempt(processor)

	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:       domain.SignalFailure,
		StatusCode: "05",
	})
	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeFailure {
		t.Fatalf("expected failure, got %s", out.Result)
	}

	// A success arriving after the failure is a no-op.
	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalPrimarySuccess,
		TransactionID: "txn-late",
	})
	assertNoMoreOutcomes(t, attempt)

	resolved, done := attempt.Resolved()
	if !done || resolved.Result != domain.OutcomeFailure {
		t.Errorf("resolution must be absorbing, got %+v", resolved)
	}
	if processor.verifyCalls != 0 {
		t.Errorf("late primary signal must not verify, got %d calls", processor.verifyCalls)
	}
}

func TestCheckout_WatchdogFallback(t *testing.T) {
	processor := &mockProcessor{}
	attempt := NewCheckoutAttempt(processor, WithWatchdogTimeout(50*time.Millisecond))

	attempt.Signal(context.Background(), domain.WidgetSignal{Kind: domain.SignalSubmit})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeSuccess {
		t.Errorf("expected synthesized success, got %s", out.Result)
	}
	if !out.TimeoutFallback {
		t.Error("expected timeout_fallback flag")
	}
	if !strings.HasPrefix(out.TransactionID, "local-") {
		t.Errorf("expected locally generated transaction id, got %s", out.TransactionID)
	}

	// A real signal after the fallback must not produce a second outcome.
	attempt.Signal(context.Background(), domain.WidgetSignal{
		Kind:          domain.SignalPrimarySuccess,
		TransactionID: "txn-real",
	})
	assertNoMoreOutcomes(t, attempt)
}

func TestCheckout_WatchdogClearedOnResolution(t *testing.T) {
	processor := &mockProcessor{}
	attempt := NewCheckoutAttempt(processor, WithWatchdogTimeout(50*time.Millisecond))

	attempt.Signal(context.Background(), domain.WidgetSignal{Kind: domain.SignalSubmit})
	attempt.Signal(context.Background(), domain.WidgetSignal{Kind: domain.SignalFailure})

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeFailure {
		t.Fatalf("expected failure, got %s", out.Result)
	}

	// The watchdog window passes; a stale timer firing would synthesize a
	// second outcome.
	time.Sleep(120 * time.Millisecond)
	assertNoMoreOutcomes(t, attempt)
}

func TestCheckout_SubmitAloneDoesNotResolve(t *testing.T) {
	processor := &mockProcessor{}
	attempt := NewCheckoutAttempt(processor, WithWatchdogTimeout(time.Hour))

	attempt.Signal(context.Background(), domain.WidgetSignal{Kind: domain.SignalSubmit})

	if _, done := attempt.Resolved(); done {
		t.Error("submit alone must not resolve the attempt")
	}
}

func TestCheckout_ConcurrentSignalsResolveOnce(t *testing.T) {
	processor := &mockProcessor{verifyCode: "00"}
	attempt := NewCheckoutAttempt(processor, WithWatchdogTimeout(time.Hour))

	kinds := []domain.SignalKind{
		domain.SignalPrimarySuccess,
		domain.SignalAltSuccess,
		domain.SignalBroadcast,
		domain.SignalAltSuccess,
		domain.SignalBroadcast,
		domain.SignalPrimarySuccess,
	}

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(k domain.SignalKind, n int) {
			defer wg.Done()
			attempt.Signal(context.Background(), domain.WidgetSignal{
				Kind:          k,
				TransactionID: "txn-race",
			})
		}(kind, i)
	}
	wg.Wait()

	out := waitOutcome(t, attempt)
	if out.Result != domain.OutcomeSuccess {
		t.Errorf("expected success, got %s", out.Result)
	}
	if out.TransactionID != "txn-race" {
		t.Errorf("expected txn-race, got %s", out.TransactionID)
	}
	assertNoMoreOutcomes(t, attempt)
}

func TestCheckout_DuplicateSignalsResolveOnce(t *testing.T) {
	processor := &mockProcessor{}
	attempt := NewCheckoutAttempt(processor)

	for i := 0; i < 5; i++ {
		attempt.Signal(context.Background(), domain.WidgetSignal{
			Kind:          domain.SignalAltSuccess,
			TransactionID: "txn-dup",
		})
	}

	out := waitOutcome(t, attempt)
	if out.TransactionID != "txn-dup" {
		t.Errorf("expected txn-dup, got %s", out.TransactionID)
	}
	assertNoMoreOutcomes(t, attempt)
}
