package service

import (
	"errors"
	"testing"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
)

func TestDispatch_AllChannels(t *testing.T) {
	store := &mockNotifyStore{}
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	contacts := &mockContactResolver{contact: domain.Contact{Email: "c@example.com", Phone: "+15550100"}}
	fanout := NewNotificationFanout(store, email, sms, contacts)

	fanout.Dispatch(domain.NotificationEvent{
		Type:   domain.NotifyOrderDenied,
		UserID: "cust-1",
		Title:  "Your order was denied",
		Body:   "reason",
	})
	fanout.Wait()

	if len(store.notifications) != 1 {
		t.Errorf("expected 1 in-app record, got %d", len(store.notifications))
	}
	if len(email.sent) != 1 || email.sent[0] != "c@example.com" {
		t.Errorf("expected email to c@example.com, got %v", email.sent)
	}
	if len(sms.sent) != 1 || sms.sent[0] != "+15550100" {
		t.Errorf("expected sms to +15550100, got %v", sms.sent)
	}
}

func TestDispatch_InAppOnlyPolicy(t *testing.T) {
	store := &mockNotifyStore{}
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	contacts := &mockContactResolver{contact: domain.Contact{Email: "c@example.com", Phone: "+15550100"}}
	fanout := NewNotificationFanout(store, email, sms, contacts)

	fanout.Dispatch(domain.NotificationEvent{
		Type:   domain.NotifyOrderCreated,
		UserID: "cust-1",
		Title:  "Order placed",
	})
	fanout.Wait()

	if len(store.notifications) != 1 {
		t.Errorf("expected in-app record, got %d", len(store.notifications))
	}
	if len(email.sent) != 0 || len(sms.sent) != 0 {
		t.Errorf("bookkeeping events must stay in-app, got %d/%d", len(email.sent), len(sms.sent))
	}
}

func TestDispatch_ChannelFailuresAreIsolated(t *testing.T) {
	store := &mockNotifyStore{}
	email := &mockEmailSender{err: errors.New("smtp down")}
	sms := &mockSMSSender{}
	contacts := &mockContactResolver{contact: domain.Contact{Email: "c@example.com", Phone: "+15550100"}}
	fanout := NewNotificationFanout(store, email, sms, contacts)

	fanout.Dispatch(domain.NotificationEvent{
		Type:   domain.NotifyOrderDenied,
		UserID: "cust-1",
	})
	fanout.Wait()

	if len(store.notifications) != 1 {
		t.Error("in-app delivery must not be affected by the email failure")
	}
	if len(sms.sent) != 1 {
		t.Error("sms delivery must not be affected by the email failure")
	}
}

func TestDispatch_ContactLookupFailure(t *testing.T) {
	store := &mockNotifyStore{}
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	contacts := &mockContactResolver{err: errors.New("directory down")}
	fanout := NewNotificationFanout(store, email, sms, contacts)

	fanout.Dispatch(domain.NotificationEvent{
		Type:   domain.NotifyOrderDenied,
		UserID: "cust-1",
	})
	fanout.Wait()

	if len(store.notifications) != 1 {
		t.Error("the in-app record must be written even without contact info")
	}
	if len(email.sent) != 0 || len(sms.sent) != 0 {
		t.Error("no outbound delivery without a contact")
	}
}

func TestDispatch_MissingAddressesSkipped(t *testing.T) {
	store := &mockNotifyStore{}
	email := &mockEmailSender{}
	sms := &mockSMSSender{}
	contacts := &mockContactResolver{contact: domain.Contact{Email: "c@example.com"}}
	fanout := NewNotificationFanout(store, email, sms, contacts)

	fanout.Dispatch(domain.NotificationEvent{
		Type:   domain.NotifyOrderDenied,
		UserID: "cust-1",
	})
	fanout.Wait()

	if len(email.sent) != 1 {
		t.Errorf("expected email delivery, got %d", len(email.sent))
	}
	if len(sms.sent) != 0 {
		t.Errorf("no phone on file, expected no sms, got %d", len(sms.sent))
	}
}
