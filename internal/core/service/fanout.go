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

const defaultChannelTimeout = 10 * time.Second

// ChannelPolicy selects which outbound channels an event type uses. The
// in-app record is always written.
type ChannelPolicy struct {
	Email bool
	SMS   bool
}

// DefaultChannelPolicies mirrors the product rules: settlement events reach
// every channel, bookkeeping events stay in-app.
var DefaultChannelPolicies = map[string]ChannelPolicy{
	domain.NotifyOrderCreated:  {},
	domain.NotifyOrderDenied:   {Email: true, SMS: true},
	domain.NotifyOrderRefunded: {Email: true, SMS: true},
}

// NotificationFanout delivers an event to the in-app store, email, and SMS.
// Dispatch never blocks the caller and channel failures never propagate:
// delivery is at-least-once and best-effort, failures are only logged.
type NotificationFanout struct {
	store    port.NotificationStore
	email    port.EmailSender
	sms      port.SMSSender
	contacts port.ContactResolver

	policies map[string]ChannelPolicy
	timeout  time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

func NewNotificationFanout(store port.NotificationStore, email port.EmailSender, sms port.SMSSender, contacts port.ContactResolver) *NotificationFanout {
	return &NotificationFanout{
		store:    store,
		email:    email,
		sms:      sms,
		contacts: contacts,
		policies: DefaultChannelPolicies,
		timeout:  defaultChannelTimeout,
		now:      time.Now,
	}
}

// Dispatch fans the event out and returns immediately. Each channel runs in
// its own goroutine with its own deadline.
func (f *NotificationFanout) Dispatch(event domain.NotificationEvent) {
	policy := f.policies[event.Type]

	logCtx := log.WithFields(log.Fields{
		"event_type": event.Type,
		"user_id":    event.UserID,
	})

	f.run(func(ctx context.Context) {
		n := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    event.UserID,
			Type:      event.Type,
			Title:     event.Title,
			Body:      event.Body,
			Metadata:  event.Metadata,
			CreatedAt: f.now(),
		}
		if err := f.store.CreateInApp(ctx, n); err != nil {
			logCtx.WithError(err).Error("in-app notification failed")
		}
	})

	if !policy.Email && !policy.SMS {
		return
	}

	f.run(func(ctx context.Context) {
		contact, err := f.contacts.Contact(ctx, event.UserID)
		if err != nil {
			logCtx.WithError(err).Error("contact lookup failed, skipping email and SMS")
			return
		}

		var inner sync.WaitGroup
		if policy.Email && contact.Email != "" {
			inner.Add(1)
			go func() {
				defer inner.Done()
				if err := f.email.SendEmail(ctx, contact.Email, event.Title, event.Body); err != nil {
					logCtx.WithError(err).Error("email notification failed")
				}
			}()
		}
		if policy.SMS && contact.Phone != "" {
			inner.Add(1)
			go func() {
				defer inner.Done()
				if err := f.sms.SendSMS(ctx, contact.Phone, event.Body); err != nil {
					logCtx.WithError(err).Error("sms notification failed")
				}
			}()
		}
		inner.Wait()
	})
}

func (f *NotificationFanout) run(fn func(ctx context.Context)) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every in-flight delivery has finished. Called on
// shutdown and in tests; the settlement path never waits.
func (f *NotificationFanout) Wait() {
	f.wg.Wait()
}
