package port

import (
	"context"

	"github.com/jonathanbodnar/shoutout/internal/core/domain"
)

// NotificationStore persists in-app notification records.
type NotificationStore interface {
	CreateInApp(ctx context.Context, n domain.Notification) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ContactResolver looks up the customer's reachable addresses. The account
// system itself is external; only this lookup is needed here.
type ContactResolver interface {
	Contact(ctx context.Context, userID string) (domain.Contact, error)
}
