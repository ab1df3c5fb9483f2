package domain

import "time"

const (
	NotifyOrderCreated  = "order_created"
	NotifyOrderDenied   = "order_denied"
	NotifyOrderRefunded = "order_refunded"
)

// NotificationEvent is what triggers a fan-out: one event, up to three
// delivery channels. Delivery is at-least-once; channels are not
// deduplicated.
type NotificationEvent struct {
	Type     string
	UserID   string
	Title    string
	Body     string
	Metadata map[string]string
}

// Notification is the persisted in-app record.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Body      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Contact is the reachable addresses of a customer for the email and SMS
// channels. Either field may be empty.
type Contact struct {
	Email string
	Phone string
}
