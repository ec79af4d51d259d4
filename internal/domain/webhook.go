package domain

import "time"

// Webhook event types.
const (
	EventTradeExecuted = "trade.executed"
	EventAccountReset  = "account.reset"
)

// Webhook represents a subscription to an event notification.
type Webhook struct {
	WebhookID string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
