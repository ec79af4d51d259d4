package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/store"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	domain.EventTradeExecuted: true,
	domain.EventAccountReset:  true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
	logger *slog.Logger
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, webhookTimeout time.Duration, logger *slog.Logger) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: trade.executed, account.reset",
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))

	for _, event := range events {
		stored, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.New().String(),
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, stored)
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions.
func (s *WebhookService) List() []*domain.Webhook {
	return s.store.List()
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// tradeExecutedPayload is the JSON payload for trade.executed webhooks.
type tradeExecutedPayload struct {
	Event     string            `json:"event"`
	Timestamp string            `json:"timestamp"`
	Data      tradeExecutedData `json:"data"`
}

type tradeExecutedData struct {
	TransactionID string          `json:"transaction_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// accountResetPayload is the JSON payload for account.reset webhooks.
type accountResetPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      accountResetData `json:"data"`
}

type accountResetData struct {
	Balance decimal.Decimal `json:"balance"`
}

// DispatchTradeExecuted dispatches a trade.executed webhook notification.
// Fire-and-forget: delivery errors are logged and otherwise ignored.
func (s *WebhookService) DispatchTradeExecuted(tx *domain.Transaction) {
	wh := s.store.GetByEvent(domain.EventTradeExecuted)
	if wh == nil {
		return
	}

	payload := tradeExecutedPayload{
		Event:     domain.EventTradeExecuted,
		Timestamp: tx.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: tradeExecutedData{
			TransactionID: tx.ID,
			Symbol:        tx.Symbol,
			Side:          string(tx.Side),
			Amount:        tx.Amount,
			Price:         tx.UnitPrice,
			TotalValue:    tx.TotalValue,
		},
	}

	go s.deliver(wh, domain.EventTradeExecuted, payload)
}

// DispatchAccountReset dispatches an account.reset webhook notification.
func (s *WebhookService) DispatchAccountReset(balance decimal.Decimal) {
	wh := s.store.GetByEvent(domain.EventAccountReset)
	if wh == nil {
		return
	}

	payload := accountResetPayload{
		Event:     domain.EventAccountReset,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      accountResetData{Balance: balance},
	}

	go s.deliver(wh, domain.EventAccountReset, payload)
}

// deliver sends the webhook payload via HTTP POST with the required headers.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("delivery_id", deliveryID),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
}
