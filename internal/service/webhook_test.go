package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/store"
)

func newTestWebhookService() *WebhookService {
	return NewWebhookService(store.NewWebhookStore(), 5*time.Second, nil)
}

// --- Upsert tests ---

func TestUpsert_Success_NewSubscriptions(t *testing.T) {
	svc := newTestWebhookService()

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://example.com/hooks",
		Events: []string{"trade.executed", "account.reset"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for new subscriptions")
	}
	if len(webhooks) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(webhooks))
	}
	if webhooks[0].Event != "trade.executed" {
		t.Errorf("got event %q, want %q", webhooks[0].Event, "trade.executed")
	}
	if webhooks[1].Event != "account.reset" {
		t.Errorf("got event %q, want %q", webhooks[1].Event, "account.reset")
	}
	if webhooks[0].WebhookID == "" || webhooks[0].WebhookID == webhooks[1].WebhookID {
		t.Error("expected distinct non-empty webhook IDs")
	}
}

func TestUpsert_Success_UpdateExistingURL(t *testing.T) {
	svc := newTestWebhookService()

	first, _, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://example.com/old",
		Events: []string{"trade.executed"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, created, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://example.com/new",
		Events: []string{"trade.executed"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false when updating URL")
	}
	if second[0].WebhookID != first[0].WebhookID {
		t.Errorf("webhook_id changed from %q to %q", first[0].WebhookID, second[0].WebhookID)
	}
	if second[0].URL != "https://example.com/new" {
		t.Errorf("got URL %q, want updated URL", second[0].URL)
	}
}

func TestUpsert_Success_MixNewAndExisting(t *testing.T) {
	svc := newTestWebhookService()

	svc.Upsert(UpsertWebhookRequest{URL: "https://example.com/hooks", Events: []string{"trade.executed"}})

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://example.com/hooks",
		Events: []string{"trade.executed", "account.reset"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true when at least one subscription is new")
	}
	if len(webhooks) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(webhooks))
	}
}

func TestUpsert_Success_DeduplicateEvents(t *testing.T) {
	svc := newTestWebhookService()

	webhooks, _, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://example.com/hooks",
		Events: []string{"trade.executed", "trade.executed"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(webhooks) != 1 {
		t.Fatalf("got %d webhooks, want 1", len(webhooks))
	}
}

func TestUpsert_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     UpsertWebhookRequest
		wantMsg string
	}{
		{"empty url", UpsertWebhookRequest{Events: []string{"trade.executed"}}, "url is required"},
		{"http scheme", UpsertWebhookRequest{URL: "http://example.com", Events: []string{"trade.executed"}}, "url must use https scheme"},
		{"too long", UpsertWebhookRequest{URL: "https://example.com/" + strings.Repeat("a", 2048), Events: []string{"trade.executed"}}, "url must be at most 2048 characters"},
		{"relative", UpsertWebhookRequest{URL: "/hooks", Events: []string{"trade.executed"}}, "url must be a valid absolute URL"},
		{"no events", UpsertWebhookRequest{URL: "https://example.com"}, "events must be a non-empty array"},
		{"unknown event", UpsertWebhookRequest{URL: "https://example.com", Events: []string{"order.expired"}}, "Unknown event type: order.expired. Must be one of: trade.executed, account.reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestWebhookService()
			_, _, err := svc.Upsert(tt.req)

			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Message != tt.wantMsg {
				t.Errorf("got message %q, want %q", ve.Message, tt.wantMsg)
			}
			if len(svc.List()) != 0 {
				t.Error("expected no subscriptions after validation failure")
			}
		})
	}
}

// --- List / Delete tests ---

func TestList_And_Delete(t *testing.T) {
	svc := newTestWebhookService()
	if got := svc.List(); len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}

	webhooks, _, _ := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://example.com/hooks",
		Events: []string{"trade.executed", "account.reset"},
	})
	if got := svc.List(); len(got) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(got))
	}

	if err := svc.Delete(webhooks[0].WebhookID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.List(); len(got) != 1 {
		t.Fatalf("expected 1 subscription after delete, got %d", len(got))
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc := newTestWebhookService()

	if err := svc.Delete("nonexistent"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

// --- Dispatch tests ---

type capturedRequest struct {
	payload map[string]interface{}
	headers http.Header
}

func newCaptureServer(t *testing.T) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 4)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		json.Unmarshal(body, &payload)
		requests <- capturedRequest{payload: payload, headers: r.Header.Clone()}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func waitRequest(t *testing.T, requests chan capturedRequest) capturedRequest {
	t.Helper()
	select {
	case req := <-requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
		return capturedRequest{}
	}
}

func TestDispatchTradeExecuted_SendsCorrectPayload(t *testing.T) {
	server, requests := newCaptureServer(t)

	ws := store.NewWebhookStore()
	svc := NewWebhookService(ws, 5*time.Second, nil)
	svc.client = server.Client()

	ws.Upsert(&domain.Webhook{
		WebhookID: "wh-1",
		Event:     "trade.executed",
		URL:       server.URL + "/hooks",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})

	tx := domain.NewTransaction("01HX", "BTC", domain.SideBuy,
		decimal.RequireFromString("0.1"), decimal.RequireFromString("50000"),
		time.Date(2026, 2, 16, 16, 29, 0, 0, time.UTC))

	svc.DispatchTradeExecuted(tx)
	req := waitRequest(t, requests)

	if req.payload["event"] != "trade.executed" {
		t.Errorf("got event %v, want trade.executed", req.payload["event"])
	}
	if req.payload["timestamp"] != "2026-02-16T16:29:00Z" {
		t.Errorf("got timestamp %v", req.payload["timestamp"])
	}
	data, ok := req.payload["data"].(map[string]interface{})
	if !ok {
		t.Fatal("expected data to be a map")
	}
	if data["transaction_id"] != "01HX" {
		t.Errorf("got transaction_id %v, want 01HX", data["transaction_id"])
	}
	if data["side"] != "BUY" {
		t.Errorf("got side %v, want BUY", data["side"])
	}
	if data["total_value"] != "5000" {
		t.Errorf("got total_value %v, want \"5000\"", data["total_value"])
	}

	h := req.headers
	if h.Get("X-Webhook-Id") != "wh-1" {
		t.Errorf("got X-Webhook-Id %q, want %q", h.Get("X-Webhook-Id"), "wh-1")
	}
	if h.Get("X-Event-Type") != "trade.executed" {
		t.Errorf("got X-Event-Type %q, want %q", h.Get("X-Event-Type"), "trade.executed")
	}
	if h.Get("X-Delivery-Id") == "" {
		t.Error("expected X-Delivery-Id header to be set")
	}
	if h.Get("Content-Type") != "application/json" {
		t.Errorf("got Content-Type %q, want %q", h.Get("Content-Type"), "application/json")
	}
}

func TestDispatchAccountReset_SendsCorrectPayload(t *testing.T) {
	server, requests := newCaptureServer(t)

	ws := store.NewWebhookStore()
	svc := NewWebhookService(ws, 5*time.Second, nil)
	svc.client = server.Client()

	ws.Upsert(&domain.Webhook{
		WebhookID: "wh-reset",
		Event:     "account.reset",
		URL:       server.URL + "/hooks",
	})

	svc.DispatchAccountReset(decimal.NewFromInt(10000))
	req := waitRequest(t, requests)

	if req.payload["event"] != "account.reset" {
		t.Errorf("got event %v, want account.reset", req.payload["event"])
	}
	data, _ := req.payload["data"].(map[string]interface{})
	if data["balance"] != "10000" {
		t.Errorf("got balance %v, want \"10000\"", data["balance"])
	}
	if req.headers.Get("X-Event-Type") != "account.reset" {
		t.Errorf("got X-Event-Type %q", req.headers.Get("X-Event-Type"))
	}
}

func TestDispatch_NoSubscription_NoRequest(t *testing.T) {
	var mu sync.Mutex
	requestCount := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestCount++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := newTestWebhookService()
	svc.client = server.Client()

	tx := domain.NewTransaction("01HX", "BTC", domain.SideSell, decimal.NewFromInt(1), decimal.NewFromInt(1), time.Now())
	svc.DispatchTradeExecuted(tx)
	svc.DispatchAccountReset(decimal.NewFromInt(1))

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if requestCount != 0 {
		t.Errorf("got %d requests, want 0 (no subscriptions)", requestCount)
	}
}

func TestDispatch_ServerError_SilentlyIgnored(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ws := store.NewWebhookStore()
	svc := NewWebhookService(ws, 5*time.Second, nil)
	svc.client = server.Client()
	ws.Upsert(&domain.Webhook{WebhookID: "wh-err", Event: "trade.executed", URL: server.URL + "/hooks"})

	// Should not panic or return error; delivery is fire-and-forget.
	tx := domain.NewTransaction("01HX", "BTC", domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromInt(1), time.Now())
	svc.DispatchTradeExecuted(tx)
	time.Sleep(100 * time.Millisecond)
}
