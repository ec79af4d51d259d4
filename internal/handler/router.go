package handler

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/cryptosim/internal/broadcast"
	"github.com/efreitasn/cryptosim/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation on routes that take a JSON body.
func NewRouter(
	tradingSvc *service.TradingService,
	webhookSvc *service.WebhookService,
	hub *broadcast.Hub,
	logger *slog.Logger,
) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))

	// Create handlers.
	tradeH := NewTradeHandler(tradingSvc)
	accountH := NewAccountHandler(tradingSvc)
	priceH := NewPriceHandler(tradingSvc)
	webhookH := NewWebhookHandler(webhookSvc)
	streamH := NewStreamHandler(hub, logger)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/prices", priceH.List)

		r.With(contentTypeJSON).Post("/buy", tradeH.Buy)
		r.With(contentTypeJSON).Post("/sell", tradeH.Sell)

		r.Get("/transactions", accountH.History)
		r.Get("/balance", accountH.Balance)
		r.Get("/holdings", accountH.Holdings)
		r.Get("/profit-loss", accountH.ProfitLoss)
		r.Get("/equity", accountH.Equity)
		r.Post("/reset", accountH.Reset)
	})

	// Webhook routes.
	r.With(contentTypeJSON).Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	// Live price stream.
	r.Get("/ws/prices", streamH.Prices)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
