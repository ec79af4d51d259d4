package handler

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/service"
)

// TradeHandler handles HTTP requests for buying and selling.
type TradeHandler struct {
	tradingSvc *service.TradingService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradingSvc *service.TradingService) *TradeHandler {
	return &TradeHandler{tradingSvc: tradingSvc}
}

// tradeRequest is the JSON request body for POST /api/buy and /api/sell.
// Amount accepts a JSON number or a numeric string.
type tradeRequest struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// transactionResponse is a single executed trade in a response.
type transactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	TotalValue    decimal.Decimal `json:"total_value"`
	ExecutedAt    string          `json:"executed_at"`
}

// tradeResponse is the JSON response for a successful buy or sell.
type tradeResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Transaction transactionResponse `json:"transaction"`
}

// Buy handles POST /api/buy.
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	receipt, err := h.tradingSvc.Buy(r.Context(), service.TradeRequest{
		Symbol: req.Symbol,
		Amount: req.Amount,
	})
	if err != nil {
		mapTradeError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradeResponse{
		Success:     true,
		Message:     receipt.Message,
		Transaction: buildTransactionResponse(receipt.Transaction),
	})
}

// Sell handles POST /api/sell.
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	receipt, err := h.tradingSvc.Sell(r.Context(), service.TradeRequest{
		Symbol: req.Symbol,
		Amount: req.Amount,
	})
	if err != nil {
		mapTradeError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradeResponse{
		Success:     true,
		Message:     receipt.Message,
		Transaction: buildTransactionResponse(receipt.Transaction),
	})
}

func buildTransactionResponse(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: tx.ID,
		Symbol:        tx.Symbol,
		Side:          string(tx.Side),
		Amount:        tx.Amount,
		Price:         tx.UnitPrice,
		TotalValue:    tx.TotalValue,
		ExecutedAt:    formatTime(tx.ExecutedAt),
	}
}

// mapTradeError maps domain errors to HTTP responses for trade endpoints.
// Rejected trades carry their user-facing text as the message.
func mapTradeError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		WriteError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, domain.ErrSymbolUnavailable):
		WriteError(w, http.StatusNotFound, "symbol_unavailable", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusBadRequest, "insufficient_funds", err.Error())
	case errors.Is(err, domain.ErrInsufficientHoldings):
		WriteError(w, http.StatusBadRequest, "insufficient_holdings", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
