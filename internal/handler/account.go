package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/service"
)

// AccountHandler handles HTTP requests that read or reset the account.
type AccountHandler struct {
	tradingSvc *service.TradingService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(tradingSvc *service.TradingService) *AccountHandler {
	return &AccountHandler{tradingSvc: tradingSvc}
}

type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type holdingsResponse struct {
	Holdings map[string]decimal.Decimal `json:"holdings"`
}

type profitLossResponse struct {
	ProfitLoss map[string]decimal.Decimal `json:"profit_loss"`
}

// equitySnapshotResponse is one valuation of the account.
type equitySnapshotResponse struct {
	Time          string          `json:"time"`
	Balance       decimal.Decimal `json:"balance"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	Equity        decimal.Decimal `json:"equity"`
	Unpriced      []string        `json:"unpriced"`
}

// equityResponse is the JSON response for GET /api/equity.
type equityResponse struct {
	Current   equitySnapshotResponse   `json:"current"`
	Snapshots []equitySnapshotResponse `json:"snapshots"`
}

// History handles GET /api/transactions.
func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		mapAccountError(w, err)
		return
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		mapAccountError(w, err)
		return
	}

	txs, err := h.tradingSvc.GetHistory(service.HistoryQuery{
		Symbol: q.Get("symbol"),
		Side:   q.Get("side"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		mapAccountError(w, err)
		return
	}

	resp := transactionListResponse{Transactions: make([]transactionResponse, len(txs))}
	for i, tx := range txs {
		resp.Transactions[i] = buildTransactionResponse(tx)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Balance handles GET /api/balance.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, balanceResponse{Balance: h.tradingSvc.GetBalance()})
}

// Holdings handles GET /api/holdings.
func (h *AccountHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, holdingsResponse{Holdings: h.tradingSvc.GetHoldings()})
}

// ProfitLoss handles GET /api/profit-loss.
func (h *AccountHandler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, profitLossResponse{ProfitLoss: h.tradingSvc.GetProfitLoss()})
}

// Equity handles GET /api/equity.
func (h *AccountHandler) Equity(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.tradingSvc.GetEquity(r.Context())
	if err != nil {
		mapAccountError(w, err)
		return
	}

	resp := equityResponse{
		Current:   buildEquitySnapshotResponse(h.tradingSvc.GetValuation()),
		Snapshots: make([]equitySnapshotResponse, len(snaps)),
	}
	for i, s := range snaps {
		resp.Snapshots[i] = buildEquitySnapshotResponse(s)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Reset handles POST /api/reset. It takes no body.
func (h *AccountHandler) Reset(w http.ResponseWriter, r *http.Request) {
	message, err := h.tradingSvc.Reset(r.Context())
	if err != nil {
		mapAccountError(w, err)
		return
	}
	WriteSuccess(w, message)
}

func buildEquitySnapshotResponse(s *domain.EquitySnapshot) equitySnapshotResponse {
	unpriced := s.Unpriced
	if unpriced == nil {
		unpriced = []string{}
	}
	return equitySnapshotResponse{
		Time:          formatTime(s.Time),
		Balance:       s.Balance,
		HoldingsValue: s.HoldingsValue,
		Equity:        s.Equity,
		Unpriced:      unpriced,
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Message: name + " must be an integer"}
	}
	return n, nil
}

// mapAccountError maps domain errors to HTTP responses for account endpoints.
func mapAccountError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
