package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/service"
)

// PriceHandler serves the latest known prices.
type PriceHandler struct {
	tradingSvc *service.TradingService
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(tradingSvc *service.TradingService) *PriceHandler {
	return &PriceHandler{tradingSvc: tradingSvc}
}

type priceListResponse struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// List handles GET /api/prices.
func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, priceListResponse{Prices: h.tradingSvc.GetPrices()})
}
