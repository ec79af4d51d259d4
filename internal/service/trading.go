package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/engine"
	"github.com/efreitasn/cryptosim/internal/ledger"
)

// MaxHistoryLimit caps the page size of GetHistory.
const MaxHistoryLimit = 1000

// ResetNotifier is told about every account reset.
type ResetNotifier interface {
	DispatchAccountReset(balance decimal.Decimal)
}

// TradeRequest represents the input for a buy or sell.
type TradeRequest struct {
	Symbol string
	Amount decimal.Decimal
}

// HistoryQuery represents the input for listing transactions.
type HistoryQuery struct {
	Symbol string
	Side   string
	Offset int
	Limit  int
}

// TradingService is the request-facing surface of the simulator.
type TradingService struct {
	prices   *engine.PriceCache
	trader   *engine.Trader
	ledger   *ledger.Ledger
	notifier ResetNotifier
}

// NewTradingService creates a new TradingService with the given dependencies.
// notifier may be nil.
func NewTradingService(
	prices *engine.PriceCache,
	trader *engine.Trader,
	l *ledger.Ledger,
	notifier ResetNotifier,
) *TradingService {
	return &TradingService{
		prices:   prices,
		trader:   trader,
		ledger:   l,
		notifier: notifier,
	}
}

// GetPrices returns the current price snapshot.
func (s *TradingService) GetPrices() map[string]decimal.Decimal {
	return s.prices.Snapshot()
}

// Buy validates the request and executes a market buy.
func (s *TradingService) Buy(ctx context.Context, req TradeRequest) (*engine.Receipt, error) {
	if err := validateTrade(req); err != nil {
		return nil, err
	}
	return s.trader.Buy(ctx, req.Symbol, req.Amount)
}

// Sell validates the request and executes a market sell.
func (s *TradingService) Sell(ctx context.Context, req TradeRequest) (*engine.Receipt, error) {
	if err := validateTrade(req); err != nil {
		return nil, err
	}
	return s.trader.Sell(ctx, req.Symbol, req.Amount)
}

// validateTrade checks request shape. Amount bounds are enforced by the
// trader so that every caller gets them.
func validateTrade(req TradeRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return &domain.ValidationError{Message: "symbol is required"}
	}
	return nil
}

// GetHistory returns transactions in execution order.
func (s *TradingService) GetHistory(q HistoryQuery) ([]*domain.Transaction, error) {
	side := domain.Side(strings.ToUpper(q.Side))
	if side != "" && !side.Valid() {
		return nil, &domain.ValidationError{
			Message: "Unknown side: " + q.Side + ". Must be one of: BUY, SELL",
		}
	}
	if q.Offset < 0 {
		return nil, &domain.ValidationError{Message: "offset must be non-negative"}
	}
	if q.Limit < 0 || q.Limit > MaxHistoryLimit {
		return nil, &domain.ValidationError{Message: "limit must be between 0 and 1000"}
	}

	return s.ledger.History(ledger.HistoryFilter{
		Symbol: q.Symbol,
		Side:   side,
		Offset: q.Offset,
		Limit:  q.Limit,
	}), nil
}

// GetBalance returns the current cash balance.
func (s *TradingService) GetBalance() decimal.Decimal {
	return s.ledger.Balance()
}

// GetHoldings returns the quantity held per symbol.
func (s *TradingService) GetHoldings() map[string]decimal.Decimal {
	return s.ledger.Holdings()
}

// GetProfitLoss returns realized profit or loss per symbol.
func (s *TradingService) GetProfitLoss() map[string]decimal.Decimal {
	return s.ledger.ProfitLoss()
}

// Reset restores the initial balance and clears holdings and history.
func (s *TradingService) Reset(ctx context.Context) (string, error) {
	if err := s.ledger.Reset(ctx); err != nil {
		return "", err
	}
	initial := s.ledger.InitialBalance()
	if s.notifier != nil {
		s.notifier.DispatchAccountReset(initial)
	}
	return "Account has been reset to the initial balance of $" + domain.FormatUSD(initial), nil
}

// GetEquity returns recorded equity snapshots, oldest first.
func (s *TradingService) GetEquity(ctx context.Context) ([]*domain.EquitySnapshot, error) {
	return s.ledger.Equity(ctx)
}

// GetValuation values the account against the current prices without
// recording it.
func (s *TradingService) GetValuation() *domain.EquitySnapshot {
	return s.ledger.Valuation(s.prices.Snapshot())
}
