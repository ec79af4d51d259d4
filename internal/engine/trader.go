package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/id"
	"github.com/efreitasn/cryptosim/internal/ledger"
)

// TradeNotifier receives every committed trade. Implementations must not
// block; the engine calls it after the ledger lock is released.
type TradeNotifier interface {
	DispatchTradeExecuted(tx *domain.Transaction)
}

// Receipt is the result of a successful trade.
type Receipt struct {
	Transaction *domain.Transaction
	Message     string
}

// Trader executes market buys and sells for the simulated account at the
// last cached price.
type Trader struct {
	prices   *PriceCache
	ledger   *ledger.Ledger
	notifier TradeNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewTrader creates a Trader. notifier may be nil.
func NewTrader(prices *PriceCache, l *ledger.Ledger, notifier TradeNotifier, logger *slog.Logger) *Trader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trader{
		prices:   prices,
		ledger:   l,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Buy purchases amount of symbol, debiting price × amount from the balance.
func (t *Trader) Buy(ctx context.Context, symbol string, amount decimal.Decimal) (*Receipt, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	tx, err := t.ledger.ApplyTrade(ctx, func(acct ledger.View) (ledger.Settlement, error) {
		_, price, ok := t.prices.Resolve(symbol)
		if !ok {
			return ledger.Settlement{}, domain.SymbolUnavailable(symbol)
		}

		cost := price.Mul(amount)
		if cost.GreaterThan(acct.Balance()) {
			return ledger.Settlement{}, domain.InsufficientFunds(acct.Balance())
		}

		return ledger.Settlement{
			Symbol:        symbol,
			BalanceDelta:  cost.Neg(),
			HoldingsDelta: amount,
			Transaction:   t.newTransaction(symbol, domain.SideBuy, amount, price),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return t.complete(tx, fmt.Sprintf("Successfully bought %s %s for $%s",
		tx.Amount.String(), tx.Symbol, domain.FormatUSD(tx.TotalValue))), nil
}

// Sell disposes of amount of symbol, crediting price × amount to the balance.
// Selling the entire position removes the symbol from holdings.
func (t *Trader) Sell(ctx context.Context, symbol string, amount decimal.Decimal) (*Receipt, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	tx, err := t.ledger.ApplyTrade(ctx, func(acct ledger.View) (ledger.Settlement, error) {
		if acct.Quantity(symbol).LessThan(amount) {
			return ledger.Settlement{}, domain.InsufficientHoldings(symbol)
		}

		_, price, ok := t.prices.Resolve(symbol)
		if !ok {
			return ledger.Settlement{}, domain.SymbolUnavailable(symbol)
		}

		return ledger.Settlement{
			Symbol:        symbol,
			BalanceDelta:  price.Mul(amount),
			HoldingsDelta: amount.Neg(),
			Transaction:   t.newTransaction(symbol, domain.SideSell, amount, price),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return t.complete(tx, fmt.Sprintf("Successfully sold %s %s for $%s",
		tx.Amount.String(), tx.Symbol, domain.FormatUSD(tx.TotalValue))), nil
}

// checkAmount runs before the ledger lock is taken, so an unbounded amount
// never reaches decimal arithmetic.
func checkAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return domain.InvalidAmount()
	}
	if !domain.WithinPrecision(amount) {
		return domain.AmountOutOfRange()
	}
	return nil
}

// newTransaction runs under the ledger lock, so IDs follow commit order.
func (t *Trader) newTransaction(symbol string, side domain.Side, amount, price decimal.Decimal) *domain.Transaction {
	now := t.now()
	return domain.NewTransaction(id.New(now), symbol, side, amount, price, now)
}

func (t *Trader) complete(tx *domain.Transaction, message string) *Receipt {
	t.logger.Info("trade executed",
		slog.String("transaction_id", tx.ID),
		slog.String("side", string(tx.Side)),
		slog.String("symbol", tx.Symbol),
		slog.String("amount", tx.Amount.String()),
		slog.String("price", tx.UnitPrice.String()),
		slog.String("total", tx.TotalValue.String()),
	)

	if t.notifier != nil {
		t.notifier.DispatchTradeExecuted(tx)
	}

	return &Receipt{Transaction: tx, Message: message}
}
