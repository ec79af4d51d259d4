// Package ledger owns the simulated account: its balance, holdings, and
// transaction history, mutated as one consistency unit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/id"
	"github.com/efreitasn/cryptosim/internal/store"
)

// ErrInvalidSettlement is returned when a plan produces a settlement that
// would break the account invariants. It indicates a programming error.
var ErrInvalidSettlement = errors.New("invalid settlement")

// View is a read-only view of the account handed to a Plan while the
// ledger lock is held.
type View struct {
	account *domain.Account
}

// Balance returns the current cash balance.
func (v View) Balance() decimal.Decimal { return v.account.Balance }

// Quantity returns the held quantity of symbol, or zero.
func (v View) Quantity(symbol string) decimal.Decimal { return v.account.Quantity(symbol) }

// Settlement is the atomic change a successful trade applies.
type Settlement struct {
	Symbol        string
	BalanceDelta  decimal.Decimal
	HoldingsDelta decimal.Decimal
	Transaction   *domain.Transaction
}

// Plan validates a trade against the current account and returns the
// settlement to apply, or a typed domain error to reject it.
type Plan func(View) (Settlement, error)

// HistoryFilter narrows History. Zero values match everything; Limit 0
// means no limit.
type HistoryFilter struct {
	Symbol string
	Side   domain.Side
	Offset int
	Limit  int
}

// Ledger serializes every account mutation behind one mutex.
type Ledger struct {
	mu      sync.RWMutex
	store   store.Store
	initial decimal.Decimal
	account *domain.Account
	history *btree.BTreeG[*domain.Transaction] // ordered by ID
	logger  *slog.Logger
	now     func() time.Time
}

func newHistory() *btree.BTreeG[*domain.Transaction] {
	return btree.NewG(32, func(a, b *domain.Transaction) bool { return a.ID < b.ID })
}

// Open loads the account and its history from st. When st holds no
// account yet, one is created with initialBalance.
func Open(ctx context.Context, st store.Store, initialBalance decimal.Decimal, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	account, err := st.LoadAccount(ctx)
	if errors.Is(err, domain.ErrAccountNotFound) {
		account = domain.NewAccount(initialBalance)
		if err := st.Reset(ctx, account); err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		logger.Info("account created", slog.String("balance", initialBalance.String()))
	} else if err != nil {
		return nil, err
	}

	txs, err := st.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	history := newHistory()
	for _, tx := range txs {
		history.ReplaceOrInsert(tx)
	}
	if last, ok := history.Max(); ok {
		// New trades must sort after stored ones even if the clock is behind.
		id.Observe(last.ID)
	}

	return &Ledger{
		store:   st,
		initial: initialBalance,
		account: account,
		history: history,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// InitialBalance returns the balance the account starts with and is reset to.
func (l *Ledger) InitialBalance() decimal.Decimal {
	return l.initial
}

// Balance returns the current cash balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account.Balance
}

// Holdings returns a copy of the holdings map.
func (l *Ledger) Holdings() map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account.Clone().Holdings
}

// Account returns a copy of the account.
func (l *Ledger) Account() *domain.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.account.Clone()
}

// History returns transactions in insertion order, narrowed by f.
func (l *Ledger) History(f HistoryFilter) []*domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*domain.Transaction, 0)
	skipped := 0
	l.history.Ascend(func(tx *domain.Transaction) bool {
		if f.Symbol != "" && tx.Symbol != f.Symbol {
			return true
		}
		if f.Side != "" && tx.Side != f.Side {
			return true
		}
		if skipped < f.Offset {
			skipped++
			return true
		}
		result = append(result, tx)
		return f.Limit <= 0 || len(result) < f.Limit
	})
	return result
}

// ApplyTrade runs plan against the account and applies the settlement it
// returns. Validation, mutation, and persistence happen under one lock, so
// concurrent trades never validate against stale state. A trade is not
// cancellable once started: ctx cancellation does not abort the commit.
func (l *Ledger) ApplyTrade(ctx context.Context, plan Plan) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := plan(View{account: l.account})
	if err != nil {
		return nil, err
	}
	if s.Transaction == nil || s.Symbol == "" {
		return nil, ErrInvalidSettlement
	}

	if l.account.Quantity(s.Symbol).Add(s.HoldingsDelta).Sign() < 0 {
		return nil, ErrInvalidSettlement
	}

	next := l.account.Clone()
	next.Balance = next.Balance.Add(s.BalanceDelta)
	next.AdjustHolding(s.Symbol, s.HoldingsDelta)
	next.UpdatedAt = s.Transaction.ExecutedAt
	if next.Balance.Sign() < 0 {
		return nil, ErrInvalidSettlement
	}

	if err := l.store.CommitTrade(context.WithoutCancel(ctx), next, s.Transaction); err != nil {
		l.logger.Error("trade commit failed",
			slog.String("transaction_id", s.Transaction.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("commit trade: %w", err)
	}

	l.account = next
	l.history.ReplaceOrInsert(s.Transaction)

	l.logger.Debug("trade committed",
		slog.String("transaction_id", s.Transaction.ID),
		slog.String("symbol", s.Symbol),
		slog.String("side", string(s.Transaction.Side)),
		slog.String("balance", next.Balance.String()),
	)
	return s.Transaction, nil
}

// Reset restores the initial balance and clears holdings, history, and
// equity snapshots in one step. Calling it repeatedly is harmless.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fresh := domain.NewAccount(l.initial)
	fresh.UpdatedAt = l.now()
	if err := l.store.Reset(context.WithoutCancel(ctx), fresh); err != nil {
		return fmt.Errorf("reset account: %w", err)
	}

	l.account = fresh
	l.history.Clear(false)

	l.logger.Info("account reset", slog.String("balance", l.initial.String()))
	return nil
}

// ProfitLoss returns, for every symbol bought at least once, the sum of
// its SELL totals minus the sum of its BUY totals. It is recomputed from
// the full history on every call.
func (l *Ledger) ProfitLoss() map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bought := make(map[string]bool)
	net := make(map[string]decimal.Decimal)
	l.history.Ascend(func(tx *domain.Transaction) bool {
		switch tx.Side {
		case domain.SideBuy:
			bought[tx.Symbol] = true
			net[tx.Symbol] = net[tx.Symbol].Sub(tx.TotalValue)
		case domain.SideSell:
			net[tx.Symbol] = net[tx.Symbol].Add(tx.TotalValue)
		}
		return true
	})

	result := make(map[string]decimal.Decimal, len(bought))
	for symbol := range bought {
		result[symbol] = net[symbol]
	}
	return result
}

// Valuation values the account against prices, resolving each holding
// with domain.QuoteKeys. Holdings with no price are listed as unpriced.
func (l *Ledger) Valuation(prices map[string]decimal.Decimal) *domain.EquitySnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.valuation(prices)
}

func (l *Ledger) valuation(prices map[string]decimal.Decimal) *domain.EquitySnapshot {
	snap := &domain.EquitySnapshot{
		Time:          l.now(),
		Balance:       l.account.Balance,
		HoldingsValue: decimal.Zero,
	}
	for symbol, qty := range l.account.Holdings {
		price, ok := resolve(prices, symbol)
		if !ok {
			snap.Unpriced = append(snap.Unpriced, symbol)
			continue
		}
		snap.HoldingsValue = snap.HoldingsValue.Add(qty.Mul(price))
	}
	sort.Strings(snap.Unpriced)
	snap.Equity = snap.Balance.Add(snap.HoldingsValue)
	return snap
}

// RecordEquity values the account against prices and persists the snapshot.
func (l *Ledger) RecordEquity(ctx context.Context, prices map[string]decimal.Decimal) (*domain.EquitySnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := l.valuation(prices)
	if err := l.store.AppendEquity(ctx, snap); err != nil {
		return nil, fmt.Errorf("record equity: %w", err)
	}
	return snap, nil
}

// Equity returns the recorded snapshots, oldest first.
func (l *Ledger) Equity(ctx context.Context) ([]*domain.EquitySnapshot, error) {
	return l.store.ListEquity(ctx)
}

func resolve(prices map[string]decimal.Decimal, symbol string) (decimal.Decimal, bool) {
	for _, key := range domain.QuoteKeys(symbol) {
		if p, ok := prices[key]; ok {
			return p, true
		}
	}
	return decimal.Zero, false
}
