package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/cryptosim/internal/domain"
	"github.com/efreitasn/cryptosim/internal/store"
)

// Property: holdings never contain zero or negative quantities, and the
// balance equals the initial balance plus the net of all settlements.

func TestProperty_SettlementsKeepLedgerConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l, err := Open(context.Background(), store.NewMemoryStore(), decimal.NewFromInt(1_000_000), nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}

		symbols := []string{"BTC", "ETH", "SOL"}
		expected := decimal.NewFromInt(1_000_000)
		n := rapid.IntRange(1, 30).Draw(t, "n")

		for i := 0; i < n; i++ {
			symbol := rapid.SampledFrom(symbols).Draw(t, "symbol")
			price := decimal.New(rapid.Int64Range(1, 100_000).Draw(t, "price"), -2)
			held := l.Holdings()[symbol]

			var trade *domain.Transaction
			at := time.Unix(int64(i), 0)
			id := fmt.Sprintf("%06d", i)
			if held.Sign() > 0 && rapid.Bool().Draw(t, "sell") {
				// Sell some or all of the position.
				amount := held
				if !rapid.Bool().Draw(t, "all") {
					amount = held.Div(decimal.NewFromInt(2))
				}
				trade = domain.NewTransaction(id, symbol, domain.SideSell, amount, price, at)
				expected = expected.Add(trade.TotalValue)
			} else {
				amount := decimal.New(rapid.Int64Range(1, 1000).Draw(t, "amount"), -3)
				trade = domain.NewTransaction(id, symbol, domain.SideBuy, amount, price, at)
				if trade.TotalValue.GreaterThan(l.Balance()) {
					continue
				}
				expected = expected.Sub(trade.TotalValue)
			}

			if _, err := l.ApplyTrade(context.Background(), settle(trade)); err != nil {
				t.Fatalf("ApplyTrade: %v", err)
			}
		}

		if !l.Balance().Equal(expected) {
			t.Fatalf("expected balance %s, got %s", expected, l.Balance())
		}
		for symbol, q := range l.Holdings() {
			if q.Sign() <= 0 {
				t.Fatalf("holding %s has non-positive quantity %s", symbol, q)
			}
		}
	})
}

// Property: profit/loss per symbol equals the sum of SELL totals minus the
// sum of BUY totals, and history preserves insertion order.

func TestProperty_ProfitLossMatchesHistory(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l, err := Open(context.Background(), store.NewMemoryStore(), decimal.NewFromInt(1_000_000_000), nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}

		n := rapid.IntRange(0, 20).Draw(t, "n")
		var ids []string
		for i := 0; i < n; i++ {
			symbol := rapid.SampledFrom([]string{"BTC", "ETH"}).Draw(t, "symbol")
			amount := decimal.New(rapid.Int64Range(1, 100).Draw(t, "amount"), 0)
			price := decimal.New(rapid.Int64Range(1, 1000).Draw(t, "price"), 0)
			id := fmt.Sprintf("%06d", i)
			// Buy first so every sell is covered.
			buy := domain.NewTransaction(id+"a", symbol, domain.SideBuy, amount, price, time.Unix(0, 0))
			l.ApplyTrade(context.Background(), settle(buy))
			ids = append(ids, buy.ID)
			if rapid.Bool().Draw(t, "sell") {
				sellPrice := decimal.New(rapid.Int64Range(1, 1000).Draw(t, "sellPrice"), 0)
				sell := domain.NewTransaction(id+"b", symbol, domain.SideSell, amount, sellPrice, time.Unix(0, 0))
				l.ApplyTrade(context.Background(), settle(sell))
				ids = append(ids, sell.ID)
			}
		}

		history := l.History(HistoryFilter{})
		if len(history) != len(ids) {
			t.Fatalf("expected %d transactions, got %d", len(ids), len(history))
		}
		want := make(map[string]decimal.Decimal)
		for i, tx := range history {
			if tx.ID != ids[i] {
				t.Fatalf("history out of order at %d: %s != %s", i, tx.ID, ids[i])
			}
			if tx.Side == domain.SideBuy {
				want[tx.Symbol] = want[tx.Symbol].Sub(tx.TotalValue)
			} else {
				want[tx.Symbol] = want[tx.Symbol].Add(tx.TotalValue)
			}
		}

		got := l.ProfitLoss()
		if len(got) != len(want) {
			t.Fatalf("expected %d symbols, got %d", len(want), len(got))
		}
		for symbol, v := range want {
			if !got[symbol].Equal(v) {
				t.Fatalf("P/L for %s: expected %s, got %s", symbol, v, got[symbol])
			}
		}
	})
}

// Property: Reset twice yields the same state as Reset once.

func TestProperty_ResetIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := decimal.New(rapid.Int64Range(1, 1_000_000).Draw(t, "initial"), -2)
		l, err := Open(context.Background(), store.NewMemoryStore(), initial, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}

		trades := rapid.IntRange(0, 5).Draw(t, "trades")
		for i := 0; i < trades; i++ {
			buy := domain.NewTransaction(fmt.Sprintf("%03d", i), "BTC", domain.SideBuy,
				decimal.New(1, -4), decimal.NewFromInt(1), time.Unix(0, 0))
			if _, err := l.ApplyTrade(context.Background(), settle(buy)); err != nil {
				t.Fatalf("ApplyTrade: %v", err)
			}
		}

		resets := rapid.IntRange(1, 3).Draw(t, "resets")
		for i := 0; i < resets; i++ {
			if err := l.Reset(context.Background()); err != nil {
				t.Fatalf("Reset: %v", err)
			}
		}

		if !l.Balance().Equal(initial) {
			t.Fatalf("expected balance %s, got %s", initial, l.Balance())
		}
		if len(l.Holdings()) != 0 || len(l.History(HistoryFilter{})) != 0 {
			t.Fatal("expected empty holdings and history")
		}
	})
}
