package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/cryptosim/internal/domain"
)

func drawPrice(t *rapid.T, label string) decimal.Decimal {
	return decimal.New(rapid.Int64Range(1, 10_000_000).Draw(t, label), -int32(rapid.IntRange(0, 4).Draw(t, label+"Exp")))
}

func drawAmount(t *rapid.T, label string) decimal.Decimal {
	return decimal.New(rapid.Int64Range(1, 100_000).Draw(t, label), -int32(rapid.IntRange(0, 8).Draw(t, label+"Exp")))
}

// Property: a successful buy debits exactly price × amount and credits
// exactly amount; a buy fails with InsufficientFunds iff the cost exceeds
// the balance, and leaves state untouched when it does.

func TestProperty_BuySettlesExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr, prices, l, _ := newTestTrader(t, "10000")
		price := drawPrice(t, "price")
		amount := drawAmount(t, "amount")
		prices.Update("BTC/USD", price)

		balanceBefore := l.Balance()
		heldBefore := l.Holdings()["BTC"]
		cost := price.Mul(amount)

		_, err := tr.Buy(context.Background(), "BTC", amount)

		if cost.GreaterThan(balanceBefore) {
			if !errors.Is(err, domain.ErrInsufficientFunds) {
				t.Fatalf("expected ErrInsufficientFunds for cost %s > %s, got %v", cost, balanceBefore, err)
			}
			if !l.Balance().Equal(balanceBefore) || len(l.Holdings()) != 0 {
				t.Fatal("failed buy mutated state")
			}
			return
		}

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !l.Balance().Equal(balanceBefore.Sub(cost)) {
			t.Fatalf("expected balance %s, got %s", balanceBefore.Sub(cost), l.Balance())
		}
		if !l.Holdings()["BTC"].Equal(heldBefore.Add(amount)) {
			t.Fatalf("expected holdings %s, got %s", heldBefore.Add(amount), l.Holdings()["BTC"])
		}
	})
}

// Property: a sell fails with InsufficientHoldings iff amount exceeds the
// held quantity, and a successful sell credits exactly price × amount.

func TestProperty_SellSettlesExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr, prices, l, _ := newTestTrader(t, "1000000000")
		prices.Update("ETH/USD", decimal.NewFromInt(1))
		held := drawAmount(t, "held")
		if _, err := tr.Buy(context.Background(), "ETH", held); err != nil {
			t.Fatalf("setup buy: %v", err)
		}

		price := drawPrice(t, "price")
		prices.Update("ETH/USD", price)
		amount := drawAmount(t, "amount")
		balanceBefore := l.Balance()

		_, err := tr.Sell(context.Background(), "ETH", amount)

		if amount.GreaterThan(held) {
			if !errors.Is(err, domain.ErrInsufficientHoldings) {
				t.Fatalf("expected ErrInsufficientHoldings for %s > %s, got %v", amount, held, err)
			}
			if !l.Balance().Equal(balanceBefore) || !l.Holdings()["ETH"].Equal(held) {
				t.Fatal("failed sell mutated state")
			}
			return
		}

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !l.Balance().Equal(balanceBefore.Add(price.Mul(amount))) {
			t.Fatalf("expected balance %s, got %s", balanceBefore.Add(price.Mul(amount)), l.Balance())
		}
		q, ok := l.Holdings()["ETH"]
		if amount.Equal(held) {
			if ok {
				t.Fatalf("expected ETH removed after full sell, still holding %s", q)
			}
		} else if !q.Equal(held.Sub(amount)) {
			t.Fatalf("expected holdings %s, got %s", held.Sub(amount), q)
		}
	})
}

// Property: buy followed by sell of the same amount at an unchanged price
// restores the balance and removes the symbol.

func TestProperty_BuySellRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr, prices, l, _ := newTestTrader(t, "1000000000000000")
		symbol := rapid.SampledFrom([]string{"BTC", "ETH/USD", "SOL"}).Draw(t, "symbol")
		prices.Update(domain.QuoteKeys(symbol)[1], drawPrice(t, "price"))
		prices.Update(symbol, drawPrice(t, "directPrice"))
		amount := drawAmount(t, "amount")

		before := l.Balance()
		if _, err := tr.Buy(context.Background(), symbol, amount); err != nil {
			t.Fatalf("Buy: %v", err)
		}
		if _, err := tr.Sell(context.Background(), symbol, amount); err != nil {
			t.Fatalf("Sell: %v", err)
		}

		if !l.Balance().Equal(before) {
			t.Fatalf("expected balance %s, got %s", before, l.Balance())
		}
		if _, ok := l.Holdings()[symbol]; ok {
			t.Fatalf("expected %s removed from holdings", symbol)
		}
	})
}

// Property: an amount outside the accepted scale or magnitude is rejected
// with ErrInvalidAmount on both sides and never reaches the ledger.

func TestProperty_OutOfRangeAmountRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr, prices, l, notifier := newTestTrader(t, "10000")
		prices.Update("BTC/USD", decimal.NewFromInt(1))

		coef := rapid.Int64Range(1, 1_000_000_000).Draw(t, "coef")
		var exp int32
		if rapid.Bool().Draw(t, "tiny") {
			// Below 10^-18 for any coefficient under 10^10.
			exp = rapid.Int32Range(-2147483648, -(domain.AmountScale + 10)).Draw(t, "exp")
		} else {
			exp = rapid.Int32Range(16, 2147483647).Draw(t, "exp")
		}
		amount := decimal.New(coef, exp)

		if _, err := tr.Buy(context.Background(), "BTC", amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("Buy(%de%d): expected ErrInvalidAmount, got %v", coef, exp, err)
		}
		if _, err := tr.Sell(context.Background(), "BTC", amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("Sell(%de%d): expected ErrInvalidAmount, got %v", coef, exp, err)
		}
		if !l.Balance().Equal(decimal.NewFromInt(10000)) || len(l.Holdings()) != 0 || notifier.count() != 0 {
			t.Fatal("rejected trade mutated state")
		}
	})
}
