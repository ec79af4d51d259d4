package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountID is the key of the single simulated account in persistent storage.
const AccountID int64 = 1

// Account is the simulated trading account: a cash balance and the
// quantity held per symbol. A symbol is present in Holdings only while its
// quantity is strictly positive.
type Account struct {
	Balance   decimal.Decimal
	Holdings  map[string]decimal.Decimal // symbol → quantity (> 0)
	UpdatedAt time.Time
}

// NewAccount creates an account with the given balance and no holdings.
func NewAccount(balance decimal.Decimal) *Account {
	return &Account{
		Balance:   balance,
		Holdings:  make(map[string]decimal.Decimal),
		UpdatedAt: time.Now(),
	}
}

// Quantity returns the held quantity for symbol, or zero if nothing is held.
func (a *Account) Quantity(symbol string) decimal.Decimal {
	q, ok := a.Holdings[symbol]
	if !ok {
		return decimal.Zero
	}
	return q
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	holdings := make(map[string]decimal.Decimal, len(a.Holdings))
	for symbol, q := range a.Holdings {
		holdings[symbol] = q
	}
	return &Account{
		Balance:   a.Balance,
		Holdings:  holdings,
		UpdatedAt: a.UpdatedAt,
	}
}

// AdjustHolding adds delta to the quantity held for symbol. A resulting
// quantity of zero or less removes the symbol entirely.
func (a *Account) AdjustHolding(symbol string, delta decimal.Decimal) {
	next := a.Quantity(symbol).Add(delta)
	if next.Sign() <= 0 {
		delete(a.Holdings, symbol)
		return
	}
	a.Holdings[symbol] = next
}
