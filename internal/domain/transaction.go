package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether a transaction bought or sold.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Transaction is an immutable record of one executed trade.
// TotalValue is always Amount × UnitPrice.
type Transaction struct {
	ID         string // ULID, sorts in execution order
	Symbol     string
	Amount     decimal.Decimal
	UnitPrice  decimal.Decimal
	TotalValue decimal.Decimal
	Side       Side
	ExecutedAt time.Time
}

// NewTransaction builds a transaction, computing TotalValue from amount and price.
func NewTransaction(id, symbol string, side Side, amount, unitPrice decimal.Decimal, executedAt time.Time) *Transaction {
	return &Transaction{
		ID:         id,
		Symbol:     symbol,
		Amount:     amount,
		UnitPrice:  unitPrice,
		TotalValue: amount.Mul(unitPrice),
		Side:       side,
		ExecutedAt: executedAt,
	}
}
