package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is a normalized price update from the upstream feed.
type PriceTick struct {
	Symbol     string
	Price      decimal.Decimal
	ReceivedAt time.Time
}

// EquitySnapshot is a point-in-time valuation of the account.
// Unpriced lists held symbols that had no quote when the snapshot was taken;
// they contribute nothing to HoldingsValue.
type EquitySnapshot struct {
	Time          time.Time
	Balance       decimal.Decimal
	HoldingsValue decimal.Decimal
	Equity        decimal.Decimal
	Unpriced      []string
}
