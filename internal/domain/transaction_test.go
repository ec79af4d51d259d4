package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTransaction_TotalValue(t *testing.T) {
	tx := NewTransaction("01J", "BTC", SideBuy,
		decimal.RequireFromString("0.1"), decimal.NewFromInt(50000), time.Now())

	if !tx.TotalValue.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("TotalValue = %s, want 5000", tx.TotalValue)
	}
	if tx.Side != SideBuy {
		t.Errorf("Side = %s, want BUY", tx.Side)
	}
}

func TestSide_Valid(t *testing.T) {
	if !SideBuy.Valid() || !SideSell.Valid() {
		t.Error("BUY and SELL should be valid")
	}
	if Side("HOLD").Valid() {
		t.Error("HOLD should not be valid")
	}
}
