package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrSymbolUnavailable    = errors.New("symbol_unavailable")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientHoldings = errors.New("insufficient_holdings")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
)

// TradeError is a rejected trade. Kind is one of the sentinel errors above
// and Message is the text shown to the user.
type TradeError struct {
	Kind    error
	Message string
}

func (e *TradeError) Error() string {
	return e.Message
}

func (e *TradeError) Unwrap() error {
	return e.Kind
}

// InvalidAmount rejects a non-positive trade amount.
func InvalidAmount() error {
	return &TradeError{Kind: ErrInvalidAmount, Message: "Amount must be greater than 0"}
}

// AmountOutOfRange rejects an amount with too many decimal places or too
// large a magnitude.
func AmountOutOfRange() error {
	return &TradeError{
		Kind:    ErrInvalidAmount,
		Message: fmt.Sprintf("Amount must have at most %d decimal places and not exceed %s", AmountScale, MaxAmount.String()),
	}
}

// SymbolUnavailable rejects a symbol with no quoted price.
func SymbolUnavailable(symbol string) error {
	return &TradeError{
		Kind:    ErrSymbolUnavailable,
		Message: fmt.Sprintf("No price available for %s", symbol),
	}
}

// InsufficientFunds rejects a purchase costing more than balance.
func InsufficientFunds(balance decimal.Decimal) error {
	return &TradeError{
		Kind:    ErrInsufficientFunds,
		Message: "Insufficient funds. Your balance is $" + FormatUSD(balance),
	}
}

// InsufficientHoldings rejects a sale of more than is held.
func InsufficientHoldings(symbol string) error {
	return &TradeError{
		Kind:    ErrInsufficientHoldings,
		Message: "Insufficient holdings of " + symbol,
	}
}

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
