package store

import (
	"context"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// Store persists the singleton account, its transaction history, and its
// equity snapshots. Implementations must apply CommitTrade and Reset
// atomically: either every row changes or none does.
type Store interface {
	// LoadAccount returns domain.ErrAccountNotFound when no account row exists.
	LoadAccount(ctx context.Context) (*domain.Account, error)
	// CommitTrade replaces the account row and appends tx in one unit.
	CommitTrade(ctx context.Context, account *domain.Account, tx *domain.Transaction) error
	// ListTransactions returns all transactions in execution order.
	ListTransactions(ctx context.Context) ([]*domain.Transaction, error)
	// Reset replaces the account row and deletes all transactions and
	// equity snapshots in one unit. It also creates the account row.
	Reset(ctx context.Context, account *domain.Account) error
	AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error
	// ListEquity returns snapshots oldest first.
	ListEquity(ctx context.Context) ([]*domain.EquitySnapshot, error)
	Close() error
}
