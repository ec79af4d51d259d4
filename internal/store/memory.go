package store

import (
	"context"
	"sync"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// MemoryStore is a thread-safe in-memory Store. Contents are lost on exit.
type MemoryStore struct {
	mu           sync.RWMutex
	account      *domain.Account
	transactions []*domain.Transaction // chronological, append-only
	equity       []*domain.EquitySnapshot
}

// NewMemoryStore creates an empty MemoryStore with no account.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadAccount(_ context.Context) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return s.account.Clone(), nil
}

func (s *MemoryStore) CommitTrade(_ context.Context, account *domain.Account, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = account.Clone()
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Transaction, len(s.transactions))
	copy(result, s.transactions)
	return result, nil
}

func (s *MemoryStore) Reset(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = account.Clone()
	s.transactions = nil
	s.equity = nil
	return nil
}

func (s *MemoryStore) AppendEquity(_ context.Context, snap *domain.EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.equity = append(s.equity, snap)
	return nil
}

func (s *MemoryStore) ListEquity(_ context.Context) ([]*domain.EquitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.EquitySnapshot, len(s.equity))
	copy(result, s.equity)
	return result, nil
}

func (s *MemoryStore) Close() error { return nil }
