package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/cryptosim/internal/domain"
)

// SQLiteStore persists the ledger in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadAccount(ctx context.Context) (*domain.Account, error) {
	acct := &domain.Account{Holdings: make(map[string]decimal.Decimal)}

	err := s.db.QueryRowContext(ctx,
		`SELECT balance, updated_at FROM accounts WHERE id = ?`, domain.AccountID,
	).Scan(&acct.Balance, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, amount FROM holdings WHERE account_id = ?`, domain.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol string
		var amount decimal.Decimal
		if err := rows.Scan(&symbol, &amount); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		acct.Holdings[symbol] = amount
	}
	return acct, rows.Err()
}

func (s *SQLiteStore) CommitTrade(ctx context.Context, account *domain.Account, t *domain.Transaction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := saveAccount(ctx, tx, account); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
			(id, account_id, symbol, amount, price, total, side, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, domain.AccountID, t.Symbol, t.Amount.String(), t.UnitPrice.String(),
			t.TotalValue.String(), string(t.Side), t.ExecutedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, amount, price, total, side, executed_at
		FROM transactions WHERE account_id = ? ORDER BY id`, domain.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Transaction, 0)
	for rows.Next() {
		var t domain.Transaction
		var side string
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Amount, &t.UnitPrice, &t.TotalValue, &side, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Side = domain.Side(side)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Reset(ctx context.Context, account *domain.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM transactions`,
			`DELETE FROM equity`,
		} {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return saveAccount(ctx, tx, account)
	})
}

func (s *SQLiteStore) AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO equity (time, balance, holdings_value, equity, unpriced)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Time.UTC(), snap.Balance.String(), snap.HoldingsValue.String(),
		snap.Equity.String(), strings.Join(snap.Unpriced, ","),
	)
	if err != nil {
		return fmt.Errorf("insert equity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEquity(ctx context.Context) ([]*domain.EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, balance, holdings_value, equity, unpriced FROM equity ORDER BY time, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list equity: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.EquitySnapshot, 0)
	for rows.Next() {
		var snap domain.EquitySnapshot
		var unpriced string
		if err := rows.Scan(&snap.Time, &snap.Balance, &snap.HoldingsValue, &snap.Equity, &unpriced); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		snap.Unpriced = splitSymbols(unpriced)
		out = append(out, &snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// saveAccount upserts the account row and rewrites its holdings.
func saveAccount(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		domain.AccountID, account.Balance.String(), account.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE account_id = ?`, domain.AccountID); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	for symbol, amount := range account.Holdings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO holdings (account_id, symbol, amount) VALUES (?, ?, ?)`,
			domain.AccountID, symbol, amount.String(),
		)
		if err != nil {
			return fmt.Errorf("save holding %s: %w", symbol, err)
		}
	}
	return nil
}

func splitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
