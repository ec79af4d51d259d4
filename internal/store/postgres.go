package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/efreitasn/cryptosim/internal/domain"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption defines connection options for PostgreSQL.
// ConnString, when set, is used verbatim.
type PostgresOption struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

type accountRow struct {
	ID        int64           `gorm:"primaryKey;autoIncrement:false"`
	Balance   decimal.Decimal `gorm:"type:numeric;not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

func (accountRow) TableName() string { return "accounts" }

type holdingRow struct {
	AccountID int64           `gorm:"primaryKey;autoIncrement:false"`
	Symbol    string          `gorm:"primaryKey"`
	Amount    decimal.Decimal `gorm:"type:numeric;not null"`
}

func (holdingRow) TableName() string { return "holdings" }

type transactionRow struct {
	ID         string          `gorm:"primaryKey"`
	AccountID  int64           `gorm:"index;not null"`
	Symbol     string          `gorm:"not null"`
	Amount     decimal.Decimal `gorm:"type:numeric;not null"`
	Price      decimal.Decimal `gorm:"type:numeric;not null"`
	Total      decimal.Decimal `gorm:"type:numeric;not null"`
	Side       string          `gorm:"not null"`
	ExecutedAt time.Time       `gorm:"not null"`
}

func (transactionRow) TableName() string { return "transactions" }

type equityRow struct {
	ID            uint            `gorm:"primaryKey"`
	Time          time.Time       `gorm:"index;not null"`
	Balance       decimal.Decimal `gorm:"type:numeric;not null"`
	HoldingsValue decimal.Decimal `gorm:"type:numeric;not null"`
	Equity        decimal.Decimal `gorm:"type:numeric;not null"`
	Unpriced      string          `gorm:"not null"`
}

func (equityRow) TableName() string { return "equity" }

// PostgresStore persists the ledger in PostgreSQL through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgres connects to PostgreSQL and migrates the ledger tables.
func NewPostgres(option PostgresOption) (*PostgresStore, error) {
	dsn, err := option.DSN()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(&accountRow{}, &holdingRow{}, &transactionRow{}, &equityRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadAccount(ctx context.Context) (*domain.Account, error) {
	db := s.db.WithContext(ctx)

	var row accountRow
	err := db.First(&row, "id = ?", domain.AccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	var holdings []holdingRow
	if err := db.Where("account_id = ?", domain.AccountID).Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}

	acct := &domain.Account{
		Balance:   row.Balance,
		Holdings:  make(map[string]decimal.Decimal, len(holdings)),
		UpdatedAt: row.UpdatedAt,
	}
	for _, h := range holdings {
		acct.Holdings[h.Symbol] = h.Amount
	}
	return acct, nil
}

func (s *PostgresStore) CommitTrade(ctx context.Context, account *domain.Account, t *domain.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := gormSaveAccount(tx, account); err != nil {
			return err
		}
		row := transactionRow{
			ID:         t.ID,
			AccountID:  domain.AccountID,
			Symbol:     t.Symbol,
			Amount:     t.Amount,
			Price:      t.UnitPrice,
			Total:      t.TotalValue,
			Side:       string(t.Side),
			ExecutedAt: t.ExecutedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	var rows []transactionRow
	err := s.db.WithContext(ctx).
		Where("account_id = ?", domain.AccountID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]*domain.Transaction, len(rows))
	for i, r := range rows {
		out[i] = &domain.Transaction{
			ID:         r.ID,
			Symbol:     r.Symbol,
			Amount:     r.Amount,
			UnitPrice:  r.Price,
			TotalValue: r.Total,
			Side:       domain.Side(r.Side),
			ExecutedAt: r.ExecutedAt,
		}
	}
	return out, nil
}

func (s *PostgresStore) Reset(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", domain.AccountID).Delete(&transactionRow{}).Error; err != nil {
			return fmt.Errorf("reset transactions: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&equityRow{}).Error; err != nil {
			return fmt.Errorf("reset equity: %w", err)
		}
		return gormSaveAccount(tx, account)
	})
}

func (s *PostgresStore) AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error {
	row := equityRow{
		Time:          snap.Time.UTC(),
		Balance:       snap.Balance,
		HoldingsValue: snap.HoldingsValue,
		Equity:        snap.Equity,
		Unpriced:      strings.Join(snap.Unpriced, ","),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert equity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEquity(ctx context.Context) ([]*domain.EquitySnapshot, error) {
	var rows []equityRow
	if err := s.db.WithContext(ctx).Order("time, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list equity: %w", err)
	}

	out := make([]*domain.EquitySnapshot, len(rows))
	for i, r := range rows {
		out[i] = &domain.EquitySnapshot{
			Time:          r.Time,
			Balance:       r.Balance,
			HoldingsValue: r.HoldingsValue,
			Equity:        r.Equity,
			Unpriced:      splitSymbols(r.Unpriced),
		}
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormSaveAccount(tx *gorm.DB, account *domain.Account) error {
	row := accountRow{
		ID:        domain.AccountID,
		Balance:   account.Balance,
		UpdatedAt: account.UpdatedAt.UTC(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	if err := tx.Where("account_id = ?", domain.AccountID).Delete(&holdingRow{}).Error; err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	if len(account.Holdings) == 0 {
		return nil
	}
	rows := make([]holdingRow, 0, len(account.Holdings))
	for symbol, amount := range account.Holdings {
		rows = append(rows, holdingRow{AccountID: domain.AccountID, Symbol: symbol, Amount: amount})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("save holdings: %w", err)
	}
	return nil
}

// DSN renders the connection string for the option.
func (opt PostgresOption) DSN() (string, error) {
	if opt.ConnString != "" {
		return opt.ConnString, nil
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
