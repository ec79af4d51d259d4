package store

// SQLiteSchema creates the tables used by SQLiteStore. Decimal values are
// stored as TEXT so they round-trip without loss.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY,
	balance TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
	account_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	amount TEXT NOT NULL,
	PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	account_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	amount TEXT NOT NULL,
	price TEXT NOT NULL,
	total TEXT NOT NULL,
	side TEXT NOT NULL,
	executed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance TEXT NOT NULL,
	holdings_value TEXT NOT NULL,
	equity TEXT NOT NULL,
	unpriced TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
