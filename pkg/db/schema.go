package db

import (
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS order_history (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    code TEXT DEFAULT '',
    action TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    price_type TEXT DEFAULT 'market',
    price REAL DEFAULT 0,
    status TEXT NOT NULL,
    order_id TEXT DEFAULT '',
    seqno TEXT DEFAULT '',
    ordno TEXT DEFAULT '',
    fill_status TEXT DEFAULT '',
    fill_quantity INTEGER DEFAULT 0,
    fill_price REAL DEFAULT 0,
    cancel_quantity INTEGER DEFAULT 0,
    error_message TEXT DEFAULT '',
    simulation INTEGER DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_order_history_symbol ON order_history(symbol, created_at);
CREATE INDEX IF NOT EXISTS idx_order_history_status ON order_history(status);

CREATE TABLE IF NOT EXISTS quote_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    close REAL NOT NULL,
    volume INTEGER DEFAULT 0,
    tick_time DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_quote_history_symbol ON quote_history(symbol, tick_time);

CREATE TABLE IF NOT EXISTS strategy_states (
    name TEXT PRIMARY KEY,
    state_data TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS risk_metrics (
    date TEXT PRIMARY KEY,
    daily_pnl REAL DEFAULT 0,
    daily_trades INTEGER DEFAULT 0,
    halted INTEGER DEFAULT 0,
    halt_reason TEXT DEFAULT ''
);
`

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
