package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
    id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL,
    symbols INTEGER NOT NULL,
    orders INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS signals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id TEXT,
    symbol TEXT NOT NULL,
    candidate TEXT NOT NULL,
    decision TEXT NOT NULL,
    price REAL NOT NULL,
    has_depth INTEGER NOT NULL DEFAULT 0,
    has_ticker INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders (
    client_id TEXT PRIMARY KEY,
    order_id TEXT,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    price REAL NOT NULL,
    take_profit REAL NOT NULL,
    stop_loss REAL NOT NULL,
    status TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS status_changes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, created_at);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol, created_at);
`

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	schema,
	`ALTER TABLE orders ADD COLUMN error TEXT`,
	`ALTER TABLE signals ADD COLUMN histogram REAL`,
}

// ApplyMigrations brings the journal schema up to date. It is safe to call
// on every start.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}

	var version int
	if err := d.DB.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrate(d.DB, v+1, migrations[v]); err != nil {
			return err
		}
	}
	return nil
}

func migrate(db *sql.DB, version int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("migration %d: set version: %w", version, err)
	}
	return tx.Commit()
}


