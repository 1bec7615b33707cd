package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"grocery-price-compare/utils"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS stores (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT     NOT NULL,
		country     TEXT     NOT NULL UNIQUE,
		website_url TEXT,
		created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS products (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		match_key      TEXT     NOT NULL,
		match_tier     TEXT     NOT NULL,
		name           TEXT     NOT NULL,
		brand          TEXT     NOT NULL DEFAULT '',
		standard_brand TEXT     NOT NULL DEFAULT '',
		gtin           TEXT     NOT NULL DEFAULT '',
		product_type   TEXT     NOT NULL DEFAULT '',
		category       TEXT     NOT NULL DEFAULT 'other',
		unit           TEXT     NOT NULL DEFAULT 'none',
		quantity       REAL,
		standard_size  REAL,
		created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
		UNIQUE (match_key, name)
	);

	CREATE TABLE IF NOT EXISTS scraping_sessions (
		id             TEXT PRIMARY KEY,
		store_id       INTEGER  NOT NULL REFERENCES stores(id),
		status         TEXT     NOT NULL,
		products_found INTEGER  NOT NULL DEFAULT 0,
		error_message  TEXT     NOT NULL DEFAULT '',
		started_at     DATETIME NOT NULL,
		completed_at   DATETIME
	);

	CREATE TABLE IF NOT EXISTS prices (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id  INTEGER  NOT NULL REFERENCES products(id),
		store_id    INTEGER  NOT NULL REFERENCES stores(id),
		session_id  TEXT,
		price       TEXT     NOT NULL,
		currency    TEXT     NOT NULL DEFAULT 'EUR',
		price_type  TEXT     NOT NULL,
		unit_price  REAL,
		deposit     TEXT,
		unit_text   TEXT     NOT NULL DEFAULT '',
		source_url  TEXT     NOT NULL,
		captured_at DATETIME NOT NULL,
		UNIQUE (product_id, store_id, captured_at)
	);

	CREATE INDEX IF NOT EXISTS idx_products_match_key ON products(match_key);
	CREATE INDEX IF NOT EXISTS idx_prices_captured_at ON prices(captured_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_store     ON scraping_sessions(store_id);
`

// NewSQLite opens (or creates) a SQLite database at path in WAL mode and
// runs schema migrations.
func NewSQLite(ctx context.Context, path string, logger *utils.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps per-connection pragmas in force and
	// serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}

	s := &sqlStore{
		db:      db,
		dialect: dialect{name: "sqlite", schema: sqliteSchema, positional: true},
		logger:  logger,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
