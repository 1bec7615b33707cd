package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"grocery-price-compare/utils"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS stores (
		id          SERIAL PRIMARY KEY,
		name        VARCHAR(100) NOT NULL,
		country     VARCHAR(8)   NOT NULL UNIQUE,
		website_url VARCHAR(255),
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS products (
		id             SERIAL PRIMARY KEY,
		match_key      TEXT        NOT NULL,
		match_tier     VARCHAR(32) NOT NULL,
		name           TEXT        NOT NULL,
		brand          TEXT        NOT NULL DEFAULT '',
		standard_brand TEXT        NOT NULL DEFAULT '',
		gtin           VARCHAR(14) NOT NULL DEFAULT '',
		product_type   VARCHAR(32) NOT NULL DEFAULT '',
		category       VARCHAR(32) NOT NULL DEFAULT 'other',
		unit           VARCHAR(8)  NOT NULL DEFAULT 'none',
		quantity       DOUBLE PRECISION,
		standard_size  DOUBLE PRECISION,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (match_key, name)
	);

	CREATE TABLE IF NOT EXISTS scraping_sessions (
		id             VARCHAR(36) PRIMARY KEY,
		store_id       INTEGER     NOT NULL REFERENCES stores(id),
		status         VARCHAR(16) NOT NULL,
		products_found INTEGER     NOT NULL DEFAULT 0,
		error_message  TEXT        NOT NULL DEFAULT '',
		started_at     TIMESTAMPTZ NOT NULL,
		completed_at   TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS prices (
		id          SERIAL PRIMARY KEY,
		product_id  INTEGER       NOT NULL REFERENCES products(id),
		store_id    INTEGER       NOT NULL REFERENCES stores(id),
		session_id  VARCHAR(36),
		price       NUMERIC(10,2) NOT NULL,
		currency    VARCHAR(3)    NOT NULL DEFAULT 'EUR',
		price_type  VARCHAR(16)   NOT NULL,
		unit_price  DOUBLE PRECISION,
		deposit     NUMERIC(10,2),
		unit_text   TEXT          NOT NULL DEFAULT '',
		source_url  TEXT          NOT NULL,
		captured_at TIMESTAMPTZ   NOT NULL,
		UNIQUE (product_id, store_id, captured_at)
	);

	CREATE INDEX IF NOT EXISTS idx_products_match_key  ON products(match_key);
	CREATE INDEX IF NOT EXISTS idx_prices_captured_at  ON prices(captured_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_store      ON scraping_sessions(store_id);
`

const (
	pingAttempts = 10
	pingDelay    = 2 * time.Second
)

// NewPostgres opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations and returns a ready-to-use Store.
func NewPostgres(ctx context.Context, dsn string, logger *utils.Logger) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Warn("[postgres] ping failed (attempt %d/%d): %v", i+1, pingAttempts, err)
		if serr := utils.Sleep(ctx, pingDelay); serr != nil {
			break
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &sqlStore{
		db:      db,
		dialect: dialect{name: "postgres", schema: postgresSchema},
		logger:  logger,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
