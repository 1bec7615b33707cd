package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

var placeholderRegexp = regexp.MustCompile(`\$\d+`)

// dialect carries what differs between the Postgres and SQLite backends.
// Queries are written with $N placeholders, each used once and in order.
type dialect struct {
	name       string
	schema     string
	positional bool
}

// sqlStore implements Store on database/sql for both backends.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *utils.Logger
}

func (s *sqlStore) rebind(query string) string {
	if !s.dialect.positional {
		return query
	}
	return placeholderRegexp.ReplaceAllString(query, "?")
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("%s: migrate: %w", s.dialect.name, err)
	}
	return nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storeID returns the id of the Lidl store for country, creating it on first use.
func (s *sqlStore) storeID(ctx context.Context, q execQuerier, country string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO stores (name, country, website_url)
		VALUES ('Lidl', $1, $2)
		ON CONFLICT (country) DO UPDATE SET name = excluded.name
		RETURNING id
	`), country, "https://www.lidl."+country).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: store for %s: %w", s.dialect.name, country, err)
	}
	return id, nil
}

func (s *sqlStore) BeginSession(ctx context.Context, country string) (SessionTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.dialect.name, err)
	}
	storeID, err := s.storeID(ctx, tx, country)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO scraping_sessions (id, store_id, status, started_at)
		VALUES ($1, $2, $3, $4)
	`), id, storeID, StatusRunning, time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: insert session: %w", s.dialect.name, err)
	}

	s.logger.Debug("[%s] session %s started for %s", s.dialect.name, id, country)
	return &sqlTx{store: s, tx: tx, id: id, storeID: storeID}, nil
}

func (s *sqlStore) FailSession(ctx context.Context, country, sessionID string, cause error) error {
	storeID, err := s.storeID(ctx, s.db, country)
	if err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO scraping_sessions (id, store_id, status, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, error_message = excluded.error_message,
			completed_at = excluded.completed_at
	`), sessionID, storeID, StatusFailed, msg, now, now)
	if err != nil {
		return fmt.Errorf("%s: record failed session: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) LoadRecords(ctx context.Context, since time.Time) ([]models.NormalizedRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.match_key, p.match_tier, st.country, p.name, p.brand, p.standard_brand, p.gtin,
		       pr.price, pr.currency, p.unit, p.quantity, p.standard_size, pr.unit_price,
		       pr.price_type, pr.deposit, p.product_type, p.category, pr.unit_text,
		       pr.source_url, pr.captured_at
		FROM prices pr
		JOIN products p ON p.id = pr.product_id
		JOIN stores st ON st.id = pr.store_id
		WHERE pr.captured_at >= $1
		ORDER BY pr.captured_at, pr.id
	`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: load records: %w", s.dialect.name, err)
	}
	defer rows.Close()

	var records []models.NormalizedRecord
	for rows.Next() {
		var (
			rec                          models.NormalizedRecord
			tier, unit, priceType        string
			quantity, stdSize, unitPrice sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.MatchKey, &tier, &rec.Country, &rec.Name, &rec.Brand, &rec.StandardBrand, &rec.GTIN,
			&rec.PriceAmount, &rec.Currency, &unit, &quantity, &stdSize, &unitPrice,
			&priceType, &rec.DepositAmount, &rec.ProductType, &rec.Category, &rec.UnitText,
			&rec.SourceURL, &rec.CapturedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan record: %w", s.dialect.name, err)
		}
		if rec.MatchTier, err = models.ParseMatchTier(tier); err != nil {
			return nil, fmt.Errorf("%s: record %s: %w", s.dialect.name, rec.MatchKey, err)
		}
		rec.UnitBase = models.UnitBase{Quantity: nullFloat(quantity), Unit: models.Unit(unit)}
		rec.StandardSize = nullFloat(stdSize)
		rec.UnitPrice = nullFloat(unitPrice)
		rec.PriceType = models.PriceType(priceType)
		rec.CapturedAt = rec.CapturedAt.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// sqlTx implements SessionTx.
type sqlTx struct {
	store   *sqlStore
	tx      *sql.Tx
	id      string
	storeID int64
}

func (t *sqlTx) ID() string     { return t.id }
func (t *sqlTx) StoreID() int64 { return t.storeID }

// FindOrCreateProduct upserts the product row identified by (match key, name).
func (t *sqlTx) FindOrCreateProduct(ctx context.Context, rec models.NormalizedRecord) (int64, error) {
	unit := rec.UnitBase.Unit
	if unit == "" {
		unit = models.UnitNone
	}
	var id int64
	err := t.tx.QueryRowContext(ctx, t.store.rebind(`
		INSERT INTO products (match_key, match_tier, name, brand, standard_brand, gtin,
			product_type, category, unit, quantity, standard_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (match_key, name) DO UPDATE SET
			match_tier = excluded.match_tier, brand = excluded.brand,
			standard_brand = excluded.standard_brand, gtin = excluded.gtin,
			product_type = excluded.product_type, category = excluded.category,
			unit = excluded.unit, quantity = excluded.quantity, standard_size = excluded.standard_size
		RETURNING id
	`), rec.MatchKey, rec.MatchTier.String(), rec.Name, rec.Brand, rec.StandardBrand, rec.GTIN,
		rec.ProductType, rec.Category, string(unit), floatArg(rec.UnitBase.Quantity), floatArg(rec.StandardSize),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: product %s: %w", t.store.dialect.name, rec.MatchKey, err)
	}
	return id, nil
}

// UpsertPrice writes one price row. A row with the same product, store and
// capture time is overwritten, so re-submitting a batch adds nothing.
func (t *sqlTx) UpsertPrice(ctx context.Context, productID, storeID int64, rec models.NormalizedRecord) error {
	currency := rec.Currency
	if currency == "" {
		currency = models.Currency
	}
	_, err := t.tx.ExecContext(ctx, t.store.rebind(`
		INSERT INTO prices (product_id, store_id, session_id, price, currency, price_type,
			unit_price, deposit, unit_text, source_url, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (product_id, store_id, captured_at) DO UPDATE SET
			session_id = excluded.session_id, price = excluded.price, currency = excluded.currency,
			price_type = excluded.price_type, unit_price = excluded.unit_price,
			deposit = excluded.deposit, unit_text = excluded.unit_text, source_url = excluded.source_url
	`), productID, storeID, t.id, rec.PriceAmount.StringFixed(2), currency, string(rec.PriceType),
		floatArg(rec.UnitPrice), decimalArg(rec.DepositAmount), rec.UnitText, rec.SourceURL, rec.CapturedAt.UTC())
	if err != nil {
		return fmt.Errorf("%s: price for product %d: %w", t.store.dialect.name, productID, err)
	}
	return nil
}

// Complete writes the session outcome and commits.
func (t *sqlTx) Complete(ctx context.Context, outcome SessionOutcome) error {
	_, err := t.tx.ExecContext(ctx, t.store.rebind(`
		UPDATE scraping_sessions
		SET status = $1, products_found = $2, error_message = $3, completed_at = $4
		WHERE id = $5
	`), outcome.Status, outcome.ProductsFound, outcome.Error, time.Now().UTC(), t.id)
	if err != nil {
		_ = t.tx.Rollback()
		return fmt.Errorf("%s: complete session %s: %w", t.store.dialect.name, t.id, err)
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit session %s: %w", t.store.dialect.name, t.id, err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished one is a no-op.
func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback session %s: %w", t.store.dialect.name, t.id, err)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(2)
}
