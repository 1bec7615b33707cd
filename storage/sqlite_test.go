package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-price-compare/metrics"
	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

var capturedAt = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

func testLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard, "debug")
}

func newTestSQLiteStore(t *testing.T) *sqlStore {
	t.Helper()
	st, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "prices.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st.(*sqlStore)
}

func floatPtr(v float64) *float64 { return &v }

func milkRecord(country, name, price string) models.NormalizedRecord {
	return models.NormalizedRecord{
		MatchKey:      "type-milbona-milk-1l",
		MatchTier:     models.TierSemantic,
		Country:       country,
		Name:          name,
		Brand:         "Milbona",
		StandardBrand: "milbona",
		PriceAmount:   decimal.RequireFromString(price),
		Currency:      models.Currency,
		UnitBase:      models.UnitBase{Quantity: floatPtr(1), Unit: models.UnitLiter},
		StandardSize:  floatPtr(1),
		UnitPrice:     floatPtr(1.19),
		PriceType:     models.PriceRegular,
		ProductType:   "milk",
		Category:      "dairy",
		UnitText:      "1 l",
		SourceURL:     "https://www.lidl." + country + "/p/milbona/p1",
		CapturedAt:    capturedAt,
	}
}

func colaRecord() models.NormalizedRecord {
	return models.NormalizedRecord{
		MatchKey:      "3f9c2a",
		MatchTier:     models.TierFallback,
		Country:       "hr",
		Name:          "Mystery Snack",
		PriceAmount:   decimal.RequireFromString("0.99"),
		Currency:      models.Currency,
		UnitBase:      models.UnitBase{Unit: models.UnitNone},
		PriceType:     models.PriceLoyalty,
		DepositAmount: decimal.NewNullDecimal(decimal.RequireFromString("0.25")),
		Category:      "other",
		SourceURL:     "https://www.lidl.hr/p/snack/p9",
		CapturedAt:    capturedAt,
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	hr := []models.NormalizedRecord{milkRecord("hr", "Milbona Mlijeko 3.5% 1L", "1.19"), colaRecord()}
	de := []models.NormalizedRecord{milkRecord("de", "Milbona Milch 3.5% 1L", "0.99")}

	res, err := PersistBatch(ctx, st, "hr", hr, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Saved)
	assert.NotEmpty(t, res.SessionID)
	_, err = PersistBatch(ctx, st, "de", de, nil, testLogger())
	require.NoError(t, err)

	records, err := st.LoadRecords(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	byURL := make(map[string]models.NormalizedRecord)
	for _, r := range records {
		byURL[r.SourceURL] = r
	}

	milk := byURL["https://www.lidl.hr/p/milbona/p1"]
	assert.Equal(t, "type-milbona-milk-1l", milk.MatchKey)
	assert.Equal(t, models.TierSemantic, milk.MatchTier)
	assert.Equal(t, "hr", milk.Country)
	assert.True(t, milk.PriceAmount.Equal(decimal.RequireFromString("1.19")))
	require.NotNil(t, milk.UnitBase.Quantity)
	assert.Equal(t, 1.0, *milk.UnitBase.Quantity)
	assert.Equal(t, models.UnitLiter, milk.UnitBase.Unit)
	require.NotNil(t, milk.UnitPrice)
	assert.Equal(t, 1.19, *milk.UnitPrice)
	assert.False(t, milk.DepositAmount.Valid)
	assert.True(t, milk.CapturedAt.Equal(capturedAt))

	snack := byURL["https://www.lidl.hr/p/snack/p9"]
	assert.Equal(t, models.TierFallback, snack.MatchTier)
	assert.Nil(t, snack.UnitBase.Quantity)
	assert.Nil(t, snack.UnitPrice)
	assert.Equal(t, models.PriceLoyalty, snack.PriceType)
	require.True(t, snack.DepositAmount.Valid)
	assert.True(t, snack.DepositAmount.Decimal.Equal(decimal.RequireFromString("0.25")))

	assert.Equal(t, "de", byURL["https://www.lidl.de/p/milbona/p1"].Country)
}

func TestSQLiteResubmissionIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	batch := []models.NormalizedRecord{milkRecord("hr", "Milbona Mlijeko 3.5% 1L", "1.19"), colaRecord()}

	_, err := PersistBatch(ctx, st, "hr", batch, nil, testLogger())
	require.NoError(t, err)
	_, err = PersistBatch(ctx, st, "hr", batch, nil, testLogger())
	require.NoError(t, err)

	records, err := st.LoadRecords(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	var products, sessions int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&products))
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM scraping_sessions WHERE status = 'completed'`).Scan(&sessions))
	assert.Equal(t, 2, products)
	assert.Equal(t, 2, sessions)
}

func TestSQLiteLoadRecordsSince(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	old := milkRecord("hr", "Milbona Mlijeko 3.5% 1L", "1.29")
	old.CapturedAt = capturedAt.Add(-72 * time.Hour)
	fresh := milkRecord("hr", "Milbona Mlijeko 3.5% 1L", "1.19")

	_, err := PersistBatch(ctx, st, "hr", []models.NormalizedRecord{old, fresh}, nil, testLogger())
	require.NoError(t, err)

	all, err := st.LoadRecords(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := st.LoadRecords(ctx, capturedAt.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].PriceAmount.Equal(decimal.RequireFromString("1.19")))
}

// failingStore makes UpsertPrice fail once failAfter prices were written.
type failingStore struct {
	Store
	failAfter int
}

type failingTx struct {
	SessionTx
	remaining int
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) BeginSession(ctx context.Context, country string) (SessionTx, error) {
	tx, err := s.Store.BeginSession(ctx, country)
	if err != nil {
		return nil, err
	}
	return &failingTx{SessionTx: tx, remaining: s.failAfter}, nil
}

func (t *failingTx) UpsertPrice(ctx context.Context, productID, storeID int64, rec models.NormalizedRecord) error {
	if t.remaining == 0 {
		return errDiskFull
	}
	t.remaining--
	return t.SessionTx.UpsertPrice(ctx, productID, storeID, rec)
}

func TestPersistBatchRollsBackOnFailure(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.NewScrape(reg)

	batch := []models.NormalizedRecord{milkRecord("hr", "Milbona Mlijeko 3.5% 1L", "1.19"), colaRecord()}
	res, err := PersistBatch(ctx, &failingStore{Store: st, failAfter: 1}, "hr", batch, m, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)

	records, err := st.LoadRecords(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, records)

	var products int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&products))
	assert.Zero(t, products)

	var status, msg string
	require.NoError(t, st.db.QueryRow(
		`SELECT status, error_message FROM scraping_sessions WHERE id = ?`, res.SessionID,
	).Scan(&status, &msg))
	assert.Equal(t, StatusFailed, status)
	assert.Contains(t, msg, "disk full")

	expected := `
# HELP scrape_sessions_total Persistence sessions, by outcome.
# TYPE scrape_sessions_total counter
scrape_sessions_total{country="hr",outcome="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "scrape_sessions_total"))
}

func TestPersistBatchRejectsForeignRecords(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := PersistBatch(context.Background(), st, "hr",
		[]models.NormalizedRecord{milkRecord("de", "Milbona Milch 3.5% 1L", "0.99")}, nil, testLogger())
	require.Error(t, err)

	var sessions int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM scraping_sessions`).Scan(&sessions))
	assert.Zero(t, sessions)
}

func TestRebind(t *testing.T) {
	s := &sqlStore{dialect: dialect{positional: true}}
	assert.Equal(t, "SELECT ? , ?", s.rebind("SELECT $1 , $2"))

	pg := &sqlStore{dialect: dialect{}}
	assert.Equal(t, "SELECT $1", pg.rebind("SELECT $1"))
}
