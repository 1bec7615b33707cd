package storage

import (
	"context"
	"time"

	"grocery-price-compare/models"
)

// Session statuses written to scraping_sessions.status.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SessionOutcome is the final state of one persisted batch.
type SessionOutcome struct {
	Status        string
	ProductsFound int
	Error         string
}

// Store is the interface any relational backend must satisfy.
type Store interface {
	// BeginSession opens a transaction and records a running session for
	// country inside it.
	BeginSession(ctx context.Context, country string) (SessionTx, error)
	// FailSession records a failed session outside any transaction, after
	// the batch's own transaction has been rolled back.
	FailSession(ctx context.Context, country, sessionID string, cause error) error
	// LoadRecords returns every price captured at or after since, joined
	// back into normalized records.
	LoadRecords(ctx context.Context, since time.Time) ([]models.NormalizedRecord, error)
	Close() error
}

// SessionTx is one batch's transaction. Nothing it writes is visible until
// Complete succeeds.
type SessionTx interface {
	ID() string
	StoreID() int64
	FindOrCreateProduct(ctx context.Context, rec models.NormalizedRecord) (int64, error)
	UpsertPrice(ctx context.Context, productID, storeID int64, rec models.NormalizedRecord) error
	Complete(ctx context.Context, outcome SessionOutcome) error
	Rollback() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
