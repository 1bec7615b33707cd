package storage

import (
	"context"
	"fmt"
	"sort"

	"grocery-price-compare/metrics"
	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

// PersistResult summarises one committed batch.
type PersistResult struct {
	SessionID string
	Saved     int
	ByTier    map[models.MatchTier]int
}

// PersistBatch writes all records of one country's batch in a single
// session transaction. Either every record and the completed session row
// commit, or nothing does and a failed session row is recorded instead.
func PersistBatch(ctx context.Context, store Store, country string, records []models.NormalizedRecord, m *metrics.Scrape, logger *utils.Logger) (PersistResult, error) {
	for _, rec := range records {
		if rec.Country != country {
			return PersistResult{}, fmt.Errorf("persist %s: record %s belongs to %q", country, rec.SourceURL, rec.Country)
		}
	}

	tx, err := store.BeginSession(ctx, country)
	if err != nil {
		m.SessionFinished(country, StatusFailed)
		return PersistResult{}, fmt.Errorf("persist %s: %w", country, err)
	}
	res := PersistResult{SessionID: tx.ID(), ByTier: make(map[models.MatchTier]int)}

	if err := writeRecords(ctx, tx, records); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			logger.Warn("[storage] %v", rerr)
		}
		if ferr := store.FailSession(context.WithoutCancel(ctx), country, tx.ID(), err); ferr != nil {
			logger.Warn("[storage] could not record failed session %s: %v", tx.ID(), ferr)
		}
		m.SessionFinished(country, StatusFailed)
		return res, fmt.Errorf("persist %s: %w", country, err)
	}

	outcome := SessionOutcome{Status: StatusCompleted, ProductsFound: len(records)}
	if err := tx.Complete(ctx, outcome); err != nil {
		if ferr := store.FailSession(context.WithoutCancel(ctx), country, tx.ID(), err); ferr != nil {
			logger.Warn("[storage] could not record failed session %s: %v", tx.ID(), ferr)
		}
		m.SessionFinished(country, StatusFailed)
		return res, fmt.Errorf("persist %s: %w", country, err)
	}

	for _, rec := range records {
		res.ByTier[rec.MatchTier]++
	}
	res.Saved = len(records)

	tiers := make([]models.MatchTier, 0, len(res.ByTier))
	for tier := range res.ByTier {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] > tiers[j] })
	for _, tier := range tiers {
		m.RecordsPersisted(country, tier.String(), res.ByTier[tier])
	}
	m.SessionFinished(country, StatusCompleted)

	logger.Info("[storage] session %s: %d records saved for %s", res.SessionID, res.Saved, country)
	return res, nil
}

func writeRecords(ctx context.Context, tx SessionTx, records []models.NormalizedRecord) error {
	for _, rec := range records {
		productID, err := tx.FindOrCreateProduct(ctx, rec)
		if err != nil {
			return err
		}
		if err := tx.UpsertPrice(ctx, productID, tx.StoreID(), rec); err != nil {
			return err
		}
	}
	return nil
}
