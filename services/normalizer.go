package services

import (
	"errors"
	"strings"
	"time"

	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

// Normalizer turns raw listings into matchable records. It holds no state
// besides its logger and is safe for concurrent use.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize derives a NormalizedRecord from raw. The same listing and
// capture time always produce the same record. A zero capturedAt falls back
// to the listing's scrape time.
func (n *Normalizer) Normalize(raw *models.RawListing, capturedAt time.Time) models.NormalizedRecord {
	if capturedAt.IsZero() {
		capturedAt = raw.ScrapedAt
	}

	name := normaliseText(raw.Name)
	brand := normaliseText(raw.Brand)

	base, err := ParseUnit(raw.UnitText)
	if err != nil {
		n.logger.Debug("[normalizer] Unit unresolved for %s (%q)", raw.URL, raw.UnitText)
	}

	productType, err := ProductType(name)
	if errors.Is(err, ErrAmbiguousClassification) {
		n.logger.Debug("[normalizer] No product type for %q", name)
	}
	class := Classification{
		StandardBrand: StandardBrand(brand),
		ProductType:   productType,
		Category:      Category(name),
	}

	var standardSize *float64
	if base.Resolved() {
		s := QuantizeSize(*base.Quantity, base.Unit)
		standardSize = &s
	}

	key, tier := BuildMatchKey(MatchInput{
		Name:          strings.TrimSpace(raw.Name),
		StandardBrand: class.StandardBrand,
		ProductType:   class.ProductType,
		Category:      class.Category,
		GTIN:          raw.GTIN,
		StandardSize:  standardSize,
		Unit:          base.Unit,
	})

	price := raw.Price.Decimal.Round(2)
	if !raw.Price.Valid {
		n.logger.Warn("[normalizer] Listing without price: %s", raw.URL)
	}

	rec := models.NormalizedRecord{
		MatchKey:      key,
		MatchTier:     tier,
		Country:       raw.Country,
		Name:          name,
		Brand:         brand,
		StandardBrand: class.StandardBrand,
		GTIN:          raw.GTIN,
		PriceAmount:   price,
		Currency:      models.Currency,
		UnitBase:      base,
		StandardSize:  standardSize,
		UnitPrice:     UnitPrice(price, base),
		PriceType:     priceType(raw),
		ProductType:   class.ProductType,
		Category:      class.Category,
		UnitText:      raw.UnitText,
		SourceURL:     raw.URL,
		CapturedAt:    capturedAt,
	}
	if raw.Deposit.Valid {
		rec.DepositAmount = raw.Deposit
		rec.DepositAmount.Decimal = raw.Deposit.Decimal.Round(2)
	}
	return rec
}

// NormalizeAll normalizes a batch, stamping every record with capturedAt.
func (n *Normalizer) NormalizeAll(raws []*models.RawListing, capturedAt time.Time) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, 0, len(raws))
	tiers := make(map[models.MatchTier]int)
	for _, raw := range raws {
		rec := n.Normalize(raw, capturedAt)
		tiers[rec.MatchTier]++
		out = append(out, rec)
	}
	n.logger.Info("[normalizer] Normalized %d listings (semantic=%d, identifier=%d, fallback=%d)",
		len(out), tiers[models.TierSemantic]+tiers[models.TierSemanticNoSize],
		tiers[models.TierIdentifier], tiers[models.TierFallback])
	return out
}

func priceType(raw *models.RawListing) models.PriceType {
	switch {
	case raw.IsLoyaltyPrice:
		return models.PriceLoyalty
	case raw.IsPromo:
		return models.PricePromo
	default:
		return models.PriceRegular
	}
}
