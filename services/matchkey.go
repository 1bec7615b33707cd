package services

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"grocery-price-compare/models"
)

// MatchInput is everything the match-key cascade looks at.
type MatchInput struct {
	Name          string
	StandardBrand string
	ProductType   string
	Category      string
	GTIN          string
	StandardSize  *float64
	Unit          models.Unit
}

func (in MatchInput) hasSize() bool {
	return in.StandardSize != nil && *in.StandardSize > 0 &&
		in.Unit != models.UnitNone && in.Unit != ""
}

// BuildMatchKey walks the cascade and returns the first key that applies
// together with its tier. Semantic rules outrank the GTIN because the same
// barcode is reused for regional packaging variants.
func BuildMatchKey(in MatchInput) (string, models.MatchTier) {
	brand := in.StandardBrand
	pt := in.ProductType

	switch {
	case brand != "" && pt != "" && in.hasSize():
		return "type-" + brand + "-" + pt + "-" + sizeToken(in), models.TierSemantic
	case brand != "" && pt != "":
		return "type-" + brand + "-" + pt, models.TierSemanticNoSize
	case in.GTIN != "":
		return "gtin-" + in.GTIN, models.TierIdentifier
	case brand != "" && in.Category != "" && in.hasSize():
		return "brand-" + brand + "-" + sizeToken(in) + "-" + in.Category, models.TierBrandSizeCategory
	case brand != "" && in.Category != "":
		return "brand-" + brand + "-" + in.Category, models.TierBrandCategory
	}

	sum := sha1.Sum([]byte(strings.TrimSpace(in.Name)))
	return hex.EncodeToString(sum[:]), models.TierFallback
}

func sizeToken(in MatchInput) string {
	return formatSize(*in.StandardSize) + string(in.Unit)
}
