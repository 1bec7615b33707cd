package services

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"grocery-price-compare/models"
)

func size(v float64) *float64 { return &v }

func TestBuildMatchKeyCascade(t *testing.T) {
	tests := []struct {
		name string
		in   MatchInput
		key  string
		tier models.MatchTier
	}{
		{
			name: "semantic",
			in:   MatchInput{StandardBrand: "milbona", ProductType: "milk", GTIN: "4056489000000", Category: "dairy", StandardSize: size(1), Unit: models.UnitLiter},
			key:  "type-milbona-milk-1l",
			tier: models.TierSemantic,
		},
		{
			name: "semantic without size",
			in:   MatchInput{StandardBrand: "milbona", ProductType: "yogurt", GTIN: "4056489000000", Unit: models.UnitNone},
			key:  "type-milbona-yogurt",
			tier: models.TierSemanticNoSize,
		},
		{
			name: "identifier",
			in:   MatchInput{StandardBrand: "milbona", GTIN: "4056489000000", Category: "dairy", StandardSize: size(0.5), Unit: models.UnitKilogram},
			key:  "gtin-4056489000000",
			tier: models.TierIdentifier,
		},
		{
			name: "brand size category",
			in:   MatchInput{StandardBrand: "parkside", Category: "other", StandardSize: size(0.33), Unit: models.UnitLiter},
			key:  "brand-parkside-0.33l-other",
			tier: models.TierBrandSizeCategory,
		},
		{
			name: "brand category",
			in:   MatchInput{StandardBrand: "parkside", Category: "other", Unit: models.UnitNone},
			key:  "brand-parkside-other",
			tier: models.TierBrandCategory,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, tier := BuildMatchKey(tt.in)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.tier, tier)
		})
	}
}

func TestBuildMatchKeyFallbackHashesTrimmedName(t *testing.T) {
	key, tier := BuildMatchKey(MatchInput{Name: "  Mystery Snack  ", Unit: models.UnitNone})

	sum := sha1.Sum([]byte("Mystery Snack"))
	assert.Equal(t, hex.EncodeToString(sum[:]), key)
	assert.Equal(t, models.TierFallback, tier)

	again, _ := BuildMatchKey(MatchInput{Name: "Mystery Snack", Unit: models.UnitNone})
	assert.Equal(t, key, again)
}

func TestBuildMatchKeySizeNeedsUnit(t *testing.T) {
	key, tier := BuildMatchKey(MatchInput{StandardBrand: "milbona", ProductType: "milk", StandardSize: size(1), Unit: models.UnitNone})
	assert.Equal(t, "type-milbona-milk", key)
	assert.Equal(t, models.TierSemanticNoSize, tier)
}
