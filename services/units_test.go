package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-price-compare/models"
)

func TestParseUnit(t *testing.T) {
	tests := []struct {
		text string
		qty  float64
		unit models.Unit
	}{
		{"1 l", 1, models.UnitLiter},
		{"6 x 0.5 l", 3, models.UnitLiter},
		{"6 x 0,5 L", 3, models.UnitLiter},
		{"4x100g", 0.4, models.UnitKilogram},
		{"2 × 1,5 l", 3, models.UnitLiter},
		{"500 g", 0.5, models.UnitKilogram},
		{"250ml", 0.25, models.UnitLiter},
		{"1,5 kg", 1.5, models.UnitKilogram},
		{"0.75 Liter", 0.75, models.UnitLiter},
		{"1 kg = 2,49 €", 1, models.UnitKilogram},
		{"200 grama", 0.2, models.UnitKilogram},
		{"1 lt", 1, models.UnitLiter},
		{"0,5 lt", 0.5, models.UnitLiter},
		{"1.000 g", 1, models.UnitKilogram},
		{"1.500 ml", 1.5, models.UnitLiter},
		{"2 x 1.000 g", 2, models.UnitKilogram},
		{"1.5 l", 1.5, models.UnitLiter},
		{"1.250 kg", 1.25, models.UnitKilogram},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			base, err := ParseUnit(tt.text)
			require.NoError(t, err)
			require.NotNil(t, base.Quantity)
			assert.InDelta(t, tt.qty, *base.Quantity, 1e-9)
			assert.Equal(t, tt.unit, base.Unit)
		})
	}
}

func TestParseUnitUnresolved(t *testing.T) {
	for _, text := range []string{"", "   ", "Stück", "pack of cards", "0 g"} {
		base, err := ParseUnit(text)
		assert.ErrorIs(t, err, ErrUnitUnresolved, text)
		assert.Nil(t, base.Quantity, text)
		assert.Equal(t, models.UnitNone, base.Unit, text)
		assert.False(t, base.Resolved(), text)
	}
}

func TestParseUnitMultipackProperty(t *testing.T) {
	for n := 1; n <= 12; n++ {
		for _, v := range []string{"0.33", "0.5", "1.5"} {
			text := decimal.NewFromInt(int64(n)).String() + " x " + v + " l"
			base, err := ParseUnit(text)
			require.NoError(t, err, text)
			want, _ := decimal.RequireFromString(v).Mul(decimal.NewFromInt(int64(n))).Float64()
			assert.InDelta(t, want, *base.Quantity, 1e-9, text)
		}
	}
}

func TestUnitPrice(t *testing.T) {
	half := 0.5
	got := UnitPrice(decimal.RequireFromString("1.29"), models.UnitBase{Quantity: &half, Unit: models.UnitLiter})
	require.NotNil(t, got)
	assert.Equal(t, 2.58, *got)

	third := 0.33
	got = UnitPrice(decimal.RequireFromString("0.99"), models.UnitBase{Quantity: &third, Unit: models.UnitLiter})
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got)

	seven := 0.7
	got = UnitPrice(decimal.RequireFromString("1.00"), models.UnitBase{Quantity: &seven, Unit: models.UnitKilogram})
	require.NotNil(t, got)
	assert.Equal(t, 1.4286, *got)

	assert.Nil(t, UnitPrice(decimal.RequireFromString("1.00"), models.UnitBase{Unit: models.UnitNone}))
}
