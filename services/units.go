package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"grocery-price-compare/models"
)

// ErrUnitUnresolved is returned when a unit text carries no recognisable
// size. It is never fatal: the record is kept without a unit price.
var ErrUnitUnresolved = errors.New("unit text not recognised")

const unitPattern = `(ml|millilit(?:er|re)s?|mililit(?:ar|ara|ra|er)|kg|kilo(?:gram(?:m|a|s)?)?|lt|l|lit(?:er|re|ar|ara|ra|ri)?s?|g|gr|gram(?:m|a|s|i)?)\b`

var (
	// multipackRegexp matches "6 x 0.5 l", "4x100g", "2 × 1,5 L"
	multipackRegexp = regexp.MustCompile(`(?i)(\d+)\s*[x×]\s*(\d+(?:\.\d+)?)\s*` + unitPattern)
	// singleRegexp matches "1 l", "500g", "0.75 Liter"
	singleRegexp = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*` + unitPattern)
	// thousandsRegexp matches a dot-grouped gram or milliliter count: "1.000 g"
	thousandsRegexp = regexp.MustCompile(`\b([1-9]\d{0,2})\.(\d{3})(\s*(?:g|gr|gram[a-z]*|ml|millilit[a-z]*|mililit[a-z]*)\b)`)
)

// ParseUnit converts free-text size information into kilograms or liters.
// Unrecognised text yields an unresolved base and ErrUnitUnresolved.
func ParseUnit(unitText string) (models.UnitBase, error) {
	unresolved := models.UnitBase{Unit: models.UnitNone}
	t := thousandsRegexp.ReplaceAllString(strings.ToLower(unitText), "${1}${2}${3}")
	t = strings.ReplaceAll(t, ",", ".")
	if strings.TrimSpace(t) == "" {
		return unresolved, ErrUnitUnresolved
	}

	if m := multipackRegexp.FindStringSubmatch(t); m != nil {
		count, errCount := strconv.ParseFloat(m[1], 64)
		value, errValue := strconv.ParseFloat(m[2], 64)
		if errCount == nil && errValue == nil {
			return toBase(count*value, m[3])
		}
	}

	if m := singleRegexp.FindStringSubmatch(t); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return toBase(value, m[2])
		}
	}

	return unresolved, ErrUnitUnresolved
}

func toBase(value float64, unit string) (models.UnitBase, error) {
	if value <= 0 {
		return models.UnitBase{Unit: models.UnitNone}, ErrUnitUnresolved
	}
	var q float64
	var u models.Unit
	switch {
	case strings.HasPrefix(unit, "m"):
		q, u = value/1000, models.UnitLiter
	case strings.HasPrefix(unit, "l"):
		q, u = value, models.UnitLiter
	case strings.HasPrefix(unit, "k"):
		q, u = value, models.UnitKilogram
	case strings.HasPrefix(unit, "g"):
		q, u = value/1000, models.UnitKilogram
	default:
		return models.UnitBase{Unit: models.UnitNone}, ErrUnitUnresolved
	}
	return models.UnitBase{Quantity: &q, Unit: u}, nil
}

// UnitPrice divides price by the canonical quantity, rounded to 4 decimals.
// It returns nil when the base is unresolved.
func UnitPrice(price decimal.Decimal, base models.UnitBase) *float64 {
	if !base.Resolved() || !price.IsPositive() {
		return nil
	}
	v, _ := price.Div(decimal.NewFromFloat(*base.Quantity)).Round(4).Float64()
	return &v
}
