package models

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ComparisonGroup collects the latest listing per country for one match key.
// Groups only exist when at least two countries carry the product.
type ComparisonGroup struct {
	MatchKey   string
	MatchTier  MatchTier
	Name       string
	Brand      string
	Category   string
	UnitBase   UnitBase
	PerCountry map[string]NormalizedRecord
}

// Countries returns the country codes of the group in sorted order.
func (g ComparisonGroup) Countries() []string {
	out := make([]string, 0, len(g.PerCountry))
	for c := range g.PerCountry {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CountryPrice is the per-country entry of the serialized group.
type CountryPrice struct {
	PriceAmount   decimal.Decimal     `json:"priceAmount"`
	Currency      string              `json:"currency"`
	PriceType     PriceType           `json:"priceType"`
	UnitPrice     *float64            `json:"unitPrice"`
	DepositAmount decimal.NullDecimal `json:"depositAmount"`
	SourceURL     string              `json:"sourceUrl"`
	CapturedAt    time.Time           `json:"capturedAt"`
}

type comparisonGroupJSON struct {
	MatchKey     string                  `json:"matchKey"`
	MatchTier    MatchTier               `json:"matchTier"`
	Name         string                  `json:"name"`
	Brand        string                  `json:"brand"`
	Category     string                  `json:"category"`
	UnitBase     UnitBase                `json:"unitBase"`
	CountryCount int                     `json:"countryCount"`
	Countries    map[string]CountryPrice `json:"countries"`
}

func (g ComparisonGroup) MarshalJSON() ([]byte, error) {
	out := comparisonGroupJSON{
		MatchKey:     g.MatchKey,
		MatchTier:    g.MatchTier,
		Name:         g.Name,
		Brand:        g.Brand,
		Category:     g.Category,
		UnitBase:     g.UnitBase,
		CountryCount: len(g.PerCountry),
		Countries:    make(map[string]CountryPrice, len(g.PerCountry)),
	}
	for country, rec := range g.PerCountry {
		currency := rec.Currency
		if currency == "" {
			currency = Currency
		}
		out.Countries[country] = CountryPrice{
			PriceAmount:   rec.PriceAmount,
			Currency:      currency,
			PriceType:     rec.PriceType,
			UnitPrice:     rec.UnitPrice,
			DepositAmount: rec.DepositAmount,
			SourceURL:     rec.SourceURL,
			CapturedAt:    rec.CapturedAt,
		}
	}
	return json.Marshal(out)
}

// ComparisonReport summarises a set of comparison groups.
type ComparisonReport struct {
	TotalGroups     int
	GroupsByTier    map[MatchTier]int
	GroupsByCount   map[int]int
	CheapestCountry map[string]int
	AverageSpread   float64
	WidestSpread    *ComparisonGroup
	WidestSpreadPct float64
}
