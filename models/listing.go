package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawListing holds one product page as extracted from the storefront, before
// any unit parsing or matching. Empty strings mean the field was not found.
type RawListing struct {
	URL            string
	Name           string
	Brand          string
	GTIN           string
	Price          decimal.NullDecimal
	UnitText       string
	IsLoyaltyPrice bool
	IsPromo        bool
	Deposit        decimal.NullDecimal
	Country        string
	ScrapedAt      time.Time
}

// Unit is the canonical unit a package size is expressed in.
type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitLiter    Unit = "l"
	UnitNone     Unit = "none"
)

// UnitBase is a package size converted to kilograms or liters.
// Quantity is nil when the unit text could not be parsed.
type UnitBase struct {
	Quantity *float64 `json:"quantity"`
	Unit     Unit     `json:"unit"`
}

// Resolved reports whether both quantity and unit are known.
func (u UnitBase) Resolved() bool {
	return u.Quantity != nil && *u.Quantity > 0 && u.Unit != UnitNone && u.Unit != ""
}

// PriceType distinguishes shelf prices from promotional ones.
type PriceType string

const (
	PriceRegular PriceType = "regular"
	PricePromo   PriceType = "promo"
	PriceLoyalty PriceType = "loyalty"
)

// Currency is the display currency of every storefront we compare.
const Currency = "EUR"

// NormalizedRecord is the matchable form of a RawListing. It is derived
// purely from the listing and the capture time and never modified afterwards.
type NormalizedRecord struct {
	MatchKey      string              `json:"matchKey"`
	MatchTier     MatchTier           `json:"matchTier"`
	Country       string              `json:"country"`
	Name          string              `json:"name"`
	Brand         string              `json:"brand,omitempty"`
	StandardBrand string              `json:"standardBrand,omitempty"`
	GTIN          string              `json:"gtin,omitempty"`
	PriceAmount   decimal.Decimal     `json:"priceAmount"`
	Currency      string              `json:"currency"`
	UnitBase      UnitBase            `json:"unitBase"`
	StandardSize  *float64            `json:"standardSize"`
	UnitPrice     *float64            `json:"unitPrice"`
	PriceType     PriceType           `json:"priceType"`
	DepositAmount decimal.NullDecimal `json:"depositAmount"`
	ProductType   string              `json:"productType,omitempty"`
	Category      string              `json:"category"`
	UnitText      string              `json:"unitText,omitempty"`
	SourceURL     string              `json:"sourceUrl"`
	CapturedAt    time.Time           `json:"capturedAt"`
}
