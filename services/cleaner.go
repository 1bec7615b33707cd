package services

import (
	"strings"
	"unicode"

	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

// Cleaner tidies raw listings before normalization.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean collapses whitespace in text fields, strips spaces from the GTIN,
// and drops listings with an empty or duplicate URL. Inputs are not mutated.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.RawListing {
	seen := utils.NewURLSet()
	result := make([]*models.RawListing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			c.logger.Warn("[cleaner] Dropping listing with empty URL: %s", r.Name)
			continue
		}

		if !seen.Add(url) {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}

		listing := *r
		listing.URL = url
		listing.Name = normaliseText(r.Name)
		listing.Brand = normaliseText(r.Brand)
		listing.UnitText = normaliseText(r.UnitText)
		listing.GTIN = strings.Join(strings.Fields(r.GTIN), "")
		listing.Country = strings.ToLower(strings.TrimSpace(r.Country))

		result = append(result, &listing)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
