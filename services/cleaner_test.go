package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-price-compare/models"
)

func TestCleanerDropsEmptyURL(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawListing{
		{Name: "No URL", URL: "  ", Country: "hr", ScrapedAt: captured},
		{Name: "Has URL", URL: "https://www.lidl.hr/p/a/p1", Country: "hr", ScrapedAt: captured},
	}

	cleaned := c.Clean(raw)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "Has URL", cleaned[0].Name)
}

func TestCleanerDeduplicatesURL(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.RawListing{
		{Name: "A", URL: "https://www.lidl.hr/p/a/p1", Country: "hr"},
		{Name: "B", URL: " https://www.lidl.hr/p/a/p1 ", Country: "hr"},
	}

	cleaned := c.Clean(raw)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "A", cleaned[0].Name)
}

func TestCleanerNormalisesText(t *testing.T) {
	c := NewCleaner(newTestLogger())
	in := &models.RawListing{
		URL:      "https://www.lidl.de/p/milch/p2",
		Name:     "  Milbona \n Frische   Vollmilch ",
		Brand:    "\tMilbona ",
		GTIN:     "4056 4891 2345 6",
		UnitText: " 1  l ",
		Country:  " DE ",
	}

	cleaned := c.Clean([]*models.RawListing{in})
	require.Len(t, cleaned, 1)
	out := cleaned[0]
	assert.Equal(t, "Milbona Frische Vollmilch", out.Name)
	assert.Equal(t, "Milbona", out.Brand)
	assert.Equal(t, "4056489123456", out.GTIN)
	assert.Equal(t, "1 l", out.UnitText)
	assert.Equal(t, "de", out.Country)
	assert.Equal(t, "  Milbona \n Frische   Vollmilch ", in.Name, "input must not be mutated")
}
