package services

import (
	"sort"

	"grocery-price-compare/models"
)

// Aggregate groups records by match key across countries. For each
// (key, country) only the most recent record is kept; equal capture times
// resolve to the record that arrived last. Keys seen in fewer than two
// countries are dropped. The output order is fully determined by the input
// set: country count desc, tier desc, name asc, key asc.
func Aggregate(records []models.NormalizedRecord) []models.ComparisonGroup {
	latest := make(map[string]map[string]models.NormalizedRecord)
	for _, rec := range records {
		perCountry, ok := latest[rec.MatchKey]
		if !ok {
			perCountry = make(map[string]models.NormalizedRecord)
			latest[rec.MatchKey] = perCountry
		}
		prev, seen := perCountry[rec.Country]
		if !seen || !rec.CapturedAt.Before(prev.CapturedAt) {
			perCountry[rec.Country] = rec
		}
	}

	groups := make([]models.ComparisonGroup, 0)
	for key, perCountry := range latest {
		if len(perCountry) < 2 {
			continue
		}
		groups = append(groups, newGroup(key, perCountry))
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if len(a.PerCountry) != len(b.PerCountry) {
			return len(a.PerCountry) > len(b.PerCountry)
		}
		if a.MatchTier != b.MatchTier {
			return a.MatchTier > b.MatchTier
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.MatchKey < b.MatchKey
	})
	return groups
}

// newGroup takes the display fields from the record of the alphabetically
// first country so the result does not depend on map iteration order.
func newGroup(key string, perCountry map[string]models.NormalizedRecord) models.ComparisonGroup {
	g := models.ComparisonGroup{MatchKey: key, PerCountry: perCountry}
	countries := g.Countries()
	rep := perCountry[countries[0]]

	g.Name = rep.Name
	g.Brand = rep.Brand
	g.Category = rep.Category
	g.UnitBase = rep.UnitBase
	for _, rec := range perCountry {
		if rec.MatchTier > g.MatchTier {
			g.MatchTier = rec.MatchTier
		}
	}
	return g
}
