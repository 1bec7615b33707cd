package services

import (
	"fmt"
	"sort"
	"strings"

	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises comparison groups: how they were matched, which
// country is cheapest most often and how far prices spread within a group.
func (s *InsightService) Generate(groups []models.ComparisonGroup) *models.ComparisonReport {
	report := &models.ComparisonReport{
		GroupsByTier:    make(map[models.MatchTier]int),
		GroupsByCount:   make(map[int]int),
		CheapestCountry: make(map[string]int),
	}

	if len(groups) == 0 {
		return report
	}

	report.TotalGroups = len(groups)

	var totalSpread float64
	var spreadGroups int
	for i := range groups {
		g := &groups[i]
		report.GroupsByTier[g.MatchTier]++
		report.GroupsByCount[len(g.PerCountry)]++

		cheapest, spread, ok := priceSpread(*g)
		if !ok {
			continue
		}
		report.CheapestCountry[cheapest]++
		totalSpread += spread
		spreadGroups++
		if report.WidestSpread == nil || spread > report.WidestSpreadPct {
			report.WidestSpread = g
			report.WidestSpreadPct = round2(spread)
		}
	}

	if spreadGroups > 0 {
		report.AverageSpread = round2(totalSpread / float64(spreadGroups))
	}
	s.logger.Debug("[insights] %d groups, average spread %.2f%%", report.TotalGroups, report.AverageSpread)
	return report
}

// priceSpread returns the cheapest country of g (alphabetically first on a
// tie) and the max/min spread in percent.
func priceSpread(g models.ComparisonGroup) (string, float64, bool) {
	var cheapest string
	var minPrice, maxPrice float64
	for _, country := range g.Countries() {
		p, _ := g.PerCountry[country].PriceAmount.Float64()
		if p <= 0 {
			continue
		}
		if cheapest == "" || p < minPrice {
			cheapest, minPrice = country, p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}
	if cheapest == "" {
		return "", 0, false
	}
	return cheapest, (maxPrice - minPrice) / minPrice * 100, true
}

func (s *InsightService) Print(r *models.ComparisonReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🛒 CROSS-COUNTRY PRICE COMPARISON\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Comparison groups : \033[1m%d\033[0m\n", r.TotalGroups)
	counts := make([]int, 0, len(r.GroupsByCount))
	for n := range r.GroupsByCount {
		counts = append(counts, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	for _, n := range counts {
		fmt.Printf("  In %d countries    : \033[1m%d\033[0m\n", n, r.GroupsByCount[n])
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Match Confidence\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for tier := models.TierSemantic; tier >= models.TierFallback; tier-- {
		if n := r.GroupsByTier[tier]; n > 0 {
			fmt.Printf("  %-22s %s (%d)\n", tier, strings.Repeat("█", min(n, 30)), n)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Spread\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.WidestSpread == nil {
		fmt.Printf("  No price data available\n")
	} else {
		fmt.Printf("  Average spread : \033[1;32m%.2f%%\033[0m\n", r.AverageSpread)
		fmt.Printf("  Widest spread  : \033[1;31m%.2f%%\033[0m  %s\n",
			r.WidestSpreadPct, truncate(r.WidestSpread.Name, 36))
		for _, c := range r.WidestSpread.Countries() {
			rec := r.WidestSpread.PerCountry[c]
			fmt.Printf("    %-10s €%s (%s)\n", models.CountryName(c), rec.PriceAmount.StringFixed(2), rec.PriceType)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Cheapest Country\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.CheapestCountry) == 0 {
		fmt.Printf("  No price data\n")
	} else {
		type countryCount struct {
			country string
			count   int
		}
		var list []countryCount
		for c, n := range r.CheapestCountry {
			list = append(list, countryCount{c, n})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].count != list[j].count {
				return list[i].count > list[j].count
			}
			return list[i].country < list[j].country
		})
		for _, cc := range list {
			bar := strings.Repeat("█", min(cc.count, 30))
			fmt.Printf("  %-12s %s (%d)\n", models.CountryName(cc.country), bar, cc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
