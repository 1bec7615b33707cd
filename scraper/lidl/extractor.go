package lidl

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"grocery-price-compare/config"
	"grocery-price-compare/models"
	"grocery-price-compare/utils"
)

var (
	nameSelectors = []string{
		"h1",
		`[data-testid*="title"]`,
		".product-title",
		".product-name",
		`[class*="title"]`,
		".keyfacts__title",
		".m-product-details__title",
	}
	brandSelectors = []string{
		`[data-testid*="brand"]`,
		".brand",
		".product-brand",
		".manufacturer",
		`[class*="Brand"]`,
		`span[class*="brand"]`,
		".m-product-details__brand",
		".keyfacts__brand",
	}
	gtinSelectors = []string{
		`[data-testid*="sku"]`,
		`[data-testid*="gtin"]`,
		".sku",
		".gtin",
		".product-code",
	}
	priceSelectors = []string{
		`[data-testid*="price"]`,
		".price",
		".m-price__price",
		".product-price",
		`[class*="price"]`,
		".keyfacts__price",
		".price-current",
		".current-price",
		`[class*="Price"]`,
	}
	unitSelectors = []string{
		`[data-testid*="unit"]`,
		".unit",
		".m-price__unit",
		".product-unit",
		`[data-testid*="size"]`,
		".packaging-size",
		".keyfacts__unit",
	}

	loyaltySelector = `[alt*="Lidl Plus"], [class*="lidl-plus"], [data-testid*="lidl-plus"]`
	promoSelector   = `[class*="promo"], [class*="offer"], [class*="badge"], [data-testid*="promo"]`

	// knownBrands are house brands recognised inside product names.
	knownBrands = []string{
		"Milbona", "Kornmühle", "Dulano", "Bio", "Freeway",
		"Lupilu", "Silvercrest", "Parkside", "Livarno",
		"Tower", "Crivit", "Pepperts", "Esmara",
		"Florabest", "Chef Select", "Mcennedy",
	}

	gtinRegexp = regexp.MustCompile(`^(\d{8}|\d{12}|\d{13}|\d{14})$`)
	// textPriceRegexps are tried in order over the page text.
	textPriceRegexps = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,3}[,.]\d{2})\s*€`),
		regexp.MustCompile(`€\s*(\d{1,3}[,.]\d{2})`),
		regexp.MustCompile(`(?i)(\d{1,3}[,.]\d{2})\s*EUR`),
	}
	promoTextRegexp = regexp.MustCompile(`(?i)angebot|promo|sale|akcija|popust`)
	depositRegexp   = regexp.MustCompile(`(?i)(pfand|kaution|povratna naknada|kavcija|deposit)[:\s]*(\d+(?:[.,]\d+)?)\s*(€|eur|cent|ct)`)
	numberRegexp    = regexp.MustCompile(`\d[\d.,]*`)
)

var (
	minPlausiblePrice = decimal.RequireFromString("0.10")
	maxPlausiblePrice = decimal.RequireFromString("999.99")
	hundred           = decimal.NewFromInt(100)
)

// Extractor renders product pages and pulls listing fields out of them.
type Extractor struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg *config.Config, logger *utils.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: logger}
}

// ExtractFrom loads pageURL on page, waits for client-side rendering and
// extracts a listing from the rendered document.
func (e *Extractor) ExtractFrom(ctx context.Context, page Page, pageURL, country string) (*models.RawListing, error) {
	if err := page.Navigate(ctx, pageURL, e.cfg.NavTimeout); err != nil {
		return nil, err
	}
	if err := page.Wait(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}

	var html string
	if err := page.Evaluate(ctx, snapshotJS, &html); err != nil {
		return nil, err
	}

	current, err := page.CurrentURL(ctx)
	if err != nil || current == "" {
		current = pageURL
	}

	listing, err := Extract(html, current, country)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("[extractor] Extracted: name=%q, brand=%q, gtin=%q, price=%s",
		listing.Name, listing.Brand, listing.GTIN, listing.Price.Decimal.StringFixed(2))
	return listing, nil
}

// Extract runs the per-field cascades over a rendered product page. It
// fails with *ExtractionError when neither name nor price is found and
// with *MissingPriceError when only the name is.
func Extract(html, pageURL, country string) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	bodyText := doc.Find("body").Text()
	products := jsonLDProducts(doc)

	listing := &models.RawListing{
		URL:       pageURL,
		Country:   country,
		ScrapedAt: time.Now().UTC(),
	}
	listing.Name = firstText(doc, nameSelectors, nonEmpty)
	listing.Brand = extractBrand(doc, products, listing.Name)
	listing.GTIN = extractGTIN(doc, products)
	listing.Price = extractPrice(doc, products, bodyText)
	listing.UnitText = firstText(doc, unitSelectors, nonEmpty)
	listing.IsLoyaltyPrice = doc.Find(loyaltySelector).Length() > 0 || strings.Contains(bodyText, "Lidl Plus")
	listing.IsPromo = doc.Find(promoSelector).Length() > 0 || promoTextRegexp.MatchString(bodyText)
	listing.Deposit = extractDeposit(bodyText)

	switch {
	case listing.Name == "" && !listing.Price.Valid:
		return nil, &ExtractionError{URL: pageURL}
	case !listing.Price.Valid:
		return nil, &MissingPriceError{URL: pageURL, Name: listing.Name}
	}
	return listing, nil
}

// jsonLDProducts returns every Product object found in the page's JSON-LD
// blocks, including ones nested in arrays or @graph.
func jsonLDProducts(doc *goquery.Document) []gjson.Result {
	var products []gjson.Result
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if !gjson.Valid(raw) {
			return
		}
		root := gjson.Parse(raw)
		items := []gjson.Result{root}
		if root.IsArray() {
			items = root.Array()
		}
		for _, item := range items {
			if graph := item.Get("@graph"); graph.IsArray() {
				for _, g := range graph.Array() {
					if isProduct(g) {
						products = append(products, g)
					}
				}
			}
			if isProduct(item) {
				products = append(products, item)
			}
		}
	})
	return products
}

func isProduct(item gjson.Result) bool {
	t := item.Get("@type")
	if t.IsArray() {
		for _, v := range t.Array() {
			if v.String() == "Product" {
				return true
			}
		}
		return false
	}
	return t.String() == "Product"
}

func extractBrand(doc *goquery.Document, products []gjson.Result, name string) string {
	for _, p := range products {
		brand := p.Get("brand")
		var value string
		if brand.Type == gjson.String {
			value = brand.String()
		} else {
			value = brand.Get("name").String()
		}
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}

	if brand := firstText(doc, brandSelectors, nonEmpty); brand != "" {
		return brand
	}

	lower := strings.ToLower(name)
	for _, known := range knownBrands {
		if lower != "" && strings.Contains(lower, strings.ToLower(known)) {
			return known
		}
	}
	return ""
}

func extractGTIN(doc *goquery.Document, products []gjson.Result) string {
	for _, p := range products {
		for _, field := range []string{"gtin13", "gtin", "sku", "mpn"} {
			if v := strings.TrimSpace(p.Get(field).String()); validGTIN(v) {
				return v
			}
		}
	}
	return firstText(doc, gtinSelectors, validGTIN)
}

func extractPrice(doc *goquery.Document, products []gjson.Result, bodyText string) decimal.NullDecimal {
	for _, p := range products {
		offer := p.Get("offers")
		if offer.IsArray() {
			arr := offer.Array()
			if len(arr) == 0 {
				continue
			}
			offer = arr[0]
		}
		if price, ok := ParsePrice(offer.Get("price").String()); ok {
			return decimal.NewNullDecimal(price)
		}
	}

	for _, sel := range priceSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if price, ok := ParsePrice(text); ok && plausiblePrice(price) {
			return decimal.NewNullDecimal(price)
		}
	}

	for _, re := range textPriceRegexps {
		for _, m := range re.FindAllStringSubmatch(bodyText, -1) {
			if price, ok := ParsePrice(m[1]); ok && plausiblePrice(price) {
				return decimal.NewNullDecimal(price)
			}
		}
	}
	return decimal.NullDecimal{}
}

// extractDeposit finds a bottle deposit in the page text. Amounts given in
// cents are converted to euros.
func extractDeposit(bodyText string) decimal.NullDecimal {
	m := depositRegexp.FindStringSubmatch(bodyText)
	if m == nil {
		return decimal.NullDecimal{}
	}
	amount, ok := ParsePrice(m[2])
	if !ok {
		return decimal.NullDecimal{}
	}
	unit := strings.ToLower(m[3])
	if (unit == "cent" || unit == "ct") && amount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		amount = amount.Div(hundred)
	}
	return decimal.NewNullDecimal(amount.Round(2))
}

// ParsePrice reads the first number in s as a price, accepting both comma
// and dot decimal separators and dropping thousands separators. Only
// positive amounts are accepted.
func ParsePrice(s string) (decimal.Decimal, bool) {
	tok := strings.TrimRight(numberRegexp.FindString(s), ".,")
	if tok == "" {
		return decimal.Decimal{}, false
	}

	lastComma := strings.LastIndex(tok, ",")
	lastDot := strings.LastIndex(tok, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The later separator is the decimal one.
		if lastComma > lastDot {
			tok = strings.ReplaceAll(tok[:lastComma], ".", "") + "." + tok[lastComma+1:]
		}
		tok = strings.ReplaceAll(tok, ",", "")
	case lastComma >= 0:
		frac := tok[lastComma+1:]
		if strings.Count(tok, ",") == 1 && len(frac) <= 2 {
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case strings.Count(tok, ".") > 1:
		frac := tok[lastDot+1:]
		if len(frac) == 3 {
			tok = strings.ReplaceAll(tok, ".", "")
		} else {
			tok = strings.ReplaceAll(tok[:lastDot], ".", "") + "." + frac
		}
	}

	d, err := decimal.NewFromString(tok)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func plausiblePrice(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(minPlausiblePrice) && d.LessThanOrEqual(maxPlausiblePrice)
}

func validGTIN(s string) bool {
	return gtinRegexp.MatchString(s)
}

func nonEmpty(s string) bool {
	return s != ""
}

// firstText walks selectors in order and returns the trimmed text of the
// first element whose text passes accept. Only the first match of each
// selector is considered.
func firstText(doc *goquery.Document, selectors []string, accept func(string) bool) string {
	for _, sel := range selectors {
		text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
		if accept(text) {
			return text
		}
	}
	return ""
}
