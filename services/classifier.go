package services

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrAmbiguousClassification marks a name no product family claims. The
// match-key cascade then falls through to a lower tier.
var ErrAmbiguousClassification = errors.New("product type not recognised")

// keywordSet lists the keywords of one family per language. A keyword with
// a leading or trailing space only matches at a word boundary.
type keywordSet map[string][]string

type productFamily struct {
	tag         string
	keywords    keywordSet
	refinements []productFamily
}

type categoryRule struct {
	tag      string
	keywords keywordSet
}

// productFamilies is evaluated in order; the first family whose keywords
// match wins, then its refinements are tried in order.
var productFamilies = []productFamily{
	{
		tag: "milk",
		keywords: keywordSet{
			"en": {"milk"}, "de": {"milch"}, "hr": {"mlijeko", "mlijeka"}, "sl": {"mleko"},
			"it": {"latte "}, "es": {"leche"}, "fr": {" lait "}, "sk": {"mlieko"},
		},
		refinements: []productFamily{
			{tag: "fresh-milk", keywords: keywordSet{
				"en": {"fresh"}, "de": {"frisch"}, "hr": {"svježe", "svjeze", "svjež"}, "sl": {"sveže", "sveze"},
				"it": {"fresco"}, "es": {"fresca"},
			}},
		},
	},
	{
		tag: "cheese",
		keywords: keywordSet{
			"en": {"cheese"}, "de": {"käse", "kaese"}, "hr": {" sir ", " sira ", " sirni "}, "sl": {" sir ", " sira "},
			"es": {"queso"}, "fr": {"fromage"}, "it": {"formaggio"}, "cs": {" sýr "},
		},
		refinements: []productFamily{
			{tag: "cream-cheese", keywords: keywordSet{
				"en": {"cream"}, "de": {"frischkäse"}, "hr": {"krem", "namaz"}, "it": {"spalmabile"}, "fr": {"à tartiner"},
			}},
			{tag: "cottage-cheese", keywords: keywordSet{
				"en": {"cottage"}, "de": {"hüttenkäse"}, "hr": {"zrnati"}, "sl": {"skuta"}, "es": {"granulado"},
			}},
		},
	},
	{
		tag: "yogurt",
		keywords: keywordSet{
			"en": {"yogurt", "yoghurt"}, "de": {"joghurt"}, "hr": {"jogurt"}, "sl": {"jogurt"},
			"fr": {"yaourt"}, "es": {"yogur"}, "it": {"yogurt"},
		},
	},
	{
		tag: "butter",
		keywords: keywordSet{
			"en": {"butter"}, "de": {"butter"}, "hr": {"maslac"}, "sl": {"maslo"},
			"it": {"burro"}, "es": {"mantequilla"}, "fr": {"beurre"},
		},
	},
	{
		tag: "water",
		keywords: keywordSet{
			"en": {"water"}, "de": {"wasser"}, "hr": {" voda"}, "sl": {" voda"},
			"es": {" agua"}, "it": {"acqua"}, "fr": {" eau "},
		},
		refinements: []productFamily{
			{tag: "mineral-water", keywords: keywordSet{
				"en": {"mineral"}, "de": {"mineralwasser"}, "hr": {"mineralna"}, "it": {"minerale"}, "fr": {"minérale"},
			}},
		},
	},
	{
		tag: "cola",
		keywords: keywordSet{
			"en": {"cola", "coke", "pepsi"}, "de": {"cola"}, "hr": {" kola", "cola"}, "sl": {" kola"},
			"es": {"refresco de cola"}, "it": {"cola"},
		},
	},
	{
		tag: "bread",
		keywords: keywordSet{
			"en": {"bread"}, "de": {"brot"}, "hr": {"kruh", "pecivo"}, "sl": {"kruh"},
			"it": {" pane "}, "es": {" pan de ", " pan integral"}, "fr": {" pain "}, "cs": {"chléb"},
		},
	},
	{
		tag: "dessert",
		keywords: keywordSet{
			"en": {"pudding", "dessert", "mousse"}, "de": {"pudding", "dessert"}, "hr": {"puding", "desert"},
			"sl": {"puding", "sladica"}, "it": {"budino"}, "es": {"postre"},
		},
	},
	{
		tag: "juice",
		keywords: keywordSet{
			"en": {"juice", "nectar"}, "de": {"saft", "nektar"}, "hr": {" sok", "nektar"}, "sl": {" sok"},
			"es": {"zumo"}, "fr": {" jus "}, "it": {"succo"},
		},
		refinements: []productFamily{
			{tag: "orange-juice", keywords: keywordSet{
				"en": {"orange"}, "de": {"apfelsine"}, "hr": {"naranča", "naranca"}, "sl": {"pomaranč"},
				"it": {"arancia"}, "es": {"naranja"},
			}},
			{tag: "apple-juice", keywords: keywordSet{
				"en": {"apple"}, "de": {"apfel"}, "hr": {"jabuka"}, "sl": {"jabolk"}, "it": {" mela"},
				"es": {"manzana"}, "fr": {"pomme"},
			}},
		},
	},
	{
		tag: "beer",
		keywords: keywordSet{
			"en": {"beer"}, "de": {"bier"}, "hr": {"pivo"}, "sl": {"pivo"},
			"es": {"cerveza"}, "it": {"birra"}, "fr": {"bière"},
		},
	},
	{
		tag: "candy",
		keywords: keywordSet{
			"en": {"candy", "sweets", "gummy"}, "de": {"bonbon", "fruchtgummi"}, "hr": {"bombon", "gumeni"},
			"sl": {"bonboni", "gumijasti"}, "it": {"caramelle"}, "es": {"caramelos", "gominolas"},
		},
	},
}

// categoryRules is a coarser grouping used only for the brand tiers.
// Beverages come before produce so fruit juices stay beverages.
var categoryRules = []categoryRule{
	{tag: "dairy", keywords: keywordSet{
		"en": {"milk", "yogurt", "cheese", "butter", "cream"}, "de": {"milch", "joghurt", "käse", "butter", "sahne"},
		"hr": {"mlijeko", "mlijeka", "jogurt", " sir ", "maslac", "vrhnje"}, "sl": {"mleko", "jogurt", " sir ", "maslo", "smetana"},
		"it": {"latte ", "formaggio"}, "es": {"leche", "queso"},
	}},
	{tag: "bakery", keywords: keywordSet{
		"en": {"bread", "cake", "donut", "croissant"}, "de": {"brot", "kuchen", "brötchen"},
		"hr": {"kruh", "pecivo", "kolač"}, "sl": {"kruh", "pecivo"}, "it": {" pane ", "torta"},
	}},
	{tag: "meat", keywords: keywordSet{
		"en": {"meat", "chicken", "beef", " ham "}, "de": {"fleisch", "wurst", "hähnchen", "rind", "schinken"},
		"hr": {"meso", "kobasic", "piletina", "govedina", "šunka", "pršut"}, "sl": {"meso", "klobasa", "piščan"},
		"it": {"prosciutto", "pollo"},
	}},
	{tag: "beverages", keywords: keywordSet{
		"en": {"drink", "water", "juice", "beer", "cola"}, "de": {"getränk", "wasser", "saft", "bier"},
		"hr": {"piće", " voda", " sok", "pivo"}, "sl": {"pijača", " voda", " sok", "pivo"}, "it": {"acqua", "birra"},
	}},
	{tag: "produce", keywords: keywordSet{
		"en": {"fruit", "banana", "apple", "orange", "potato", "tomato"},
		"de": {"obst", "gemüse", "apfel", "äpfel", "banane", "kartoffel", "tomate"},
		"hr": {"voće", "povrće", "jabuk", "banan", "naranč", "krumpir", "rajčic"},
		"sl": {"sadje", "zelenjava", "jabolk", "banan", "krompir", "paradižnik"},
	}},
	{tag: "sweets", keywords: keywordSet{
		"en": {"candy", "sweets", "chocolate", "cookie"}, "de": {"bonbon", "süß", "schokolade", "keks"},
		"hr": {"bombon", "gumeni", "čokolada", "keks"}, "sl": {"bonboni", "čokolada", "piškot"},
	}},
}

const defaultCategory = "other"

// Classification is the brand/type/category triple derived from a listing.
type Classification struct {
	StandardBrand string
	ProductType   string
	Category      string
}

// Classify derives the brand token, product type and category from the
// listing text. It is a pure function of its inputs.
func Classify(name, brand string) Classification {
	pt, _ := ProductType(name)
	return Classification{
		StandardBrand: StandardBrand(brand),
		ProductType:   pt,
		Category:      Category(name),
	}
}

// StandardBrand lower-cases the brand and strips whitespace and trademark
// glyphs. StandardBrand(StandardBrand(x)) == StandardBrand(x).
func StandardBrand(brand string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(brand) {
		if unicode.IsSpace(r) || r == '®' || r == '™' || r == '©' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ProductType returns the fine-grained family tag of a product name, or
// ErrAmbiguousClassification when no family matches.
func ProductType(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrAmbiguousClassification
	}
	text := foldText(name)
	for _, family := range productFamilies {
		if !family.keywords.matches(text) {
			continue
		}
		for _, sub := range family.refinements {
			if sub.keywords.matches(text) {
				return sub.tag, nil
			}
		}
		return family.tag, nil
	}
	return "", ErrAmbiguousClassification
}

// Category returns the coarse category of a product name, "other" if none matches.
func Category(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultCategory
	}
	text := foldText(name)
	for _, rule := range categoryRules {
		if rule.keywords.matches(text) {
			return rule.tag
		}
	}
	return defaultCategory
}

func (ks keywordSet) matches(text string) bool {
	for _, words := range ks {
		for _, w := range words {
			if strings.Contains(text, foldKeyword(w)) {
				return true
			}
		}
	}
	return false
}

// foldText case-folds s, replaces everything but letters and digits with a
// space and pads it so word-boundary keywords match at both ends.
func foldText(s string) string {
	folded := cases.Fold().String(norm.NFC.String(s))
	var b strings.Builder
	b.WriteByte(' ')
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	return b.String()
}

func foldKeyword(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
