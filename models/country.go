package models

import "strings"

var countryNames = map[string]string{
	"hr": "Hrvatska",
	"si": "Slovenia",
	"at": "Austria",
	"de": "Germany",
}

// CountryName returns the display name for a country code, or the code
// itself upper-cased when it is unknown.
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToLower(code)]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// CountryCode maps a code or display name ("Germany", "de") to its code.
func CountryCode(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := countryNames[s]; ok {
		return s, true
	}
	for code, name := range countryNames {
		if strings.ToLower(name) == s {
			return code, true
		}
	}
	return "", false
}
