package util

import "strings"

// Countries the marketplace currently ships to.
var Countries = []string{
	"Armenia", "Aruba", "Austria", "Azerbaijan", "Barbados", "Botswana",
	"Burkina Faso", "Cameroon", "Chad", "DR Congo", "Ethiopia", "Ghana",
	"Guinea", "Ivory Coast", "Kenya", "Liberia", "Madagascar", "Malawi",
	"Mali", "Mozambique", "Niger", "Nigeria", "Rwanda", "Senegal",
	"Sierra Leone", "South Africa", "Tanzania", "Togo", "Uganda", "Zambia",
	"Zimbabwe",
}

var countryAliases = map[string]string{
	"cote d'ivoire":                    "Ivory Coast",
	"cote divoire":                     "Ivory Coast",
	"drc":                              "DR Congo",
	"democratic republic of the congo": "DR Congo",
	"congo kinshasa":                   "DR Congo",
}

var countryByKey = func() map[string]string {
	out := make(map[string]string, len(Countries)+len(countryAliases))
	for _, c := range Countries {
		out[strings.ToLower(c)] = c
	}
	for k, v := range countryAliases {
		out[k] = v
	}
	return out
}()

// CanonicalCountries splits a countries cell and returns the known country
// names in cell order without duplicates. Names that are not in the list are
// returned separately.
func CanonicalCountries(cell string) (known []string, unknown []string) {
	seen := map[string]bool{}
	for _, part := range SplitList(strings.ReplaceAll(cell, ";", ",")) {
		key := strings.ToLower(strings.Join(strings.Fields(stripDiacritics(part)), " "))
		key = strings.ReplaceAll(key, "-", " ")
		c, ok := countryByKey[key]
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		if !seen[c] {
			seen[c] = true
			known = append(known, c)
		}
	}
	return known, unknown
}
