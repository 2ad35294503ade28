package normalize

import "strings"

type categoryRule struct {
	category string
	keywords []string
}

// Ordered keyword table. First match wins, so ties break on table order.
// This is a fixed heuristic, not a learned classifier.
var categoryRules = []categoryRule{
	{"dining", []string{"restaurant", "cafe", "coffee", "pizza", "burger", "grill", "bakery", "diner", "bistro", "bar ", "pub "}},
	{"groceries", []string{"grocery", "groceries", "supermarket", "market", "woolworths", "aldi", "tesco", "walmart", "costco", "lidl"}},
	{"transport", []string{"uber", "lyft", "taxi", "fuel", "petrol", "shell", "parking", "transit", "metro", "train", "railway"}},
	{"shopping", []string{"amazon", "ebay", "target", "ikea", "store", "shop", "retail", "clothing", "mall"}},
	{"utilities", []string{"electric", "water", "gas bill", "energy", "internet", "broadband", "phone", "telecom", "utility"}},
	{"entertainment", []string{"netflix", "spotify", "cinema", "movie", "theatre", "concert", "game", "steam", "ticket"}},
}

// Category classifies a description into a fixed spending category by
// case-insensitive keyword substring match. Unmatched input is "other".
func Category(description string) string {
	d := strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(d, kw) {
				return rule.category
			}
		}
	}
	return "other"
}
