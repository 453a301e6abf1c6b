package docpipe

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/larder/normalize"
	"github.com/hazyhaar/larder/record"
)

const unitPattern = `(kilogramos|kilogramo|kgs|kg|kilos|kilo|gramos|gramo|grs|gr|g)\b\.?`

var (
	// "1 kg de Tomate", "250 grs de carne picada", "500g pollo", "500 gramos de tomate"
	qtyFirstRe = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*` + unitPattern + `\s*(?:de\s+)?(.+)`)
	// "Tomate: 500 g"
	qtyLastRe = regexp.MustCompile(`(?i)(.+?)\s*:\s*(\d[\d.,]*)\s*` + unitPattern)
)

// parseIngredientLine turns one recipe line into an ingredient. Quantities are
// converted to grams. Lines whose product does not normalize are dropped.
func parseIngredientLine(line string, cat *normalize.Catalog) (record.Ingredient, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return record.Ingredient{}, false
	}

	if m := qtyFirstRe.FindStringSubmatch(line); m != nil {
		if ing, ok := buildIngredient(m[3], m[1], m[2], cat); ok {
			return ing, true
		}
	}
	if m := qtyLastRe.FindStringSubmatch(line); m != nil {
		if ing, ok := buildIngredient(m[1], m[2], m[3], cat); ok {
			return ing, true
		}
	}
	return record.Ingredient{}, false
}

func buildIngredient(product, qty, unit string, cat *normalize.Catalog) (record.Ingredient, bool) {
	product = cleanProduct(product)
	if product == "" {
		return record.Ingredient{}, false
	}
	id, ok := cat.Lookup(product)
	if !ok {
		return record.Ingredient{}, false
	}
	amount, err := parseQuantity(qty)
	if err != nil {
		return record.Ingredient{}, false
	}
	grams := amount.InexactFloat64()
	if strings.HasPrefix(strings.ToLower(unit), "k") {
		grams *= 1000
	}
	if grams <= 0 {
		return record.Ingredient{}, false
	}
	return record.Ingredient{ID: id, Name: product, QtyG: grams}, true
}

// cleanProduct strips inline markup and list punctuation around a product name.
func cleanProduct(s string) string {
	s = strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
	s = strings.Trim(s, " \t*_-–—•.,;:")
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "de ") {
		s = strings.TrimSpace(s[3:])
	}
	return s
}
