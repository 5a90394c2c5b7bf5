package classify

import (
	"regexp"
	"sort"
	"strings"
)

var firstNumberRegex = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// FillFromAttributes completes c with the characteristics table of a product page,
// keyed by folded label. Values already found in the name or description are kept.
func FillFromAttributes(c *Classification, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := Fold(attrs[k])
		if v == "non" || v == "no" || v == "-" {
			continue
		}
		b.WriteString(k)
		b.WriteString(" ")
		b.WriteString(attrs[k])
		b.WriteString(" ; ")
	}
	table := Classify(b.String(), "")

	if !c.Material.IsKnown() {
		c.Material = table.Material
	}
	if !c.ProductType.IsKnown() {
		c.ProductType = table.ProductType
	}
	if c.Essence == "" {
		c.Essence = table.Essence
	}
	if c.Manufacturer == "" {
		c.Manufacturer = table.Manufacturer
	}
	if c.Manufacturer == "" {
		c.Manufacturer = strings.TrimSpace(firstAttr(attrs, "fabricant", "marque"))
	}
	if c.DecorCode == "" {
		c.DecorCode = table.DecorCode
	}
	if c.Finish == "" {
		c.Finish = table.Finish
	}
	if c.Finish == "" {
		c.Finish = strings.TrimSpace(firstAttr(attrs, "finition", "aspect"))
	}
	c.Hydrofuge = c.Hydrofuge || table.Hydrofuge
	c.Ignifuge = c.Ignifuge || table.Ignifuge

	if c.ThicknessMM == 0 {
		if v, ok := thicknessValue(firstNumberRegex.FindString(firstAttr(attrs, "epaisseur", "ep"))); ok {
			c.ThicknessMM = v
		}
	}
	if c.LengthMM == 0 || c.WidthMM == 0 {
		length, lok := dimensionValue(firstNumberRegex.FindString(firstAttr(attrs, "longueur", "long")))
		width, wok := dimensionValue(firstNumberRegex.FindString(firstAttr(attrs, "largeur", "larg")))
		switch {
		case lok && wok:
			c.LengthMM, c.WidthMM = max(length, width), min(length, width)
		default:
			c.LengthMM, c.WidthMM = ExtractDimensions(firstAttr(attrs, "dimensions", "format"))
		}
	}

	if !c.DecorCategory.IsKnown() {
		c.DecorCategory = detectDecorCategory(newWordSet(b.String()), *c)
	}
}

func firstAttr(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := attrs[k]; v != "" {
			return v
		}
	}
	return ""
}
