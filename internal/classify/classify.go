package classify

import (
	"regexp"
	"strings"

	"cutx/catalog/internal/domain"
)

var (
	decorCodeRegex  = regexp.MustCompile(`\b([HUWF]\d{3,4})(?:\s*(ST\s?\d{1,2}))?\b`)
	finishCodeRegex = regexp.MustCompile(`\bST\s?(\d{1,2})\b`)
)

// Classification is what the heuristics can tell from a product name and description.
type Classification struct {
	ProductType   domain.ProductType
	Material      domain.Material
	Essence       string
	DecorCategory domain.DecorCategory
	Manufacturer  string
	DecorCode     string
	Finish        string
	Hydrofuge     bool
	Ignifuge      bool
	ThicknessMM   float64
	LengthMM      int
	WidthMM       int
}

// Classify runs every heuristic over name and description. The name is searched first for
// numeric attributes since descriptions often list several variants.
func Classify(name, description string) Classification {
	text := name + " " + description
	ws := newWordSet(text)

	c := Classification{
		Material:      detectMaterial(ws),
		Essence:       detectEssence(ws),
		Manufacturer:  detectManufacturer(ws),
		Hydrofuge:     ws.any(hydrofugeKeywords),
		Ignifuge:      ws.any(ignifugeKeywords),
		DecorCategory: domain.DecorUnknown,
	}
	c.ProductType = detectProductType(ws, c.Material)
	if c.Material == domain.MaterialMDF && ws.any([]string{"vert", "verte"}) {
		c.Hydrofuge = true
	}

	c.DecorCode, c.Finish = detectDecorCode(text)
	if c.Finish == "" {
		c.Finish = detectFinish(ws)
	}
	c.DecorCategory = detectDecorCategory(ws, c)

	if c.ThicknessMM = ExtractThickness(name); c.ThicknessMM == 0 {
		c.ThicknessMM = ExtractThickness(description)
	}
	if c.LengthMM, c.WidthMM = ExtractDimensions(name); c.LengthMM == 0 {
		c.LengthMM, c.WidthMM = ExtractDimensions(description)
	}
	return c
}

func detectProductType(ws *wordSet, material domain.Material) domain.ProductType {
	switch {
	case ws.any(chantKeywords):
		return domain.ProductTypeChant
	case ws.any(compactKeywords):
		return domain.ProductTypeCompact
	case ws.any(stratifieKeywords):
		return domain.ProductTypeStratifie
	case ws.any(melamineKeywords):
		return domain.ProductTypeMelamine
	case ws.any(placageKeywords):
		return domain.ProductTypePlacage
	case material.IsKnown():
		return domain.ProductTypeBrut
	}
	return domain.ProductTypeUnknown
}

func detectMaterial(ws *wordSet) domain.Material {
	for _, m := range materialKeywords {
		if ws.any(m.keywords) {
			return m.material
		}
	}
	return domain.MaterialUnknown
}

func detectEssence(ws *wordSet) string {
	for _, e := range essences {
		if ws.any(e.keywords) {
			return e.canonical
		}
	}
	return ""
}

func detectManufacturer(ws *wordSet) string {
	for _, m := range manufacturers {
		if ws.any(m.keywords) {
			return m.name
		}
	}
	return ""
}

func detectDecorCategory(ws *wordSet, c Classification) domain.DecorCategory {
	switch {
	case c.Essence != "":
		return domain.DecorBois
	case ws.any(stoneKeywords):
		return domain.DecorPierre
	case ws.any(metalKeywords):
		return domain.DecorMetal
	case ws.any(fantaisieKeywords):
		return domain.DecorFantaisie
	case ws.any(colourKeywords):
		return domain.DecorUnis
	}

	// Egger prefixes: H wood, U plain, W white, F stone and fancy
	if c.DecorCode != "" {
		switch c.DecorCode[0] {
		case 'H':
			return domain.DecorBois
		case 'U', 'W':
			return domain.DecorUnis
		case 'F':
			return domain.DecorFantaisie
		}
	}
	return domain.DecorUnknown
}

// detectDecorCode returns an Egger style decor code and the ST finish glued to it.
func detectDecorCode(text string) (code, finish string) {
	upper := strings.ToUpper(Fold(text))
	if m := decorCodeRegex.FindStringSubmatch(upper); m != nil {
		code = m[1]
		if m[2] != "" {
			finish = strings.ReplaceAll(m[2], " ", "")
		}
	}
	if finish == "" {
		if m := finishCodeRegex.FindStringSubmatch(upper); m != nil {
			finish = "ST" + m[1]
		}
	}
	return code, finish
}

func detectFinish(ws *wordSet) string {
	for _, f := range finishWords {
		if ws.any(f.keywords) {
			return f.finish
		}
	}
	return ""
}

// SearchText is the folded haystack smart search matches free-text terms against.
func SearchText(p *domain.Panel) string {
	parts := []string{p.Reference, p.Name, p.DecorCode, p.DecorName, p.Manufacturer, p.Essence, p.Description}
	return Fold(strings.Join(parts, " "))
}
