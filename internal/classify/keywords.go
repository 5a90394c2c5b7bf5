package classify

import "cutx/catalog/internal/domain"

// Keyword lists are folded (lower-case, no accents). See wordSet.match for the syntax.

var chantKeywords = []string{"chant", "chants", "bande de chant", "alaise*", "bord abs"}

var compactKeywords = []string{"compact*"}

var stratifieKeywords = []string{"stratifi*", "hpl"}

var melamineKeywords = []string{"melamin*", "mela", "mfc"}

var placageKeywords = []string{"placag*", "replaqu*", "plaque chene", "plaque noyer", "plaque hetre",
	"plaque frene", "plaque erable", "plaque merisier", "plaque teck", "plaque wenge", "plaque bouleau",
	"plaque okoume", "plaque pin", "plaque sapin", "plaque chataignier", "plaque orme", "plaques chene"}

// Material keywords, checked in this order.
var materialKeywords = []struct {
	material domain.Material
	keywords []string
}{
	{domain.MaterialOSB, []string{"osb*"}},
	{domain.MaterialContreplaque, []string{"contreplaq*", "contre plaque*", "cp", "multiplis", "okoume"}},
	{domain.MaterialLatte, []string{"latte", "lattes"}},
	{domain.MaterialMDF, []string{"mdf", "medium", "mediums", "hdf", "valchromat"}},
	{domain.MaterialAgglomere, []string{"agglo*", "particule*", "p2", "p3", "p5"}},
	{domain.MaterialMassif, []string{"massif*", "lamelle colle", "lamelles colles", "3 plis", "trois plis", "aboute"}},
}

var hydrofugeKeywords = []string{"hydrofuge*", "hydro", "ctbh", "ctbx", "mr", "p3", "p5"}

var ignifugeKeywords = []string{"ignifug*", "m1", "b s1*", "bs1", "fr"}

// Essences map folded spellings to the stored canonical name.
var essences = []struct {
	canonical string
	keywords  []string
}{
	{"chene", []string{"chene", "chenes", "oak"}},
	{"noyer", []string{"noyer", "walnut"}},
	{"hetre", []string{"hetre", "beech"}},
	{"frene", []string{"frene", "ash"}},
	{"erable", []string{"erable", "maple"}},
	{"merisier", []string{"merisier", "cerisier", "cherry"}},
	{"pin", []string{"pin", "pine"}},
	{"sapin", []string{"sapin"}},
	{"epicea", []string{"epicea"}},
	{"teck", []string{"teck", "teak"}},
	{"wenge", []string{"wenge"}},
	{"bouleau", []string{"bouleau", "birch"}},
	{"peuplier", []string{"peuplier"}},
	{"okoume", []string{"okoume"}},
	{"orme", []string{"orme"}},
	{"acacia", []string{"acacia"}},
	{"olivier", []string{"olivier"}},
	{"zebrano", []string{"zebrano"}},
	{"chataignier", []string{"chataignier"}},
	{"douglas", []string{"douglas"}},
	{"meleze", []string{"meleze"}},
	{"bambou", []string{"bambou", "bamboo"}},
	{"ebene", []string{"ebene"}},
	{"palissandre", []string{"palissandre"}},
}

var stoneKeywords = []string{"marbre*", "pierre*", "beton*", "granit*", "ardoise*", "terrazzo", "ceramique*", "travertin", "quartz", "ciment"}

var metalKeywords = []string{"metal*", "alu", "aluminium", "inox", "acier", "cuivre", "laiton", "rouille", "bronze", "zinc"}

var fantaisieKeywords = []string{"fantaisie", "textile", "cuir", "lin", "tissu", "papier", "miroir"}

var colourKeywords = []string{"blanc", "blanche", "noir", "noire", "gris", "grise", "anthracite", "beige", "creme",
	"taupe", "rouge", "bleu", "bleue", "vert", "verte", "jaune", "orange", "rose", "violet", "marron",
	"chocolat", "ivoire", "sable", "magnolia", "cachemire", "uni", "unis"}

// Manufacturers map folded tokens to display names.
var manufacturers = []struct {
	name     string
	keywords []string
}{
	{"Egger", []string{"egger"}},
	{"Kronospan", []string{"kronospan"}},
	{"Swiss Krono", []string{"swiss krono", "swisskrono"}},
	{"Pfleiderer", []string{"pfleiderer"}},
	{"Unilin", []string{"unilin"}},
	{"Polyrey", []string{"polyrey"}},
	{"Fundermax", []string{"fundermax"}},
	{"Finsa", []string{"finsa"}},
	{"Sonae Arauco", []string{"sonae", "arauco"}},
	{"Cleaf", []string{"cleaf"}},
	{"Saviola", []string{"saviola"}},
	{"Abet Laminati", []string{"abet"}},
	{"Formica", []string{"formica"}},
	{"Rehau", []string{"rehau"}},
}

var finishWords = []struct {
	finish   string
	keywords []string
}{
	{"super mat", []string{"super mat", "supermat", "extra mat"}},
	{"soft touch", []string{"soft touch", "softouch", "soft"}},
	{"brillant", []string{"brillant", "gloss", "laque"}},
	{"satine", []string{"satine"}},
	{"structure", []string{"structure", "structuree", "bois structure"}},
	{"mat", []string{"mat", "matt"}},
}

// Lookup helpers shared with the search parser.

// ProductTypeFor returns the product type a single folded word denotes.
func ProductTypeFor(word string) (domain.ProductType, bool) {
	ws := newWordSet(word)
	switch {
	case ws.any(chantKeywords):
		return domain.ProductTypeChant, true
	case ws.any(compactKeywords):
		return domain.ProductTypeCompact, true
	case ws.any(stratifieKeywords), ws.match("strat"):
		return domain.ProductTypeStratifie, true
	case ws.any(melamineKeywords):
		return domain.ProductTypeMelamine, true
	case ws.any([]string{"placag*", "replaqu*", "plaque", "plaques"}):
		return domain.ProductTypePlacage, true
	case ws.any([]string{"brut", "bruts"}):
		return domain.ProductTypeBrut, true
	}
	return "", false
}

// MaterialFor returns the material a single folded word denotes. Ambiguous grade codes are skipped.
func MaterialFor(word string) (domain.Material, bool) {
	ws := newWordSet(word)
	for _, m := range materialKeywords {
		for _, kw := range m.keywords {
			if kw == "p2" || kw == "p3" || kw == "p5" {
				continue
			}
			if ws.match(kw) {
				return m.material, true
			}
		}
	}
	return "", false
}

// EssenceFor returns the canonical essence of a folded word.
func EssenceFor(word string) (string, bool) {
	ws := newWordSet(word)
	for _, e := range essences {
		if ws.any(e.keywords) {
			return e.canonical, true
		}
	}
	return "", false
}

// ManufacturerFor returns the display name of a manufacturer keyword.
func ManufacturerFor(text string) (string, bool) {
	ws := newWordSet(text)
	for _, m := range manufacturers {
		if ws.any(m.keywords) {
			return m.name, true
		}
	}
	return "", false
}

// DecorCategoryFor maps the filter words used by shoppers ("unis", "bois"...) to a category.
func DecorCategoryFor(word string) (domain.DecorCategory, bool) {
	switch Fold(word) {
	case "uni", "unis":
		return domain.DecorUnis, true
	case "bois", "boise", "boises":
		return domain.DecorBois, true
	case "pierre", "pierres", "mineral", "mineraux":
		return domain.DecorPierre, true
	case "metal", "metaux", "metallique", "metalliques":
		return domain.DecorMetal, true
	case "fantaisie", "fantaisies":
		return domain.DecorFantaisie, true
	}
	return "", false
}
