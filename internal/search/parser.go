package search

import (
	"regexp"
	"strings"

	"cutx/catalog/internal/classify"
	"cutx/catalog/internal/domain"
)

var (
	thicknessTokenRegex = regexp.MustCompile(`^(?:ep\.?|epaisseur|epais)?(\d+(?:[.,]\d+)?)mm$`)
	epTokenRegex        = regexp.MustCompile(`^(?:ep\.?|epaisseur|epais)(\d+(?:[.,]\d+)?)$`)
	dimsTokenRegex      = regexp.MustCompile(`^(\d{3,4})[x*](\d{3,4})(?:[x*](\d+(?:[.,]\d+)?)(?:mm)?)?$`)
	decorCodeTokenRegex = regexp.MustCompile(`^[huwf]\d{3,4}$`)
	numberRegex         = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
)

const wordPunct = ",;!?()"

var quoteReplacer = strings.NewReplacer("«", `"`, "»", `"`, "“", `"`, "”", `"`)

var stopWords = map[string]struct{}{
	"de": {}, "du": {}, "des": {}, "d": {}, "en": {}, "le": {}, "la": {}, "les": {}, "l": {},
	"et": {}, "a": {}, "au": {}, "aux": {}, "pour": {}, "avec": {}, "un": {}, "une": {},
	"panneau": {}, "panneaux": {}, "mm": {},
}

var epWords = map[string]struct{}{"ep": {}, "ep.": {}, "epaisseur": {}, "epais": {}}

var hydrofugeWords = map[string]struct{}{"hydrofuge": {}, "hydrofuges": {}, "hydro": {}, "ctbh": {}, "ctbx": {}, "mr": {}}

var ignifugeWords = map[string]struct{}{"ignifuge": {}, "ignifuges": {}, "m1": {}}

type token struct {
	text    string
	quoted  bool
	negated bool
}

// ParseSmartQuery turns a shopper's query into structured criteria.
// Words it does not recognize become free-text terms.
func ParseSmartQuery(raw string) SmartQuery {
	q := SmartQuery{Raw: raw}
	p := &parser{q: &q}

	tokens := tokenize(classify.Fold(quoteReplacer.Replace(raw)))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.text == "":
			continue
		case tok.negated:
			p.addExcluded(tok.text)
			continue
		case tok.quoted:
			p.addTerm(tok.text)
			continue
		}

		w := strings.Trim(tok.text, wordPunct)
		if w == "" {
			continue
		}

		// "ep 19", "19 mm"
		var next string
		if i+1 < len(tokens) && !tokens[i+1].quoted && !tokens[i+1].negated {
			next = tokens[i+1].text
		}
		if _, ok := epWords[w]; ok && numberRegex.MatchString(next) {
			if p.setThickness(next) {
				i++
				continue
			}
		}
		if numberRegex.MatchString(w) && next == "mm" {
			if p.setThickness(w) {
				i++
				continue
			}
		}

		p.word(w)
	}
	return q
}

type parser struct {
	q *SmartQuery
}

func (p *parser) word(w string) {
	if key, value, ok := strings.Cut(w, ":"); ok && value != "" {
		if p.keyValue(key, value) {
			return
		}
	}
	if strings.HasPrefix(w, "-") {
		if rest := strings.Trim(strings.TrimLeft(w, "-"), wordPunct); rest != "" {
			p.addExcluded(rest)
		}
		return
	}
	if m := thicknessTokenRegex.FindStringSubmatch(w); m != nil && p.setThickness(m[1]) {
		return
	}
	if m := epTokenRegex.FindStringSubmatch(w); m != nil && p.setThickness(m[1]) {
		return
	}
	if m := dimsTokenRegex.FindStringSubmatch(w); m != nil && p.setDimensions(m[1], m[2]) {
		if m[3] != "" {
			p.setThickness(m[3])
		}
		return
	}
	if decorCodeTokenRegex.MatchString(w) {
		p.set(&p.q.DecorCode, strings.ToUpper(w), w)
		return
	}
	if _, ok := hydrofugeWords[w]; ok {
		p.q.Hydrofuge = true
		return
	}
	if _, ok := ignifugeWords[w]; ok {
		p.q.Ignifuge = true
		return
	}
	if _, ok := stopWords[w]; ok {
		return
	}
	if pt, ok := classify.ProductTypeFor(w); ok {
		p.setProductType(pt, w)
		return
	}
	if e, ok := classify.EssenceFor(w); ok {
		p.set(&p.q.Essence, e, w)
		return
	}
	if m, ok := classify.MaterialFor(w); ok {
		if p.q.Material == "" || p.q.Material == m {
			p.q.Material = m
		} else {
			p.addTerm(w)
		}
		return
	}
	if dc, ok := classify.DecorCategoryFor(w); ok {
		if p.q.DecorCategory == "" || p.q.DecorCategory == dc {
			p.q.DecorCategory = dc
		} else {
			p.addTerm(w)
		}
		return
	}
	if name, ok := classify.ManufacturerFor(w); ok {
		p.set(&p.q.Manufacturer, name, w)
		return
	}
	p.addTerm(w)
}

func (p *parser) keyValue(key, value string) bool {
	switch key {
	case "ref", "reference":
		p.q.Reference = value
	case "cat", "catalogue", "catalog":
		p.q.Catalogue = value
	case "type":
		pt := domain.ParseProductType(value)
		if !pt.IsKnown() {
			var ok bool
			if pt, ok = classify.ProductTypeFor(value); !ok {
				return false
			}
		}
		p.q.ProductType = pt
	case "mfr", "fabricant", "marque":
		if name, ok := classify.ManufacturerFor(value); ok {
			p.q.Manufacturer = name
		} else {
			p.q.Manufacturer = value
		}
	default:
		return false
	}
	return true
}

// set assigns a single-valued criterion. A second, different value becomes a free-text term.
func (p *parser) set(field *string, value, word string) {
	switch *field {
	case "":
		*field = value
	case value:
	default:
		p.addTerm(word)
	}
}

func (p *parser) setProductType(pt domain.ProductType, word string) {
	switch p.q.ProductType {
	case "":
		p.q.ProductType = pt
	case pt:
	default:
		p.addTerm(word)
	}
}

func (p *parser) setThickness(s string) bool {
	v, ok := classify.ParseNumber(s)
	if !ok || v < classify.MinThicknessMM || v > classify.MaxThicknessMM {
		return false
	}
	p.q.ThicknessMM = v
	return true
}

func (p *parser) setDimensions(a, b string) bool {
	l, okL := classify.ParseNumber(a)
	w, okW := classify.ParseNumber(b)
	if !okL || !okW {
		return false
	}
	length, width := int(l), int(w)
	if width > length {
		length, width = width, length
	}
	if width < classify.MinDimensionMM || length > classify.MaxDimensionMM {
		return false
	}
	p.q.LengthMM, p.q.WidthMM = length, width
	return true
}

func (p *parser) addTerm(t string) {
	if !containsString(p.q.Terms, t) {
		p.q.Terms = append(p.q.Terms, t)
	}
}

func (p *parser) addExcluded(t string) {
	if !containsString(p.q.Excluded, t) {
		p.q.Excluded = append(p.q.Excluded, t)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// tokenize splits on spaces, keeping "quoted phrases" whole. A leading "-" negates a phrase.
// key:"quoted value" stays one token.
func tokenize(s string) []token {
	var (
		tokens []token
		cur    strings.Builder
		tok    token
		inQ    bool
	)
	flush := func() {
		tok.text = strings.Join(strings.Fields(cur.String()), " ")
		if tok.text != "" || tok.quoted {
			tokens = append(tokens, tok)
		}
		cur.Reset()
		tok = token{}
	}

	for _, r := range s {
		switch {
		case r == '"':
			if inQ {
				inQ = false
				continue
			}
			inQ = true
			if cur.Len() == 0 {
				tok.quoted = true
			} else if cur.String() == "-" {
				cur.Reset()
				tok.quoted, tok.negated = true, true
			}
		case r == ' ' && !inQ:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
