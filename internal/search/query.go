package search

import (
	"fmt"
	"strconv"
	"strings"

	"cutx/catalog/internal/domain"
)

// SmartQuery is the structured form of a free-text catalogue query.
// Text fields are folded (lower-case, no accents) except DecorCode which is upper-case.
type SmartQuery struct {
	Raw string `json:"raw"`

	Catalogue     string               `json:"catalogue,omitempty"`
	Reference     string               `json:"reference,omitempty"`
	ProductType   domain.ProductType   `json:"product_type,omitempty"`
	Material      domain.Material      `json:"material,omitempty"`
	Essence       string               `json:"essence,omitempty"`
	DecorCategory domain.DecorCategory `json:"decor_category,omitempty"`
	Manufacturer  string               `json:"manufacturer,omitempty"`
	DecorCode     string               `json:"decor_code,omitempty"`
	ThicknessMM   float64              `json:"thickness_mm,omitempty"`
	LengthMM      int                  `json:"length_mm,omitempty"`
	WidthMM       int                  `json:"width_mm,omitempty"`
	Hydrofuge     bool                 `json:"hydrofuge,omitempty"`
	Ignifuge      bool                 `json:"ignifuge,omitempty"`

	Terms    []string `json:"terms,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
}

// IsEmpty reports whether the query constrains nothing.
func (q SmartQuery) IsEmpty() bool {
	return q.Catalogue == "" && q.Reference == "" &&
		q.ProductType == "" && q.Material == "" && q.Essence == "" && q.DecorCategory == "" &&
		q.Manufacturer == "" && q.DecorCode == "" &&
		q.ThicknessMM == 0 && q.LengthMM == 0 && q.WidthMM == 0 &&
		!q.Hydrofuge && !q.Ignifuge &&
		len(q.Terms) == 0 && len(q.Excluded) == 0
}

// String renders the query canonically. Parsing the result yields the same criteria.
func (q SmartQuery) String() string {
	var parts []string
	if q.Catalogue != "" {
		parts = append(parts, "cat:"+q.Catalogue)
	}
	if q.Reference != "" {
		parts = append(parts, "ref:"+quoteIfNeeded(q.Reference))
	}
	if q.ProductType != "" {
		parts = append(parts, "type:"+strings.ToLower(q.ProductType.String()))
	}
	if q.Material != "" {
		parts = append(parts, strings.ToLower(q.Material.String()))
	}
	if q.Essence != "" {
		parts = append(parts, q.Essence)
	}
	if q.DecorCategory != "" {
		parts = append(parts, strings.ToLower(q.DecorCategory.String()))
	}
	if q.Manufacturer != "" {
		parts = append(parts, "mfr:"+quoteIfNeeded(strings.ToLower(q.Manufacturer)))
	}
	if q.DecorCode != "" {
		parts = append(parts, strings.ToLower(q.DecorCode))
	}
	if q.ThicknessMM > 0 {
		parts = append(parts, strconv.FormatFloat(q.ThicknessMM, 'f', -1, 64)+"mm")
	}
	if q.LengthMM > 0 && q.WidthMM > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", q.LengthMM, q.WidthMM))
	}
	if q.Hydrofuge {
		parts = append(parts, "hydrofuge")
	}
	if q.Ignifuge {
		parts = append(parts, "ignifuge")
	}
	for _, t := range q.Terms {
		parts = append(parts, termToken(t))
	}
	for _, t := range q.Excluded {
		parts = append(parts, excludedToken(t))
	}
	return strings.Join(parts, " ")
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// termToken quotes t unless it parses back, on its own, as exactly the free-text term t.
func termToken(t string) string {
	if parsesAs(t, t, func(q *SmartQuery) *[]string { return &q.Terms }) {
		return t
	}
	return `"` + t + `"`
}

func excludedToken(t string) string {
	if parsesAs("-"+t, t, func(q *SmartQuery) *[]string { return &q.Excluded }) {
		return "-" + t
	}
	return `-"` + t + `"`
}

func parsesAs(s, want string, list func(*SmartQuery) *[]string) bool {
	if strings.ContainsAny(s, " \t\"") {
		return false
	}
	q := ParseSmartQuery(s)
	got := list(&q)
	if len(*got) != 1 || (*got)[0] != want {
		return false
	}
	*got = nil
	return q.IsEmpty()
}
