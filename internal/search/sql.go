package search

import (
	"fmt"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BuildSmartSearchSQL renders q as an AND-joined WHERE fragment over the panels table.
// Placeholders are numbered from firstArg, and user text only ever travels in args.
// An empty query renders "TRUE".
func BuildSmartSearchSQL(q SmartQuery, firstArg int) (string, []any) {
	b := &sqlBuilder{next: firstArg}

	if q.Catalogue != "" {
		b.add("catalogue_id = (SELECT id FROM catalogues WHERE slug = %s)", q.Catalogue)
	}
	if q.Reference != "" {
		b.add("reference ILIKE %s", contains(q.Reference))
	}
	if q.ProductType != "" {
		b.add("product_type = %s", q.ProductType.String())
	}
	if q.Material != "" {
		b.add("material = %s", q.Material.String())
	}
	if q.Essence != "" {
		b.add("essence = %s", q.Essence)
	}
	if q.DecorCategory != "" {
		b.add("decor_category = %s", q.DecorCategory.String())
	}
	if q.Manufacturer != "" {
		b.add("lower(manufacturer) = lower(%s)", q.Manufacturer)
	}
	if q.DecorCode != "" {
		b.add("upper(decor_code) = %s", strings.ToUpper(q.DecorCode))
	}
	if q.ThicknessMM > 0 {
		b.add("abs(thickness_mm - %s) < 0.05", q.ThicknessMM)
	}
	if q.LengthMM > 0 && q.WidthMM > 0 {
		l, w := b.arg(q.LengthMM), b.arg(q.WidthMM)
		b.where = append(b.where, fmt.Sprintf(
			"((length_mm = %s AND width_mm = %s) OR (length_mm = %s AND width_mm = %s))", l, w, w, l))
	}
	if q.Hydrofuge {
		b.where = append(b.where, "hydrofuge")
	}
	if q.Ignifuge {
		b.where = append(b.where, "ignifuge")
	}
	for _, t := range q.Terms {
		b.add("search_text LIKE %s", contains(t))
	}
	for _, t := range q.Excluded {
		b.add("search_text NOT LIKE %s", contains(t))
	}

	if len(b.where) == 0 {
		return "TRUE", nil
	}
	return strings.Join(b.where, " AND "), b.args
}

type sqlBuilder struct {
	where []string
	args  []any
	next  int
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	ph := fmt.Sprintf("$%d", b.next)
	b.next++
	return ph
}

func (b *sqlBuilder) add(format string, v any) {
	b.where = append(b.where, fmt.Sprintf(format, b.arg(v)))
}

// EscapeLike escapes the LIKE wildcards of s so it matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func contains(s string) string {
	return "%" + EscapeLike(s) + "%"
}
