package classify

import (
	"strconv"

	"cutx/catalog/internal/domain"
)

// FieldChange is one panel attribute a reclassification would rewrite.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Diff lists the changes Apply would make. Without force only unknown, empty or zero
// fields are filled; with force every field the heuristics could determine is overwritten.
// Unknown heuristic results never overwrite anything.
func Diff(p *domain.Panel, c Classification, force bool) []FieldChange {
	var changes []FieldChange
	add := func(field, old, next string, oldEmpty, nextKnown bool) {
		if !nextKnown || old == next {
			return
		}
		if !oldEmpty && !force {
			return
		}
		changes = append(changes, FieldChange{Field: field, Old: old, New: next})
	}

	add("product_type", p.ProductType.String(), c.ProductType.String(), !p.ProductType.IsKnown(), c.ProductType.IsKnown())
	add("material", p.Material.String(), c.Material.String(), !p.Material.IsKnown(), c.Material.IsKnown())
	add("essence", p.Essence, c.Essence, p.Essence == "", c.Essence != "")
	add("decor_category", p.DecorCategory.String(), c.DecorCategory.String(), !p.DecorCategory.IsKnown(), c.DecorCategory.IsKnown())
	add("manufacturer", p.Manufacturer, c.Manufacturer, p.Manufacturer == "", c.Manufacturer != "")
	add("decor_code", p.DecorCode, c.DecorCode, p.DecorCode == "", c.DecorCode != "")
	add("finish", p.Finish, c.Finish, p.Finish == "", c.Finish != "")
	add("thickness_mm", formatFloat(p.ThicknessMM), formatFloat(c.ThicknessMM), p.ThicknessMM == 0, c.ThicknessMM > 0)
	// length and width move as one pair
	dimsEmpty := p.LengthMM == 0 || p.WidthMM == 0
	dimsKnown := c.LengthMM > 0 && c.WidthMM > 0
	add("length_mm", strconv.Itoa(p.LengthMM), strconv.Itoa(c.LengthMM), dimsEmpty, dimsKnown)
	add("width_mm", strconv.Itoa(p.WidthMM), strconv.Itoa(c.WidthMM), dimsEmpty, dimsKnown)
	// flags only ever get raised
	add("hydrofuge", strconv.FormatBool(p.Hydrofuge), strconv.FormatBool(c.Hydrofuge), !p.Hydrofuge, c.Hydrofuge)
	add("ignifuge", strconv.FormatBool(p.Ignifuge), strconv.FormatBool(c.Ignifuge), !p.Ignifuge, c.Ignifuge)

	return changes
}

// Apply writes the changes Diff reports onto p and returns them.
func Apply(p *domain.Panel, c Classification, force bool) []FieldChange {
	changes := Diff(p, c, force)
	for _, ch := range changes {
		switch ch.Field {
		case "product_type":
			p.ProductType = c.ProductType
		case "material":
			p.Material = c.Material
		case "essence":
			p.Essence = c.Essence
		case "decor_category":
			p.DecorCategory = c.DecorCategory
		case "manufacturer":
			p.Manufacturer = c.Manufacturer
		case "decor_code":
			p.DecorCode = c.DecorCode
		case "finish":
			p.Finish = c.Finish
		case "thickness_mm":
			p.ThicknessMM = c.ThicknessMM
		case "length_mm":
			p.LengthMM = c.LengthMM
		case "width_mm":
			p.WidthMM = c.WidthMM
		case "hydrofuge":
			p.Hydrofuge = c.Hydrofuge
		case "ignifuge":
			p.Ignifuge = c.Ignifuge
		}
	}
	return changes
}

// CategoryPath returns the category a panel belongs to, "" when no rule matches.
func CategoryPath(productType domain.ProductType, material domain.Material) string {
	switch productType {
	case domain.ProductTypeMelamine:
		return "panneaux/melamines"
	case domain.ProductTypeStratifie:
		return "panneaux/stratifies"
	case domain.ProductTypeCompact:
		return "panneaux/compacts"
	case domain.ProductTypePlacage:
		return "panneaux/plaques-bois"
	case domain.ProductTypeChant:
		return "chants"
	case domain.ProductTypeBrut:
		switch material {
		case domain.MaterialMDF:
			return "panneaux/bruts/mdf"
		case domain.MaterialAgglomere:
			return "panneaux/bruts/agglomere"
		case domain.MaterialContreplaque:
			return "panneaux/bruts/contreplaque"
		case domain.MaterialOSB:
			return "panneaux/bruts/osb"
		case domain.MaterialLatte:
			return "panneaux/bruts/latte"
		case domain.MaterialMassif:
			return "panneaux/bruts/massif"
		}
		return "panneaux/bruts"
	}
	return ""
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
