package domain

import "strings"

// ProductType is the finished surface of a panel.
type ProductType string

const (
	ProductTypeMelamine  ProductType = "MELAMINE"
	ProductTypeStratifie ProductType = "STRATIFIE"
	ProductTypeCompact   ProductType = "COMPACT"
	ProductTypePlacage   ProductType = "PLACAGE"
	ProductTypeChant     ProductType = "CHANT"
	ProductTypeBrut      ProductType = "BRUT"
	ProductTypeUnknown   ProductType = "UNKNOWN"
)

var ProductTypes = []ProductType{
	ProductTypeMelamine,
	ProductTypeStratifie,
	ProductTypeCompact,
	ProductTypePlacage,
	ProductTypeChant,
	ProductTypeBrut,
	ProductTypeUnknown,
}

func (t ProductType) String() string {
	return string(t)
}

func (t ProductType) IsValid() bool {
	for _, v := range ProductTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (t ProductType) IsKnown() bool {
	return t != "" && t != ProductTypeUnknown
}

// ParseProductType accepts any casing; unrecognised values map to UNKNOWN.
func ParseProductType(s string) ProductType {
	t := ProductType(strings.ToUpper(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return ProductTypeUnknown
}

// Material is the core substrate of a panel.
type Material string

const (
	MaterialMDF          Material = "MDF"
	MaterialAgglomere    Material = "AGGLOMERE"
	MaterialContreplaque Material = "CONTREPLAQUE"
	MaterialOSB          Material = "OSB"
	MaterialLatte        Material = "LATTE"
	MaterialMassif       Material = "MASSIF"
	MaterialUnknown      Material = "UNKNOWN"
)

var Materials = []Material{
	MaterialMDF,
	MaterialAgglomere,
	MaterialContreplaque,
	MaterialOSB,
	MaterialLatte,
	MaterialMassif,
	MaterialUnknown,
}

func (m Material) String() string {
	return string(m)
}

func (m Material) IsValid() bool {
	for _, v := range Materials {
		if v == m {
			return true
		}
	}
	return false
}

func (m Material) IsKnown() bool {
	return m != "" && m != MaterialUnknown
}

func ParseMaterial(s string) Material {
	m := Material(strings.ToUpper(strings.TrimSpace(s)))
	if m.IsValid() {
		return m
	}
	return MaterialUnknown
}

// DecorCategory groups decors the way the shop filters them.
type DecorCategory string

const (
	DecorUnis      DecorCategory = "UNIS"
	DecorBois      DecorCategory = "BOIS"
	DecorPierre    DecorCategory = "PIERRE"
	DecorMetal     DecorCategory = "METAL"
	DecorFantaisie DecorCategory = "FANTAISIE"
	DecorUnknown   DecorCategory = "UNKNOWN"
)

var DecorCategories = []DecorCategory{
	DecorUnis,
	DecorBois,
	DecorPierre,
	DecorMetal,
	DecorFantaisie,
	DecorUnknown,
}

func (d DecorCategory) String() string {
	return string(d)
}

func (d DecorCategory) IsValid() bool {
	for _, v := range DecorCategories {
		if v == d {
			return true
		}
	}
	return false
}

func (d DecorCategory) IsKnown() bool {
	return d != "" && d != DecorUnknown
}

func ParseDecorCategory(s string) DecorCategory {
	d := DecorCategory(strings.ToUpper(strings.TrimSpace(s)))
	if d.IsValid() {
		return d
	}
	return DecorUnknown
}

type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockOnOrder    StockStatus = "ON_ORDER"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
	StockUnknown    StockStatus = "UNKNOWN"
)

var StockStatuses = []StockStatus{
	StockInStock,
	StockOnOrder,
	StockOutOfStock,
	StockUnknown,
}

func (s StockStatus) String() string {
	return string(s)
}

func (s StockStatus) IsValid() bool {
	for _, v := range StockStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func ParseStockStatus(s string) StockStatus {
	st := StockStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return StockUnknown
}
