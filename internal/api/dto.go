package api

import (
	"fmt"
	"strings"

	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/service"

	"github.com/shopspring/decimal"
)

// PanelQuery is the query string of GET /panels.
type PanelQuery struct {
	Catalogue    string  `form:"catalogue" binding:"omitempty,max=50"`
	Category     string  `form:"category" binding:"omitempty,max=255"`
	ProductType  string  `form:"product_type" binding:"omitempty,product_type"`
	Material     string  `form:"material" binding:"omitempty,material"`
	Essence      string  `form:"essence" binding:"omitempty,max=50"`
	Decor        string  `form:"decor" binding:"omitempty,decor_category"`
	Manufacturer string  `form:"manufacturer" binding:"omitempty,max=100"`
	Thickness    float64 `form:"thickness" binding:"omitempty,gt=0,lte=100"`
	MinPrice     string  `form:"min_price" binding:"omitempty,numeric"`
	MaxPrice     string  `form:"max_price" binding:"omitempty,numeric"`
	InStock      bool    `form:"in_stock"`
	Sort         string  `form:"sort" binding:"omitempty,oneof=name reference thickness_mm price_per_m2 updated_at"`
	Order        string  `form:"order" binding:"omitempty,oneof=asc desc"`
	Page         int     `form:"page" binding:"omitempty,min=1"`
	PageSize     int     `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q PanelQuery) Filter() (domain.PanelFilter, error) {
	filter := domain.PanelFilter{
		CatalogueSlug: strings.TrimSpace(q.Catalogue),
		CategoryPath:  strings.Trim(strings.TrimSpace(q.Category), "/"),
		Essence:       strings.TrimSpace(q.Essence),
		Manufacturer:  strings.TrimSpace(q.Manufacturer),
		ThicknessMM:   q.Thickness,
		InStockOnly:   q.InStock,
		Sort:          q.Sort,
		Desc:          q.Order == "desc",
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	if q.ProductType != "" {
		filter.ProductType = domain.ParseProductType(q.ProductType)
	}
	if q.Material != "" {
		filter.Material = domain.ParseMaterial(q.Material)
	}
	if q.Decor != "" {
		filter.DecorCategory = domain.ParseDecorCategory(q.Decor)
	}

	var err error
	if filter.MinPrice, err = parsePrice("min_price", q.MinPrice); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parsePrice("max_price", q.MaxPrice); err != nil {
		return filter, err
	}
	return filter, nil
}

func parsePrice(field, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%w: %s must be a positive number", domain.ErrInvalidInput, field)
	}
	return &d, nil
}

type SearchQuery struct {
	Q        string `form:"q" binding:"required,max=200"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// UpdatePanelRequest is the body of PATCH /panels/:id. Absent fields are left unchanged.
type UpdatePanelRequest struct {
	Name          *string          `json:"name" binding:"omitempty,min=1,max=255"`
	Description   *string          `json:"description" binding:"omitempty,max=5000"`
	Manufacturer  *string          `json:"manufacturer" binding:"omitempty,max=100"`
	DecorCode     *string          `json:"decor_code" binding:"omitempty,max=20"`
	DecorName     *string          `json:"decor_name" binding:"omitempty,max=255"`
	Finish        *string          `json:"finish" binding:"omitempty,max=50"`
	ProductType   *string          `json:"product_type" binding:"omitempty,product_type"`
	Material      *string          `json:"material" binding:"omitempty,material"`
	Essence       *string          `json:"essence" binding:"omitempty,max=50"`
	DecorCategory *string          `json:"decor_category" binding:"omitempty,decor_category"`
	Hydrofuge     *bool            `json:"hydrofuge"`
	Ignifuge      *bool            `json:"ignifuge"`
	ThicknessMM   *float64         `json:"thickness_mm" binding:"omitempty,gt=0,lte=100"`
	LengthMM      *int             `json:"length_mm" binding:"omitempty,min=0,max=6000"`
	WidthMM       *int             `json:"width_mm" binding:"omitempty,min=0,max=6000"`
	PricePerM2    *decimal.Decimal `json:"price_per_m2"`
	PricePerUnit  *decimal.Decimal `json:"price_per_unit"`
	StockStatus   *string          `json:"stock_status" binding:"omitempty,stock_status"`
	IsActive      *bool            `json:"is_active"`
}

func (r UpdatePanelRequest) Update() (service.PanelUpdate, error) {
	for field, price := range map[string]*decimal.Decimal{"price_per_m2": r.PricePerM2, "price_per_unit": r.PricePerUnit} {
		if price != nil && price.IsNegative() {
			return service.PanelUpdate{}, fmt.Errorf("%w: %s must be a positive number", domain.ErrInvalidInput, field)
		}
	}

	u := service.PanelUpdate{
		Name:         r.Name,
		Description:  r.Description,
		Manufacturer: r.Manufacturer,
		DecorCode:    r.DecorCode,
		DecorName:    r.DecorName,
		Finish:       r.Finish,
		Essence:      r.Essence,
		Hydrofuge:    r.Hydrofuge,
		Ignifuge:     r.Ignifuge,
		ThicknessMM:  r.ThicknessMM,
		LengthMM:     r.LengthMM,
		WidthMM:      r.WidthMM,
		PricePerM2:   r.PricePerM2,
		PricePerUnit: r.PricePerUnit,
		IsActive:     r.IsActive,
	}
	if r.ProductType != nil {
		pt := domain.ParseProductType(*r.ProductType)
		u.ProductType = &pt
	}
	if r.Material != nil {
		m := domain.ParseMaterial(*r.Material)
		u.Material = &m
	}
	if r.DecorCategory != nil {
		d := domain.ParseDecorCategory(*r.DecorCategory)
		u.DecorCategory = &d
	}
	if r.StockStatus != nil {
		s := domain.ParseStockStatus(*r.StockStatus)
		u.StockStatus = &s
	}
	return u, nil
}
