package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Panel is a wood panel product of a catalogue.
type Panel struct {
	ID          uuid.UUID  `json:"id"`
	CatalogueID uuid.UUID  `json:"catalogue_id"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	Reference   string     `json:"reference"` // supplier reference, unique per catalogue

	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	DecorCode    string `json:"decor_code,omitempty"` // H1145, U999...
	DecorName    string `json:"decor_name,omitempty"`
	Finish       string `json:"finish,omitempty"` // ST10, mat, brillant

	ProductType   ProductType   `json:"product_type"`
	Material      Material      `json:"material"`
	Essence       string        `json:"essence,omitempty"`
	DecorCategory DecorCategory `json:"decor_category"`
	Hydrofuge     bool          `json:"hydrofuge"`
	Ignifuge      bool          `json:"ignifuge"`

	ThicknessMM float64 `json:"thickness_mm"`
	LengthMM    int     `json:"length_mm"`
	WidthMM     int     `json:"width_mm"`

	PricePerM2   *decimal.Decimal `json:"price_per_m2,omitempty"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit,omitempty"`
	StockStatus  StockStatus      `json:"stock_status"`

	ImageURL  string     `json:"image_url,omitempty"`
	SourceURL string     `json:"source_url,omitempty"`
	ScrapedAt *time.Time `json:"scraped_at,omitempty"`

	SearchText string    `json:"-"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AreaM2 is the surface of one full sheet, zero when a dimension is unknown.
func (p *Panel) AreaM2() decimal.Decimal {
	if p.LengthMM <= 0 || p.WidthMM <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.LengthMM)).
		Mul(decimal.NewFromInt(int64(p.WidthMM))).
		Div(decimal.NewFromInt(1_000_000))
}

// SheetPrice returns the unit price, deriving it from the m² price when only that one is known.
func (p *Panel) SheetPrice() *decimal.Decimal {
	if p.PricePerUnit != nil {
		return p.PricePerUnit
	}
	if p.PricePerM2 == nil {
		return nil
	}
	area := p.AreaM2()
	if area.IsZero() {
		return nil
	}
	price := p.PricePerM2.Mul(area).Round(2)
	return &price
}

// PanelFilter holds the listing criteria of the catalogue API.
type PanelFilter struct {
	CatalogueSlug string
	CategoryPath  string
	ProductType   ProductType
	Material      Material
	Essence       string
	DecorCategory DecorCategory
	Manufacturer  string
	ThicknessMM   float64
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	InStockOnly   bool
	IncludeAll    bool // include inactive panels
	Sort          string
	Desc          bool
	Page          int
	PageSize      int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds.
func (f *PanelFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f *PanelFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// PanelCount is one row of the catalogue statistics.
type PanelCount struct {
	Catalogue   string      `json:"catalogue"`
	ProductType ProductType `json:"product_type"`
	Active      int         `json:"active"`
	Total       int         `json:"total"`
}
