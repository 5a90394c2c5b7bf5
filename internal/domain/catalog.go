package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategorySource is a supplier listing to scrape and the category its panels belong to.
type CategorySource struct {
	Catalogue  string `json:"catalogue"`
	Path       string `json:"path"`        // panneaux/melamines
	Name       string `json:"name"`        // display name of the leaf
	ListingURL string `json:"listing_url"` // first page of the supplier listing
}

type ListingItem struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	URL       string `json:"url"`
}

type ListingPage struct {
	Catalogue    string        `json:"catalogue"`
	CategoryPath string        `json:"category_path"`
	PageNumber   int           `json:"page_number"` // Current page number
	TotalPages   int           `json:"total_pages"` // Total number of pages
	TotalItems   int           `json:"total_items"` // Total items found, 0 when the site does not say
	Items        []ListingItem `json:"items"`       // Items on this page
}

// ScrapedPanel is what a supplier product page yields before classification.
type ScrapedPanel struct {
	Reference    string            `json:"reference"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Manufacturer string            `json:"manufacturer,omitempty"`
	Price        *decimal.Decimal  `json:"price,omitempty"`
	PriceUnit    PriceUnit         `json:"price_unit,omitempty"`
	StockLabel   string            `json:"stock_label,omitempty"`
	ImageURL     string            `json:"image_url,omitempty"`
	SourceURL    string            `json:"source_url"`
	Attributes   map[string]string `json:"attributes,omitempty"` // folded label -> raw value
	Breadcrumb   []string          `json:"breadcrumb,omitempty"`
	ScrapedAt    time.Time         `json:"scraped_at"`
}

type PriceUnit string

const (
	PriceUnitM2    PriceUnit = "m2"
	PriceUnitPiece PriceUnit = "piece"
)
