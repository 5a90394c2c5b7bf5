package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/classify"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/repository"
	"cutx/catalog/internal/search"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// PanelPage is one page of a panel listing.
type PanelPage struct {
	Panels   []domain.Panel `json:"panels"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (p *PanelPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// SearchResult is a page of smart search results with the query as it was understood.
type SearchResult struct {
	PanelPage
	Query search.SmartQuery `json:"query"`
}

// PanelUpdate holds the editable fields of a panel. Nil fields are left unchanged.
type PanelUpdate struct {
	Name          *string
	Description   *string
	Manufacturer  *string
	DecorCode     *string
	DecorName     *string
	Finish        *string
	ProductType   *domain.ProductType
	Material      *domain.Material
	Essence       *string
	DecorCategory *domain.DecorCategory
	Hydrofuge     *bool
	Ignifuge      *bool
	ThicknessMM   *float64
	LengthMM      *int
	WidthMM       *int
	PricePerM2    *decimal.Decimal
	PricePerUnit  *decimal.Decimal
	StockStatus   *domain.StockStatus
	IsActive      *bool
}

// CatalogService serves the catalogue API.
type CatalogService struct {
	catalogues repository.CatalogueRepository
	categories repository.CategoryRepository
	panels     repository.PanelRepository
	cache      cache.Client
	cacheTTL   time.Duration
}

func NewCatalogService(
	catalogues repository.CatalogueRepository,
	categories repository.CategoryRepository,
	panels repository.PanelRepository,
	cacheClient cache.Client,
	cacheTTL time.Duration,
) *CatalogService {
	return &CatalogService{
		catalogues: catalogues,
		categories: categories,
		panels:     panels,
		cache:      cacheClient,
		cacheTTL:   cacheTTL,
	}
}

func (s *CatalogService) ListCatalogues(ctx context.Context) ([]domain.Catalogue, error) {
	return s.catalogues.List(ctx)
}

// CategoryTree returns the nested categories of a catalogue.
func (s *CatalogService) CategoryTree(ctx context.Context, slug string) ([]*domain.CategoryNode, error) {
	key := cache.TreeKey(slug)

	var tree []*domain.CategoryNode
	if s.cacheGet(ctx, key, &tree) {
		return tree, nil
	}

	catalogue, err := s.catalogues.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.ListByCatalogue(ctx, catalogue.ID)
	if err != nil {
		return nil, err
	}

	tree = domain.BuildTree(categories)
	s.cacheSet(ctx, key, tree)
	return tree, nil
}

// ListPanels returns the panels matching filter. Paging is clamped, enum values must be valid.
func (s *CatalogService) ListPanels(ctx context.Context, filter domain.PanelFilter) (*PanelPage, error) {
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}
	filter.Normalize()

	panels, total, err := s.panels.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &PanelPage{Panels: panels, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// ValidateFilter rejects filters the store cannot answer.
func ValidateFilter(filter domain.PanelFilter) error {
	switch {
	case filter.ProductType != "" && !filter.ProductType.IsValid():
		return fmt.Errorf("%w: unknown product type %q", domain.ErrInvalidInput, filter.ProductType)
	case filter.Material != "" && !filter.Material.IsValid():
		return fmt.Errorf("%w: unknown material %q", domain.ErrInvalidInput, filter.Material)
	case filter.DecorCategory != "" && !filter.DecorCategory.IsValid():
		return fmt.Errorf("%w: unknown decor category %q", domain.ErrInvalidInput, filter.DecorCategory)
	case filter.ThicknessMM < 0:
		return fmt.Errorf("%w: negative thickness", domain.ErrInvalidInput)
	case filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice):
		return fmt.Errorf("%w: min_price is above max_price", domain.ErrInvalidInput)
	}
	if filter.CategoryPath != "" {
		if _, err := domain.SplitPath(filter.CategoryPath); err != nil {
			return err
		}
	}
	return nil
}

// SearchPanels runs a smart search over the active panels.
func (s *CatalogService) SearchPanels(ctx context.Context, raw string, page, pageSize int) (*SearchResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrInvalidInput)
	}

	paging := domain.PanelFilter{Page: page, PageSize: pageSize}
	paging.Normalize()

	q := search.ParseSmartQuery(raw)
	log.Debugf("🔍 Smart search %q parsed as %s", raw, q)

	panels, total, err := s.panels.Search(ctx, q, paging.Page, paging.PageSize)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		PanelPage: PanelPage{Panels: panels, Total: total, Page: paging.Page, PageSize: paging.PageSize},
		Query:     q,
	}, nil
}

func (s *CatalogService) GetPanel(ctx context.Context, id uuid.UUID) (*domain.Panel, error) {
	key := cache.PanelKey(id)

	var panel domain.Panel
	if s.cacheGet(ctx, key, &panel) {
		return &panel, nil
	}

	found, err := s.panels.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, found)
	return found, nil
}

func (s *CatalogService) GetPanelByReference(ctx context.Context, slug, reference string) (*domain.Panel, error) {
	catalogue, err := s.catalogues.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.panels.FindByReference(ctx, catalogue.ID, reference)
}

// UpdatePanel applies the non-nil fields of update and returns the stored panel.
func (s *CatalogService) UpdatePanel(ctx context.Context, id uuid.UUID, update PanelUpdate) (*domain.Panel, error) {
	panel, err := s.panels.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(panel, update); err != nil {
		return nil, err
	}
	panel.SearchText = classify.SearchText(panel)

	if err := s.panels.Update(ctx, panel); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.PanelKey(id))

	log.Infof("✏️ Panel %s (%s) updated", panel.Reference, panel.ID)
	return panel, nil
}

// DeactivatePanel hides a panel from the catalogue without deleting it.
func (s *CatalogService) DeactivatePanel(ctx context.Context, id uuid.UUID) error {
	if err := s.panels.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.invalidate(ctx, cache.PanelKey(id))
	log.Infof("🗑️ Panel %s deactivated", id)
	return nil
}

func applyUpdate(p *domain.Panel, u PanelUpdate) error {
	if u.ProductType != nil && !u.ProductType.IsValid() {
		return fmt.Errorf("%w: unknown product type %q", domain.ErrInvalidInput, *u.ProductType)
	}
	if u.Material != nil && !u.Material.IsValid() {
		return fmt.Errorf("%w: unknown material %q", domain.ErrInvalidInput, *u.Material)
	}
	if u.DecorCategory != nil && !u.DecorCategory.IsValid() {
		return fmt.Errorf("%w: unknown decor category %q", domain.ErrInvalidInput, *u.DecorCategory)
	}
	if u.StockStatus != nil && !u.StockStatus.IsValid() {
		return fmt.Errorf("%w: unknown stock status %q", domain.ErrInvalidInput, *u.StockStatus)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}

	setString(&p.Name, u.Name)
	setString(&p.Description, u.Description)
	setString(&p.Manufacturer, u.Manufacturer)
	setString(&p.DecorCode, u.DecorCode)
	setString(&p.DecorName, u.DecorName)
	setString(&p.Finish, u.Finish)
	setString(&p.Essence, u.Essence)
	if u.ProductType != nil {
		p.ProductType = *u.ProductType
	}
	if u.Material != nil {
		p.Material = *u.Material
	}
	if u.DecorCategory != nil {
		p.DecorCategory = *u.DecorCategory
	}
	if u.Hydrofuge != nil {
		p.Hydrofuge = *u.Hydrofuge
	}
	if u.Ignifuge != nil {
		p.Ignifuge = *u.Ignifuge
	}
	if u.ThicknessMM != nil {
		p.ThicknessMM = *u.ThicknessMM
	}
	if u.LengthMM != nil {
		p.LengthMM = *u.LengthMM
	}
	if u.WidthMM != nil {
		p.WidthMM = *u.WidthMM
	}
	if u.PricePerM2 != nil {
		p.PricePerM2 = u.PricePerM2
	}
	if u.PricePerUnit != nil {
		p.PricePerUnit = u.PricePerUnit
	}
	if u.StockStatus != nil {
		p.StockStatus = *u.StockStatus
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	err := cache.GetJSON(ctx, s.cache, key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warnf("⚠️ Cache read failed: %v", err)
	}
	return false
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, s.cacheTTL); err != nil {
		log.Warnf("⚠️ Cache write failed: %v", err)
	}
}

func (s *CatalogService) invalidate(ctx context.Context, keys ...string) {
	dropCached(ctx, s.cache, keys...)
}

// dropCached deletes keys from c after a write. A nil client or a failed delete is not an error.
func dropCached(ctx context.Context, c cache.Client, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		log.Warnf("⚠️ Cache invalidation failed: %v", err)
	}
}
