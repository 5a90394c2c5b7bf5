package service

import (
	"context"
	"testing"
	"time"

	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/search"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCatalogService() (*CatalogService, *MockCatalogueRepository, *MockCategoryRepository, *MockPanelRepository, *memoryCache) {
	catalogues := new(MockCatalogueRepository)
	categories := new(MockCategoryRepository)
	panels := new(MockPanelRepository)
	mem := newMemoryCache()
	return NewCatalogService(catalogues, categories, panels, mem, time.Minute), catalogues, categories, panels, mem
}

func TestValidateFilter(t *testing.T) {
	low, high := decimal.NewFromInt(50), decimal.NewFromInt(10)

	testCases := []struct {
		name    string
		filter  domain.PanelFilter
		wantErr bool
	}{
		{name: "empty", filter: domain.PanelFilter{}},
		{name: "valid enums", filter: domain.PanelFilter{ProductType: domain.ProductTypeChant, Material: domain.MaterialOSB, DecorCategory: domain.DecorBois}},
		{name: "bad product type", filter: domain.PanelFilter{ProductType: "PLYWOOD"}, wantErr: true},
		{name: "bad material", filter: domain.PanelFilter{Material: "mdf"}, wantErr: true},
		{name: "bad decor", filter: domain.PanelFilter{DecorCategory: "STONE"}, wantErr: true},
		{name: "negative thickness", filter: domain.PanelFilter{ThicknessMM: -1}, wantErr: true},
		{name: "inverted price range", filter: domain.PanelFilter{MinPrice: &low, MaxPrice: &high}, wantErr: true},
		{name: "bad category path", filter: domain.PanelFilter{CategoryPath: "Panneaux/Mélaminés"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilter(tc.filter)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestListPanels_ClampsPaging(t *testing.T) {
	svc, _, _, panels, _ := newCatalogService()

	panels.On("List", mock.Anything, mock.MatchedBy(func(f domain.PanelFilter) bool {
		return f.Page == 1 && f.PageSize == domain.MaxPageSize
	})).Return([]domain.Panel{{Reference: "1"}}, 250, nil)

	page, err := svc.ListPanels(context.Background(), domain.PanelFilter{Page: -3, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 250, page.Total)
	assert.Equal(t, 3, page.TotalPages())
	panels.AssertExpectations(t)
}

func TestSearchPanels(t *testing.T) {
	svc, _, _, panels, _ := newCatalogService()

	panels.On("Search", mock.Anything, mock.MatchedBy(func(q search.SmartQuery) bool {
		return q.ProductType == domain.ProductTypeMelamine && q.ThicknessMM == 19
	}), 2, domain.DefaultPageSize).Return([]domain.Panel{}, 21, nil)

	result, err := svc.SearchPanels(context.Background(), "mela 19mm", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 21, result.Total)
	assert.Equal(t, 2, result.TotalPages())
	assert.Equal(t, domain.ProductTypeMelamine, result.Query.ProductType)

	_, err = svc.SearchPanels(context.Background(), "   ", 1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	panels.AssertExpectations(t)
}

func TestGetPanel_UsesCache(t *testing.T) {
	svc, _, _, panels, mem := newCatalogService()
	id := uuid.New()

	panels.On("FindByID", mock.Anything, id).Return(&domain.Panel{ID: id, Reference: "100001"}, nil).Once()

	first, err := svc.GetPanel(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, mem.values, cache.PanelKey(id))

	second, err := svc.GetPanel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference)
	panels.AssertExpectations(t)
}

func TestCategoryTree_UsesCache(t *testing.T) {
	svc, catalogues, categories, _, mem := newCatalogService()
	catalogueID, rootID := uuid.New(), uuid.New()

	catalogues.On("FindBySlug", mock.Anything, "bouney").Return(&domain.Catalogue{ID: catalogueID}, nil).Once()
	categories.On("ListByCatalogue", mock.Anything, catalogueID).Return([]domain.Category{
		{ID: rootID, Slug: "panneaux", Name: "Panneaux", Path: "panneaux"},
		{ID: uuid.New(), ParentID: &rootID, Slug: "melamines", Name: "Mélaminés", Path: "panneaux/melamines", Level: 1},
	}, nil).Once()

	tree, err := svc.CategoryTree(context.Background(), "bouney")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Children, 1)
	assert.Contains(t, mem.values, cache.TreeKey("bouney"))

	cached, err := svc.CategoryTree(context.Background(), "bouney")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "melamines", cached[0].Children[0].Slug)

	catalogues.AssertExpectations(t)
	categories.AssertExpectations(t)
}

func TestUpdatePanel(t *testing.T) {
	svc, _, _, panels, mem := newCatalogService()
	id := uuid.New()
	mem.values[cache.PanelKey(id)] = `{"reference":"stale"}`

	panels.On("FindByID", mock.Anything, id).Return(&domain.Panel{
		ID: id, Reference: "100001", Name: "Panneau", ProductType: domain.ProductTypeUnknown,
	}, nil)
	panels.On("Update", mock.Anything, mock.MatchedBy(func(p *domain.Panel) bool {
		return p.ProductType == domain.ProductTypeMelamine && p.Essence == "chene" &&
			p.PricePerM2 != nil && p.SearchText == "100001 panneau chene"
	})).Return(nil).Once()

	productType := domain.ProductTypeMelamine
	essence := " chene "
	price := decimal.RequireFromString("32.5")
	panel, err := svc.UpdatePanel(context.Background(), id, PanelUpdate{
		ProductType: &productType,
		Essence:     &essence,
		PricePerM2:  &price,
	})
	require.NoError(t, err)
	assert.Equal(t, "chene", panel.Essence)
	assert.NotContains(t, mem.values, cache.PanelKey(id))

	bad := domain.StockStatus("SOMETIMES")
	_, err = svc.UpdatePanel(context.Background(), id, PanelUpdate{StockStatus: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	panels.AssertExpectations(t)
}

func TestDeactivatePanel(t *testing.T) {
	svc, _, _, panels, mem := newCatalogService()
	id := uuid.New()
	mem.values[cache.PanelKey(id)] = `{}`

	panels.On("SetActive", mock.Anything, id, false).Return(nil).Once()

	require.NoError(t, svc.DeactivatePanel(context.Background(), id))
	assert.Empty(t, mem.values)
	panels.AssertExpectations(t)
}

func TestGetPanelByReference_UnknownCatalogue(t *testing.T) {
	svc, catalogues, _, _, _ := newCatalogService()
	catalogues.On("FindBySlug", mock.Anything, "leroy").Return(nil, domain.ErrNotFound)

	_, err := svc.GetPanelByReference(context.Background(), "leroy", "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
