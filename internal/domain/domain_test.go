package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	assert.Equal(t, ProductTypeMelamine, ParseProductType(" melamine "))
	assert.Equal(t, ProductTypeUnknown, ParseProductType("plywood"))
	assert.Equal(t, MaterialMDF, ParseMaterial("mdf"))
	assert.Equal(t, MaterialUnknown, ParseMaterial(""))
	assert.Equal(t, DecorBois, ParseDecorCategory("Bois"))
	assert.Equal(t, StockOnOrder, ParseStockStatus("on_order"))
	assert.Equal(t, StockUnknown, ParseStockStatus("maybe"))

	assert.False(t, ProductTypeUnknown.IsKnown())
	assert.True(t, ProductTypeChant.IsKnown())
	assert.False(t, DecorCategory("").IsKnown())
}

func TestSplitPath(t *testing.T) {
	testCases := []struct {
		name    string
		path    string
		want    []string
		wantErr bool
	}{
		{name: "single", path: "panneaux", want: []string{"panneaux"}},
		{name: "trimmed", path: " /panneaux/melamines/ ", want: []string{"panneaux", "melamines"}},
		{name: "empty", path: "/", wantErr: true},
		{name: "empty segment", path: "panneaux//mdf", wantErr: true},
		{name: "uppercase", path: "Panneaux", wantErr: true},
		{name: "too deep", path: "a/b/c/d/e", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitPath(tc.path)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewChildCategory(t *testing.T) {
	root, err := NewRootCategory(uuid.New(), "panneaux", "Panneaux")
	require.NoError(t, err)

	child, err := NewChildCategory(root, "melamines", "Mélaminés")
	require.NoError(t, err)
	assert.Equal(t, "panneaux/melamines", child.Path)
	assert.Equal(t, 1, child.Level)
	assert.Equal(t, root.ID, *child.ParentID)
	assert.Equal(t, root.CatalogueID, child.CatalogueID)

	level2, err := NewChildCategory(child, "c", "C")
	require.NoError(t, err)
	level3, err := NewChildCategory(level2, "d", "D")
	require.NoError(t, err)
	assert.Equal(t, MaxCategoryDepth-1, level3.Level)

	_, err = NewChildCategory(level3, "e", "E")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildTree(t *testing.T) {
	catalogueID := uuid.New()
	root, _ := NewRootCategory(catalogueID, "panneaux", "Panneaux")
	chants, _ := NewRootCategory(catalogueID, "chants", "Chants")
	mdf, _ := NewChildCategory(root, "mdf", "MDF")
	mela, _ := NewChildCategory(root, "melamines", "Mélaminés")
	orphanParent := uuid.New()
	orphan := Category{ID: uuid.New(), CatalogueID: catalogueID, ParentID: &orphanParent, Slug: "orphan", Name: "Orphan", Path: "x/orphan"}

	tree := BuildTree([]Category{*mela, *root, orphan, *mdf, *chants})

	require.Len(t, tree, 3)
	assert.Equal(t, "Chants", tree[0].Name)
	assert.Equal(t, "Orphan", tree[1].Name)
	assert.Equal(t, "Panneaux", tree[2].Name)
	require.Len(t, tree[2].Children, 2)
	assert.Equal(t, "MDF", tree[2].Children[0].Name)
	assert.Equal(t, "Mélaminés", tree[2].Children[1].Name)
	assert.NotNil(t, tree[0].Children)
}

func TestBuildTree_ParentCycle(t *testing.T) {
	catalogueID := uuid.New()
	a := Category{ID: uuid.New(), CatalogueID: catalogueID, Name: "A", Slug: "a", Path: "a"}
	b := Category{ID: uuid.New(), CatalogueID: catalogueID, Name: "B", Slug: "b", Path: "b"}
	c := Category{ID: uuid.New(), CatalogueID: catalogueID, Name: "C", Slug: "c", Path: "c"}
	a.ParentID, b.ParentID, c.ParentID = &b.ID, &a.ID, &a.ID
	self := Category{ID: uuid.New(), CatalogueID: catalogueID, Name: "Self", Slug: "self", Path: "self"}
	self.ParentID = &self.ID

	tree := BuildTree([]Category{a, b, c, self, a})

	require.Len(t, tree, 2)
	assert.Equal(t, "B", tree[0].Name)
	assert.Equal(t, "Self", tree[1].Name)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "A", tree[0].Children[0].Name)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "C", tree[0].Children[0].Children[0].Name)

	seen := map[uuid.UUID]int{}
	var walk func([]*CategoryNode)
	walk = func(nodes []*CategoryNode) {
		for _, n := range nodes {
			seen[n.ID]++
			walk(n.Children)
		}
	}
	walk(tree)
	assert.Equal(t, map[uuid.UUID]int{a.ID: 1, b.ID: 1, c.ID: 1, self.ID: 1}, seen)
}

func TestPanelSheetPrice(t *testing.T) {
	m2 := decimal.RequireFromString("12.50")
	unit := decimal.RequireFromString("80")

	testCases := []struct {
		name  string
		panel Panel
		want  string
	}{
		{name: "unit price wins", panel: Panel{PricePerUnit: &unit, PricePerM2: &m2, LengthMM: 2800, WidthMM: 2070}, want: "80"},
		{name: "derived from m2", panel: Panel{PricePerM2: &m2, LengthMM: 2800, WidthMM: 2070}, want: "72.45"},
		{name: "no dimensions", panel: Panel{PricePerM2: &m2}},
		{name: "no price", panel: Panel{LengthMM: 2800, WidthMM: 2070}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.panel.SheetPrice()
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestPanelFilterNormalize(t *testing.T) {
	f := PanelFilter{Page: -2, PageSize: 1000}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, 0, f.Offset())

	f = PanelFilter{Page: 3}
	f.Normalize()
	assert.Equal(t, DefaultPageSize, f.PageSize)
	assert.Equal(t, 40, f.Offset())
}

func TestBatchReportMerge(t *testing.T) {
	total := NewBatchReport()
	part := &BatchReport{Processed: 3, Created: 1, Updated: 1}
	part.Fail("100001", "save", errors.New("duplicate"))
	part.CountChange("product_type")

	total.Merge(part)
	total.Merge(nil)
	total.CountChange("product_type")

	assert.Equal(t, 3, total.Processed)
	assert.Equal(t, 1, total.Failed)
	assert.Equal(t, 2, total.Changes["product_type"])
	require.Len(t, total.Errors, 1)
	assert.Equal(t, ItemError{Key: "100001", Stage: "save", Error: "duplicate"}, total.Errors[0])
	assert.Equal(t, "processed=3 created=1 updated=1 skipped=0 failed=1", total.String())
}
