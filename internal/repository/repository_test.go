package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cutx/catalog/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPanelWhere(t *testing.T) {
	minPrice := decimal.NewFromInt(10)

	testCases := []struct {
		name         string
		filter       domain.PanelFilter
		expectedSQL  string
		expectedArgs []any
	}{
		{
			name:         "default lists active panels",
			filter:       domain.PanelFilter{},
			expectedSQL:  "is_active",
			expectedArgs: nil,
		},
		{
			name:         "include inactive without criteria",
			filter:       domain.PanelFilter{IncludeAll: true},
			expectedSQL:  "TRUE",
			expectedArgs: nil,
		},
		{
			name: "catalogue and category subtree",
			filter: domain.PanelFilter{
				CatalogueSlug: "bouney",
				CategoryPath:  "/panneaux/melamines/",
			},
			expectedSQL: "is_active AND catalogue_id = (SELECT id FROM catalogues WHERE slug = $1)" +
				" AND category_id IN (SELECT id FROM categories WHERE path = $2 OR path LIKE $3)",
			expectedArgs: []any{"bouney", "panneaux/melamines", "panneaux/melamines/%"},
		},
		{
			name:         "category wildcards match literally",
			filter:       domain.PanelFilter{IncludeAll: true, CategoryPath: `a_b/c%d`},
			expectedSQL:  "category_id IN (SELECT id FROM categories WHERE path = $1 OR path LIKE $2)",
			expectedArgs: []any{`a_b/c%d`, `a\_b/c\%d/%`},
		},
		{
			name: "classification, thickness, price and stock",
			filter: domain.PanelFilter{
				IncludeAll:  true,
				ProductType: domain.ProductTypeMelamine,
				Material:    domain.MaterialMDF,
				Essence:     "Chêne",
				ThicknessMM: 19,
				MinPrice:    &minPrice,
				InStockOnly: true,
			},
			expectedSQL: "product_type = $1 AND material = $2 AND lower(essence) = lower($3)" +
				" AND abs(thickness_mm - $4) < 0.05 AND price_per_m2 >= $5 AND stock_status = $6",
			expectedArgs: []any{domain.ProductTypeMelamine, domain.MaterialMDF, "Chêne", 19.0, minPrice, domain.StockInStock},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args := panelWhere(tc.filter)
			assert.Equal(t, tc.expectedSQL, sql)
			assert.Equal(t, tc.expectedArgs, args)
			assert.Equal(t, len(args), strings.Count(sql, "$"))
		})
	}
}

func TestPanelOrderBy(t *testing.T) {
	assert.Equal(t, "name ASC NULLS LAST, id", panelOrderBy("", false))
	assert.Equal(t, "price_per_m2 DESC NULLS LAST, id", panelOrderBy("price_per_m2", true))
	assert.Equal(t, "name ASC NULLS LAST, id", panelOrderBy("name; DROP TABLE panels", false))
}

func TestRestoreAssignments(t *testing.T) {
	sets := restoreAssignments()

	assert.NotContains(t, sets, "id = EXCLUDED.id,")
	assert.Contains(t, sets, "catalogue_id = EXCLUDED.catalogue_id")
	assert.Contains(t, sets, "updated_at = EXCLUDED.updated_at")
	assert.Equal(t, 28, strings.Count(sets, "EXCLUDED."))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))
	assert.ErrorIs(t, mapError("op", pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, mapError("op", fmt.Errorf("scan: %w", pgx.ErrNoRows)), domain.ErrNotFound)
	assert.ErrorIs(t, mapError("op", &pgconn.PgError{Code: "23505", ConstraintName: "panels_catalogue_id_reference_key"}), domain.ErrConflict)

	other := errors.New("connection refused")
	err := mapError("op", other)
	assert.ErrorIs(t, err, other)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestSlugTitle(t *testing.T) {
	assert.Equal(t, "Plaques Bois", SlugTitle("plaques-bois"))
	assert.Equal(t, "Mdf", SlugTitle("mdf"))
}
