package repository

import (
	"context"
	"errors"
	"strings"

	"cutx/catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type CategoryRepository interface {
	Upsert(ctx context.Context, c *domain.Category) error
	FindByPath(ctx context.Context, catalogueID uuid.UUID, path string) (*domain.Category, error)
	ListByCatalogue(ctx context.Context, catalogueID uuid.UUID) ([]domain.Category, error)
	EnsurePath(ctx context.Context, catalogueID uuid.UUID, path, leafName string) (*domain.Category, error)
}

type categoryRepository struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{db: db}
}

const categoryColumns = `id, catalogue_id, parent_id, slug, name, path, level, sort_order`

// Upsert stores c keyed by (catalogue_id, path). c.ID is set to the stored id.
func (r *categoryRepository) Upsert(ctx context.Context, c *domain.Category) error {
	query := `
	INSERT INTO categories (id, catalogue_id, parent_id, slug, name, path, level, sort_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (catalogue_id, path)
	DO UPDATE SET parent_id = EXCLUDED.parent_id, name = EXCLUDED.name, sort_order = EXCLUDED.sort_order
	RETURNING id`

	err := r.db.QueryRow(ctx, query, c.ID, c.CatalogueID, c.ParentID, c.Slug, c.Name, c.Path, c.Level, c.SortOrder).
		Scan(&c.ID)
	return mapError("failed to upsert category "+c.Path, err)
}

func (r *categoryRepository) FindByPath(ctx context.Context, catalogueID uuid.UUID, path string) (*domain.Category, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE catalogue_id = $1 AND path = $2`,
		catalogueID, strings.Trim(path, "/"))

	c, err := scanCategory(row)
	if err != nil {
		return nil, mapError("failed to find category "+path, err)
	}
	return c, nil
}

func (r *categoryRepository) ListByCatalogue(ctx context.Context, catalogueID uuid.UUID) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE catalogue_id = $1 ORDER BY level, sort_order, name`,
		catalogueID)
	if err != nil {
		return nil, mapError("failed to list categories", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, mapError("failed to scan category", err)
		}
		categories = append(categories, *c)
	}
	return categories, mapError("failed to list categories", rows.Err())
}

// EnsurePath creates the missing categories along path and returns the leaf.
// Existing categories are left untouched; created ancestors are named after their slug.
func (r *categoryRepository) EnsurePath(ctx context.Context, catalogueID uuid.UUID, path, leafName string) (*domain.Category, error) {
	slugs, err := domain.SplitPath(path)
	if err != nil {
		return nil, err
	}

	var parent *domain.Category
	for i, slug := range slugs {
		current := strings.Join(slugs[:i+1], "/")

		existing, err := r.FindByPath(ctx, catalogueID, current)
		if err == nil {
			parent = existing
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		name := SlugTitle(slug)
		if i == len(slugs)-1 && leafName != "" {
			name = leafName
		}

		var c *domain.Category
		if parent == nil {
			c, err = domain.NewRootCategory(catalogueID, slug, name)
		} else {
			c, err = domain.NewChildCategory(parent, slug, name)
		}
		if err != nil {
			return nil, err
		}

		// concurrent workers may create the same path
		_, err = r.db.Exec(ctx, `
		INSERT INTO categories (id, catalogue_id, parent_id, slug, name, path, level, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (catalogue_id, path) DO NOTHING`,
			c.ID, c.CatalogueID, c.ParentID, c.Slug, c.Name, c.Path, c.Level, c.SortOrder)
		if err != nil {
			return nil, mapError("failed to create category "+current, err)
		}

		if parent, err = r.FindByPath(ctx, catalogueID, current); err != nil {
			return nil, err
		}
	}

	return parent, nil
}

// SlugTitle turns "plaques-bois" into "Plaques Bois".
func SlugTitle(slug string) string {
	return cases.Title(language.French).String(strings.ReplaceAll(slug, "-", " "))
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.ID, &c.CatalogueID, &c.ParentID, &c.Slug, &c.Name, &c.Path, &c.Level, &c.SortOrder); err != nil {
		return nil, err
	}
	return &c, nil
}
