package repository

import (
	"context"

	"cutx/catalog/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CatalogueRepository interface {
	Upsert(ctx context.Context, c *domain.Catalogue) error
	FindBySlug(ctx context.Context, slug string) (*domain.Catalogue, error)
	List(ctx context.Context) ([]domain.Catalogue, error)
}

type catalogueRepository struct {
	db *pgxpool.Pool
}

func NewCatalogueRepository(db *pgxpool.Pool) CatalogueRepository {
	return &catalogueRepository{db: db}
}

const catalogueColumns = `id, slug, name, base_url, is_active, created_at, updated_at`

// Upsert inserts c or refreshes the catalogue with the same slug. c.ID is set to the stored id.
func (r *catalogueRepository) Upsert(ctx context.Context, c *domain.Catalogue) error {
	query := `
	INSERT INTO catalogues (id, slug, name, base_url, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (slug)
	DO UPDATE SET name = EXCLUDED.name, base_url = EXCLUDED.base_url, is_active = EXCLUDED.is_active, updated_at = now()
	RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, c.ID, c.Slug, c.Name, c.BaseURL, c.IsActive, c.CreatedAt, c.UpdatedAt).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError("failed to upsert catalogue "+c.Slug, err)
}

func (r *catalogueRepository) FindBySlug(ctx context.Context, slug string) (*domain.Catalogue, error) {
	row := r.db.QueryRow(ctx, `SELECT `+catalogueColumns+` FROM catalogues WHERE slug = $1`, slug)

	c, err := scanCatalogue(row)
	if err != nil {
		return nil, mapError("failed to find catalogue "+slug, err)
	}
	return c, nil
}

func (r *catalogueRepository) List(ctx context.Context) ([]domain.Catalogue, error) {
	rows, err := r.db.Query(ctx, `SELECT `+catalogueColumns+` FROM catalogues ORDER BY name`)
	if err != nil {
		return nil, mapError("failed to list catalogues", err)
	}
	defer rows.Close()

	catalogues := make([]domain.Catalogue, 0)
	for rows.Next() {
		c, err := scanCatalogue(rows)
		if err != nil {
			return nil, mapError("failed to scan catalogue", err)
		}
		catalogues = append(catalogues, *c)
	}
	return catalogues, mapError("failed to list catalogues", rows.Err())
}

func scanCatalogue(row pgx.Row) (*domain.Catalogue, error) {
	var c domain.Catalogue
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.BaseURL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
