package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/search"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PanelRepository interface {
	Upsert(ctx context.Context, p *domain.Panel) (inserted bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Panel, error)
	FindByReference(ctx context.Context, catalogueID uuid.UUID, reference string) (*domain.Panel, error)
	List(ctx context.Context, filter domain.PanelFilter) ([]domain.Panel, int, error)
	Search(ctx context.Context, q search.SmartQuery, page, pageSize int) ([]domain.Panel, int, error)
	Update(ctx context.Context, p *domain.Panel) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Iterate(ctx context.Context, filter domain.PanelFilter, batchSize int, fn func([]domain.Panel) error) error
	AssignCategory(ctx context.Context, panelID, categoryID uuid.UUID) error
	DeactivateScrapedBefore(ctx context.Context, catalogueID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error)
	CountByType(ctx context.Context) ([]domain.PanelCount, error)
	RestoreBatch(ctx context.Context, panels []domain.Panel) error
}

type panelRepository struct {
	db *pgxpool.Pool
}

func NewPanelRepository(db *pgxpool.Pool) PanelRepository {
	return &panelRepository{db: db}
}

const panelColumns = `id, catalogue_id, category_id, reference, name, description, manufacturer,
	decor_code, decor_name, finish, product_type, material, essence, decor_category, hydrofuge, ignifuge,
	thickness_mm, length_mm, width_mm, price_per_m2, price_per_unit, stock_status,
	image_url, source_url, scraped_at, search_text, is_active, created_at, updated_at`

const panelPlaceholders = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29`

// Allowed sort keys of List, mapped to their column.
var panelSortColumns = map[string]string{
	"name":         "name",
	"reference":    "reference",
	"thickness_mm": "thickness_mm",
	"price_per_m2": "price_per_m2",
	"updated_at":   "updated_at",
}

func panelArgs(p *domain.Panel) []any {
	return []any{
		p.ID, p.CatalogueID, p.CategoryID, p.Reference, p.Name, p.Description, p.Manufacturer,
		p.DecorCode, p.DecorName, p.Finish, p.ProductType, p.Material, p.Essence, p.DecorCategory, p.Hydrofuge, p.Ignifuge,
		p.ThicknessMM, p.LengthMM, p.WidthMM, p.PricePerM2, p.PricePerUnit, p.StockStatus,
		p.ImageURL, p.SourceURL, p.ScrapedAt, p.SearchText, p.IsActive, p.CreatedAt, p.UpdatedAt,
	}
}

func scanPanel(row pgx.Row) (*domain.Panel, error) {
	var p domain.Panel
	err := row.Scan(
		&p.ID, &p.CatalogueID, &p.CategoryID, &p.Reference, &p.Name, &p.Description, &p.Manufacturer,
		&p.DecorCode, &p.DecorName, &p.Finish, &p.ProductType, &p.Material, &p.Essence, &p.DecorCategory, &p.Hydrofuge, &p.Ignifuge,
		&p.ThicknessMM, &p.LengthMM, &p.WidthMM, &p.PricePerM2, &p.PricePerUnit, &p.StockStatus,
		&p.ImageURL, &p.SourceURL, &p.ScrapedAt, &p.SearchText, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPanels(rows pgx.Rows) ([]domain.Panel, error) {
	defer rows.Close()

	panels := make([]domain.Panel, 0)
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		panels = append(panels, *p)
	}
	return panels, rows.Err()
}

// Upsert inserts p or refreshes the panel with the same (catalogue, reference).
// Scraped fields are replaced; classification only moves away from unknown values
// and grade flags are never cleared.
func (r *panelRepository) Upsert(ctx context.Context, p *domain.Panel) (bool, error) {
	query := `
	INSERT INTO panels (` + panelColumns + `)
	VALUES (` + panelPlaceholders + `)
	ON CONFLICT (catalogue_id, reference)
	DO UPDATE SET
		category_id    = COALESCE(EXCLUDED.category_id, panels.category_id),
		name           = EXCLUDED.name,
		description    = COALESCE(NULLIF(EXCLUDED.description, ''), panels.description),
		manufacturer   = COALESCE(NULLIF(EXCLUDED.manufacturer, ''), panels.manufacturer),
		decor_code     = COALESCE(NULLIF(EXCLUDED.decor_code, ''), panels.decor_code),
		decor_name     = COALESCE(NULLIF(EXCLUDED.decor_name, ''), panels.decor_name),
		finish         = COALESCE(NULLIF(EXCLUDED.finish, ''), panels.finish),
		product_type   = CASE WHEN EXCLUDED.product_type = 'UNKNOWN' THEN panels.product_type ELSE EXCLUDED.product_type END,
		material       = CASE WHEN EXCLUDED.material = 'UNKNOWN' THEN panels.material ELSE EXCLUDED.material END,
		essence        = COALESCE(NULLIF(EXCLUDED.essence, ''), panels.essence),
		decor_category = CASE WHEN EXCLUDED.decor_category = 'UNKNOWN' THEN panels.decor_category ELSE EXCLUDED.decor_category END,
		hydrofuge      = panels.hydrofuge OR EXCLUDED.hydrofuge,
		ignifuge       = panels.ignifuge OR EXCLUDED.ignifuge,
		thickness_mm   = CASE WHEN EXCLUDED.thickness_mm > 0 THEN EXCLUDED.thickness_mm ELSE panels.thickness_mm END,
		length_mm      = CASE WHEN EXCLUDED.length_mm > 0 THEN EXCLUDED.length_mm ELSE panels.length_mm END,
		width_mm       = CASE WHEN EXCLUDED.width_mm > 0 THEN EXCLUDED.width_mm ELSE panels.width_mm END,
		price_per_m2   = EXCLUDED.price_per_m2,
		price_per_unit = EXCLUDED.price_per_unit,
		stock_status   = EXCLUDED.stock_status,
		image_url      = COALESCE(NULLIF(EXCLUDED.image_url, ''), panels.image_url),
		source_url     = EXCLUDED.source_url,
		scraped_at     = EXCLUDED.scraped_at,
		search_text    = EXCLUDED.search_text,
		is_active      = TRUE,
		updated_at     = now()
	RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.db.QueryRow(ctx, query, panelArgs(p)...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &inserted)
	if err != nil {
		return false, mapError("failed to upsert panel "+p.Reference, err)
	}
	return inserted, nil
}

func (r *panelRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Panel, error) {
	p, err := scanPanel(r.db.QueryRow(ctx, `SELECT `+panelColumns+` FROM panels WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("failed to find panel "+id.String(), err)
	}
	return p, nil
}

func (r *panelRepository) FindByReference(ctx context.Context, catalogueID uuid.UUID, reference string) (*domain.Panel, error) {
	p, err := scanPanel(r.db.QueryRow(ctx,
		`SELECT `+panelColumns+` FROM panels WHERE catalogue_id = $1 AND reference = $2`,
		catalogueID, reference))
	if err != nil {
		return nil, mapError("failed to find panel "+reference, err)
	}
	return p, nil
}

func (r *panelRepository) List(ctx context.Context, filter domain.PanelFilter) ([]domain.Panel, int, error) {
	filter.Normalize()
	where, args := panelWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM panels WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError("failed to count panels", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM panels WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		panelColumns, where, panelOrderBy(filter.Sort, filter.Desc), len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, filter.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("failed to list panels", err)
	}
	panels, err := collectPanels(rows)
	if err != nil {
		return nil, 0, mapError("failed to scan panels", err)
	}
	return panels, total, nil
}

// Search runs a parsed smart query over active panels.
func (r *panelRepository) Search(ctx context.Context, q search.SmartQuery, page, pageSize int) ([]domain.Panel, int, error) {
	paging := domain.PanelFilter{Page: page, PageSize: pageSize}
	paging.Normalize()

	where, args := search.BuildSmartSearchSQL(q, 1)
	where = "is_active AND " + where

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM panels WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError("failed to count search results", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM panels WHERE %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		panelColumns, where, len(args)+1, len(args)+2)
	args = append(args, paging.PageSize, paging.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("failed to search panels", err)
	}
	panels, err := collectPanels(rows)
	if err != nil {
		return nil, 0, mapError("failed to scan panels", err)
	}
	return panels, total, nil
}

// Update writes every editable field of p.
func (r *panelRepository) Update(ctx context.Context, p *domain.Panel) error {
	query := `
	UPDATE panels SET
		category_id = $2, name = $3, description = $4, manufacturer = $5, decor_code = $6, decor_name = $7,
		finish = $8, product_type = $9, material = $10, essence = $11, decor_category = $12,
		hydrofuge = $13, ignifuge = $14, thickness_mm = $15, length_mm = $16, width_mm = $17,
		price_per_m2 = $18, price_per_unit = $19, stock_status = $20, image_url = $21,
		search_text = $22, is_active = $23, updated_at = now()
	WHERE id = $1
	RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.CategoryID, p.Name, p.Description, p.Manufacturer, p.DecorCode, p.DecorName,
		p.Finish, p.ProductType, p.Material, p.Essence, p.DecorCategory,
		p.Hydrofuge, p.Ignifuge, p.ThicknessMM, p.LengthMM, p.WidthMM,
		p.PricePerM2, p.PricePerUnit, p.StockStatus, p.ImageURL,
		p.SearchText, p.IsActive,
	).Scan(&p.UpdatedAt)
	return mapError("failed to update panel "+p.ID.String(), err)
}

func (r *panelRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE panels SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return mapError("failed to set panel active flag", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("panel %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Iterate walks the panels matching filter in id order, batchSize at a time.
// Paging and sorting of filter are ignored.
func (r *panelRepository) Iterate(ctx context.Context, filter domain.PanelFilter, batchSize int, fn func([]domain.Panel) error) error {
	if batchSize < 1 {
		batchSize = 500
	}
	where, args := panelWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM panels WHERE %s AND id > $%d ORDER BY id LIMIT $%d`,
		panelColumns, where, len(args)+1, len(args)+2)

	after := uuid.Nil
	for {
		rows, err := r.db.Query(ctx, query, append(args, after, batchSize)...)
		if err != nil {
			return mapError("failed to iterate panels", err)
		}
		batch, err := collectPanels(rows)
		if err != nil {
			return mapError("failed to scan panels", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (r *panelRepository) AssignCategory(ctx context.Context, panelID, categoryID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE panels SET category_id = $2, updated_at = now() WHERE id = $1`, panelID, categoryID)
	if err != nil {
		return mapError("failed to assign category", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("panel %s: %w", panelID, domain.ErrNotFound)
	}
	return nil
}

// DeactivateScrapedBefore hides the active panels of a catalogue not seen by a scrape since cutoff
// and returns their ids.
func (r *panelRepository) DeactivateScrapedBefore(ctx context.Context, catalogueID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
	UPDATE panels SET is_active = FALSE, updated_at = now()
	WHERE catalogue_id = $1 AND is_active AND (scraped_at IS NULL OR scraped_at < $2)
	RETURNING id`,
		catalogueID, cutoff)
	if err != nil {
		return nil, mapError("failed to deactivate stale panels", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapError("failed to scan deactivated panel", err)
		}
		ids = append(ids, id)
	}
	return ids, mapError("failed to deactivate stale panels", rows.Err())
}

func (r *panelRepository) CountByType(ctx context.Context) ([]domain.PanelCount, error) {
	rows, err := r.db.Query(ctx, `
	SELECT c.slug, p.product_type, count(*) FILTER (WHERE p.is_active), count(*)
	FROM panels p
	JOIN catalogues c ON c.id = p.catalogue_id
	GROUP BY c.slug, p.product_type
	ORDER BY c.slug, p.product_type`)
	if err != nil {
		return nil, mapError("failed to count panels", err)
	}
	defer rows.Close()

	counts := make([]domain.PanelCount, 0)
	for rows.Next() {
		var pc domain.PanelCount
		if err := rows.Scan(&pc.Catalogue, &pc.ProductType, &pc.Active, &pc.Total); err != nil {
			return nil, mapError("failed to scan panel count", err)
		}
		counts = append(counts, pc)
	}
	return counts, mapError("failed to count panels", rows.Err())
}

// RestoreBatch writes full panel rows in one transaction, replacing rows with the same id.
func (r *panelRepository) RestoreBatch(ctx context.Context, panels []domain.Panel) error {
	if len(panels) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapError("failed to begin restore transaction", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO panels (` + panelColumns + `)
	VALUES (` + panelPlaceholders + `)
	ON CONFLICT (id) DO UPDATE SET ` + restoreAssignments()

	batch := &pgx.Batch{}
	for i := range panels {
		batch.Queue(query, panelArgs(&panels[i])...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapError("failed to restore panels", err)
	}

	return mapError("failed to commit restored panels", tx.Commit(ctx))
}

func restoreAssignments() string {
	cols := strings.Split(panelColumns, ",")
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "id" {
			continue
		}
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	return strings.Join(sets, ", ")
}

// panelWhere renders the predicates of filter with placeholders starting at $1.
func panelWhere(filter domain.PanelFilter) (string, []any) {
	w := &whereBuilder{}

	if !filter.IncludeAll {
		w.add("is_active")
	}
	if filter.CatalogueSlug != "" {
		w.add("catalogue_id = (SELECT id FROM catalogues WHERE slug = %s)", filter.CatalogueSlug)
	}
	if path := strings.Trim(filter.CategoryPath, "/"); path != "" {
		// the category and its whole subtree
		w.add("category_id IN (SELECT id FROM categories WHERE path = %[1]s OR path LIKE %[2]s)", path, search.EscapeLike(path)+"/%")
	}
	if filter.ProductType != "" {
		w.add("product_type = %s", filter.ProductType)
	}
	if filter.Material != "" {
		w.add("material = %s", filter.Material)
	}
	if filter.Essence != "" {
		w.add("lower(essence) = lower(%s)", filter.Essence)
	}
	if filter.DecorCategory != "" {
		w.add("decor_category = %s", filter.DecorCategory)
	}
	if filter.Manufacturer != "" {
		w.add("lower(manufacturer) = lower(%s)", filter.Manufacturer)
	}
	if filter.ThicknessMM > 0 {
		w.add("abs(thickness_mm - %s) < 0.05", filter.ThicknessMM)
	}
	if filter.MinPrice != nil {
		w.add("price_per_m2 >= %s", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		w.add("price_per_m2 <= %s", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		w.add("stock_status = %s", domain.StockInStock)
	}

	return w.sql(), w.args
}

func panelOrderBy(sort string, desc bool) string {
	col, ok := panelSortColumns[sort]
	if !ok {
		col = "name"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, id", col, dir)
}

type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a predicate. Each value is bound to the next placeholder; format refers to
// them in order, or by index (%[1]s).
func (w *whereBuilder) add(format string, v ...any) {
	if len(v) == 0 {
		w.conds = append(w.conds, format)
		return
	}
	placeholders := make([]any, 0, len(v))
	for _, value := range v {
		w.args = append(w.args, value)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(w.args)))
	}
	w.conds = append(w.conds, fmt.Sprintf(format, placeholders...))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}
