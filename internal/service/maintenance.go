package service

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/classify"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/repository"
	"cutx/catalog/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	BackupVersion    = 1
	defaultBatchSize = 500
)

// Backup is the archived form of the whole catalogue.
type Backup struct {
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"created_at"`
	Catalogues []domain.Catalogue `json:"catalogues"`
	Categories []domain.Category  `json:"categories"`
	Panels     []domain.Panel     `json:"panels"`
}

type ReclassifyOptions struct {
	Catalogue string
	DryRun    bool
	Force     bool
}

type AssignOptions struct {
	Catalogue string
	DryRun    bool
	Force     bool // reassign panels that already have a category
}

// MaintenanceService runs the operator batch jobs over the catalogue.
type MaintenanceService struct {
	catalogues repository.CatalogueRepository
	categories repository.CategoryRepository
	panels     repository.PanelRepository
	store      storage.BackupStore
	cache      cache.Client
	batchSize  int
	now        func() time.Time
}

func NewMaintenanceService(
	catalogues repository.CatalogueRepository,
	categories repository.CategoryRepository,
	panels repository.PanelRepository,
	store storage.BackupStore,
	cacheClient cache.Client,
) *MaintenanceService {
	return &MaintenanceService{
		catalogues: catalogues,
		categories: categories,
		panels:     panels,
		store:      store,
		cache:      cacheClient,
		batchSize:  defaultBatchSize,
		now:        time.Now,
	}
}

// Backup writes a gzip compressed JSON document of every catalogue, category and panel to w.
func (s *MaintenanceService) Backup(ctx context.Context, w io.Writer) (*domain.BatchReport, error) {
	report := domain.NewBatchReport()

	catalogues, err := s.catalogues.List(ctx)
	if err != nil {
		return nil, err
	}

	var categories []domain.Category
	for _, c := range catalogues {
		list, err := s.categories.ListByCatalogue(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		categories = append(categories, list...)
	}

	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)

	// panels are streamed, the rest of the document is small
	header := struct {
		Version    int                `json:"version"`
		CreatedAt  time.Time          `json:"created_at"`
		Catalogues []domain.Catalogue `json:"catalogues"`
		Categories []domain.Category  `json:"categories"`
	}{BackupVersion, s.now().UTC(), catalogues, categories}

	raw, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup header: %w", err)
	}
	if _, err := gz.Write(raw[:len(raw)-1]); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if _, err := io.WriteString(gz, `,"panels":[`); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	err = s.panels.Iterate(ctx, domain.PanelFilter{IncludeAll: true}, s.batchSize, func(batch []domain.Panel) error {
		for i := range batch {
			if report.Processed > 0 {
				if _, err := io.WriteString(gz, ","); err != nil {
					return err
				}
			}
			if err := enc.Encode(&batch[i]); err != nil {
				return fmt.Errorf("failed to encode panel %s: %w", batch[i].Reference, err)
			}
			report.Processed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := io.WriteString(gz, "]}\n"); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish backup: %w", err)
	}

	log.Infof("💾 Backup written: %d catalogues, %d categories, %d panels",
		len(catalogues), len(categories), report.Processed)
	return report, nil
}

// BackupToStore uploads a fresh backup and returns its key.
func (s *MaintenanceService) BackupToStore(ctx context.Context) (string, *domain.BatchReport, error) {
	if s.store == nil {
		return "", nil, errors.New("no backup store configured")
	}

	key := storage.BackupKey(s.now())
	pr, pw := io.Pipe()

	var report *domain.BatchReport
	go func() {
		var err error
		report, err = s.Backup(ctx, pw)
		pw.CloseWithError(err)
	}()

	if err := s.store.Upload(ctx, key, pr); err != nil {
		pr.CloseWithError(err)
		return "", nil, err
	}

	log.Infof("☁️ Backup uploaded to %s", key)
	return key, report, nil
}

// RestoreFromStore restores the backup stored under key.
func (s *MaintenanceService) RestoreFromStore(ctx context.Context, key string, batchSize int) (*domain.BatchReport, error) {
	if s.store == nil {
		return nil, errors.New("no backup store configured")
	}
	rc, err := s.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return s.Restore(ctx, rc, batchSize)
}

// Restore loads a backup written by Backup. Catalogues and categories are matched on slug and
// path, so the ids of a restored catalogue follow the rows already in the store.
func (s *MaintenanceService) Restore(ctx context.Context, r io.Reader, batchSize int) (*domain.BatchReport, error) {
	if batchSize < 1 {
		batchSize = s.batchSize
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: backup is not gzip compressed: %v", domain.ErrInvalidInput, err)
	}
	defer gz.Close()

	var backup Backup
	if err := json.NewDecoder(gz).Decode(&backup); err != nil {
		return nil, fmt.Errorf("%w: failed to decode backup: %v", domain.ErrInvalidInput, err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %d", domain.ErrInvalidInput, backup.Version)
	}

	report := domain.NewBatchReport()

	catalogueIDs := make(map[uuid.UUID]uuid.UUID, len(backup.Catalogues))
	for _, c := range backup.Catalogues {
		oldID := c.ID
		if err := s.catalogues.Upsert(ctx, &c); err != nil {
			return report, err
		}
		catalogueIDs[oldID] = c.ID
	}

	// parents first
	sort.SliceStable(backup.Categories, func(i, j int) bool {
		return backup.Categories[i].Level < backup.Categories[j].Level
	})
	categoryIDs := make(map[uuid.UUID]uuid.UUID, len(backup.Categories))
	for _, c := range backup.Categories {
		oldID := c.ID
		catalogueID, ok := catalogueIDs[c.CatalogueID]
		if !ok {
			report.Fail(c.Path, "category", fmt.Errorf("unknown catalogue %s", c.CatalogueID))
			continue
		}
		c.CatalogueID = catalogueID
		if c.ParentID != nil {
			parentID, ok := categoryIDs[*c.ParentID]
			if !ok {
				report.Fail(c.Path, "category", fmt.Errorf("unknown parent %s", *c.ParentID))
				continue
			}
			c.ParentID = &parentID
		}
		if err := s.categories.Upsert(ctx, &c); err != nil {
			return report, err
		}
		categoryIDs[oldID] = c.ID
	}
	for _, c := range backup.Catalogues {
		dropCached(ctx, s.cache, cache.TreeKey(c.Slug))
	}

	batch := make([]domain.Panel, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.panels.RestoreBatch(ctx, batch); err != nil {
			return err
		}
		s.dropPanels(ctx, batch)
		report.Updated += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, p := range backup.Panels {
		report.Processed++

		catalogueID, ok := catalogueIDs[p.CatalogueID]
		if !ok {
			report.Fail(p.Reference, "panel", fmt.Errorf("unknown catalogue %s", p.CatalogueID))
			continue
		}
		p.CatalogueID = catalogueID
		if p.CategoryID != nil {
			if categoryID, ok := categoryIDs[*p.CategoryID]; ok {
				p.CategoryID = &categoryID
			} else {
				p.CategoryID = nil
			}
		}

		existing, err := s.panels.FindByReference(ctx, p.CatalogueID, p.Reference)
		switch {
		case err == nil:
			p.ID = existing.ID
		case !errors.Is(err, domain.ErrNotFound):
			return report, err
		}

		p.SearchText = classify.SearchText(&p)
		batch = append(batch, p)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	log.Infof("♻️ Restore done: %s", report)
	return report, nil
}

// Reclassify runs the heuristics again over name and description of every panel.
func (s *MaintenanceService) Reclassify(ctx context.Context, opts ReclassifyOptions) (*domain.BatchReport, error) {
	report := domain.NewBatchReport()
	filter := domain.PanelFilter{CatalogueSlug: opts.Catalogue, IncludeAll: true}

	err := s.panels.Iterate(ctx, filter, s.batchSize, func(batch []domain.Panel) error {
		var updated []domain.Panel
		defer func() { s.dropPanels(ctx, updated) }()

		for i := range batch {
			p := &batch[i]
			report.Processed++

			c := classify.Classify(p.Name, p.Description)
			var changes []classify.FieldChange
			if opts.DryRun {
				changes = classify.Diff(p, c, opts.Force)
			} else {
				changes = classify.Apply(p, c, opts.Force)
			}
			if len(changes) == 0 {
				report.Skipped++
				continue
			}
			for _, ch := range changes {
				report.CountChange(ch.Field)
			}

			if !opts.DryRun {
				p.SearchText = classify.SearchText(p)
				if err := s.panels.Update(ctx, p); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					report.Fail(p.Reference, stageSave, err)
					continue
				}
				updated = append(updated, *p)
			}
			report.Updated++
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	log.Infof("🏷️ Reclassify done (dry run: %t): %s", opts.DryRun, report)
	return report, nil
}

// AssignCategories files panels under the category their product type and material point to.
func (s *MaintenanceService) AssignCategories(ctx context.Context, opts AssignOptions) (*domain.BatchReport, error) {
	report := domain.NewBatchReport()
	filter := domain.PanelFilter{CatalogueSlug: opts.Catalogue, IncludeAll: true}
	resolved := make(map[string]*uuid.UUID)
	grown := make(map[uuid.UUID]bool)

	resolve := func(catalogueID uuid.UUID, path string) (*uuid.UUID, error) {
		key := catalogueID.String() + ":" + path
		if id, ok := resolved[key]; ok {
			return id, nil
		}

		var id *uuid.UUID
		if opts.DryRun {
			category, err := s.categories.FindByPath(ctx, catalogueID, path)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			if category != nil {
				id = &category.ID
			}
		} else {
			category, err := s.categories.EnsurePath(ctx, catalogueID, path, "")
			if err != nil {
				return nil, err
			}
			id = &category.ID
			grown[catalogueID] = true
		}
		resolved[key] = id
		return id, nil
	}

	err := s.panels.Iterate(ctx, filter, s.batchSize, func(batch []domain.Panel) error {
		var assigned []domain.Panel
		defer func() { s.dropPanels(ctx, assigned) }()

		for _, p := range batch {
			report.Processed++

			path := classify.CategoryPath(p.ProductType, p.Material)
			if path == "" || (p.CategoryID != nil && !opts.Force) {
				report.Skipped++
				continue
			}

			categoryID, err := resolve(p.CatalogueID, path)
			if err != nil {
				return err
			}
			if categoryID != nil && p.CategoryID != nil && *categoryID == *p.CategoryID {
				report.Skipped++
				continue
			}

			report.CountChange(path)
			if !opts.DryRun {
				if err := s.panels.AssignCategory(ctx, p.ID, *categoryID); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					report.Fail(p.Reference, stageSave, err)
					continue
				}
				assigned = append(assigned, p)
			}
			report.Updated++
		}
		return nil
	})
	s.dropTrees(ctx, grown)
	if err != nil {
		return report, err
	}

	log.Infof("🗂️ Category assignment done (dry run: %t): %s", opts.DryRun, report)
	return report, nil
}

// DeactivateStale hides the panels of a catalogue no scrape has seen for olderThan.
func (s *MaintenanceService) DeactivateStale(ctx context.Context, slug string, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: stale age must be positive", domain.ErrInvalidInput)
	}

	catalogue, err := s.catalogues.FindBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-olderThan)
	ids, err := s.panels.DeactivateScrapedBefore(ctx, catalogue.ID, cutoff)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.PanelKey(id))
	}
	dropCached(ctx, s.cache, keys...)
	count := int64(len(ids))

	log.Infof("💤 Deactivated %d panels of %s not seen since %s", count, slug, cutoff.Format(time.RFC3339))
	return count, nil
}

func (s *MaintenanceService) Stats(ctx context.Context) ([]domain.PanelCount, error) {
	return s.panels.CountByType(ctx)
}

func (s *MaintenanceService) dropPanels(ctx context.Context, panels []domain.Panel) {
	keys := make([]string, 0, len(panels))
	for _, p := range panels {
		keys = append(keys, cache.PanelKey(p.ID))
	}
	dropCached(ctx, s.cache, keys...)
}

// dropTrees drops the cached category trees of the given catalogues.
func (s *MaintenanceService) dropTrees(ctx context.Context, catalogueIDs map[uuid.UUID]bool) {
	if s.cache == nil || len(catalogueIDs) == 0 {
		return
	}
	catalogues, err := s.catalogues.List(ctx)
	if err != nil {
		log.Warnf("⚠️ Cache invalidation failed: %v", err)
		return
	}
	var keys []string
	for _, c := range catalogues {
		if catalogueIDs[c.ID] {
			keys = append(keys, cache.TreeKey(c.Slug))
		}
	}
	dropCached(ctx, s.cache, keys...)
}
