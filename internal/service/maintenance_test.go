package service

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"slices"
	"testing"
	"time"

	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

func newMaintenanceService(store storage.BackupStore) (*MaintenanceService, *MockCatalogueRepository, *MockCategoryRepository, *MockPanelRepository) {
	catalogues := new(MockCatalogueRepository)
	categories := new(MockCategoryRepository)
	panels := new(MockPanelRepository)
	svc := NewMaintenanceService(catalogues, categories, panels, store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, catalogues, categories, panels
}

type backupFixture struct {
	catalogue  domain.Catalogue
	categories []domain.Category
	panels     []domain.Panel
}

func newBackupFixture() backupFixture {
	catalogue := domain.Catalogue{ID: uuid.New(), Slug: "bouney", Name: "Bouney", IsActive: true}
	root := domain.Category{ID: uuid.New(), CatalogueID: catalogue.ID, Slug: "panneaux", Name: "Panneaux", Path: "panneaux"}
	child := domain.Category{ID: uuid.New(), CatalogueID: catalogue.ID, ParentID: &root.ID, Slug: "melamines", Name: "Mélaminés", Path: "panneaux/melamines", Level: 1}

	return backupFixture{
		catalogue: catalogue,
		// children listed first to check restore ordering
		categories: []domain.Category{child, root},
		panels: []domain.Panel{
			{ID: uuid.New(), CatalogueID: catalogue.ID, CategoryID: &child.ID, Reference: "100001", Name: "Mélaminé blanc", ProductType: domain.ProductTypeMelamine},
			{ID: uuid.New(), CatalogueID: catalogue.ID, Reference: "100002", Name: "MDF brut 19mm", ProductType: domain.ProductTypeBrut},
		},
	}
}

func writeBackup(t *testing.T, fx backupFixture) []byte {
	svc, catalogues, categories, panels := newMaintenanceService(nil)
	catalogues.On("List", mock.Anything).Return([]domain.Catalogue{fx.catalogue}, nil)
	categories.On("ListByCatalogue", mock.Anything, fx.catalogue.ID).Return(fx.categories, nil)
	panels.On("Iterate", mock.Anything, domain.PanelFilter{IncludeAll: true}, defaultBatchSize).Return(fx.panels, nil)

	var buf bytes.Buffer
	report, err := svc.Backup(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, len(fx.panels), report.Processed)
	return buf.Bytes()
}

func TestBackup(t *testing.T) {
	fx := newBackupFixture()
	raw := writeBackup(t, fx)

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	var backup Backup
	require.NoError(t, json.NewDecoder(gz).Decode(&backup))

	assert.Equal(t, BackupVersion, backup.Version)
	assert.True(t, fixedNow.Equal(backup.CreatedAt))
	assert.Len(t, backup.Catalogues, 1)
	assert.Len(t, backup.Categories, 2)
	require.Len(t, backup.Panels, 2)
	assert.Equal(t, "100002", backup.Panels[1].Reference)
}

func TestRestore_RemapsIDs(t *testing.T) {
	fx := newBackupFixture()
	raw := writeBackup(t, fx)

	svc, catalogues, categories, panels := newMaintenanceService(nil)
	storedCatalogueID := uuid.New()
	storedCategoryIDs := map[string]uuid.UUID{"panneaux": uuid.New(), "panneaux/melamines": uuid.New()}
	existingPanelID := uuid.New()

	memory := newMemoryCache()
	memory.values[cache.TreeKey("bouney")] = "[]"
	memory.values[cache.PanelKey(existingPanelID)] = "{}"
	svc.cache = memory

	catalogues.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Catalogue).ID = storedCatalogueID
	}).Return(nil).Once()

	var upsertedPaths []string
	categories.On("Upsert", mock.Anything, mock.MatchedBy(func(c *domain.Category) bool {
		return c.CatalogueID == storedCatalogueID
	})).Run(func(args mock.Arguments) {
		c := args.Get(1).(*domain.Category)
		if c.Level == 1 {
			assert.Equal(t, storedCategoryIDs["panneaux"], *c.ParentID)
		}
		upsertedPaths = append(upsertedPaths, c.Path)
		c.ID = storedCategoryIDs[c.Path]
	}).Return(nil).Twice()

	panels.On("FindByReference", mock.Anything, storedCatalogueID, "100001").Return(&domain.Panel{ID: existingPanelID}, nil)
	panels.On("FindByReference", mock.Anything, storedCatalogueID, "100002").Return(nil, domain.ErrNotFound)
	panels.On("RestoreBatch", mock.Anything, mock.MatchedBy(func(batch []domain.Panel) bool {
		return len(batch) == 2 &&
			batch[0].ID == existingPanelID &&
			*batch[0].CategoryID == storedCategoryIDs["panneaux/melamines"] &&
			batch[1].ID == fx.panels[1].ID &&
			batch[1].CatalogueID == storedCatalogueID &&
			batch[1].SearchText == "100002 mdf brut 19mm"
	})).Return(nil).Once()

	report, err := svc.Restore(context.Background(), bytes.NewReader(raw), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"panneaux", "panneaux/melamines"}, upsertedPaths)
	assert.Empty(t, memory.values)

	catalogues.AssertExpectations(t)
	categories.AssertExpectations(t)
	panels.AssertExpectations(t)
}

func TestRestore_RejectsBadInput(t *testing.T) {
	svc, _, _, _ := newMaintenanceService(nil)

	_, err := svc.Restore(context.Background(), bytes.NewReader([]byte("plain text")), 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte(`{"version": 99}`))
	require.NoError(t, gz.Close())

	_, err = svc.Restore(context.Background(), &buf, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBackupToStore(t *testing.T) {
	fx := newBackupFixture()
	store := storage.NewLocalStore(t.TempDir())

	svc, catalogues, categories, panels := newMaintenanceService(store)
	catalogues.On("List", mock.Anything).Return([]domain.Catalogue{fx.catalogue}, nil)
	categories.On("ListByCatalogue", mock.Anything, fx.catalogue.ID).Return(fx.categories, nil)
	panels.On("Iterate", mock.Anything, mock.Anything, mock.Anything).Return(fx.panels, nil)

	key, report, err := svc.BackupToStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.BackupKey(fixedNow), key)
	assert.Equal(t, 2, report.Processed)

	rc, err := store.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reference":"100001"`)
}

func TestReclassify(t *testing.T) {
	testCases := []struct {
		name          string
		dryRun        bool
		expectUpdates int
	}{
		{name: "dry run", dryRun: true},
		{name: "apply", expectUpdates: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, panels := newMaintenanceService(nil)
			batch := []domain.Panel{
				{ID: uuid.New(), Reference: "1", Name: "Panneau mélaminé blanc 19mm",
					ProductType: domain.ProductTypeUnknown, Material: domain.MaterialUnknown, DecorCategory: domain.DecorUnknown},
				{ID: uuid.New(), Reference: "2", Name: "Référence 42",
					ProductType: domain.ProductTypeUnknown, Material: domain.MaterialUnknown, DecorCategory: domain.DecorUnknown},
			}

			panels.On("Iterate", mock.Anything, domain.PanelFilter{CatalogueSlug: "bouney", IncludeAll: true}, defaultBatchSize).
				Return(batch, nil)
			if tc.expectUpdates > 0 {
				panels.On("Update", mock.Anything, mock.MatchedBy(func(p *domain.Panel) bool {
					return p.Reference == "1" && p.ProductType == domain.ProductTypeMelamine &&
						p.ThicknessMM == 19 && p.SearchText != ""
				})).Return(nil).Times(tc.expectUpdates)
			}

			report, err := svc.Reclassify(context.Background(), ReclassifyOptions{Catalogue: "bouney", DryRun: tc.dryRun})
			require.NoError(t, err)
			assert.Equal(t, 2, report.Processed)
			assert.Equal(t, 1, report.Updated)
			assert.Equal(t, 1, report.Skipped)
			assert.Equal(t, 1, report.Changes["product_type"])
			assert.Equal(t, 1, report.Changes["thickness_mm"])
			panels.AssertExpectations(t)
		})
	}
}

func TestAssignCategories(t *testing.T) {
	svc, _, categories, panels := newMaintenanceService(nil)
	catalogueID, melaminesID, chantsID := uuid.New(), uuid.New(), uuid.New()

	toAssign := uuid.New()
	batch := []domain.Panel{
		{ID: toAssign, CatalogueID: catalogueID, Reference: "1", ProductType: domain.ProductTypeMelamine},
		{ID: uuid.New(), CatalogueID: catalogueID, Reference: "2", ProductType: domain.ProductTypeMelamine},
		{ID: uuid.New(), CatalogueID: catalogueID, Reference: "3", ProductType: domain.ProductTypeChant, CategoryID: &chantsID},
		{ID: uuid.New(), CatalogueID: catalogueID, Reference: "4", ProductType: domain.ProductTypeUnknown},
	}

	panels.On("Iterate", mock.Anything, mock.Anything, defaultBatchSize).Return(batch, nil)
	categories.On("EnsurePath", mock.Anything, catalogueID, "panneaux/melamines", "").
		Return(&domain.Category{ID: melaminesID}, nil).Once()
	panels.On("AssignCategory", mock.Anything, mock.Anything, melaminesID).Return(nil).Twice()

	report, err := svc.AssignCategories(context.Background(), AssignOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, report.Changes["panneaux/melamines"])

	categories.AssertExpectations(t)
	panels.AssertExpectations(t)
}

func TestAssignCategories_DryRunDoesNotCreate(t *testing.T) {
	svc, _, categories, panels := newMaintenanceService(nil)
	catalogueID := uuid.New()

	panels.On("Iterate", mock.Anything, mock.Anything, defaultBatchSize).Return([]domain.Panel{
		{ID: uuid.New(), CatalogueID: catalogueID, ProductType: domain.ProductTypeBrut, Material: domain.MaterialOSB},
	}, nil)
	categories.On("FindByPath", mock.Anything, catalogueID, "panneaux/bruts/osb").Return(nil, domain.ErrNotFound).Once()

	report, err := svc.AssignCategories(context.Background(), AssignOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Changes["panneaux/bruts/osb"])

	categories.AssertExpectations(t)
	panels.AssertExpectations(t)
}

func TestDeactivateStale(t *testing.T) {
	svc, catalogues, _, panels := newMaintenanceService(nil)
	catalogueID := uuid.New()

	catalogues.On("FindBySlug", mock.Anything, "dispano").Return(&domain.Catalogue{ID: catalogueID}, nil)
	stale := make([]uuid.UUID, 12)
	for i := range stale {
		stale[i] = uuid.New()
	}
	panels.On("DeactivateScrapedBefore", mock.Anything, catalogueID, fixedNow.Add(-30*24*time.Hour)).Return(stale, nil).Once()

	count, err := svc.DeactivateStale(context.Background(), "dispano", 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	_, err = svc.DeactivateStale(context.Background(), "dispano", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	panels.AssertExpectations(t)
}

func TestMaintenance_DropsCachedEntries(t *testing.T) {
	catalogue := domain.Catalogue{ID: uuid.New(), Slug: "bouney"}
	changed, untouched, melaminesID := uuid.New(), uuid.New(), uuid.New()

	type mocks struct {
		catalogues *MockCatalogueRepository
		categories *MockCategoryRepository
		panels     *MockPanelRepository
	}

	testCases := []struct {
		name    string
		run     func(t *testing.T, svc *MaintenanceService, m mocks)
		dropped []string
	}{
		{
			name: "reclassify drops updated panels",
			run: func(t *testing.T, svc *MaintenanceService, m mocks) {
				m.panels.On("Iterate", mock.Anything, mock.Anything, defaultBatchSize).Return([]domain.Panel{
					{ID: changed, Reference: "1", Name: "Panneau mélaminé blanc 19mm",
						ProductType: domain.ProductTypeUnknown, Material: domain.MaterialUnknown, DecorCategory: domain.DecorUnknown},
					{ID: untouched, Reference: "2", Name: "Référence 42",
						ProductType: domain.ProductTypeUnknown, Material: domain.MaterialUnknown, DecorCategory: domain.DecorUnknown},
				}, nil)
				m.panels.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

				_, err := svc.Reclassify(context.Background(), ReclassifyOptions{})
				require.NoError(t, err)
			},
			dropped: []string{cache.PanelKey(changed)},
		},
		{
			name: "assign categories drops assigned panels and the grown tree",
			run: func(t *testing.T, svc *MaintenanceService, m mocks) {
				m.panels.On("Iterate", mock.Anything, mock.Anything, defaultBatchSize).Return([]domain.Panel{
					{ID: changed, CatalogueID: catalogue.ID, Reference: "1", ProductType: domain.ProductTypeMelamine},
					{ID: untouched, CatalogueID: catalogue.ID, Reference: "2", ProductType: domain.ProductTypeUnknown},
				}, nil)
				m.categories.On("EnsurePath", mock.Anything, catalogue.ID, "panneaux/melamines", "").
					Return(&domain.Category{ID: melaminesID}, nil).Once()
				m.panels.On("AssignCategory", mock.Anything, changed, melaminesID).Return(nil).Once()
				m.catalogues.On("List", mock.Anything).Return([]domain.Catalogue{catalogue}, nil).Once()

				_, err := svc.AssignCategories(context.Background(), AssignOptions{})
				require.NoError(t, err)
			},
			dropped: []string{cache.PanelKey(changed), cache.TreeKey("bouney")},
		},
		{
			name: "assign categories dry run keeps the cache",
			run: func(t *testing.T, svc *MaintenanceService, m mocks) {
				m.panels.On("Iterate", mock.Anything, mock.Anything, defaultBatchSize).Return([]domain.Panel{
					{ID: changed, CatalogueID: catalogue.ID, Reference: "1", ProductType: domain.ProductTypeMelamine},
				}, nil)
				m.categories.On("FindByPath", mock.Anything, catalogue.ID, "panneaux/melamines").Return(nil, domain.ErrNotFound).Once()

				_, err := svc.AssignCategories(context.Background(), AssignOptions{DryRun: true})
				require.NoError(t, err)
			},
		},
		{
			name: "deactivate stale drops hidden panels",
			run: func(t *testing.T, svc *MaintenanceService, m mocks) {
				m.catalogues.On("FindBySlug", mock.Anything, "bouney").Return(&catalogue, nil)
				m.panels.On("DeactivateScrapedBefore", mock.Anything, catalogue.ID, mock.Anything).
					Return([]uuid.UUID{changed}, nil).Once()

				count, err := svc.DeactivateStale(context.Background(), "bouney", 24*time.Hour)
				require.NoError(t, err)
				assert.Equal(t, int64(1), count)
			},
			dropped: []string{cache.PanelKey(changed)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, catalogues, categories, panels := newMaintenanceService(nil)
			memory := newMemoryCache()
			seeded := []string{cache.PanelKey(changed), cache.PanelKey(untouched), cache.TreeKey("bouney"), cache.TreeKey("dispano")}
			for _, key := range seeded {
				memory.values[key] = "{}"
			}
			svc.cache = memory

			tc.run(t, svc, mocks{catalogues: catalogues, categories: categories, panels: panels})

			for _, key := range seeded {
				_, err := memory.Get(context.Background(), key)
				if slices.Contains(tc.dropped, key) {
					assert.ErrorIs(t, err, cache.ErrCacheMiss, key)
				} else {
					assert.NoError(t, err, key)
				}
			}
			catalogues.AssertExpectations(t)
			categories.AssertExpectations(t)
			panels.AssertExpectations(t)
		})
	}
}
