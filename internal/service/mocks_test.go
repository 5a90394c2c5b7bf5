package service

import (
	"context"
	"time"

	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/domain/task"
	"cutx/catalog/internal/search"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

type MockCatalogueRepository struct {
	mock.Mock
}

func (m *MockCatalogueRepository) Upsert(ctx context.Context, c *domain.Catalogue) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCatalogueRepository) FindBySlug(ctx context.Context, slug string) (*domain.Catalogue, error) {
	args := m.Called(ctx, slug)
	c, _ := args.Get(0).(*domain.Catalogue)
	return c, args.Error(1)
}

func (m *MockCatalogueRepository) List(ctx context.Context) ([]domain.Catalogue, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.Catalogue)
	return list, args.Error(1)
}

type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Upsert(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCategoryRepository) FindByPath(ctx context.Context, catalogueID uuid.UUID, path string) (*domain.Category, error) {
	args := m.Called(ctx, catalogueID, path)
	c, _ := args.Get(0).(*domain.Category)
	return c, args.Error(1)
}

func (m *MockCategoryRepository) ListByCatalogue(ctx context.Context, catalogueID uuid.UUID) ([]domain.Category, error) {
	args := m.Called(ctx, catalogueID)
	list, _ := args.Get(0).([]domain.Category)
	return list, args.Error(1)
}

func (m *MockCategoryRepository) EnsurePath(ctx context.Context, catalogueID uuid.UUID, path, leafName string) (*domain.Category, error) {
	args := m.Called(ctx, catalogueID, path, leafName)
	c, _ := args.Get(0).(*domain.Category)
	return c, args.Error(1)
}

type MockPanelRepository struct {
	mock.Mock
}

func (m *MockPanelRepository) Upsert(ctx context.Context, p *domain.Panel) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockPanelRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Panel, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Panel)
	return p, args.Error(1)
}

func (m *MockPanelRepository) FindByReference(ctx context.Context, catalogueID uuid.UUID, reference string) (*domain.Panel, error) {
	args := m.Called(ctx, catalogueID, reference)
	p, _ := args.Get(0).(*domain.Panel)
	return p, args.Error(1)
}

func (m *MockPanelRepository) List(ctx context.Context, filter domain.PanelFilter) ([]domain.Panel, int, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]domain.Panel)
	return list, args.Int(1), args.Error(2)
}

func (m *MockPanelRepository) Search(ctx context.Context, q search.SmartQuery, page, pageSize int) ([]domain.Panel, int, error) {
	args := m.Called(ctx, q, page, pageSize)
	list, _ := args.Get(0).([]domain.Panel)
	return list, args.Int(1), args.Error(2)
}

func (m *MockPanelRepository) Update(ctx context.Context, p *domain.Panel) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPanelRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

// Iterate hands the configured panels to fn in a single batch.
func (m *MockPanelRepository) Iterate(ctx context.Context, filter domain.PanelFilter, batchSize int, fn func([]domain.Panel) error) error {
	args := m.Called(ctx, filter, batchSize)
	if panels, _ := args.Get(0).([]domain.Panel); len(panels) > 0 {
		if err := fn(panels); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockPanelRepository) AssignCategory(ctx context.Context, panelID, categoryID uuid.UUID) error {
	return m.Called(ctx, panelID, categoryID).Error(0)
}

func (m *MockPanelRepository) DeactivateScrapedBefore(ctx context.Context, catalogueID uuid.UUID, cutoff time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, catalogueID, cutoff)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func (m *MockPanelRepository) CountByType(ctx context.Context) ([]domain.PanelCount, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).([]domain.PanelCount)
	return counts, args.Error(1)
}

func (m *MockPanelRepository) RestoreBatch(ctx context.Context, panels []domain.Panel) error {
	return m.Called(ctx, panels).Error(0)
}

type MockSupplierClient struct {
	mock.Mock
	catalogue string
}

func (m *MockSupplierClient) Catalogue() string { return m.catalogue }

func (m *MockSupplierClient) GetListingPage(ctx context.Context, category domain.CategorySource, page int) (*domain.ListingPage, error) {
	args := m.Called(ctx, category, page)
	p, _ := args.Get(0).(*domain.ListingPage)
	return p, args.Error(1)
}

func (m *MockSupplierClient) GetListingPagesCh(ctx context.Context, category domain.CategorySource, startPage int) (*domain.ListingPage, chan *domain.ListingPage, error) {
	args := m.Called(ctx, category, startPage)
	first, _ := args.Get(0).(*domain.ListingPage)
	ch, _ := args.Get(1).(chan *domain.ListingPage)
	return first, ch, args.Error(2)
}

func (m *MockSupplierClient) GetPanelDetails(ctx context.Context, url string) (*domain.ScrapedPanel, error) {
	args := m.Called(ctx, url)
	p, _ := args.Get(0).(*domain.ScrapedPanel)
	return p, args.Error(1)
}

func (m *MockSupplierClient) Close() error { return nil }

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) AddTask(ctx context.Context, t task.Task) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *MockQueue) GetTask(ctx context.Context, group, consumer, stream string) (*redis.XMessage, error) {
	args := m.Called(ctx, group, consumer, stream)
	msg, _ := args.Get(0).(*redis.XMessage)
	return msg, args.Error(1)
}

func (m *MockQueue) AckTask(ctx context.Context, stream, group, msgID string) error {
	return m.Called(ctx, stream, group, msgID).Error(0)
}

func (m *MockQueue) CreateGroup(ctx context.Context, stream, group string) error {
	return m.Called(ctx, stream, group).Error(0)
}

func (m *MockQueue) AutoClaim(ctx context.Context, group, consumer, stream string, minIdleTime time.Duration) ([]redis.XMessage, error) {
	args := m.Called(ctx, group, consumer, stream, minIdleTime)
	msgs, _ := args.Get(0).([]redis.XMessage)
	return msgs, args.Error(1)
}

func (m *MockQueue) EnsureStreamsExist(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockQueue) Lengths(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	lengths, _ := args.Get(0).(map[string]int64)
	return lengths, args.Error(1)
}

type MockStateManager struct {
	mock.Mock
}

func (m *MockStateManager) GetLastProcessedPage(ctx context.Context, catalogue, categoryPath string) (int, error) {
	args := m.Called(ctx, catalogue, categoryPath)
	return args.Int(0), args.Error(1)
}

func (m *MockStateManager) SetLastProcessedPage(ctx context.Context, catalogue, categoryPath string, pageNumber int) error {
	return m.Called(ctx, catalogue, categoryPath, pageNumber).Error(0)
}

func (m *MockStateManager) Reset(ctx context.Context, catalogue, categoryPath string) error {
	return m.Called(ctx, catalogue, categoryPath).Error(0)
}

type memoryCache struct {
	values map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		c.values[key] = string(v)
	case string:
		c.values[key] = v
	}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}
