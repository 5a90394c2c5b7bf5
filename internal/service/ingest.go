package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cutx/catalog/internal/cache"
	"cutx/catalog/internal/classify"
	"cutx/catalog/internal/client"
	"cutx/catalog/internal/config"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/domain/task"
	"cutx/catalog/internal/queue"
	"cutx/catalog/internal/repository"
	"cutx/catalog/internal/state"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	stageFetch = "fetch"
	stageSave  = "save"
)

// IngestService scrapes the supplier catalogues into the panel store through the task queue.
type IngestService struct {
	catalogues   repository.CatalogueRepository
	categories   repository.CategoryRepository
	panels       repository.PanelRepository
	clients      map[string]client.SupplierClient
	suppliers    []config.SupplierConfig
	queue        queue.Queue
	stateManager state.StateManager
	cache        cache.Client

	minSaveInterval int
	itemMaxRetries  int
	groupName       string
	minIdleTime     time.Duration
	pollBackoff     time.Duration

	mu           sync.RWMutex
	catalogueIDs map[string]uuid.UUID
	categoryIDs  map[string]uuid.UUID
}

func NewIngestService(
	catalogues repository.CatalogueRepository,
	categories repository.CategoryRepository,
	panels repository.PanelRepository,
	clients []client.SupplierClient,
	queue queue.Queue,
	stateManager state.StateManager,
	cacheClient cache.Client,
	cfg *config.Config,
) *IngestService {
	byCatalogue := make(map[string]client.SupplierClient, len(clients))
	for _, c := range clients {
		byCatalogue[c.Catalogue()] = c
	}

	minIdle := time.Duration(cfg.Redis.MinIdleTime) * time.Second
	if minIdle <= 0 {
		minIdle = time.Minute
	}

	return &IngestService{
		catalogues:      catalogues,
		categories:      categories,
		panels:          panels,
		clients:         byCatalogue,
		suppliers:       cfg.Suppliers,
		queue:           queue,
		stateManager:    stateManager,
		cache:           cacheClient,
		minSaveInterval: max(1, cfg.Scraper.SaveInterval),
		itemMaxRetries:  cfg.Scraper.ItemMaxRetries,
		groupName:       cfg.Redis.ConsumerGroup,
		minIdleTime:     minIdle,
		pollBackoff:     time.Second,
		catalogueIDs:    make(map[string]uuid.UUID),
		categoryIDs:     make(map[string]uuid.UUID),
	}
}

// SyncCatalogues stores the configured suppliers and their category trees.
func (s *IngestService) SyncCatalogues(ctx context.Context) error {
	for _, supplier := range s.suppliers {
		catalogue := domain.NewCatalogue(supplier.Slug, supplier.Name, supplier.BaseURL)
		if err := s.catalogues.Upsert(ctx, catalogue); err != nil {
			return err
		}
		s.rememberCatalogue(catalogue.Slug, catalogue.ID)

		for _, cat := range supplier.Categories {
			category, err := s.categories.EnsurePath(ctx, catalogue.ID, cat.FullPath(), cat.Name)
			if err != nil {
				return fmt.Errorf("failed to sync category %s of %s: %w", cat.FullPath(), supplier.Slug, err)
			}
			s.rememberCategory(catalogue.ID, category.Path, category.ID)
		}
		dropCached(ctx, s.cache, cache.TreeKey(catalogue.Slug))
		log.Infof("✅ Catalogue %s synced with %d categories", supplier.Slug, len(supplier.Categories))
	}
	return nil
}

// ParseAll walks every configured listing and queues its pages. A category whose
// first page cannot be fetched is reported and skipped; queue failures abort the run.
func (s *IngestService) ParseAll(ctx context.Context) (*domain.BatchReport, error) {
	report := domain.NewBatchReport()
	var reportMu sync.Mutex

	errGroup, ctx := errgroup.WithContext(ctx)

	for _, supplier := range s.suppliers {
		supplierClient, ok := s.clients[supplier.Slug]
		if !ok {
			log.Warnf("⚠️ No client configured for supplier %s, skipping", supplier.Slug)
			continue
		}

		for _, cat := range supplier.Categories {
			source := domain.CategorySource{
				Catalogue:  supplier.Slug,
				Path:       cat.FullPath(),
				Name:       cat.Name,
				ListingURL: cat.ListingURL,
			}

			errGroup.Go(func() error {
				pages, err := s.parseCategory(ctx, supplierClient, source)

				reportMu.Lock()
				defer reportMu.Unlock()
				report.Processed += pages
				if err != nil {
					var fatal *fatalError
					if errors.As(err, &fatal) {
						return fatal.err
					}
					report.Fail(source.Catalogue+"/"+source.Path, stageFetch, err)
				}
				return nil
			})
		}
	}

	if err := errGroup.Wait(); err != nil {
		return report, err
	}

	log.Infof("✅ Completed all categories: %s", report)
	return report, nil
}

// fatalError marks failures that must stop the whole run.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (s *IngestService) parseCategory(ctx context.Context, supplierClient client.SupplierClient, source domain.CategorySource) (int, error) {
	lastProcessedPage, err := s.stateManager.GetLastProcessedPage(ctx, source.Catalogue, source.Path)
	if err != nil {
		return 0, &fatalError{err: err}
	}
	if lastProcessedPage == 0 {
		lastProcessedPage = 1
	}
	if lastProcessedPage != 1 {
		log.Infof("🔄 Continue from page %d for %s/%s", lastProcessedPage, source.Catalogue, source.Path)
	}

	log.Infof("🔄 Processing category: %s (%s)", source.Name, source.Path)

	firstPage, pagesCh, err := supplierClient.GetListingPagesCh(ctx, source, lastProcessedPage)
	if err != nil {
		log.Errorf("❌ Failed to get listing pages for %s/%s: %v", source.Catalogue, source.Path, err)
		return 0, err
	}

	countPages := 0
	for page := range pagesCh {
		countPages++

		if countPages%s.minSaveInterval == 0 {
			// pages arrive out of order, stay behind the fastest worker
			if err := s.stateManager.SetLastProcessedPage(ctx, source.Catalogue, source.Path, max(1, page.PageNumber-s.minSaveInterval)); err != nil {
				log.Warnf("⚠️ Failed to save progress for %s/%s: %v", source.Catalogue, source.Path, err)
			}
		}

		_, err := s.queue.AddTask(ctx, &task.ListingPageTask{
			Catalogue:    source.Catalogue,
			CategoryPath: source.Path,
			PageNumber:   page.PageNumber,
			Items:        page.Items,
		})
		if err != nil {
			log.Errorf("❌ Failed to add task for %s/%s: %v", source.Catalogue, source.Path, err)
			// drain so the fetchers can exit
			go func() {
				for range pagesCh {
				}
			}()
			return countPages, &fatalError{err: err}
		}
	}

	log.Infof("✅ Completed %s/%s: %d pages queued, %d total items",
		source.Catalogue, source.Path, countPages, firstPage.TotalItems)

	// a finished listing starts over on the next run
	if err := s.stateManager.Reset(ctx, source.Catalogue, source.Path); err != nil {
		log.Warnf("⚠️ Failed to reset progress for %s/%s: %v", source.Catalogue, source.Path, err)
	}
	return countPages, nil
}

// RunWorkers consumes the task streams until ctx is cancelled.
func (s *IngestService) RunWorkers(ctx context.Context, numWorkers int) error {
	var wg sync.WaitGroup

	retryWorkers := max(1, numWorkers/2)
	s.runWorkersForStream(ctx, &wg, numWorkers, queue.StreamName(task.TypeListingPage), "main")
	s.runWorkersForStream(ctx, &wg, retryWorkers, queue.StreamName(task.TypePageRetry), "page-retry")
	s.runWorkersForStream(ctx, &wg, retryWorkers, queue.StreamName(task.TypePanelRetry), "panel-retry")

	wg.Wait()
	return nil
}

func (s *IngestService) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s-%d", workerType, time.Now().UnixNano())
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := s.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
					msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
					if err != nil {
						if ctx.Err() == nil {
							log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
							sleepContext(ctx, s.pollBackoff)
						}
						continue
					}

					if msg != nil {
						if err := s.processMessage(ctx, msg); err != nil {
							log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}(i + 1)
	}
}

// sleepContext waits for d, returning false early when ctx ends.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *IngestService) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	switch taskType {
	case task.TypeListingPage:
		pageTask, err := task.UnmarshalTask[*task.ListingPageTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal listing page task data: %w", err)
		}
		report := s.processListingPage(ctx, pageTask)
		log.Infof("📦 %s/%s page %d: %s", pageTask.Catalogue, pageTask.CategoryPath, pageTask.PageNumber, report)

	case task.TypePageRetry:
		retryTask, err := task.UnmarshalTask[*task.PageRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal page retry task data: %w", err)
		}
		if err := s.retryPage(ctx, retryTask); err != nil {
			return fmt.Errorf("failed to retry page: %w", err)
		}

	case task.TypePanelRetry:
		retryTask, err := task.UnmarshalTask[*task.PanelRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal panel retry task data: %w", err)
		}
		if err := s.retryPanel(ctx, retryTask); err != nil {
			return fmt.Errorf("failed to retry panel: %w", err)
		}

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	if err := s.queue.AckTask(ctx, queue.StreamName(taskType), s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

// processListingPage imports every panel of a listing page. Failed panels go to the retry stream.
func (s *IngestService) processListingPage(ctx context.Context, pageTask *task.ListingPageTask) *domain.BatchReport {
	report := domain.NewBatchReport()

	supplierClient, ok := s.clients[pageTask.Catalogue]
	if !ok {
		report.Fail(pageTask.Catalogue, stageFetch, fmt.Errorf("no client for catalogue %s", pageTask.Catalogue))
		return report
	}

	for _, item := range pageTask.Items {
		report.Processed++

		stage := stageFetch
		scraped, err := supplierClient.GetPanelDetails(ctx, item.URL)
		if err == nil {
			stage = stageSave
			var inserted bool
			inserted, err = s.ImportScraped(ctx, pageTask.Catalogue, pageTask.CategoryPath, scraped)
			if err == nil {
				if inserted {
					report.Created++
				} else {
					report.Updated++
				}
				continue
			}
		}

		report.Fail(item.URL, stage, err)
		s.enqueuePanelRetry(ctx, &task.PanelRetryTask{
			Catalogue:    pageTask.Catalogue,
			CategoryPath: pageTask.CategoryPath,
			URL:          item.URL,
			Reference:    item.Reference,
			Error:        err.Error(),
			FailureStage: stage,
		})
	}

	return report
}

func (s *IngestService) enqueuePanelRetry(ctx context.Context, retryTask *task.PanelRetryTask) {
	if _, err := s.queue.AddTask(ctx, retryTask); err != nil {
		log.Errorf("❌ Failed to add retry task for panel %s: %v", retryTask.URL, err)
		return
	}
	log.Warnf("🔄 Added panel %s to retry queue (%s failed, attempt %d): %s",
		retryTask.URL, retryTask.FailureStage, retryTask.RetryCount, retryTask.Error)
}

func (s *IngestService) retryPage(ctx context.Context, retryTask *task.PageRetryTask) error {
	retryTask.RetryCount++

	if s.itemMaxRetries > 0 && retryTask.RetryCount > s.itemMaxRetries {
		log.Errorf("❌ Giving up on page %d of %s/%s after %d attempts: %s",
			retryTask.PageNumber, retryTask.Catalogue, retryTask.CategoryPath, retryTask.RetryCount-1, retryTask.Error)
		return nil
	}

	log.Infof("🔄 Retrying page %d for %s/%s (attempt %d)",
		retryTask.PageNumber, retryTask.Catalogue, retryTask.CategoryPath, retryTask.RetryCount)

	supplierClient, ok := s.clients[retryTask.Catalogue]
	if !ok {
		return fmt.Errorf("no client for catalogue %s", retryTask.Catalogue)
	}

	source := domain.CategorySource{
		Catalogue:  retryTask.Catalogue,
		Path:       retryTask.CategoryPath,
		ListingURL: retryTask.ListingURL,
	}
	page, err := supplierClient.GetListingPage(ctx, source, retryTask.PageNumber)
	if err != nil {
		next := *retryTask
		next.Error = err.Error()
		if _, addErr := s.queue.AddTask(ctx, &next); addErr != nil {
			log.Errorf("❌ Failed to re-add retry task for page %d: %v", retryTask.PageNumber, addErr)
			return addErr
		}

		log.Warnf("🔄 Page %d for %s/%s failed again, will retry (attempt %d): %v",
			retryTask.PageNumber, retryTask.Catalogue, retryTask.CategoryPath, retryTask.RetryCount, err)
		return nil
	}

	pageTask := &task.ListingPageTask{
		Catalogue:    retryTask.Catalogue,
		CategoryPath: retryTask.CategoryPath,
		PageNumber:   page.PageNumber,
		Items:        page.Items,
	}
	if _, err := s.queue.AddTask(ctx, pageTask); err != nil {
		log.Errorf("❌ Failed to add recovered page task for page %d: %v", retryTask.PageNumber, err)
		return err
	}

	log.Infof("✅ Successfully recovered page %d for %s/%s after %d attempts",
		retryTask.PageNumber, retryTask.Catalogue, retryTask.CategoryPath, retryTask.RetryCount)
	return nil
}

func (s *IngestService) retryPanel(ctx context.Context, retryTask *task.PanelRetryTask) error {
	retryTask.RetryCount++

	if retryTask.RetryCount > s.itemMaxRetries {
		log.Errorf("❌ Dropping panel %s after %d attempts (%s): %s",
			retryTask.URL, retryTask.RetryCount-1, retryTask.FailureStage, retryTask.Error)
		return nil
	}

	supplierClient, ok := s.clients[retryTask.Catalogue]
	if !ok {
		return fmt.Errorf("no client for catalogue %s", retryTask.Catalogue)
	}

	stage := stageFetch
	scraped, err := supplierClient.GetPanelDetails(ctx, retryTask.URL)
	if err == nil {
		stage = stageSave
		if _, err = s.ImportScraped(ctx, retryTask.Catalogue, retryTask.CategoryPath, scraped); err == nil {
			log.Infof("✅ Recovered panel %s after %d attempts", scraped.Reference, retryTask.RetryCount)
			return nil
		}
	}

	next := *retryTask
	next.Error = err.Error()
	next.FailureStage = stage
	s.enqueuePanelRetry(ctx, &next)
	return nil
}

// ImportScraped classifies a scraped product and stores it under categoryPath.
// It reports whether a new panel was created.
func (s *IngestService) ImportScraped(ctx context.Context, catalogue, categoryPath string, scraped *domain.ScrapedPanel) (bool, error) {
	if scraped == nil || strings.TrimSpace(scraped.Reference) == "" {
		return false, fmt.Errorf("%w: scraped panel without reference", domain.ErrInvalidInput)
	}

	catalogueID, err := s.catalogueID(ctx, catalogue)
	if err != nil {
		return false, err
	}

	panel := BuildPanel(catalogueID, scraped)

	if categoryPath != "" {
		categoryID, err := s.categoryID(ctx, catalogue, catalogueID, categoryPath)
		if err != nil {
			return false, err
		}
		panel.CategoryID = &categoryID
	}

	existing, err := s.panels.FindByReference(ctx, catalogueID, panel.Reference)
	switch {
	case err == nil:
		mergeKnown(panel, existing)
	case !errors.Is(err, domain.ErrNotFound):
		return false, err
	}

	panel.SearchText = classify.SearchText(panel)
	inserted, err := s.panels.Upsert(ctx, panel)
	if err != nil {
		return false, err
	}
	if !inserted {
		dropCached(ctx, s.cache, cache.PanelKey(panel.ID))
	}
	return inserted, nil
}

// BuildPanel turns a scraped product page into a classified panel.
func BuildPanel(catalogueID uuid.UUID, scraped *domain.ScrapedPanel) *domain.Panel {
	now := time.Now().UTC()
	scrapedAt := scraped.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}

	panel := &domain.Panel{
		ID:            uuid.New(),
		CatalogueID:   catalogueID,
		Reference:     strings.TrimSpace(scraped.Reference),
		Name:          scraped.Name,
		Description:   scraped.Description,
		Manufacturer:  scraped.Manufacturer,
		DecorName:     firstNonEmpty(scraped.Attributes["nom du decor"], scraped.Attributes["decor"]),
		ProductType:   domain.ProductTypeUnknown,
		Material:      domain.MaterialUnknown,
		DecorCategory: domain.DecorUnknown,
		StockStatus:   client.StockStatusFromLabel(scraped.StockLabel),
		ImageURL:      scraped.ImageURL,
		SourceURL:     scraped.SourceURL,
		ScrapedAt:     &scrapedAt,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if scraped.Price != nil {
		price := *scraped.Price
		if scraped.PriceUnit == domain.PriceUnitM2 {
			panel.PricePerM2 = &price
		} else {
			panel.PricePerUnit = &price
		}
	}

	c := classify.Classify(scraped.Name, scraped.Description)
	classify.FillFromAttributes(&c, scraped.Attributes)
	classify.Apply(panel, c, false)
	return panel
}

// mergeKnown keeps what the stored panel knows when the fresh scrape does not.
func mergeKnown(panel, existing *domain.Panel) {
	panel.ID = existing.ID
	panel.CreatedAt = existing.CreatedAt
	if panel.CategoryID == nil {
		panel.CategoryID = existing.CategoryID
	}
	if panel.Description == "" {
		panel.Description = existing.Description
	}
	if panel.DecorName == "" {
		panel.DecorName = existing.DecorName
	}
	if panel.ImageURL == "" {
		panel.ImageURL = existing.ImageURL
	}

	classify.Apply(panel, classify.Classification{
		ProductType:   existing.ProductType,
		Material:      existing.Material,
		Essence:       existing.Essence,
		DecorCategory: existing.DecorCategory,
		Manufacturer:  existing.Manufacturer,
		DecorCode:     existing.DecorCode,
		Finish:        existing.Finish,
		Hydrofuge:     existing.Hydrofuge,
		Ignifuge:      existing.Ignifuge,
		ThicknessMM:   existing.ThicknessMM,
		LengthMM:      existing.LengthMM,
		WidthMM:       existing.WidthMM,
	}, false)
}

func (s *IngestService) catalogueID(ctx context.Context, slug string) (uuid.UUID, error) {
	s.mu.RLock()
	id, ok := s.catalogueIDs[slug]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	catalogue, err := s.catalogues.FindBySlug(ctx, slug)
	if err != nil {
		return uuid.Nil, err
	}
	s.rememberCatalogue(slug, catalogue.ID)
	return catalogue.ID, nil
}

// categoryID resolves path to a category, creating it when missing. Resolving through
// the store drops the cached tree of the catalogue since the path may be new.
func (s *IngestService) categoryID(ctx context.Context, slug string, catalogueID uuid.UUID, path string) (uuid.UUID, error) {
	key := catalogueID.String() + ":" + path

	s.mu.RLock()
	id, ok := s.categoryIDs[key]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	category, err := s.categories.EnsurePath(ctx, catalogueID, path, "")
	if err != nil {
		return uuid.Nil, err
	}
	s.rememberCategory(catalogueID, path, category.ID)
	dropCached(ctx, s.cache, cache.TreeKey(slug))
	return category.ID, nil
}

func (s *IngestService) rememberCatalogue(slug string, id uuid.UUID) {
	s.mu.Lock()
	s.catalogueIDs[slug] = id
	s.mu.Unlock()
}

func (s *IngestService) rememberCategory(catalogueID uuid.UUID, path string, id uuid.UUID) {
	s.mu.Lock()
	s.categoryIDs[catalogueID.String()+":"+path] = id
	s.mu.Unlock()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
