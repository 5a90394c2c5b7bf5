package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"cutx/catalog/internal/config"
	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/domain/task"
	"cutx/catalog/internal/proxy"
	"cutx/catalog/internal/queue"

	log "github.com/sirupsen/logrus"
)

// SupplierClient scrapes the catalogue of one supplier website.
type SupplierClient interface {
	Catalogue() string
	GetListingPage(ctx context.Context, category domain.CategorySource, page int) (*domain.ListingPage, error)
	GetListingPagesCh(ctx context.Context, category domain.CategorySource, startPage int) (*domain.ListingPage, chan *domain.ListingPage, error)
	GetPanelDetails(ctx context.Context, url string) (*domain.ScrapedPanel, error)
	Close() error
}

// pageParser knows the HTML layout of one supplier.
type pageParser interface {
	ListingURL(listingURL string, page int) string
	ParseListingPage(html string, category domain.CategorySource) (*domain.ListingPage, error)
	ParsePanelDetails(html, url string) (*domain.ScrapedPanel, error)
	ReferenceFromURL(url string) string
	WaitSelector() string
}

type supplierClient struct {
	catalogue  string
	fetcher    htmlFetcher
	parser     pageParser
	maxWorkers int
	queue      queue.Queue
}

// New builds the client of a configured supplier. The HTML layout is chosen by slug,
// the transport by fetch mode.
func New(supplier config.SupplierConfig, cfg config.ScraperConfig, proxySupplier proxy.ProxySupplier, q queue.Queue) (SupplierClient, error) {
	var parser pageParser
	switch supplier.Slug {
	case BouneySlug:
		parser = newBouneyParser(supplier.BaseURL)
	case DispanoSlug:
		parser = newDispanoParser(supplier.BaseURL)
	default:
		return nil, fmt.Errorf("no page parser for supplier %q", supplier.Slug)
	}

	var fetcher htmlFetcher
	switch supplier.Fetch {
	case config.FetchHTTP:
		fetcher = newHTTPFetcher(supplier.Slug, cfg, proxySupplier)
	case config.FetchBrowser:
		fetcher = newBrowserFetcher(supplier.Slug, cfg, proxySupplier, parser.WaitSelector())
	default:
		return nil, fmt.Errorf("unknown fetch mode %q for supplier %s", supplier.Fetch, supplier.Slug)
	}

	return newSupplierClient(supplier.Slug, fetcher, parser, cfg.MaxWorkers, q), nil
}

// NewBouneyClient scrapes bouney.fr over plain HTTP.
func NewBouneyClient(supplier config.SupplierConfig, cfg config.ScraperConfig, proxySupplier proxy.ProxySupplier, q queue.Queue) SupplierClient {
	return newSupplierClient(BouneySlug, newHTTPFetcher(BouneySlug, cfg, proxySupplier), newBouneyParser(supplier.BaseURL), cfg.MaxWorkers, q)
}

// NewDispanoClient scrapes dispano.fr through headless Chrome.
func NewDispanoClient(supplier config.SupplierConfig, cfg config.ScraperConfig, proxySupplier proxy.ProxySupplier, q queue.Queue) SupplierClient {
	parser := newDispanoParser(supplier.BaseURL)
	return newSupplierClient(DispanoSlug, newBrowserFetcher(DispanoSlug, cfg, proxySupplier, parser.WaitSelector()), parser, cfg.MaxWorkers, q)
}

func newSupplierClient(catalogue string, fetcher htmlFetcher, parser pageParser, maxWorkers int, q queue.Queue) *supplierClient {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &supplierClient{
		catalogue:  catalogue,
		fetcher:    fetcher,
		parser:     parser,
		maxWorkers: maxWorkers,
		queue:      q,
	}
}

func (c *supplierClient) Catalogue() string {
	return c.catalogue
}

func (c *supplierClient) GetListingPage(ctx context.Context, category domain.CategorySource, pageNumber int) (*domain.ListingPage, error) {
	url := c.parser.ListingURL(category.ListingURL, pageNumber)

	html, err := c.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page %d of %s: %w", pageNumber, category.Path, err)
	}

	page, err := c.parser.ParseListingPage(html, category)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page %d of %s: %w", pageNumber, category.Path, err)
	}
	if page.PageNumber == 0 {
		page.PageNumber = pageNumber
	}

	log.Debugf("Fetched %s page %d of %s with %d items", c.catalogue, page.PageNumber, category.Path, len(page.Items))
	return page, nil
}

// GetListingPagesCh returns startPage and streams the following pages, fetched by up to
// maxWorkers goroutines. Pages that fail are queued as PageRetryTask instead.
func (c *supplierClient) GetListingPagesCh(ctx context.Context, category domain.CategorySource, startPage int) (*domain.ListingPage, chan *domain.ListingPage, error) {
	if startPage < 1 {
		startPage = 1
	}

	firstPage, err := c.GetListingPage(ctx, category, startPage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	pagesChan := make(chan *domain.ListingPage, c.maxWorkers+1)
	pagesChan <- firstPage

	if firstPage.TotalPages <= startPage {
		close(pagesChan)
		return firstPage, pagesChan, nil
	}

	var fetched atomic.Int32
	fetched.Store(1)

	go func() {
		defer close(pagesChan)

		wg := &sync.WaitGroup{}
		semaphore := make(chan struct{}, c.maxWorkers)

		for pageNum := startPage + 1; pageNum <= firstPage.TotalPages; pageNum++ {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case semaphore <- struct{}{}:
			}

			wg.Add(1)
			go func(pageNum int) {
				defer wg.Done()
				defer func() { <-semaphore }()

				page, err := c.GetListingPage(ctx, category, pageNum)
				if err != nil {
					c.enqueuePageRetry(ctx, category, pageNum, err)
					return
				}

				select {
				case pagesChan <- page:
				case <-ctx.Done():
					return
				}

				if n := fetched.Add(1); n%50 == 0 {
					log.Infof("Fetched %d pages out of %d for %s/%s", n, firstPage.TotalPages, c.catalogue, category.Path)
				}
			}(pageNum)
		}

		wg.Wait()
	}()

	return firstPage, pagesChan, nil
}

func (c *supplierClient) enqueuePageRetry(ctx context.Context, category domain.CategorySource, pageNum int, cause error) {
	if c.queue == nil {
		log.Errorf("Failed to fetch %s page %d of %s: %v", c.catalogue, pageNum, category.Path, cause)
		return
	}

	retryTask := &task.PageRetryTask{
		Catalogue:    c.catalogue,
		CategoryPath: category.Path,
		ListingURL:   category.ListingURL,
		PageNumber:   pageNum,
		RetryCount:   0,
		Error:        cause.Error(),
	}
	if _, err := c.queue.AddTask(ctx, retryTask); err != nil {
		log.Errorf("❌ Failed to add page %d to retry queue: %v", pageNum, err)
		return
	}
	log.Warnf("🔄 Added page %d of %s/%s to retry queue due to fetch failure: %v", pageNum, c.catalogue, category.Path, cause)
}

func (c *supplierClient) GetPanelDetails(ctx context.Context, url string) (*domain.ScrapedPanel, error) {
	html, err := c.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTML for panel %s: %w", url, err)
	}

	details, err := c.parser.ParsePanelDetails(html, url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse panel details: %w", err)
	}
	if details.Reference == "" {
		details.Reference = c.parser.ReferenceFromURL(url)
	}

	log.Debugf("Fetched panel %s from %s", details.Reference, c.catalogue)
	return details, nil
}

func (c *supplierClient) Close() error {
	return c.fetcher.Close()
}
