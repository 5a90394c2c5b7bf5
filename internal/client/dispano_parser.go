package client

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cutx/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

const DispanoSlug = "dispano"

var (
	dispanoRefRegex      = regexp.MustCompile(`(\d{5,})(?:\.html)?$`)
	dispanoRefLabelRegex = regexp.MustCompile(`(?i)r[ée]f(?:[ée]rence)?\.?\s*:?\s*([A-Za-z0-9-]+)`)
)

// dispanoParser reads dispano.fr pages once rendered by the browser.
type dispanoParser struct {
	baseURL string
}

func newDispanoParser(baseURL string) *dispanoParser {
	return &dispanoParser{baseURL: baseURL}
}

func (p *dispanoParser) WaitSelector() string {
	return "[data-testid=product-grid], [data-testid=product-title]"
}

func (p *dispanoParser) ListingURL(listingURL string, page int) string {
	return pageURL(listingURL, "page", page)
}

// ReferenceFromURL reads the article number ending URLs like /p/panneau-mdf-19mm/1234567.
func (p *dispanoParser) ReferenceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	last := path.Base(strings.TrimSuffix(u.Path, "/"))
	if m := dispanoRefRegex.FindStringSubmatch(last); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(last, ".html")
}

func (p *dispanoParser) ParseListingPage(html string, category domain.CategorySource) (*domain.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	grid := doc.Find("[data-testid=product-grid]")
	if grid.Length() == 0 {
		return nil, fmt.Errorf("product grid not found for %s", category.Path)
	}

	page := &domain.ListingPage{
		Catalogue:    category.Catalogue,
		CategoryPath: category.Path,
		Items:        make([]domain.ListingItem, 0),
	}

	grid.Find("article.product-card").Each(func(i int, s *goquery.Selection) {
		href, ok := s.Find("a.product-card__link").First().Attr("href")
		if !ok {
			return
		}
		itemURL := absoluteURL(p.baseURL, href)

		reference, _ := s.Attr("data-ref")
		reference = strings.TrimSpace(reference)
		if reference == "" {
			reference = p.ReferenceFromURL(itemURL)
		}

		page.Items = append(page.Items, domain.ListingItem{
			Reference: reference,
			Name:      selectionText(s.Find(".product-card__title").First()),
			URL:       itemURL,
		})
	})

	_, _, page.TotalItems = paginationFromText(selectionText(doc.Find(".results-count").First()))

	doc.Find("nav.pagination .pagination__item").Each(func(i int, s *goquery.Selection) {
		n, err := strconv.Atoi(selectionText(s))
		if err != nil {
			return
		}
		if s.HasClass("pagination__item--active") {
			page.PageNumber = n
		}
		if n > page.TotalPages {
			page.TotalPages = n
		}
	})

	if page.PageNumber == 0 {
		page.PageNumber = 1
	}
	if page.TotalPages == 0 && page.TotalItems > 0 && len(page.Items) > 0 && page.PageNumber == 1 {
		page.TotalPages = int(math.Ceil(float64(page.TotalItems) / float64(len(page.Items))))
	}
	if page.TotalPages < page.PageNumber {
		page.TotalPages = page.PageNumber
	}

	log.Debugf("Parsed dispano page %d/%d with %d items", page.PageNumber, page.TotalPages, len(page.Items))
	return page, nil
}

func (p *dispanoParser) ParsePanelDetails(html, sourceURL string) (*domain.ScrapedPanel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	panel := &domain.ScrapedPanel{
		Name:       selectionText(doc.Find("[data-testid=product-title]").First()),
		SourceURL:  sourceURL,
		Attributes: make(map[string]string),
		ScrapedAt:  time.Now().UTC(),
	}
	if panel.Name == "" {
		return nil, fmt.Errorf("product title not found on %s", sourceURL)
	}

	if m := dispanoRefLabelRegex.FindStringSubmatch(selectionText(doc.Find("[data-testid=product-reference]").First())); m != nil {
		panel.Reference = m[1]
	}

	price := doc.Find("[data-testid=product-price]").First()
	setPrice(panel, selectionText(price.Find(".price__value").First()), selectionText(price.Find(".price__unit").First()))

	panel.StockLabel = selectionText(doc.Find("[data-testid=stock-status]").First())
	panel.Description = selectionText(doc.Find("[data-testid=product-description]").First())
	panel.Manufacturer = selectionText(doc.Find("[data-testid=product-brand]").First())

	image := doc.Find("[data-testid=product-image]").First()
	if !image.Is("img") {
		image = image.Find("img").First()
	}
	if src, ok := image.Attr("src"); ok {
		panel.ImageURL = absoluteURL(p.baseURL, src)
	}

	doc.Find("[data-testid=product-characteristics] li").Each(func(i int, s *goquery.Selection) {
		key := AttributeKey(s.Find(".label").First().Text())
		value := selectionText(s.Find(".value").First())
		if key != "" && value != "" {
			panel.Attributes[key] = value
		}
	})
	if panel.Manufacturer == "" {
		panel.Manufacturer = firstAttribute(panel.Attributes, "marque", "fabricant")
	}

	doc.Find("[data-testid=breadcrumb] li").Each(func(i int, s *goquery.Selection) {
		if text := selectionText(s); text != "" {
			panel.Breadcrumb = append(panel.Breadcrumb, text)
		}
	})

	return panel, nil
}
