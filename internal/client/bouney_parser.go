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

const BouneySlug = "bouney"

var bouneyRefRegex = regexp.MustCompile(`-(\d{4,})\.html$`)

// bouneyParser reads the server-rendered pages of bouney.fr.
type bouneyParser struct {
	baseURL string
}

func newBouneyParser(baseURL string) *bouneyParser {
	return &bouneyParser{baseURL: baseURL}
}

func (p *bouneyParser) WaitSelector() string {
	return "li.product-item, h1.page-title"
}

func (p *bouneyParser) ListingURL(listingURL string, page int) string {
	return pageURL(listingURL, "p", page)
}

// ReferenceFromURL reads the numeric id closing product URLs like
// /panneau-melamine-h1145-st10-19mm-104512.html.
func (p *bouneyParser) ReferenceFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if m := bouneyRefRegex.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(path.Base(u.Path), ".html")
}

func (p *bouneyParser) ParseListingPage(html string, category domain.CategorySource) (*domain.ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &domain.ListingPage{
		Catalogue:    category.Catalogue,
		CategoryPath: category.Path,
		Items:        make([]domain.ListingItem, 0),
	}

	doc.Find("li.product-item").Each(func(i int, s *goquery.Selection) {
		link := s.Find("a.product-item-link").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		itemURL := absoluteURL(p.baseURL, href)

		reference, _ := s.Attr("data-sku")
		reference = strings.TrimSpace(reference)
		if reference == "" {
			reference = p.ReferenceFromURL(itemURL)
		}

		page.Items = append(page.Items, domain.ListingItem{
			Reference: reference,
			Name:      selectionText(link),
			URL:       itemURL,
		})
	})

	p.extractPagination(doc, page)

	log.Debugf("Parsed bouney page %d/%d with %d items", page.PageNumber, page.TotalPages, len(page.Items))
	return page, nil
}

func (p *bouneyParser) extractPagination(doc *goquery.Document, page *domain.ListingPage) {
	_, _, page.TotalItems = paginationFromText(selectionText(doc.Find(".toolbar-amount").First()))

	pages := doc.Find(".pages").First()
	page.PageNumber, page.TotalPages, _ = paginationFromText(selectionText(pages))

	if page.PageNumber == 0 {
		if current, err := strconv.Atoi(selectionText(pages.Find(".item.current span").Last())); err == nil {
			page.PageNumber = current
		}
	}
	if page.TotalPages == 0 {
		pages.Find(".item a span").Each(func(i int, s *goquery.Selection) {
			if n, err := strconv.Atoi(selectionText(s)); err == nil && n > page.TotalPages {
				page.TotalPages = n
			}
		})
	}
	if page.PageNumber == 0 {
		page.PageNumber = 1
	}
	if page.TotalPages == 0 && page.TotalItems > 0 && len(page.Items) > 0 && page.PageNumber == 1 {
		page.TotalPages = int(math.Ceil(float64(page.TotalItems) / float64(len(page.Items))))
	}
	if page.TotalPages < page.PageNumber {
		page.TotalPages = page.PageNumber
	}
}

func (p *bouneyParser) ParsePanelDetails(html, sourceURL string) (*domain.ScrapedPanel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	panel := &domain.ScrapedPanel{
		Name:       selectionText(doc.Find("h1.page-title").First()),
		Reference:  selectionText(doc.Find(".sku .value").First()),
		SourceURL:  sourceURL,
		Attributes: make(map[string]string),
		ScrapedAt:  time.Now().UTC(),
	}
	if panel.Name == "" {
		return nil, fmt.Errorf("product name not found on %s", sourceURL)
	}

	priceBox := doc.Find(".price-box").First()
	setPrice(panel, selectionText(priceBox.Find(".price").First()), selectionText(doc.Find(".price-unit").First()))

	panel.StockLabel = selectionText(doc.Find(".stock span").First())
	if panel.StockLabel == "" {
		panel.StockLabel = selectionText(doc.Find(".stock").First())
	}

	panel.Description = selectionText(doc.Find(".product.attribute.description .value").First())

	if src, ok := doc.Find("img.gallery-placeholder__image").First().Attr("src"); ok {
		panel.ImageURL = absoluteURL(p.baseURL, src)
	} else if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		panel.ImageURL = absoluteURL(p.baseURL, content)
	}

	doc.Find("#product-attribute-specs-table tr").Each(func(i int, row *goquery.Selection) {
		key := AttributeKey(row.Find("th").First().Text())
		value := selectionText(row.Find("td").First())
		if key != "" && value != "" {
			panel.Attributes[key] = value
		}
	})
	panel.Manufacturer = firstAttribute(panel.Attributes, "fabricant", "marque")

	doc.Find(".breadcrumbs li").Each(func(i int, s *goquery.Selection) {
		if text := selectionText(s); text != "" {
			panel.Breadcrumb = append(panel.Breadcrumb, text)
		}
	})

	return panel, nil
}

func firstAttribute(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := attrs[k]; v != "" {
			return v
		}
	}
	return ""
}
