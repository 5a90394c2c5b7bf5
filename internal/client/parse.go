package client

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"cutx/catalog/internal/classify"
	"cutx/catalog/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var (
	priceNumberRegex = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}.]*(?:,\d+)?`)
	pageOfRegex      = regexp.MustCompile(`(?i)page\s+(\d+)\s+(?:sur|/|de)\s+(\d+)`)
	totalItemsRegex  = regexp.MustCompile(`(?i)(\d[\d\s\x{00a0}\x{202f}]*)\s+(?:produits?|r[ée]sultats?|articles?)`)
	attrParensRegex  = regexp.MustCompile(`\([^)]*\)`)
	dotGroupsRegex   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
)

// ParseFrenchPrice reads prices such as "1 234,56 €", "1.234 €" or "45.90€ HT".
// Without a decimal comma, dots followed by groups of three digits separate thousands.
func ParseFrenchPrice(text string) (decimal.Decimal, error) {
	raw := priceNumberRegex.FindString(text)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("no price in %q", text)
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			return r
		}
		return -1
	}, raw)
	cleaned = strings.TrimSuffix(cleaned, ".")
	if strings.Contains(cleaned, ",") || dotGroupsRegex.MatchString(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", text, err)
	}
	return price, nil
}

// ParsePriceUnit tells per-m² prices from per-sheet ones. Unmarked prices are per piece.
func ParsePriceUnit(text string) domain.PriceUnit {
	folded := classify.Fold(text)
	if strings.Contains(folded, "m2") || strings.Contains(folded, "metre carre") {
		return domain.PriceUnitM2
	}
	return domain.PriceUnitPiece
}

// StockStatusFromLabel maps the availability wording of supplier pages.
func StockStatusFromLabel(label string) domain.StockStatus {
	folded := classify.Fold(label)
	switch {
	case folded == "":
		return domain.StockUnknown
	case containsAny(folded, "rupture", "indisponible", "epuise", "plus disponible", "non disponible", "hors stock"):
		return domain.StockOutOfStock
	case strings.Contains(folded, "en stock"):
		return domain.StockInStock
	case containsAny(folded, "sur commande", "sous ", "delai", "jours", "reappro", "commande"):
		return domain.StockOnOrder
	case containsAny(folded, "disponible", "stock"):
		return domain.StockInStock
	}
	return domain.StockUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// AttributeKey normalizes a characteristic label: "Épaisseur (mm) :" becomes "epaisseur".
func AttributeKey(label string) string {
	key := attrParensRegex.ReplaceAllString(label, "")
	key = classify.Fold(key)
	return strings.TrimSpace(strings.TrimRight(key, ": "))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func selectionText(s *goquery.Selection) string {
	return cleanText(s.Text())
}

// absoluteURL resolves href against base, leaving already absolute URLs untouched.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// pageURL sets a page query parameter on a listing URL. Page 1 keeps the URL untouched.
func pageURL(listingURL, param string, page int) string {
	if page <= 1 {
		return listingURL
	}
	u, err := url.Parse(listingURL)
	if err != nil {
		return listingURL
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// paginationFromText finds "Page X sur Y" and "N produits" in free text.
func paginationFromText(text string) (current, total, items int) {
	if m := pageOfRegex.FindStringSubmatch(text); m != nil {
		current, _ = strconv.Atoi(m[1])
		total, _ = strconv.Atoi(m[2])
	}
	if m := totalItemsRegex.FindStringSubmatch(text); m != nil {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m[1])
		items, _ = strconv.Atoi(digits)
	}
	return current, total, items
}

// setPrice fills price fields from the price and unit texts of a product page.
// A missing or unreadable price leaves Price nil.
func setPrice(panel *domain.ScrapedPanel, priceText, unitText string) {
	if priceText == "" {
		return
	}
	price, err := ParseFrenchPrice(priceText)
	if err != nil {
		return
	}
	panel.Price = &price
	if unitText == "" {
		unitText = priceText
	}
	panel.PriceUnit = ParsePriceUnit(unitText)
}
