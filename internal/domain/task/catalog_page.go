package task

import "cutx/catalog/internal/domain"

type ListingPageTask struct {
	Catalogue    string               `json:"catalogue"`     // bouney, dispano
	CategoryPath string               `json:"category_path"` // category the listing feeds
	PageNumber   int                  `json:"page_number"`   // Current page number
	Items        []domain.ListingItem `json:"items"`         // Product links found on the page
}

func (t *ListingPageTask) TaskType() string {
	return TypeListingPage
}

func (t *ListingPageTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
