package domain

import (
	"time"

	"github.com/google/uuid"
)

// Catalogue is one supplier's product line.
type Catalogue struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"` // bouney, dispano
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewCatalogue(slug, name, baseURL string) *Catalogue {
	now := time.Now().UTC()
	return &Catalogue{
		ID:        uuid.New(),
		Slug:      slug,
		Name:      name,
		BaseURL:   baseURL,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
