package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// MaxCategoryDepth is the number of levels a catalogue tree may have.
const MaxCategoryDepth = 4

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Category is a node of a per-catalogue tree. Path is the slash-joined slug chain from the root.
type Category struct {
	ID          uuid.UUID  `json:"id"`
	CatalogueID uuid.UUID  `json:"catalogue_id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`  // panneaux/melamines
	Level       int        `json:"level"` // 0 for roots
	SortOrder   int        `json:"sort_order"`
}

// CategoryNode is a category with its children, as served to the frontend menu.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: invalid category slug %q", ErrInvalidInput, slug)
	}
	return nil
}

// SplitPath returns the slugs of a category path, rejecting empty or malformed segments.
func SplitPath(path string) ([]string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty category path", ErrInvalidInput)
	}
	parts := strings.Split(path, "/")
	if len(parts) > MaxCategoryDepth {
		return nil, fmt.Errorf("%w: category path %q deeper than %d levels", ErrInvalidInput, path, MaxCategoryDepth)
	}
	for _, p := range parts {
		if err := ValidateSlug(p); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// NewRootCategory creates a level 0 category.
func NewRootCategory(catalogueID uuid.UUID, slug, name string) (*Category, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	return &Category{
		ID:          uuid.New(),
		CatalogueID: catalogueID,
		Slug:        slug,
		Name:        name,
		Path:        slug,
		Level:       0,
	}, nil
}

// NewChildCategory creates a category below parent.
func NewChildCategory(parent *Category, slug, name string) (*Category, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: parent category is required", ErrInvalidInput)
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if parent.Level >= MaxCategoryDepth-1 {
		return nil, fmt.Errorf("%w: category depth cannot exceed %d levels", ErrInvalidInput, MaxCategoryDepth)
	}
	parentID := parent.ID
	return &Category{
		ID:          uuid.New(),
		CatalogueID: parent.CatalogueID,
		ParentID:    &parentID,
		Slug:        slug,
		Name:        name,
		Path:        parent.Path + "/" + slug,
		Level:       parent.Level + 1,
	}, nil
}

// BuildTree nests a flat category list. Categories whose parent is absent become roots, a parent
// cycle is cut at the last category walked, and repeated ids keep their first occurrence.
func BuildTree(categories []Category) []*CategoryNode {
	nodes := make(map[uuid.UUID]*CategoryNode, len(categories))
	order := make([]uuid.UUID, 0, len(categories))
	parents := make(map[uuid.UUID]uuid.UUID, len(categories))
	for _, c := range categories {
		if _, dup := nodes[c.ID]; dup {
			continue
		}
		nodes[c.ID] = &CategoryNode{Category: c, Children: []*CategoryNode{}}
		order = append(order, c.ID)
	}
	for _, id := range order {
		if p := nodes[id].ParentID; p != nil && *p != id {
			if _, ok := nodes[*p]; ok {
				parents[id] = *p
			}
		}
	}

	const (
		walking = 1
		placed  = 2
	)
	state := make(map[uuid.UUID]int, len(order))
	for _, id := range order {
		var path []uuid.UUID
		cur := id
		for state[cur] == 0 {
			state[cur] = walking
			path = append(path, cur)
			next, ok := parents[cur]
			if !ok {
				break
			}
			if state[next] == walking {
				delete(parents, cur)
				break
			}
			cur = next
		}
		for _, p := range path {
			state[p] = placed
		}
	}

	roots := make([]*CategoryNode, 0)
	for _, id := range order {
		node := nodes[id]
		if parentID, ok := parents[id]; ok {
			parent := nodes[parentID]
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
