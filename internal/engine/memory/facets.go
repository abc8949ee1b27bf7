package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
)

// Facets counts eligible listings matching the text and field filters per
// active category and tag. Zero counts are omitted.
func (e *Engine) Facets(ctx context.Context, c *domain.FacetCriteria) (*domain.Facets, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	text := strings.ToLower(c.Text)
	categoryCounts := make(map[uuid.UUID]int)
	tagCounts := make(map[uuid.UUID]int)

	var priced int
	var minPrice, maxPrice, sum float64

	for id := range e.byTenant[c.TenantID] {
		doc := e.listings[id]
		if !doc.Eligible(c.TenantID) {
			continue
		}
		if text != "" && !matchesText(doc, text) {
			continue
		}
		if !matchesFields(&doc.Listing, c.Fields) {
			continue
		}

		for _, cid := range doc.CategoryIDs {
			categoryCounts[cid]++
		}
		for _, tid := range doc.TagIDs {
			tagCounts[tid]++
		}
		if doc.Price != nil {
			p := *doc.Price
			if priced == 0 || p < minPrice {
				minPrice = p
			}
			if priced == 0 || p > maxPrice {
				maxPrice = p
			}
			sum += p
			priced++
		}
	}

	facets := &domain.Facets{
		Categories: make([]domain.FacetCount, 0, len(categoryCounts)),
		Tags:       make([]domain.FacetCount, 0, len(tagCounts)),
	}
	for id, n := range categoryCounts {
		cat, ok := e.categories[id]
		if !ok || !cat.IsActive || cat.TenantID != c.TenantID {
			continue
		}
		facets.Categories = append(facets.Categories, domain.FacetCount{Name: cat.Name, Slug: cat.Slug, Count: n})
	}
	for id, n := range tagCounts {
		tag, ok := e.tags[id]
		if !ok || !tag.IsActive || tag.TenantID != c.TenantID {
			continue
		}
		facets.Tags = append(facets.Tags, domain.FacetCount{Name: tag.Name, Slug: tag.Slug, Count: n})
	}
	domain.SortFacetCounts(facets.Categories)
	domain.SortFacetCounts(facets.Tags)

	if priced > 0 {
		facets.PriceRange = &domain.PriceStats{Min: minPrice, Max: maxPrice, Avg: sum / float64(priced)}
	}
	return facets, nil
}

// Suggest returns matching titles, newest listing first, then matching
// active category names in name order.
func (e *Engine) Suggest(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return []string{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var titled []*domain.ListingDocument
	for id := range e.byTenant[tenantID] {
		doc := e.listings[id]
		if doc.Eligible(tenantID) && strings.Contains(strings.ToLower(doc.Title), q) {
			titled = append(titled, doc)
		}
	}
	slices.SortFunc(titled, func(a, b *domain.ListingDocument) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
	titles := make([]string, 0, len(titled))
	for _, doc := range titled {
		titles = append(titles, doc.Title)
	}

	var names []string
	for _, cat := range e.categories {
		if cat.TenantID == tenantID && cat.IsActive && strings.Contains(strings.ToLower(cat.Name), q) {
			names = append(names, cat.Name)
		}
	}
	slices.Sort(names)

	return domain.MergeSuggestions(limit, titles, names), nil
}
