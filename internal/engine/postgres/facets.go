package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/laas-platform/laas/internal/domain"
)

const (
	kindCategory = "category"
	kindTag      = "tag"
)

// Facets counts the listings matched by the text and field predicate per
// active category and tag, and summarizes their prices. Both statements
// share one CTE so counts and price stats describe the same listings.
func (e *Engine) Facets(ctx context.Context, c *domain.FacetCriteria) (*domain.Facets, error) {
	var b queryBuilder
	b.eligible(c.TenantID)
	b.text(c.Text, e.fullText)
	b.fields(c.Fields)

	matched := fmt.Sprintf(`WITH matched AS (
			SELECT l.id, l.tenant_id, l.price FROM listings l
			%s
		)`, b.whereClause())

	countsQuery := matched + `
		SELECT 'category' AS kind, c.name COLLATE "C" AS name, c.slug COLLATE "C" AS slug, count(*) AS n
		FROM matched m
		JOIN listing_categories lc ON lc.listing_id = m.id
		JOIN categories c ON c.id = lc.category_id AND c.tenant_id = m.tenant_id
		WHERE c.is_active
		GROUP BY c.id, c.name, c.slug
		UNION ALL
		SELECT 'tag' AS kind, t.name COLLATE "C" AS name, t.slug COLLATE "C" AS slug, count(*) AS n
		FROM matched m
		JOIN listing_tags lt ON lt.listing_id = m.id
		JOIN tags t ON t.id = lt.tag_id AND t.tenant_id = m.tenant_id
		WHERE t.is_active
		GROUP BY t.id, t.name, t.slug
		ORDER BY kind, n DESC, name, slug`

	facets := &domain.Facets{Categories: []domain.FacetCount{}, Tags: []domain.FacetCount{}}
	err := e.query(ctx, "FacetCounts", countsQuery, b.args, func(rows pgx.Rows) error {
		var (
			kind string
			fc   domain.FacetCount
		)
		if err := rows.Scan(&kind, &fc.Name, &fc.Slug, &fc.Count); err != nil {
			return err
		}
		switch kind {
		case kindCategory:
			facets.Categories = append(facets.Categories, fc)
		case kindTag:
			facets.Tags = append(facets.Tags, fc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("facet counts: %w", err)
	}

	priceQuery := matched + `
		SELECT count(price), min(price)::float8, max(price)::float8, avg(price)::float8
		FROM matched`

	err = e.query(ctx, "FacetPriceStats", priceQuery, b.args, func(rows pgx.Rows) error {
		var (
			n            int
			lo, hi, mean *float64
		)
		if err := rows.Scan(&n, &lo, &hi, &mean); err != nil {
			return err
		}
		if n > 0 && lo != nil && hi != nil && mean != nil {
			facets.PriceRange = &domain.PriceStats{Min: *lo, Max: *hi, Avg: *mean}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("facet price stats: %w", err)
	}
	return facets, nil
}

// Suggest reads matching titles newest first, then matching active
// category names. Titles are grouped so duplicates do not use up the limit.
func (e *Engine) Suggest(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]string, error) {
	q := strings.TrimSpace(query)
	if q == "" || limit <= 0 {
		return []string{}, nil
	}
	pattern := likePattern(q)

	var titles []string
	err := e.query(ctx, "SuggestTitles", suggestTitlesQuery,
		[]any{tenantID, string(domain.StatusPublished), pattern, limit},
		func(rows pgx.Rows) error {
			var t string
			if err := rows.Scan(&t); err != nil {
				return err
			}
			titles = append(titles, t)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("suggest titles: %w", err)
	}

	var names []string
	err = e.query(ctx, "SuggestCategories", suggestCategoriesQuery,
		[]any{tenantID, pattern, limit},
		func(rows pgx.Rows) error {
			var n string
			if err := rows.Scan(&n); err != nil {
				return err
			}
			names = append(names, n)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("suggest categories: %w", err)
	}

	return domain.MergeSuggestions(limit, titles, names), nil
}

const suggestTitlesQuery = `
		SELECT l.title
		FROM listings l
		WHERE l.tenant_id = $1 AND l.is_public AND l.status = $2
		  AND l.title ILIKE $3
		GROUP BY l.title
		ORDER BY max(l.created_at) DESC, l.title COLLATE "C"
		LIMIT $4`

const suggestCategoriesQuery = `
		SELECT c.name
		FROM categories c
		WHERE c.tenant_id = $1 AND c.is_active AND c.name ILIKE $2
		GROUP BY c.name
		ORDER BY c.name COLLATE "C"
		LIMIT $3`
