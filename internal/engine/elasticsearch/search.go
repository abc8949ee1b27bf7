package elasticsearch

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/geo"
)

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esBucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

type esFacetResponse struct {
	Aggregations struct {
		Categories struct {
			Buckets []esBucket `json:"buckets"`
		} `json:"categories"`
		Tags struct {
			Buckets []esBucket `json:"buckets"`
		} `json:"tags"`
		Price struct {
			Count int      `json:"count"`
			Min   *float64 `json:"min"`
			Max   *float64 `json:"max"`
			Avg   *float64 `json:"avg"`
		} `json:"price"`
	} `json:"aggregations"`
}

type esTaxonomyResponse struct {
	Hits struct {
		Hits []struct {
			Source taxonomyDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search resolves category and tag slugs to the tenant's taxonomy IDs, then
// runs one bool query with the exact hit count.
func (e *Engine) Search(ctx context.Context, c *domain.SearchCriteria) (*domain.SearchResult, error) {
	categoryIDs, err := e.resolveSlugs(ctx, c.TenantID, kindCategory, c.CategorySlugs)
	if err != nil {
		return nil, err
	}
	tagIDs, err := e.resolveSlugs(ctx, c.TenantID, kindTag, c.TagSlugs)
	if err != nil {
		return nil, err
	}
	// A slug filter nothing resolves to can match no listing.
	if (categoryIDs != nil && len(categoryIDs) == 0) || (tagIDs != nil && len(tagIDs) == 0) {
		return domain.NewSearchResult(nil, 0, c.Limit, c.Offset), nil
	}

	var esResp esSearchResponse
	if err := e.search(ctx, "search", e.indexName, buildSearchQuery(c, categoryIDs, tagIDs), &esResp); err != nil {
		return nil, err
	}

	results := make([]domain.Listing, 0, len(esResp.Hits.Hits))
	for i := range esResp.Hits.Hits {
		doc := &esResp.Hits.Hits[i].Source
		l := doc.listing(c.IncludeMedia, c.IncludeReviews)
		if c.Geo != nil && l.HasCoordinates() {
			d := geo.Distance(
				geo.Point{Lat: c.Geo.Latitude, Lon: c.Geo.Longitude},
				geo.Point{Lat: *l.Latitude, Lon: *l.Longitude},
			)
			l.Distance = &d
		}
		results = append(results, l)
	}
	return domain.NewSearchResult(results, esResp.Hits.Total.Value, c.Limit, c.Offset), nil
}

// resolveSlugs returns nil when slugs is empty and a possibly empty slice
// of matching IDs otherwise.
func (e *Engine) resolveSlugs(ctx context.Context, tenantID uuid.UUID, kind string, slugs []string) ([]uuid.UUID, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	entries, err := e.lookupTaxonomy(ctx, tenantID, kind, "slug", slugs, false)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, t := range entries {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (e *Engine) lookupTaxonomy(ctx context.Context, tenantID uuid.UUID, kind, field string, values []string, activeOnly bool) ([]taxonomyDoc, error) {
	var resp esTaxonomyResponse
	body := buildTaxonomyLookup(tenantID, kind, field, values, activeOnly)
	if err := e.search(ctx, "lookup "+kind, e.taxonomyIndex, body, &resp); err != nil {
		return nil, err
	}
	out := make([]taxonomyDoc, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// Facets aggregates category and tag IDs and price stats over the matching
// listings, then names the buckets from the active taxonomy entries.
// Buckets of inactive or unknown entries are dropped.
func (e *Engine) Facets(ctx context.Context, c *domain.FacetCriteria) (*domain.Facets, error) {
	var esResp esFacetResponse
	if err := e.search(ctx, "facets", e.indexName, buildFacetQuery(c), &esResp); err != nil {
		return nil, err
	}
	aggs := esResp.Aggregations

	categories, err := e.nameBuckets(ctx, c.TenantID, kindCategory, aggs.Categories.Buckets)
	if err != nil {
		return nil, err
	}
	tags, err := e.nameBuckets(ctx, c.TenantID, kindTag, aggs.Tags.Buckets)
	if err != nil {
		return nil, err
	}

	facets := &domain.Facets{Categories: categories, Tags: tags}
	if p := aggs.Price; p.Count > 0 && p.Min != nil && p.Max != nil && p.Avg != nil {
		facets.PriceRange = &domain.PriceStats{Min: *p.Min, Max: *p.Max, Avg: *p.Avg}
	}
	return facets, nil
}

func (e *Engine) nameBuckets(ctx context.Context, tenantID uuid.UUID, kind string, buckets []esBucket) ([]domain.FacetCount, error) {
	out := make([]domain.FacetCount, 0, len(buckets))
	if len(buckets) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, b.Key)
	}
	entries, err := e.lookupTaxonomy(ctx, tenantID, kind, "id", keys, true)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]taxonomyDoc, len(entries))
	for _, t := range entries {
		byID[t.ID.String()] = t
	}

	for _, b := range buckets {
		if t, ok := byID[b.Key]; ok && b.DocCount > 0 {
			out = append(out, domain.FacetCount{Name: t.Name, Slug: t.Slug, Count: b.DocCount})
		}
	}
	domain.SortFacetCounts(out)
	return out, nil
}

type esTermsResponse struct {
	Aggregations map[string]struct {
		Buckets []esBucket `json:"buckets"`
	} `json:"aggregations"`
}

// Suggest returns matching titles newest first, then matching active
// category names.
func (e *Engine) Suggest(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]string, error) {
	q := strings.TrimSpace(query)
	if q == "" || limit <= 0 {
		return []string{}, nil
	}

	titles, err := e.termKeys(ctx, "suggest titles", e.indexName, "titles", buildTitleSuggestQuery(tenantID, q, limit))
	if err != nil {
		return nil, err
	}
	names, err := e.termKeys(ctx, "suggest categories", e.taxonomyIndex, "names", buildCategorySuggestQuery(tenantID, q, limit))
	if err != nil {
		return nil, err
	}
	return domain.MergeSuggestions(limit, titles, names), nil
}

func (e *Engine) termKeys(ctx context.Context, op, index, agg string, body map[string]any) ([]string, error) {
	var resp esTermsResponse
	if err := e.search(ctx, op, index, body, &resp); err != nil {
		return nil, err
	}
	buckets := resp.Aggregations[agg].Buckets
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, b.Key)
	}
	return keys, nil
}
