package elasticsearch

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
)

// substringFields are matched with a case-insensitive wildcard; scoreFields
// only contribute relevance.
var (
	substringFields = []string{"title.sub", "description.sub", "address.sub", "city.sub", "state.sub"}
	scoreFields     = []string{"title^3", "description", "address"}
)

var sortFields = map[domain.SortKey]string{
	domain.SortCreatedAt:   "created_at",
	domain.SortPublishedAt: "published_at",
	domain.SortUpdatedAt:   "updated_at",
	domain.SortTitle:       "title.keyword",
	domain.SortPrice:       "price",
}

func term(field string, value any) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func terms(field string, values any) map[string]any {
	return map[string]any{"terms": map[string]any{field: values}}
}

func eligibility(tenantID uuid.UUID) []any {
	return []any{
		term("tenant_id", tenantID.String()),
		term("is_public", true),
		term("status", string(domain.StatusPublished)),
	}
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func containsPattern(q string) string {
	return "*" + wildcardEscaper.Replace(q) + "*"
}

func wildcard(field, q string) map[string]any {
	return map[string]any{"wildcard": map[string]any{
		field: map[string]any{"value": containsPattern(q), "case_insensitive": true},
	}}
}

// textFilter requires a substring match in any text field.
func textFilter(q string) map[string]any {
	should := make([]any, 0, len(substringFields))
	for _, f := range substringFields {
		should = append(should, wildcard(f, q))
	}
	return map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}}
}

func fieldFilters(filters []domain.FieldFilter) []any {
	out := make([]any, 0, len(filters))
	for _, f := range filters {
		if f.Field.Kind == domain.KindBool {
			out = append(out, terms(f.Field.Column, f.Bools()))
			continue
		}
		out = append(out, terms(f.Field.Column, f.Values))
	}
	return out
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// buildSearchQuery renders the search body. categoryIDs and tagIDs are the
// tenant's resolved taxonomy IDs; nil means the dimension is unfiltered.
// maxResultWindow is the index.max_result_window both mappings keep at its
// default. from+size beyond it is rejected by the cluster.
const maxResultWindow = 10000

func buildSearchQuery(c *domain.SearchCriteria, categoryIDs, tagIDs []uuid.UUID) map[string]any {
	filter := eligibility(c.TenantID)
	boolQuery := map[string]any{}

	hasText := c.Text != ""
	if hasText {
		filter = append(filter, textFilter(c.Text))
		boolQuery["should"] = []any{map[string]any{
			"multi_match": map[string]any{
				"query":  c.Text,
				"fields": scoreFields,
				"type":   "best_fields",
			},
		}}
	}
	if categoryIDs != nil {
		filter = append(filter, terms("category_ids", idStrings(categoryIDs)))
	}
	if tagIDs != nil {
		filter = append(filter, terms("tag_ids", idStrings(tagIDs)))
	}
	if c.Geo != nil {
		filter = append(filter, map[string]any{"geo_distance": map[string]any{
			"distance": strconv.FormatFloat(c.Geo.RadiusMiles, 'f', -1, 64) + "mi",
			"location": geoPoint{Lat: c.Geo.Latitude, Lon: c.Geo.Longitude},
		}})
	}
	if c.HasPriceBound() {
		bounds := map[string]any{}
		if c.MinPrice != nil {
			bounds["gte"] = *c.MinPrice
		}
		if c.MaxPrice != nil {
			bounds["lte"] = *c.MaxPrice
		}
		filter = append(filter, map[string]any{"range": map[string]any{"price": bounds}})
	}
	filter = append(filter, fieldFilters(c.Fields)...)
	boolQuery["filter"] = filter

	query := map[string]any{"bool": boolQuery}
	// Pages past the result window cannot be fetched; count only so the
	// caller still gets the exact total with an empty page.
	if c.Offset+c.Limit > maxResultWindow {
		return map[string]any{
			"query":            query,
			"size":             0,
			"track_total_hits": true,
		}
	}
	return map[string]any{
		"query":            query,
		"sort":             buildSort(c.Sort, hasText, c.Geo),
		"from":             c.Offset,
		"size":             c.Limit,
		"track_total_hits": true,
	}
}

// buildSort always ends in id ascending so pages are stable.
func buildSort(s domain.Sort, hasText bool, g *domain.GeoFilter) []any {
	tiebreak := map[string]any{"id": "asc"}
	switch {
	case s.Key == domain.SortRelevance && hasText:
		return []any{
			map[string]any{"_score": "desc"},
			map[string]any{"created_at": "desc"},
			tiebreak,
		}
	case s.Key == domain.SortDistance && g != nil:
		return []any{
			map[string]any{"_geo_distance": map[string]any{
				"location": geoPoint{Lat: g.Latitude, Lon: g.Longitude},
				"order":    "asc",
				"unit":     "mi",
			}},
			tiebreak,
		}
	case s.Key == domain.SortRating:
		return []any{map[string]any{"rating": map[string]any{"order": "desc"}}, tiebreak}
	}

	field, ok := sortFields[s.Key]
	if !ok || s.Key == domain.SortRelevance || s.Key == domain.SortDistance {
		s = domain.DefaultSort
		field = sortFields[s.Key]
	}
	order := domain.OrderAsc
	if s.Desc {
		order = domain.OrderDesc
	}
	return []any{
		map[string]any{field: map[string]any{"order": order, "missing": "_last"}},
		tiebreak,
	}
}

// facetBuckets caps distinct categories or tags per facet.
const facetBuckets = 1000

func buildFacetQuery(c *domain.FacetCriteria) map[string]any {
	filter := eligibility(c.TenantID)
	if c.Text != "" {
		filter = append(filter, textFilter(c.Text))
	}
	filter = append(filter, fieldFilters(c.Fields)...)

	return map[string]any{
		"size":  0,
		"query": map[string]any{"bool": map[string]any{"filter": filter}},
		"aggs": map[string]any{
			"categories": map[string]any{"terms": map[string]any{"field": "category_ids", "size": facetBuckets}},
			"tags":       map[string]any{"terms": map[string]any{"field": "tag_ids", "size": facetBuckets}},
			"price":      map[string]any{"stats": map[string]any{"field": "price"}},
		},
	}
}

// buildTitleSuggestQuery groups matching titles so duplicates collapse,
// newest listing first.
func buildTitleSuggestQuery(tenantID uuid.UUID, q string, limit int) map[string]any {
	filter := append(eligibility(tenantID), wildcard("title.sub", q))
	return map[string]any{
		"size":  0,
		"query": map[string]any{"bool": map[string]any{"filter": filter}},
		"aggs": map[string]any{
			"titles": map[string]any{
				"terms": map[string]any{
					"field": "title.keyword",
					"size":  limit,
					"order": []any{
						map[string]any{"newest": "desc"},
						map[string]any{"_key": "asc"},
					},
				},
				"aggs": map[string]any{
					"newest": map[string]any{"max": map[string]any{"field": "created_at"}},
				},
			},
		},
	}
}

func buildCategorySuggestQuery(tenantID uuid.UUID, q string, limit int) map[string]any {
	return map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{"filter": []any{
			term("tenant_id", tenantID.String()),
			term("kind", kindCategory),
			term("active", true),
			wildcard("name.sub", q),
		}}},
		"aggs": map[string]any{
			"names": map[string]any{"terms": map[string]any{
				"field": "name",
				"size":  limit,
				"order": map[string]any{"_key": "asc"},
			}},
		},
	}
}

// buildTaxonomyLookup finds a tenant's taxonomy entries of kind by slug or
// by ID. activeOnly restricts to active entries.
func buildTaxonomyLookup(tenantID uuid.UUID, kind, field string, values []string, activeOnly bool) map[string]any {
	filter := []any{
		term("tenant_id", tenantID.String()),
		term("kind", kind),
		terms(field, values),
	}
	if activeOnly {
		filter = append(filter, term("active", true))
	}
	return map[string]any{
		"size":    len(values),
		"query":   map[string]any{"bool": map[string]any{"filter": filter}},
		"_source": []string{"id", "slug", "name"},
	}
}
