package domain

import (
	"cmp"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SearchRequest is the caller-facing search input. Zero values mean "not
// given": Limit 0 takes the configured default, Radius 0 the default radius.
type SearchRequest struct {
	Query          string         `json:"query"`
	Filters        map[string]any `json:"filters,omitempty"`
	Categories     []string       `json:"categories,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Location       *Location      `json:"location,omitempty"`
	PriceRange     *PriceRange    `json:"price_range,omitempty"`
	SortBy         string         `json:"sort_by,omitempty"`
	SortOrder      string         `json:"sort_order,omitempty"`
	Limit          int            `json:"limit,omitempty"`
	Offset         int            `json:"offset,omitempty"`
	IncludeMedia   bool           `json:"include_media,omitempty"`
	IncludeReviews bool           `json:"include_reviews,omitempty"`
}

// Location filters by great-circle distance. Radius is in miles.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Radius    float64  `json:"radius,omitempty"`
}

// PriceRange bounds are inclusive and independently optional.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// GeoFilter is a validated location filter.
type GeoFilter struct {
	Latitude    float64
	Longitude   float64
	RadiusMiles float64
}

// SearchCriteria is a validated, normalized SearchRequest as backends see it.
type SearchCriteria struct {
	TenantID       uuid.UUID
	Text           string
	Fields         []FieldFilter
	CategorySlugs  []string
	TagSlugs       []string
	Geo            *GeoFilter
	MinPrice       *float64
	MaxPrice       *float64
	Sort           Sort
	Limit          int
	Offset         int
	IncludeMedia   bool
	IncludeReviews bool
}

// HasPriceBound reports whether a NULL price must be excluded.
func (c *SearchCriteria) HasPriceBound() bool {
	return c.MinPrice != nil || c.MaxPrice != nil
}

type SearchResult struct {
	Results []Listing `json:"results"`
	Total   int       `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	HasMore bool      `json:"has_more"`
}

// NewSearchResult builds the envelope for one page of an exact total.
func NewSearchResult(results []Listing, total, limit, offset int) *SearchResult {
	if results == nil {
		results = []Listing{}
	}
	return &SearchResult{
		Results: results,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// FacetRequest narrows facets by text and field filters only; categories,
// tags, location and price are the dimensions being counted.
type FacetRequest struct {
	Query   string         `json:"query"`
	Filters map[string]any `json:"filters,omitempty"`
}

type FacetCriteria struct {
	TenantID uuid.UUID
	Text     string
	Fields   []FieldFilter
}

type FacetCount struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// SortFacetCounts orders facet entries by count descending, then name and
// slug ascending.
func SortFacetCounts(counts []FacetCount) {
	slices.SortFunc(counts, func(a, b FacetCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Slug, b.Slug)
	})
}

type PriceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Facets lists only categories and tags with at least one match.
// PriceRange is nil when no matching listing has a price.
type Facets struct {
	Categories []FacetCount `json:"categories"`
	Tags       []FacetCount `json:"tags"`
	PriceRange *PriceStats  `json:"price_range"`
}
