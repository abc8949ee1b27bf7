package domain

import (
	"strings"
)

// SortKey is a resolved ordering strategy.
type SortKey string

const (
	SortRelevance   SortKey = "relevance"
	SortDistance    SortKey = "distance"
	SortRating      SortKey = "rating"
	SortCreatedAt   SortKey = "created_at"
	SortPublishedAt SortKey = "published_at"
	SortUpdatedAt   SortKey = "updated_at"
	SortTitle       SortKey = "title"
	SortPrice       SortKey = "price"
)

// DefaultSort is newest first.
var DefaultSort = Sort{Key: SortCreatedAt, Desc: true}

// Sort is the primary ordering. Every backend breaks ties by listing ID
// ascending, and field sorts put NULL values last in either direction.
type Sort struct {
	Key  SortKey
	Desc bool
}

var fieldSorts = map[SortKey]bool{
	SortCreatedAt:   true,
	SortPublishedAt: true,
	SortUpdatedAt:   true,
	SortTitle:       true,
	SortPrice:       true,
}

// ResolveSort picks the ordering for sortBy/sortOrder. Relevance without a
// query and distance without a location fall back to DefaultSort, as does an
// unknown key. Rating is always descending. Any sortOrder other than "asc"
// means descending.
func ResolveSort(sortBy, sortOrder string, hasQuery, hasLocation bool) Sort {
	key := SortKey(strings.ToLower(strings.TrimSpace(sortBy)))
	desc := !strings.EqualFold(strings.TrimSpace(sortOrder), OrderAsc)

	switch {
	case key == "":
		return Sort{Key: SortCreatedAt, Desc: desc}
	case key == SortRelevance:
		if !hasQuery {
			return DefaultSort
		}
		return Sort{Key: SortRelevance, Desc: true}
	case key == SortDistance:
		if !hasLocation {
			return DefaultSort
		}
		return Sort{Key: SortDistance}
	case key == SortRating:
		return Sort{Key: SortRating, Desc: true}
	case fieldSorts[key]:
		return Sort{Key: key, Desc: desc}
	default:
		return DefaultSort
	}
}
