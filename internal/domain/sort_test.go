package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSort(t *testing.T) {
	tests := []struct {
		name        string
		sortBy      string
		sortOrder   string
		hasQuery    bool
		hasLocation bool
		want        Sort
	}{
		{"defaults", "", "", false, false, Sort{Key: SortCreatedAt, Desc: true}},
		{"default key ascending", "", "asc", false, false, Sort{Key: SortCreatedAt}},
		{"relevance with query", "relevance", "asc", true, false, Sort{Key: SortRelevance, Desc: true}},
		{"relevance without query", "relevance", "asc", false, false, DefaultSort},
		{"distance with location", "distance", "desc", false, true, Sort{Key: SortDistance}},
		{"distance without location", "distance", "", true, false, DefaultSort},
		{"rating ignores order", "rating", "asc", false, false, Sort{Key: SortRating, Desc: true}},
		{"field ascending", "price", "asc", false, false, Sort{Key: SortPrice}},
		{"field case insensitive", "Title", "ASC", false, false, Sort{Key: SortTitle}},
		{"unknown order is desc", "published_at", "sideways", false, false, Sort{Key: SortPublishedAt, Desc: true}},
		{"unknown key", "tenant_id", "asc", true, true, DefaultSort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSort(tt.sortBy, tt.sortOrder, tt.hasQuery, tt.hasLocation))
		})
	}
}
