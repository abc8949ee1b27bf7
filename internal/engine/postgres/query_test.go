package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laas-platform/laas/internal/domain"
)

func TestQueryBuilder_ArgPlaceholdersAreSequential(t *testing.T) {
	var b queryBuilder
	assert.Equal(t, "$1", b.arg("a"))
	assert.Equal(t, "$2", b.arg(2))
	assert.Equal(t, []any{"a", 2}, b.args)
}

func TestQueryBuilder_EligibilityComesFirst(t *testing.T) {
	tenant := uuid.New()
	var b queryBuilder
	b.eligible(tenant)
	b.price(ptr(1.0), nil)

	assert.Equal(t, "l.tenant_id = $1 AND l.is_public AND l.status = $2", b.conds[0])
	assert.Equal(t, []any{tenant, "published", 1.0}, b.args)
	assert.Contains(t, b.whereClause(), "WHERE l.tenant_id = $1")
}

func TestQueryBuilder_Text(t *testing.T) {
	var b queryBuilder
	tsq := b.text("50%_off", true)

	assert.Equal(t, "$2", tsq)
	require.Len(t, b.conds, 1)
	assert.Contains(t, b.conds[0], "l.search_vector @@ plainto_tsquery('simple', $2)")
	assert.Contains(t, b.conds[0], "l.title ILIKE $1")
	assert.Contains(t, b.conds[0], "l.state ILIKE $1")
	assert.Equal(t, `%50\%\_off%`, b.args[0])

	var plain queryBuilder
	assert.Empty(t, plain.text("laptop", false))
	assert.NotContains(t, plain.conds[0], "search_vector")

	var empty queryBuilder
	empty.text("", true)
	assert.Empty(t, empty.conds)
}

func TestQueryBuilder_TaxonomyIsTenantScopedOR(t *testing.T) {
	var b queryBuilder
	b.categories([]string{"laptops", "phones"})
	b.tags(nil)

	require.Len(t, b.conds, 1)
	assert.Contains(t, b.conds[0], "c.tenant_id = l.tenant_id")
	assert.Contains(t, b.conds[0], "c.slug = ANY($1)")
	assert.Equal(t, []any{[]string{"laptops", "phones"}}, b.args)
}

func TestQueryBuilder_Location(t *testing.T) {
	var b queryBuilder
	distance := b.location(&domain.GeoFilter{Latitude: 30.27, Longitude: -97.74, RadiusMiles: 10})

	assert.Contains(t, distance, "asin")
	assert.Contains(t, distance, "$1::float8")
	assert.Contains(t, b.conds, "l.latitude IS NOT NULL AND l.longitude IS NOT NULL")
	assert.Contains(t, b.conds, "l.latitude BETWEEN $3 AND $4")
	assert.Equal(t, 10.0, b.args[len(b.args)-1])

	var none queryBuilder
	assert.Empty(t, none.location(nil))
	assert.Empty(t, none.conds)
}

func TestQueryBuilder_Fields(t *testing.T) {
	owner := uuid.New()
	filters, err := domain.ParseFilters(map[string]any{
		"owner_id":    owner.String(),
		"is_featured": []any{true, "false"},
		"city":        "Austin",
	})
	require.NoError(t, err)

	var b queryBuilder
	b.fields(filters)

	assert.Equal(t, []string{
		"l.city = ANY($1)",
		"l.is_featured = ANY($2)",
		"l.owner_id = ANY($3)",
	}, b.conds)
	assert.Equal(t, []string{"Austin"}, b.args[0])
	assert.Equal(t, []bool{true, false}, b.args[1])
	assert.Equal(t, []uuid.UUID{owner}, b.args[2])
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name        string
		sort        domain.Sort
		tsq         string
		distance    string
		want        string
		needsRating bool
	}{
		{"relevance ranked", domain.Sort{Key: domain.SortRelevance, Desc: true}, "$3", "",
			"ORDER BY ts_rank(l.search_vector, plainto_tsquery('simple', $3)) DESC, l.created_at DESC, l.id ASC", false},
		{"relevance without ranking", domain.Sort{Key: domain.SortRelevance, Desc: true}, "", "",
			"ORDER BY l.created_at DESC, l.id ASC", false},
		{"distance", domain.Sort{Key: domain.SortDistance}, "", "(dist)",
			"ORDER BY distance ASC, l.id ASC", false},
		{"distance without location", domain.Sort{Key: domain.SortDistance}, "", "",
			"ORDER BY l.created_at DESC NULLS LAST, l.id ASC", false},
		{"rating", domain.Sort{Key: domain.SortRating, Desc: true}, "", "",
			"ORDER BY COALESCE(r.rating_avg, 0) DESC, l.id ASC", true},
		{"price asc", domain.Sort{Key: domain.SortPrice}, "", "",
			"ORDER BY l.price ASC NULLS LAST, l.id ASC", false},
		{"title desc", domain.Sort{Key: domain.SortTitle, Desc: true}, "", "",
			`ORDER BY l.title COLLATE "C" DESC NULLS LAST, l.id ASC`, false},
		{"unknown key", domain.Sort{Key: "bogus"}, "", "",
			"ORDER BY l.created_at DESC NULLS LAST, l.id ASC", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rating := orderBy(tt.sort, tt.tsq, tt.distance)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.needsRating, rating)
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%laptop%", likePattern("laptop"))
	assert.Equal(t, `%a\\b%`, likePattern(`a\b`))
}
