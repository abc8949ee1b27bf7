package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/geo"
)

// queryBuilder accumulates WHERE conditions and their positional args.
type queryBuilder struct {
	conds []string
	args  []any
}

// arg binds v and returns its placeholder.
func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *queryBuilder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *queryBuilder) whereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conds, "\n\t\t  AND ")
}

func (b *queryBuilder) eligible(tenantID uuid.UUID) {
	b.where(fmt.Sprintf("l.tenant_id = %s AND l.is_public AND l.status = %s",
		b.arg(tenantID), b.arg(string(domain.StatusPublished))))
}

var textColumns = []string{"l.title", "l.description", "l.address", "l.city", "l.state"}

// text adds the substring predicate over the text columns. With fullText
// the tsvector match is OR'ed in and the returned placeholder names the
// query for ts_rank; otherwise it returns "".
func (b *queryBuilder) text(q string, fullText bool) string {
	if q == "" {
		return ""
	}
	pattern := b.arg(likePattern(q))
	parts := make([]string, 0, len(textColumns)+1)
	var tsq string
	if fullText {
		tsq = b.arg(q)
		parts = append(parts, fmt.Sprintf("l.search_vector @@ plainto_tsquery('simple', %s)", tsq))
	}
	for _, col := range textColumns {
		parts = append(parts, fmt.Sprintf("%s ILIKE %s", col, pattern))
	}
	b.where("(" + strings.Join(parts, " OR ") + ")")
	return tsq
}

func (b *queryBuilder) categories(slugs []string) {
	if len(slugs) == 0 {
		return
	}
	b.where(fmt.Sprintf(`EXISTS (
			SELECT 1 FROM listing_categories lc
			JOIN categories c ON c.id = lc.category_id
			WHERE lc.listing_id = l.id AND c.tenant_id = l.tenant_id AND c.slug = ANY(%s))`, b.arg(slugs)))
}

func (b *queryBuilder) tags(slugs []string) {
	if len(slugs) == 0 {
		return
	}
	b.where(fmt.Sprintf(`EXISTS (
			SELECT 1 FROM listing_tags lt
			JOIN tags t ON t.id = lt.tag_id
			WHERE lt.listing_id = l.id AND t.tenant_id = l.tenant_id AND t.slug = ANY(%s))`, b.arg(slugs)))
}

// location restricts to listings within the radius and returns the
// distance expression for the select list and ORDER BY.
func (b *queryBuilder) location(g *domain.GeoFilter) string {
	if g == nil {
		return ""
	}
	lat := b.arg(g.Latitude) + "::float8"
	lon := b.arg(g.Longitude) + "::float8"
	distance := geo.HaversineSQL("l.latitude::float8", "l.longitude::float8", lat, lon)

	box := geo.BoundingBox(geo.Point{Lat: g.Latitude, Lon: g.Longitude}, g.RadiusMiles)
	b.where("l.latitude IS NOT NULL AND l.longitude IS NOT NULL")
	b.where(fmt.Sprintf("l.latitude BETWEEN %s AND %s", b.arg(box.MinLat), b.arg(box.MaxLat)))
	b.where(fmt.Sprintf("l.longitude BETWEEN %s AND %s", b.arg(box.MinLon), b.arg(box.MaxLon)))
	b.where(fmt.Sprintf("%s <= %s", distance, b.arg(g.RadiusMiles)))
	return distance
}

// price relies on NULL comparisons being false to drop unpriced listings.
func (b *queryBuilder) price(minPrice, maxPrice *float64) {
	if minPrice != nil {
		b.where("l.price >= " + b.arg(*minPrice))
	}
	if maxPrice != nil {
		b.where("l.price <= " + b.arg(*maxPrice))
	}
}

func (b *queryBuilder) fields(filters []domain.FieldFilter) {
	for _, f := range filters {
		col := "l." + f.Field.Column
		switch f.Field.Kind {
		case domain.KindUUID:
			ids := make([]uuid.UUID, 0, len(f.Values))
			for _, v := range f.Values {
				ids = append(ids, uuid.MustParse(v))
			}
			b.where(fmt.Sprintf("%s = ANY(%s)", col, b.arg(ids)))
		case domain.KindBool:
			b.where(fmt.Sprintf("%s = ANY(%s)", col, b.arg(f.Bools())))
		default:
			b.where(fmt.Sprintf("%s = ANY(%s)", col, b.arg(f.Values)))
		}
	}
}

var sortColumns = map[domain.SortKey]string{
	domain.SortCreatedAt:   "l.created_at",
	domain.SortPublishedAt: "l.published_at",
	domain.SortUpdatedAt:   "l.updated_at",
	domain.SortTitle:       `l.title COLLATE "C"`,
	domain.SortPrice:       "l.price",
}

// orderBy renders the ORDER BY list, always ending in l.id for stable
// pagination. needsRating reports whether the rating join is required.
func orderBy(s domain.Sort, tsq, distance string) (clause string, needsRating bool) {
	var primary string
	switch {
	case s.Key == domain.SortRelevance && tsq != "":
		primary = fmt.Sprintf("ts_rank(l.search_vector, plainto_tsquery('simple', %s)) DESC, l.created_at DESC", tsq)
	case s.Key == domain.SortRelevance:
		primary = "l.created_at DESC"
	case s.Key == domain.SortDistance && distance != "":
		primary = "distance ASC"
	case s.Key == domain.SortRating:
		primary = "COALESCE(r.rating_avg, 0) DESC"
		needsRating = true
	default:
		col, ok := sortColumns[s.Key]
		if !ok {
			s = domain.DefaultSort
			col = sortColumns[s.Key]
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		primary = fmt.Sprintf("%s %s NULLS LAST", col, dir)
	}
	return "ORDER BY " + primary + ", l.id ASC", needsRating
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps q for a substring ILIKE, escaping its wildcards.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}
