package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/laas-platform/laas/internal/domain"
)

const listingColumns = `l.id, l.tenant_id, l.owner_id, l.schema_id, l.title,
		       COALESCE(l.description, ''), l.slug, COALESCE(l.address, ''),
		       COALESCE(l.city, ''), COALESCE(l.state, ''), COALESCE(l.country, ''),
		       COALESCE(l.postal_code, ''), l.latitude::float8, l.longitude::float8,
		       l.status, l.is_public, l.is_verified, l.is_featured, l.price::float8,
		       l.currency, l.created_at, l.updated_at, l.published_at`

const ratingJoin = `
		LEFT JOIN LATERAL (
			SELECT avg(rv.rating)::float8 AS rating_avg
			FROM reviews rv
			WHERE rv.listing_id = l.id AND rv.status = 'approved'
		) r ON TRUE`

// Search runs the predicate stages as one statement with the exact total
// taken from a window count, then loads media and review summaries for the
// page when asked.
func (e *Engine) Search(ctx context.Context, c *domain.SearchCriteria) (*domain.SearchResult, error) {
	var b queryBuilder
	b.eligible(c.TenantID)
	tsq := b.text(c.Text, e.fullText)
	b.categories(c.CategorySlugs)
	b.tags(c.TagSlugs)
	distance := b.location(c.Geo)
	b.price(c.MinPrice, c.MaxPrice)
	b.fields(c.Fields)

	where := b.whereClause()
	filterArgs := len(b.args)

	order, needsRating := orderBy(c.Sort, tsq, distance)
	join := ""
	if needsRating {
		join = ratingJoin
	}
	distanceCol := "NULL::float8"
	if distance != "" {
		distanceCol = distance
	}

	query := fmt.Sprintf(`
		SELECT %s,
		       %s AS distance,
		       count(*) OVER() AS total_count
		FROM listings l%s
		%s
		%s
		LIMIT %s OFFSET %s`,
		listingColumns, distanceCol, join, where, order, b.arg(c.Limit), b.arg(c.Offset))

	var (
		results []domain.Listing
		total   int
	)
	err := e.query(ctx, "SearchListings", query, b.args, func(rows pgx.Rows) error {
		l, n, err := scanListing(rows)
		if err != nil {
			return err
		}
		results = append(results, l)
		total = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}

	// An offset past the end returns no rows and so no window count.
	if len(results) == 0 && c.Offset > 0 {
		total, err = e.count(ctx, where, b.args[:filterArgs])
		if err != nil {
			return nil, err
		}
	}

	if len(results) > 0 && (c.IncludeMedia || c.IncludeReviews) {
		if err := e.attachRelated(ctx, results, c.IncludeMedia, c.IncludeReviews); err != nil {
			return nil, err
		}
	}

	return domain.NewSearchResult(results, total, c.Limit, c.Offset), nil
}

func (e *Engine) count(ctx context.Context, where string, args []any) (total int, err error) {
	query := "SELECT count(*) FROM listings l " + where
	err = e.query(ctx, "CountListings", query, args, func(rows pgx.Rows) error {
		return rows.Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return total, nil
}

func scanListing(rows pgx.Rows) (domain.Listing, int, error) {
	var (
		l      domain.Listing
		status string
		total  int
	)
	err := rows.Scan(
		&l.ID, &l.TenantID, &l.OwnerID, &l.SchemaID, &l.Title,
		&l.Description, &l.Slug, &l.Address,
		&l.City, &l.State, &l.Country,
		&l.PostalCode, &l.Latitude, &l.Longitude,
		&status, &l.IsPublic, &l.IsVerified, &l.IsFeatured, &l.Price,
		&l.Currency, &l.CreatedAt, &l.UpdatedAt, &l.PublishedAt,
		&l.Distance, &total,
	)
	if err != nil {
		return domain.Listing{}, 0, fmt.Errorf("scan listing: %w", err)
	}
	l.Status = domain.ListingStatus(status)
	return l, total, nil
}

func (e *Engine) attachRelated(ctx context.Context, results []domain.Listing, media, reviews bool) error {
	ids := make([]uuid.UUID, len(results))
	pos := make(map[uuid.UUID]int, len(results))
	for i := range results {
		ids[i] = results[i].ID
		pos[results[i].ID] = i
	}

	if media {
		for i := range results {
			results[i].Media = []domain.Media{}
		}
		err := e.query(ctx, "ListingMedia", mediaQuery, []any{ids}, func(rows pgx.Rows) error {
			var (
				listingID uuid.UUID
				m         domain.Media
			)
			if err := rows.Scan(&listingID, &m.ID, &m.FileURL, &m.MediaType, &m.MimeType,
				&m.AltText, &m.Width, &m.Height, &m.SortOrder, &m.IsPrimary); err != nil {
				return err
			}
			i := pos[listingID]
			results[i].Media = append(results[i].Media, m)
			return nil
		})
		if err != nil {
			return fmt.Errorf("load media: %w", err)
		}
	}

	if reviews {
		for i := range results {
			results[i].Reviews = &domain.ReviewSummary{}
		}
		err := e.query(ctx, "ListingReviewSummary", reviewQuery, []any{ids}, func(rows pgx.Rows) error {
			var (
				listingID uuid.UUID
				s         domain.ReviewSummary
			)
			if err := rows.Scan(&listingID, &s.Count, &s.Average); err != nil {
				return err
			}
			results[pos[listingID]].Reviews = &s
			return nil
		})
		if err != nil {
			return fmt.Errorf("load review summaries: %w", err)
		}
	}
	return nil
}

const mediaQuery = `
		SELECT listing_id, id, file_url, media_type, mime_type, COALESCE(alt_text, ''),
		       width, height, sort_order, is_primary
		FROM media
		WHERE listing_id = ANY($1) AND is_active
		ORDER BY listing_id, sort_order, id`

const reviewQuery = `
		SELECT listing_id, count(*), avg(rating)::float8
		FROM reviews
		WHERE listing_id = ANY($1) AND status = 'approved'
		GROUP BY listing_id`
