package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is the subset of *pgxpool.Pool the writer needs.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Summary counts the rows written by one run.
type Summary struct {
	Categories int
	Tags       int
	Listings   int
	Media      int
	Reviews    int
}

type Writer struct {
	db     TxBeginner
	logger *slog.Logger
}

func NewWriter(db TxBeginner, logger *slog.Logger) *Writer {
	return &Writer{db: db, logger: logger}
}

const (
	upsertCategory = `
		INSERT INTO categories (id, tenant_id, parent_id, name, slug, level, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id, name = EXCLUDED.name, slug = EXCLUDED.slug,
			level = EXCLUDED.level, sort_order = EXCLUDED.sort_order, is_active = EXCLUDED.is_active,
			updated_at = now()`

	upsertTag = `
		INSERT INTO tags (id, tenant_id, name, slug, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, slug = EXCLUDED.slug, is_active = EXCLUDED.is_active,
			updated_at = now()`

	upsertListing = `
		INSERT INTO listings (
			id, tenant_id, owner_id, schema_id, title, description, slug, address,
			city, state, country, postal_code, latitude, longitude, status,
			is_verified, is_featured, is_public, price, currency, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description, slug = EXCLUDED.slug,
			address = EXCLUDED.address, city = EXCLUDED.city, state = EXCLUDED.state,
			country = EXCLUDED.country, postal_code = EXCLUDED.postal_code,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, status = EXCLUDED.status,
			is_verified = EXCLUDED.is_verified, is_featured = EXCLUDED.is_featured,
			is_public = EXCLUDED.is_public, price = EXCLUDED.price, currency = EXCLUDED.currency,
			published_at = EXCLUDED.published_at, updated_at = now()`

	clearLinks = `
		WITH c AS (DELETE FROM listing_categories WHERE listing_id = $1),
		     t AS (DELETE FROM listing_tags WHERE listing_id = $1),
		     m AS (DELETE FROM media WHERE listing_id = $1)
		DELETE FROM reviews WHERE listing_id = $1`

	insertListingCategory = `INSERT INTO listing_categories (listing_id, category_id) VALUES ($1, $2)`
	insertListingTag      = `INSERT INTO listing_tags (listing_id, tag_id) VALUES ($1, $2)`

	insertMedia = `
		INSERT INTO media (id, listing_id, file_url, mime_type, media_type, alt_text, sort_order, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertReview = `
		INSERT INTO reviews (id, listing_id, user_id, rating, status)
		VALUES ($1, $2, $3, $4, $5)`
)

// Write stores ds in one transaction. Links, media and reviews of each
// listing are replaced, so a rerun converges on ds.
func (w *Writer) Write(ctx context.Context, ds *Dataset) (_ *Summary, err error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	sum := &Summary{}

	for _, c := range ds.Categories {
		if _, err := tx.Exec(ctx, upsertCategory,
			c.ID, c.TenantID, c.ParentID, c.Name, c.Slug, c.Level, c.SortOrder, c.IsActive,
		); err != nil {
			return nil, fmt.Errorf("category %q: %w", c.Slug, err)
		}
		sum.Categories++
	}

	for _, t := range ds.Tags {
		if _, err := tx.Exec(ctx, upsertTag, t.ID, t.TenantID, t.Name, t.Slug, t.IsActive); err != nil {
			return nil, fmt.Errorf("tag %q: %w", t.Slug, err)
		}
		sum.Tags++
	}

	for i := range ds.Listings {
		if err := writeListing(ctx, tx, &ds.Listings[i], sum); err != nil {
			return nil, fmt.Errorf("listing %q: %w", ds.Listings[i].Slug, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit seed transaction: %w", err)
	}

	w.logger.InfoContext(ctx, "seed data written",
		slog.Int("categories", sum.Categories),
		slog.Int("tags", sum.Tags),
		slog.Int("listings", sum.Listings),
		slog.Int("media", sum.Media),
		slog.Int("reviews", sum.Reviews),
	)
	return sum, nil
}

func writeListing(ctx context.Context, tx pgx.Tx, row *Row, sum *Summary) error {
	l := &row.Listing
	if _, err := tx.Exec(ctx, upsertListing,
		l.ID, l.TenantID, l.OwnerID, l.SchemaID, l.Title, l.Description, l.Slug, l.Address,
		l.City, l.State, l.Country, l.PostalCode, l.Latitude, l.Longitude, string(l.Status),
		l.IsVerified, l.IsFeatured, l.IsPublic, l.Price, l.Currency, l.CreatedAt, l.PublishedAt,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, clearLinks, l.ID); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}

	for _, cid := range row.CategoryIDs {
		if _, err := tx.Exec(ctx, insertListingCategory, l.ID, cid); err != nil {
			return fmt.Errorf("link category: %w", err)
		}
	}
	for _, tid := range row.TagIDs {
		if _, err := tx.Exec(ctx, insertListingTag, l.ID, tid); err != nil {
			return fmt.Errorf("link tag: %w", err)
		}
	}
	for _, m := range row.Media {
		if _, err := tx.Exec(ctx, insertMedia,
			m.ID, l.ID, m.FileURL, m.MimeType, m.MediaType, m.AltText, m.SortOrder, m.IsPrimary,
		); err != nil {
			return fmt.Errorf("media: %w", err)
		}
		sum.Media++
	}
	for _, r := range row.Reviews {
		status := "pending"
		if r.Approved {
			status = "approved"
		}
		if _, err := tx.Exec(ctx, insertReview, r.ID, l.ID, r.UserID, r.Rating, status); err != nil {
			return fmt.Errorf("review: %w", err)
		}
		sum.Reviews++
	}

	sum.Listings++
	return nil
}
