package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	apperrors "github.com/laas-platform/laas/pkg/errors"
)

// ErrReadOnlyEngine is returned by index operations when the engine reads
// the catalog store directly and has no index to update.
var ErrReadOnlyEngine = errors.New("search engine does not accept index updates")

// CanIndex reports whether index operations reach the engine.
func (s *SearchService) CanIndex() bool {
	return s.indexer != nil
}

func checkScope(kind string, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return apperrors.InvalidInput(kind + ": tenant_id is required")
	}
	if id == uuid.Nil {
		return apperrors.InvalidInput(kind + ": id is required")
	}
	return nil
}

// IndexListing adds or replaces one listing document.
func (s *SearchService) IndexListing(ctx context.Context, doc *domain.ListingDocument) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if doc == nil {
		return apperrors.InvalidInput("listing: document is required")
	}
	if err := checkScope("listing", doc.TenantID, doc.ID); err != nil {
		return err
	}

	if err := s.indexer.Index(ctx, doc); err != nil {
		return fmt.Errorf("index listing %s: %w", doc.ID, err)
	}
	indexedDocuments.WithLabelValues("index").Inc()

	s.logger.InfoContext(ctx, "listing indexed",
		slog.String("listing_id", doc.ID.String()),
		slog.String("tenant_id", doc.TenantID.String()),
		slog.String("status", string(doc.Status)),
	)
	return nil
}

// BulkIndex writes docs in one batch, skipping documents without an ID or
// tenant. It returns how many documents were sent.
func (s *SearchService) BulkIndex(ctx context.Context, docs []domain.ListingDocument) (int, error) {
	if s.indexer == nil {
		return 0, ErrReadOnlyEngine
	}

	batch := make([]domain.ListingDocument, 0, len(docs))
	for _, d := range docs {
		if checkScope("listing", d.TenantID, d.ID) != nil {
			s.logger.WarnContext(ctx, "skipping listing without id or tenant in bulk index")
			continue
		}
		batch = append(batch, d)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := s.indexer.BulkIndex(ctx, batch); err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	indexedDocuments.WithLabelValues("index").Add(float64(len(batch)))

	s.logger.InfoContext(ctx, "bulk index completed", slog.Int("count", len(batch)))
	return len(batch), nil
}

// DeleteListing removes a listing from tenantID's index.
func (s *SearchService) DeleteListing(ctx context.Context, tenantID, id uuid.UUID) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if err := checkScope("listing", tenantID, id); err != nil {
		return err
	}

	if err := s.indexer.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	indexedDocuments.WithLabelValues("delete").Inc()

	s.logger.InfoContext(ctx, "listing removed from index",
		slog.String("listing_id", id.String()),
		slog.String("tenant_id", tenantID.String()),
	)
	return nil
}

func (s *SearchService) UpsertCategory(ctx context.Context, c *domain.Category) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if c == nil {
		return apperrors.InvalidInput("category: body is required")
	}
	if err := checkScope("category", c.TenantID, c.ID); err != nil {
		return err
	}
	if err := s.indexer.UpsertCategory(ctx, c); err != nil {
		return fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	s.logger.InfoContext(ctx, "category indexed",
		slog.String("category_id", c.ID.String()),
		slog.String("slug", c.Slug),
		slog.Bool("active", c.IsActive),
	)
	return nil
}

func (s *SearchService) DeleteCategory(ctx context.Context, tenantID, id uuid.UUID) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if err := checkScope("category", tenantID, id); err != nil {
		return err
	}
	if err := s.indexer.DeleteCategory(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "category removed from index", slog.String("category_id", id.String()))
	return nil
}

func (s *SearchService) UpsertTag(ctx context.Context, t *domain.Tag) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if t == nil {
		return apperrors.InvalidInput("tag: body is required")
	}
	if err := checkScope("tag", t.TenantID, t.ID); err != nil {
		return err
	}
	if err := s.indexer.UpsertTag(ctx, t); err != nil {
		return fmt.Errorf("upsert tag %s: %w", t.ID, err)
	}
	s.logger.InfoContext(ctx, "tag indexed",
		slog.String("tag_id", t.ID.String()),
		slog.String("slug", t.Slug),
	)
	return nil
}

func (s *SearchService) DeleteTag(ctx context.Context, tenantID, id uuid.UUID) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if err := checkScope("tag", tenantID, id); err != nil {
		return err
	}
	if err := s.indexer.DeleteTag(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete tag %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "tag removed from index", slog.String("tag_id", id.String()))
	return nil
}
