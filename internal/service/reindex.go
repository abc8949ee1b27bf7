package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/catalog"
	"github.com/laas-platform/laas/internal/domain"
	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/kafka"
)

// Catalog is the source of truth a reindex reads from.
type Catalog interface {
	Categories(ctx context.Context, tenantID uuid.UUID) ([]domain.Category, error)
	Tags(ctx context.Context, tenantID uuid.UUID) ([]domain.Tag, error)
	Listings(ctx context.Context, tenantID uuid.UUID, page int) (*catalog.ListingPage, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// ErrNoCatalog is returned by Reindex when no catalog source is configured.
var ErrNoCatalog = errors.New("reindex: no catalog source configured")

// TopicReindexed announces a finished tenant reindex.
var TopicReindexed = kafka.Topic("search", "reindexed")

type ReindexResult struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	Listings   int       `json:"listings"`
	Categories int       `json:"categories"`
	Tags       int       `json:"tags"`
	Pages      int       `json:"pages"`
	TookMs     int64     `json:"took_ms"`
}

// StartReindex runs Reindex for tenantID in the background and returns once
// it is accepted. A tenant has at most one reindex in flight. The run keeps
// the values of ctx but not its cancellation; Shutdown cancels it instead.
func (s *SearchService) StartReindex(ctx context.Context, tenantID uuid.UUID) error {
	if s.indexer == nil {
		return ErrReadOnlyEngine
	}
	if s.catalog == nil {
		return ErrNoCatalog
	}
	if tenantID == uuid.Nil {
		return checkScope("reindex", tenantID, uuid.Nil)
	}

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return apperrors.ServiceUnavailable("search service is shutting down")
	}
	if _, busy := s.running[tenantID]; busy {
		s.mu.Unlock()
		return apperrors.Conflict("a reindex is already running for tenant " + tenantID.String())
	}
	s.running[tenantID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.bg, cancel)

	go func() {
		defer func() {
			stop()
			cancel()
			s.mu.Lock()
			delete(s.running, tenantID)
			s.mu.Unlock()
			s.wg.Done()
		}()

		if _, err := s.Reindex(runCtx, tenantID); err != nil {
			s.logger.ErrorContext(runCtx, "background reindex failed",
				slog.String("tenant_id", tenantID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

// Reindexing reports whether a background reindex is in flight for tenantID.
func (s *SearchService) Reindexing(tenantID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[tenantID]
	return ok
}

// Shutdown stops accepting background reindexes, cancels the ones in flight
// and waits for them to return or for ctx to expire.
func (s *SearchService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.stopBg()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("search service shutdown: %w", ctx.Err())
	}
}

// Reindex copies a tenant's taxonomy and every listing page from the catalog
// into the index. Taxonomy goes first so slug filters resolve as soon as
// listings land. Existing documents are replaced, not pruned.
func (s *SearchService) Reindex(ctx context.Context, tenantID uuid.UUID) (*ReindexResult, error) {
	if s.indexer == nil {
		return nil, ErrReadOnlyEngine
	}
	if s.catalog == nil {
		return nil, ErrNoCatalog
	}
	if tenantID == uuid.Nil {
		return nil, checkScope("reindex", tenantID, uuid.Nil)
	}

	start := time.Now()
	res := &ReindexResult{TenantID: tenantID}
	l := s.logger.With(slog.String("tenant_id", tenantID.String()))
	l.InfoContext(ctx, "reindex started")

	categories, err := s.catalog.Categories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("reindex: fetch categories: %w", err)
	}
	for i := range categories {
		if err := s.UpsertCategory(ctx, &categories[i]); err != nil {
			return nil, fmt.Errorf("reindex: %w", err)
		}
	}
	res.Categories = len(categories)

	tags, err := s.catalog.Tags(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("reindex: fetch tags: %w", err)
	}
	for i := range tags {
		if err := s.UpsertTag(ctx, &tags[i]); err != nil {
			return nil, fmt.Errorf("reindex: %w", err)
		}
	}
	res.Tags = len(tags)

	for page := 1; ; page++ {
		p, err := s.catalog.Listings(ctx, tenantID, page)
		if err != nil {
			return nil, fmt.Errorf("reindex: fetch listings page %d: %w", page, err)
		}
		res.Pages++
		n, err := s.BulkIndex(ctx, p.Data)
		if err != nil {
			return nil, fmt.Errorf("reindex: page %d: %w", page, err)
		}
		res.Listings += n
		if len(p.Data) == 0 || page >= p.TotalPages {
			break
		}
	}
	took := time.Since(start)
	res.TookMs = took.Milliseconds()

	l.InfoContext(ctx, "reindex completed",
		slog.Int("listings", res.Listings),
		slog.Int("categories", res.Categories),
		slog.Int("tags", res.Tags),
		slog.Int("pages", res.Pages),
		slog.Duration("took", took),
	)
	s.announce(ctx, res)
	return res, nil
}

// announce is best effort; the index is already consistent when it runs.
func (s *SearchService) announce(ctx context.Context, res *ReindexResult) {
	if s.publisher == nil {
		return
	}
	ev, err := kafka.NewEvent(TopicReindexed, res.TenantID.String(), "tenant", res.TenantID.String(), "search", res)
	if err == nil {
		err = s.publisher.Publish(ctx, TopicReindexed, ev)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish reindex event",
			slog.String("tenant_id", res.TenantID.String()),
			slog.String("error", err.Error()),
		)
	}
}
