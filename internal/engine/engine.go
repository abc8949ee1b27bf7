package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
)

// SearchEngine answers tenant-scoped listing queries. Criteria arrive
// validated; implementations apply the eligibility predicate before any
// other and return backend failures wrapped but unclassified.
type SearchEngine interface {
	// Search returns one sorted page of matches and the exact match count.
	Search(ctx context.Context, c *domain.SearchCriteria) (*domain.SearchResult, error)

	// Facets counts matches per active category and tag and summarizes
	// prices under the text and field-filter predicate.
	Facets(ctx context.Context, c *domain.FacetCriteria) (*domain.Facets, error)

	// Suggest returns up to limit titles then category names containing
	// query, case-insensitively.
	Suggest(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]string, error)
}

// Indexer is implemented by backends that keep their own copy of the
// catalog and must be fed changes.
type Indexer interface {
	Index(ctx context.Context, doc *domain.ListingDocument) error
	BulkIndex(ctx context.Context, docs []domain.ListingDocument) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	UpsertCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, tenantID, id uuid.UUID) error
	UpsertTag(ctx context.Context, t *domain.Tag) error
	DeleteTag(ctx context.Context, tenantID, id uuid.UUID) error
}

// Pinger is implemented by backends with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}
