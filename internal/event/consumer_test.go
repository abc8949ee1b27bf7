package event

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/engine/memory"
	"github.com/laas-platform/laas/internal/service"
	pkgkafka "github.com/laas-platform/laas/pkg/kafka"
)

func newTestConsumer(t *testing.T) (*Consumer, *memory.Engine, *service.SearchService) {
	t.Helper()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := memory.New()
	svc := service.NewSearchService(eng, l)
	return NewConsumer(svc, l), eng, svc
}

func newEvent(t *testing.T, topic string, tenant, aggregate uuid.UUID, data any) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(topic, tenant.String(), "listing", aggregate.String(), "catalog", data)
	require.NoError(t, err)
	return ev
}

func publishedListing(tenant uuid.UUID, title string, categories ...uuid.UUID) domain.ListingDocument {
	return domain.ListingDocument{
		Listing: domain.Listing{
			ID: uuid.New(), TenantID: tenant, Title: title,
			Status: domain.StatusPublished, IsPublic: true,
			CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		CategoryIDs: categories,
	}
}

func TestHandle_ListingLifecycle(t *testing.T) {
	c, eng, svc := newTestConsumer(t)
	ctx := context.Background()
	tenant := uuid.New()

	doc := publishedListing(tenant, "Canal house")
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicListingCreated, tenant, doc.ID, doc)))
	assert.Equal(t, 1, eng.Len())

	doc.Title = "Canal house, renovated"
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicListingUpdated, tenant, doc.ID, doc)))
	res, err := svc.Search(ctx, tenant, &domain.SearchRequest{Query: "renovated"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	require.NoError(t, c.Handle(ctx, newEvent(t, TopicListingDeleted, tenant, doc.ID, DeletedData{ID: doc.ID})))
	assert.Zero(t, eng.Len())
}

func TestHandle_DeleteFallsBackToAggregateID(t *testing.T) {
	c, eng, _ := newTestConsumer(t)
	ctx := context.Background()
	tenant := uuid.New()

	doc := publishedListing(tenant, "Barn")
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicListingCreated, tenant, doc.ID, doc)))
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicListingDeleted, tenant, doc.ID, map[string]any{})))
	assert.Zero(t, eng.Len())
}

func TestHandle_Taxonomy(t *testing.T) {
	c, _, svc := newTestConsumer(t)
	ctx := context.Background()
	tenant := uuid.New()

	cat := domain.Category{ID: uuid.New(), TenantID: tenant, Name: "Farms", Slug: "farms", IsActive: true}
	tag := domain.Tag{ID: uuid.New(), Name: "Quiet", Slug: "quiet", IsActive: true}
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicCategoryCreated, tenant, cat.ID, cat)))
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicTagCreated, tenant, tag.ID, tag)))

	doc := publishedListing(tenant, "Farmstead", cat.ID)
	doc.TagIDs = []uuid.UUID{tag.ID}
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicListingCreated, tenant, doc.ID, doc)))

	res, err := svc.Search(ctx, tenant, &domain.SearchRequest{Categories: []string{"farms"}, Tags: []string{"quiet"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	cat.IsActive = false
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicCategoryUpdated, tenant, cat.ID, cat)))
	facets, err := svc.Facets(ctx, tenant, nil)
	require.NoError(t, err)
	assert.Empty(t, facets.Categories)
	require.Len(t, facets.Tags, 1)

	require.NoError(t, c.Handle(ctx, newEvent(t, TopicTagDeleted, tenant, tag.ID, DeletedData{ID: tag.ID})))
	require.NoError(t, c.Handle(ctx, newEvent(t, TopicCategoryDeleted, tenant, cat.ID, DeletedData{ID: cat.ID})))
	res, err = svc.Search(ctx, tenant, &domain.SearchRequest{Tags: []string{"quiet"}})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestHandle_RejectsCrossTenantPayload(t *testing.T) {
	c, eng, _ := newTestConsumer(t)
	doc := publishedListing(uuid.New(), "Elsewhere")

	err := c.Handle(context.Background(), newEvent(t, TopicListingCreated, uuid.New(), doc.ID, doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match envelope tenant")
	assert.Zero(t, eng.Len())
}

func TestHandle_InvalidEnvelopes(t *testing.T) {
	c, _, _ := newTestConsumer(t)
	ctx := context.Background()

	ev := newEvent(t, TopicListingCreated, uuid.New(), uuid.New(), map[string]any{})
	ev.TenantID = "acme"
	assert.ErrorContains(t, c.Handle(ctx, ev), "invalid tenant_id")

	ev = newEvent(t, TopicListingCreated, uuid.New(), uuid.New(), map[string]any{})
	ev.Data = []byte(`{"id": 7}`)
	assert.Error(t, c.Handle(ctx, ev))

	ev = newEvent(t, TopicListingCreated, uuid.New(), uuid.New(), map[string]any{"title": "no id"})
	assert.ErrorContains(t, c.Handle(ctx, ev), "id is required")
}

func TestHandle_UnknownTypeIsAcknowledged(t *testing.T) {
	c, _, _ := newTestConsumer(t)
	ev := newEvent(t, "laas.listing.archived", uuid.New(), uuid.New(), map[string]any{})
	assert.NoError(t, c.Handle(context.Background(), ev))
}

func TestHandle_IdempotentRedelivery(t *testing.T) {
	c, eng, _ := newTestConsumer(t)
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Minute), c.Handle, l)

	tenant := uuid.New()
	doc := publishedListing(tenant, "Once")
	created := newEvent(t, TopicListingCreated, tenant, doc.ID, doc)
	require.NoError(t, handler(context.Background(), created))

	deleted := newEvent(t, TopicListingDeleted, tenant, doc.ID, DeletedData{ID: doc.ID})
	require.NoError(t, handler(context.Background(), deleted))
	assert.Zero(t, eng.Len())

	// A redelivered create must not resurrect the listing.
	assert.ErrorIs(t, handler(context.Background(), created), pkgkafka.ErrDuplicate)
	assert.Zero(t, eng.Len())
}

func TestTopics(t *testing.T) {
	topics := Topics()
	assert.Len(t, topics, 9)
	assert.Contains(t, topics, "laas.listing.updated")
	assert.Contains(t, topics, "laas.tag.deleted")
}
