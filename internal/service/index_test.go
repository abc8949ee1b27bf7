package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laas-platform/laas/internal/domain"
	apperrors "github.com/laas-platform/laas/pkg/errors"
)

func TestIndexListing_ThenSearch(t *testing.T) {
	cat, svc := newTestCatalog(t)
	require.True(t, svc.CanIndex())

	doc := &domain.ListingDocument{Listing: domain.Listing{
		ID: uuid.New(), TenantID: cat.tenant, Title: "Wireless Mouse",
		Status: domain.StatusPublished, IsPublic: true, CreatedAt: baseTime,
	}}
	require.NoError(t, svc.IndexListing(context.Background(), doc))

	res, err := svc.Search(context.Background(), cat.tenant, &domain.SearchRequest{Query: "mouse"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, doc.ID, res.Results[0].ID)
}

func TestIndexListing_RequiresScope(t *testing.T) {
	_, svc := newTestCatalog(t)

	err := svc.IndexListing(context.Background(), &domain.ListingDocument{Listing: domain.Listing{ID: uuid.New()}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "tenant_id is required")

	err = svc.IndexListing(context.Background(), &domain.ListingDocument{Listing: domain.Listing{TenantID: uuid.New()}})
	assert.Contains(t, err.Error(), "id is required")

	err = svc.IndexListing(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestDeleteListing(t *testing.T) {
	cat, svc := newTestCatalog(t)
	doc := cat.listing(t, "Studio", nil)

	require.NoError(t, svc.DeleteListing(context.Background(), cat.tenant, doc.ID))

	res, err := svc.Search(context.Background(), cat.tenant, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestBulkIndex_SkipsUnscopedDocuments(t *testing.T) {
	cat, svc := newTestCatalog(t)
	docs := []domain.ListingDocument{
		{Listing: domain.Listing{ID: uuid.New(), TenantID: cat.tenant, Title: "A", Status: domain.StatusPublished, IsPublic: true}},
		{Listing: domain.Listing{TenantID: cat.tenant, Title: "no id"}},
		{Listing: domain.Listing{ID: uuid.New(), TenantID: cat.tenant, Title: "B", Status: domain.StatusPublished, IsPublic: true}},
	}

	n, err := svc.BulkIndex(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, cat.eng.Len())

	n, err = svc.BulkIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTaxonomyUpdates(t *testing.T) {
	cat, svc := newTestCatalog(t)
	ctx := context.Background()

	category := &domain.Category{ID: uuid.New(), TenantID: cat.tenant, Name: "Lofts", Slug: "lofts", IsActive: true}
	tag := &domain.Tag{ID: uuid.New(), TenantID: cat.tenant, Name: "Pets", Slug: "pets", IsActive: true}
	require.NoError(t, svc.UpsertCategory(ctx, category))
	require.NoError(t, svc.UpsertTag(ctx, tag))

	doc := cat.listing(t, "Big loft", nil, category.ID)
	doc.TagIDs = []uuid.UUID{tag.ID}
	require.NoError(t, svc.IndexListing(ctx, doc))

	res, err := svc.Search(ctx, cat.tenant, &domain.SearchRequest{Categories: []string{"lofts"}, Tags: []string{"pets"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	require.NoError(t, svc.DeleteCategory(ctx, cat.tenant, category.ID))
	require.NoError(t, svc.DeleteTag(ctx, cat.tenant, tag.ID))

	res, err = svc.Search(ctx, cat.tenant, &domain.SearchRequest{Categories: []string{"lofts"}})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	assert.True(t, errors.Is(svc.UpsertCategory(ctx, &domain.Category{ID: uuid.New()}), apperrors.ErrInvalidInput))
	assert.True(t, errors.Is(svc.UpsertTag(ctx, nil), apperrors.ErrInvalidInput))
	assert.True(t, errors.Is(svc.DeleteTag(ctx, uuid.Nil, tag.ID), apperrors.ErrInvalidInput))
}

func TestIndexOperations_ReadOnlyEngine(t *testing.T) {
	svc := NewSearchService(failingEngine{}, newTestLogger())
	ctx := context.Background()
	tenant, id := uuid.New(), uuid.New()

	assert.False(t, svc.CanIndex())
	assert.ErrorIs(t, svc.IndexListing(ctx, &domain.ListingDocument{}), ErrReadOnlyEngine)
	assert.ErrorIs(t, svc.DeleteListing(ctx, tenant, id), ErrReadOnlyEngine)
	_, err := svc.BulkIndex(ctx, nil)
	assert.ErrorIs(t, err, ErrReadOnlyEngine)
	assert.ErrorIs(t, svc.UpsertCategory(ctx, &domain.Category{}), ErrReadOnlyEngine)
	assert.ErrorIs(t, svc.DeleteCategory(ctx, tenant, id), ErrReadOnlyEngine)
	assert.ErrorIs(t, svc.UpsertTag(ctx, &domain.Tag{}), ErrReadOnlyEngine)
	assert.ErrorIs(t, svc.DeleteTag(ctx, tenant, id), ErrReadOnlyEngine)
	_, err = svc.Reindex(ctx, tenant)
	assert.ErrorIs(t, err, ErrReadOnlyEngine)
}
