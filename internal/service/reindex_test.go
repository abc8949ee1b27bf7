package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laas-platform/laas/internal/catalog"
	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/engine/memory"
	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/httpclient"
	"github.com/laas-platform/laas/pkg/kafka"
)

// fakeCatalog serves a tenant's taxonomy and listings in pages of perPage.
func fakeCatalog(t *testing.T, tenant uuid.UUID, categories []domain.Category, listings []domain.ListingDocument, perPage int) *catalog.Client {
	t.Helper()
	base := "/api/v1/tenants/" + tenant.String()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case base + "/categories":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": categories})
		case base + "/tags":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []domain.Tag{}})
		case base + "/listings":
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			totalPages := (len(listings) + perPage - 1) / perPage
			start := min((page-1)*perPage, len(listings))
			end := min(start+perPage, len(listings))
			_ = json.NewEncoder(w).Encode(catalog.ListingPage{
				Data:       listings[start:end],
				Page:       page,
				PerPage:    perPage,
				TotalCount: len(listings),
				TotalPages: totalPages,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"no such tenant"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	hc := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 2})
	return catalog.NewClient(srv.URL, hc, perPage)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev *kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
	return p.err
}

func TestReindex_CopiesCatalogIntoIndex(t *testing.T) {
	tenant := uuid.New()
	lofts := domain.Category{ID: uuid.New(), TenantID: tenant, Name: "Lofts", Slug: "lofts", IsActive: true}

	var listings []domain.ListingDocument
	for i := 0; i < 5; i++ {
		listings = append(listings, domain.ListingDocument{
			Listing: domain.Listing{
				ID: uuid.New(), TenantID: tenant, Title: "Loft " + strconv.Itoa(i),
				Status: domain.StatusPublished, IsPublic: true,
				CreatedAt: baseTime.Add(time.Duration(i) * time.Hour),
			},
			CategoryIDs: []uuid.UUID{lofts.ID},
		})
	}

	eng := memory.New()
	pub := &recordingPublisher{}
	svc := NewSearchService(eng, newTestLogger(),
		WithCatalog(fakeCatalog(t, tenant, []domain.Category{lofts}, listings, 2)),
		WithPublisher(pub),
	)

	res, err := svc.Reindex(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Listings)
	assert.Equal(t, 1, res.Categories)
	assert.Zero(t, res.Tags)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 5, eng.Len())

	found, err := svc.Search(context.Background(), tenant, &domain.SearchRequest{Categories: []string{"lofts"}})
	require.NoError(t, err)
	assert.Equal(t, 5, found.Total)

	require.Len(t, pub.events, 1)
	assert.Equal(t, TopicReindexed, pub.topics[0])
	assert.Equal(t, "laas.search.reindexed", pub.events[0].EventType)
	assert.Equal(t, tenant.String(), pub.events[0].TenantID)

	var payload ReindexResult
	require.NoError(t, pub.events[0].UnmarshalData(&payload))
	assert.Equal(t, 5, payload.Listings)
}

func TestReindex_EmptyCatalog(t *testing.T) {
	tenant := uuid.New()
	svc := NewSearchService(memory.New(), newTestLogger(),
		WithCatalog(fakeCatalog(t, tenant, nil, nil, 10)))

	res, err := svc.Reindex(context.Background(), tenant)
	require.NoError(t, err)
	assert.Zero(t, res.Listings)
	assert.Equal(t, 1, res.Pages)
}

func TestReindex_CatalogErrorAborts(t *testing.T) {
	svc := NewSearchService(memory.New(), newTestLogger(),
		WithCatalog(fakeCatalog(t, uuid.New(), nil, nil, 10)))

	_, err := svc.Reindex(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch categories")
}

func TestReindex_PublishFailureIsNotFatal(t *testing.T) {
	tenant := uuid.New()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewSearchService(memory.New(), newTestLogger(),
		WithCatalog(fakeCatalog(t, tenant, nil, nil, 10)),
		WithPublisher(pub))

	_, err := svc.Reindex(context.Background(), tenant)
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestReindex_RequiresCatalogAndTenant(t *testing.T) {
	svc := NewSearchService(memory.New(), newTestLogger())
	_, err := svc.Reindex(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoCatalog)

	svc = NewSearchService(memory.New(), newTestLogger(),
		WithCatalog(fakeCatalog(t, uuid.New(), nil, nil, 10)))
	_, err = svc.Reindex(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")
}

// blockingCatalog holds a reindex in its first fetch until release closes or,
// when honorCancel is set, until the run's context is cancelled.
type blockingCatalog struct {
	started     chan struct{}
	release     chan struct{}
	honorCancel bool
	returned    atomic.Bool
}

func newBlockingCatalog(honorCancel bool) *blockingCatalog {
	return &blockingCatalog{
		started:     make(chan struct{}, 1),
		release:     make(chan struct{}),
		honorCancel: honorCancel,
	}
}

func (c *blockingCatalog) Categories(ctx context.Context, _ uuid.UUID) ([]domain.Category, error) {
	c.started <- struct{}{}
	defer c.returned.Store(true)
	if c.honorCancel {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.release:
			return nil, nil
		}
	}
	<-c.release
	return nil, nil
}

func (c *blockingCatalog) Tags(context.Context, uuid.UUID) ([]domain.Tag, error) {
	return nil, nil
}

func (c *blockingCatalog) Listings(context.Context, uuid.UUID, int) (*catalog.ListingPage, error) {
	return &catalog.ListingPage{Page: 1, TotalPages: 1}, nil
}

func waitStarted(t *testing.T, c *blockingCatalog) {
	t.Helper()
	select {
	case <-c.started:
	case <-time.After(2 * time.Second):
		t.Fatal("reindex did not start")
	}
}

func TestStartReindex_ShutdownWaitsForInFlightRun(t *testing.T) {
	tenant := uuid.New()
	cat := newBlockingCatalog(true)
	svc := NewSearchService(memory.New(), newTestLogger(), WithCatalog(cat))

	require.NoError(t, svc.StartReindex(context.Background(), tenant))
	waitStarted(t, cat)
	assert.True(t, svc.Reindexing(tenant))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	assert.True(t, cat.returned.Load(), "shutdown returned before the reindex did")
	assert.False(t, svc.Reindexing(tenant))

	err := svc.StartReindex(context.Background(), tenant)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestStartReindex_RejectsConcurrentRunForSameTenant(t *testing.T) {
	tenant := uuid.New()
	cat := newBlockingCatalog(false)
	svc := NewSearchService(memory.New(), newTestLogger(), WithCatalog(cat))

	require.NoError(t, svc.StartReindex(context.Background(), tenant))
	waitStarted(t, cat)

	err := svc.StartReindex(context.Background(), tenant)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	close(cat.release)
	assert.Eventually(t, func() bool { return !svc.Reindexing(tenant) },
		2*time.Second, 10*time.Millisecond)

	// The slot frees once the first run ends.
	cat.release = make(chan struct{})
	require.NoError(t, svc.StartReindex(context.Background(), tenant))
	waitStarted(t, cat)
	close(cat.release)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestShutdown_GivesUpWhenRunIgnoresCancellation(t *testing.T) {
	cat := newBlockingCatalog(false)
	svc := NewSearchService(memory.New(), newTestLogger(), WithCatalog(cat))

	require.NoError(t, svc.StartReindex(context.Background(), uuid.New()))
	waitStarted(t, cat)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := svc.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(cat.release)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestStartReindex_OutlivesRequestContext(t *testing.T) {
	tenant := uuid.New()
	pub := &recordingPublisher{}
	svc := NewSearchService(memory.New(), newTestLogger(),
		WithCatalog(fakeCatalog(t, tenant, nil, nil, 10)),
		WithPublisher(pub))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.StartReindex(ctx, tenant))
	cancel()

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestStartReindex_Unsupported(t *testing.T) {
	svc := NewSearchService(memory.New(), newTestLogger())
	assert.ErrorIs(t, svc.StartReindex(context.Background(), uuid.New()), ErrNoCatalog)

	svc = NewSearchService(memory.New(), newTestLogger(), WithCatalog(newBlockingCatalog(false)))
	err := svc.StartReindex(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")
}
