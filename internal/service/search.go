package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/engine"
	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/logger"
	"github.com/laas-platform/laas/pkg/pagination"
	"github.com/laas-platform/laas/pkg/slug"
	"github.com/laas-platform/laas/pkg/tracing"
)

const tracerName = "github.com/laas-platform/laas/internal/service"

// Limits bounds caller-supplied page and suggestion sizes.
type Limits struct {
	DefaultLimit        int
	MaxLimit            int
	DefaultRadius       float64
	DefaultSuggestLimit int
	MaxSuggestLimit     int
}

func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:        20,
		MaxLimit:            100,
		DefaultRadius:       25,
		DefaultSuggestLimit: 10,
		MaxSuggestLimit:     50,
	}
}

// SearchService validates and normalizes search input, runs it on the
// configured engine and classifies failures. It also feeds index updates to
// engines that keep their own copy of the catalog.
type SearchService struct {
	engine    engine.SearchEngine
	indexer   engine.Indexer
	catalog   Catalog
	publisher Publisher
	limits    Limits
	logger    *slog.Logger
	tracer    trace.Tracer

	// Background reindexes derive from bg and are cancelled by Shutdown.
	bg       context.Context
	stopBg   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  map[uuid.UUID]struct{}
	draining bool
}

type Option func(*SearchService)

func WithLimits(l Limits) Option {
	return func(s *SearchService) { s.limits = l }
}

// WithCatalog enables Reindex.
func WithCatalog(c Catalog) Option {
	return func(s *SearchService) { s.catalog = c }
}

// WithPublisher announces completed reindex runs.
func WithPublisher(p Publisher) Option {
	return func(s *SearchService) { s.publisher = p }
}

// NewSearchService creates a search service over eng. When eng also
// implements engine.Indexer the index operations write to it; otherwise
// they fail with ErrReadOnlyEngine.
func NewSearchService(eng engine.SearchEngine, logger *slog.Logger, opts ...Option) *SearchService {
	s := &SearchService{
		engine:  eng,
		limits:  DefaultLimits(),
		logger:  logger,
		tracer:  tracing.Tracer(tracerName),
		running: make(map[uuid.UUID]struct{}),
	}
	s.bg, s.stopBg = context.WithCancel(context.Background())
	if ix, ok := eng.(engine.Indexer); ok {
		s.indexer = ix
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the limits the service validates against.
func (s *SearchService) Limits() Limits {
	return s.limits
}

// Search executes a validated search for tenantID.
func (s *SearchService) Search(ctx context.Context, tenantID uuid.UUID, req *domain.SearchRequest) (_ *domain.SearchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "SearchService.Search",
		trace.WithAttributes(attribute.String("tenant.id", tenantID.String())))
	start := time.Now()
	defer func() {
		observe("search", start, err)
		tracing.End(span, err)
	}()

	c, err := s.searchCriteria(tenantID, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("search.sort", string(c.Sort.Key)),
		attribute.Int("search.limit", c.Limit),
		attribute.Int("search.offset", c.Offset),
	)

	result, err := s.engine.Search(ctx, c)
	if err != nil {
		return nil, s.classify(ctx, "search", err)
	}

	logger.WithContext(ctx, s.logger).DebugContext(ctx, "search executed",
		slog.String("query", c.Text),
		slog.String("sort", string(c.Sort.Key)),
		slog.Int("total", result.Total),
		slog.Int("returned", len(result.Results)),
		slog.Duration("took", time.Since(start)),
	)
	return result, nil
}

// Facets counts matches per category, tag and price for tenantID.
func (s *SearchService) Facets(ctx context.Context, tenantID uuid.UUID, req *domain.FacetRequest) (_ *domain.Facets, err error) {
	ctx, span := s.tracer.Start(ctx, "SearchService.Facets",
		trace.WithAttributes(attribute.String("tenant.id", tenantID.String())))
	start := time.Now()
	defer func() {
		observe("facets", start, err)
		tracing.End(span, err)
	}()

	if tenantID == uuid.Nil {
		return nil, apperrors.InvalidQuery("tenant id is required")
	}
	if req == nil {
		req = &domain.FacetRequest{}
	}
	fields, err := parseFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	facets, err := s.engine.Facets(ctx, &domain.FacetCriteria{
		TenantID: tenantID,
		Text:     strings.TrimSpace(req.Query),
		Fields:   fields,
	})
	if err != nil {
		return nil, s.classify(ctx, "facets", err)
	}
	return facets, nil
}

// Suggest returns autocomplete strings for query. A limit of zero or less
// takes the default; one above the maximum is rejected.
func (s *SearchService) Suggest(ctx context.Context, tenantID uuid.UUID, query string, limit int) (_ []string, err error) {
	ctx, span := s.tracer.Start(ctx, "SearchService.Suggest",
		trace.WithAttributes(attribute.String("tenant.id", tenantID.String())))
	start := time.Now()
	defer func() {
		observe("suggest", start, err)
		tracing.End(span, err)
	}()

	if tenantID == uuid.Nil {
		return nil, apperrors.InvalidQuery("tenant id is required")
	}
	if limit <= 0 {
		limit = s.limits.DefaultSuggestLimit
	}
	if limit > s.limits.MaxSuggestLimit {
		return nil, apperrors.InvalidQuery("limit %d exceeds maximum %d", limit, s.limits.MaxSuggestLimit)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}

	out, err := s.engine.Suggest(ctx, tenantID, query, limit)
	if err != nil {
		return nil, s.classify(ctx, "suggest", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *SearchService) searchCriteria(tenantID uuid.UUID, req *domain.SearchRequest) (*domain.SearchCriteria, error) {
	if tenantID == uuid.Nil {
		return nil, apperrors.InvalidQuery("tenant id is required")
	}
	if req == nil {
		req = &domain.SearchRequest{}
	}

	window := pagination.Window{Limit: req.Limit, Offset: req.Offset}
	if window.Limit == 0 {
		window.Limit = s.limits.DefaultLimit
	}
	if err := window.Validate(s.limits.MaxLimit); err != nil {
		return nil, err
	}

	fields, err := parseFilters(req.Filters)
	if err != nil {
		return nil, err
	}
	geo, err := s.geoFilter(req.Location)
	if err != nil {
		return nil, err
	}

	c := &domain.SearchCriteria{
		TenantID:       tenantID,
		Text:           strings.TrimSpace(req.Query),
		Fields:         fields,
		CategorySlugs:  slug.NormalizeAll(req.Categories),
		TagSlugs:       slug.NormalizeAll(req.Tags),
		Geo:            geo,
		Limit:          window.Limit,
		Offset:         window.Offset,
		IncludeMedia:   req.IncludeMedia,
		IncludeReviews: req.IncludeReviews,
	}
	if pr := req.PriceRange; pr != nil {
		if err := checkPrice(pr); err != nil {
			return nil, err
		}
		c.MinPrice, c.MaxPrice = pr.Min, pr.Max
	}
	c.Sort = domain.ResolveSort(req.SortBy, req.SortOrder, c.Text != "", c.Geo != nil)
	return c, nil
}

// geoFilter validates loc. A location without either coordinate is no
// location; one with only one of them is an error.
func (s *SearchService) geoFilter(loc *domain.Location) (*domain.GeoFilter, error) {
	if loc == nil || (loc.Latitude == nil && loc.Longitude == nil) {
		return nil, nil
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		return nil, apperrors.InvalidQuery("latitude and longitude must be given together")
	}
	lat, lon := *loc.Latitude, *loc.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, apperrors.InvalidQuery("latitude must be between -90 and 90, got %v", lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, apperrors.InvalidQuery("longitude must be between -180 and 180, got %v", lon)
	}
	radius := loc.Radius
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return nil, apperrors.InvalidQuery("radius must be >= 0, got %v", radius)
	}
	if radius == 0 {
		radius = s.limits.DefaultRadius
	}
	return &domain.GeoFilter{Latitude: lat, Longitude: lon, RadiusMiles: radius}, nil
}

func checkPrice(pr *domain.PriceRange) error {
	for _, b := range []*float64{pr.Min, pr.Max} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return apperrors.InvalidQuery("price bounds must be finite numbers")
		}
	}
	if pr.Min != nil && pr.Max != nil && *pr.Min > *pr.Max {
		return apperrors.InvalidQuery("min price %v is greater than max price %v", *pr.Min, *pr.Max)
	}
	return nil
}

func parseFilters(raw map[string]any) ([]domain.FieldFilter, error) {
	fields, err := domain.ParseFilters(raw)
	if err != nil {
		return nil, apperrors.InvalidQuery("%s", err.Error())
	}
	return fields, nil
}

// classify leaves cancellation and already classified errors alone and
// reports everything else as the store being unavailable.
func (s *SearchService) classify(ctx context.Context, op string, err error) error {
	if apperrors.IsCanceled(err) {
		return err
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	logger.WithContext(ctx, s.logger).ErrorContext(ctx, op+" failed",
		slog.String("error", err.Error()),
	)
	return apperrors.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
}
