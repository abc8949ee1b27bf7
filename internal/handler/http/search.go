package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/service"
	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/httputil"
	"github.com/laas-platform/laas/pkg/middleware"
	"github.com/laas-platform/laas/pkg/pagination"
	"github.com/laas-platform/laas/pkg/validator"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SearchBody is the JSON body of POST /api/v1/search. Filters accepts any
// JSON scalar or array per key; keys outside the filter allow-list are
// ignored.
type SearchBody struct {
	Query          string             `json:"query" validate:"max=500"`
	Filters        map[string]any     `json:"filters" validate:"max=32"`
	Categories     []string           `json:"categories" validate:"max=100,dive,max=200"`
	Tags           []string           `json:"tags" validate:"max=100,dive,max=200"`
	Location       *domain.Location   `json:"location"`
	PriceRange     *domain.PriceRange `json:"price_range"`
	SortBy         string             `json:"sort_by" validate:"max=64"`
	SortOrder      string             `json:"sort_order" validate:"max=16"`
	Limit          *int               `json:"limit"`
	Offset         int                `json:"offset"`
	IncludeMedia   *bool              `json:"include_media"`
	IncludeReviews bool               `json:"include_reviews"`
}

func (b *SearchBody) request() (*domain.SearchRequest, error) {
	req := &domain.SearchRequest{
		Query:          b.Query,
		Filters:        b.Filters,
		Categories:     b.Categories,
		Tags:           b.Tags,
		Location:       b.Location,
		PriceRange:     b.PriceRange,
		SortBy:         b.SortBy,
		SortOrder:      b.SortOrder,
		Offset:         b.Offset,
		IncludeMedia:   true,
		IncludeReviews: b.IncludeReviews,
	}
	if b.Limit != nil {
		if *b.Limit <= 0 {
			return nil, apperrors.InvalidQuery("limit must be positive, got %d", *b.Limit)
		}
		req.Limit = *b.Limit
	}
	if b.IncludeMedia != nil {
		req.IncludeMedia = *b.IncludeMedia
	}
	return req, nil
}

// tenant returns the tenant the Tenant middleware put in the context.
func (h *SearchHandler) tenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("tenant identification required"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// --- Handlers ---

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	req, err := searchRequestFromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), tenantID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// SearchPost handles POST /api/v1/search
func (h *SearchHandler) SearchPost(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var body SearchBody
	if err := validator.DecodeAndValidate(r, &body); err != nil {
		writeBodyError(w, r, err, h.logger)
		return
	}
	req, err := body.request()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), tenantID, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Facets handles GET /api/v1/search/facets
func (h *SearchHandler) Facets(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	facets, err := h.service.Facets(r.Context(), tenantID, &domain.FacetRequest{
		Query:   q.Get("q"),
		Filters: filtersFromQuery(q),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: facets})
}

// Suggest handles GET /api/v1/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidQuery("limit must be an integer, got %q", v), h.logger)
			return
		}
		limit = n
	}

	suggestions, err := h.service.Suggest(r.Context(), tenantID, r.URL.Query().Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": suggestions}})
}

// --- Query string parsing ---

// searchRequestFromQuery reads:
//
//	q, categories, tags, lat, lon, radius, min_price, max_price, sort_by,
//	sort_order, limit, offset, include_media, include_reviews
//
// plus one parameter per filterable field (e.g. city=Austin&is_verified=true).
// categories and tags may repeat or be comma separated.
func searchRequestFromQuery(q url.Values) (*domain.SearchRequest, error) {
	window, err := pagination.FromQuery(q, 0)
	if err != nil {
		return nil, err
	}

	req := &domain.SearchRequest{
		Query:      q.Get("q"),
		Filters:    filtersFromQuery(q),
		Categories: listParam(q, "categories"),
		Tags:       listParam(q, "tags"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
		Limit:      window.Limit,
		Offset:     window.Offset,
	}

	if req.IncludeMedia, err = boolParam(q, "include_media", true); err != nil {
		return nil, err
	}
	if req.IncludeReviews, err = boolParam(q, "include_reviews", false); err != nil {
		return nil, err
	}

	lat, err := floatParam(q, "lat")
	if err != nil {
		return nil, err
	}
	lon, err := floatParam(q, "lon")
	if err != nil {
		return nil, err
	}
	radius, err := floatParam(q, "radius")
	if err != nil {
		return nil, err
	}
	if lat != nil || lon != nil || radius != nil {
		req.Location = &domain.Location{Latitude: lat, Longitude: lon}
		if radius != nil {
			req.Location.Radius = *radius
		}
	}

	minPrice, err := floatParam(q, "min_price")
	if err != nil {
		return nil, err
	}
	maxPrice, err := floatParam(q, "max_price")
	if err != nil {
		return nil, err
	}
	if minPrice != nil || maxPrice != nil {
		req.PriceRange = &domain.PriceRange{Min: minPrice, Max: maxPrice}
	}

	return req, nil
}

// filtersFromQuery picks the allow-listed filter keys out of q. A repeated
// key becomes a set-membership filter.
func filtersFromQuery(q url.Values) map[string]any {
	var out map[string]any
	for _, key := range domain.FilterKeys() {
		values := q[key]
		if len(values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		if len(values) == 1 {
			out[key] = values[0]
		} else {
			out[key] = values
		}
	}
	return out
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func floatParam(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.InvalidQuery("%s must be a number, got %q", key, raw)
	}
	return &v, nil
}

func boolParam(q url.Values, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.InvalidQuery("%s must be a boolean, got %q", key, raw)
	}
	return v, nil
}

// writeBodyError reports an undecodable body as INVALID_INPUT and a body
// that fails validation with per-field messages.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error, l *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, valErr, l)
		return
	}
	httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), l)
}
