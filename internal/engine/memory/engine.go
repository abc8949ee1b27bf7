package memory

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/geo"
	"github.com/laas-platform/laas/pkg/pagination"
)

type idSet map[uuid.UUID]struct{}

type slugKey struct {
	tenant uuid.UUID
	slug   string
}

// Engine keeps listing documents in memory with inverted indexes from
// tenant, category and tag to listing IDs, so category/tag OR filters are a
// set union rather than a scan. Reads run in parallel; writes are exclusive.
// It has no text ranking: relevance sorts fall back to newest first.
type Engine struct {
	mu sync.RWMutex

	listings   map[uuid.UUID]*domain.ListingDocument
	byTenant   map[uuid.UUID]idSet
	byCategory map[uuid.UUID]idSet
	byTag      map[uuid.UUID]idSet

	categories    map[uuid.UUID]*domain.Category
	categorySlugs map[slugKey]uuid.UUID
	tags          map[uuid.UUID]*domain.Tag
	tagSlugs      map[slugKey]uuid.UUID
}

func New() *Engine {
	return &Engine{
		listings:      make(map[uuid.UUID]*domain.ListingDocument),
		byTenant:      make(map[uuid.UUID]idSet),
		byCategory:    make(map[uuid.UUID]idSet),
		byTag:         make(map[uuid.UUID]idSet),
		categories:    make(map[uuid.UUID]*domain.Category),
		categorySlugs: make(map[slugKey]uuid.UUID),
		tags:          make(map[uuid.UUID]*domain.Tag),
		tagSlugs:      make(map[slugKey]uuid.UUID),
	}
}

func add(index map[uuid.UUID]idSet, key, id uuid.UUID) {
	s, ok := index[key]
	if !ok {
		s = make(idSet)
		index[key] = s
	}
	s[id] = struct{}{}
}

func remove(index map[uuid.UUID]idSet, key, id uuid.UUID) {
	if s, ok := index[key]; ok {
		delete(s, id)
		if len(s) == 0 {
			delete(index, key)
		}
	}
}

// ---------------------------------------------------------------------------
// Indexer
// ---------------------------------------------------------------------------

func (e *Engine) Index(_ context.Context, doc *domain.ListingDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(doc)
	return nil
}

func (e *Engine) BulkIndex(_ context.Context, docs []domain.ListingDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range docs {
		e.put(&docs[i])
	}
	return nil
}

func (e *Engine) put(doc *domain.ListingDocument) {
	if old, ok := e.listings[doc.ID]; ok {
		e.unlink(old)
	}
	stored := *doc
	stored.CategoryIDs = slices.Clone(doc.CategoryIDs)
	stored.TagIDs = slices.Clone(doc.TagIDs)
	stored.Media = slices.Clone(doc.Media)
	if doc.Reviews != nil {
		r := *doc.Reviews
		stored.Reviews = &r
	}
	stored.Distance = nil

	e.listings[stored.ID] = &stored
	add(e.byTenant, stored.TenantID, stored.ID)
	for _, c := range stored.CategoryIDs {
		add(e.byCategory, c, stored.ID)
	}
	for _, t := range stored.TagIDs {
		add(e.byTag, t, stored.ID)
	}
}

func (e *Engine) unlink(doc *domain.ListingDocument) {
	remove(e.byTenant, doc.TenantID, doc.ID)
	for _, c := range doc.CategoryIDs {
		remove(e.byCategory, c, doc.ID)
	}
	for _, t := range doc.TagIDs {
		remove(e.byTag, t, doc.ID)
	}
	delete(e.listings, doc.ID)
}

// Delete removes a listing. Deleting a missing or foreign listing is a no-op.
func (e *Engine) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if doc, ok := e.listings[id]; ok && doc.TenantID == tenantID {
		e.unlink(doc)
	}
	return nil
}

func (e *Engine) UpsertCategory(_ context.Context, c *domain.Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.categories[c.ID]; ok {
		delete(e.categorySlugs, slugKey{old.TenantID, old.Slug})
	}
	stored := *c
	e.categories[c.ID] = &stored
	e.categorySlugs[slugKey{c.TenantID, c.Slug}] = c.ID
	return nil
}

// DeleteCategory forgets the category. Listings still carrying its ID no
// longer match it or count toward it.
func (e *Engine) DeleteCategory(_ context.Context, tenantID, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.categories[id]; ok && old.TenantID == tenantID {
		delete(e.categorySlugs, slugKey{old.TenantID, old.Slug})
		delete(e.categories, id)
	}
	return nil
}

func (e *Engine) UpsertTag(_ context.Context, t *domain.Tag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.tags[t.ID]; ok {
		delete(e.tagSlugs, slugKey{old.TenantID, old.Slug})
	}
	stored := *t
	e.tags[t.ID] = &stored
	e.tagSlugs[slugKey{t.TenantID, t.Slug}] = t.ID
	return nil
}

func (e *Engine) DeleteTag(_ context.Context, tenantID, id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.tags[id]; ok && old.TenantID == tenantID {
		delete(e.tagSlugs, slugKey{old.TenantID, old.Slug})
		delete(e.tags, id)
	}
	return nil
}

// Len returns the number of indexed listings across all tenants.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listings)
}

// ---------------------------------------------------------------------------
// SearchEngine
// ---------------------------------------------------------------------------

type hit struct {
	doc      *domain.ListingDocument
	distance *float64
}

func (e *Engine) Search(ctx context.Context, c *domain.SearchCriteria) (*domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	categoryAllowed := e.resolve(c.TenantID, c.CategorySlugs, e.categorySlugs, e.byCategory)
	tagAllowed := e.resolve(c.TenantID, c.TagSlugs, e.tagSlugs, e.byTag)
	text := strings.ToLower(c.Text)

	var center geo.Point
	var box geo.Box
	if c.Geo != nil {
		center = geo.Point{Lat: c.Geo.Latitude, Lon: c.Geo.Longitude}
		box = geo.BoundingBox(center, c.Geo.RadiusMiles)
	}

	hits := make([]hit, 0)
	for id := range e.byTenant[c.TenantID] {
		doc := e.listings[id]
		if !doc.Eligible(c.TenantID) {
			continue
		}
		if text != "" && !matchesText(doc, text) {
			continue
		}
		if categoryAllowed != nil {
			if _, ok := categoryAllowed[id]; !ok {
				continue
			}
		}
		if tagAllowed != nil {
			if _, ok := tagAllowed[id]; !ok {
				continue
			}
		}

		h := hit{doc: doc}
		if c.Geo != nil {
			if !doc.HasCoordinates() {
				continue
			}
			p := geo.Point{Lat: *doc.Latitude, Lon: *doc.Longitude}
			if !box.Contains(p) {
				continue
			}
			d := geo.Distance(center, p)
			if d > c.Geo.RadiusMiles {
				continue
			}
			h.distance = &d
		}

		if c.HasPriceBound() && !inPriceRange(doc.Price, c.MinPrice, c.MaxPrice) {
			continue
		}
		if !matchesFields(&doc.Listing, c.Fields) {
			continue
		}
		hits = append(hits, h)
	}

	slices.SortFunc(hits, comparator(c.Sort))

	window := pagination.Window{Limit: c.Limit, Offset: c.Offset}
	start, end := window.Bounds(len(hits))
	results := make([]domain.Listing, 0, end-start)
	for _, h := range hits[start:end] {
		results = append(results, project(h, c.IncludeMedia, c.IncludeReviews))
	}

	return domain.NewSearchResult(results, len(hits), c.Limit, c.Offset), nil
}

// resolve maps tenant slugs to the union of their listing sets. It returns
// nil when no slugs were requested and an empty set when none resolve.
func (e *Engine) resolve(tenant uuid.UUID, slugs []string, bySlug map[slugKey]uuid.UUID, index map[uuid.UUID]idSet) idSet {
	if len(slugs) == 0 {
		return nil
	}
	out := make(idSet)
	for _, s := range slugs {
		id, ok := bySlug[slugKey{tenant, s}]
		if !ok {
			continue
		}
		for listingID := range index[id] {
			out[listingID] = struct{}{}
		}
	}
	return out
}

func matchesText(doc *domain.ListingDocument, lowered string) bool {
	for _, field := range []string{doc.Title, doc.Description, doc.Address, doc.City, doc.State} {
		if strings.Contains(strings.ToLower(field), lowered) {
			return true
		}
	}
	return false
}

func inPriceRange(price, minPrice, maxPrice *float64) bool {
	if price == nil {
		return false
	}
	if minPrice != nil && *price < *minPrice {
		return false
	}
	if maxPrice != nil && *price > *maxPrice {
		return false
	}
	return true
}

func matchesFields(l *domain.Listing, filters []domain.FieldFilter) bool {
	for _, f := range filters {
		if !f.Matches(l) {
			return false
		}
	}
	return true
}

// project copies the listing out of the store with only the requested
// related data attached.
func project(h hit, includeMedia, includeReviews bool) domain.Listing {
	l := h.doc.Listing
	l.Media = nil
	l.Reviews = nil
	l.Distance = h.distance
	if includeMedia {
		l.Media = slices.Clone(h.doc.Media)
		if l.Media == nil {
			l.Media = []domain.Media{}
		}
	}
	if includeReviews {
		summary := domain.ReviewSummary{}
		if h.doc.Reviews != nil {
			summary = *h.doc.Reviews
		}
		l.Reviews = &summary
	}
	return l
}

// nullsLast orders nil after any value regardless of direction.
func nullsLast[T any](a, b *T, desc bool, compare func(x, y T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if desc {
		return compare(*b, *a)
	}
	return compare(*a, *b)
}

func directed(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}

func comparator(s domain.Sort) func(a, b hit) int {
	primary := func(a, b hit) int {
		switch s.Key {
		case domain.SortDistance:
			return nullsLast(a.distance, b.distance, false, cmp.Compare[float64])
		case domain.SortRating:
			return cmp.Compare(b.doc.Rating(), a.doc.Rating())
		case domain.SortPublishedAt:
			return nullsLast(a.doc.PublishedAt, b.doc.PublishedAt, s.Desc, time.Time.Compare)
		case domain.SortUpdatedAt:
			return nullsLast(a.doc.UpdatedAt, b.doc.UpdatedAt, s.Desc, time.Time.Compare)
		case domain.SortTitle:
			return directed(strings.Compare(a.doc.Title, b.doc.Title), s.Desc)
		case domain.SortPrice:
			return nullsLast(a.doc.Price, b.doc.Price, s.Desc, cmp.Compare[float64])
		case domain.SortRelevance:
			return b.doc.CreatedAt.Compare(a.doc.CreatedAt)
		default:
			return directed(a.doc.CreatedAt.Compare(b.doc.CreatedAt), s.Desc)
		}
	}
	return func(a, b hit) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		return bytes.Compare(a.doc.ID[:], b.doc.ID[:])
	}
}
