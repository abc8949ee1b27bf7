package elasticsearch

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
)

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// document is the indexed form of a listing. Review data is denormalized
// into review_count and rating so rating sorts need no join.
type document struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	SchemaID    uuid.UUID      `json:"schema_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Slug        string         `json:"slug"`
	Address     string         `json:"address,omitempty"`
	City        string         `json:"city,omitempty"`
	State       string         `json:"state,omitempty"`
	Country     string         `json:"country,omitempty"`
	PostalCode  string         `json:"postal_code,omitempty"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Location    *geoPoint      `json:"location,omitempty"`
	Status      string         `json:"status"`
	IsPublic    bool           `json:"is_public"`
	IsVerified  bool           `json:"is_verified"`
	IsFeatured  bool           `json:"is_featured"`
	Price       *float64       `json:"price,omitempty"`
	Currency    string         `json:"currency"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CategoryIDs []uuid.UUID    `json:"category_ids"`
	TagIDs      []uuid.UUID    `json:"tag_ids"`
	Media       []domain.Media `json:"media,omitempty"`
	ReviewCount int            `json:"review_count"`
	Rating      float64        `json:"rating"`
}

func toDocument(d *domain.ListingDocument) document {
	doc := document{
		ID:          d.ID,
		TenantID:    d.TenantID,
		OwnerID:     d.OwnerID,
		SchemaID:    d.SchemaID,
		Title:       d.Title,
		Description: d.Description,
		Slug:        d.Slug,
		Address:     d.Address,
		City:        d.City,
		State:       d.State,
		Country:     d.Country,
		PostalCode:  d.PostalCode,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		Status:      string(d.Status),
		IsPublic:    d.IsPublic,
		IsVerified:  d.IsVerified,
		IsFeatured:  d.IsFeatured,
		Price:       d.Price,
		Currency:    d.Currency,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		PublishedAt: d.PublishedAt,
		CategoryIDs: nonNil(d.CategoryIDs),
		TagIDs:      nonNil(d.TagIDs),
		Media:       d.Media,
		Rating:      d.Rating(),
	}
	if d.HasCoordinates() {
		doc.Location = &geoPoint{Lat: *d.Latitude, Lon: *d.Longitude}
	}
	if d.Reviews != nil {
		doc.ReviewCount = d.Reviews.Count
	}
	return doc
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// listing projects the document back out, attaching related data only
// when asked.
func (d *document) listing(includeMedia, includeReviews bool) domain.Listing {
	l := domain.Listing{
		ID:          d.ID,
		TenantID:    d.TenantID,
		OwnerID:     d.OwnerID,
		SchemaID:    d.SchemaID,
		Title:       d.Title,
		Description: d.Description,
		Slug:        d.Slug,
		Address:     d.Address,
		City:        d.City,
		State:       d.State,
		Country:     d.Country,
		PostalCode:  d.PostalCode,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		Status:      domain.ListingStatus(d.Status),
		IsPublic:    d.IsPublic,
		IsVerified:  d.IsVerified,
		IsFeatured:  d.IsFeatured,
		Price:       d.Price,
		Currency:    d.Currency,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		PublishedAt: d.PublishedAt,
	}
	if includeMedia {
		l.Media = slices.Clone(d.Media)
		if l.Media == nil {
			l.Media = []domain.Media{}
		}
	}
	if includeReviews {
		s := domain.ReviewSummary{Count: d.ReviewCount}
		if d.ReviewCount > 0 {
			s.Average = d.Rating
		}
		l.Reviews = &s
	}
	return l
}

const (
	kindCategory = "category"
	kindTag      = "tag"
)

type taxonomyDoc struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Kind     string    `json:"kind"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
}
