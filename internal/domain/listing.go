package domain

import (
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	StatusDraft     ListingStatus = "draft"
	StatusPending   ListingStatus = "pending"
	StatusPublished ListingStatus = "published"
	StatusArchived  ListingStatus = "archived"
	StatusSuspended ListingStatus = "suspended"
)

// Listing is the searchable view of a catalog listing. Empty strings stand
// for NULL text columns; nil pointers for NULL numbers and timestamps.
type Listing struct {
	ID          uuid.UUID     `json:"id"`
	TenantID    uuid.UUID     `json:"tenant_id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	SchemaID    uuid.UUID     `json:"schema_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Slug        string        `json:"slug"`
	Address     string        `json:"address,omitempty"`
	City        string        `json:"city,omitempty"`
	State       string        `json:"state,omitempty"`
	Country     string        `json:"country,omitempty"`
	PostalCode  string        `json:"postal_code,omitempty"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	Status      ListingStatus `json:"status"`
	IsPublic    bool          `json:"is_public"`
	IsVerified  bool          `json:"is_verified"`
	IsFeatured  bool          `json:"is_featured"`
	Price       *float64      `json:"price,omitempty"`
	Currency    string        `json:"currency"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`

	// Populated on demand by a search.
	Media    []Media        `json:"media,omitempty"`
	Reviews  *ReviewSummary `json:"reviews,omitempty"`
	Distance *float64       `json:"distance,omitempty"`
}

// Eligible reports whether the listing may appear in tenant's results.
func (l *Listing) Eligible(tenantID uuid.UUID) bool {
	return l.TenantID == tenantID && l.IsPublic && l.Status == StatusPublished
}

// HasCoordinates is false when either coordinate is NULL.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

type Media struct {
	ID        uuid.UUID `json:"id"`
	FileURL   string    `json:"file_url"`
	MediaType string    `json:"media_type"`
	MimeType  string    `json:"mime_type,omitempty"`
	AltText   string    `json:"alt_text,omitempty"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	SortOrder int       `json:"sort_order"`
	IsPrimary bool      `json:"is_primary"`
}

// ReviewSummary aggregates a listing's approved reviews. Average is 0 when
// Count is 0.
type ReviewSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// ListingDocument is the denormalized listing index-based backends store:
// the listing with its active media, approved review summary and the IDs
// of the categories and tags it is associated with.
type ListingDocument struct {
	Listing
	CategoryIDs []uuid.UUID `json:"category_ids"`
	TagIDs      []uuid.UUID `json:"tag_ids"`
}

// Rating is the sort key of a listing: its approved average, 0 without reviews.
func (d *ListingDocument) Rating() float64 {
	if d.Reviews == nil || d.Reviews.Count == 0 {
		return 0
	}
	return d.Reviews.Average
}
