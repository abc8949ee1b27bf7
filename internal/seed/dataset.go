// Package seed generates a deterministic demo catalog for one tenant and
// writes it to the postgres schema the search engine reads. Re-running with
// the same tenant and random seed rewrites the same rows.
package seed

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/pkg/slug"
)

// Plan controls what Generate produces.
type Plan struct {
	TenantID uuid.UUID
	Listings int
	Seed     uint64
	// Start is the creation time of the first listing; later ones follow
	// hourly.
	Start time.Time
}

type Review struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Rating   int
	Approved bool
}

// Row is one listing with everything linked to it.
type Row struct {
	domain.ListingDocument
	Reviews []Review
}

type Dataset struct {
	Categories []domain.Category
	Tags       []domain.Tag
	Listings   []Row
}

type city struct {
	name, state, postal string
	lat, lon            float64
}

var cities = []city{
	{"Austin", "TX", "78701", 30.2672, -97.7431},
	{"Dallas", "TX", "75201", 32.7767, -96.7970},
	{"Houston", "TX", "77002", 29.7604, -95.3698},
	{"Denver", "CO", "80202", 39.7392, -104.9903},
	{"Seattle", "WA", "98101", 47.6062, -122.3321},
}

type categoryDef struct {
	name, parent string
	active       bool
}

var categoryDefs = []categoryDef{
	{name: "Apartments", active: true},
	{name: "Houses", active: true},
	{name: "Cabins", active: true},
	{name: "Lofts", parent: "Apartments", active: true},
	{name: "Commercial", active: false},
}

var tagDefs = []struct {
	name   string
	active bool
}{
	{"Pet Friendly", true},
	{"Waterfront", true},
	{"Furnished", true},
	{"Parking", true},
	{"Legacy", false},
}

var adjectives = []string{"Sunny", "Quiet", "Spacious", "Cozy", "Modern", "Historic", "Bright"}

var statuses = []domain.ListingStatus{
	domain.StatusPublished, domain.StatusPublished, domain.StatusPublished,
	domain.StatusPublished, domain.StatusDraft, domain.StatusArchived,
}

// id derives a stable UUID for name within the tenant.
func id(tenant uuid.UUID, kind, name string) uuid.UUID {
	return uuid.NewSHA1(tenant, []byte(kind+":"+name))
}

// Generate builds the dataset for p. The same plan always yields the same
// dataset.
func Generate(p Plan) *Dataset {
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	start := p.Start
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	tenant := p.TenantID

	ds := &Dataset{}

	byName := make(map[string]uuid.UUID, len(categoryDefs))
	for i, def := range categoryDefs {
		c := domain.Category{
			ID:        id(tenant, "category", def.name),
			TenantID:  tenant,
			Name:      def.name,
			Slug:      slug.Generate(def.name),
			SortOrder: i + 1,
			IsActive:  def.active,
		}
		if def.parent != "" {
			parent := byName[def.parent]
			c.ParentID = &parent
			c.Level = 1
		}
		byName[def.name] = c.ID
		ds.Categories = append(ds.Categories, c)
	}

	for _, def := range tagDefs {
		ds.Tags = append(ds.Tags, domain.Tag{
			ID:       id(tenant, "tag", def.name),
			TenantID: tenant,
			Name:     def.name,
			Slug:     slug.Generate(def.name),
			IsActive: def.active,
		})
	}

	owners := []uuid.UUID{id(tenant, "owner", "1"), id(tenant, "owner", "2"), id(tenant, "owner", "3")}
	schema := id(tenant, "schema", "rental")

	for i := 0; i < p.Listings; i++ {
		ds.Listings = append(ds.Listings, listing(rng, ds, tenant, i, start, owners, schema))
	}
	return ds
}

func listing(rng *rand.Rand, ds *Dataset, tenant uuid.UUID, i int, start time.Time, owners []uuid.UUID, schema uuid.UUID) Row {
	c := cities[rng.IntN(len(cities))]
	cat := ds.Categories[rng.IntN(len(ds.Categories))]
	title := fmt.Sprintf("%s %s in %s", adjectives[rng.IntN(len(adjectives))], singular(cat.Name), c.name)
	lid := id(tenant, "listing", fmt.Sprint(i))

	l := domain.Listing{
		ID:          lid,
		TenantID:    tenant,
		OwnerID:     owners[rng.IntN(len(owners))],
		SchemaID:    schema,
		Title:       title,
		Description: fmt.Sprintf("%s listed by the owner. Close to downtown %s.", title, c.name),
		Slug:        fmt.Sprintf("%s-%d", slug.Generate(title), i+1),
		Address:     fmt.Sprintf("%d Main St", 100+rng.IntN(900)),
		City:        c.name,
		State:       c.state,
		Country:     "US",
		PostalCode:  c.postal,
		Status:      statuses[rng.IntN(len(statuses))],
		IsPublic:    rng.IntN(10) > 0,
		IsVerified:  rng.IntN(2) == 0,
		IsFeatured:  rng.IntN(5) == 0,
		Currency:    "USD",
		CreatedAt:   start.Add(time.Duration(i) * time.Hour),
	}
	// One listing in eight has no coordinates and one in ten no price.
	if rng.IntN(8) > 0 {
		lat := round(c.lat+(rng.Float64()-0.5)*0.2, 6)
		lon := round(c.lon+(rng.Float64()-0.5)*0.2, 6)
		l.Latitude, l.Longitude = &lat, &lon
	}
	if rng.IntN(10) > 0 {
		price := float64(500+rng.IntN(4500)) + float64(rng.IntN(100))/100
		l.Price = &price
	}
	if l.Status == domain.StatusPublished {
		published := l.CreatedAt.Add(30 * time.Minute)
		l.PublishedAt = &published
	}

	row := Row{ListingDocument: domain.ListingDocument{Listing: l, CategoryIDs: []uuid.UUID{cat.ID}}}

	for _, tag := range ds.Tags {
		if rng.IntN(3) == 0 {
			row.TagIDs = append(row.TagIDs, tag.ID)
		}
	}
	for m := range rng.IntN(3) {
		row.Media = append(row.Media, domain.Media{
			ID:        id(tenant, "media", fmt.Sprintf("%d-%d", i, m)),
			FileURL:   fmt.Sprintf("https://cdn.example.com/%s/%d.jpg", lid, m),
			MediaType: "image",
			MimeType:  "image/jpeg",
			AltText:   title,
			SortOrder: m,
			IsPrimary: m == 0,
		})
	}
	for r := range rng.IntN(4) {
		row.Reviews = append(row.Reviews, Review{
			ID:       id(tenant, "review", fmt.Sprintf("%d-%d", i, r)),
			UserID:   id(tenant, "user", fmt.Sprint(r)),
			Rating:   1 + rng.IntN(5),
			Approved: rng.IntN(4) > 0,
		})
	}
	return row
}

func singular(name string) string {
	switch name {
	case "Houses":
		return "House"
	case "Commercial":
		return "Commercial Space"
	default:
		return name[:len(name)-1]
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
