package domain

import (
	"github.com/google/uuid"
)

// Category is a tenant-scoped, hierarchical grouping of listings. Slugs are
// unique only within a tenant.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	Level     int        `json:"level"`
	SortOrder int        `json:"sort_order"`
	IsActive  bool       `json:"is_active"`
}

type Tag struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	UsageCount int       `json:"usage_count"`
	IsActive   bool      `json:"is_active"`
}
