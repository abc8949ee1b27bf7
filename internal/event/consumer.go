package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/service"
	pkgkafka "github.com/laas-platform/laas/pkg/kafka"
	"github.com/laas-platform/laas/pkg/logger"
)

// Catalog topics the search service consumes to keep its index current.
var (
	TopicListingCreated  = pkgkafka.Topic("listing", "created")
	TopicListingUpdated  = pkgkafka.Topic("listing", "updated")
	TopicListingDeleted  = pkgkafka.Topic("listing", "deleted")
	TopicCategoryCreated = pkgkafka.Topic("category", "created")
	TopicCategoryUpdated = pkgkafka.Topic("category", "updated")
	TopicCategoryDeleted = pkgkafka.Topic("category", "deleted")
	TopicTagCreated      = pkgkafka.Topic("tag", "created")
	TopicTagUpdated      = pkgkafka.Topic("tag", "updated")
	TopicTagDeleted      = pkgkafka.Topic("tag", "deleted")
)

// Topics lists every topic Consumer.Handle understands.
func Topics() []string {
	return []string{
		TopicListingCreated, TopicListingUpdated, TopicListingDeleted,
		TopicCategoryCreated, TopicCategoryUpdated, TopicCategoryDeleted,
		TopicTagCreated, TopicTagUpdated, TopicTagDeleted,
	}
}

// DeletedData is the payload of every *.deleted event.
type DeletedData struct {
	ID uuid.UUID `json:"id"`
}

// Consumer applies catalog change events to the search index.
type Consumer struct {
	searchService *service.SearchService
	logger        *slog.Logger
}

func NewConsumer(searchService *service.SearchService, logger *slog.Logger) *Consumer {
	return &Consumer{
		searchService: searchService,
		logger:        logger,
	}
}

// Handle routes event by type. Events for unknown types are acknowledged
// and dropped.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	tenantID, err := uuid.Parse(event.TenantID)
	if err != nil {
		return fmt.Errorf("%s %s: invalid tenant_id %q", event.EventType, event.EventID, event.TenantID)
	}
	ctx = logger.WithTenantID(ctx, tenantID.String())

	switch event.EventType {
	case TopicListingCreated, TopicListingUpdated:
		return c.handleListingUpserted(ctx, tenantID, event)
	case TopicListingDeleted:
		return c.handleDeleted(ctx, tenantID, event, c.searchService.DeleteListing)
	case TopicCategoryCreated, TopicCategoryUpdated:
		return c.handleCategoryUpserted(ctx, tenantID, event)
	case TopicCategoryDeleted:
		return c.handleDeleted(ctx, tenantID, event, c.searchService.DeleteCategory)
	case TopicTagCreated, TopicTagUpdated:
		return c.handleTagUpserted(ctx, tenantID, event)
	case TopicTagDeleted:
		return c.handleDeleted(ctx, tenantID, event, c.searchService.DeleteTag)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// sameTenant rejects a payload scoped to a tenant other than the envelope's.
func sameTenant(event *pkgkafka.Event, envelope, payload uuid.UUID) error {
	if payload != envelope {
		return fmt.Errorf("%s %s: payload tenant %s does not match envelope tenant %s",
			event.EventType, event.EventID, payload, envelope)
	}
	return nil
}

func (c *Consumer) handleListingUpserted(ctx context.Context, tenantID uuid.UUID, event *pkgkafka.Event) error {
	var doc domain.ListingDocument
	if err := event.UnmarshalData(&doc); err != nil {
		return err
	}
	if doc.TenantID == uuid.Nil {
		doc.TenantID = tenantID
	}
	if err := sameTenant(event, tenantID, doc.TenantID); err != nil {
		return err
	}

	if err := c.searchService.IndexListing(ctx, &doc); err != nil {
		return fmt.Errorf("index listing from %s: %w", event.EventType, err)
	}
	return nil
}

func (c *Consumer) handleCategoryUpserted(ctx context.Context, tenantID uuid.UUID, event *pkgkafka.Event) error {
	var cat domain.Category
	if err := event.UnmarshalData(&cat); err != nil {
		return err
	}
	if cat.TenantID == uuid.Nil {
		cat.TenantID = tenantID
	}
	if err := sameTenant(event, tenantID, cat.TenantID); err != nil {
		return err
	}

	if err := c.searchService.UpsertCategory(ctx, &cat); err != nil {
		return fmt.Errorf("index category from %s: %w", event.EventType, err)
	}
	return nil
}

func (c *Consumer) handleTagUpserted(ctx context.Context, tenantID uuid.UUID, event *pkgkafka.Event) error {
	var tag domain.Tag
	if err := event.UnmarshalData(&tag); err != nil {
		return err
	}
	if tag.TenantID == uuid.Nil {
		tag.TenantID = tenantID
	}
	if err := sameTenant(event, tenantID, tag.TenantID); err != nil {
		return err
	}

	if err := c.searchService.UpsertTag(ctx, &tag); err != nil {
		return fmt.Errorf("index tag from %s: %w", event.EventType, err)
	}
	return nil
}

func (c *Consumer) handleDeleted(ctx context.Context, tenantID uuid.UUID, event *pkgkafka.Event,
	remove func(ctx context.Context, tenantID, id uuid.UUID) error,
) error {
	var data DeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.ID == uuid.Nil {
		if id, err := uuid.Parse(event.AggregateID); err == nil {
			data.ID = id
		}
	}

	if err := remove(ctx, tenantID, data.ID); err != nil {
		return fmt.Errorf("apply %s: %w", event.EventType, err)
	}
	return nil
}
