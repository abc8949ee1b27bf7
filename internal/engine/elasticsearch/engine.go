// Package elasticsearch serves searches from a near-real-time index fed
// through the Indexer interface. Listings live in one index and categories
// and tags in a companion taxonomy index, so slug filters and facet names
// resolve per tenant without denormalizing names into every listing.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
)

type Config struct {
	Addresses []string
	Username  string
	Password  string
	// Index names the listings index; the taxonomy index is derived from it.
	Index string
	// Refresh is passed to index and delete calls. Defaults to "wait_for"
	// so a write is searchable when the call returns.
	Refresh string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Engine implements engine.SearchEngine and engine.Indexer.
type Engine struct {
	client        *elasticsearch.Client
	indexName     string
	taxonomyIndex string
	refresh       string
	logger        *slog.Logger
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// New connects to the cluster and creates both indexes when missing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if cfg.Refresh == "" {
		cfg.Refresh = "wait_for"
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	e := &Engine{
		client:        client,
		indexName:     cfg.Index,
		taxonomyIndex: cfg.Index + taxonomySuffix,
		refresh:       cfg.Refresh,
		logger:        logger,
	}

	if err := e.ensureIndex(ctx, e.indexName, listingMapping()); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}
	if err := e.ensureIndex(ctx, e.taxonomyIndex, taxonomyMapping()); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}
	return e, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (e *Engine) ensureIndex(ctx context.Context, name, mapping string) error {
	res, err := e.client.Indices.Exists([]string{name}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", "index", name)
		return nil
	}

	res, err = e.client.Indices.Create(
		name,
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err := check("create index", res, err); err != nil {
		return err
	}
	e.logger.Info("elasticsearch index created", "index", name)
	return nil
}

// DeleteIndices drops both indexes. A missing index is not an error.
func (e *Engine) DeleteIndices(ctx context.Context) error {
	res, err := e.client.Indices.Delete(
		[]string{e.indexName, e.taxonomyIndex},
		e.client.Indices.Delete.WithContext(ctx),
		e.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err := check("delete index", res, err, http.StatusNotFound); err != nil {
		return err
	}
	e.logger.Info("elasticsearch indices deleted", "index", e.indexName)
	return nil
}

// check closes the response and turns a transport error or an error status
// not listed in allowed into an error.
func check(op string, res *esapi.Response, err error, allowed ...int) error {
	return decode(op, res, err, nil, allowed...)
}

// decode is check that also unmarshals a successful body into out.
func decode(op string, res *esapi.Response, err error, out any, allowed ...int) error {
	if err != nil {
		return fmt.Errorf("elasticsearch %s: %w", op, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		if slices.Contains(allowed, res.StatusCode) {
			return nil
		}
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
			return fmt.Errorf("elasticsearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
		}
		return fmt.Errorf("elasticsearch %s: unexpected status %s", op, res.Status())
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("elasticsearch %s: decode response: %w", op, err)
	}
	return nil
}

func (e *Engine) search(ctx context.Context, op, index string, body map[string]any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}
	res, err := e.client.Search(
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	return decode(op, res, err, out)
}

func (e *Engine) put(ctx context.Context, op, index, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("elasticsearch %s: marshal document: %w", op, err)
	}
	res, err := e.client.Index(
		index,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(id),
		e.client.Index.WithRefresh(e.refresh),
		e.client.Index.WithContext(ctx),
	)
	return check(op, res, err)
}

// deleteWhere removes documents matching every filter. Deleting by query
// rather than by ID keeps one tenant from deleting another's documents.
func (e *Engine) deleteWhere(ctx context.Context, op, index string, filter []any) error {
	data, err := json.Marshal(map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": filter}},
	})
	if err != nil {
		return fmt.Errorf("elasticsearch %s: marshal query: %w", op, err)
	}
	res, err := e.client.DeleteByQuery(
		[]string{index},
		bytes.NewReader(data),
		e.client.DeleteByQuery.WithRefresh(true),
		e.client.DeleteByQuery.WithContext(ctx),
	)
	return check(op, res, err, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Indexer
// ---------------------------------------------------------------------------

// Index adds or replaces a single listing document.
func (e *Engine) Index(ctx context.Context, doc *domain.ListingDocument) error {
	if err := e.put(ctx, "index", e.indexName, doc.ID.String(), toDocument(doc)); err != nil {
		return err
	}
	e.logger.Debug("indexed listing", "id", doc.ID, "tenant_id", doc.TenantID)
	return nil
}

// BulkIndex adds or replaces listings using the bulk NDJSON API.
func (e *Engine) BulkIndex(ctx context.Context, docs []domain.ListingDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		action := map[string]any{
			"index": map[string]any{"_index": e.indexName, "_id": docs[i].ID.String()},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(toDocument(&docs[i])); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh(e.refresh),
		e.client.Bulk.WithContext(ctx),
	)
	var bulkResp esBulkResponse
	if err := decode("bulk index", res, err, &bulkResp); err != nil {
		return err
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	e.logger.Info("bulk indexed listings", "count", len(docs))
	return nil
}

// Delete removes a listing. A missing or foreign listing is a no-op.
func (e *Engine) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return e.deleteWhere(ctx, "delete", e.indexName, []any{
		term("id", id.String()),
		term("tenant_id", tenantID.String()),
	})
}

func (e *Engine) UpsertCategory(ctx context.Context, c *domain.Category) error {
	return e.put(ctx, "upsert category", e.taxonomyIndex, c.ID.String(), taxonomyDoc{
		ID: c.ID, TenantID: c.TenantID, Kind: kindCategory, Slug: c.Slug, Name: c.Name, Active: c.IsActive,
	})
}

func (e *Engine) DeleteCategory(ctx context.Context, tenantID, id uuid.UUID) error {
	return e.deleteTaxonomy(ctx, "delete category", kindCategory, tenantID, id)
}

func (e *Engine) UpsertTag(ctx context.Context, t *domain.Tag) error {
	return e.put(ctx, "upsert tag", e.taxonomyIndex, t.ID.String(), taxonomyDoc{
		ID: t.ID, TenantID: t.TenantID, Kind: kindTag, Slug: t.Slug, Name: t.Name, Active: t.IsActive,
	})
}

func (e *Engine) DeleteTag(ctx context.Context, tenantID, id uuid.UUID) error {
	return e.deleteTaxonomy(ctx, "delete tag", kindTag, tenantID, id)
}

func (e *Engine) deleteTaxonomy(ctx context.Context, op, kind string, tenantID, id uuid.UUID) error {
	return e.deleteWhere(ctx, op, e.taxonomyIndex, []any{
		term("id", id.String()),
		term("tenant_id", tenantID.String()),
		term("kind", kind),
	})
}
