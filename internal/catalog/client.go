// Package catalog reads tenant listings and taxonomy from the catalog
// service, which owns them. The search service only ever reads.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/pkg/httpclient"
)

const (
	serviceName     = "catalog"
	DefaultPageSize = 100
)

// Doer sends a request. *httpclient.CircuitBreakerClient and
// *httpclient.Client both satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ListingPage is one page of denormalized listing documents.
type ListingPage struct {
	Data       []domain.ListingDocument `json:"data"`
	Page       int                      `json:"page"`
	PerPage    int                      `json:"per_page"`
	TotalCount int                      `json:"total_count"`
	TotalPages int                      `json:"total_pages"`
}

type Client struct {
	http     Doer
	baseURL  string
	pageSize int
}

func NewClient(baseURL string, doer Doer, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		http:     doer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
	}
}

func (c *Client) tenantURL(tenantID uuid.UUID, resource string, q url.Values) string {
	u := fmt.Sprintf("%s/api/v1/tenants/%s/%s", c.baseURL, tenantID, resource)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Listings fetches page (1-based) of tenantID's listings, all statuses
// included; eligibility is decided at query time.
func (c *Client) Listings(ctx context.Context, tenantID uuid.UUID, page int) (*ListingPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))

	var out ListingPage
	if err := c.get(ctx, c.tenantURL(tenantID, "listings", q), &out); err != nil {
		return nil, fmt.Errorf("list listings page %d: %w", page, err)
	}
	if out.Data == nil {
		out.Data = []domain.ListingDocument{}
	}
	return &out, nil
}

// Categories fetches every category of tenantID, inactive ones included.
func (c *Client) Categories(ctx context.Context, tenantID uuid.UUID) ([]domain.Category, error) {
	var out struct {
		Data []domain.Category `json:"data"`
	}
	if err := c.get(ctx, c.tenantURL(tenantID, "categories", nil), &out); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out.Data, nil
}

// Tags fetches every tag of tenantID, inactive ones included.
func (c *Client) Tags(ctx context.Context, tenantID uuid.UUID) ([]domain.Tag, error) {
	var out struct {
		Data []domain.Tag `json:"data"`
	}
	if err := c.get(ctx, c.tenantURL(tenantID, "tags", nil), &out); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return nil
}
