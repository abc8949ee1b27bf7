package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/domain"
	"github.com/laas-platform/laas/internal/service"
	apperrors "github.com/laas-platform/laas/pkg/errors"
	"github.com/laas-platform/laas/pkg/httputil"
	"github.com/laas-platform/laas/pkg/logger"
	"github.com/laas-platform/laas/pkg/validator"
)

// BulkIndexRequest is the JSON body of POST /api/v1/search/bulk.
type BulkIndexRequest struct {
	Listings []domain.ListingDocument `json:"listings" validate:"required,min=1,max=500"`
}

// writeIndexError reports index operations on an engine without an index
// as 501 and everything else through the shared error mapping.
func (h *SearchHandler) writeIndexError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrReadOnlyEngine) || errors.Is(err, service.ErrNoCatalog) {
		httputil.WriteJSON(w, http.StatusNotImplemented, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:      "NOT_SUPPORTED",
				Message:   err.Error(),
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}

// scope fills in a missing tenant and rejects a foreign one.
func scope(doc *domain.ListingDocument, tenantID uuid.UUID) error {
	if doc.TenantID == uuid.Nil {
		doc.TenantID = tenantID
	}
	if doc.TenantID != tenantID {
		return apperrors.InvalidInput("listing " + doc.ID.String() + " belongs to another tenant")
	}
	return nil
}

// IndexListing handles POST /api/v1/search/index
func (h *SearchHandler) IndexListing(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var doc domain.ListingDocument
	if err := validator.DecodeAndValidate(r, &doc); err != nil {
		writeBodyError(w, r, err, h.logger)
		return
	}
	if err := scope(&doc, tenantID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.IndexListing(r.Context(), &doc); err != nil {
		h.writeIndexError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": doc.ID.String(), "status": "indexed"}})
}

// BulkIndex handles POST /api/v1/search/bulk
func (h *SearchHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var req BulkIndexRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		writeBodyError(w, r, err, h.logger)
		return
	}
	for i := range req.Listings {
		if err := scope(&req.Listings[i], tenantID); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	n, err := h.service.BulkIndex(r.Context(), req.Listings)
	if err != nil {
		h.writeIndexError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"indexed": n, "status": "ok"}})
}

// DeleteListing handles DELETE /api/v1/search/listings/{id}
func (h *SearchHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid listing id"), h.logger)
		return
	}

	if err := h.service.DeleteListing(r.Context(), tenantID, id); err != nil {
		h.writeIndexError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}

// Reindex handles POST /api/v1/search/reindex. The copy runs in the
// background; the response only confirms it started.
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	if err := h.service.StartReindex(r.Context(), tenantID); err != nil {
		h.writeIndexError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{
		"tenant_id": tenantID.String(),
		"status":    "reindex started",
	}})
}
