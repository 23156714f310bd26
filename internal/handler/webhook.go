package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/middleware"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/webhook"
)

// WebhookHandler handles webhook endpoint management. Write operations
// are mounted behind the admin role middleware; reads are open to any
// member of the organization.
type WebhookHandler struct {
	repo   *webhook.Repository
	logger *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(repo *webhook.Repository, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		repo:   repo,
		logger: logger.With("handler", "webhook"),
	}
}

// Create handles POST /api/v1/webhooks.
func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	var req dto.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := middleware.ValidateWebhookURL(req.TargetURL); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
		return
	}
	if err := webhook.ValidateTargetURL(req.TargetURL); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
		return
	}

	eventTypes := req.EventTypes
	if len(eventTypes) == 0 {
		eventTypes = model.ValidEventTypes
	}
	for _, et := range eventTypes {
		if !model.IsValidEventType(et) {
			writeError(w, http.StatusBadRequest, "INVALID_EVENT_TYPE", "Invalid event type: "+string(et))
			return
		}
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		h.logger.Error("failed to generate secret", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create webhook")
		return
	}

	now := time.Now()
	endpoint := &model.WebhookEndpoint{
		ID:             ulid.Make().String(),
		OrganizationID: auth.ScopeFilter(identity),
		TargetURL:      req.TargetURL,
		SecretHash:     webhook.HashSecret(secret),
		Enabled:        true,
		EventTypes:     eventTypes,
		Name:           req.Name,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.repo.CreateEndpoint(r.Context(), endpoint); err != nil {
		h.logger.Error("failed to create endpoint", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create webhook")
		return
	}

	h.logger.Info("webhook endpoint created",
		"endpoint_id", endpoint.ID,
		"org_id", endpoint.OrganizationID,
		"target_host", webhook.ExtractHost(endpoint.TargetURL),
	)

	// The secret is returned exactly once.
	writeJSON(w, http.StatusCreated, dto.CreateWebhookResponse{
		Endpoint: endpoint,
		Secret:   secret,
	})
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	endpoints, err := h.repo.ListEndpointsByOrg(r.Context(), auth.ScopeFilter(identity))
	if err != nil {
		h.logger.Error("failed to list endpoints", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list webhooks")
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookListResponse{Webhooks: endpoints})
}

// Get handles GET /api/v1/webhooks/{id}.
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	endpoint, err := h.repo.GetEndpoint(r.Context(), auth.ScopeFilter(identity), chi.URLParam(r, "id"))
	if err != nil {
		h.handleRepoError(w, err, "Failed to get webhook")
		return
	}

	writeJSON(w, http.StatusOK, endpoint)
}

// Update handles PATCH /api/v1/webhooks/{id}.
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	endpoint, err := h.repo.GetEndpoint(r.Context(), auth.ScopeFilter(identity), chi.URLParam(r, "id"))
	if err != nil {
		h.handleRepoError(w, err, "Failed to update webhook")
		return
	}

	var req dto.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Name != nil {
		endpoint.Name = *req.Name
	}
	if req.Description != nil {
		endpoint.Description = *req.Description
	}
	if req.TargetURL != nil {
		if err := middleware.ValidateWebhookURL(*req.TargetURL); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
			return
		}
		if err := webhook.ValidateTargetURL(*req.TargetURL); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
			return
		}
		endpoint.TargetURL = *req.TargetURL
	}
	if req.Enabled != nil {
		endpoint.Enabled = *req.Enabled
	}
	if req.EventTypes != nil {
		for _, et := range *req.EventTypes {
			if !model.IsValidEventType(et) {
				writeError(w, http.StatusBadRequest, "INVALID_EVENT_TYPE", "Invalid event type: "+string(et))
				return
			}
		}
		endpoint.EventTypes = *req.EventTypes
	}

	if err := h.repo.UpdateEndpoint(r.Context(), endpoint); err != nil {
		h.handleRepoError(w, err, "Failed to update webhook")
		return
	}

	h.logger.Info("webhook endpoint updated", "endpoint_id", endpoint.ID)

	writeJSON(w, http.StatusOK, endpoint)
}

// Delete handles DELETE /api/v1/webhooks/{id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteEndpoint(r.Context(), auth.ScopeFilter(identity), id); err != nil {
		h.handleRepoError(w, err, "Failed to delete webhook")
		return
	}

	h.logger.Info("webhook endpoint deleted", "endpoint_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret handles POST /api/v1/webhooks/{id}/rotate-secret.
func (h *WebhookHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	newSecret, err := webhook.GenerateSecret()
	if err != nil {
		h.logger.Error("failed to generate secret", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate secret")
		return
	}

	if err := h.repo.UpdateEndpointSecret(r.Context(), auth.ScopeFilter(identity), id, webhook.HashSecret(newSecret)); err != nil {
		h.handleRepoError(w, err, "Failed to rotate secret")
		return
	}

	h.logger.Info("webhook secret rotated", "endpoint_id", id)

	writeJSON(w, http.StatusOK, map[string]string{
		"secret": newSecret,
	})
}

// ListDeliveries handles GET /api/v1/webhooks/{id}/deliveries.
func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	// Tenant scoping happens here; the delivery query keys on the
	// resolved endpoint.
	endpoint, err := h.repo.GetEndpoint(r.Context(), auth.ScopeFilter(identity), id)
	if err != nil {
		h.handleRepoError(w, err, "Failed to list deliveries")
		return
	}

	statuses := r.URL.Query()["status"]
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	deliveries, total, err := h.repo.ListDeliveriesByEndpoint(r.Context(), endpoint.ID, statuses, perPage, offset)
	if err != nil {
		h.logger.Error("failed to list deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list deliveries")
		return
	}

	writeJSON(w, http.StatusOK, dto.DeliveryListResponse{
		Deliveries: deliveries,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
	})
}

// RetryDelivery handles POST /api/v1/webhooks/deliveries/{deliveryId}/retry.
// Only exhausted deliveries are eligible.
func (h *WebhookHandler) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	deliveryID := chi.URLParam(r, "deliveryId")

	if err := h.repo.ResetDeliveryForRetry(r.Context(), auth.ScopeFilter(identity), deliveryID); err != nil {
		if errors.Is(err, webhook.ErrDeliveryNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Delivery not found or not exhausted")
			return
		}
		h.logger.Error("failed to retry delivery", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retry delivery")
		return
	}

	h.logger.Info("webhook delivery retry requested", "delivery_id", deliveryID)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "retry_scheduled",
	})
}

// handleRepoError maps webhook repository errors to HTTP responses.
func (h *WebhookHandler) handleRepoError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, webhook.ErrEndpointNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
		return
	}
	h.logger.Error("webhook repository error", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
}
