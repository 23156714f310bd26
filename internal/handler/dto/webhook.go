package dto

import "github.com/kernfi/kernfi/internal/model"

// CreateWebhookRequest is the body of POST /api/v1/webhooks.
type CreateWebhookRequest struct {
	TargetURL   string            `json:"target_url"`
	EventTypes  []model.EventType `json:"event_types,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
}

// UpdateWebhookRequest is the body of PATCH /api/v1/webhooks/{id}.
type UpdateWebhookRequest struct {
	TargetURL   *string            `json:"target_url,omitempty"`
	EventTypes  *[]model.EventType `json:"event_types,omitempty"`
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Enabled     *bool              `json:"enabled,omitempty"`
}

// CreateWebhookResponse returns the endpoint together with its secret.
// The secret is shown exactly once; only its hash is stored.
type CreateWebhookResponse struct {
	Endpoint *model.WebhookEndpoint `json:"webhook"`
	Secret   string                 `json:"secret"`
}

// WebhookListResponse is the body of GET /api/v1/webhooks.
type WebhookListResponse struct {
	Webhooks []*model.WebhookEndpoint `json:"webhooks"`
}

// DeliveryListResponse is the body of GET /api/v1/webhooks/{id}/deliveries.
type DeliveryListResponse struct {
	Deliveries []*model.WebhookDelivery `json:"deliveries"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	PerPage    int                      `json:"per_page"`
}
