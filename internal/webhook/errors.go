package webhook

import "errors"

// Not-found sentinels for endpoint and delivery lookups. Queries are
// organization-scoped, so a row owned by another tenant surfaces as one
// of these rather than a permission error.
var (
	ErrEndpointNotFound = errors.New("webhook endpoint not found")
	ErrDeliveryNotFound = errors.New("webhook delivery not found")
)
