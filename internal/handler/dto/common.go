// Package dto defines request and response shapes for the HTTP API.
package dto

// ErrorBody carries the machine-readable code and human-readable
// message of an API error.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope every API error is wrapped in.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Pagination describes a cursor-paginated list response.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}
