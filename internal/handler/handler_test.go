package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIdentity() *auth.Identity {
	return &auth.Identity{
		UserID: "user-1",
		Email:  "user@example.com",
		Role:   model.RoleClient,
		OrgID:  "3f6f2ea1-9f0e-4f7b-9a64-7f1c2a2f9d10",
	}
}

func withIdentity(r *http.Request) *http.Request {
	return r.WithContext(auth.ContextWithIdentity(r.Context(), testIdentity()))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "SOME_CODE", "some message")

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %s", ct)
	}

	var raw map[string]map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["error"]["code"] != "SOME_CODE" || raw["error"]["message"] != "some message" {
		t.Errorf("unexpected envelope: %v", raw)
	}
}

func TestTransactionCreateRejectsBadJSON(t *testing.T) {
	h := NewTransactionHandler(nil, testLogger())

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{not json")))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "INVALID_JSON" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestTransactionCreateRejectsBadDate(t *testing.T) {
	h := NewTransactionHandler(nil, testLogger())

	body := `{"date":"03/15/2025","amount":10}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body)))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "INVALID_DATE" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestTransactionListRejectsBadDateFilter(t *testing.T) {
	h := NewTransactionHandler(nil, testLogger())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?date_from=notadate", nil))
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestWebhookCreateRejectsInsecureURL(t *testing.T) {
	h := NewWebhookHandler(nil, testLogger())

	body := `{"target_url":"http://example.com/hook"}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", strings.NewReader(body)))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "INVALID_URL" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestWebhookCreateRejectsUnknownEventType(t *testing.T) {
	h := NewWebhookHandler(nil, testLogger())

	body := `{"target_url":"https://example.com/hook","event_types":["invoice.paid"]}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", strings.NewReader(body)))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "INVALID_EVENT_TYPE" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestCategoryCreateRejectsUnknownType(t *testing.T) {
	h := NewCategoryHandler(nil, testLogger())

	body := `{"name":"Travel","type":"fun"}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/categories", strings.NewReader(body)))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "INVALID_TYPE" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestReportRejectsInvertedRange(t *testing.T) {
	h := NewReportHandler(nil, testLogger())

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/reports/income-statement?from=2025-06-01&to=2025-01-01", nil))
	rec := httptest.NewRecorder()

	h.IncomeStatement(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != "INVALID_DATE_RANGE" {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}
