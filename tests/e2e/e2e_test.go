//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
)

type e2eConfig struct {
	baseURL   string
	dbURL     string
	jwtSecret string
}

func loadConfig(t *testing.T) e2eConfig {
	t.Helper()

	cfg := e2eConfig{
		baseURL:   envOrDefault("KERNFI_BASE_URL", "http://localhost:8080"),
		dbURL:     os.Getenv("DATABASE_URL"),
		jwtSecret: os.Getenv("JWT_SECRET"),
	}
	if cfg.dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	if cfg.jwtSecret == "" {
		t.Skip("JWT_SECRET not set")
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

type transactionResponse struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	Amount     float64  `json:"amount"`
	CategoryID *string  `json:"category_id"`
	ReviewedBy *string  `json:"reviewed_by"`
	Tags       []string `json:"tags"`
}

type transactionListResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Pagination   struct {
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
	} `json:"pagination"`
}

type summaryResponse struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalIncome       float64 `json:"total_income"`
	TotalExpenses     float64 `json:"total_expenses"`
	NetAmount         float64 `json:"net_amount"`
	PendingReview     int64   `json:"pending_review"`
}

type webhookCreateResponse struct {
	Webhook struct {
		ID        string `json:"id"`
		TargetURL string `json:"target_url"`
	} `json:"webhook"`
	Secret string `json:"secret"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// bootstrapAdmin seeds an organization plus an admin user directly in
// the database and mints a bearer token for that user, the same way
// the bootstrap-admin script does.
func bootstrapAdmin(t *testing.T, cfg e2eConfig) (token, orgID string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, cfg.dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	now := time.Now().UTC()
	org := &model.Organization{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("e2e-%d", now.UnixNano()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("create organization: %v", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Email:          fmt.Sprintf("e2e-%d@kernfi.local", now.UnixNano()),
		Role:           model.RoleAdmin,
		FullName:       "E2E Admin",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"aud":   envOrDefault("JWT_AUDIENCE", "authenticated"),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return signed, org.ID
}

func TestE2ETransactionLifecycle(t *testing.T) {
	cfg := loadConfig(t)
	token, orgID := bootstrapAdmin(t, cfg)

	// The token round-trips through the full auth stack.
	var identity struct {
		UserID         string `json:"user_id"`
		OrganizationID string `json:"organization_id"`
		Role           string `json:"role"`
	}
	status := doJSON(t, cfg, http.MethodGet, "/api/v1/auth/verify", token, nil, &identity)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from auth verify, got %d", status)
	}
	if identity.OrganizationID != orgID {
		t.Fatalf("verify returned organization %s, want %s", identity.OrganizationID, orgID)
	}

	// Create an expense dated yesterday so it never trips the
	// future-date check regardless of timezones.
	payload := map[string]any{
		"date":           time.Now().AddDate(0, 0, -1).Format("2006-01-02"),
		"amount":         -42.50,
		"description":    "e2e office supplies",
		"merchant":       "Paper Co",
		"payment_method": "card",
		"tags":           []string{"e2e"},
	}

	var created transactionResponse
	status = doJSON(t, cfg, http.MethodPost, "/api/v1/transactions", token, payload, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from transaction create, got %d", status)
	}
	if created.ID == "" || created.Status != "pending" {
		t.Fatalf("unexpected created transaction: %+v", created)
	}

	var list transactionListResponse
	status = doJSON(t, cfg, http.MethodGet, "/api/v1/transactions?status=pending", token, nil, &list)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from transaction list, got %d", status)
	}
	if !containsTransaction(list.Transactions, created.ID) {
		t.Fatalf("created transaction %s missing from pending list", created.ID)
	}

	var reviewed transactionResponse
	review := map[string]any{"status": "reviewed"}
	path := fmt.Sprintf("/api/v1/transactions/%s/review", created.ID)
	status = doJSON(t, cfg, http.MethodPost, path, token, review, &reviewed)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from review, got %d", status)
	}
	if reviewed.Status != "reviewed" {
		t.Fatalf("expected status reviewed, got %s", reviewed.Status)
	}

	// A second review of the same transaction must conflict.
	var envelope errorEnvelope
	status = doJSON(t, cfg, http.MethodPost, path, token, review, &envelope)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 from double review, got %d", status)
	}
	if envelope.Error.Code == "" {
		t.Fatal("conflict response missing error code")
	}

	var summary summaryResponse
	status = doJSON(t, cfg, http.MethodGet, "/api/v1/transactions/stats/summary", token, nil, &summary)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from summary, got %d", status)
	}
	if summary.TotalTransactions < 1 {
		t.Fatalf("summary reports %d transactions, want at least 1", summary.TotalTransactions)
	}

	status = doJSON(t, cfg, http.MethodDelete, "/api/v1/transactions/"+created.ID, token, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 from delete, got %d", status)
	}
}

func TestE2EWebhookEndpointLifecycle(t *testing.T) {
	cfg := loadConfig(t)
	token, _ := bootstrapAdmin(t, cfg)

	payload := map[string]any{
		"target_url":  "https://example.com/kernfi-ingest",
		"event_types": []string{"transaction.created", "transaction.reviewed"},
		"name":        "e2e-endpoint",
	}

	var created webhookCreateResponse
	status := doJSON(t, cfg, http.MethodPost, "/api/v1/webhooks", token, payload, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from webhook create, got %d", status)
	}
	if created.Webhook.ID == "" || created.Secret == "" {
		t.Fatalf("webhook create response missing fields: %+v", created)
	}

	// Rotation must produce a fresh secret; the old one is gone.
	var rotated webhookCreateResponse
	rotatePath := fmt.Sprintf("/api/v1/webhooks/%s/rotate-secret", created.Webhook.ID)
	status = doJSON(t, cfg, http.MethodPost, rotatePath, token, nil, &rotated)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from rotate-secret, got %d", status)
	}
	if rotated.Secret == "" || rotated.Secret == created.Secret {
		t.Fatal("rotate-secret did not return a new secret")
	}

	var deliveries struct {
		Deliveries []json.RawMessage `json:"deliveries"`
		Total      int               `json:"total"`
	}
	deliveriesPath := fmt.Sprintf("/api/v1/webhooks/%s/deliveries", created.Webhook.ID)
	status = doJSON(t, cfg, http.MethodGet, deliveriesPath, token, nil, &deliveries)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from deliveries list, got %d", status)
	}

	status = doJSON(t, cfg, http.MethodDelete, "/api/v1/webhooks/"+created.Webhook.ID, token, nil, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 from webhook delete, got %d", status)
	}
}

func TestE2ERejectsBadCredentials(t *testing.T) {
	cfg := loadConfig(t)

	fake := "eyJhbGciOiJIUzI1NiJ9." + strings.Repeat("x", 40) + ".invalid"

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(http.MethodGet, cfg.baseURL+"/api/v1/transactions", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+fake)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	// Error responses must never echo the credential back.
	if strings.Contains(string(body), fake) {
		t.Error("error response leaked the Authorization header value")
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode 401 body: %v", err)
	}
	if envelope.Error.Code == "" {
		t.Error("401 response missing error code")
	}
}

func containsTransaction(txs []transactionResponse, id string) bool {
	for _, tx := range txs {
		if tx.ID == id {
			return true
		}
	}
	return false
}

func doJSON(t *testing.T, cfg e2eConfig, method, path, token string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, cfg.baseURL+path, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response from %s %s: %v", method, path, err)
		}
	}

	return resp.StatusCode
}
