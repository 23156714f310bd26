//go:build integration

package webhook

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/testutil"
)

// ============================================================================
// Webhook Delivery Persistence Integration Tests
// ============================================================================

func TestIntegrationWebhook_CreateEndpoint(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	err := repo.CreateEndpoint(ctx, endpoint)
	if err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	// Verify endpoint exists in DB
	retrieved, err := repo.GetEndpoint(ctx, orgID, endpoint.ID)
	if err != nil {
		t.Fatalf("GetEndpoint failed: %v", err)
	}

	if retrieved.OrganizationID != orgID {
		t.Errorf("OrganizationID mismatch: got %q, want %q", retrieved.OrganizationID, orgID)
	}
	if retrieved.TargetURL != endpoint.TargetURL {
		t.Errorf("TargetURL mismatch: got %q, want %q", retrieved.TargetURL, endpoint.TargetURL)
	}
	if !retrieved.Enabled {
		t.Error("Endpoint should be enabled")
	}
}

func TestIntegrationWebhook_EndpointCrossOrg(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	ownerOrg := uuid.NewString()
	otherOrg := uuid.NewString()
	endpoint := newTestEndpoint(t, ownerOrg)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	// Another organization cannot see, update, or delete the endpoint.
	if _, err := repo.GetEndpoint(ctx, otherOrg, endpoint.ID); !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("cross-org GetEndpoint: expected ErrEndpointNotFound, got %v", err)
	}
	if err := repo.DeleteEndpoint(ctx, otherOrg, endpoint.ID); !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("cross-org DeleteEndpoint: expected ErrEndpointNotFound, got %v", err)
	}

	// The owner still has it.
	if _, err := repo.GetEndpoint(ctx, ownerOrg, endpoint.ID); err != nil {
		t.Errorf("owner GetEndpoint failed: %v", err)
	}
}

func TestIntegrationWebhook_ListActiveEndpointsByOrgAndEvent(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()

	subscribed := newTestEndpoint(t, orgID)
	subscribed.EventTypes = []model.EventType{model.EventTypeTransactionCreated}

	otherEvent := newTestEndpoint(t, orgID)
	otherEvent.EventTypes = []model.EventType{model.EventTypeDocumentCompleted}

	disabled := newTestEndpoint(t, orgID)
	disabled.EventTypes = []model.EventType{model.EventTypeTransactionCreated}
	disabled.Enabled = false

	foreign := newTestEndpoint(t, uuid.NewString())
	foreign.EventTypes = []model.EventType{model.EventTypeTransactionCreated}

	for _, e := range []*model.WebhookEndpoint{subscribed, otherEvent, disabled, foreign} {
		if err := repo.CreateEndpoint(ctx, e); err != nil {
			t.Fatalf("CreateEndpoint failed: %v", err)
		}
	}

	active, err := repo.ListActiveEndpointsByOrgAndEvent(ctx, orgID, model.EventTypeTransactionCreated)
	if err != nil {
		t.Fatalf("ListActiveEndpointsByOrgAndEvent failed: %v", err)
	}

	if len(active) != 1 {
		t.Fatalf("expected 1 active endpoint, got %d", len(active))
	}
	if active[0].ID != subscribed.ID {
		t.Errorf("wrong endpoint returned: got %q, want %q", active[0].ID, subscribed.ID)
	}
}

func TestIntegrationWebhook_CreateDelivery(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	delivery := newTestDelivery(t, endpoint.ID)

	err := repo.CreateDelivery(ctx, delivery)
	if err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	// Verify delivery exists
	retrieved, _, err := repo.GetDeliveryWithEndpoint(ctx, orgID, delivery.ID)
	if err != nil {
		t.Fatalf("GetDeliveryWithEndpoint failed: %v", err)
	}

	if retrieved.Status != model.DeliveryStatusPending {
		t.Errorf("Status mismatch: got %q, want %q", retrieved.Status, model.DeliveryStatusPending)
	}
	if retrieved.AttemptCount != 0 {
		t.Errorf("AttemptCount should be 0, got %d", retrieved.AttemptCount)
	}

	// Cross-org lookup misses.
	if _, _, err := repo.GetDeliveryWithEndpoint(ctx, uuid.NewString(), delivery.ID); !errors.Is(err, ErrDeliveryNotFound) {
		t.Errorf("cross-org delivery lookup: expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestIntegrationWebhook_DeliverySuccess(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	delivery := newTestDelivery(t, endpoint.ID)

	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	// Mark as success
	err := repo.UpdateDeliverySuccess(ctx, delivery.ID, 200)
	if err != nil {
		t.Fatalf("UpdateDeliverySuccess failed: %v", err)
	}

	// Verify
	retrieved, _, err := repo.GetDeliveryWithEndpoint(ctx, orgID, delivery.ID)
	if err != nil {
		t.Fatalf("GetDeliveryWithEndpoint failed: %v", err)
	}

	if retrieved.Status != model.DeliveryStatusSuccess {
		t.Errorf("Status mismatch: got %q, want %q", retrieved.Status, model.DeliveryStatusSuccess)
	}
	if retrieved.AttemptCount != 1 {
		t.Errorf("AttemptCount should be 1, got %d", retrieved.AttemptCount)
	}
	if retrieved.LastHTTPStatus == nil || *retrieved.LastHTTPStatus != 200 {
		t.Error("LastHTTPStatus should be 200")
	}
}

func TestIntegrationWebhook_DeliveryRetry(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	delivery := newTestDelivery(t, endpoint.ID)

	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	// Mark as failed with retry
	status := 500
	nextRetry := time.Now().Add(1 * time.Minute)
	err := repo.UpdateDeliveryFailure(ctx, delivery.ID, &status, "server error", nextRetry, false)
	if err != nil {
		t.Fatalf("UpdateDeliveryFailure failed: %v", err)
	}

	// Verify
	retrieved, _, err := repo.GetDeliveryWithEndpoint(ctx, orgID, delivery.ID)
	if err != nil {
		t.Fatalf("GetDeliveryWithEndpoint failed: %v", err)
	}

	if retrieved.Status != model.DeliveryStatusFailed {
		t.Errorf("Status mismatch: got %q, want %q", retrieved.Status, model.DeliveryStatusFailed)
	}
	if retrieved.AttemptCount != 1 {
		t.Errorf("AttemptCount should be 1, got %d", retrieved.AttemptCount)
	}
	if retrieved.LastHTTPStatus == nil || *retrieved.LastHTTPStatus != 500 {
		t.Error("LastHTTPStatus should be 500")
	}
	if retrieved.LastError != "server error" {
		t.Errorf("LastError mismatch: got %q, want %q", retrieved.LastError, "server error")
	}
}

func TestIntegrationWebhook_DeliveryExhausted(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	delivery := newTestDelivery(t, endpoint.ID)
	delivery.MaxAttempts = 3

	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	// Exhaust retries
	status := 503
	nextRetry := time.Now()
	err := repo.UpdateDeliveryFailure(ctx, delivery.ID, &status, "service unavailable", nextRetry, true)
	if err != nil {
		t.Fatalf("UpdateDeliveryFailure (exhausted) failed: %v", err)
	}

	// Verify
	retrieved, _, err := repo.GetDeliveryWithEndpoint(ctx, orgID, delivery.ID)
	if err != nil {
		t.Fatalf("GetDeliveryWithEndpoint failed: %v", err)
	}

	if retrieved.Status != model.DeliveryStatusExhausted {
		t.Errorf("Status mismatch: got %q, want %q", retrieved.Status, model.DeliveryStatusExhausted)
	}
	if !retrieved.IsTerminal() {
		t.Error("Exhausted delivery should be terminal")
	}
}

func TestIntegrationWebhook_DuplicateEventEndpoint(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	delivery1 := newTestDelivery(t, endpoint.ID)
	eventID := delivery1.EventID

	if err := repo.CreateDelivery(ctx, delivery1); err != nil {
		t.Fatalf("CreateDelivery (first) failed: %v", err)
	}

	// Try to insert duplicate event for same endpoint
	delivery2 := newTestDelivery(t, endpoint.ID)
	delivery2.EventID = eventID // Same event ID

	// Should be ignored (ON CONFLICT DO NOTHING)
	err := repo.CreateDelivery(ctx, delivery2)
	if err != nil {
		t.Fatalf("CreateDelivery (duplicate) should not error: %v", err)
	}

	// Verify only one delivery exists
	deliveries, total, err := repo.ListDeliveriesByEndpoint(ctx, endpoint.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("ListDeliveriesByEndpoint failed: %v", err)
	}

	if total != 1 {
		t.Errorf("Expected 1 delivery, got %d", total)
	}
	if len(deliveries) != 1 {
		t.Errorf("Expected 1 delivery in list, got %d", len(deliveries))
	}
}

func TestIntegrationWebhook_GetPendingDeliveries(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	// Create 3 pending deliveries
	for i := 0; i < 3; i++ {
		delivery := newTestDelivery(t, endpoint.ID)
		delivery.NextRetryAt = time.Now().Add(-1 * time.Minute) // Past due
		if err := repo.CreateDelivery(ctx, delivery); err != nil {
			t.Fatalf("CreateDelivery (%d) failed: %v", i, err)
		}
		time.Sleep(1 * time.Millisecond)
	}

	// Create 1 future delivery
	futureDelivery := newTestDelivery(t, endpoint.ID)
	futureDelivery.NextRetryAt = time.Now().Add(1 * time.Hour) // Future
	if err := repo.CreateDelivery(ctx, futureDelivery); err != nil {
		t.Fatalf("CreateDelivery (future) failed: %v", err)
	}

	// Get pending
	pending, err := repo.GetPendingDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingDeliveries failed: %v", err)
	}

	if len(pending) != 3 {
		t.Errorf("Expected 3 pending deliveries, got %d", len(pending))
	}
}

func TestIntegrationWebhook_EndpointSoftDelete(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	// Delete endpoint
	if err := repo.DeleteEndpoint(ctx, orgID, endpoint.ID); err != nil {
		t.Fatalf("DeleteEndpoint failed: %v", err)
	}

	// Should not be found
	_, err := repo.GetEndpoint(ctx, orgID, endpoint.ID)
	if !errors.Is(err, ErrEndpointNotFound) {
		t.Errorf("Expected ErrEndpointNotFound, got: %v", err)
	}
}

func TestIntegrationWebhook_QueueDepth(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	// Initially empty
	depth, err := repo.GetQueueDepth(ctx)
	if err != nil {
		t.Fatalf("GetQueueDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("Expected queue depth 0, got %d", depth)
	}

	// Add 2 pending deliveries
	for i := 0; i < 2; i++ {
		delivery := newTestDelivery(t, endpoint.ID)
		if err := repo.CreateDelivery(ctx, delivery); err != nil {
			t.Fatalf("CreateDelivery (%d) failed: %v", i, err)
		}
		time.Sleep(1 * time.Millisecond)
	}

	depth, err = repo.GetQueueDepth(ctx)
	if err != nil {
		t.Fatalf("GetQueueDepth (after add) failed: %v", err)
	}
	if depth != 2 {
		t.Errorf("Expected queue depth 2, got %d", depth)
	}
}

func TestIntegrationWebhook_ResetDeliveryForRetry(t *testing.T) {
	ctx, repo := newWebhookTestEnv(t)

	orgID := uuid.NewString()
	endpoint := newTestEndpoint(t, orgID)

	if err := repo.CreateEndpoint(ctx, endpoint); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}

	delivery := newTestDelivery(t, endpoint.ID)

	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		t.Fatalf("CreateDelivery failed: %v", err)
	}

	// Exhaust it first
	err := repo.UpdateDeliveryFailure(ctx, delivery.ID, nil, "exhausted", time.Now(), true)
	if err != nil {
		t.Fatalf("UpdateDeliveryFailure failed: %v", err)
	}

	// Reset for retry
	if err := repo.ResetDeliveryForRetry(ctx, orgID, delivery.ID); err != nil {
		t.Fatalf("ResetDeliveryForRetry failed: %v", err)
	}

	// A retry scoped to another organization misses.
	if err := repo.ResetDeliveryForRetry(ctx, uuid.NewString(), delivery.ID); !errors.Is(err, ErrDeliveryNotFound) {
		t.Errorf("cross-org reset: expected ErrDeliveryNotFound, got %v", err)
	}

	// Verify reset
	retrieved, _, err := repo.GetDeliveryWithEndpoint(ctx, orgID, delivery.ID)
	if err != nil {
		t.Fatalf("GetDeliveryWithEndpoint failed: %v", err)
	}

	if retrieved.Status != model.DeliveryStatusPending {
		t.Errorf("Status should be pending after reset, got %q", retrieved.Status)
	}
}

// ============================================================================
// Test Helpers
// ============================================================================

func newTestEndpoint(t testing.TB, orgID string) *model.WebhookEndpoint {
	t.Helper()
	now := time.Now().UTC()
	return &model.WebhookEndpoint{
		ID:             testutil.UniqueID("endpoint"),
		OrganizationID: orgID,
		TargetURL:      "https://example.com/webhook",
		SecretHash:     "test-secret-hash-" + testutil.UniqueID(""),
		Enabled:        true,
		EventTypes:     []model.EventType{model.EventTypeTransactionCreated},
		Name:           "Test Webhook",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newTestDelivery(t testing.TB, endpointID string) *model.WebhookDelivery {
	t.Helper()
	now := time.Now().UTC()
	return &model.WebhookDelivery{
		ID:           testutil.UniqueID("delivery"),
		EndpointID:   endpointID,
		EventID:      testutil.UniqueID("event"),
		EventType:    model.EventTypeTransactionCreated,
		PayloadJSON:  `{"event_type":"transaction.created","data":{}}`,
		Status:       model.DeliveryStatusPending,
		AttemptCount: 0,
		MaxAttempts:  5,
		NextRetryAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newWebhookTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	// Serialize schema resets across test packages.
	lockConn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("acquire lock connection: %v", err)
	}
	if _, err := lockConn.ExecContext(ctx, "SELECT pg_advisory_lock(420420)"); err != nil {
		t.Fatalf("acquire advisory lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = lockConn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(420420)")
		_ = lockConn.Close()
	})

	resetWebhooksSchema(t, ctx, db)

	return ctx, NewRepository(db)
}

// resetWebhooksSchema replays the webhook migration pair through the
// database/sql connection the repository uses.
func resetWebhooksSchema(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()

	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot failed: %v", err)
	}

	for _, name := range []string{"000007_webhooks.down.sql", "000007_webhooks.up.sql"} {
		path := filepath.Join(root, "migrations", name)
		contents, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read migration %s: %v", name, err)
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
}
