package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kernfi/kernfi/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// coreMigrations lists the migration pairs that make up the bookkeeping
// schema, in dependency order.
var coreMigrations = []string{
	"000001_organizations",
	"000002_users",
	"000003_categories",
	"000004_documents",
	"000005_transactions",
	"000006_classification",
}

// ResetCoreSchema drops and recreates the bookkeeping schema for tests.
func ResetCoreSchema(ctx context.Context, pool *pgxpool.Pool) error {
	// Down migrations run in reverse dependency order.
	for i := len(coreMigrations) - 1; i >= 0; i-- {
		if err := applyMigration(ctx, pool, coreMigrations[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range coreMigrations {
		if err := applyMigration(ctx, pool, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

// ResetWebhooksSchema drops and recreates the webhooks schema for tests.
func ResetWebhooksSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := applyMigration(ctx, pool, "000007_webhooks.down.sql"); err != nil {
		return err
	}
	return applyMigration(ctx, pool, "000007_webhooks.up.sql")
}

// ResetAuditSchema drops and recreates the audit schema for tests.
func ResetAuditSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := applyMigration(ctx, pool, "000008_audit.down.sql"); err != nil {
		return err
	}
	return applyMigration(ctx, pool, "000008_audit.up.sql")
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, filename string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	sql, err := os.ReadFile(filepath.Join(root, "migrations", filename))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filename, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", filename, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestOrganization creates a test organization with a unique name.
func NewTestOrganization(t testing.TB) *model.Organization {
	t.Helper()
	now := time.Now().UTC()
	return &model.Organization{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("org-%d", now.UnixNano()),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUser creates a test user in the given organization.
func NewTestUser(t testing.TB, orgID string, role model.Role) *model.User {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.NewString()
	return &model.User{
		ID:             id,
		OrganizationID: orgID,
		Email:          fmt.Sprintf("user-%s@example.com", id[:8]),
		Role:           role,
		FullName:       "Test User",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewTestTransaction creates a pending transaction in the given
// organization.
func NewTestTransaction(t testing.TB, orgID string) *model.Transaction {
	t.Helper()
	now := time.Now().UTC()
	return &model.Transaction{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Date:           now.Truncate(24 * time.Hour),
		Amount:         -42.50,
		Description:    "Office supplies",
		Merchant:       "Staples",
		Status:         model.TransactionStatusPending,
		PaymentMethod:  model.PaymentMethodCard,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewTestDocument creates a pending document in the given organization.
func NewTestDocument(t testing.TB, orgID string) *model.Document {
	t.Helper()
	now := time.Now().UTC()
	return &model.Document{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Filename:       fmt.Sprintf("statement-%d.pdf", now.UnixNano()),
		FileType:       "application/pdf",
		FileSize:       2048,
		StoragePath:    fmt.Sprintf("/tmp/uploads/%s", uuid.NewString()),
		Status:         model.DocumentStatusPending,
		UploadedAt:     now,
	}
}

// NewTestCategory creates an org-owned expense category.
func NewTestCategory(t testing.TB, orgID string) *model.Category {
	t.Helper()
	now := time.Now().UTC()
	return &model.Category{
		ID:             uuid.NewString(),
		OrganizationID: &orgID,
		Code:           fmt.Sprintf("6%03d", now.UnixNano()%1000),
		Name:           "Office Expenses",
		Type:           model.CategoryTypeExpense,
		IsActive:       true,
		CreatedAt:      now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
