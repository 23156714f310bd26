// Command bootstrap-admin seeds an organization and an admin user, then
// mints a signed bearer token for that user. Intended for local setup and
// first-deploy provisioning; the token is printed once and never stored.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/token"
)

type output struct {
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Token          string `json:"token"`
	ExpiresAt      string `json:"expires_at"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "HMAC secret used to sign the token")
		audience    = flag.String("audience", token.DefaultAudience, "Audience claim for the minted token")
		orgID       = flag.String("org-id", "", "Existing organization ID (creates one when empty)")
		orgName     = flag.String("org-name", "bootstrap", "Organization name when creating")
		email       = flag.String("email", "admin@kernfi.local", "Admin user email")
		fullName    = flag.String("full-name", "Bootstrap Admin", "Admin user full name")
		ttl         = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	org, err := ensureOrg(ctx, repo, *orgID, *orgName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	user, err := ensureAdmin(ctx, repo, org.ID, *email, *fullName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	expiresAt := time.Now().UTC().Add(*ttl)
	signed, err := mintToken(*jwtSecret, *audience, user, expiresAt)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}

	out := output{
		OrganizationID: org.ID,
		UserID:         user.ID,
		Email:          user.Email,
		Token:          signed,
		ExpiresAt:      expiresAt.Format(time.RFC3339),
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func ensureOrg(ctx context.Context, repo *repository.Repository, id, name string) (*model.Organization, error) {
	if id != "" {
		org, err := repo.GetOrganizationByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup organization %s: %w", id, err)
		}
		return org, nil
	}

	now := time.Now().UTC()
	org := &model.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateOrganization(ctx, org); err != nil {
		if errors.Is(err, repository.ErrOrgExists) {
			return nil, fmt.Errorf("organization %q already exists; pass -org-id to reuse it", name)
		}
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

func ensureAdmin(ctx context.Context, repo *repository.Repository, orgID, email, fullName string) (*model.User, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		if existing.OrganizationID != orgID {
			return nil, fmt.Errorf("user %s belongs to organization %s", email, existing.OrganizationID)
		}
		if existing.Role != model.RoleAdmin {
			return nil, fmt.Errorf("user %s exists with role %s", email, existing.Role)
		}
		return existing, nil
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Email:          email,
		Role:           model.RoleAdmin,
		FullName:       fullName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func mintToken(secret, audience string, user *model.User, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
