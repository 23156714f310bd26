package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/token"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator *auth.Authenticator
	Metrics       metrics.Recorder
}

// Auth returns a middleware that authenticates API requests. It verifies
// the bearer credential, resolves the subject's organization, and injects
// the resulting identity into the request context. The identity is built
// fresh on every request; nothing identity-related is cached across
// requests.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := cfg.Authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				reason := authFailureReason(err)

				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if cfg.Metrics != nil {
					cfg.Metrics.IncAuthFailure(reason)
				}
				writeAuthError(w)
				return
			}

			cfg.Logger.Info("authentication successful",
				slog.String("user_id", identity.UserID),
				slog.String("org_id", identity.OrgID),
				slog.String("role", string(identity.Role)),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			if cfg.Metrics != nil {
				cfg.Metrics.IncAuthSuccess()
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authFailureReason maps an authentication error to a log label. The
// label never reaches the response body.
func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, token.ErrMissingSubject):
		return "missing_subject"
	case errors.Is(err, token.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, auth.ErrUnknownSubject):
		return "unknown_subject"
	default:
		return "internal_error"
	}
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing credentials"}}`))
}
