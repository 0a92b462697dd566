package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/repositories"
)

// TokenVerifier validates access tokens and returns the user id they carry.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// UserLookup loads the authenticated user.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Authenticate resolves the bearer token into a user id stored on the request
// context. When required is false, anonymous requests pass through; a token
// that is present but invalid is always rejected.
func Authenticate(verifier TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				if required {
					writeError(r.Context(), w, http.StatusUnauthorized, "authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("access token rejected", "error", err)
				writeError(r.Context(), w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), userID)))
		})
	}
}

// RequireAdmin rejects authenticated users whose role is not admin. It must
// run after Authenticate.
func RequireAdmin(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := logging.UserIDFromContext(ctx)
			if userID == "" {
				writeError(ctx, w, http.StatusUnauthorized, "authentication required")
				return
			}

			user, err := users.FindByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					writeError(ctx, w, http.StatusUnauthorized, "account no longer exists")
					return
				}
				logging.FromContext(ctx).Error("admin lookup failed", "error", err)
				writeError(ctx, w, http.StatusInternalServerError, "unable to verify permissions")
				return
			}
			if !user.IsAdmin() {
				writeError(ctx, w, http.StatusForbidden, "admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}
	// Browsers cannot set headers on websocket handshakes.
	if token := r.URL.Query().Get("access_token"); token != "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return token, true
	}
	return "", false
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.FromContext(ctx).Error("encode error response", "status", status, "error", err)
	}
}
