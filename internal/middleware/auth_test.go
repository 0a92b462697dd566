package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/repositories"
)

type verifierStub map[string]string

func (v verifierStub) Verify(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type userLookupStub map[string]models.User

func (u userLookupStub) FindByID(_ context.Context, id string) (models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return models.User{}, repositories.ErrNotFound
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", logging.UserIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	verifier := verifierStub{"good": "user-1"}

	tests := []struct {
		name     string
		required bool
		header   string
		status   int
		user     string
	}{
		{name: "required valid", required: true, header: "Bearer good", status: http.StatusOK, user: "user-1"},
		{name: "required missing", required: true, status: http.StatusUnauthorized},
		{name: "required invalid", required: true, header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "optional anonymous", required: false, status: http.StatusOK},
		{name: "optional invalid", required: false, header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "optional valid lower scheme", required: false, header: "bearer good", status: http.StatusOK, user: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Authenticate(verifier, tt.required)(echoUser())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d got %d", tt.status, rec.Code)
			}
			if rec.Header().Get("X-User") != tt.user {
				t.Fatalf("expected user %q got %q", tt.user, rec.Header().Get("X-User"))
			}
		})
	}
}

func TestAuthenticateWebsocketQueryToken(t *testing.T) {
	handler := Authenticate(verifierStub{"good": "user-1"}, true)(echoUser())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/v1/live?access_token=good", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-User") != "user-1" {
		t.Fatalf("expected query token accepted for upgrades, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me?access_token=good", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected query token ignored for plain requests, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	users := userLookupStub{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
		"user-1":  {ID: "user-1", Role: models.RolePro},
	}
	handler := RequireAdmin(users)(echoUser())

	cases := map[string]int{
		"admin-1": http.StatusOK,
		"user-1":  http.StatusForbidden,
		"gone":    http.StatusUnauthorized,
		"":        http.StatusUnauthorized,
	}
	for userID, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payments", nil)
		if userID != "" {
			req = req.WithContext(logging.WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("user %q: expected %d got %d", userID, want, rec.Code)
		}
	}
}
