package handlers

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinevault/backend/internal/auth"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/repositories"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateSignUp returns a client-facing message when req cannot be accepted.
func validateSignUp(req signUpRequest) string {
	switch {
	case req.Email == "" || req.Password == "":
		return "email and password are required"
	case len(req.Password) < minPasswordLength:
		return "password must be at least 8 characters"
	case len(req.Password) > maxPasswordBytes:
		return "password must be at most 72 bytes"
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return "invalid email address"
	}
	return ""
}

// startSession issues tokens for user and writes them with status.
func (h AuthHandler) startSession(ctx context.Context, w http.ResponseWriter, status int, user models.User) {
	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respondJSON(ctx, w, status, authResponse{Tokens: tokens, User: user})
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		logger.Warn("login unknown email", "email", email)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		logger.Error("login user lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to sign in")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := h.now()
	if err := h.Users.TouchLastSeen(ctx, user.ID, now); err != nil {
		logger.Warn("failed to record last seen", "error", err, "userId", user.ID)
	} else {
		user.LastSeenAt = &now
	}
	h.startSession(ctx, w, http.StatusOK, user)
}

// SignUp handles POST /api/v1/auth/signup. New accounts always start with the
// user role.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if msg := validateSignUp(req); msg != "" {
		respondError(ctx, w, http.StatusBadRequest, msg)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		Password:    string(hashed),
		DisplayName: cmp.Or(strings.TrimSpace(req.DisplayName), displayNameFromEmail(req.Email)),
		Role:        models.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeenAt:  &now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", req.Email)
			respondError(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}
	logger.Info("account created", "userId", user.ID)
	h.startSession(ctx, w, http.StatusCreated, user)
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondError(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "unable to refresh session")
			return
		}
		logger.Error("refresh failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout by revoking the refresh token.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		h.Sessions.Revoke(ctx, token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset requests. The
// response does not reveal whether the account exists.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid password reset payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		respondError(ctx, w, http.StatusBadRequest, "email is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	if user, err := h.Users.FindByEmail(ctx, req.Email); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("password reset lookup failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to process password reset")
			return
		}
	} else {
		logger.Info("password reset requested", "userId", user.ID)
	}

	respondJSON(ctx, w, http.StatusAccepted, map[string]string{
		"status": "If an account exists for that email, password reset instructions have been sent.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
	User   models.User          `json:"user,omitzero"`
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "Viewer"
	}
	return local
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
