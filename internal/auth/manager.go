package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/models"
)

var (
	// ErrSessionNotFound means the refresh token is unknown or already rotated.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired means the refresh token outlived its session.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrInvalidToken means an access token failed verification.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrTokenExpired means an access token is past its expiry.
	ErrTokenExpired = errors.New("access token expired")
)

const (
	issuer         = "cinevault"
	audience       = "cinevault-api"
	tokenUseAccess = "access"

	refreshTokenPrefix = "cvr_"
	refreshTokenBytes  = 32
)

// SessionStore persists refresh sessions across restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
}

// Session is one outstanding refresh token.
type Session struct {
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Use string `json:"use"`
}

// Manager signs short-lived HS256 access tokens and rotates opaque refresh
// tokens through a SessionStore. Every refresh consumes the presented token.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	store SessionStore
	now   func() time.Time
}

// NewManager panics on an empty secret or nil store.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if secret == "" {
		panic("auth: signing secret must not be empty")
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue starts a new session for userID.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}
	now := m.now()

	access, accessExpires, err := m.signAccess(userID, now)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return models.SessionTokens{}, err
	}

	session := Session{RefreshToken: refresh, UserID: userID, ExpiresAt: now.Add(m.refreshTTL)}
	if err := m.store.Save(ctx, session); err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

func (m *Manager) signAccess(userID string, now time.Time) (string, time.Time, error) {
	expires := now.Add(m.accessTTL)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Use: tokenUseAccess,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// Verify returns the user id an access token was issued for.
func (m *Manager) Verify(accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrInvalidToken
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", ErrInvalidToken
	case claims.Use != tokenUseAccess || claims.Subject == "":
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Refresh consumes refreshToken and issues a fresh pair for the same user.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}
	// Delete before checking expiry so an expired token cannot be retried.
	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, err
	}
	if m.now().After(session.ExpiresAt) {
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}
	return m.Issue(ctx, session.UserID)
}

// Revoke ends the session behind refreshToken. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	_ = m.store.Delete(ctx, refreshToken)
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return refreshTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
