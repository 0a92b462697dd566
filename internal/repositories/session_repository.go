package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinevault/backend/internal/auth"
	"github.com/cinevault/backend/internal/db"
)

var _ auth.SessionStore = (*PostgresSessionStore)(nil)

// PostgresSessionStore persists refresh sessions. Only the SHA-256 of a
// refresh token is written; the token itself never reaches the database.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// exec runs a single statement on a pooled connection.
func (s *PostgresSessionStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Save records a newly issued session. Saving a session for a deleted user
// yields ErrNotFound.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	_, err := s.exec(ctx, `
        INSERT INTO sessions (token_hash, user_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (token_hash)
        DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
    `, auth.HashToken(session.RefreshToken), session.UserID, session.ExpiresAt.UTC())
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, ErrNotFound) {
			return mapped
		}
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Find returns the session issued for refreshToken, or auth.ErrSessionNotFound.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	session := auth.Session{RefreshToken: refreshToken}
	err = conn.QueryRow(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE token_hash = $1`,
		auth.HashToken(refreshToken),
	).Scan(&session.UserID, &session.ExpiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return auth.Session{}, auth.ErrSessionNotFound
	case err != nil:
		return auth.Session{}, fmt.Errorf("find session: %w", err)
	}

	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

// Delete revokes refreshToken. Unknown tokens yield auth.ErrSessionNotFound.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	n, err := s.exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, auth.HashToken(refreshToken))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions that expired before now and reports how many
// were dropped.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}
