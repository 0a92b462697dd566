package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/models"
)

// withTx runs fn inside a transaction on a pooled connection, committing when
// fn returns nil and rolling back otherwise.
func withTx(ctx context.Context, pool db.Pool, fn func(tx pgx.Tx) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, display_name, photo_url, role, created_at, updated_at,
        last_seen_at, pro_activated_at, rejected_payments`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.PhotoURL, &user.Role,
		&user.CreatedAt, &user.UpdatedAt, &user.LastSeenAt, &user.ProActivatedAt, &user.RejectedPayments,
	)
	return user, err
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, display_name, photo_url, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, user.ID, user.Email, user.Password, user.DisplayName, user.PhotoURL, role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if mapped := mapError(err); isMapped(mapped) {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, query, arg))
	if err != nil {
		if mapped := mapError(err); isMapped(mapped) {
			return models.User{}, mapped
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// UpdateDisplayName changes the name shown next to the user's activity.
func (r *PostgresUserRepository) UpdateDisplayName(ctx context.Context, id, displayName string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `
        UPDATE users
        SET display_name = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+userColumns,
		id, displayName, time.Now().UTC()))
	if err != nil {
		if mapped := mapError(err); isMapped(mapped) {
			return models.User{}, mapped
		}
		return models.User{}, fmt.Errorf("update display name: %w", err)
	}

	return user, nil
}

// TouchLastSeen records that the user just signed in.
func (r *PostgresUserRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Counts returns how many favorites and playlists the user owns.
func (r *PostgresUserRepository) Counts(ctx context.Context, id string) (favorites, playlists int, err error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT count(*) FROM favorites f JOIN videos v ON v.id = f.video_id
             WHERE f.user_id = $1 AND v.status = 'published'),
            (SELECT count(*) FROM playlists WHERE user_id = $1)
    `, id).Scan(&favorites, &playlists)
	if err != nil {
		return 0, 0, fmt.Errorf("count user collections: %w", err)
	}

	return favorites, playlists, nil
}
