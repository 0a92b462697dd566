package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/models"
)

// PostgresEngagementRepository persists reactions, ratings and favorites and
// keeps the aggregate counters on videos in step with them.
type PostgresEngagementRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresEngagementRepository constructs an engagement repository backed by PostgreSQL.
func NewPostgresEngagementRepository(pool db.Pool) *PostgresEngagementRepository {
	return &PostgresEngagementRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// lockPublished takes a row lock on a published video so concurrent toggles on
// the same video recompute its counters one at a time.
func lockPublished(ctx context.Context, tx pgx.Tx, videoID string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock video: %w", err)
	}
	if status != models.VideoStatusPublished {
		return ErrNotFound
	}
	return nil
}

// ToggleReaction applies the reaction toggle for (user, video): a first reaction
// is inserted, a different kind overwrites it and the same kind removes it. It
// returns the reaction now held (empty when removed) and the refreshed stats.
func (r *PostgresEngagementRepository) ToggleReaction(ctx context.Context, userID, videoID, kind string) (string, models.VideoStats, error) {
	var (
		current string
		stats   models.VideoStats
	)

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPublished(ctx, tx, videoID); err != nil {
			return err
		}

		var existing string
		err := tx.QueryRow(ctx, `
            SELECT kind FROM reactions WHERE video_id = $1 AND user_id = $2
        `, videoID, userID).Scan(&existing)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("select reaction: %w", err)
		}

		switch {
		case existing == "":
			_, err = tx.Exec(ctx, `
                INSERT INTO reactions (video_id, user_id, kind, created_at)
                VALUES ($1, $2, $3, $4)
            `, videoID, userID, kind, r.now())
			current = kind
		case existing == kind:
			_, err = tx.Exec(ctx, `DELETE FROM reactions WHERE video_id = $1 AND user_id = $2`, videoID, userID)
			current = ""
		default:
			_, err = tx.Exec(ctx, `
                UPDATE reactions SET kind = $3, created_at = $4
                WHERE video_id = $1 AND user_id = $2
            `, videoID, userID, kind, r.now())
			current = kind
		}
		if err != nil {
			if mapped := mapError(err); isMapped(mapped) {
				return mapped
			}
			return fmt.Errorf("write reaction: %w", err)
		}

		stats, err = scanStats(tx.QueryRow(ctx, `
            UPDATE videos
            SET reaction_count = (SELECT count(*) FROM reactions WHERE video_id = $1)
            WHERE id = $1
            RETURNING `+statsColumns, videoID))
		if err != nil {
			return fmt.Errorf("refresh reaction count: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", models.VideoStats{}, err
	}

	return current, stats, nil
}

// Rate records the user's single rating for a video, replacing any earlier
// value, and returns the refreshed aggregate.
func (r *PostgresEngagementRepository) Rate(ctx context.Context, userID, videoID string, value int) (models.VideoStats, error) {
	var stats models.VideoStats

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPublished(ctx, tx, videoID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO ratings (video_id, user_id, value, created_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (video_id, user_id)
            DO UPDATE SET value = EXCLUDED.value, created_at = EXCLUDED.created_at
        `, videoID, userID, value, r.now())
		if err != nil {
			if mapped := mapError(err); isMapped(mapped) {
				return mapped
			}
			return fmt.Errorf("upsert rating: %w", err)
		}

		stats, err = scanStats(tx.QueryRow(ctx, `
            UPDATE videos
            SET rating = COALESCE((SELECT avg(value)::FLOAT8 FROM ratings WHERE video_id = $1), 0),
                rating_count = (SELECT count(*) FROM ratings WHERE video_id = $1)
            WHERE id = $1
            RETURNING `+statsColumns, videoID))
		if err != nil {
			return fmt.Errorf("refresh rating aggregate: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.VideoStats{}, err
	}

	return stats, nil
}

// ToggleFavorite flips whether the video is in the user's favorites and
// reports the new state.
func (r *PostgresEngagementRepository) ToggleFavorite(ctx context.Context, userID, videoID string) (bool, error) {
	var favorited bool

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockPublished(ctx, tx, videoID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND video_id = $2`, userID, videoID)
		if err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
		if tag.RowsAffected() > 0 {
			favorited = false
			return nil
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO favorites (user_id, video_id, created_at)
            VALUES ($1, $2, $3)
        `, userID, videoID, r.now())
		if err != nil {
			if mapped := mapError(err); isMapped(mapped) {
				return mapped
			}
			return fmt.Errorf("insert favorite: %w", err)
		}
		favorited = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return favorited, nil
}

// State returns the caller's reaction, rating and favorite flag for a video.
func (r *PostgresEngagementRepository) State(ctx context.Context, userID, videoID string) (models.Engagement, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Engagement{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		reaction *string
		rating   *int
		state    models.Engagement
	)
	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT kind FROM reactions WHERE video_id = $1 AND user_id = $2),
            (SELECT value FROM ratings WHERE video_id = $1 AND user_id = $2),
            EXISTS (SELECT 1 FROM favorites WHERE video_id = $1 AND user_id = $2)
    `, videoID, userID).Scan(&reaction, &rating, &state.Favorited)
	if err != nil {
		return models.Engagement{}, fmt.Errorf("select engagement state: %w", err)
	}

	if reaction != nil {
		state.Reaction = *reaction
	}
	if rating != nil {
		state.Rating = *rating
	}
	return state, nil
}

// ListFavorites returns the user's favorited videos that are still published,
// newest favorite first.
func (r *PostgresEngagementRepository) ListFavorites(ctx context.Context, userID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.description, v.video_url, v.thumbnail_url, v.thumbnail_hint, v.rating, v.rating_count,
               v.reaction_count, v.download_count, v.view_count, v.status, v.access_level, v.created_at, v.trashed_at
        FROM favorites f
        JOIN videos v ON v.id = f.video_id
        WHERE f.user_id = $1 AND v.status = 'published'
        ORDER BY f.created_at DESC, v.id ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}

	return collectVideos(rows)
}
