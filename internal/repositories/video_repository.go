package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/pagination"
)

// Counter names a monotonically increasing video counter.
type Counter string

// Counters that clients may bump.
const (
	CounterView     Counter = "view"
	CounterDownload Counter = "download"
)

func (c Counter) column() (string, error) {
	switch c {
	case CounterView:
		return "view_count", nil
	case CounterDownload:
		return "download_count", nil
	default:
		return "", fmt.Errorf("unknown counter %q", string(c))
	}
}

const videoColumns = `id, title, description, video_url, thumbnail_url, thumbnail_hint, rating, rating_count,
        reaction_count, download_count, view_count, status, access_level, created_at, trashed_at`

const statsColumns = `id, rating, rating_count, reaction_count, download_count, view_count`

func scanVideo(row pgx.Row) (models.Video, error) {
	var v models.Video
	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL, &v.ThumbnailHint, &v.Rating, &v.RatingCount,
		&v.ReactionCount, &v.DownloadCount, &v.ViewCount, &v.Status, &v.AccessLevel, &v.CreatedAt, &v.TrashedAt,
	)
	return v, err
}

func scanStats(row pgx.Row) (models.VideoStats, error) {
	var s models.VideoStats
	err := row.Scan(&s.VideoID, &s.Rating, &s.RatingCount, &s.ReactionCount, &s.DownloadCount, &s.ViewCount)
	return s, err
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for the catalog.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new catalog entry.
func (r *PostgresVideoRepository) Create(ctx context.Context, v models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if v.Status == "" {
		v.Status = models.VideoStatusPublished
	}
	if v.AccessLevel == "" {
		v.AccessLevel = models.AccessFree
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, title, description, video_url, thumbnail_url, thumbnail_hint, status, access_level, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, v.ID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.ThumbnailHint, v.Status, v.AccessLevel, v.CreatedAt)
	if err != nil {
		if mapped := mapError(err); isMapped(mapped) {
			return mapped
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// ListHome returns every published video ordered by title.
func (r *PostgresVideoRepository) ListHome(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE status = 'published'
        ORDER BY title ASC, id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query home videos: %w", err)
	}

	return collectVideos(rows)
}

// ListLatest returns up to limit published videos older than the cursor, newest first.
func (r *PostgresVideoRepository) ListLatest(ctx context.Context, after pagination.Cursor, limit int) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var rows pgx.Rows
	if after.IsZero() {
		rows, err = conn.Query(ctx, `
            SELECT `+videoColumns+`
            FROM videos
            WHERE status = 'published'
            ORDER BY created_at DESC, id DESC
            LIMIT $1
        `, limit)
	} else {
		rows, err = conn.Query(ctx, `
            SELECT `+videoColumns+`
            FROM videos
            WHERE status = 'published'
              AND (created_at < $1 OR (created_at = $1 AND id < $2::UUID))
            ORDER BY created_at DESC, id DESC
            LIMIT $3
        `, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query latest videos: %w", err)
	}

	return collectVideos(rows)
}

// Get loads a video regardless of its status.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	v, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return v, nil
}

// Increment bumps a counter on a published video and returns the new stats.
func (r *PostgresVideoRepository) Increment(ctx context.Context, id string, counter Counter) (models.VideoStats, error) {
	column, err := counter.column()
	if err != nil {
		return models.VideoStats{}, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	stats, err := scanStats(conn.QueryRow(ctx, `
        UPDATE videos
        SET `+column+` = `+column+` + 1
        WHERE id = $1 AND status = 'published'
        RETURNING `+statsColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoStats{}, ErrNotFound
		}
		return models.VideoStats{}, fmt.Errorf("increment %s: %w", column, err)
	}

	return stats, nil
}

// Trash soft-deletes a published video.
func (r *PostgresVideoRepository) Trash(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, `
        UPDATE videos
        SET status = 'trashed', trashed_at = $2
        WHERE id = $1 AND status = 'published'
    `, at.UTC())
}

// Restore returns a trashed video to the published listings.
func (r *PostgresVideoRepository) Restore(ctx context.Context, id string) error {
	return r.transition(ctx, id, `
        UPDATE videos
        SET status = 'published', trashed_at = NULL
        WHERE id = $1 AND status = 'trashed'
    `)
}

// transition applies a guarded status change. A video that exists but is not
// in the expected state yields ErrConflict.
func (r *PostgresVideoRepository) transition(ctx context.Context, id, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check video exists: %w", err)
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

// Delete permanently removes a video and its dependent engagement rows.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListTrashed returns trashed videos, most recently trashed first.
func (r *PostgresVideoRepository) ListTrashed(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE status = 'trashed'
        ORDER BY trashed_at DESC, id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query trashed videos: %w", err)
	}

	return collectVideos(rows)
}

// PurgeTrashedBefore hard-deletes videos trashed before cutoff and returns
// the removed ids.
func (r *PostgresVideoRepository) PurgeTrashedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        DELETE FROM videos
        WHERE status = 'trashed' AND trashed_at < $1
        RETURNING id
    `, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("purge trashed videos: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect purged ids: %w", err)
	}
	return ids, nil
}

// TrendingCandidates returns published videos created since the given instant.
func (r *PostgresVideoRepository) TrendingCandidates(ctx context.Context, since time.Time) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE status = 'published' AND created_at >= $1
        ORDER BY created_at DESC, id ASC
    `, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query trending candidates: %w", err)
	}

	return collectVideos(rows)
}

// InteractionsSince loads every reaction and rating on the given videos made
// since the given instant, in a single round trip.
func (r *PostgresVideoRepository) InteractionsSince(ctx context.Context, videoIDs []string, since time.Time) ([]models.Interaction, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT video_id, 'reaction' AS kind, 0 AS value, created_at
        FROM reactions
        WHERE video_id = ANY($1::UUID[]) AND created_at >= $2
        UNION ALL
        SELECT video_id, 'rating' AS kind, value, created_at
        FROM ratings
        WHERE video_id = ANY($1::UUID[]) AND created_at >= $2
    `, videoIDs, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []models.Interaction
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.VideoID, &in.Kind, &in.Value, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}

	return interactions, nil
}
