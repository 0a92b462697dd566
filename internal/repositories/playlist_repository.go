package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cinevault/backend/internal/db"
	"github.com/cinevault/backend/internal/models"
)

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for playlists.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

type playlistQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listPlaylists(ctx context.Context, q playlistQuerier, userID string, forUpdate bool) ([]models.Playlist, error) {
	query := `
        SELECT id, user_id, name, video_ids, created_at
        FROM playlists
        WHERE user_id = $1
        ORDER BY created_at ASC, id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.VideoIDs, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		if p.VideoIDs == nil {
			p.VideoIDs = []string{}
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	return playlists, nil
}

// List returns the user's playlists, oldest first.
func (r *PostgresPlaylistRepository) List(ctx context.Context, userID string) ([]models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return listPlaylists(ctx, conn, userID, false)
}

// Create stores a new playlist. A second "Watch Later" playlist for the same
// user yields ErrConflict.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	videoIDs := playlist.VideoIDs
	if videoIDs == nil {
		videoIDs = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (id, user_id, name, video_ids, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, playlist.ID, playlist.UserID, playlist.Name, videoIDs, playlist.CreatedAt)
	if err != nil {
		if mapped := mapError(err); isMapped(mapped) {
			return mapped
		}
		return fmt.Errorf("insert playlist: %w", err)
	}

	return nil
}

// SaveMembership makes the video a member of exactly the selected playlists of
// the user in one transaction. The Watch Later playlist follows the WatchLater
// flag and is created on demand. Selecting a playlist the user does not own
// aborts the whole change with ErrNotFound.
func (r *PostgresPlaylistRepository) SaveMembership(ctx context.Context, userID string, membership models.PlaylistMembership) ([]models.Playlist, error) {
	var result []models.Playlist

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM videos WHERE id = $1`, membership.VideoID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select video: %w", err)
		}
		if status != models.VideoStatusPublished {
			return ErrNotFound
		}

		playlists, err := listPlaylists(ctx, tx, userID, true)
		if err != nil {
			return err
		}

		var watchLater *models.Playlist
		owned := make(map[string]bool, len(playlists))
		for i := range playlists {
			owned[playlists[i].ID] = true
			if playlists[i].Name == models.WatchLaterName {
				watchLater = &playlists[i]
			}
		}

		selected := make(map[string]bool, len(membership.PlaylistIDs)+1)
		for _, id := range membership.PlaylistIDs {
			if !owned[id] {
				return ErrNotFound
			}
			selected[id] = true
		}

		if watchLater != nil {
			selected[watchLater.ID] = membership.WatchLater
		} else if membership.WatchLater {
			created := models.Playlist{
				ID:        uuid.NewString(),
				UserID:    userID,
				Name:      models.WatchLaterName,
				VideoIDs:  []string{membership.VideoID},
				CreatedAt: time.Now().UTC(),
			}
			_, err := tx.Exec(ctx, `
                INSERT INTO playlists (id, user_id, name, video_ids, created_at)
                VALUES ($1, $2, $3, $4, $5)
            `, created.ID, created.UserID, created.Name, created.VideoIDs, created.CreatedAt)
			if err != nil {
				if mapped := mapError(err); isMapped(mapped) {
					return mapped
				}
				return fmt.Errorf("create watch later playlist: %w", err)
			}
		}

		for _, p := range playlists {
			has := p.Contains(membership.VideoID)
			switch {
			case selected[p.ID] && !has:
				_, err = tx.Exec(ctx, `
                    UPDATE playlists SET video_ids = array_append(video_ids, $2::TEXT) WHERE id = $1
                `, p.ID, membership.VideoID)
			case !selected[p.ID] && has:
				_, err = tx.Exec(ctx, `
                    UPDATE playlists SET video_ids = array_remove(video_ids, $2::TEXT) WHERE id = $1
                `, p.ID, membership.VideoID)
			default:
				continue
			}
			if err != nil {
				return fmt.Errorf("update playlist %s: %w", p.ID, err)
			}
		}

		result, err = listPlaylists(ctx, tx, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
