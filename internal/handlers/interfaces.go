package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cinevault/backend/internal/engagement"
	"github.com/cinevault/backend/internal/metadata"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/pagination"
	"github.com/cinevault/backend/internal/trending"
)

// UserStore captures the persistence operations required by the auth and
// profile handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) (models.User, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	Counts(ctx context.Context, id string) (favorites, playlists int, err error)
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
	Verify(accessToken string) (string, error)
}

// VideoStore captures catalog persistence.
type VideoStore interface {
	Create(ctx context.Context, v models.Video) error
	ListHome(ctx context.Context) ([]models.Video, error)
	ListLatest(ctx context.Context, after pagination.Cursor, limit int) ([]models.Video, error)
	Get(ctx context.Context, id string) (models.Video, error)
	Trash(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListTrashed(ctx context.Context) ([]models.Video, error)
}

// TrendingRanker returns the current trending ranking. Invalidate discards
// any cached ranking.
type TrendingRanker interface {
	Trending(ctx context.Context, limit int) ([]trending.Ranked, error)
	Invalidate(ctx context.Context) error
}

// EngagementService applies toggles and counters.
type EngagementService interface {
	ToggleReaction(ctx context.Context, userID, videoID, kind string) (engagement.ReactionResult, error)
	Rate(ctx context.Context, userID, videoID string, value int) (models.VideoStats, error)
	ToggleFavorite(ctx context.Context, userID, videoID string) (bool, error)
	State(ctx context.Context, userID, videoID string) (models.Engagement, error)
	RecordView(ctx context.Context, videoID string) (models.VideoStats, error)
	RecordDownload(ctx context.Context, videoID string) (models.VideoStats, error)
}

// FavoriteStore lists a user's favorites.
type FavoriteStore interface {
	ListFavorites(ctx context.Context, userID string) ([]models.Video, error)
}

// PlaylistStore captures playlist persistence.
type PlaylistStore interface {
	List(ctx context.Context, userID string) ([]models.Playlist, error)
	Create(ctx context.Context, playlist models.Playlist) error
	SaveMembership(ctx context.Context, userID string, membership models.PlaylistMembership) ([]models.Playlist, error)
}

// BillingService implements the pro plan checkout and its review.
type BillingService interface {
	Price() float64
	Providers(ctx context.Context) ([]models.ServiceProvider, error)
	Submit(ctx context.Context, user models.User, cards []models.Card) (models.Payment, error)
	History(ctx context.Context, userID string) ([]models.Payment, error)
	Pending(ctx context.Context) ([]models.Payment, error)
	Approve(ctx context.Context, paymentID string) (models.Payment, error)
	Reject(ctx context.Context, paymentID string) (models.Payment, error)
}

// VideoMetadataProvider resolves video details for upload autofill.
type VideoMetadataProvider interface {
	Lookup(ctx context.Context, url string) (metadata.Metadata, error)
}

// ThumbnailStorage persists uploaded thumbnail images.
type ThumbnailStorage interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

// RetentionPolicy reports when a trashed video will be purged.
type RetentionPolicy interface {
	PurgeAt(trashedAt time.Time) time.Time
}

// LiveHub streams stats to websocket listeners.
type LiveHub interface {
	Serve(w http.ResponseWriter, r *http.Request, videoID string, snapshot models.VideoStats) error
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
