package handlers

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
)

// LibraryHandler serves a user's favorites and playlists.
type LibraryHandler struct {
	Favorites FavoriteStore
	Playlists PlaylistStore
	Users     UserStore
	NowFunc   func() time.Time
}

type createPlaylistRequest struct {
	Name    string `json:"name"`
	VideoID string `json:"videoId,omitempty"`
}

// Favorites handles GET /api/v1/favorites.
func (h LibraryHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentViewer(ctx, h.Users)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load viewer")
		return
	}

	videos, err := h.Favorites.ListFavorites(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list favorites")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]models.Video{"videos": redactAll(videos, viewer)})
}

// Playlists handles GET /api/v1/playlists.
func (h LibraryHandler) Playlists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlists, err := h.Playlists.List(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list playlists")
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]models.Playlist{"playlists": playlists})
}

// CreatePlaylist handles POST /api/v1/playlists.
func (h LibraryHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 100 {
		respondError(ctx, w, http.StatusBadRequest, "playlist name must be between 1 and 100 characters")
		return
	}

	videoIDs := []string{}
	if req.VideoID != "" {
		id, err := uuid.Parse(req.VideoID)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid video id")
			return
		}
		videoIDs = append(videoIDs, id.String())
	}

	playlist := models.Playlist{
		ID:        uuid.NewString(),
		UserID:    logging.UserIDFromContext(ctx),
		Name:      name,
		VideoIDs:  videoIDs,
		CreatedAt: h.now(),
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondStoreError(ctx, w, err, "failed to create playlist")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]models.Playlist{"playlist": playlist})
}

// SaveMembership handles PUT /api/v1/playlists/membership. The video ends up
// in exactly the selected playlists, all in one transaction.
func (h LibraryHandler) SaveMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.PlaylistMembership
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	videoID, err := uuid.Parse(req.VideoID)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video id")
		return
	}
	req.VideoID = videoID.String()

	selected := make([]string, 0, len(req.PlaylistIDs))
	seen := make(map[string]bool, len(req.PlaylistIDs))
	for _, raw := range req.PlaylistIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid playlist id")
			return
		}
		if !seen[id.String()] {
			seen[id.String()] = true
			selected = append(selected, id.String())
		}
	}
	req.PlaylistIDs = selected

	playlists, err := h.Playlists.SaveMembership(ctx, logging.UserIDFromContext(ctx), req)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to save playlists")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]models.Playlist{"playlists": playlists})
}

func (h LibraryHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
