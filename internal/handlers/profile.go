package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	Users UserStore
}

type profileResponse struct {
	User          models.User `json:"user"`
	FavoriteCount int         `json:"favoriteCount"`
	PlaylistCount int         `json:"playlistCount"`
}

type updateProfileRequest struct {
	DisplayName string `json:"displayName"`
}

// Me handles GET /api/v1/me.
func (h ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := logging.UserIDFromContext(ctx)

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load profile")
		return
	}

	favorites, playlists, err := h.Users.Counts(ctx, userID)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse{User: user, FavoriteCount: favorites, PlaylistCount: playlists})
}

// UpdateMe handles PATCH /api/v1/me.
func (h ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" || utf8.RuneCountInString(name) > 80 {
		respondError(ctx, w, http.StatusBadRequest, "display name must be between 1 and 80 characters")
		return
	}

	user, err := h.Users.UpdateDisplayName(ctx, logging.UserIDFromContext(ctx), name)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to update profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]models.User{"user": user})
}
