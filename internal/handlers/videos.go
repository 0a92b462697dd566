package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/pagination"
	"github.com/cinevault/backend/internal/repositories"
	"github.com/cinevault/backend/internal/trending"
)

// VideoHandler serves the public catalog.
type VideoHandler struct {
	Videos     VideoStore
	Trending   TrendingRanker
	Engagement EngagementService
	Users      UserStore
}

// Home handles GET /api/v1/videos: every published video ordered by title.
func (h VideoHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentViewer(ctx, h.Users)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load viewer")
		return
	}

	videos, err := h.Videos.ListHome(ctx)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]models.Video{"videos": redactAll(videos, viewer)})
}

// Latest handles GET /api/v1/videos/latest?cursor=&limit=.
func (h VideoHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	cursor, err := pagination.Decode(query.Get("cursor"))
	if err == nil && !cursor.IsZero() {
		_, err = uuid.Parse(cursor.ID)
	}
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit, ok := queryInt(r, "limit")
	if !ok {
		respondError(ctx, w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	limit = pagination.Limit(limit)

	viewer, err := currentViewer(ctx, h.Users)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load viewer")
		return
	}

	videos, err := h.Videos.ListLatest(ctx, cursor, limit)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list latest videos")
		return
	}

	page := pagination.NewPage(redactAll(videos, viewer), limit, func(v models.Video) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	})
	respondJSON(ctx, w, http.StatusOK, page)
}

// Trending handles GET /api/v1/videos/trending?limit=.
func (h VideoHandler) Trending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, ok := queryInt(r, "limit")
	if !ok {
		respondError(ctx, w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	viewer, err := currentViewer(ctx, h.Users)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load viewer")
		return
	}

	ranked, err := h.Trending.Trending(ctx, limit)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to compute trending videos")
		return
	}

	out := make([]trending.Ranked, len(ranked))
	for i, entry := range ranked {
		entry.Video = redact(entry.Video, viewer)
		out[i] = entry
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]trending.Ranked{"videos": out})
}

// Detail handles GET /api/v1/videos/{id}. Trashed videos are visible to
// admins only.
func (h VideoHandler) Detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	viewer, err := currentViewer(ctx, h.Users)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load viewer")
		return
	}

	video, err := h.Videos.Get(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return
	}
	if !video.Published() && !viewer.IsAdmin() {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]models.Video{"video": redact(video, viewer)})
}

// View handles POST /api/v1/videos/{id}/view.
func (h VideoHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	stats, err := h.Engagement.RecordView(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to record view")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]models.VideoStats{"stats": stats})
}

// Download handles POST /api/v1/videos/{id}/download. Pro videos require a
// pro or admin caller.
func (h VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	viewer, err := currentViewer(ctx, h.Users)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load viewer")
		return
	}

	video, err := h.Videos.Get(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return
	}
	if !video.Published() {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}
	if !viewer.CanAccess(video.AccessLevel) {
		respondError(ctx, w, http.StatusForbidden, "a pro plan is required to download this video")
		return
	}

	stats, err := h.Engagement.RecordDownload(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to record download")
		return
	}

	respondJSON(ctx, w, http.StatusOK, downloadResponse{VideoURL: video.VideoURL, Stats: stats})
}

type downloadResponse struct {
	VideoURL string            `json:"videoUrl"`
	Stats    models.VideoStats `json:"stats"`
}

// currentViewer loads the authenticated caller. Anonymous callers and deleted
// accounts yield the zero user, which only sees free content.
func currentViewer(ctx context.Context, users UserStore) (models.User, error) {
	userID := logging.UserIDFromContext(ctx)
	if userID == "" || users == nil {
		return models.User{}, nil
	}
	user, err := users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, nil
	}
	return user, err
}

func redact(v models.Video, viewer models.User) models.Video {
	if !viewer.CanAccess(v.AccessLevel) {
		v.VideoURL = ""
	}
	return v
}

func redactAll(videos []models.Video, viewer models.User) []models.Video {
	out := make([]models.Video, len(videos))
	for i, v := range videos {
		out[i] = redact(v, viewer)
	}
	return out
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
