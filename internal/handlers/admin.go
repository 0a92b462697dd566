package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/metadata"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/storage"
)

const maxUploadBytes = 10 << 20

// AdminVideoHandler manages catalog content.
type AdminVideoHandler struct {
	Videos     VideoStore
	Metadata   VideoMetadataProvider
	Thumbnails ThumbnailStorage
	Retention  RetentionPolicy
	// Trending is invalidated whenever a video enters or leaves the
	// published set.
	Trending TrendingRanker
	NowFunc  func() time.Time
}

type uploadRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	VideoURL      string `json:"videoUrl"`
	ThumbnailURL  string `json:"thumbnailUrl"`
	ThumbnailHint string `json:"thumbnailHint"`
	AccessLevel   string `json:"accessLevel"`
	Autofill      bool   `json:"autofill"`
}

type trashedVideo struct {
	models.Video
	PurgeAt *time.Time `json:"purgeAt,omitempty"`
}

// Upload handles POST /api/v1/admin/videos. The body is either JSON or a
// multipart form whose optional "thumbnail" file is stored in object storage.
func (h AdminVideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	req, file, header, err := h.parseUpload(w, r)
	if err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if file != nil {
		defer file.Close()
	}

	video := models.Video{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		VideoURL:      strings.TrimSpace(req.VideoURL),
		ThumbnailURL:  strings.TrimSpace(req.ThumbnailURL),
		ThumbnailHint: strings.TrimSpace(req.ThumbnailHint),
		AccessLevel:   strings.TrimSpace(req.AccessLevel),
	}
	if video.AccessLevel == "" {
		video.AccessLevel = models.AccessFree
	}

	if req.Autofill && needsAutofill(video, file != nil) && metadata.IsHTTPURL(video.VideoURL) {
		if h.Metadata == nil {
			respondError(ctx, w, http.StatusServiceUnavailable, "metadata lookup is not configured")
			return
		}
		meta, err := h.Metadata.Lookup(ctx, video.VideoURL)
		if err != nil {
			logger.Warn("metadata autofill failed", "error", err, "url", video.VideoURL)
			respondError(ctx, w, http.StatusBadGateway, "unable to look up video details")
			return
		}
		if file != nil {
			meta.Thumbnail = ""
		}
		meta.FillMissing(&video)
	}

	if msg := validateUpload(video, file != nil); msg != "" {
		respondError(ctx, w, http.StatusBadRequest, msg)
		return
	}

	if file != nil {
		if h.Thumbnails == nil {
			respondError(ctx, w, http.StatusServiceUnavailable, "thumbnail storage is not configured")
			return
		}
		location, err := h.Thumbnails.Save(ctx, header.Filename, file)
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedImage) {
				respondError(ctx, w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("thumbnail upload failed", "error", err)
			respondError(ctx, w, http.StatusBadGateway, "failed to store thumbnail")
			return
		}
		video.ThumbnailURL = location
	}

	video.ID = uuid.NewString()
	video.Status = models.VideoStatusPublished
	video.CreatedAt = h.now()

	if err := h.Videos.Create(ctx, video); err != nil {
		respondStoreError(ctx, w, err, "failed to create video")
		return
	}

	logger.Info("video published", "video_id", video.ID, "access_level", video.AccessLevel)
	respondJSON(ctx, w, http.StatusCreated, map[string]models.Video{"video": video})
}

func (h AdminVideoHandler) parseUpload(w http.ResponseWriter, r *http.Request) (uploadRequest, multipart.File, *multipart.FileHeader, error) {
	var req uploadRequest

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := decodeJSON(w, r, &req)
		return req, nil, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, nil, nil, err
	}

	req.Title = r.FormValue("title")
	req.Description = r.FormValue("description")
	req.VideoURL = r.FormValue("videoUrl")
	req.ThumbnailURL = r.FormValue("thumbnailUrl")
	req.ThumbnailHint = r.FormValue("thumbnailHint")
	req.AccessLevel = r.FormValue("accessLevel")
	if raw := r.FormValue("autofill"); raw != "" {
		autofill, err := strconv.ParseBool(raw)
		if err != nil {
			return req, nil, nil, err
		}
		req.Autofill = autofill
	}

	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil, nil, nil
		}
		return req, nil, nil, err
	}
	return req, file, header, nil
}

func needsAutofill(v models.Video, hasFile bool) bool {
	return v.Title == "" || v.Description == "" || (v.ThumbnailURL == "" && !hasFile)
}

func validateUpload(v models.Video, hasFile bool) string {
	switch {
	case utf8.RuneCountInString(v.Title) < 3:
		return "title must be at least 3 characters"
	case utf8.RuneCountInString(v.Description) < 10:
		return "description must be at least 10 characters"
	case !metadata.IsHTTPURL(v.VideoURL):
		return "videoUrl must be an absolute http(s) url"
	case !hasFile && !metadata.IsHTTPURL(v.ThumbnailURL):
		return "thumbnailUrl must be an absolute http(s) url"
	case v.AccessLevel != models.AccessFree && v.AccessLevel != models.AccessPro:
		return "accessLevel must be free or pro"
	}
	return ""
}

// Trashed handles GET /api/v1/admin/videos/trash.
func (h AdminVideoHandler) Trashed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.Videos.ListTrashed(ctx)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list trash")
		return
	}

	out := make([]trashedVideo, len(videos))
	for i, v := range videos {
		out[i] = trashedVideo{Video: v}
		if v.TrashedAt != nil && h.Retention != nil {
			purgeAt := h.Retention.PurgeAt(*v.TrashedAt)
			out[i].PurgeAt = &purgeAt
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]trashedVideo{"videos": out})
}

// Trash handles POST /api/v1/admin/videos/{id}/trash.
func (h AdminVideoHandler) Trash(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "trashed", func(id string) error { return h.Videos.Trash(r.Context(), id, h.now()) })
}

// Restore handles POST /api/v1/admin/videos/{id}/restore.
func (h AdminVideoHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "restored", func(id string) error { return h.Videos.Restore(r.Context(), id) })
}

// Delete handles DELETE /api/v1/admin/videos/{id}.
func (h AdminVideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, "deleted", func(id string) error { return h.Videos.Delete(r.Context(), id) })
}

func (h AdminVideoHandler) apply(w http.ResponseWriter, r *http.Request, action string, fn func(id string) error) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	if err := fn(id); err != nil {
		respondStoreError(ctx, w, err, "failed to update video")
		return
	}

	logger := logging.FromContext(ctx)
	logger.Info("video "+action, "video_id", id)
	if h.Trending != nil {
		if err := h.Trending.Invalidate(ctx); err != nil {
			logger.Error("failed to invalidate trending", "error", err, "video_id", id)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h AdminVideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
